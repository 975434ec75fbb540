package cmd

import (
	"fmt"
	"os"

	"grimm.is/headmod/internal/brand"
	"grimm.is/headmod/internal/client"
)

// RunStatus queries the daemon for current status and prints it.
func RunStatus(addr string) {
	c := client.NewHTTPClient(addr)

	status, err := c.GetStatus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get status: %v\n", err)
		fmt.Fprintf(os.Stderr, "Is the daemon running? Start with: %s serve\n", brand.BinaryName)
		os.Exit(1)
	}

	fmt.Printf("=== %s Status ===\n\n", brand.Name)
	if status.Power {
		fmt.Println("Power:    ON")
	} else {
		fmt.Println("Power:    OFF")
	}
	fmt.Printf("Uptime:   %s\n", status.Uptime)
	fmt.Printf("Profiles: %d\n", status.ProfileCount)
	fmt.Printf("Rules:    %d registered\n", status.RegisteredRules)

	if status.RuleErrors > 0 {
		fmt.Printf("Errors:   %d profile(s) failing to sync\n\n", status.RuleErrors)
		errs, err := c.RuleErrors()
		if err == nil {
			for _, e := range errs {
				fmt.Printf("  %s  %s\n", e.ProfileID, e.Message)
			}
		}
	}
}
