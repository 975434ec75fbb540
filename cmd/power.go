package cmd

import (
	"fmt"

	"grimm.is/headmod/internal/client"
)

// RunPower toggles request interception on the daemon.
func RunPower(addr string, on bool) error {
	c := client.NewHTTPClient(addr)
	if err := c.SetPower(on); err != nil {
		return fmt.Errorf("setting power: %w", err)
	}
	if on {
		fmt.Println("Power ON: rules will be rebuilt")
	} else {
		fmt.Println("Power OFF: all engine rules removed")
	}
	return nil
}

// RunReinitialize asks the daemon to wipe the engine and rebuild every
// rule from the stored profiles.
func RunReinitialize(addr string) error {
	c := client.NewHTTPClient(addr)
	if err := c.Reinitialize(); err != nil {
		return fmt.Errorf("reinitialize failed: %w", err)
	}
	fmt.Println("Reinitialize queued")
	return nil
}
