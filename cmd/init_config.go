package cmd

import (
	"fmt"

	"grimm.is/headmod/internal/config"
)

// RunInitConfig writes a default config file if none exists at path.
func RunInitConfig(path string) error {
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("Config ready at %s\n", path)
	return nil
}
