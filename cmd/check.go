package cmd

import (
	"fmt"
	"os"

	"grimm.is/headmod/internal/archive"
	"grimm.is/headmod/internal/brand"
	"grimm.is/headmod/internal/compile"
	"grimm.is/headmod/internal/config"
	"grimm.is/headmod/internal/profile"
)

// RunCheck validates the configuration file syntax and semantics.
func RunCheck(configFile string, verbose bool) error {
	if configFile == "" {
		return fmt.Errorf("usage: %s check [-v] <config-file>", brand.BinaryName)
	}

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid!")
	fmt.Printf("Listen:       %s\n", cfg.Listen)
	fmt.Printf("State path:   %s\n", cfg.State.Path)
	if cfg.Engine.Endpoint != "" {
		fmt.Printf("Engine:       %s\n", cfg.Engine.Endpoint)
	} else {
		fmt.Printf("Engine:       (in-process memory engine)\n")
	}
	if verbose {
		fmt.Printf("Log level:    %s\n", cfg.Logging.Level)
		fmt.Printf("Log format:   %s\n", cfg.Logging.Format)
		if d := cfg.Cooldown(); d > 0 {
			fmt.Printf("Sync cooldown: %s\n", d)
		}
	}
	return nil
}

// RunCheckArchive validates a profile archive and reports what each
// profile would compile to, without touching any daemon.
func RunCheckArchive(path string, nativeResourceTypes bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}

	profiles, err := archive.Import(data)
	if err != nil {
		return fmt.Errorf("archive invalid: %w", err)
	}

	opts := compile.Options{NativeResourceTypeBehavior: nativeResourceTypes}
	enabled := 0
	empty := 0
	for i := range profiles {
		p := &profiles[i]
		if !p.Enabled {
			continue
		}
		enabled++
		core := profile.CoreOf(p)
		if compile.Action(core).IsEmpty() {
			empty++
			fmt.Printf("  %-30s compiles to no rule (no effective modifications)\n", p.Name)
			continue
		}
		rule, _ := compile.Rule(core, 1, opts)
		fmt.Printf("  %-30s priority=%d request=%d response=%d\n",
			p.Name, rule.Priority,
			len(rule.Action.RequestHeaders), len(rule.Action.ResponseHeaders))
	}

	fmt.Printf("Archive valid: %d profiles, %d enabled, %d compile to rules\n",
		len(profiles), enabled, enabled-empty)
	return nil
}
