package cmd

import (
	"fmt"
	"os"

	"grimm.is/headmod/internal/archive"
	"grimm.is/headmod/internal/client"
)

// RunExport downloads the daemon's profile set to a YAML archive file.
// "-" writes to stdout.
func RunExport(addr, outPath string) error {
	c := client.NewHTTPClient(addr)

	data, err := c.Export()
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if outPath == "-" || outPath == "" {
		os.Stdout.Write(data)
		return nil
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	fmt.Printf("Exported to %s\n", outPath)
	return nil
}

// RunImport uploads a YAML archive, replacing the daemon's profile set.
// The archive is validated locally first so obviously broken files are
// rejected without touching the daemon.
func RunImport(addr, inPath string) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	if _, err := archive.Import(data); err != nil {
		return fmt.Errorf("archive invalid: %w", err)
	}

	c := client.NewHTTPClient(addr)
	n, err := c.Import(data)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Printf("Imported %d profile(s)\n", n)
	return nil
}
