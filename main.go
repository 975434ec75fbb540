package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/headmod/cmd"
	"grimm.is/headmod/internal/brand"
)

func defaultConfigPath() string {
	return brand.DefaultConfigDir + "/" + brand.ConfigFileName
}

func defaultAddr() string {
	if v := os.Getenv(brand.ConfigEnvPrefix + "_ADDR"); v != "" {
		return v
	}
	return "http://127.0.0.1:8799"
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
		configFile := serveFlags.String("config", defaultConfigPath(), "Configuration file")
		serveFlags.StringVar(configFile, "c", defaultConfigPath(), "Configuration file (short)")
		serveFlags.Parse(os.Args[2:])

		if err := cmd.RunServe(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Serve failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		statusFlags := flag.NewFlagSet("status", flag.ExitOnError)
		addr := statusFlags.String("addr", defaultAddr(), "Daemon API address")
		statusFlags.Parse(os.Args[2:])

		cmd.RunStatus(*addr)

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := checkFlags.Bool("v", false, "Verbose output")
		archiveFile := checkFlags.String("archive", "", "Validate a profile archive instead of a config file")
		nativeTypes := checkFlags.Bool("native-resource-types", false, "Compile without the explicit resource-type default")
		checkFlags.Parse(os.Args[2:])

		var err error
		if *archiveFile != "" {
			err = cmd.RunCheckArchive(*archiveFile, *nativeTypes)
		} else {
			configFile := defaultConfigPath()
			if checkFlags.NArg() > 0 {
				configFile = checkFlags.Arg(0)
			}
			err = cmd.RunCheck(configFile, *verbose)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "diff":
		diffFlags := flag.NewFlagSet("diff", flag.ExitOnError)
		addr := diffFlags.String("addr", defaultAddr(), "Daemon API address")
		nativeTypes := diffFlags.Bool("native-resource-types", false, "Compile without the explicit resource-type default")
		diffFlags.Parse(os.Args[2:])

		if err := cmd.RunDiff(*addr, *nativeTypes); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	case "export":
		exportFlags := flag.NewFlagSet("export", flag.ExitOnError)
		addr := exportFlags.String("addr", defaultAddr(), "Daemon API address")
		out := exportFlags.String("o", "-", "Output file (- for stdout)")
		exportFlags.Parse(os.Args[2:])

		if err := cmd.RunExport(*addr, *out); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}

	case "import":
		importFlags := flag.NewFlagSet("import", flag.ExitOnError)
		addr := importFlags.String("addr", defaultAddr(), "Daemon API address")
		importFlags.Parse(os.Args[2:])

		if importFlags.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "usage: %s import [-addr url] <archive.yaml>\n", brand.BinaryName)
			os.Exit(1)
		}
		if err := cmd.RunImport(*addr, importFlags.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
			os.Exit(1)
		}

	case "power":
		powerFlags := flag.NewFlagSet("power", flag.ExitOnError)
		addr := powerFlags.String("addr", defaultAddr(), "Daemon API address")
		powerFlags.Parse(os.Args[2:])

		if powerFlags.NArg() < 1 || (powerFlags.Arg(0) != "on" && powerFlags.Arg(0) != "off") {
			fmt.Fprintf(os.Stderr, "usage: %s power [-addr url] on|off\n", brand.BinaryName)
			os.Exit(1)
		}
		if err := cmd.RunPower(*addr, powerFlags.Arg(0) == "on"); err != nil {
			fmt.Fprintf(os.Stderr, "Power failed: %v\n", err)
			os.Exit(1)
		}

	case "reinitialize":
		reinitFlags := flag.NewFlagSet("reinitialize", flag.ExitOnError)
		addr := reinitFlags.String("addr", defaultAddr(), "Daemon API address")
		reinitFlags.Parse(os.Args[2:])

		if err := cmd.RunReinitialize(*addr); err != nil {
			fmt.Fprintf(os.Stderr, "Reinitialize failed: %v\n", err)
			os.Exit(1)
		}

	case "init-config":
		initFlags := flag.NewFlagSet("init-config", flag.ExitOnError)
		configFile := initFlags.String("config", defaultConfigPath(), "Configuration file")
		initFlags.Parse(os.Args[2:])

		if err := cmd.RunInitConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
			os.Exit(1)
		}

	case "version", "--version", "-v":
		cmd.RunVersion()

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage: %s <command> [options]

Daemon:
  serve          Run the daemon (state store, sync loop, HTTP API)
  init-config    Write a default config file if none exists

Client (talks to a running daemon):
  status         Show power state, profile and rule counts
  power on|off   Toggle request interception
  diff           Compare compiled profiles against engine rules
  export         Download profiles as a YAML archive
  import         Replace profiles from a YAML archive
  reinitialize   Wipe the engine and rebuild all rules

Offline:
  check          Validate a config file (or -archive <file>)
  version        Show build information
`, brand.Name, brand.Description, brand.BinaryName)
}
