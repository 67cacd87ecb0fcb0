// Package main is the entry point for the pocforge CLI.
// pocforge turns audited vulnerability findings for Solana programs into
// runnable proof-of-concept tests by asking an LLM provider to write them.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joshsymonds/pocforge/cmd/config"
	"github.com/joshsymonds/pocforge/cmd/generate"
	"github.com/joshsymonds/pocforge/cmd/list"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var (
		debug       bool
		logFormat   string
		showVersion bool
	)

	globalFlags := flag.NewFlagSet("pocforge", flag.ExitOnError)
	globalFlags.BoolVar(&debug, "debug", false, "Enable debug logging")
	globalFlags.StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	globalFlags.BoolVar(&showVersion, "version", false, "Show version information")

	if err := globalFlags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if showVersion {
		fmt.Printf("pocforge version %s (built %s)\n", version, buildTime) //nolint:forbidigo
		os.Exit(0)
	}

	logger.SetupLogger(debug, logFormat)

	args := globalFlags.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "generate":
		if err := generate.Run(commandArgs); err != nil {
			logger.Error("generation failed", "error", err)
			os.Exit(1)
		}
	case "list":
		if err := list.Run(commandArgs); err != nil {
			logger.Error("list failed", "error", err)
			os.Exit(1)
		}
	case "config":
		if err := config.Run(commandArgs); err != nil {
			logger.Error("config command failed", "error", err)
			os.Exit(1)
		}
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	//nolint:forbidigo
	fmt.Println(`pocforge: proof-of-concept test generator

Usage:
  pocforge [global flags] <command> [command flags]

Commands:
  generate       Generate PoC tests for findings
  list           List previous generation runs
  config         Show or validate configuration
  help           Show this help message

Global Flags:
  --debug         Enable debug logging
  --log-format    Log format (text or json) (default: text)
  --version       Show version information

Environment:
  POC_PROVIDER        auto, kimi_code or moonshot
  KIMI_CODE_API_KEY   Kimi Code credential
  MOONSHOT_API_KEY    Moonshot credential
  LLM_POC_MODEL       Model override (falls back to MOONSHOT_MODEL)

Examples:
  pocforge generate --input audit.yaml
  pocforge list --program vault
  pocforge config validate --config pocforge.yaml

Use "pocforge <command> --help" for more information about a command.`)
}
