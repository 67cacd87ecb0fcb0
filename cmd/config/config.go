// Package config implements the config command.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joshsymonds/pocforge/internal/config"
	"github.com/joshsymonds/pocforge/internal/llm"
	_ "github.com/joshsymonds/pocforge/internal/llm/sdk" // registers the "sdk" transport
	"github.com/joshsymonds/pocforge/internal/provider"
	"github.com/joshsymonds/pocforge/internal/selection"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

// Run executes the config command.
func Run(args []string) error {
	return run(args, os.Stdout, os.LookupEnv)
}

func run(args []string, out io.Writer, lookup config.LookupFunc) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: show, validate")
	}

	subcommand := args[0]
	subArgs := args[1:]

	switch subcommand {
	case "show":
		return runShow(subArgs, out, lookup)
	case "validate":
		return runValidate(subArgs, out, lookup)
	default:
		return fmt.Errorf("unknown subcommand: %s", subcommand)
	}
}

func parseFlags(name string, args []string) (string, error) {
	var configFile, envFile string

	fs := flag.NewFlagSet("config "+name, flag.ContinueOnError)
	fs.StringVar(&configFile, "config", "", "Configuration file (optional)")
	fs.StringVar(&envFile, "env-file", "", "Environment file to load first")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pocforge config %s [options]\n\nOptions:\n", name)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return "", err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return "", fmt.Errorf("loading env file: %w", err)
		}
	}
	return configFile, nil
}

func runShow(args []string, out io.Writer, lookup config.LookupFunc) error {
	configFile, err := parseFlags("show", args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, lookup)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runValidate(args []string, out io.Writer, lookup config.LookupFunc) error {
	configFile, err := parseFlags("validate", args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, lookup)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	if _, err := selection.DefaultRegistry.Get(cfg.Selection); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	resolved, err := provider.Resolve(cfg.Provider)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	if _, err := llm.DefaultTransports.Get(cfg.Transport, resolved); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	printValidationResults(out, cfg, resolved)
	fmt.Fprintln(out, "\n✅ Configuration is valid!")
	return nil
}

func printValidationResults(out io.Writer, cfg *config.Config, resolved provider.Config) {
	d := cfg.Dispatch

	fmt.Fprintln(out, "🔌 Provider:")
	fmt.Fprintf(out, "   Name: %s\n", resolved.Provider.Label())
	fmt.Fprintf(out, "   Endpoint: %s\n", resolved.Endpoint)
	fmt.Fprintf(out, "   Model: %s\n", resolved.Model)
	fmt.Fprintf(out, "   API key: %s\n", provider.Redact(resolved.APIKey))
	fmt.Fprintf(out, "   Transport: %s\n", cfg.Transport)

	fmt.Fprintln(out, "\n⚙️  Dispatch:")
	fmt.Fprintf(out, "   Selection: %s (max %d)\n", cfg.Selection, d.MaxItems)
	fmt.Fprintf(out, "   Max tokens: %d\n", d.MaxTokens)
	fmt.Fprintf(out, "   Timeout: %s\n", d.Timeout())
	fmt.Fprintf(out, "   Retries: %d\n", d.Retries)
	fmt.Fprintf(out, "   Concurrency: %d\n", d.Concurrency)
	fmt.Fprintf(out, "   Delay: %s\n", d.InterRequestDelay())

	logger.Debug("Validated configuration", "provider", resolved.Provider, "model", resolved.Model)
}
