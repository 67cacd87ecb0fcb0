// Package generate implements the generate command.
package generate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joshsymonds/pocforge/internal/config"
	_ "github.com/joshsymonds/pocforge/internal/llm/sdk" // registers the "sdk" transport
	"github.com/joshsymonds/pocforge/internal/pocgen"
	"github.com/joshsymonds/pocforge/internal/selection"
	"github.com/joshsymonds/pocforge/internal/storage"
	"github.com/joshsymonds/pocforge/internal/ui"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

// Options represents generate command options.
type Options struct {
	ConfigFile  string
	EnvFile     string
	InputFile   string
	Findings    string
	Program     string
	Enrichments string
	Patches     string
	OutputDir   string
	Transport   string
	Selection   string
	MaxItems    int
	Concurrency int
	NoSave      bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	return newCommand(&Options{})
}

func newCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate proof-of-concept tests for audit findings",
		Long: `Generate a runnable proof-of-concept test for each selected finding.

Findings are read from a single bundle (--input) or from separate files
(--program and --findings, with optional --enrichments and --patches).
Each finding is sent to the configured LLM provider; findings that fail
still receive a scaffold test so every selected finding has an artifact.`,
		Example: `  # Generate from a bundle
  pocforge generate --input audit.yaml

  # Generate from separate files using the SDK transport
  pocforge generate --program program.json --findings findings.json --transport sdk

  # Only critical findings, two at a time
  pocforge generate --input audit.yaml --selection critical-only --concurrency 2`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", ".env", "Environment file to load if present")
	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input bundle (program, findings, enrichments, patches)")
	cmd.Flags().StringVar(&opts.Findings, "findings", "", "Findings file")
	cmd.Flags().StringVar(&opts.Program, "program", "", "Program description file")
	cmd.Flags().StringVar(&opts.Enrichments, "enrichments", "", "Enrichments file")
	cmd.Flags().StringVar(&opts.Patches, "patches", "", "Patches file")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "data", "Output directory")
	cmd.Flags().StringVar(&opts.Transport, "transport", "", "Transport (http, sdk)")
	cmd.Flags().StringVar(&opts.Selection, "selection", "", "Selection strategy (severity, critical-only, high-impact, all)")
	cmd.Flags().IntVar(&opts.MaxItems, "max", 0, "Maximum findings to generate")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Maximum concurrent requests")
	cmd.Flags().BoolVar(&opts.NoSave, "no-save", false, "Print the summary without writing results")

	cmd.MarkFlagsMutuallyExclusive("input", "findings")
	cmd.MarkFlagsRequiredTogether("findings", "program")

	return cmd
}

// Run executes the generate command.
func Run(args []string) error {
	cmd := NewGenerateCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func run(cmd *cobra.Command, opts *Options) error {
	log := logger.GetGlobalLogger()

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigFile, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := applyFlags(cmd, cfg, opts); err != nil {
		return err
	}

	store := storage.NewStorageWithLogger(opts.OutputDir, log)
	in, err := loadInput(store, opts)
	if err != nil {
		return err
	}

	gen, err := pocgen.NewFromConfig(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := gen.Generate(ctx, *in)
	if err != nil {
		return fmt.Errorf("generating PoCs: %w", err)
	}

	runDir := ""
	if !opts.NoSave {
		if runDir, err = store.SaveResults(result); err != nil {
			return err
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), ui.RenderSummary(result, runDir))
	return nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	logger.Debug("Loaded environment file", "path", path)
	return nil
}

// applyFlags overlays explicitly set flags on the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *Options) error {
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Transport = opts.Transport
	}
	if flags.Changed("selection") {
		if _, err := selection.DefaultRegistry.Get(opts.Selection); err != nil {
			return err
		}
		cfg.Selection = opts.Selection
	}
	if flags.Changed("max") {
		cfg.Dispatch.MaxItems = opts.MaxItems
	}
	if flags.Changed("concurrency") {
		cfg.Dispatch.Concurrency = opts.Concurrency
	}

	cfg.Dispatch.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func loadInput(store *storage.Storage, opts *Options) (*pocgen.Input, error) {
	if opts.InputFile != "" {
		return store.LoadInput(opts.InputFile)
	}
	if opts.Findings == "" {
		return nil, fmt.Errorf("either --input or --findings with --program is required")
	}

	in := &pocgen.Input{}
	var err error
	if in.Program, err = store.LoadProgram(opts.Program); err != nil {
		return nil, err
	}
	if in.Findings, err = store.LoadFindings(opts.Findings); err != nil {
		return nil, err
	}
	if opts.Enrichments != "" {
		if in.Enrichments, err = store.LoadEnrichments(opts.Enrichments); err != nil {
			return nil, err
		}
	}
	if opts.Patches != "" {
		if in.Patches, err = store.LoadPatches(opts.Patches); err != nil {
			return nil, err
		}
	}
	return in, nil
}
