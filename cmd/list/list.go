// Package list implements the list command for viewing previous generation runs.
package list

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joshsymonds/pocforge/internal/storage"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

// Options represents list command options.
type Options struct {
	Program string
	DataDir string
	Format  string
	Limit   int
}

// Run executes the list command.
func Run(args []string) error {
	return run(args, os.Stdout)
}

func run(args []string, out io.Writer) error {
	opts := &Options{}

	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.StringVar(&opts.Program, "program", "", "Filter by program name")
	fs.IntVar(&opts.Limit, "limit", 10, "Maximum number of runs to show")
	fs.StringVar(&opts.DataDir, "data-dir", "data", "Data directory path")
	fs.StringVar(&opts.Format, "format", "table", "Output format (table, json)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: pocforge list [options]

List previous generation runs.

Options:`)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, `
Examples:
  pocforge list
  pocforge list --program vault
  pocforge list --format json`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	store := storage.NewStorage(opts.DataDir)

	runs, err := store.ListRuns(opts.Program, opts.Limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if len(runs) == 0 {
		if opts.Program != "" {
			logger.Info("No runs found for program", "program", opts.Program)
		} else {
			logger.Info("No runs found")
		}
		return nil
	}

	switch opts.Format {
	case "json":
		return displayJSON(out, runs)
	default:
		return displayTable(out, runs)
	}
}

func displayTable(out io.Writer, runs []storage.RunInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintln(w, "ID\tPROGRAM\tPROVIDER\tPOCS\tDURATION\tTIME AGO"); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 80)); err != nil {
		return fmt.Errorf("writing separator: %w", err)
	}

	for _, run := range runs {
		duration := run.CompletedAt.Sub(run.StartedAt).Round(time.Second)

		pocs := fmt.Sprintf("%d/%d", run.Generated, run.Selected)
		if run.Fallback > 0 {
			pocs += fmt.Sprintf(" (%d fallback)", run.Fallback)
		}

		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(run.ID),
			run.Program,
			run.Provider,
			pocs,
			duration,
			formatTimeAgo(run.StartedAt),
		); err != nil {
			return fmt.Errorf("writing run entry: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table writer: %w", err)
	}
	return nil
}

type runJSON struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	ID          string    `json:"id"`
	Program     string    `json:"program"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Path        string    `json:"path"`
	Selected    int       `json:"selected"`
	Generated   int       `json:"generated"`
	Fallback    int       `json:"fallback"`
}

func displayJSON(out io.Writer, runs []storage.RunInfo) error {
	items := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		items = append(items, runJSON{
			ID:          r.ID,
			Program:     r.Program,
			Provider:    r.Provider,
			Model:       r.Model,
			Path:        r.Path,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
			Selected:    r.Selected,
			Generated:   r.Generated,
			Fallback:    r.Fallback,
		})
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(items)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	case duration < 7*24*time.Hour:
		return plural(int(duration.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
