package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mailscout/internal/contacts"
	"mailscout/internal/verification"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <contacts.csv>",
		Short: "Resolve work emails for a CSV of contacts",
		Long: `Resolve reads first_name,last_name,domain (or full_name,domain) rows, runs
every contact through the verification pipeline and writes
id,first_name,last_name,domain,email,pattern,confidence,verified,resolution rows.`,
		Example: `  mailscout resolve leads.csv -o resolved.csv
  MAILSCOUT_PIPELINE_THRESHOLD=0.9 mailscout resolve leads.csv --backend memory`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}
	cmd.Flags().StringP("output", "o", "-", "output CSV path, - for stdout")
	cmd.Flags().Float64("threshold", 0, "confidence needed to accept a candidate (default 0.8)")
	cmd.Flags().Int("concurrency", 0, "contacts verified in parallel (default 4)")
	cmd.Flags().Int("max-candidates", 0, "validator calls allowed per contact (default 3)")
	cmd.Flags().String("backend", "", "knowledge backend: memory, sqlite, postgres, redis")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")
	cmd.Flags().Bool("summary", false, "print a JSON summary to stderr when done")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	a, err := loadApp(cmd, bindings{
		"threshold":      "pipeline.threshold",
		"concurrency":    "pipeline.concurrency",
		"max-candidates": "pipeline.max_candidates_per_contact",
		"backend":        "knowledge.backend",
	})
	if err != nil {
		return err
	}
	defer a.Close()

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open contacts: %w", err)
	}
	list, err := contacts.ReadCSV(in)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("read contacts %s: %w", args[0], err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" && path != "-" {
		f, cerr := os.Create(path)
		if cerr != nil {
			return fmt.Errorf("create output: %w", cerr)
		}
		defer closeInto(f, "output", &err)
		out = f
	}
	w, err := contacts.NewWriter(out)
	if err != nil {
		return fmt.Errorf("write output header: %w", err)
	}

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	runner := verification.NewRunner(p, a.cfg.Pipeline.Concurrency, a.cfg.Pipeline.DeferRateLimited, a.logger)

	bar := progressbar.NewOptions(len(list),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Resolving contacts"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetVisibility(!mustBool(cmd, "no-progress")),
	)

	var writeErr error
	sum, err := runner.Run(ctx, list, func(r verification.Result) {
		_ = bar.Add(1)
		if writeErr != nil {
			return
		}
		if err := w.Write(r); err != nil {
			writeErr = fmt.Errorf("write result: %w", err)
		}
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("resolve interrupted: %w", err)
	}
	if writeErr != nil {
		return writeErr
	}

	a.logger.InfoContext(ctx, "resolve finished",
		"total", sum.Total,
		"verified", sum.Verified,
		"unverified", sum.Unverified,
		"unresolved", sum.Unresolved,
		"skipped", sum.Skipped,
		"deferred", sum.Deferred,
	)
	if mustBool(cmd, "summary") {
		enc := json.NewEncoder(cmd.ErrOrStderr())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	return nil
}

// closeInto closes c and reports a failure through err unless err is
// already set.
func closeInto(c io.Closer, what string, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close %s: %w", what, cerr)
	}
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
