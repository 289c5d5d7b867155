package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mailscout/internal/confidence"
	"mailscout/internal/contacts"
	"mailscout/internal/knowledge"
)

func learnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn <known.csv>",
		Short: "Seed the knowledge store from addresses you already know",
		Long: `Learn reads email,first_name,last_name (or email,full_name) rows, works out
which template each address follows and records, per domain, the most common
template once it matches at least --min-hits addresses.`,
		Example: `  mailscout learn known.csv
  mailscout learn crm-export.csv --min-hits 3 --backend redis`,
		Args: cobra.ExactArgs(1),
		RunE: runLearn,
	}
	cmd.Flags().Int("min-hits", knowledge.DefaultMinHits, "matching addresses a domain needs before its pattern is recorded")
	cmd.Flags().String("source", string(confidence.SourceValidation), "evidence source to record: validation, provider, search, cache")
	cmd.Flags().String("backend", "", "knowledge backend: memory, sqlite, postgres, redis")
	return cmd
}

func runLearn(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(cmd, bindings{"backend": "knowledge.backend"})
	if err != nil {
		return err
	}
	defer a.Close()

	source := confidence.Source(mustString(cmd, "source"))
	if !source.Valid() {
		return fmt.Errorf("unknown source %q", source)
	}
	minHits, _ := cmd.Flags().GetInt("min-hits")
	if minHits < 1 {
		return fmt.Errorf("--min-hits must be at least 1, got %d", minHits)
	}

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open known addresses: %w", err)
	}
	examples, err := contacts.ReadKnownCSV(in)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("read known addresses %s: %w", args[0], err)
	}

	scorer, err := a.scorer()
	if err != nil {
		return err
	}
	ks, err := a.knowledgeStore(ctx, scorer)
	if err != nil {
		return err
	}

	learned, sum, err := ks.Learn(ctx, examples, minHits, source)
	if err != nil {
		return err
	}

	type learnedPattern struct {
		Domain     string  `json:"domain"`
		Pattern    string  `json:"pattern"`
		Samples    int     `json:"samples"`
		Confidence float64 `json:"confidence"`
	}
	out := struct {
		knowledge.LearnSummary
		Patterns []learnedPattern `json:"patterns"`
	}{LearnSummary: sum, Patterns: make([]learnedPattern, 0, len(learned))}
	for _, rec := range learned {
		out.Patterns = append(out.Patterns, learnedPattern{
			Domain:     rec.Domain,
			Pattern:    string(rec.Pattern),
			Samples:    rec.SampleCount,
			Confidence: rec.Confidence,
		})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
