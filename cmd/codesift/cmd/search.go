package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codesift/codesift/internal/output"
	"github.com/codesift/codesift/internal/vector"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit   int
	project string
	format  string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed chunks by natural-language query",
		Long: `Search indexed code chunks with vector similarity.

The query is embedded with the same model used during processing and
matched against chunk summaries combined with their code.

Examples:
  codesift search "parse configuration file"
  codesift search "http retry logic" --project 4f1c... --limit 5
  codesift search "open database" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "Restrict results to one project ID")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	results, err := svc.Searcher.Search(ctx, query, opts.limit, opts.project)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return renderResultsJSON(cmd, query, results)
	}
	renderResults(out, query, results)
	return nil
}

func renderResults(out *output.Writer, query string, results []vector.Result) {
	if len(results) == 0 {
		out.Warningf("No results for %q", query)
		return
	}

	out.Header(fmt.Sprintf("Results for %q", query))
	for i, res := range results {
		p := res.Payload
		location := p.FilePath
		if p.UnitName != "" {
			location += ":" + p.UnitName
		}
		out.Printf("%2d. %s (%.3f)\n", i+1, location, res.Score)
		out.Dim(fmt.Sprintf("    %s %s | %s", p.UnitKind, p.Language, firstLine(p.Summary)))
	}
}

// searchResultJSON is the wire shape for --format json.
type searchResultJSON struct {
	ID       string  `json:"id"`
	Score    float32 `json:"score"`
	FilePath string  `json:"file_path"`
	UnitName string  `json:"unit_name,omitempty"`
	UnitKind string  `json:"unit_kind"`
	Language string  `json:"language"`
	Summary  string  `json:"summary"`
}

func renderResultsJSON(cmd *cobra.Command, query string, results []vector.Result) error {
	payload := struct {
		Query   string             `json:"query"`
		Results []searchResultJSON `json:"results"`
	}{Query: query, Results: make([]searchResultJSON, 0, len(results))}

	for _, res := range results {
		payload.Results = append(payload.Results, searchResultJSON{
			ID:       res.ID,
			Score:    res.Score,
			FilePath: res.Payload.FilePath,
			UnitName: res.Payload.UnitName,
			UnitKind: res.Payload.UnitKind,
			Language: res.Payload.Language,
			Summary:  res.Payload.Summary,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
