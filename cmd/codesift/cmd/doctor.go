package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesift/codesift/internal/config"
	"github.com/codesift/codesift/internal/output"
	"github.com/codesift/codesift/internal/store"
)

// checkResult is one doctor check outcome.
type checkResult struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Critical bool   `json:"critical"`
	Detail   string `json:"detail"`
}

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that codesift's collaborators are healthy",
		Long: `Run diagnostics against the configured backends.

Checks:
  - Configuration validity
  - Workspace and data directories are writable
  - Metadata store opens
  - Embedding backend availability
  - Summarizer (Ollama) availability

Embedder and summarizer checks are non-critical: processing falls
back to static embeddings and template summaries when they are down.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	results := runChecks(ctx)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		renderChecks(out, results)
	}

	for _, res := range results {
		if res.Critical && !res.OK {
			return fmt.Errorf("system check failed")
		}
	}
	return nil
}

func runChecks(ctx context.Context) []checkResult {
	var results []checkResult
	record := func(name string, ok, critical bool, detail string) {
		results = append(results, checkResult{Name: name, OK: ok, Critical: critical, Detail: detail})
	}

	cfg, err := config.Load()
	if err != nil {
		record("configuration", false, true, err.Error())
		return results
	}
	record("configuration", true, true, config.GetUserConfigPath())

	for _, dir := range []struct{ name, path string }{
		{"workspace directory", cfg.Workspace.Dir},
		{"data directory", cfg.Storage.DataDir},
	} {
		if err := checkWritable(dir.path); err != nil {
			record(dir.name, false, true, err.Error())
		} else {
			record(dir.name, true, true, dir.path)
		}
	}

	if metaStore, err := store.NewSQLiteStore(cfg.Storage.MetadataPath); err != nil {
		record("metadata store", false, true, err.Error())
	} else {
		metaStore.Close()
		record("metadata store", true, true, cfg.Storage.MetadataPath)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	svc, err := buildServices(checkCtx)
	if err != nil {
		record("service wiring", false, true, err.Error())
		return results
	}
	defer svc.Close()
	record("service wiring", true, true, "")
	record("vector index", true, false, fmt.Sprintf("%d vector(s)", svc.Index.Count()))

	if svc.Embedder.Available(checkCtx) {
		record("embedder", true, false, svc.Embedder.ModelName())
	} else {
		record("embedder", false, false, "backend unreachable; static fallback will be used")
	}

	if svc.Summarizer.Available(checkCtx) {
		record("summarizer", true, false, cfg.Summarizer.Model)
	} else {
		record("summarizer", false, false,
			fmt.Sprintf("Ollama unreachable at %s; template summaries will be used", cfg.Summarizer.OllamaHost))
	}

	return results
}

func renderChecks(out *output.Writer, results []checkResult) {
	out.Header("codesift doctor")
	for _, res := range results {
		detail := res.Detail
		if detail != "" {
			detail = ": " + detail
		}
		switch {
		case res.OK:
			out.Successf("%s%s", res.Name, detail)
		case res.Critical:
			out.Errorf("%s%s", res.Name, detail)
		default:
			out.Warningf("%s%s", res.Name, detail)
		}
	}
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
