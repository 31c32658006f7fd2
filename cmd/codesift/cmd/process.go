package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codesift/codesift/internal/output"
	"github.com/codesift/codesift/internal/pipeline"
)

func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <project-id>",
		Short: "Chunk, summarize, embed, and index a project",
		Long: `Run the enrichment pipeline over an ingested project.

Every registered file is chunked into functions and classes, each
chunk is summarized and embedded, and the vectors are written to the
search index. Failures on individual chunks are reported but do not
stop the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args[0])
		},
	}

	return cmd
}

func runProcess(cmd *cobra.Command, projectID string) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := svc.Processor.Process(ctx, projectID)
	if err != nil {
		return err
	}

	renderReport(out, report)
	return nil
}

func renderReport(out *output.Writer, report *pipeline.Report) {
	out.Header("Processing complete")
	out.Field("Chunks", fmt.Sprintf("%d", report.TotalChunks))
	out.Field("Processed", fmt.Sprintf("%d", report.ProcessedChunks))
	out.Field("Failures", fmt.Sprintf("%d", len(report.Failures)))

	if len(report.Failures) == 0 {
		out.Success("All chunks processed")
		return
	}

	out.Warningf("%d chunk(s) failed", len(report.Failures))
	for _, failure := range report.Failures {
		unit := failure.UnitName
		if unit == "" {
			unit = "(file)"
		}
		out.Printf("  %s %s [%s]: %v\n", failure.FilePath, unit, failure.Stage, failure.Err)
	}
}
