package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codesift/codesift/internal/output"
)

func newChunksCmd() *cobra.Command {
	var showCode bool

	cmd := &cobra.Command{
		Use:   "chunks <project-id>",
		Short: "List the chunks stored for a project",
		Long: `List every chunk extracted from a project, with its enrichment
state. A chunk with an empty vector ID was stored but never indexed;
re-running 'codesift process' completes it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunks(cmd, args[0], showCode)
		},
	}

	cmd.Flags().BoolVar(&showCode, "code", false, "Print chunk source code")

	return cmd
}

func runChunks(cmd *cobra.Command, projectID string, showCode bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Surface a proper not-found error before listing.
	if _, err := svc.Store.GetProject(ctx, projectID); err != nil {
		return err
	}

	chunks, err := svc.Store.ListChunksByProject(ctx, projectID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		out.Dim("No chunks. Run 'codesift process' first.")
		return nil
	}

	out.Header(fmt.Sprintf("%d chunk(s)", len(chunks)))
	for _, c := range chunks {
		name := c.UnitName
		if name == "" {
			name = "(unnamed)"
		}
		state := "indexed"
		if c.VectorID == "" {
			state = "pending"
		}
		out.Printf("%s  %-10s %-24s %s [%s]\n", c.ID, c.UnitKind, name, c.FilePath, state)
		if c.Summary != "" {
			out.Dim("    " + firstLine(c.Summary))
		}
		if showCode {
			out.Println(c.Code)
		}
	}
	return nil
}
