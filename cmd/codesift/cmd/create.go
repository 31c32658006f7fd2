package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codesift/codesift/internal/output"
	"github.com/codesift/codesift/internal/store"
)

// createOptions holds CLI flags for create.
type createOptions struct {
	dir         string
	zip         string
	description string
	language    string
}

func newCreateCmd() *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a project and ingest its source tree",
		Long: `Register a new project and copy its source files into the workspace.

The source is either a local directory or a zip archive. Files are
filtered by .gitignore and by extension; only recognized code files
are registered.

Examples:
  codesift create myproject --dir ./src
  codesift create myproject --zip ./src.zip --description "payments service"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "Source directory to ingest")
	cmd.Flags().StringVarP(&opts.zip, "zip", "z", "", "Zip archive to ingest")
	cmd.Flags().StringVar(&opts.description, "description", "", "Project description")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Primary project language")

	return cmd
}

func runCreate(cmd *cobra.Command, name string, opts createOptions) error {
	if (opts.dir == "") == (opts.zip == "") {
		return fmt.Errorf("exactly one of --dir or --zip is required")
	}

	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	locator := opts.dir
	if locator == "" {
		locator = opts.zip
	}
	if abs, err := filepath.Abs(locator); err == nil {
		locator = abs
	}

	project := &store.Project{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   opts.description,
		SourceLocator: locator,
		Language:      opts.language,
	}
	if err := svc.Store.CreateProject(ctx, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	var fileCount int
	if opts.dir != "" {
		fileCount, err = svc.Intake.IngestDirectory(ctx, project.ID, opts.dir)
	} else {
		fileCount, err = svc.Intake.IngestZip(ctx, project.ID, opts.zip)
	}
	if err != nil {
		// Roll the registration back so a failed ingest leaves no
		// half-created project behind.
		_ = svc.Store.DeleteProject(ctx, project.ID)
		return fmt.Errorf("ingest source: %w", err)
	}

	out.Successf("Created project %q", name)
	out.Field("ID", project.ID)
	out.Field("Source", locator)
	out.Field("Files", fmt.Sprintf("%d", fileCount))
	out.Dim("Next: codesift process " + project.ID)
	return nil
}
