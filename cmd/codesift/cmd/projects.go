package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codesift/codesift/internal/output"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage registered projects",
	}

	cmd.AddCommand(newProjectsListCmd())
	cmd.AddCommand(newProjectsShowCmd())
	cmd.AddCommand(newProjectsDeleteCmd())

	return cmd
}

func newProjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			svc, err := buildServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			projects, err := svc.Store.ListProjects(ctx)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				out.Dim("No projects. Run 'codesift create' first.")
				return nil
			}

			for _, p := range projects {
				out.Printf("%s  %s\n", p.ID, p.Name)
				if p.Description != "" {
					out.Dim("    " + p.Description)
				}
			}
			return nil
		},
	}
}

func newProjectsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show one project with its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			svc, err := buildServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			project, err := svc.Store.GetProject(ctx, args[0])
			if err != nil {
				return err
			}
			files, err := svc.Store.ListFilesByProject(ctx, project.ID)
			if err != nil {
				return err
			}
			chunks, err := svc.Store.ListChunksByProject(ctx, project.ID)
			if err != nil {
				return err
			}

			out.Header(project.Name)
			out.Field("ID", project.ID)
			out.Field("Source", project.SourceLocator)
			if project.Description != "" {
				out.Field("Description", project.Description)
			}
			if project.Language != "" {
				out.Field("Language", project.Language)
			}
			out.Field("Created", project.CreatedAt.Format("2006-01-02 15:04:05"))
			out.Field("Files", fmt.Sprintf("%d", len(files)))
			out.Field("Chunks", fmt.Sprintf("%d", len(chunks)))

			for _, f := range files {
				out.Printf("  %s (%s)\n", f.Path, f.Language)
			}
			return nil
		},
	}
}

func newProjectsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project, its metadata, vectors, and workspace copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())
			projectID := args[0]

			svc, err := buildServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			// Metadata first so a missing project fails before anything
			// is torn down.
			if err := svc.Store.DeleteProject(ctx, projectID); err != nil {
				return err
			}
			if err := svc.Index.DeleteProject(projectID); err != nil {
				return fmt.Errorf("remove vectors: %w", err)
			}
			if err := svc.Index.Save(svc.Config.Storage.VectorPath); err != nil {
				return fmt.Errorf("save vector index: %w", err)
			}
			if err := svc.Intake.RemoveProject(projectID); err != nil {
				return fmt.Errorf("remove workspace copy: %w", err)
			}

			out.Successf("Deleted project %s", projectID)
			return nil
		},
	}
}
