package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) workflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflows",
		Aliases: []string{"wf"},
		Short:   "Manage extraction workflows",
	}

	cmd.AddCommand(a.workflowsCreateCmd())
	cmd.AddCommand(a.workflowsListCmd())
	cmd.AddCommand(a.workflowsGetCmd())
	cmd.AddCommand(a.workflowsPublishCmd())
	cmd.AddCommand(a.workflowsReExtractCmd())
	cmd.AddCommand(a.workflowsDeleteCmd())

	return cmd
}

func (a *app) workflowsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <sample-file>",
		Short: "Upload a sample document and start schema analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.client().CreateWorkflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderWorkflow(cmd.OutOrStdout(), wf)
			return nil
		},
	}
}

func (a *app) workflowsListCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := a.client().Workflows(cmd.Context(), page, pageSize)
			if err != nil {
				return err
			}
			renderWorkflows(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "workflows per page")
	return cmd
}

func (a *app) workflowsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Show a workflow and its configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			wf, err := a.client().Workflow(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderWorkflow(cmd.OutOrStdout(), wf)
			return nil
		},
	}
}

func (a *app) workflowsPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <workflow-id>",
		Short: "Activate a configured workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			wf, err := a.client().Publish(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderWorkflow(cmd.OutOrStdout(), wf)
			return nil
		},
	}
}

func (a *app) workflowsReExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "re-extract <workflow-id>",
		Short: "Refresh the sample data of a configured workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			wf, err := a.client().ReExtract(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderWorkflow(cmd.OutOrStdout(), wf)
			return nil
		},
	}
}

func (a *app) workflowsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workflow-id>",
		Short: "Delete a workflow and all of its executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.client().DeleteWorkflow(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
