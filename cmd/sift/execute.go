package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/sift/internal/client"
	"github.com/JaimeStill/sift/internal/executions"
)

func (a *app) executeCmd() *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "execute <workflow-id> <file>...",
		Short: "Run an active workflow against one or more files",
		Long: `Uploads each file and queues one execution per file, in order.
With --wait, polls every execution until it completes or fails.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wfID, err := parseID(args[0])
			if err != nil {
				return err
			}

			c := a.client()
			execs, err := c.Execute(cmd.Context(), wfID, args[1:]...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderExecutions(out, execs)
			if !wait {
				return nil
			}

			ids := make([]uuid.UUID, len(execs))
			for i, e := range execs {
				ids[i] = e.ID
			}

			bar := progressbar.NewOptions(len(ids),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("extracting"),
			)

			views, err := c.PollAll(cmd.Context(), ids, interval, func(uuid.UUID, executions.StatusView) {
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			for i, v := range views {
				renderStatus(out, execs[i].ID, execs[i].Filename, v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for every execution to finish")
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "polling interval")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status <execution-id>",
		Short: "Show the status of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c := a.client()
			var view *executions.StatusView
			if wait {
				view, err = c.Poll(cmd.Context(), id, interval, nil)
			} else {
				view, err = c.Status(cmd.Context(), id)
			}
			if err != nil {
				return err
			}

			renderStatus(cmd.OutOrStdout(), id, "", *view)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the execution completes or fails")
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "polling interval")
	return cmd
}
