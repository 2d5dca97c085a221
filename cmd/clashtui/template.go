package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"clashtui/internal/profile"
	"clashtui/internal/scheduler"
)

func newTemplateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "List templates and generate profiles from them",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List template files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
					v, err := call(ctx, s, scheduler.NewRequest(scheduler.OpTemplates, ""))
					if err != nil {
						return err
					}
					names, _ := v.([]string)
					out := cmd.OutOrStdout()
					if len(names) == 0 {
						fmt.Fprintln(out, "No templates found")
						return nil
					}
					for _, name := range names {
						fmt.Fprintln(out, name)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "generate NAME",
			Short: "Expand template NAME into the profile NAME.generated",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
					v, err := call(ctx, s, scheduler.NewRequest(scheduler.OpGenerate, args[0]))
					if err != nil {
						return err
					}
					p, _ := v.(profile.Profile)
					fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", p.Name)
					return nil
				})
			},
		},
	)

	return cmd
}
