package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"clashtui/internal/backend"
	"clashtui/internal/scheduler"
)

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the clashtui and daemon versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "clashtui version %s\n", version)

			return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
				v, err := call(ctx, s, scheduler.NewRequest(scheduler.OpTick, ""))
				if err != nil {
					return err
				}
				st, _ := v.(backend.Status)
				if st.State == backend.StateRunning {
					fmt.Fprintf(out, "daemon version %s\n", st.Version)
				} else {
					fmt.Fprintf(out, "daemon %s (%s unreachable)\n", backend.StateUnknown, c.cfg.ControllerAPI)
				}
				return nil
			})
		},
	}
}
