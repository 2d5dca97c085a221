package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clashtui/internal/backend"
	"clashtui/internal/redact"
	"clashtui/internal/scheduler"
)

func newProfileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "List, select and refresh profiles",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
					v, err := call(ctx, s, scheduler.NewRequest(scheduler.OpList, ""))
					if err != nil {
						return err
					}
					profiles, _ := v.([]backend.ProfileInfo)
					return printProfiles(cmd, profiles)
				})
			},
		},
		&cobra.Command{
			Use:   "select NAME",
			Short: "Make NAME the active configuration and reload the daemon",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
					if _, err := call(ctx, s, scheduler.NewRequest(scheduler.OpSelect, args[0])); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", args[0])
					return nil
				})
			},
		},
		newProfileUpdateCmd(c),
		newProfileUpdateAllCmd(c),
		&cobra.Command{
			Use:   "import NAME [URL]",
			Short: "Register a profile",
			Long: `Register a profile under NAME.

With URL the profile is a subscription: it is downloaded now and can be
refreshed with 'profile update'. Without URL the body must already exist in
<config dir>/profiles/NAME.`,
			Args: cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				req := scheduler.NewRequest(scheduler.OpImport, args[0])
				if len(args) == 2 {
					req.Opts.URL = args[1]
				}
				return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
					if _, err := call(ctx, s, req); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove NAME",
			Short: "Remove a profile and its body",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
					if _, err := call(ctx, s, scheduler.NewRequest(scheduler.OpRemove, args[0])); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "preview NAME",
			Short: "Print the merged configuration NAME would produce",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
					v, err := call(ctx, s, scheduler.NewRequest(scheduler.OpPreview, args[0]))
					if err != nil {
						return err
					}
					data, _ := v.([]byte)
					_, err = cmd.OutOrStdout().Write(data)
					return err
				})
			},
		},
	)

	return cmd
}

type updateFlags struct {
	proxy     bool
	noProxy   bool
	providers bool
}

func (f *updateFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.proxy, "proxy", false, "download through the daemon's proxy")
	cmd.Flags().BoolVar(&f.noProxy, "no-proxy", false, "download directly")
	cmd.Flags().BoolVar(&f.providers, "providers", false, "also refresh the profile's http proxy providers")
	cmd.MarkFlagsMutuallyExclusive("proxy", "no-proxy")
}

func (f *updateFlags) options() backend.UpdateOptions {
	opts := backend.UpdateOptions{Providers: f.providers}
	switch {
	case f.proxy:
		v := true
		opts.UseProxy = &v
	case f.noProxy:
		v := false
		opts.UseProxy = &v
	}
	return opts
}

func newProfileUpdateCmd(c *cli) *cobra.Command {
	var flags updateFlags
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Re-download a subscription or regenerate a generated profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := scheduler.NewRequest(scheduler.OpUpdate, args[0])
			req.Opts.Update = flags.options()
			return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
				if _, err := call(ctx, s, req); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newProfileUpdateAllCmd(c *cli) *cobra.Command {
	var flags updateFlags
	cmd := &cobra.Command{
		Use:   "update-all",
		Short: "Update every subscription and generated profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := scheduler.NewRequest(scheduler.OpUpdateAll, "")
			req.Opts.Update = flags.options()
			return c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
				v, err := call(ctx, s, req)
				if err != nil {
					return err
				}
				results, _ := v.([]backend.UpdateResult)

				var failures []error
				out := cmd.OutOrStdout()
				for _, r := range results {
					if r.Err != nil {
						fmt.Fprintf(out, "%s: failed: %v\n", r.Name, r.Err)
						failures = append(failures, fmt.Errorf("%s: %w", r.Name, r.Err))
						continue
					}
					fmt.Fprintf(out, "%s: updated\n", r.Name)
				}
				if len(results) == 0 {
					fmt.Fprintln(out, "No upgradable profiles")
				}
				return errors.Join(failures...)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func printProfiles(cmd *cobra.Command, profiles []backend.ProfileInfo) error {
	out := cmd.OutOrStdout()
	if len(profiles) == 0 {
		fmt.Fprintln(out, "No profiles registered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tKIND\tSOURCE\tDOWNLOADED")
	for _, p := range profiles {
		marker := " "
		if p.Current {
			marker = "*"
		}
		source := "-"
		switch {
		case p.Kind.URL != "":
			source = redact.URL(p.Kind.URL)
		case p.Kind.Template != "":
			source = p.Kind.Template
		}
		downloaded := "no"
		if p.Downloaded {
			downloaded = "yes"
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n", marker, p.Name, p.Kind, source, downloaded)
	}
	return w.Flush()
}
