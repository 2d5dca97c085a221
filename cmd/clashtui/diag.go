package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"clashtui/internal/backend"
	"clashtui/internal/config"
	"clashtui/internal/diag"
	"clashtui/internal/scheduler"
	"clashtui/internal/tui"
)

func newDiagCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Write a redacted diagnostic bundle for bug reports",
		Long: `diag zips the clashtui log, config.yaml, the profile registry, the UI
state and version information. Secrets and subscription tokens are redacted;
profile bodies are not included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = diag.DefaultOutputPath(".", time.Now())
			}

			configFile := c.cfgFile
			if configFile == "" {
				configFile = config.ConfigPath()
			}
			dcfg := &diag.Config{
				ConfigFile:   configFile,
				RegistryFile: backend.NewPaths(c.configDir, c.cfg.ClashConfigDir, c.cfg.ClashConfigPath).RegistryFile,
				UIStateFile:  filepath.Join(c.configDir, tui.UIStateFileName),
				LogFile:      c.cfg.LogFile(),
				OutputPath:   output,
				Version:      version,
			}

			err := c.withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
				v, err := call(ctx, s, scheduler.NewRequest(scheduler.OpTick, ""))
				if err != nil {
					return err
				}
				if st, ok := v.(backend.Status); ok && st.State == backend.StateRunning {
					dcfg.DaemonVersion = st.Version
				}
				return nil
			})
			if err != nil {
				return err
			}

			path, err := diag.NewPackager(dcfg, c.logger).CreatePackage()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Diagnostic bundle written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "bundle path (default: ./clashtui-diag-<timestamp>.zip)")
	return cmd
}
