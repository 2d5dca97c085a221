package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"clashtui/internal/backend"
	"clashtui/internal/clashapi"
	"clashtui/internal/config"
	"clashtui/internal/configdir"
	"clashtui/internal/errs"
	"clashtui/internal/fsutil"
	"clashtui/internal/logging"
	"clashtui/internal/scheduler"
	"clashtui/internal/secrets"
)

// cli holds what every subcommand shares once flags are parsed
type cli struct {
	cfgFile   string
	cfg       config.Config
	configDir string
	logger    *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "clashtui",
		Short: "Manage mihomo/clash profiles from the terminal",
		Long: `clashtui keeps a registry of proxy profiles, merges the selected one with
a base configuration, writes the daemon's active config and asks the daemon
to reload it. Templates expand into profiles built from your subscriptions.

Without a subcommand the terminal UI starts.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE:              c.runTUI,
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "",
		"config file (default: <config dir>/config.yaml)")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newTUICmd(c),
		newProfileCmd(c),
		newTemplateCmd(c),
		newSecretCmd(c),
		newDiagCmd(c),
		newVersionCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if c.cfgFile != "" {
		c.cfg, err = config.LoadFrom(c.cfgFile)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		return errs.Wrap(errs.KindInvalid, err, "invalid configuration")
	}

	c.configDir = configdir.ConfigDir()
	c.logger = logging.NewWriterLogger(
		logging.ParseLevel(c.cfg.Logging.Level),
		logging.Format(c.cfg.Logging.Format),
		cmd.ErrOrStderr(),
	)
	return nil
}

// openScheduler builds the HTTP client, backend and command loop from config.
func (c *cli) openScheduler() (*scheduler.Scheduler, backend.Paths, error) {
	secret, err := c.controllerSecret()
	if err != nil {
		return nil, backend.Paths{}, err
	}

	client, err := clashapi.New(clashapi.Options{
		Controller:      c.cfg.ControllerAPI,
		Secret:          secret,
		ProxyAddr:       c.cfg.ProxyAddr,
		ConnectivityURL: c.cfg.ConnectivityURL,
		Timeout:         c.cfg.Timeout,
		ProbeTTL:        c.cfg.ProbeTTL,
	}, c.logger)
	if err != nil {
		return nil, backend.Paths{}, errs.Wrap(errs.KindInvalid, err, "controller client")
	}

	paths := backend.NewPaths(c.configDir, c.cfg.ClashConfigDir, c.cfg.ClashConfigPath)
	b, err := backend.New(paths, client, client, c.logger)
	if err != nil {
		return nil, backend.Paths{}, err
	}

	return scheduler.New(b, c.cfg.QueueSize, c.logger), paths, nil
}

// controllerSecret prefers the configured secret and falls back to the store.
// The store is only opened when it already exists.
func (c *cli) controllerSecret() (string, error) {
	if c.cfg.ControllerSecret != "" {
		return c.cfg.ControllerSecret, nil
	}
	storeCfg := secrets.DefaultStoreConfig(c.configDir)
	if !fsutil.Exists(storeCfg.PassphraseFile) {
		return "", nil
	}
	store, err := secrets.NewStore(storeCfg, c.logger)
	if err != nil {
		return "", err
	}
	secret, err := store.Resolve(secrets.ControllerSecret, "")
	if err != nil {
		return "", fmt.Errorf("failed to read controller secret: %w", err)
	}
	return secret, nil
}

// withScheduler runs fn against a live command loop and stops the loop after.
func (c *cli) withScheduler(ctx context.Context, fn func(context.Context, *scheduler.Scheduler) error) error {
	s, _, err := c.openScheduler()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(gctx)
	})
	g.Go(func() error {
		if err := fn(gctx, s); err != nil {
			return err
		}
		_, err := s.Do(gctx, scheduler.NewRequest(scheduler.OpStop, ""))
		return err
	})
	return g.Wait()
}

// call submits one request and returns its value and error
func call(ctx context.Context, s *scheduler.Scheduler, req scheduler.Request) (any, error) {
	resp, err := s.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Value, resp.Err
}
