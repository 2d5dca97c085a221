package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"clashtui/internal/logging"
	"clashtui/internal/tui"
	"clashtui/internal/watcher"
)

func newTUICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the terminal UI (default)",
		Args:  cobra.NoArgs,
		RunE:  c.runTUI,
	}
}

// runTUI runs the command loop, the file watcher and the UI together. The UI
// owns the terminal, so events go to the log file instead of stderr.
func (c *cli) runTUI(cmd *cobra.Command, _ []string) error {
	logger, err := logging.NewFileLogger(logging.ParseLevel(c.cfg.Logging.Level), c.cfg.LogFile())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	logger.SetFormat(logging.Format(c.cfg.Logging.Format))
	c.logger = logger

	s, paths, err := c.openScheduler()
	if err != nil {
		return err
	}

	// Query the terminal background before bubbletea owns stdin, otherwise the
	// OSC 11 reply can leak into the input stream.
	_ = lipgloss.HasDarkBackground()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	opts := tui.Options{
		StateDir:     c.configDir,
		TickInterval: c.cfg.TickInterval,
	}

	w, err := watcher.New(watcher.DefaultConfig(paths.ProfilesDir, paths.TemplatesDir), logger)
	if err != nil {
		logger.Warn("tui.watcher.unavailable", "Running without file watching", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		opts.Changes = w.Changes()
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	g.Go(func() error {
		return ignoreCanceled(s.Run(gctx))
	})
	g.Go(func() error {
		// leaving the UI ends the session
		defer cancel()
		return tui.Run(gctx, s, opts, logger)
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
