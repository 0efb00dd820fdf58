package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/titlepatch/internal/patcher"
	"github.com/papapumpkin/titlepatch/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Load the patch directory and reload it whenever a patch file changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := os.MkdirAll(s.cfg.PatchesDir, 0o755); err != nil {
		return err
	}
	if _, err := s.load(ctx, nil); err != nil {
		return err
	}
	printer := ui.NewWriter(cmd.OutOrStdout())
	printer.FileList(s.sys.Files())

	w, err := patcher.NewWatcher(s.cfg.PatchesDir, s.logger)
	if err != nil {
		return err
	}
	if s.cfg.WatchDebounceMS > 0 {
		w.Debounce = time.Duration(s.cfg.WatchDebounceMS) * time.Millisecond
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	r := &patcher.Reloader{
		System:  s.sys,
		Watcher: w,
		Logger:  s.logger,
		OnReload: func(report patcher.LoadReport) {
			if err := s.replayOverrides(ctx); err != nil {
				s.logger.Error("replaying overrides", "error", err)
			}
			printer.FileList(s.sys.Files())
			printer.Diagnostics(report.Diagnostics)
		},
	}
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
