package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tordrt/leetstore"
	"github.com/tordrt/leetstore/internal/settings"
)

func (a *app) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Validate once, then re-validate whenever the data files change",
		Long: `watch runs init, then watches the data directory. Any change to settings.json,
and the removal or replacement of database.db, triggers another run. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd)
		},
	}
}

func (a *app) watch(ctx context.Context, cmd *cobra.Command) error {
	opts, err := a.options()
	if err != nil {
		return err
	}

	store, err := leetstore.Init(ctx, opts)
	if err != nil {
		return err
	}
	a.logger.Info("watching data directory", "dir", store.Dir)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", store.Dir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(store.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", store.Dir, err)
	}

	// Later runs go to the located directory even if it was found by search.
	opts.Dir = store.Dir

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			a.logger.Debug("data file changed", "file", event.Name, "op", event.Op.String())

			store, err := leetstore.Init(ctx, opts)
			if err != nil {
				a.logger.Error("validation failed", "error", err)
				continue
			}
			if store.SettingsChanged || store.Report.Changed() {
				a.logger.Info("repaired data directory", "dir", store.Dir)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", "error", err)
		}
	}
}

// relevantEvent filters directory events down to the ones that can leave the
// data files out of shape. Writes to database.db are the store's own and are
// ignored.
func relevantEvent(event fsnotify.Event) bool {
	switch filepath.Base(event.Name) {
	case settings.FileName:
		return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
			event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	case leetstore.DatabaseFileName:
		return event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Create)
	default:
		return false
	}
}
