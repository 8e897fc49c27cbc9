package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"tagboard/internal/services"
)

// debounce collapses bursts of write events from editors and atomic saves
// into one reload.
const debounce = 500 * time.Millisecond

// Reloader re-reads the dataset file. Implemented by services.DashboardService.
type Reloader interface {
	Reload(ctx context.Context) (*services.ReloadResult, error)
}

// Broadcaster notifies connected dashboards. Implemented by websocket.Hub.
type Broadcaster interface {
	BroadcastDatasetReloaded(rows, tags int)
	BroadcastError(message string)
}

// Watcher reloads the dataset when its file changes on disk.
type Watcher struct {
	path    string
	service Reloader
	hub     Broadcaster
	logger  *slog.Logger
}

// New creates a watcher for the dataset file at path.
func New(path string, service Reloader, hub Broadcaster, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:    path,
		service: service,
		hub:     hub,
		logger:  logger.With(slog.String("component", "watcher")),
	}
}

// Run watches the dataset file until ctx is cancelled. The parent directory
// is watched rather than the file itself so rename-and-replace saves keep
// working.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}

	w.logger.Info("watching dataset file", slog.String("path", w.path))

	base := filepath.Base(w.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			w.logger.Debug("dataset file changed",
				slog.String("event", event.Op.String()))

			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			w.reload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", slog.String("error", err.Error()))
		}
	}
}

// reload re-reads the dataset and tells the dashboards. A failed reload keeps
// the previous dataset in place.
func (w *Watcher) reload(ctx context.Context) {
	result, err := w.service.Reload(ctx)
	if err != nil {
		w.logger.Error("reload after file change failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		if w.hub != nil {
			w.hub.BroadcastError("dataset reload failed: " + err.Error())
		}
		return
	}

	w.logger.Info("dataset reloaded after file change",
		slog.Int("rows", result.Rows),
		slog.Int("tags", result.Tags),
	)
	if w.hub != nil {
		w.hub.BroadcastDatasetReloaded(result.Rows, result.Tags)
	}
}
