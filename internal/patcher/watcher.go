package patcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papapumpkin/titlepatch/internal/logging"
)

// ChangeKind describes the type of file change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota // patch file written or created
	ChangeRemoved                    // patch file deleted or renamed away
)

func (k ChangeKind) String() string {
	if k == ChangeRemoved {
		return "removed"
	}
	return "modified"
}

// Change represents a detected change in the patch directory.
type Change struct {
	Kind ChangeKind
	File string
}

// DefaultDebounce is how long a file must be quiet before its change is emitted.
const DefaultDebounce = 100 * time.Millisecond

// Watcher monitors a patch directory for patch file changes using fsnotify.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Changes  <-chan Change // Read-only external channel

	changes chan Change
	stop    chan struct{}
	done    chan struct{}
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher creates a new watcher for the given patch directory.
func NewWatcher(dir string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	ch := make(chan Change, 16)
	return &Watcher{
		Dir:      dir,
		Debounce: DefaultDebounce,
		Changes:  ch,
		changes:  ch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
		logger:   logger,
	}, nil
}

// Start begins watching the patch directory for changes.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel. Changes nobody has
// room for are dropped.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for file := range pending {
					select {
					case w.changes <- w.change(file):
					default:
						w.logger.Debug("dropping patch file change on stop", "file", file)
					}
				}
				return
			}
			if !IsPatchFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					select {
					case w.changes <- w.change(file):
					case <-w.stop:
					}
					delete(pending, file)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("patch directory watch error", "dir", w.Dir, "error", err)
		}
	}
}

func (w *Watcher) change(file string) Change {
	kind := ChangeModified
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		kind = ChangeRemoved
	}
	return Change{Kind: kind, File: file}
}

// Reloader rebuilds the System's collection from the patch directory each
// time the watcher reports a change.
type Reloader struct {
	System  *System
	Watcher *Watcher
	Logger  *slog.Logger

	// OnReload, if set, runs after every reload, e.g. to restore persisted
	// enable overrides.
	OnReload func(LoadReport)
}

// Run consumes changes until ctx is done or the watcher is stopped. Changes
// already queued are coalesced into one reload.
func (r *Reloader) Run(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-r.Watcher.Changes:
			if !ok {
				return nil
			}
			logger.Info("patch file changed", "file", change.File, "kind", change.Kind.String())
			r.drain()

			sources, err := Discover(r.Watcher.Dir)
			if err != nil {
				logger.Error("rediscovering patch files", "dir", r.Watcher.Dir, "error", err)
				continue
			}
			report := r.System.Reload(sources)
			if r.OnReload != nil {
				r.OnReload(report)
			}
		}
	}
}

func (r *Reloader) drain() {
	for {
		select {
		case _, ok := <-r.Watcher.Changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
