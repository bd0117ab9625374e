package contract

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/wardsync/pkg/log"
)

// DefaultDebounceDelay is the quiet period after a manifest change before
// it is reloaded.
const DefaultDebounceDelay = 100 * time.Millisecond

// Watcher reloads the route manifest into a Contract when the file changes.
// A manifest that fails to parse leaves the previous table in place.
type Watcher struct {
	path     string
	contract *Contract
	delay    time.Duration
	logger   log.Logger
	onReload func(*RouteTable, error)

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for the manifest at path.
// onReload, if set, is called after every reload attempt.
func NewWatcher(path string, c *Contract, delay time.Duration, logger log.Logger, onReload func(*RouteTable, error)) *Watcher {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		path:     path,
		contract: c,
		delay:    delay,
		logger:   logger,
		onReload: onReload,
	}
}

// Run watches the manifest's directory until ctx is canceled. Watching the
// directory rather than the file survives editors that replace the file.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	defer w.stopDebounce()

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.scheduleReload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("routes watcher error", log.Err(err))
		}
	}
}

// Reload reads the manifest now.
func (w *Watcher) Reload() error {
	t, err := LoadRoutes(w.path)
	if err != nil {
		w.logger.Warn("routes reload failed, keeping previous table",
			log.String("path", w.path),
			log.Err(err),
		)
	} else {
		w.contract.SetRoutes(t)
		w.logger.Info("routes reloaded",
			log.String("path", w.path),
			log.Int("routes", t.Len()),
		)
	}
	if w.onReload != nil {
		w.onReload(t, err)
	}
	return err
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, func() {
		_ = w.Reload()
	})
}

func (w *Watcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}
