package catalog

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher serves the catalog loaded from a file and swaps in a new one when
// the file changes. A reload that fails keeps the last good catalog.
type Watcher struct {
	path     string
	log      *zap.Logger
	current  atomic.Pointer[Catalog]
	debounce time.Duration

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	reloads atomic.Int64
	// OnReload, when set, is called after every successful reload.
	OnReload func(*Catalog)
}

// NewWatcher loads path once. The initial load must succeed.
func NewWatcher(path string, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     path,
		log:      log.Named("catalog"),
		debounce: defaultDebounce,
	}
	w.current.Store(c)
	return w, nil
}

// Current implements Provider.
func (w *Watcher) Current() *Catalog {
	return w.current.Load()
}

// Reloads returns the number of successful reloads since creation.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Reload re-reads the file now. On error the current catalog is kept.
func (w *Watcher) Reload() error {
	c, err := LoadFile(w.path)
	if err != nil {
		w.log.Warn("catalog reload rejected, keeping previous", zap.String("path", w.path), zap.Error(err))
		return err
	}
	w.current.Store(c)
	w.reloads.Add(1)
	w.log.Info("catalog reloaded",
		zap.String("path", w.path),
		zap.Int("axes", len(c.Axes)),
		zap.Int("achievements", len(c.Achievements)))
	if w.OnReload != nil {
		w.OnReload(c)
	}
	return nil
}

// Start watches the catalog's directory (editors often replace files by
// rename, which drops a watch on the file itself). Non-blocking.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.fsw = fsw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run()
	w.log.Debug("watching catalog", zap.String("path", w.path))
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	fsw := w.fsw
	w.mu.Unlock()

	<-w.doneCh
	if err := fsw.Close(); err != nil {
		w.log.Warn("close fsnotify watcher", zap.Error(err))
	}
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Editors emit bursts of events per save; reload once they settle.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.Reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("catalog watcher error", zap.Error(err))
		}
	}
}
