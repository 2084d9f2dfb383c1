package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileWatcher polls a file's modification time and invokes callbacks when it
// changes.
type FileWatcher struct {
	path     string
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	callbacks []func(path string)
	running   bool
	stop      chan struct{}
	wg        sync.WaitGroup

	lastMod time.Time
}

// NewFileWatcher creates a watcher for the given path. The interval bounds
// detection latency; it never goes below 100ms.
func NewFileWatcher(path string, interval time.Duration, logger *zap.Logger) *FileWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return &FileWatcher{
		path:     path,
		interval: interval,
		logger:   logger.With(zap.String("component", "file_watcher"), zap.String("path", path)),
		stop:     make(chan struct{}),
	}
}

// OnChange registers a callback invoked after each detected change.
func (w *FileWatcher) OnChange(cb func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins polling until ctx is cancelled or Stop is called. Idempotent.
func (w *FileWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
	}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
	w.logger.Info("file watcher started", zap.Duration("interval", w.interval))
}

// Stop halts polling and waits for the poll loop to exit. Idempotent.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *FileWatcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		// Transient during atomic replace; picked up next tick.
		return
	}

	w.mu.Lock()
	changed := info.ModTime().After(w.lastMod)
	if changed {
		w.lastMod = info.ModTime()
	}
	callbacks := w.callbacks
	w.mu.Unlock()

	if !changed {
		return
	}
	w.logger.Info("file changed")
	for _, cb := range callbacks {
		cb(w.path)
	}
}
