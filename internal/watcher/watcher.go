// Package watcher re-ingests corpus sources when their directories change.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// Watcher watches one directory per source and invokes the callback with the
// source ID when any file under it is created, written, renamed, or removed.
// Events are debounced per source: a burst of file writes (e.g. copying a
// corpus in) triggers a single re-ingestion.
type Watcher struct {
	roots      map[string]string // directory root -> source ID
	extensions []string
	onChanged  func(sourceID string)
	debounce   time.Duration

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	debounceMap map[string]*time.Timer // source ID -> pending timer
	started     bool
	done        chan struct{}
	stopOnce    sync.Once
	logger      *zap.Logger // optional; when set, logs debug events
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the per-source debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher. roots maps each watched directory to its
// source ID; extensions filter which file events count (empty = all).
func NewWatcher(roots map[string]string, extensions []string, onChanged func(sourceID string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:       roots,
		extensions:  extensions,
		onChanged:   onChanged,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Each root and its subdirectories are registered recursively.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	for root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Debug("watcher started", zap.Int("roots", len(w.roots)))
	}
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// run drains fsnotify until shutdown. The watcher is passed in rather than
// read from the struct so Stop clearing the field cannot race the select.
func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	// New subdirectories must be watched before their files produce events.
	if ev.Op&fsnotify.Create != 0 {
		w.mu.Lock()
		if w.watcher != nil {
			_ = w.addRecursive(ev.Name)
		}
		w.mu.Unlock()
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !w.extensionMatches(ev.Name) {
		return
	}
	sourceID := w.sourceFor(ev.Name)
	if sourceID == "" {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event",
			zap.String("path", ev.Name),
			zap.String("source_id", sourceID),
			zap.String("op", ev.Op.String()),
		)
	}
	w.scheduleReingest(sourceID)
}

// extensionMatches returns true for directories (no extension check possible
// on removed paths) and files with a configured extension.
func (w *Watcher) extensionMatches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" || len(w.extensions) == 0 {
		return true
	}
	for _, allowed := range w.extensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (w *Watcher) sourceFor(path string) string {
	for root, sourceID := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return sourceID
		}
	}
	return ""
}

func (w *Watcher) scheduleReingest(sourceID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounceMap[sourceID]; ok {
		timer.Stop()
	}
	w.debounceMap[sourceID] = time.AfterFunc(w.debounce, func() {
		w.onChanged(sourceID)
	})
}

// Stop stops the watcher and cancels pending re-ingestions.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		close(w.done)
		for _, timer := range w.debounceMap {
			timer.Stop()
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
			w.watcher = nil
		}
		w.started = false
	})
}
