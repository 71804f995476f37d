// Package watch implements ports.Watchable with fsnotify.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/bale/internal/logging"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultIgnore skips dependency and output folders plus editor droppings.
var DefaultIgnore = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/.tmp-*",
	"**/*~",
}

// Watcher watches a directory tree and reports changed files after a quiet period.
type Watcher struct {
	root     string
	ignore   []string
	debounce time.Duration
	tick     time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

type Option func(*Watcher)

// WithIgnore adds doublestar patterns, matched against root-relative slash paths.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) {
		w.ignore = append(w.ignore, patterns...)
	}
}

// WithDebounce sets how long a path must stay quiet before it is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
			if d/2 < w.tick {
				w.tick = d / 2
			}
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New creates a watcher for root.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:     filepath.Clean(root),
		ignore:   append([]string(nil), DefaultIgnore...),
		debounce: 100 * time.Millisecond,
		tick:     50 * time.Millisecond,
		logger:   logging.NewNop(),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ignored reports whether an absolute native path matches an ignore pattern.
func (w *Watcher) Ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// directories match their own "dir/**" pattern
		if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
			return true
		}
	}
	return false
}

// Watch starts watching and returns a channel of changed slash paths.
// The channel is closed when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.addTree(fw, w.root); err != nil {
		_ = fw.Close()
		return nil, err
	}

	out := make(chan string, 16)
	go w.eventLoop(ctx, fw)
	go w.debounceLoop(ctx, fw, out)

	w.logger.Debug("watching for changes", "root", w.root)
	return out, nil
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.Ignored(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) eventLoop(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event) {
	if w.Ignored(event.Name) {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "err", err)
			}
			return
		}
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.logger.Debug("file event", "op", event.Op.String(), "path", event.Name)

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) debounceLoop(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	defer close(out)
	defer fw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range w.due() {
				select {
				case out <- filepath.ToSlash(p):
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// due pops the paths that have been quiet for the debounce delay, sorted.
func (w *Watcher) due() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var ready []string
	for p, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, p)
			delete(w.pending, p)
		}
	}
	sort.Strings(ready)
	return ready
}
