// Package watch reruns tasks when source files change.
//
// Every filesystem event is matched against each rule's globs. A match
// starts the rule in its own goroutine and returns immediately: there is
// no debouncing, and a rule may run several times concurrently when
// changes arrive faster than it completes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/yacobolo/assetpipe/internal/console"
)

var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Rule maps source globs to the task that rebuilds them.
type Rule struct {
	Name     string
	Patterns []string
	Run      func(ctx context.Context) error
}

// Watcher dispatches file changes to rules.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	rules   []compiledRule
	paths   map[string]bool
	log     *console.Logger

	closed   bool
	closeCh  chan struct{}
	inflight sync.WaitGroup
}

type compiledRule struct {
	Rule
	globs []string // absolute, slash-separated
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger used for change and error reports.
func WithLogger(log *console.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

// New watches every directory below roots and prepares rules. Events are
// only processed once Run is called.
func New(roots []string, rules []Rule, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		watcher: fsw,
		paths:   make(map[string]bool),
		log:     console.Discard(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, r := range rules {
		cr := compiledRule{Rule: r}
		for _, p := range r.Patterns {
			abs, err := filepath.Abs(p)
			if err != nil {
				_ = fsw.Close()
				return nil, fmt.Errorf("rule %s: %w", r.Name, err)
			}
			glob := filepath.ToSlash(abs)
			if !doublestar.ValidatePattern(glob) {
				_ = fsw.Close()
				return nil, fmt.Errorf("rule %s: invalid pattern %q", r.Name, p)
			}
			cr.globs = append(cr.globs, glob)
		}
		w.rules = append(w.rules, cr)
	}

	for _, root := range roots {
		if err := w.watchRecursive(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// watchRecursive adds dir and all its subdirectories.
func (w *Watcher) watchRecursive(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrPathNotExist, dir)
		}
		return err
	}
	if !info.IsDir() {
		return w.add(abs)
	}

	return filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if d.IsDir() {
			if err := w.add(p); err != nil {
				w.log.Warnf("watch: %s: %v", p, err)
			}
		}
		return nil
	})
}

func (w *Watcher) add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.paths[path] = true
	return nil
}

// WatchedPaths returns the number of watched directories.
func (w *Watcher) WatchedPaths() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.paths)
}

// Match returns the names of the rules whose globs match path.
func (w *Watcher) Match(path string) []string {
	var names []string
	for _, r := range w.matching(path) {
		names = append(names, r.Name)
	}
	return names
}

func (w *Watcher) matching(path string) []compiledRule {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	name := filepath.ToSlash(abs)

	var out []compiledRule
	for _, r := range w.rules {
		for _, g := range r.globs {
			if ok, _ := doublestar.Match(g, name); ok {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Run processes events until ctx is canceled or Close is called, then
// waits for the task runs it started.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return nil
		case <-w.closeCh:
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("watch: %v", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.watchRecursive(ev.Name); err != nil && !errors.Is(err, ErrWatcherClosed) {
				w.log.Warnf("watch: %v", err)
			}
		}
	}

	for _, r := range w.matching(ev.Name) {
		w.log.Debugf("watch: %s %s, running '%s'", ev.Op, ev.Name, r.Name)
		w.dispatch(ctx, r.Rule)
	}
}

// dispatch starts a rule without waiting for it.
func (w *Watcher) dispatch(ctx context.Context, r Rule) {
	if r.Run == nil {
		return
	}
	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		// Failures are reported by the task runner's observers.
		_ = r.Run(ctx)
	}()
}

// Close stops event processing and releases the watches. It is safe to
// call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	return w.watcher.Close()
}
