// Package watcher maps filesystem changes to registry groups and re-runs the
// work attached to each group.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/registry"
)

// DefaultDebounce coalesces editor save bursts.
const DefaultDebounce = 300 * time.Millisecond

// Action rebuilds one group. Errors are logged; they never stop the watcher.
type Action func(ctx context.Context, group string) error

// Options configures a Watcher.
type Options struct {
	// Root is the absolute project root.
	Root     string
	Registry *registry.Registry
	Action   Action
	Debounce time.Duration
	// Ignore lists directory names that are never descended into.
	Ignore []string
	// Skip lists project-relative directories (output, package dir) whose
	// changes are never reported.
	Skip []string
}

// Watcher watches the project tree recursively.
type Watcher struct {
	opts  Options
	ready chan struct{}

	mu      sync.Mutex
	runners map[string]*groupRunner
}

// New validates opts.
func New(opts Options) (*Watcher, error) {
	if opts.Registry == nil || opts.Action == nil || opts.Root == "" {
		return nil, ferrors.InternalError("watcher needs a root, a registry and an action").Build()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	skip := make([]string, 0, len(opts.Skip))
	for _, s := range opts.Skip {
		s = filepath.ToSlash(filepath.Clean(s))
		if s != "." && s != "" {
			skip = append(skip, s)
		}
	}
	opts.Skip = skip
	return &Watcher{opts: opts, ready: make(chan struct{}), runners: map[string]*groupRunner{}}, nil
}

// Ready is closed once the initial directory tree is being watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx is cancelled and then waits for in-flight actions.
// A Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWatch, "create file watcher").Fatal().Build()
	}
	defer func() { _ = fw.Close() }()

	dirs := w.addRecursive(fw, w.opts.Root, nil)
	close(w.ready)
	slog.Info("Watching for changes", logfields.Path(w.opts.Root), slog.Int("dirs", dirs))

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, &wg, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, wg *sync.WaitGroup, fw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || shouldIgnoreFile(ev.Name) {
		return
	}
	rel, ok := w.rel(ev.Name)
	if !ok || w.skipped(rel) {
		return
	}
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			// Files created together with the directory may predate the watch.
			w.addRecursive(fw, ev.Name, func(p string) { w.dispatch(ctx, wg, p) })
			return
		}
	}
	slog.Debug("File change detected", logfields.Path(rel), slog.String("op", ev.Op.String()))
	w.dispatch(ctx, wg, rel)
}

func (w *Watcher) dispatch(ctx context.Context, wg *sync.WaitGroup, rel string) {
	for _, g := range w.opts.Registry.Match(rel) {
		w.runner(ctx, wg, g.Name).trigger()
	}
}

func (w *Watcher) runner(ctx context.Context, wg *sync.WaitGroup, group string) *groupRunner {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.runners[group]
	if !ok {
		r = newGroupRunner(group, w.opts.Debounce)
		w.runners[group] = r
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx, w.opts.Action)
		}()
	}
	return r
}

// addRecursive watches root and every directory below it that is not
// ignored. onFile, when set, receives the project-relative path of every
// regular file found.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string, onFile func(rel string)) int {
	count := 0
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, ok := w.rel(p)
		if !ok {
			return nil
		}
		if d.IsDir() {
			if rel != "." && (w.ignoredDir(d.Name()) || w.skipped(rel)) {
				return filepath.SkipDir
			}
			if err := fw.Add(p); err != nil {
				slog.Warn("Watch add failed", logfields.Path(rel), logfields.Error(err))
				return nil
			}
			count++
			return nil
		}
		if onFile != nil && !shouldIgnoreFile(p) {
			onFile(rel)
		}
		return nil
	})
	return count
}

func (w *Watcher) rel(p string) (string, bool) {
	rel, err := filepath.Rel(w.opts.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) ignoredDir(name string) bool {
	for _, ig := range w.opts.Ignore {
		if name == ig {
			return true
		}
	}
	return false
}

func (w *Watcher) skipped(rel string) bool {
	for _, s := range w.opts.Skip {
		if rel == s || strings.HasPrefix(rel, s+"/") {
			return true
		}
	}
	for _, part := range strings.Split(path.Dir(rel), "/") {
		if part != "." && w.ignoredDir(part) {
			return true
		}
	}
	return false
}

// shouldIgnoreFile reports editor temp, swap and lock files. Other dotfiles
// such as .htaccess are real sources and are not ignored.
func shouldIgnoreFile(p string) bool {
	base := filepath.Base(p)
	switch {
	case strings.HasPrefix(base, ".#"),
		strings.HasPrefix(base, ".goutputstream-"),
		base == ".DS_Store",
		strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"),
		base == "Thumbs.db",
		base == "4913":
		return true
	}
	return false
}

// groupRunner debounces triggers for one group and runs its action at most
// once at a time. A trigger arriving while the action runs queues exactly
// one more run.
type groupRunner struct {
	group    string
	debounce time.Duration
	req      chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

func newGroupRunner(group string, debounce time.Duration) *groupRunner {
	return &groupRunner{group: group, debounce: debounce, req: make(chan struct{}, 1)}
}

func (r *groupRunner) trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		select {
		case r.req <- struct{}{}:
		default:
		}
	})
}

func (r *groupRunner) work(ctx context.Context, action Action) {
	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			if r.timer != nil {
				r.timer.Stop()
			}
			r.mu.Unlock()
			return
		case <-r.req:
			start := time.Now()
			if err := safeRun(ctx, action, r.group); err != nil {
				slog.Warn("Rebuild failed", logfields.Group(r.group), logfields.Error(err))
				continue
			}
			slog.Info("Rebuilt", logfields.Group(r.group), logfields.Duration(time.Since(start)))
		}
	}
}

func safeRun(ctx context.Context, action Action, group string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in %s rebuild: %v", group, rec)
		}
	}()
	return action(ctx, group)
}
