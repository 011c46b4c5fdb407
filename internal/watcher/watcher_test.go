package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	"git.home.luguber.info/inful/themebuilder/internal/registry"
)

type recorder struct {
	mu     sync.Mutex
	calls  []string
	events chan string
}

func newRecorder() *recorder { return &recorder{events: make(chan string, 64)} }

func (r *recorder) action(_ context.Context, group string) error {
	r.mu.Lock()
	r.calls = append(r.calls, group)
	r.mu.Unlock()
	r.events <- group
	if group == registry.Scripts {
		return errors.New("bundle failed")
	}
	return nil
}

func (r *recorder) count(group string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == group {
			n++
		}
	}
	return n
}

func expectGroup(t *testing.T, rec *recorder, group string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case g := <-rec.events:
			if g == group {
				return
			}
		case <-deadline:
			t.Fatalf("no %s rebuild", group)
		}
	}
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func startWatcher(t *testing.T) (string, *recorder) {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"src/assets/scss", "src/assets/js", "src/assets/images", "dist/assets/css", "node_modules/jquery"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	cfg := config.Default()
	reg, err := registry.FromConfig(cfg)
	require.NoError(t, err)

	rec := newRecorder()
	w, err := New(Options{
		Root:     root,
		Registry: reg,
		Action:   rec.action,
		Debounce: 40 * time.Millisecond,
		Ignore:   cfg.Watch.Ignore,
		Skip:     []string{cfg.Output, cfg.Package.Dir},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	select {
	case <-w.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("watcher not ready")
	}
	return root, rec
}

func TestWatcher_MapsChangesToGroups(t *testing.T) {
	root, rec := startWatcher(t)

	write(t, root, "src/assets/scss/_variables.scss", "$x: 1;")
	expectGroup(t, rec, registry.Styles)

	write(t, root, "header.php", "<?php ?>")
	expectGroup(t, rec, registry.Templates)

	write(t, root, "src/assets/fonts/icon.woff", "font")
	expectGroup(t, rec, registry.Other)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root, rec := startWatcher(t)

	for i := 0; i < 5; i++ {
		write(t, root, "src/assets/scss/main.scss", ".a{}")
	}
	expectGroup(t, rec, registry.Styles)
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 1, rec.count(registry.Styles))
}

func TestWatcher_ErrorsDoNotStopWatching(t *testing.T) {
	root, rec := startWatcher(t)

	write(t, root, "src/assets/js/bundle.js", "broken(")
	expectGroup(t, rec, registry.Scripts)

	write(t, root, "src/assets/js/bundle.js", "fixed()")
	expectGroup(t, rec, registry.Scripts)
}

func TestWatcher_NewDirectoriesAreWatched(t *testing.T) {
	root, rec := startWatcher(t)

	write(t, root, "src/assets/images/icons/logo.svg", "<svg/>")
	expectGroup(t, rec, registry.Images)

	write(t, root, "src/assets/images/icons/menu.png", "png")
	expectGroup(t, rec, registry.Images)
}

func TestWatcher_DotfileSourcesTriggerRebuild(t *testing.T) {
	root, rec := startWatcher(t)

	write(t, root, "src/assets/.htaccess", "Deny from all")
	expectGroup(t, rec, registry.Other)
}

func TestWatcher_IgnoresOutputAndVendorDirs(t *testing.T) {
	root, rec := startWatcher(t)

	write(t, root, "dist/assets/css/main.php", "<?php ?>")
	write(t, root, "node_modules/jquery/index.php", "<?php ?>")
	write(t, root, "src/assets/scss/.main.scss.swp", "swap")
	time.Sleep(250 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Empty(t, rec.calls)
}

func TestShouldIgnoreFile(t *testing.T) {
	for _, name := range []string{".#main.scss", ".DS_Store", "main.scss~", "a.swp", ".main.scss.swx", "#main.scss#", "4913"} {
		require.True(t, shouldIgnoreFile(name), name)
	}
	for _, name := range []string{"main.scss", ".htaccess", "src/assets/.well-known/security.txt"} {
		require.False(t, shouldIgnoreFile(name), name)
	}
}

func TestNew_RequiresAction(t *testing.T) {
	_, err := New(Options{Root: t.TempDir()})
	require.Error(t, err)
}
