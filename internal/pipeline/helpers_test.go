package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	"git.home.luguber.info/inful/themebuilder/internal/registry"
	"git.home.luguber.info/inful/themebuilder/internal/reload"
	"git.home.luguber.info/inful/themebuilder/internal/sass"
)

// fakeSass returns canned CSS and fails for sources containing "@error".
type fakeSass struct {
	mu       sync.Mutex
	requests []sass.Request
	broken   error
}

func (f *fakeSass) Compile(_ context.Context, req sass.Request) (sass.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.broken != nil {
		return sass.Result{}, f.broken
	}
	if strings.Contains(req.Source, "@error") {
		return sass.Result{}, &sass.CompileError{Path: req.Path, Err: errors.New("forced failure")}
	}
	res := sass.Result{CSS: ".a {\n  color: red;\n  user-select: none;\n}\n"}
	if req.SourceMap {
		res.SourceMap = `{"version":3,"sources":["main.scss"],"names":[],"mappings":"AAAA"}`
	}
	return res, nil
}

func (f *fakeSass) Close() error { return nil }

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []reload.Kind
	paths []string
}

func (n *recordingNotifier) Reload(kind reload.Kind, paths ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	n.paths = append(n.paths, paths...)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func testOptions(t *testing.T, mode Mode) Options {
	t.Helper()
	cfg := config.Default()
	reg, err := registry.FromConfig(cfg)
	require.NoError(t, err)
	return Options{
		Root:     t.TempDir(),
		Mode:     mode,
		Config:   cfg,
		Registry: reg,
		Sass:     &fakeSass{},
	}
}
