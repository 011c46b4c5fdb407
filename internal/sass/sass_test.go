package sass

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bep/godartsass/v2"
	"github.com/stretchr/testify/require"
)

type stubTranspiler struct {
	err    error
	closed bool
}

func (s *stubTranspiler) Execute(godartsass.Args) (godartsass.Result, error) {
	if s.err != nil {
		return godartsass.Result{}, s.err
	}
	return godartsass.Result{CSS: "a{b:c}"}, nil
}

func (s *stubTranspiler) Close() error {
	s.closed = true
	return nil
}

func TestInlineSourceMap(t *testing.T) {
	require.Equal(t, "a{}", InlineSourceMap("a{}", ""))

	out := InlineSourceMap("a{}", `{"version":3}`)
	prefix := "/*# sourceMappingURL=data:application/json;charset=utf-8;base64,"
	idx := strings.Index(out, prefix)
	require.GreaterOrEqual(t, idx, 0)

	encoded := strings.TrimSuffix(strings.TrimSpace(out[idx+len(prefix):]), " */")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.Equal(t, `{"version":3}`, string(decoded))
}

func TestCompileError_Unwraps(t *testing.T) {
	cause := errors.New("expected ';'")
	err := error(&CompileError{Path: "main.scss", Err: cause})
	require.ErrorIs(t, err, cause)
	require.Equal(t, "main.scss: expected ';'", err.Error())
}

func TestDartSass_MissingBinary(t *testing.T) {
	c := NewDartSass(filepath.Join(t.TempDir(), "no-such-sass"))
	defer func() { _ = c.Close() }()

	_, err := c.Compile(context.Background(), Request{Path: "main.scss", Source: "a{b:c}"})
	require.Error(t, err)
	var ce *CompileError
	require.False(t, errors.As(err, &ce), "a missing binary is not a stylesheet error")
}

func TestDartSass_StylesheetErrorKeepsProcess(t *testing.T) {
	stub := &stubTranspiler{err: godartsass.SassError{Message: "expected \";\"."}}
	c := NewDartSass("sass")
	c.transpiler = stub

	_, err := c.Compile(context.Background(), Request{Path: "main.scss", Source: "a{b:"})
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "main.scss", ce.Path)
	require.False(t, stub.closed)
	require.Same(t, stub, c.transpiler)
}

func TestDartSass_TransportErrorRestartsProcess(t *testing.T) {
	stub := &stubTranspiler{err: godartsass.ErrShutdown}
	c := NewDartSass(filepath.Join(t.TempDir(), "no-such-sass"))
	c.transpiler = stub

	_, err := c.Compile(context.Background(), Request{Path: "main.scss", Source: "a{b:c}"})
	require.ErrorIs(t, err, godartsass.ErrShutdown)
	var ce *CompileError
	require.False(t, errors.As(err, &ce), "a dead compiler is not a stylesheet error")
	require.True(t, stub.closed)
	require.Nil(t, c.transpiler)

	// The next call tries to start a new process instead of reusing the dead one.
	_, err = c.Compile(context.Background(), Request{Path: "main.scss", Source: "a{b:c}"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "start dart sass")
}

func TestLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, logLevel(godartsass.LogEventTypeDebug))
	require.Equal(t, slog.LevelWarn, logLevel(godartsass.LogEventTypeWarning))
	require.Equal(t, slog.LevelWarn, logLevel(godartsass.LogEventTypeDeprecated))
}

func TestDartSass_CompilesWithImports(t *testing.T) {
	bin, err := exec.LookPath("sass")
	if err != nil {
		t.Skip("sass binary not installed")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_vars.scss"), []byte("$brand: #123456;\n"), 0o600))
	entry := filepath.Join(dir, "main.scss")
	src := "@use 'vars';\n.a { color: vars.$brand; }\n"

	c := NewDartSass(bin)
	defer func() { _ = c.Close() }()

	res, err := c.Compile(context.Background(), Request{Path: entry, Source: src, SourceMap: true})
	require.NoError(t, err)
	require.Contains(t, res.CSS, "#123456")
	require.NotEmpty(t, res.SourceMap)

	_, err = c.Compile(context.Background(), Request{Path: entry, Source: ".a { color: ; "})
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}
