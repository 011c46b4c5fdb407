// Package sass compiles SCSS entry points through Dart Sass.
//
// Compilation uses the Dart Sass embedded protocol via godartsass, which
// keeps one long-lived sass process per Compiler instead of spawning one per
// file.
package sass

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
)

// Request describes one entry point to compile.
type Request struct {
	// Path is the entry point location on disk; relative imports resolve from its directory.
	Path         string
	Source       string
	IncludePaths []string
	SourceMap    bool
}

// Result is the compiled stylesheet.
type Result struct {
	CSS string
	// SourceMap is the JSON source map, empty unless requested.
	SourceMap string
}

// Compiler turns SCSS into CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) (Result, error)
	Close() error
}

// CompileError is a syntax or semantic error reported by the compiler for one
// entry point. It never indicates a broken compiler.
type CompileError struct {
	Path string
	Err  error
}

func (e *CompileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *CompileError) Unwrap() error { return e.Err }

// transpiler is the part of *godartsass.Transpiler that DartSass uses.
type transpiler interface {
	Execute(args godartsass.Args) (godartsass.Result, error)
	Close() error
}

// DartSass is a Compiler backed by the sass executable. The process is
// started on first use and restarted after a transport failure.
type DartSass struct {
	binary string

	mu         sync.Mutex
	transpiler transpiler
}

// NewDartSass returns a compiler that runs binary ("sass" when empty).
func NewDartSass(binary string) *DartSass {
	if binary == "" {
		binary = "sass"
	}
	return &DartSass{binary: binary}
}

func (d *DartSass) start() (transpiler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler != nil {
		return d.transpiler, nil
	}
	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: d.binary,
		LogEventHandler: func(e godartsass.LogEvent) {
			slog.Log(context.Background(), logLevel(e.Type), "sass: "+e.Message, "binary", d.binary)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start dart sass %q: %w", d.binary, err)
	}
	d.transpiler = t
	return t, nil
}

// discard drops t after a transport failure so the next Compile starts a
// fresh process.
func (d *DartSass) discard(t transpiler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler != t {
		return
	}
	d.transpiler = nil
	if err := t.Close(); err != nil && !errors.Is(err, godartsass.ErrShutdown) {
		slog.Debug("Closing failed sass process", "binary", d.binary, "error", err)
	}
}

func logLevel(t godartsass.LogEventType) slog.Level {
	if t == godartsass.LogEventTypeDebug {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// Compile implements Compiler. Errors from the stylesheet itself are returned
// as *CompileError; anything else means the compiler is unusable.
func (d *DartSass) Compile(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	t, err := d.start()
	if err != nil {
		return Result{}, err
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return Result{}, err
	}
	res, err := t.Execute(godartsass.Args{
		Source:                  req.Source,
		URL:                     (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		SourceSyntax:            godartsass.SourceSyntaxSCSS,
		OutputStyle:             godartsass.OutputStyleExpanded,
		IncludePaths:            append([]string{filepath.Dir(abs)}, req.IncludePaths...),
		EnableSourceMap:         req.SourceMap,
		SourceMapIncludeSources: req.SourceMap,
	})
	if err != nil {
		var se godartsass.SassError
		if errors.As(err, &se) {
			return Result{}, &CompileError{Path: req.Path, Err: err}
		}
		d.discard(t)
		return Result{}, fmt.Errorf("dart sass %q: %w", d.binary, err)
	}
	return Result{CSS: res.CSS, SourceMap: res.SourceMap}, nil
}

// Close stops the sass process.
func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler == nil {
		return nil
	}
	err := d.transpiler.Close()
	d.transpiler = nil
	return err
}

// InlineSourceMap appends map to css as a base64 data URL comment.
func InlineSourceMap(css, sourceMap string) string {
	if sourceMap == "" {
		return css
	}
	return css + "\n/*# sourceMappingURL=data:application/json;charset=utf-8;base64," +
		base64.StdEncoding.EncodeToString([]byte(sourceMap)) + " */\n"
}
