package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/glob"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/metrics"
	"git.home.luguber.info/inful/themebuilder/internal/registry"
	"git.home.luguber.info/inful/themebuilder/internal/reload"
	"git.home.luguber.info/inful/themebuilder/internal/sass"
)

// Mode selects development or production output.
type Mode int

const (
	ModeDevelopment Mode = iota
	ModeProduction
)

// ModeFor maps the --prod flag to a Mode.
func ModeFor(production bool) Mode {
	if production {
		return ModeProduction
	}
	return ModeDevelopment
}

func (m Mode) String() string {
	if m == ModeProduction {
		return "production"
	}
	return "development"
}

// Production reports whether m is ModeProduction.
func (m Mode) Production() bool { return m == ModeProduction }

// Options carries everything a pipeline needs.
type Options struct {
	// Root is the absolute project root.
	Root     string
	Mode     Mode
	Config   *config.Config
	Registry *registry.Registry
	// Sass is required by Styles only.
	Sass     sass.Compiler
	Recorder metrics.Recorder
	Notifier reload.Notifier
}

// Report summarizes one pipeline run.
type Report struct {
	Group string
	// Written lists the project-relative output files, in source order.
	Written []string
	// Warnings are non-fatal per-file problems.
	Warnings []error
}

// Func is the signature shared by all asset pipelines.
type Func func(ctx context.Context, opts Options) (*Report, error)

// ForGroup returns the pipeline that builds the named registry group.
func ForGroup(name string) (Func, bool) {
	switch name {
	case registry.Styles:
		return Styles, true
	case registry.Scripts:
		return Scripts, true
	case registry.Images:
		return Images, true
	case registry.Other:
		return Copy, true
	default:
		return nil, false
	}
}

func (o Options) recorder() metrics.Recorder { return metrics.OrNoop(o.Recorder) }

func (o Options) notifier() reload.Notifier { return reload.OrNop(o.Notifier) }

// sources resolves the group and expands its source patterns.
func (o Options) sources(name string) (registry.Group, []glob.File, error) {
	if o.Registry == nil {
		return registry.Group{}, nil, ferrors.InternalError("pipeline run without a registry").Build()
	}
	g, ok := o.Registry.Lookup(name)
	if !ok {
		return registry.Group{}, nil, ferrors.NewError(ferrors.CategoryNotFound, "unknown registry group").
			WithContext("group", name).Build()
	}
	files, err := o.Registry.Files(os.DirFS(o.Root), name)
	if err != nil {
		return g, nil, ferrors.FileSystemError("expand sources").WithCause(err).
			WithContext("group", name).Build()
	}
	return g, files, nil
}

func (o Options) abs(rel string) string {
	return filepath.Join(o.Root, filepath.FromSlash(rel))
}

// output returns the project-relative output path for rel inside g.Dest.
func output(g registry.Group, rel string) string {
	return filepath.ToSlash(filepath.Join(filepath.FromSlash(g.Dest), filepath.FromSlash(rel)))
}

func (o Options) write(rel string, data []byte, perm fs.FileMode) error {
	target := o.abs(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return ferrors.FileSystemError("create output directory").WithCause(err).
			WithContext("path", rel).Build()
	}
	if err := os.WriteFile(target, data, perm); err != nil {
		return ferrors.FileSystemError("write output file").WithCause(err).
			WithContext("path", rel).Build()
	}
	return nil
}

func (o Options) read(rel string) ([]byte, fs.FileMode, error) {
	path := o.abs(rel)
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, ferrors.FileSystemError("stat source file").WithCause(err).
			WithContext("path", rel).Build()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, ferrors.FileSystemError("read source file").WithCause(err).
			WithContext("path", rel).Build()
	}
	return data, info.Mode().Perm(), nil
}

func (r *Report) finish(o Options) {
	o.recorder().AddFilesWritten(r.Group, len(r.Written))
	slog.Debug("Pipeline finished",
		logfields.Group(r.Group),
		logfields.Mode(o.Mode.String()),
		logfields.Files(len(r.Written)),
		slog.Int("warnings", len(r.Warnings)))
}

func (r *Report) warn(err *ferrors.ClassifiedError) {
	r.Warnings = append(r.Warnings, err)
	slog.LogAttrs(context.Background(), slog.LevelWarn, err.Message(), err.LogAttrs()...)
}

func (r *Report) String() string {
	return fmt.Sprintf("%s: %d written, %d warnings", r.Group, len(r.Written), len(r.Warnings))
}
