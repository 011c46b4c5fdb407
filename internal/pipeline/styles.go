package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/registry"
	"git.home.luguber.info/inful/themebuilder/internal/reload"
	"git.home.luguber.info/inful/themebuilder/internal/sass"
)

// Styles compiles every SCSS entry point of the styles group.
//
// A stylesheet that fails to compile is logged and skipped; the remaining
// entry points are still built and no error is returned for it. An error is
// returned only when the compiler itself is unusable or output cannot be
// written. Each written stylesheet is announced as a CSS reload.
func Styles(ctx context.Context, opts Options) (*Report, error) {
	g, files, err := opts.sources(registry.Styles)
	if err != nil {
		return nil, err
	}
	report := &Report{Group: g.Name}
	if len(files) == 0 {
		report.finish(opts)
		return report, nil
	}
	if opts.Sass == nil {
		return report, ferrors.InternalError("styles pipeline without a sass compiler").Build()
	}

	engines, err := styleEngines(opts)
	if err != nil {
		return report, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid styles.browsers").Fatal().Build()
	}
	includes := make([]string, 0, len(opts.Config.Styles.IncludePaths))
	for _, p := range opts.Config.Styles.IncludePaths {
		includes = append(includes, opts.abs(p))
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		src, _, err := opts.read(f.Path)
		if err != nil {
			return report, err
		}
		res, err := opts.Sass.Compile(ctx, sass.Request{
			Path:         opts.abs(f.Path),
			Source:       string(src),
			IncludePaths: includes,
			SourceMap:    !opts.Mode.Production(),
		})
		if err != nil {
			var ce *sass.CompileError
			if !errors.As(err, &ce) {
				return report, ferrors.StyleError("sass compiler failed").WithCause(err).
					Fatal().WithContext("entry", f.Path).Build()
			}
			report.warn(ferrors.StyleError("stylesheet did not compile").WithCause(err).
				WithContext("entry", f.Path).Build())
			continue
		}

		css, err := postprocessCSS(res, f.Path, engines, opts.Mode)
		if err != nil {
			report.warn(ferrors.StyleError("stylesheet post-processing failed").WithCause(err).
				WithContext("entry", f.Path).Build())
			continue
		}

		out := output(g, strings.TrimSuffix(f.Rel, path.Ext(f.Rel))+".css")
		if err := opts.write(out, css, 0o644); err != nil {
			return report, err
		}
		slog.Info("Compiled stylesheet", logfields.Entry(f.Path), logfields.Dest(out), logfields.Bytes(len(css)))
		report.Written = append(report.Written, out)
	}

	if len(report.Written) > 0 {
		opts.notifier().Reload(reload.CSS, report.Written...)
	}
	report.finish(opts)
	return report, nil
}

// styleEngines returns the browser targets for the mode. Production adds
// the legacy browsers so minification never emits syntax they cannot parse.
func styleEngines(opts Options) ([]api.Engine, error) {
	targets := append([]string(nil), opts.Config.Styles.Browsers...)
	if opts.Mode.Production() {
		targets = append(targets, opts.Config.Styles.LegacyBrowsers...)
	}
	return parseEngines(targets)
}

// postprocessCSS prefixes the compiled CSS for the target browsers, then
// minifies it in production or inlines the source map otherwise.
func postprocessCSS(res sass.Result, entry string, engines []api.Engine, mode Mode) ([]byte, error) {
	input := res.CSS
	tr := api.TransformOptions{
		Loader:     api.LoaderCSS,
		Sourcefile: filepath.ToSlash(entry),
		Engines:    engines,
		LogLevel:   api.LogLevelSilent,
	}
	if mode.Production() {
		tr.MinifyWhitespace = true
		tr.MinifySyntax = true
	} else {
		input = sass.InlineSourceMap(res.CSS, res.SourceMap)
		tr.Sourcemap = api.SourceMapInline
	}
	result := api.Transform(input, tr)
	if len(result.Errors) > 0 {
		return nil, errors.New(formatMessages(result.Errors, api.ErrorMessage))
	}
	return result.Code, nil
}
