package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/glob"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/registry"
)

const globalsNamespace = "themebuilder-global"

// Scripts bundles every entry point of the scripts group into
// <dest>/<basename>.js, flattening any directories below the pattern base.
// Files inside scripts.vendor_dir are never entry points.
//
// Entry points build concurrently and independently. Nothing is written for
// an entry that fails, and any failure makes the whole run fail.
func Scripts(ctx context.Context, opts Options) (*Report, error) {
	g, files, err := opts.sources(registry.Scripts)
	if err != nil {
		return nil, err
	}
	files = dropVendored(files, opts.Config.Scripts.VendorDir)
	report := &Report{Group: g.Name}
	if err := checkScriptNames(files); err != nil {
		return report, err
	}
	target, err := parseTarget(opts.Config.Scripts.Target)
	if err != nil {
		return report, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid scripts.target").Fatal().Build()
	}

	type outcome struct {
		out string
		err error
	}
	results := make([]outcome, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f glob.File) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return
			}
			out := output(g, scriptName(f)+".js")
			results[i] = outcome{out: out, err: bundle(opts, f, out, target)}
		}(i, f)
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		report.Written = append(report.Written, r.out)
	}
	report.finish(opts)
	return report, errors.Join(errs...)
}

func bundle(opts Options, entry glob.File, out string, target api.Target) error {
	build := api.BuildOptions{
		EntryPoints:   []string{opts.abs(entry.Path)},
		Outfile:       opts.abs(out),
		AbsWorkingDir: opts.Root,
		Bundle:        true,
		Write:         false,
		Format:        api.FormatIIFE,
		Platform:      api.PlatformBrowser,
		Target:        target,
		LogLevel:      api.LogLevelSilent,
	}
	if opts.Mode.Production() {
		build.MinifyWhitespace = true
		build.MinifyIdentifiers = true
		build.MinifySyntax = true
	} else {
		build.Sourcemap = api.SourceMapInline
	}
	if p, ok := globalsPlugin(opts.Config.Scripts.Globals); ok {
		build.Plugins = []api.Plugin{p}
	}

	result := api.Build(build)
	if len(result.Errors) > 0 {
		return ferrors.ScriptError("bundle failed").
			WithCause(errors.New(formatMessages(result.Errors, api.ErrorMessage))).
			WithContext("entry", entry.Path).
			Build()
	}
	for _, w := range result.Warnings {
		slog.Warn("Bundler warning", logfields.Entry(entry.Path), slog.String("message", w.Text))
	}

	var written int
	for _, f := range result.OutputFiles {
		rel, err := filepath.Rel(opts.Root, f.Path)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "bundler wrote outside the project").Build()
		}
		if err := opts.write(filepath.ToSlash(rel), f.Contents, 0o644); err != nil {
			return err
		}
		written += len(f.Contents)
	}
	slog.Info("Bundled script", logfields.Entry(entry.Path), logfields.Dest(out), logfields.Bytes(written))
	return nil
}

// dropVendored removes files that live in a vendor directory at any depth.
func dropVendored(files []glob.File, vendorDir string) []glob.File {
	dir := strings.Trim(glob.Normalize(vendorDir), "/")
	if dir == "" {
		return files
	}
	kept := files[:0:0]
	for _, f := range files {
		if strings.Contains("/"+f.Path, "/"+dir+"/") {
			slog.Debug("Skipping vendored script", logfields.Entry(f.Path))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// checkScriptNames rejects entry points that would overwrite each other.
func checkScriptNames(files []glob.File) error {
	seen := make(map[string]string, len(files))
	for _, f := range files {
		name := scriptName(f)
		if prev, ok := seen[name]; ok {
			return ferrors.ValidationError(fmt.Sprintf("script entry points %s and %s both produce %s.js", prev, f.Path, name)).Build()
		}
		seen[name] = f.Path
	}
	return nil
}

func scriptName(f glob.File) string {
	base := path.Base(f.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// globalsPlugin resolves each configured module to the global the page
// already provides, e.g. "jquery" to window.jQuery, instead of bundling it.
func globalsPlugin(globals map[string]string) (api.Plugin, bool) {
	if len(globals) == 0 {
		return api.Plugin{}, false
	}
	names := make([]string, 0, len(globals))
	for mod := range globals {
		names = append(names, regexp.QuoteMeta(mod))
	}
	sort.Strings(names)
	filter := "^(" + strings.Join(names, "|") + ")$"

	return api.Plugin{
		Name: "globals",
		Setup: func(b api.PluginBuild) {
			b.OnResolve(api.OnResolveOptions{Filter: filter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{Path: args.Path, Namespace: globalsNamespace}, nil
			})
			b.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: globalsNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				contents := fmt.Sprintf("module.exports = globalThis[%q];", globals[args.Path])
				return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
			})
		},
	}, true
}
