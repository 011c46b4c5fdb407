// Package pack produces the distributable theme archive.
//
// The project tree minus the configured exclusions is staged into a
// temporary workspace with the text domain token replaced by the package
// name, then zipped to <package dir>/<name>.zip.
package pack

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/manifest"
	"git.home.luguber.info/inful/themebuilder/internal/workspace"
)

// Options configures Compress.
type Options struct {
	// Root is the absolute project root.
	Root   string
	Config *config.Config
	// StageDir is where the staging workspace is created (os.TempDir when empty).
	StageDir string
}

// Result describes a written archive.
type Result struct {
	Package *manifest.Package
	// Archive is the absolute path of the zip file.
	Archive string
	Files   []string
}

// Compress writes the theme archive and returns what it contains.
func Compress(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config.Package
	pkg, err := resolvePackage(opts.Root, cfg.Name)
	if err != nil {
		return nil, err
	}

	files, err := collect(ctx, opts.Root, excludeMatcher(cfg))
	if err != nil {
		return nil, err
	}

	ws := workspace.NewManager(opts.StageDir)
	if err := ws.Create(); err != nil {
		return nil, ferrors.FileSystemError("create staging workspace").WithCause(err).Build()
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Staging cleanup failed", logfields.Error(err))
		}
	}()

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stage(opts.Root, ws.Path(), rel, cfg.Token, pkg.Name); err != nil {
			return nil, err
		}
	}

	archive := filepath.Join(opts.Root, filepath.FromSlash(cfg.Dir), pkg.ArchiveName())
	if err := writeZip(ws.Path(), files, archive); err != nil {
		return nil, err
	}
	slog.Info("Packaged theme",
		slog.String("name", pkg.Name),
		logfields.Path(archive),
		logfields.Files(len(files)))
	return &Result{Package: pkg, Archive: archive, Files: files}, nil
}

func resolvePackage(root, override string) (*manifest.Package, error) {
	if override != "" {
		return manifest.Named(override)
	}
	return manifest.Read(root)
}

// excludeMatcher compiles the gitignore-style exclusions. The package
// directory is always excluded so an archive never contains itself.
func excludeMatcher(cfg config.PackageConfig) gitignore.Matcher {
	patterns := make([]gitignore.Pattern, 0, len(cfg.Exclude)+1)
	for _, p := range cfg.Exclude {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, gitignore.ParsePattern(p, nil))
		}
	}
	if cfg.Dir != "" {
		patterns = append(patterns, gitignore.ParsePattern("/"+strings.Trim(filepath.ToSlash(cfg.Dir), "/")+"/", nil))
	}
	return gitignore.NewMatcher(patterns)
}

// collect lists the regular files under root not excluded by m, sorted.
func collect(ctx context.Context, root string, m gitignore.Matcher) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if m.Match(strings.Split(rel, "/"), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, ferrors.FileSystemError("walk project").WithCause(err).Build()
	}
	sort.Strings(files)
	return files, nil
}

// stage copies rel into dir, replacing token with name in text files.
func stage(root, dir, rel, token, name string) error {
	src := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(src)
	if err != nil {
		return ferrors.FileSystemError("stat file").WithCause(err).WithContext("path", rel).Build()
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return ferrors.FileSystemError("read file").WithCause(err).WithContext("path", rel).Build()
	}
	data = ReplaceToken(data, token, name)

	dst := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return ferrors.FileSystemError("create staging directory").WithCause(err).Build()
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return ferrors.FileSystemError("write staged file").WithCause(err).WithContext("path", rel).Build()
	}
	return nil
}

// ReplaceToken replaces every occurrence of token with name. Binary content
// and an empty token leave data untouched.
func ReplaceToken(data []byte, token, name string) []byte {
	if token == "" || !bytes.Contains(data, []byte(token)) || isBinary(data) {
		return data
	}
	return bytes.ReplaceAll(data, []byte(token), []byte(name))
}

func isBinary(data []byte) bool {
	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "text/"),
		strings.Contains(ct, "json"),
		strings.Contains(ct, "javascript"),
		strings.Contains(ct, "xml"):
		return false
	}
	return true
}
