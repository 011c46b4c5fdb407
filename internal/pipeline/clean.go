package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
)

// Clean removes the output root and everything beneath it. A missing output
// root is not an error.
func Clean(ctx context.Context, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Config == nil {
		return ferrors.InternalError("clean without configuration").Build()
	}
	target, err := outputRoot(opts.Root, opts.Config.Output)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return ferrors.FileSystemError("remove output directory").WithCause(err).
			WithContext("path", target).Build()
	}
	slog.Info("Cleaned output", logfields.Path(opts.Config.Output))
	return nil
}

// outputRoot resolves output against root and refuses anything that is not a
// strict subdirectory of root.
func outputRoot(root, output string) (string, error) {
	target := filepath.Join(root, output)
	if filepath.IsAbs(output) {
		target = filepath.Clean(output)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ferrors.ValidationError("refusing to clean a path that is not inside the project").
			WithContext("output", output).Build()
	}
	return target, nil
}
