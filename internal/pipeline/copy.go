package pipeline

import (
	"context"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/registry"
)

// Copy copies the files of the other group byte for byte, keeping their
// path below the pattern base and their permissions.
func Copy(ctx context.Context, opts Options) (*Report, error) {
	g, files, err := opts.sources(registry.Other)
	if err != nil {
		return nil, err
	}
	report := &Report{Group: g.Name}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		data, perm, err := opts.read(f.Path)
		if err != nil {
			return report, err
		}
		out := output(g, f.Rel)
		if owner, ok := opts.Registry.OutputOwner(out); ok && owner.Name != g.Name {
			// A later run of the owning pipeline may overwrite or clean it.
			report.warn(ferrors.ValidationError("copied asset lands in another group's output").
				Warning().
				WithContext("path", out).
				WithContext("owner", owner.Name).
				Build())
		}
		if err := opts.write(out, data, perm); err != nil {
			return report, err
		}
		report.Written = append(report.Written, out)
	}
	report.finish(opts)
	return report, nil
}
