package pipeline

import (
	"context"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/imageopt"
	"git.home.luguber.info/inful/themebuilder/internal/registry"
)

// Images writes every image of the images group to its destination,
// optimized in production. An image the optimizer cannot handle is written
// unmodified and reported as a warning.
func Images(ctx context.Context, opts Options) (*Report, error) {
	g, files, err := opts.sources(registry.Images)
	if err != nil {
		return nil, err
	}
	report := &Report{Group: g.Name}

	var optimizer *imageopt.Optimizer
	if opts.Mode.Production() {
		optimizer = imageopt.New(opts.Config.Images.JPEGQuality)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		data, perm, err := opts.read(f.Path)
		if err != nil {
			return report, err
		}
		if optimizer != nil {
			optimized, err := optimizer.Optimize(f.Path, data)
			if err != nil {
				report.warn(ferrors.ImageError("image left unoptimized").WithCause(err).
					WithContext("path", f.Path).Build())
			} else {
				data = optimized
			}
		}
		out := output(g, f.Rel)
		if err := opts.write(out, data, perm); err != nil {
			return report, err
		}
		report.Written = append(report.Written, out)
	}
	report.finish(opts)
	return report, nil
}
