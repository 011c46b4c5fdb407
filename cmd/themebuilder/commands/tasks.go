package commands

import (
	"context"

	"git.home.luguber.info/inful/themebuilder/internal/tasks"
)

// DevCmd implements the default 'dev' command.
type DevCmd struct{}

func (*DevCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Dev) }

// BuildCmd implements the 'build' command.
type BuildCmd struct{}

func (*BuildCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Build) }

// BundleCmd implements the 'bundle' command.
type BundleCmd struct{}

func (*BundleCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Bundle) }

type CleanCmd struct{}

func (*CleanCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Clean) }

type StylesCmd struct{}

func (*StylesCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Styles) }

type ScriptsCmd struct{}

func (*ScriptsCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Scripts) }

type ImagesCmd struct{}

func (*ImagesCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Images) }

type CopyCmd struct{}

func (*CopyCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Copy) }

// CompressCmd archives the tree as it is; run 'bundle' to rebuild first.
type CompressCmd struct{}

func (*CompressCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Compress) }

type ServeCmd struct{}

func (*ServeCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Serve) }

type WatchCmd struct{}

func (*WatchCmd) Run(ctx context.Context, root *CLI) error { return root.run(ctx, tasks.Watch) }
