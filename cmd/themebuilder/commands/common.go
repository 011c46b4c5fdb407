package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/pipeline"
	"git.home.luguber.info/inful/themebuilder/internal/tasks"
)

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (optional)" default:"themebuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Prod    bool             `help:"Production build: minified output, no source maps, optimized images"`
	Root    string           `help:"Project root (overrides the configured root)"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Dev      DevCmd      `cmd:"" default:"1" help:"Build, then proxy the site and rebuild on changes (default)"`
	Build    BuildCmd    `cmd:"" help:"Clean and build every asset group"`
	Bundle   BundleCmd   `cmd:"" help:"Build followed by the theme archive; minified with --prod"`
	Clean    CleanCmd    `cmd:"" help:"Remove the output directory"`
	Styles   StylesCmd   `cmd:"" help:"Compile stylesheets"`
	Scripts  ScriptsCmd  `cmd:"" help:"Bundle scripts"`
	Images   ImagesCmd   `cmd:"" help:"Copy images, optimized with --prod"`
	Copy     CopyCmd     `cmd:"" help:"Copy the remaining assets"`
	Compress CompressCmd `cmd:"" help:"Write the theme archive from the current tree"`
	Serve    ServeCmd    `cmd:"" help:"Run the development proxy"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild on changes without serving"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	Graph    GraphCmd    `cmd:"" help:"Print the task graph"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// configPath returns the configuration file to load. The default file name
// is looked up inside --root when one is given.
func (c *CLI) configPath() string {
	if c.Root != "" && c.Config == config.DefaultFilename {
		return filepath.Join(c.Root, c.Config)
	}
	return c.Config
}

// load reads the configuration and resolves the absolute project root:
// --root wins, otherwise the configured root relative to the config file.
func (c *CLI) load() (*config.Config, string, error) {
	path := c.configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	root := c.Root
	if root == "" {
		root = cfg.Root
		if !filepath.IsAbs(root) {
			root = filepath.Join(filepath.Dir(path), root)
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, "", ferrors.FileSystemError("resolve project root").WithCause(err).Build()
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, "", ferrors.ConfigError("project root is not a directory").WithContext("root", abs).Build()
	}
	return cfg, abs, nil
}

// runner builds a task runner for the current flags.
func (c *CLI) runner(production bool) (*tasks.Runner, error) {
	cfg, root, err := c.load()
	if err != nil {
		return nil, err
	}
	return tasks.New(tasks.Options{
		Root:   root,
		Config: cfg,
		Mode:   pipeline.ModeFor(production),
	})
}

// run executes one named task and releases the runner afterwards.
func (c *CLI) run(ctx context.Context, name string) error {
	r, err := c.runner(c.Prod)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			slog.Warn("Closing sass compiler", "error", err)
		}
	}()
	return r.Run(ctx, name)
}
