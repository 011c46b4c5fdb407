package config

import (
	"fmt"
	"time"
)

// Default returns the configuration of a conventional theme project:
// sources under src/assets, output under dist.
func Default() *Config {
	return &Config{
		Root:   ".",
		Output: "dist",
		Paths: PathsConfig{
			Styles: GroupConfig{
				Src:   []string{"src/assets/scss/main.scss", "src/assets/scss/admin.scss"},
				Watch: []string{"src/assets/scss/**/*.scss"},
				Dest:  "dist/assets/css",
			},
			Images: GroupConfig{
				Src:  []string{"src/assets/images/**/*.{jpg,jpeg,png,svg,gif}"},
				Dest: "dist/assets/images",
			},
			Other: GroupConfig{
				Src: []string{
					"src/assets/**/*",
					"!src/assets/{images,scss,js}",
					"!src/assets/{images,scss,js}/**/*",
				},
				Dest: "dist/assets",
			},
			Scripts: GroupConfig{
				Src:   []string{"src/assets/js/bundle.js", "src/assets/js/admin.js"},
				Watch: []string{"src/assets/js/**/*.js"},
				Dest:  "dist/assets/js",
			},
			Templates: GroupConfig{
				Watch: []string{"**/*.php"},
			},
		},
		Styles: StylesConfig{
			Browsers:       []string{"chrome58", "edge16", "firefox57", "safari11"},
			LegacyBrowsers: []string{"ie11"},
			SassBinary:     "sass",
		},
		Scripts: ScriptsConfig{
			Target:    "es2015",
			Globals:   map[string]string{"jquery": "jQuery"},
			VendorDir: "node_modules",
		},
		Images: ImagesConfig{JPEGQuality: 82},
		Package: PackageConfig{
			Dir:   "packaged",
			Token: "_themename",
			Exclude: []string{
				// Dotfiles at any depth; re-include one with "!name".
				".*",
				"/node_modules/",
				"/packaged/",
				"/src/",
				"/gulpfile.babel.js",
				"/package.json",
				"/package-lock.json",
				"/" + DefaultFilename,
			},
		},
		Server: ServerConfig{
			Proxy:   "http://localhost/wp_learn/",
			Host:    "localhost",
			Port:    3000,
			Metrics: true,
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
			Ignore:   []string{"node_modules", ".git", "packaged"},
		},
	}
}

// DefaultApplier fills zero values left by an explicit but partial configuration.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// CompositeDefaultApplier applies defaults across all configuration domains.
type CompositeDefaultApplier struct {
	appliers []DefaultApplier
}

// NewDefaultApplier creates a composite default applier with all domain appliers.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{
		appliers: []DefaultApplier{
			&PathsDefaultApplier{},
			&StylesDefaultApplier{},
			&ScriptsDefaultApplier{},
			&PackageDefaultApplier{},
			&ServerDefaultApplier{},
		},
	}
}

// ApplyDefaults runs every domain applier in order.
func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, a := range c.appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("apply %s defaults: %w", a.Domain(), err)
		}
	}
	return nil
}

// PathsDefaultApplier handles root, output and group defaults.
type PathsDefaultApplier struct{}

func (p *PathsDefaultApplier) Domain() string { return "paths" }

func (p *PathsDefaultApplier) ApplyDefaults(cfg *Config) error {
	def := Default()
	if cfg.Root == "" {
		cfg.Root = def.Root
	}
	if cfg.Output == "" {
		cfg.Output = def.Output
	}
	fill := func(g *GroupConfig, d GroupConfig) {
		if len(g.Src) == 0 && len(g.Watch) == 0 {
			g.Src, g.Watch = d.Src, d.Watch
		}
		if g.Dest == "" {
			g.Dest = d.Dest
		}
	}
	fill(&cfg.Paths.Styles, def.Paths.Styles)
	fill(&cfg.Paths.Images, def.Paths.Images)
	fill(&cfg.Paths.Other, def.Paths.Other)
	fill(&cfg.Paths.Scripts, def.Paths.Scripts)
	fill(&cfg.Paths.Templates, def.Paths.Templates)
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = def.Watch.Debounce
	}
	return nil
}

// StylesDefaultApplier handles SCSS and image defaults.
type StylesDefaultApplier struct{}

func (s *StylesDefaultApplier) Domain() string { return "styles" }

func (s *StylesDefaultApplier) ApplyDefaults(cfg *Config) error {
	def := Default()
	if len(cfg.Styles.Browsers) == 0 {
		cfg.Styles.Browsers = def.Styles.Browsers
	}
	if cfg.Styles.SassBinary == "" {
		cfg.Styles.SassBinary = def.Styles.SassBinary
	}
	if cfg.Images.JPEGQuality <= 0 || cfg.Images.JPEGQuality > 100 {
		cfg.Images.JPEGQuality = def.Images.JPEGQuality
	}
	return nil
}

// ScriptsDefaultApplier handles bundler defaults.
type ScriptsDefaultApplier struct{}

func (s *ScriptsDefaultApplier) Domain() string { return "scripts" }

func (s *ScriptsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Scripts.Target == "" {
		cfg.Scripts.Target = Default().Scripts.Target
	}
	if cfg.Scripts.VendorDir == "" {
		cfg.Scripts.VendorDir = Default().Scripts.VendorDir
	}
	return nil
}

// PackageDefaultApplier handles archive defaults.
type PackageDefaultApplier struct{}

func (p *PackageDefaultApplier) Domain() string { return "package" }

func (p *PackageDefaultApplier) ApplyDefaults(cfg *Config) error {
	def := Default()
	if cfg.Package.Dir == "" {
		cfg.Package.Dir = def.Package.Dir
	}
	if cfg.Package.Token == "" {
		cfg.Package.Token = def.Package.Token
	}
	if cfg.Package.Exclude == nil {
		cfg.Package.Exclude = def.Package.Exclude
	}
	return nil
}

// ServerDefaultApplier handles dev server defaults.
type ServerDefaultApplier struct{}

func (s *ServerDefaultApplier) Domain() string { return "server" }

func (s *ServerDefaultApplier) ApplyDefaults(cfg *Config) error {
	def := Default()
	if cfg.Server.Proxy == "" {
		cfg.Server.Proxy = def.Server.Proxy
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	return nil
}
