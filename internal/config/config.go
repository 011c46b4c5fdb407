// Package config loads the themebuilder configuration.
//
// The configuration file is optional: Default returns the layout of a
// conventional theme (sources under src/assets, output under dist, archive
// under packaged) and a themebuilder.yaml only needs to name what differs.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

// DefaultFilename is the configuration file looked up when --config is not given.
const DefaultFilename = "themebuilder.yaml"

// Config represents the application configuration.
type Config struct {
	// Root is the project root all patterns are relative to.
	Root    string        `yaml:"root"`
	Output  string        `yaml:"output"`
	Paths   PathsConfig   `yaml:"paths"`
	Styles  StylesConfig  `yaml:"styles"`
	Scripts ScriptsConfig `yaml:"scripts"`
	Images  ImagesConfig  `yaml:"images"`
	Package PackageConfig `yaml:"package"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
}

// GroupConfig is one Path Registry entry as written in YAML.
type GroupConfig struct {
	Src   []string `yaml:"src,omitempty"`
	Watch []string `yaml:"watch,omitempty"`
	Dest  string   `yaml:"dest,omitempty"`
}

// PathsConfig lists the asset groups. Each field decodes independently so a
// partial override keeps the defaults of the other groups.
type PathsConfig struct {
	Styles    GroupConfig `yaml:"styles"`
	Images    GroupConfig `yaml:"images"`
	Other     GroupConfig `yaml:"other"`
	Scripts   GroupConfig `yaml:"scripts"`
	Templates GroupConfig `yaml:"templates"`
}

// StylesConfig configures the SCSS pipeline.
type StylesConfig struct {
	IncludePaths []string `yaml:"include_paths,omitempty"`
	// Browsers are esbuild engine targets such as "chrome58" or "safari11".
	Browsers []string `yaml:"browsers,omitempty"`
	// LegacyBrowsers are added to Browsers when minifying for production.
	LegacyBrowsers []string `yaml:"legacy_browsers,omitempty"`
	// SassBinary is the Dart Sass executable speaking the embedded protocol.
	SassBinary string `yaml:"sass_binary,omitempty"`
}

// ScriptsConfig configures the bundler.
type ScriptsConfig struct {
	Target string `yaml:"target,omitempty"`
	// Globals maps an import path to the runtime global that provides it.
	Globals map[string]string `yaml:"globals,omitempty"`
	// VendorDir holds third-party packages. They are bundled when imported
	// but never picked up as entry points.
	VendorDir string `yaml:"vendor_dir,omitempty"`
}

// ImagesConfig configures the production image optimizer.
type ImagesConfig struct {
	JPEGQuality int `yaml:"jpeg_quality,omitempty"`
}

// PackageConfig configures the distributable archive.
type PackageConfig struct {
	Dir string `yaml:"dir,omitempty"`
	// Name overrides the name read from package.json.
	Name string `yaml:"name,omitempty"`
	// Token is replaced by the package name in every packaged file.
	Token string `yaml:"token,omitempty"`
	// Exclude uses gitignore syntax relative to Root.
	Exclude []string `yaml:"exclude,omitempty"`
}

// ServerConfig configures the development proxy.
type ServerConfig struct {
	Proxy   string `yaml:"proxy,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	Metrics bool   `yaml:"metrics"`

	// ServeDist is a URL prefix under which the output directory is served
	// straight from disk instead of through the upstream, for example
	// "/wp_learn/wp-content/themes/mytheme/dist/". Empty disables it.
	ServeDist string `yaml:"serve_dist,omitempty"`
}

// WatchConfig configures the watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
	// Ignore lists directory names never descended into.
	Ignore []string `yaml:"ignore,omitempty"`
}

// Load reads configPath on top of Default. A missing file is not an error:
// the defaults describe a conventional theme layout.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse config file").
				Fatal().
				WithContext("path", configPath).
				Build()
		}
	}

	applyEnvOverrides(cfg)
	if err := NewDefaultApplier().ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file holding the defaults.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := []byte("# themebuilder configuration. Every key is optional.\n")
	if err := os.WriteFile(configPath, append(header, data...), 0o644); err != nil {
		return ferrors.FileSystemError("write config file").WithCause(err).Build()
	}
	return nil
}
