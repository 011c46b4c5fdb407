package config

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

// Validate checks the configuration for values no pipeline can work with.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, step := range []func() error{v.validateOutput, v.validateScripts, v.validateServer} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validateOutput() error {
	out := filepath.ToSlash(filepath.Clean(cv.config.Output))
	if out == "." || out == "/" || strings.HasPrefix(out, "../") || out == ".." || filepath.IsAbs(cv.config.Output) {
		return ferrors.ValidationError("output must be a subdirectory of the project root").
			WithContext("output", cv.config.Output).
			Build()
	}
	if filepath.ToSlash(filepath.Clean(cv.config.Package.Dir)) == "." {
		return ferrors.ValidationError("package.dir must not be the project root").Build()
	}
	return nil
}

func (cv *configurationValidator) validateScripts() error {
	seen := map[string]string{}
	for _, src := range cv.config.Paths.Scripts.Src {
		if strings.HasPrefix(src, "!") || strings.ContainsAny(src, "*?[{") {
			continue
		}
		base := strings.TrimSuffix(path.Base(src), path.Ext(src))
		if prev, ok := seen[base]; ok {
			return ferrors.ValidationError(fmt.Sprintf("script entry points %s and %s share the output name %s.js", prev, src, base)).Build()
		}
		seen[base] = src
	}
	for mod, global := range cv.config.Scripts.Globals {
		if mod == "" || global == "" {
			return ferrors.ValidationError("scripts.globals entries need both a module and a global name").Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateServer() error {
	u, err := url.Parse(cv.config.Server.Proxy)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ferrors.ValidationError("server.proxy must be an absolute http(s) URL").
			WithContext("proxy", cv.config.Server.Proxy).
			Build()
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ferrors.ValidationError("server.proxy must use http or https").
			WithContext("proxy", cv.config.Server.Proxy).
			Build()
	}
	if cv.config.Server.Port < 0 || cv.config.Server.Port > 65535 {
		return ferrors.ValidationError(fmt.Sprintf("server.port %d out of range", cv.config.Server.Port)).Build()
	}
	return nil
}
