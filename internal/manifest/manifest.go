// Package manifest reads the project's package metadata.
package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

// Package is the name/version metadata used to name the archive.
type Package struct {
	Name    string
	Version string
	// Source is the file the metadata was read from.
	Source string
}

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Read loads package.json from root. When it is absent the theme header of
// style.css ("Text Domain", then "Theme Name") is used instead.
func Read(root string) (*Package, error) {
	pkgPath := filepath.Join(root, "package.json")
	data, err := os.ReadFile(pkgPath)
	switch {
	case err == nil:
		return parsePackageJSON(pkgPath, data)
	case !errors.Is(err, os.ErrNotExist):
		return nil, ferrors.WrapError(err, ferrors.CategoryPackage, "read package.json").Fatal().Build()
	}

	stylePath := filepath.Join(root, "style.css")
	data, err = os.ReadFile(stylePath)
	if err != nil {
		return nil, ferrors.NewError(ferrors.CategoryNotFound, "no package.json or style.css theme header found").
			WithContext("root", root).
			Build()
	}
	return parseThemeHeader(stylePath, data)
}

func parsePackageJSON(source string, data []byte) (*Package, error) {
	if !gjson.ValidBytes(data) {
		return nil, ferrors.PackageError("package.json is not valid JSON").WithContext("path", source).Build()
	}
	res := gjson.GetManyBytes(data, "name", "version")
	pkg := &Package{Name: res[0].String(), Version: res[1].String(), Source: source}
	if err := pkg.validate(); err != nil {
		return nil, err
	}
	return pkg, nil
}

// parseThemeHeader reads the WordPress file header comment at the top of style.css.
func parseThemeHeader(source string, data []byte) (*Package, error) {
	fields := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		end := strings.Contains(raw, "*/")
		line := strings.TrimSpace(strings.TrimLeft(raw, "/* "))
		line = strings.TrimSpace(strings.TrimSuffix(line, "*/"))
		if key, value, ok := strings.Cut(line, ":"); ok {
			fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
		if end {
			break
		}
	}
	name := fields["text domain"]
	if name == "" {
		name = Slug(fields["theme name"])
	}
	pkg := &Package{Name: name, Version: fields["version"], Source: source}
	if err := pkg.validate(); err != nil {
		return nil, err
	}
	return pkg, nil
}

// Named returns a validated package for an explicitly configured name.
func Named(name string) (*Package, error) {
	pkg := &Package{Name: name, Source: "config"}
	if err := pkg.validate(); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (p *Package) validate() error {
	if p.Name == "" {
		return ferrors.PackageError("package name is empty").WithContext("path", p.Source).Build()
	}
	if !validName.MatchString(p.Name) {
		return ferrors.PackageError("package name is not usable as a file name").
			WithContext("path", p.Source).
			WithContext("name", p.Name).
			Build()
	}
	return nil
}

// Slug lowercases s and joins its words with dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ArchiveName is the zip file name for the package.
func (p *Package) ArchiveName() string {
	return p.Name + ".zip"
}
