// Package glob implements ordered include/exclude pattern sets over slash
// separated, project-relative paths.
//
// Patterns use doublestar syntax (`**`, `{a,b}`, `[...]`). A leading `!`
// turns a pattern into an exclusion. A path matches a Set when at least one
// include matches and no exclusion does.
package glob

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Set is a compiled list of include and exclude patterns.
type Set struct {
	include []string
	exclude []string
}

// File is one path produced by expanding a Set.
type File struct {
	// Path is the project-relative, slash separated path.
	Path string
	// Base is the static directory prefix of the include pattern that produced Path.
	Base string
	// Rel is Path relative to Base. Pipelines write outputs at dest/Rel.
	Rel string
}

// NewSet compiles patterns. Patterns are cleaned of leading "./".
func NewSet(patterns ...string) (*Set, error) {
	s := &Set{}
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		negate := strings.HasPrefix(p, "!")
		if negate {
			p = p[1:]
		}
		p = Normalize(p)
		if p == "" {
			return nil, fmt.Errorf("empty pattern in %q", raw)
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", raw)
		}
		if negate {
			s.exclude = append(s.exclude, p)
		} else {
			s.include = append(s.include, p)
		}
	}
	if len(s.include) == 0 {
		return nil, fmt.Errorf("pattern set %v has no include patterns", patterns)
	}
	return s, nil
}

// MustSet is NewSet for patterns known at compile time.
func MustSet(patterns ...string) *Set {
	s, err := NewSet(patterns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Normalize converts p to the slash separated, "./"-free form used for matching.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.TrimPrefix(p, "/")
}

// Includes returns the include patterns in declaration order.
func (s *Set) Includes() []string { return append([]string(nil), s.include...) }

// Excludes returns the exclusion patterns (without the leading "!").
func (s *Set) Excludes() []string { return append([]string(nil), s.exclude...) }

// Match reports whether the project-relative path rel belongs to the set.
func (s *Set) Match(rel string) bool {
	rel = Normalize(rel)
	if s.excluded(rel) {
		return false
	}
	for _, p := range s.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (s *Set) excluded(rel string) bool {
	for _, p := range s.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Expand lists the regular files in fsys matched by the set, sorted by path.
// A file matched by several includes is reported once, with the base of the
// first include that matched it. Missing literal paths are not an error.
func (s *Set) Expand(fsys fs.FS) ([]File, error) {
	seen := make(map[string]struct{})
	var out []File
	for _, p := range s.include {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", p, err)
		}
		base := Base(p)
		for _, m := range matches {
			if _, dup := seen[m]; dup || s.excluded(m) {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, File{Path: m, Base: base, Rel: relTo(base, m)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Base returns the static directory prefix of pattern: everything before the
// path segment holding the first meta character. For a literal file path it
// is the file's directory. The project root is reported as "".
func Base(pattern string) string {
	base, _ := doublestar.SplitPattern(Normalize(pattern))
	if base == "." {
		return ""
	}
	return base
}

func relTo(base, p string) string {
	if base == "" {
		return p
	}
	return strings.TrimPrefix(p, base+"/")
}

// Dirs returns the deepest directory that can contain matches of the set,
// used to decide which directories a watcher must observe.
func (s *Set) Dirs() []string {
	seen := map[string]struct{}{}
	var dirs []string
	for _, p := range s.include {
		d := Base(p)
		if d == "" {
			d = "."
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dirs = append(dirs, path.Clean(d))
	}
	sort.Strings(dirs)
	return dirs
}
