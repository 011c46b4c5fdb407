// Package registry maps logical asset groups to their source patterns and
// destination directories.
//
// The registry is the single source of truth shared by the pipelines and the
// watcher: a pipeline reads exactly Group.Sources and writes only under
// Group.Dest, while the watcher maps a changed path back to the groups whose
// watch patterns match it.
package registry

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/glob"
)

// Canonical group names.
const (
	Styles    = "styles"
	Images    = "images"
	Other     = "other"
	Scripts   = "scripts"
	Templates = "templates"
)

// Group is one registry entry.
type Group struct {
	Name    string
	Sources []string
	// Watch defaults to Sources when empty.
	Watch []string
	// Dest is empty for watch-only groups.
	Dest string

	sources *glob.Set
	watch   *glob.Set
}

// SourceSet returns the compiled source patterns, or nil for a watch-only group.
func (g Group) SourceSet() *glob.Set { return g.sources }

// WatchSet returns the compiled watch patterns.
func (g Group) WatchSet() *glob.Set { return g.watch }

// HasPipeline reports whether the group produces output.
func (g Group) HasPipeline() bool { return g.sources != nil && g.Dest != "" }

// Registry is an immutable, validated set of groups.
type Registry struct {
	groups []Group
	byName map[string]int
}

// New compiles and validates groups.
func New(groups ...Group) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(groups))}
	for _, g := range groups {
		if g.Name == "" {
			return nil, ferrors.ValidationError("registry group without a name").Build()
		}
		if _, dup := r.byName[g.Name]; dup {
			return nil, ferrors.ValidationError("duplicate registry group").WithContext("group", g.Name).Build()
		}
		if len(g.Sources) > 0 {
			set, err := glob.NewSet(g.Sources...)
			if err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid source patterns").
					Fatal().WithContext("group", g.Name).Build()
			}
			g.sources = set
		}
		watch := g.Watch
		if len(watch) == 0 {
			watch = g.Sources
		}
		if len(watch) == 0 {
			return nil, ferrors.ValidationError("registry group has neither sources nor watch patterns").
				WithContext("group", g.Name).Build()
		}
		set, err := glob.NewSet(watch...)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid watch patterns").
				Fatal().WithContext("group", g.Name).Build()
		}
		g.watch = set
		g.Dest = glob.Normalize(g.Dest)
		r.byName[g.Name] = len(r.groups)
		r.groups = append(r.groups, g)
	}
	if err := r.validateDestinations(); err != nil {
		return nil, err
	}
	return r, nil
}

// validateDestinations enforces that every destination is owned by one group.
func (r *Registry) validateDestinations() error {
	owner := map[string]string{}
	for _, g := range r.groups {
		if g.Dest == "" {
			continue
		}
		if prev, ok := owner[g.Dest]; ok {
			return ferrors.ValidationError(fmt.Sprintf("groups %s and %s share destination %s", prev, g.Name, g.Dest)).Build()
		}
		owner[g.Dest] = g.Name
	}
	return nil
}

// FromConfig builds the registry described by cfg.Paths.
func FromConfig(cfg *config.Config) (*Registry, error) {
	p := cfg.Paths
	return New(
		Group{Name: Styles, Sources: p.Styles.Src, Watch: p.Styles.Watch, Dest: p.Styles.Dest},
		Group{Name: Scripts, Sources: p.Scripts.Src, Watch: p.Scripts.Watch, Dest: p.Scripts.Dest},
		Group{Name: Images, Sources: p.Images.Src, Watch: p.Images.Watch, Dest: p.Images.Dest},
		Group{Name: Other, Sources: p.Other.Src, Watch: p.Other.Watch, Dest: p.Other.Dest},
		Group{Name: Templates, Sources: p.Templates.Src, Watch: p.Templates.Watch, Dest: p.Templates.Dest},
	)
}

// Lookup returns the group registered under name.
func (r *Registry) Lookup(name string) (Group, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Group{}, false
	}
	return r.groups[i], true
}

// Groups returns all groups in registration order.
func (r *Registry) Groups() []Group {
	return append([]Group(nil), r.groups...)
}

// Match returns the groups whose watch patterns match the project-relative path.
func (r *Registry) Match(rel string) []Group {
	rel = glob.Normalize(rel)
	var out []Group
	for _, g := range r.groups {
		if g.watch.Match(rel) {
			out = append(out, g)
		}
	}
	return out
}

// Files expands the group's sources against fsys (rooted at the project root).
func (r *Registry) Files(fsys fs.FS, name string) ([]glob.File, error) {
	g, ok := r.Lookup(name)
	if !ok {
		return nil, ferrors.NewError(ferrors.CategoryNotFound, "unknown registry group").WithContext("group", name).Build()
	}
	if g.sources == nil {
		return nil, nil
	}
	return g.sources.Expand(fsys)
}

// OutputOwner returns the group whose destination contains the
// project-relative output path, preferring the most specific destination.
func (r *Registry) OutputOwner(rel string) (Group, bool) {
	rel = glob.Normalize(rel)
	var best Group
	found := false
	for _, g := range r.groups {
		if g.Dest == "" {
			continue
		}
		if rel == g.Dest || strings.HasPrefix(rel, g.Dest+"/") {
			if !found || len(g.Dest) > len(best.Dest) {
				best, found = g, true
			}
		}
	}
	return best, found
}

// WatchDirs lists the directories a recursive watcher must cover, sorted.
func (r *Registry) WatchDirs() []string {
	seen := map[string]struct{}{}
	var dirs []string
	for _, g := range r.groups {
		for _, d := range g.watch.Dirs() {
			d = path.Clean(d)
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Uncovered lists source files that the watcher would not attribute to the
// group that builds them. A non-empty result means edits to those files
// silently fail to trigger a rebuild.
func (r *Registry) Uncovered(fsys fs.FS) ([]string, error) {
	var missing []string
	for _, g := range r.groups {
		if g.sources == nil {
			continue
		}
		files, err := g.sources.Expand(fsys)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !g.watch.Match(f.Path) {
				missing = append(missing, g.Name+":"+f.Path)
			}
		}
	}
	return missing, nil
}
