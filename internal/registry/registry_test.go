package registry

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

func themeFS() fstest.MapFS {
	return fstest.MapFS{
		"src/assets/scss/main.scss":             {Data: []byte("@use 'vars';")},
		"src/assets/scss/admin.scss":            {Data: []byte("")},
		"src/assets/scss/_vars.scss":            {Data: []byte("")},
		"src/assets/scss/components/_nav.scss":  {Data: []byte("")},
		"src/assets/js/bundle.js":               {Data: []byte("")},
		"src/assets/js/admin.js":                {Data: []byte("")},
		"src/assets/js/components/slider.js":    {Data: []byte("")},
		"src/assets/images/a.jpg":               {Data: []byte("")},
		"src/assets/images/b.png":               {Data: []byte("")},
		"src/assets/images/icons/c.svg":         {Data: []byte("")},
		"src/assets/fonts/x.woff":               {Data: []byte("")},
		"src/assets/readme.txt":                 {Data: []byte("")},
		"functions.php":                         {Data: []byte("<?php")},
		"template-parts/header.php":             {Data: []byte("<?php")},
		"node_modules/jquery/dist/jquery.min.js": {Data: []byte("")},
	}
}

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := FromConfig(config.Default())
	require.NoError(t, err)
	return r
}

func TestLookup(t *testing.T) {
	r := defaultRegistry(t)

	g, ok := r.Lookup(Styles)
	require.True(t, ok)
	require.Equal(t, "dist/assets/css", g.Dest)
	require.True(t, g.HasPipeline())

	tpl, ok := r.Lookup(Templates)
	require.True(t, ok)
	require.False(t, tpl.HasPipeline())

	_, ok = r.Lookup("fonts")
	require.False(t, ok)
}

func TestFiles_PerGroup(t *testing.T) {
	r := defaultRegistry(t)
	fsys := themeFS()

	cases := map[string][]string{
		Styles:  {"src/assets/scss/admin.scss", "src/assets/scss/main.scss"},
		Scripts: {"src/assets/js/admin.js", "src/assets/js/bundle.js"},
		Images:  {"src/assets/images/a.jpg", "src/assets/images/b.png", "src/assets/images/icons/c.svg"},
		Other:   {"src/assets/fonts/x.woff", "src/assets/readme.txt"},
	}
	for name, want := range cases {
		files, err := r.Files(fsys, name)
		require.NoError(t, err, name)
		var got []string
		for _, f := range files {
			got = append(got, f.Path)
		}
		require.Equal(t, want, got, name)
	}

	_, err := r.Files(fsys, "nope")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestMatch_RoutesChangesToGroups(t *testing.T) {
	r := defaultRegistry(t)

	names := func(rel string) []string {
		var out []string
		for _, g := range r.Match(rel) {
			out = append(out, g.Name)
		}
		return out
	}

	require.Equal(t, []string{Styles}, names("src/assets/scss/components/_nav.scss"))
	require.Equal(t, []string{Scripts}, names("src/assets/js/components/slider.js"))
	require.Equal(t, []string{Images}, names("src/assets/images/icons/c.svg"))
	require.Equal(t, []string{Other}, names("src/assets/fonts/x.woff"))
	require.Equal(t, []string{Templates}, names("template-parts/header.php"))
	require.Empty(t, names("README.md"))
}

// Every file a pipeline reads must be attributed to that pipeline by the
// watcher, otherwise editing it never triggers a rebuild.
func TestWatchPatternsCoverSources(t *testing.T) {
	r := defaultRegistry(t)
	uncovered, err := r.Uncovered(themeFS())
	require.NoError(t, err)
	require.Empty(t, uncovered)
}

func TestUncovered_ReportsDrift(t *testing.T) {
	r, err := New(Group{
		Name:    Styles,
		Sources: []string{"src/assets/scss/main.scss"},
		Watch:   []string{"src/assets/sass/**/*.scss"},
		Dest:    "dist/assets/css",
	})
	require.NoError(t, err)

	uncovered, err := r.Uncovered(themeFS())
	require.NoError(t, err)
	require.Equal(t, []string{"styles:src/assets/scss/main.scss"}, uncovered)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Group{Name: "a", Sources: []string{"x/*"}, Dest: "dist"}, Group{Name: "a", Sources: []string{"y/*"}, Dest: "dist2"})
	require.Error(t, err)

	_, err = New(Group{Name: "a", Sources: []string{"x/*"}, Dest: "dist"}, Group{Name: "b", Sources: []string{"y/*"}, Dest: "./dist"})
	require.Error(t, err)

	_, err = New(Group{Name: "empty", Dest: "dist"})
	require.Error(t, err)
}

func TestOutputOwner_PrefersMostSpecific(t *testing.T) {
	r := defaultRegistry(t)

	g, ok := r.OutputOwner("dist/assets/css/main.css")
	require.True(t, ok)
	require.Equal(t, Styles, g.Name)

	g, ok = r.OutputOwner("dist/assets/fonts/x.woff")
	require.True(t, ok)
	require.Equal(t, Other, g.Name)

	_, ok = r.OutputOwner("functions.php")
	require.False(t, ok)
}

func TestWatchDirs(t *testing.T) {
	r := defaultRegistry(t)
	require.Equal(t, []string{".", "src/assets", "src/assets/images", "src/assets/js", "src/assets/scss"}, r.WatchDirs())
}
