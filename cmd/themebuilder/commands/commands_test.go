package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

func parse(t *testing.T, args ...string) (*kong.Context, *CLI) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("themebuilder"),
		kong.Vars{"version": "test"},
		kong.Bind(&cli),
		kong.BindTo(context.Background(), (*context.Context)(nil)),
		kong.Exit(func(code int) { t.Fatalf("unexpected exit %d", code) }),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return kctx, &cli
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// project has no stylesheets so no sass binary is needed.
func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package.json":                 `{"name":"starter","version":"1.0.0"}`,
		"functions.php":                "<?php __('Hi', '_themename');",
		"src/assets/js/bundle.js":      "console.log('hello');\n",
		"src/assets/fonts/theme.woff2": "wOF2",
	})
	return root
}

func TestDefaultCommandIsDev(t *testing.T) {
	kctx, cli := parse(t)
	require.Equal(t, "dev", kctx.Command())
	require.Equal(t, config.DefaultFilename, cli.Config)
	require.False(t, cli.Prod)
}

func TestConfigPathFollowsRoot(t *testing.T) {
	_, cli := parse(t, "--root", "/srv/theme", "build")
	require.Equal(t, filepath.Join("/srv/theme", config.DefaultFilename), cli.configPath())

	_, cli = parse(t, "--root", "/srv/theme", "-c", "custom.yaml", "build")
	require.Equal(t, "custom.yaml", cli.configPath())
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	kctx, _ := parse(t, "init", "-o", dir)
	require.NoError(t, kctx.Run())
	require.FileExists(t, filepath.Join(dir, config.DefaultFilename))

	kctx, _ = parse(t, "init", "-o", dir)
	err := kctx.Run()
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	kctx, _ = parse(t, "init", "-o", dir, "--force")
	require.NoError(t, kctx.Run())
}

func TestBuildWritesAssets(t *testing.T) {
	root := project(t)

	kctx, _ := parse(t, "--root", root, "build")
	require.NoError(t, kctx.Run())

	require.FileExists(t, filepath.Join(root, "dist/assets/js/bundle.js"))
	require.FileExists(t, filepath.Join(root, "dist/assets/fonts/theme.woff2"))
}

func TestBundleFollowsProdFlag(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		sourceMap bool
	}{
		{name: "development", args: []string{"bundle"}, sourceMap: true},
		{name: "production", args: []string{"--prod", "bundle"}, sourceMap: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := project(t)

			kctx, cli := parse(t, append([]string{"--root", root}, tt.args...)...)
			require.Equal(t, !tt.sourceMap, cli.Prod)
			require.NoError(t, kctx.Run())

			require.FileExists(t, filepath.Join(root, "packaged/starter.zip"))
			js, err := os.ReadFile(filepath.Join(root, "dist/assets/js/bundle.js"))
			require.NoError(t, err)
			if tt.sourceMap {
				require.Contains(t, string(js), "sourceMappingURL")
			} else {
				require.NotContains(t, string(js), "sourceMappingURL")
			}
		})
	}
}

func TestGraphToFile(t *testing.T) {
	root := project(t)
	out := filepath.Join(t.TempDir(), "tasks.mmd")

	kctx, _ := parse(t, "--root", root, "graph", "-f", "mermaid", "-o", out)
	require.NoError(t, kctx.Run())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), "graph TD")
	require.Contains(t, string(data), "clean --> styles")
}

func TestMissingRootIsConfigError(t *testing.T) {
	kctx, _ := parse(t, "--root", filepath.Join(t.TempDir(), "missing"), "clean")
	err := kctx.Run()
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}
