package cli

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image-handler/internal/params"
)

// writeConfig writes a config.toml pointing the filesystem provider and
// store at temp directories and returns the config dir and source dir.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	src := filepath.Join(dir, "sources")
	require.NoError(t, os.MkdirAll(src, 0o755))

	toml := fmt.Sprintf(`
[provider]
base_path = %q

[store]
base_path = %q
`, src, filepath.Join(dir, "cache"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644))

	return dir, src
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "image-handler", cmd.Use)

	for _, name := range []string{"serve", "render", "key", "warm"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	dirFlag := cmd.PersistentFlags().Lookup("config-dir")
	require.NotNil(t, dirFlag)
	assert.Equal(t, ".", dirFlag.DefValue)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestKeyCommand(t *testing.T) {
	dir, _ := writeConfig(t)

	out, err := run(t, "key", "--config-dir", dir, "src=a.jpg", "WIDTH=10")
	require.NoError(t, err)

	want := params.FromMap(map[string]string{"src": "a.jpg", "width": "10"}).DeriveKey()
	assert.Equal(t, want.String(), strings.TrimSpace(out))
}

func TestRenderCommand(t *testing.T) {
	dir, src := writeConfig(t)
	img := imaging.New(40, 20, color.NRGBA{G: 255, A: 255})
	require.NoError(t, imaging.Save(img, filepath.Join(src, "green.png")))

	outFile := filepath.Join(t.TempDir(), "out.png")
	out, err := run(t, "render", "--config-dir", dir, "--out", outFile, "src=green.png", "width=20")
	require.NoError(t, err)
	assert.Contains(t, out, "image/png")
	assert.Contains(t, out, "miss")

	f, err := os.Open(outFile)
	require.NoError(t, err)
	defer f.Close()
	decoded, _, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 20, decoded.Bounds().Dx())
	assert.Equal(t, 10, decoded.Bounds().Dy())

	out, err = run(t, "render", "--config-dir", dir, "--out", outFile, "src=green.png", "width=20")
	require.NoError(t, err)
	assert.Contains(t, out, "hit")
}

func TestRenderCommand_RequiresOut(t *testing.T) {
	dir, _ := writeConfig(t)
	_, err := run(t, "render", "--config-dir", dir, "src=green.png")
	assert.Error(t, err)
}

func TestRenderCommand_MissingSource(t *testing.T) {
	dir, _ := writeConfig(t)
	_, err := run(t, "render", "--config-dir", dir, "--out", filepath.Join(t.TempDir(), "x"), "src=nope.png")
	assert.Error(t, err)
}

func TestArgValues(t *testing.T) {
	v := argValues([]string{"src=a.jpg", "Width=10", "q=a=b"})
	assert.Equal(t, "a.jpg", v.Get("src"))
	assert.Equal(t, "10", v.Get("width"))
	assert.Equal(t, "a=b", v.Get("q"))
}
