package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildFailedErrorMessage(t *testing.T) {
	err := &BuildFailedError{Count: 3}
	assert.Equal(t, "finished with 3 plugin error(s)", err.Error())
}

func TestInitScaffoldsProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-game")
	initMinimal = false
	t.Cleanup(func() { initMinimal = false })

	require.NoError(t, runInit(initCmd, []string{dir}))

	for _, sub := range []string{
		filepath.Join("assets", "static"),
		filepath.Join("assets", "sprites"),
		filepath.Join("assets", "shaders"),
		filepath.Join("assets", "maps"),
		"client",
		filepath.Join("editor", "client"),
		filepath.Join("editor", "server"),
	} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}

	data, err := os.ReadFile(filepath.Join(dir, ".assetforge.yml"))
	require.NoError(t, err)

	var cfg projectConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "dist", cfg.OutputPath)
	assert.Equal(t, 8443, cfg.Live.Port)
}

func TestInitMinimalSkipsDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bare")
	initMinimal = true
	t.Cleanup(func() { initMinimal = false })

	require.NoError(t, runInit(initCmd, []string{dir}))

	_, err := os.Stat(filepath.Join(dir, ".assetforge.yml"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "assets"))
	assert.True(t, os.IsNotExist(err))
}

func TestInitRefusesExistingConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".assetforge.yml"), []byte("output_path: dist\n"), 0o644))

	err := runInit(initCmd, []string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
