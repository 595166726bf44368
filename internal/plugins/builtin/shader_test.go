package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetforge/assetforge/internal/protocol"
	"github.com/assetforge/assetforge/internal/watcher"
)

const shaderSrc = "// water shader\nvoid main() {\n    gl_FragColor = vec4(0.0, 0.3, 0.8, 1.0); // blue\n}\n"

func TestShaderBuildDeploysSource(t *testing.T) {
	bctx := testProject(t)
	writeAsset(t, bctx, filepath.Join("shaders", "water.frag"), []byte(shaderSrc))

	sh := NewShaderPlugin()
	require.NoError(t, sh.Build(bctx))

	deployed, err := os.ReadFile(bctx.Paths.Output("shaders", "water.frag"))
	require.NoError(t, err)
	assert.Equal(t, shaderSrc, string(deployed), "development build keeps sources intact")
}

func TestShaderProductionMinifies(t *testing.T) {
	bctx := testProject(t)
	bctx.Production = true
	writeAsset(t, bctx, filepath.Join("shaders", "water.frag"), []byte(shaderSrc))

	sh := NewShaderPlugin()
	require.NoError(t, sh.Build(bctx))

	deployed, err := os.ReadFile(bctx.Paths.Output("shaders", "water.frag"))
	require.NoError(t, err)
	assert.Equal(t, "void main() {\n    gl_FragColor = vec4(0.0, 0.3, 0.8, 1.0);\n}\n", string(deployed))
}

func TestShaderBuildSkipsForeignExtensions(t *testing.T) {
	bctx := testProject(t)
	writeAsset(t, bctx, filepath.Join("shaders", "notes.md"), []byte("docs"))

	sh := NewShaderPlugin()
	require.NoError(t, sh.Build(bctx))

	_, err := os.Stat(bctx.Paths.Output("shaders", "notes.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestShaderWatchEmitsNewSource(t *testing.T) {
	bctx, emitted := emittingProject(t)
	src := writeAsset(t, bctx, filepath.Join("shaders", "fx", "water.frag"), []byte(shaderSrc))

	sh := NewShaderPlugin()
	require.NoError(t, sh.Build(bctx))

	capture := &captureSubscribe{}
	require.NoError(t, sh.Watch(bctx, capture.fn))
	require.NotNil(t, capture.handler)

	edited := "void main() { gl_FragColor = vec4(1.0); }\n"
	require.NoError(t, os.WriteFile(src, []byte(edited), 0o644))
	future := timeNowPlusHour()
	require.NoError(t, os.Chtimes(src, future, future))

	capture.handler([]watcher.Event{{Type: watcher.EventTypeUpdate, Path: src}})

	require.Len(t, *emitted, 1)
	m := (*emitted)[0]
	assert.Equal(t, protocol.TypeReloadShader, m.Type)
	assert.Equal(t, "fx/water", m.String("shader"))
	assert.Equal(t, edited, m.String("src"), "clients receive the deployed source inline")
}

func TestShaderWatchDeleteRemovesOutput(t *testing.T) {
	bctx, emitted := emittingProject(t)
	src := writeAsset(t, bctx, filepath.Join("shaders", "old.glsl"), []byte(shaderSrc))

	sh := NewShaderPlugin()
	require.NoError(t, sh.Build(bctx))

	capture := &captureSubscribe{}
	require.NoError(t, sh.Watch(bctx, capture.fn))

	require.NoError(t, os.Remove(src))
	capture.handler([]watcher.Event{{Type: watcher.EventTypeDelete, Path: src}})

	_, err := os.Stat(bctx.Paths.Output("shaders", "old.glsl"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, *emitted)
}

func TestShaderName(t *testing.T) {
	assert.Equal(t, "water", shaderName("water.frag"))
	assert.Equal(t, "fx/glow", shaderName(filepath.Join("fx", "glow.glsl")))
}
