package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetforge/assetforge/internal/registry"
)

func TestRegisterDiscoveryOrder(t *testing.T) {
	r := registry.New()
	require.NoError(t, Register(r))

	assert.Equal(t, []string{"static", "spritesheet", "shader", "maps", "css"}, r.Names())
}

func TestRegisteredSetSortsWithoutCycles(t *testing.T) {
	r := registry.New()
	require.NoError(t, Register(r))

	plugins := r.Instantiate(nil, true)
	order, err := registry.Sort(registry.Describe(plugins))
	require.NoError(t, err)
	assert.Len(t, order, 5)
}
