package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalFlattensPayload(t *testing.T) {
	m := ReloadShader("water", "void main() {}")

	data, err := Encode(m)
	require.NoError(t, err)

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &obj))
	assert.Equal(t, TypeReloadShader, obj["type"])
	assert.Equal(t, "water", obj["shader"])
	assert.Equal(t, "void main() {}", obj["src"])
}

func TestDecodeRoundTrip(t *testing.T) {
	original := ReloadMap("dungeon")

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeReloadMap, decoded.Type)
	assert.Equal(t, "dungeon", decoded.String("map"))
}

func TestDecodeMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"shader": "water"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type")
}

func TestDecodeEmptyType(t *testing.T) {
	_, err := Decode([]byte(`{"type": ""}`))
	assert.Error(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestRequestIDRoundTrip(t *testing.T) {
	m := New("MAP_EDIT").WithRequestID("req-42")
	assert.Equal(t, "req-42", m.RequestID())

	data, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "req-42", decoded.RequestID())
}

func TestWithRequestIDDoesNotMutate(t *testing.T) {
	original := New("MAP_EDIT")
	tagged := original.WithRequestID("req-1")

	assert.Equal(t, "", original.RequestID())
	assert.Equal(t, "req-1", tagged.RequestID())
}

func TestInitCarriesOutputRoot(t *testing.T) {
	m := Init("/tmp/out")
	assert.Equal(t, TypeInit, m.Type)
	assert.Equal(t, "/tmp/out", m.String("outputRoot"))
}

func TestStringAbsentField(t *testing.T) {
	assert.Equal(t, "", New(TypeRestart).String("missing"))
}

func TestReloadStaticResources(t *testing.T) {
	m := ReloadStatic(map[string]string{"logo.png": "/static/logo.png?v=abc"})

	data, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	resources, ok := decoded.Payload["resources"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/static/logo.png?v=abc", resources["logo.png"])
}
