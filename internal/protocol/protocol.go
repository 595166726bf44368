// Package protocol defines the EditorMutation envelope exchanged over the
// live channel between the build host, the editor server, and connected
// clients.
//
// A mutation is a tagged union discriminated only by its "type" field; there
// is no transport-level marker. Two disjoint sub-universes exist: Actions
// flow from clients or the build host toward the editor, Events flow from
// the editor out to clients. Plugins may define domain-specific types as
// long as they conform to the {type: string, ...} shape.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Reserved mutation types.
const (
	TypeEditorConnected    = "EDITOR_CONNECTED"
	TypeEditorDisconnected = "EDITOR_DISCONNECTED"
	TypeInit               = "INIT"
	TypeRestart            = "RESTART"
	TypeReloadStatic       = "RELOAD_STATIC"
	TypeReloadMap          = "RELOAD_MAP"
	TypeReloadShader       = "RELOAD_SHADER"
	TypeReloadSpriteSheet  = "RELOAD_SPRITESHEET"
)

// requestIDField carries the correlation identifier for request/response
// exchanges with the editor server.
const requestIDField = "requestId"

// Mutation is the live-channel message envelope. Type discriminates the
// union; Payload holds every other field of the JSON object.
type Mutation struct {
	Type    string
	Payload map[string]interface{}
}

// New creates a mutation of the given type with no payload.
func New(mutationType string) Mutation {
	return Mutation{Type: mutationType, Payload: map[string]interface{}{}}
}

// NewWith creates a mutation of the given type carrying the given fields.
func NewWith(mutationType string, fields map[string]interface{}) Mutation {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return Mutation{Type: mutationType, Payload: fields}
}

// MarshalJSON flattens the payload fields alongside the type discriminator.
func (m Mutation) MarshalJSON() ([]byte, error) {
	obj := make(map[string]interface{}, len(m.Payload)+1)
	for k, v := range m.Payload {
		obj[k] = v
	}
	obj["type"] = m.Type
	return json.Marshal(obj)
}

// UnmarshalJSON splits the type discriminator from the remaining fields.
func (m *Mutation) UnmarshalJSON(data []byte) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t, ok := obj["type"].(string)
	if !ok || t == "" {
		return fmt.Errorf("mutation missing type field")
	}
	delete(obj, "type")
	m.Type = t
	m.Payload = obj
	return nil
}

// Decode parses a wire message into a Mutation.
func Decode(data []byte) (Mutation, error) {
	var m Mutation
	if err := json.Unmarshal(data, &m); err != nil {
		return Mutation{}, err
	}
	return m, nil
}

// Encode serializes a Mutation for the wire.
func Encode(m Mutation) ([]byte, error) {
	return json.Marshal(m)
}

// String returns a string payload field, or "" when absent.
func (m Mutation) String(field string) string {
	s, _ := m.Payload[field].(string)
	return s
}

// WithRequestID returns a copy of m tagged with a correlation identifier.
func (m Mutation) WithRequestID(id string) Mutation {
	payload := make(map[string]interface{}, len(m.Payload)+1)
	for k, v := range m.Payload {
		payload[k] = v
	}
	payload[requestIDField] = id
	return Mutation{Type: m.Type, Payload: payload}
}

// RequestID returns the correlation identifier, or "" when the mutation is
// not part of a request/response exchange.
func (m Mutation) RequestID() string {
	return m.String(requestIDField)
}

// EditorConnected is the first Action an editor sends on every fresh
// connection.
func EditorConnected() Mutation {
	return New(TypeEditorConnected)
}

// EditorDisconnected is the synthetic Event delivered to consumers when the
// channel to the editor drops.
func EditorDisconnected() Mutation {
	return New(TypeEditorDisconnected)
}

// Init is the synthetic Action the host answers EDITOR_CONNECTED with,
// carrying the current output root.
func Init(outputRoot string) Mutation {
	return NewWith(TypeInit, map[string]interface{}{"outputRoot": outputRoot})
}

// Restart asks the current editor instance to persist pending state and
// exit cleanly so the supervisor can replace it.
func Restart() Mutation {
	return New(TypeRestart)
}

// ReloadStatic announces re-deployed static resources, keyed by path with
// cache-busted URLs as values.
func ReloadStatic(resources map[string]string) Mutation {
	return NewWith(TypeReloadStatic, map[string]interface{}{"resources": resources})
}

// ReloadMap announces a rebuilt map.
func ReloadMap(name string) Mutation {
	return NewWith(TypeReloadMap, map[string]interface{}{"map": name})
}

// ReloadShader announces a rebuilt shader along with its new source.
func ReloadShader(name, src string) Mutation {
	return NewWith(TypeReloadShader, map[string]interface{}{"shader": name, "src": src})
}

// ReloadSpriteSheet announces a repacked sprite sheet.
func ReloadSpriteSheet(name string) Mutation {
	return NewWith(TypeReloadSpriteSheet, map[string]interface{}{"spriteSheet": name})
}
