package protocol

import (
	"encoding/json"
	"fmt"
)

// Codec frames outbound events and parses inbound messages for one session.
type Codec interface {
	Name() string
	// Binary reports whether frames go out as binary websocket messages.
	Binary() bool
	Encode(event string, data any) ([]byte, error)
	Decode(frame []byte) (Inbound, error)
	// DecodeEvent parses a server event on the client side.
	DecodeEvent(frame []byte) (Outbound, error)
}

// Inbound is a decoded message whose payload is bound lazily.
type Inbound struct {
	Type MessageType
	Name string // wire name as sent
	bind func(v any) error
}

// HasData reports whether the message carried a payload.
func (in Inbound) HasData() bool {
	return in.bind != nil
}

// Bind decodes the payload into v.
func (in Inbound) Bind(v any) error {
	if in.bind == nil {
		return fmt.Errorf("%s: missing data", in.Name)
	}
	if err := in.bind(v); err != nil {
		return fmt.Errorf("%s: %w", in.Name, err)
	}
	return nil
}

// BindString binds a payload that is either a bare string or an object.
// The bare form is tried first; obj receives the object form.
func (in Inbound) BindString(s *string, obj any) error {
	if in.bind == nil {
		return fmt.Errorf("%s: missing data", in.Name)
	}
	if err := in.bind(s); err == nil {
		return nil
	}
	return in.Bind(obj)
}

// Outbound is a server event as a client sees it
type Outbound struct {
	Event string
	bind  func(v any) error
}

func (o Outbound) Bind(v any) error {
	if o.bind == nil {
		return fmt.Errorf("%s: missing data", o.Event)
	}
	if err := o.bind(v); err != nil {
		return fmt.Errorf("%s: %w", o.Event, err)
	}
	return nil
}

// Codecs are selected per connection with ?codec=
var codecs = map[string]Codec{
	"":        JSONCodec{},
	"json":    JSONCodec{},
	"msgpack": MsgpackCodec{},
}

// Lookup returns the codec registered under name. The empty name is JSON.
func Lookup(name string) (Codec, bool) {
	c, ok := codecs[name]
	return c, ok
}

// resolve maps the envelope name to an inbound type.
func resolve(kind, event string) (MessageType, string, error) {
	name := kind
	if name == "" {
		name = event
	}
	t, ok := ParseMessageType(name)
	if !ok {
		return "", name, fmt.Errorf("%w: %q", ErrUnknownMessage, name)
	}
	return t, name, nil
}

// ============================================================================
// JSON
// ============================================================================

// jsonEnvelope accepts "type" or "event" for the name so both the canonical
// and the legacy clients decode.
type jsonEnvelope struct {
	Type  string          `json:"type,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundJSON struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JSONCodec is the default text codec.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(event string, data any) ([]byte, error) {
	b, err := json.Marshal(outboundJSON{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

// unpack splits a frame into its name and a lazy payload binder
func (JSONCodec) unpack(frame []byte) (jsonEnvelope, func(v any) error, error) {
	var env jsonEnvelope
	if len(frame) == 0 {
		return env, nil, ErrEmptyFrame
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return env, nil, nil
	}
	raw := env.Data
	return env, func(v any) error { return json.Unmarshal(raw, v) }, nil
}

func (c JSONCodec) Decode(frame []byte) (Inbound, error) {
	env, bind, err := c.unpack(frame)
	if err != nil {
		return Inbound{}, err
	}
	t, name, err := resolve(env.Type, env.Event)
	if err != nil {
		return Inbound{}, err
	}
	return Inbound{Type: t, Name: name, bind: bind}, nil
}

func (c JSONCodec) DecodeEvent(frame []byte) (Outbound, error) {
	env, bind, err := c.unpack(frame)
	if err != nil {
		return Outbound{}, err
	}
	return Outbound{Event: env.Event, bind: bind}, nil
}
