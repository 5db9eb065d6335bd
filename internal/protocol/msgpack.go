package protocol

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Game payloads only carry json tags; the msgpack side reuses them so field
// names match on both codecs.
const structTag = "json"

type msgpackEnvelope struct {
	Type  string             `msgpack:"type,omitempty"`
	Event string             `msgpack:"event,omitempty"`
	Data  msgpack.RawMessage `msgpack:"data,omitempty"`
}

type outboundMsgpack struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// MsgpackCodec frames messages as MessagePack binary websocket messages.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Encode(event string, data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag(structTag)
	if err := enc.Encode(outboundMsgpack{Event: event, Data: data}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) unpack(frame []byte) (msgpackEnvelope, func(v any) error, error) {
	var env msgpackEnvelope
	if len(frame) == 0 {
		return env, nil, ErrEmptyFrame
	}
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return env, nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Data) == 0 || env.Data[0] == msgpcode.Nil {
		return env, nil, nil
	}
	raw := env.Data
	return env, func(v any) error {
		dec := msgpack.NewDecoder(bytes.NewReader(raw))
		dec.SetCustomStructTag(structTag)
		return dec.Decode(v)
	}, nil
}

func (c MsgpackCodec) Decode(frame []byte) (Inbound, error) {
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

func (c MsgpackCodec) DecodeEvent(frame []byte) (Outbound, error) {
	env, bind, err := c.unpack(frame)
	if err != nil {
		return Outbound{}, err
	}
	return Outbound{Event: env.Event, bind: bind}, nil
}
