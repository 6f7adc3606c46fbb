package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Envelope is the wire shape shared by commands and events:
// {"name": string, "payload": object}.
type Envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeCommand wraps cmd in an envelope.
func EncodeCommand(cmd Command) (Envelope, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode command %s: %w", cmd.CommandName(), err)
	}
	return Envelope{Name: string(cmd.CommandName()), Payload: payload}, nil
}

// DecodeCommand unwraps a command envelope. Unknown fields in the payload are
// rejected so that typos in scenario files surface as errors.
func DecodeCommand(env Envelope) (Command, error) {
	ptr, ok := newCommand(CommandName(env.Name))
	if !ok {
		return nil, fmt.Errorf("unknown command %q", env.Name)
	}
	if err := decodeStrict(env.Payload, ptr); err != nil {
		return nil, fmt.Errorf("decode command %s: %w", env.Name, err)
	}
	return reflect.ValueOf(ptr).Elem().Interface().(Command), nil
}

// EncodeEvent wraps ev in an envelope.
func EncodeEvent(ev Event) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode event %s: %w", ev.EventName(), err)
	}
	return Envelope{Name: string(ev.EventName()), Payload: payload}, nil
}

// DecodeEvent unwraps an event envelope.
func DecodeEvent(env Envelope) (Event, error) {
	ptr, ok := newEvent(EventName(env.Name))
	if !ok {
		return nil, fmt.Errorf("unknown event %q", env.Name)
	}
	if err := decodeStrict(env.Payload, ptr); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", env.Name, err)
	}
	return reflect.ValueOf(ptr).Elem().Interface().(Event), nil
}

// MarshalEnvelope encodes a command or event to its wire bytes.
func MarshalEnvelope(env Envelope) ([]byte, error) {
	if len(env.Payload) == 0 {
		env.Payload = json.RawMessage("{}")
	}
	return json.Marshal(env)
}

// UnmarshalEnvelope parses wire bytes into an envelope.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	if env.Name == "" {
		return Envelope{}, fmt.Errorf("parse envelope: missing name")
	}
	return env, nil
}

func decodeStrict(payload []byte, into any) error {
	if len(payload) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}
