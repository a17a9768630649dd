package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Control strings exchanged outside the structured message format.
const (
	Ping = "ping"
	Pong = "pong"
)

var (
	// ErrMalformed reports a frame that is not a valid structured message.
	ErrMalformed = errors.New("protocol: malformed frame")
	// ErrUnknownType reports a well-formed message with an unrecognized
	// discriminant.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// Frame is the result of decoding one inbound frame: either a bare control
// string or a structured event, never both.
type Frame struct {
	Control string
	Event   Event
}

// IsPing reports whether the frame is a keepalive ping.
func (f Frame) IsPing() bool { return f.Control == Ping }

// IsPong reports whether the frame is a keepalive pong.
func (f Frame) IsPong() bool { return f.Control == Pong }

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one inbound frame. Control strings are recognized before
// any structured decoding. Errors wrap ErrMalformed or ErrUnknownType.
func Decode(raw []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case Ping, Pong:
		return Frame{Control: string(trimmed)}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	ev, err := decode(trimmed)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return Frame{Event: ev}, nil
}

// Encode serializes a command as {"action": ..., params...}.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("protocol: encode: nil command")
	}
	params, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", cmd.Action(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(params, &fields); err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", cmd.Action(), err)
	}
	action, _ := json.Marshal(cmd.Action())
	fields["action"] = action
	return json.Marshal(fields)
}
