// Package protocol defines the message envelope exchanged with the worker process.
// Messages are JSON objects, one per line.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates the envelope.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindCommand  Kind = "command"
	KindUpdate   Kind = "update"
)

// Message is the wire envelope. Which fields are set depends on Kind:
// request and response carry Channel and ID, command carries Action,
// update carries UpdateKind (plus Step/Status for progress).
type Message struct {
	Kind       Kind            `json:"kind"`
	Channel    Channel         `json:"channel,omitempty"`
	Action     Action          `json:"action,omitempty"`
	UpdateKind UpdateKind      `json:"updateKind,omitempty"`
	ID         string          `json:"id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`

	// Error is set on a response when the worker failed to serve the request.
	Error string `json:"error,omitempty"`

	// Progress fields travel inline rather than in Data.
	Step   string `json:"step,omitempty"`
	Status string `json:"status,omitempty"`
}

// ErrMalformed is returned by Decode for frames that are not a valid envelope.
var ErrMalformed = errors.New("malformed message")

// NewRequest builds a request envelope. A nil payload omits data.
func NewRequest(channel Channel, id string, payload any) (Message, error) {
	data, err := marshalData(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", channel, err)
	}
	return Message{Kind: KindRequest, Channel: channel, ID: id, Data: data}, nil
}

// NewResponse builds a response envelope for the request with the given id.
func NewResponse(channel Channel, id string, payload any) (Message, error) {
	data, err := marshalData(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", channel, err)
	}
	if data == nil {
		data = json.RawMessage("null")
	}
	return Message{Kind: KindResponse, Channel: channel, ID: id, Data: data}, nil
}

// NewCommand builds a fire-and-forget command envelope.
func NewCommand(action Action, payload any) (Message, error) {
	data, err := marshalData(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", action, err)
	}
	return Message{Kind: KindCommand, Action: action, Data: data}, nil
}

// NewUpdate builds an update envelope carrying payload in data.
func NewUpdate(kind UpdateKind, payload any) (Message, error) {
	data, err := marshalData(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Message{Kind: KindUpdate, UpdateKind: kind, Data: data}, nil
}

// NewProgress builds a progress update.
func NewProgress(step, status string) Message {
	return Message{Kind: KindUpdate, UpdateKind: UpdateProgress, Step: step, Status: status}
}

func marshalData(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}

// Encode serializes m as a single newline-terminated frame.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses one frame and validates the fields its kind requires.
func Decode(frame []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(frame, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate reports whether the fields required by m.Kind are present.
func (m Message) Validate() error {
	switch m.Kind {
	case KindRequest, KindResponse:
		if m.ID == "" {
			return fmt.Errorf("%w: %s without id", ErrMalformed, m.Kind)
		}
		if m.Channel == "" {
			return fmt.Errorf("%w: %s without channel", ErrMalformed, m.Kind)
		}
	case KindCommand:
		if m.Action == "" {
			return fmt.Errorf("%w: command without action", ErrMalformed)
		}
	case KindUpdate:
		if m.UpdateKind == "" {
			return fmt.Errorf("%w: update without updateKind", ErrMalformed)
		}
	case "":
		return fmt.Errorf("%w: missing kind", ErrMalformed)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, m.Kind)
	}
	return nil
}
