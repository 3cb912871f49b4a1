// Package ids defines the strongly-typed identifiers used throughout the
// runtime. SessionID, OperationID, MessageID, and RequestID wrap a
// time-ordered UUID (v7) minted by the runtime. ToolCallID wraps an opaque
// string because §3.3 of the spec requires the runtime to preserve
// model-issued tool call ids verbatim rather than renaming them into its
// own id scheme; see DESIGN.md for this Open-Question resolution. Each kind
// is a distinct defined type, so the compiler rejects comparisons or
// assignments across kinds even though several are UUID-backed.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionID identifies a conversation session.
type SessionID struct{ v uuid.UUID }

// OperationID identifies one user-initiated unit of work within a session.
type OperationID struct{ v uuid.UUID }

// MessageID identifies a single message in a session's message forest.
type MessageID struct{ v uuid.UUID }

// RequestID identifies a single approval request sent to a caller.
type RequestID struct{ v uuid.UUID }

// ToolCallID is the opaque id a model assigns to a tool call. The runtime
// never rewrites these; it only mints one (via NewSyntheticToolCallID) for
// a tool call it issues itself, such as the bash call behind a direct
// ExecuteBashCommand.
type ToolCallID struct{ v string }

func newV7() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system clock/rand source is broken;
		// falling back to v4 keeps the runtime alive rather than panicking
		// on an id mint.
		return uuid.New()
	}
	return id
}

// NewSessionID mints a fresh, time-ordered session id.
func NewSessionID() SessionID { return SessionID{newV7()} }

// NewOperationID mints a fresh, time-ordered operation id.
func NewOperationID() OperationID { return OperationID{newV7()} }

// NewMessageID mints a fresh, time-ordered message id.
func NewMessageID() MessageID { return MessageID{newV7()} }

// NewRequestID mints a fresh, time-ordered request id.
func NewRequestID() RequestID { return RequestID{newV7()} }

// ToolCallIDFromModel wraps a model-issued tool call id verbatim.
func ToolCallIDFromModel(raw string) ToolCallID { return ToolCallID{raw} }

// NewSyntheticToolCallID mints a runtime-owned tool call id for a call no
// model issued. The scheduler's direct ExecuteBashCommand path is its one
// caller.
func NewSyntheticToolCallID() ToolCallID { return ToolCallID{"synthetic_" + newV7().String()} }

func (id SessionID) String() string   { return "sess_" + id.v.String() }
func (id OperationID) String() string { return "op_" + id.v.String() }
func (id MessageID) String() string   { return "msg_" + id.v.String() }
func (id RequestID) String() string   { return "req_" + id.v.String() }
func (id ToolCallID) String() string  { return id.v }

// IsZero reports whether the id was never assigned.
func (id SessionID) IsZero() bool   { return id.v == uuid.Nil }
func (id OperationID) IsZero() bool { return id.v == uuid.Nil }
func (id MessageID) IsZero() bool   { return id.v == uuid.Nil }
func (id RequestID) IsZero() bool   { return id.v == uuid.Nil }
func (id ToolCallID) IsZero() bool  { return id.v == "" }

// MarshalText/UnmarshalText make every id kind a valid JSON string and map
// key, as required by the event store and RPC envelopes.

func (id SessionID) MarshalText() ([]byte, error)   { return []byte(id.v.String()), nil }
func (id OperationID) MarshalText() ([]byte, error) { return []byte(id.v.String()), nil }
func (id MessageID) MarshalText() ([]byte, error)   { return []byte(id.v.String()), nil }
func (id RequestID) MarshalText() ([]byte, error)   { return []byte(id.v.String()), nil }
func (id ToolCallID) MarshalText() ([]byte, error)  { return []byte(id.v), nil }

func (id *SessionID) UnmarshalText(b []byte) error {
	v, err := uuid.ParseBytes(b)
	if err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	id.v = v
	return nil
}

func (id *OperationID) UnmarshalText(b []byte) error {
	v, err := uuid.ParseBytes(b)
	if err != nil {
		return fmt.Errorf("operation id: %w", err)
	}
	id.v = v
	return nil
}

func (id *MessageID) UnmarshalText(b []byte) error {
	v, err := uuid.ParseBytes(b)
	if err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	id.v = v
	return nil
}

func (id *RequestID) UnmarshalText(b []byte) error {
	v, err := uuid.ParseBytes(b)
	if err != nil {
		return fmt.Errorf("request id: %w", err)
	}
	id.v = v
	return nil
}

func (id *ToolCallID) UnmarshalText(b []byte) error {
	id.v = string(b)
	return nil
}

// ParseSessionID parses a bare UUID into a SessionID, for use at RPC and
// storage boundaries where the caller supplies a raw string.
func ParseSessionID(s string) (SessionID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, fmt.Errorf("session id: %w", err)
	}
	return SessionID{v}, nil
}

// ParseOperationID parses a bare UUID into an OperationID.
func ParseOperationID(s string) (OperationID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return OperationID{}, fmt.Errorf("operation id: %w", err)
	}
	return OperationID{v}, nil
}

// ParseMessageID parses a bare UUID into a MessageID.
func ParseMessageID(s string) (MessageID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return MessageID{}, fmt.Errorf("message id: %w", err)
	}
	return MessageID{v}, nil
}
