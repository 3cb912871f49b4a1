// Package eventstore implements the append-only, per-session event log
// (§4.3): the durable record every session's state is rebuilt from on
// resume. It ships two backends — an in-memory one for tests and
// short-lived sessions, and a SQLite-backed one for durability across
// restarts — plus a pure reducer that must agree with the stepper's own
// in-memory state (§8 invariant 4).
package eventstore

import (
	"encoding/json"
	"errors"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
)

// ErrNotFound reports an unknown session. Neither Store backend returns
// it: Load/LoadSince on a session with no log return an empty result and
// a nil error.
var ErrNotFound = errors.New("eventstore: session not found")

// ErrSeqConflict is returned when Append is called with an expected
// sequence number that no longer matches the log's tip — the single-
// writer discipline (§5) means this should never happen in practice, but
// the store still checks it rather than trusting the caller.
var ErrSeqConflict = errors.New("eventstore: sequence conflict")

// EventType enumerates the event kinds that reconstruct session state,
// per §4.3.
type EventType string

const (
	EventSessionCreated        EventType = "session_created"
	EventMessageAppended       EventType = "message_appended"
	EventToolCallStatusChanged EventType = "tool_call_status_changed"
	EventApprovalRecorded      EventType = "approval_recorded"
	EventActiveMessageChanged  EventType = "active_message_changed"
	EventSessionMetadataUpdated EventType = "session_metadata_updated"
)

// ToolCallStatus mirrors §3.4's per-ToolCallId status.
type ToolCallStatus string

const (
	ToolCallPendingApproval ToolCallStatus = "pending_approval"
	ToolCallExecuting       ToolCallStatus = "executing"
	ToolCallCompleted       ToolCallStatus = "completed"
	ToolCallFailed          ToolCallStatus = "failed"
)

// Event is one entry in a session's append-only log. Exactly one payload
// field matching Type is populated.
type Event struct {
	SessionID ids.SessionID `json:"sessionID"`
	Seq       uint64        `json:"seq"`
	Timestamp int64         `json:"timestamp"`
	Type      EventType     `json:"type"`

	SessionCreated        *SessionCreatedPayload        `json:"sessionCreated,omitempty"`
	MessageAppended       *MessageAppendedPayload        `json:"messageAppended,omitempty"`
	ToolCallStatusChanged *ToolCallStatusChangedPayload `json:"toolCallStatusChanged,omitempty"`
	ApprovalRecorded      *ApprovalRecordedPayload       `json:"approvalRecorded,omitempty"`
	ActiveMessageChanged  *ActiveMessageChangedPayload   `json:"activeMessageChanged,omitempty"`
	SessionMetadataUpdated *SessionMetadataUpdatedPayload `json:"sessionMetadataUpdated,omitempty"`
}

type SessionCreatedPayload struct {
	DefaultModel string            `json:"defaultModel"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type MessageAppendedPayload struct {
	Message json.RawMessage `json:"message"`
}

type ToolCallStatusChangedPayload struct {
	ID     ids.ToolCallID `json:"id"`
	Status ToolCallStatus `json:"status"`
}

// ApprovalRecordedPayload records an "always allow" decision: either a
// bare tool name or a bash glob pattern, mirroring §3.5's two
// preapproval shapes.
type ApprovalRecordedPayload struct {
	ToolName    string `json:"toolName,omitempty"`
	BashPattern string `json:"bashPattern,omitempty"`
}

type ActiveMessageChangedPayload struct {
	MessageID ids.MessageID `json:"messageID"`
}

type SessionMetadataUpdatedPayload struct {
	Metadata map[string]string `json:"metadata"`
}

// DecodeMessage unmarshals a MessageAppended event's payload into a
// convo.Message.
func (p *MessageAppendedPayload) DecodeMessage() (*convo.Message, error) {
	var m convo.Message
	if err := json.Unmarshal(p.Message, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewMessageAppended builds a MessageAppended event payload from a
// concrete message.
func NewMessageAppended(m *convo.Message) (*MessageAppendedPayload, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return &MessageAppendedPayload{Message: raw}, nil
}
