// Package hub implements the Subscription Hub (§4.6): per-session
// fan-out of runtime events to any number of subscribers, each tracking
// its own replay position. It generalizes the teacher's single
// process-wide watermill bus (internal/event) into one gochannel topic
// per session, so since_seq replay and strict ordering are tractable.
package hub

import (
	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
)

// EventKind enumerates the wire events a session emits, per §4.6's table.
type EventKind string

const (
	KindMessageAdded          EventKind = "message_added"
	KindMessagePart           EventKind = "message_part"
	KindMessageUpdated        EventKind = "message_updated"
	KindProcessingStarted     EventKind = "processing_started"
	KindProcessingCompleted   EventKind = "processing_completed"
	KindToolCallStarted       EventKind = "tool_call_started"
	KindToolCallCompleted     EventKind = "tool_call_completed"
	KindToolCallFailed        EventKind = "tool_call_failed"
	KindRequestToolApproval   EventKind = "request_tool_approval"
	KindOperationCancelled    EventKind = "operation_cancelled"
	KindModelChanged          EventKind = "model_changed"
	KindActiveMessageIDChanged EventKind = "active_message_id_changed"
	KindWorkspaceChanged      EventKind = "workspace_changed"
	KindWorkspaceFiles        EventKind = "workspace_files"
	KindTitleGenerated        EventKind = "title_generated"
	KindError                 EventKind = "error"
)

// Event is the payload carried inside an Envelope. Exactly one field
// matching Kind is populated.
type Event struct {
	Kind EventKind

	MessageAdded        *MessageAddedData
	MessagePart         *MessagePartData
	MessageUpdated      *MessageUpdatedData
	ToolCallStarted     *ToolCallStartedData
	ToolCallCompleted   *ToolCallCompletedData
	ToolCallFailed      *ToolCallFailedData
	RequestToolApproval *RequestToolApprovalData
	OperationCancelled  *OperationCancelledData
	ModelChanged        *ModelChangedData
	ActiveMessageChanged *ActiveMessageChangedData
	WorkspaceFiles      *WorkspaceFilesData
	TitleGenerated      *TitleGeneratedData
	Error               *ErrorData
}

type MessageAddedData struct {
	Message *convo.Message
	Model   string
}

type MessagePartData struct {
	MessageID ids.MessageID
	Delta     string
}

type MessageUpdatedData struct {
	MessageID ids.MessageID
	Message   *convo.Message
}

type ToolCallStartedData struct {
	Name       string
	ID         ids.ToolCallID
	Parameters []byte
	Model      string
}

type ToolCallCompletedData struct {
	ID     ids.ToolCallID
	Result convo.ToolResult
}

type ToolCallFailedData struct {
	ID    ids.ToolCallID
	Error string
}

type RequestToolApprovalData struct {
	Name       string
	ID         ids.ToolCallID
	Parameters []byte
}

// OperationCancelledData lists what was in flight at the moment of
// cancellation, per §4.6.
type OperationCancelledData struct {
	ActiveTools      []ids.ToolCallID
	PendingApprovals []ids.ToolCallID
	ModelCallInFlight bool
}

type ModelChangedData struct{ Model string }

type ActiveMessageChangedData struct{ MessageID ids.MessageID }

type WorkspaceFilesData struct{ Files []string }

type TitleGeneratedData struct{ Title string }

type ErrorData struct{ Message string }

// Envelope wraps an Event with its durable position in the session's
// event log, the unit a subscriber actually receives. ID is a ULID
// minted at publish time: Seq alone doesn't disambiguate the several
// ephemeral envelopes (message_part, processing_started, ...) that
// share the same floor value between persisted events, so a subscriber
// reconnecting mid-stream uses ID, not Seq, to dedupe what it already
// rendered.
type Envelope struct {
	ID        string
	SessionID ids.SessionID
	Seq       uint64
	Timestamp int64
	Event     Event
}
