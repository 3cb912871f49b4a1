package eventstore

import (
	"fmt"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
)

// Snapshot is the state a session's event log reconstructs to. It must
// be identical, field for field, to whatever the runtime scheduler holds
// in memory for the same session at the same seq (§8 invariant 4).
type Snapshot struct {
	DefaultModel    string
	Metadata        map[string]string
	Forest          *convo.Forest
	ActiveMessageID ids.MessageID
	ToolCallStatus  map[ids.ToolCallID]ToolCallStatus
	ApprovedTools   map[string]bool
	ApprovedBash    map[string]bool
	LatestSeq       uint64
}

// Reduce folds an ordered event slice (as returned by Store.Load) into a
// Snapshot. It is pure: same input, same output, no I/O, so tests can
// assert it against whatever the scheduler's live state looks like after
// processing the same events through the stepper.
func Reduce(events []Event) (Snapshot, error) {
	snap := Snapshot{
		Forest:         convo.NewForest(),
		ToolCallStatus: make(map[ids.ToolCallID]ToolCallStatus),
		ApprovedTools:  make(map[string]bool),
		ApprovedBash:   make(map[string]bool),
		Metadata:       make(map[string]string),
	}

	for _, e := range events {
		switch e.Type {
		case EventSessionCreated:
			if e.SessionCreated == nil {
				return snap, fmt.Errorf("seq %d: session_created missing payload", e.Seq)
			}
			snap.DefaultModel = e.SessionCreated.DefaultModel
			for k, v := range e.SessionCreated.Metadata {
				snap.Metadata[k] = v
			}

		case EventMessageAppended:
			if e.MessageAppended == nil {
				return snap, fmt.Errorf("seq %d: message_appended missing payload", e.Seq)
			}
			msg, err := e.MessageAppended.DecodeMessage()
			if err != nil {
				return snap, fmt.Errorf("seq %d: %w", e.Seq, err)
			}
			snap.Forest.Add(msg)
			snap.ActiveMessageID = msg.ID
			applyMessageToToolStatus(snap, msg)

		case EventToolCallStatusChanged:
			if e.ToolCallStatusChanged == nil {
				return snap, fmt.Errorf("seq %d: tool_call_status_changed missing payload", e.Seq)
			}
			snap.ToolCallStatus[e.ToolCallStatusChanged.ID] = e.ToolCallStatusChanged.Status

		case EventApprovalRecorded:
			if e.ApprovalRecorded == nil {
				return snap, fmt.Errorf("seq %d: approval_recorded missing payload", e.Seq)
			}
			if e.ApprovalRecorded.ToolName != "" {
				snap.ApprovedTools[e.ApprovalRecorded.ToolName] = true
			}
			if e.ApprovalRecorded.BashPattern != "" {
				snap.ApprovedBash[e.ApprovalRecorded.BashPattern] = true
			}

		case EventActiveMessageChanged:
			if e.ActiveMessageChanged == nil {
				return snap, fmt.Errorf("seq %d: active_message_changed missing payload", e.Seq)
			}
			snap.ActiveMessageID = e.ActiveMessageChanged.MessageID
			snap.Forest.SetActiveLeaf(snap.ActiveMessageID)

		case EventSessionMetadataUpdated:
			if e.SessionMetadataUpdated == nil {
				return snap, fmt.Errorf("seq %d: session_metadata_updated missing payload", e.Seq)
			}
			for k, v := range e.SessionMetadataUpdated.Metadata {
				snap.Metadata[k] = v
			}

		default:
			return snap, fmt.Errorf("seq %d: unknown event type %q", e.Seq, e.Type)
		}

		snap.LatestSeq = e.Seq
	}

	return snap, nil
}

// applyMessageToToolStatus derives ToolCallStatus transitions implied by
// a message, so a reducer fed only MessageAppended events (no explicit
// ToolCallStatusChanged events) still satisfies §3.4's consistency
// invariant: pending_approval / executing / completed / failed tracks
// the messages on the active path.
func applyMessageToToolStatus(snap Snapshot, msg *convo.Message) {
	if msg.Assistant != nil {
		for _, tc := range msg.ToolCalls() {
			if _, ok := snap.ToolCallStatus[tc.ID]; !ok {
				snap.ToolCallStatus[tc.ID] = ToolCallPendingApproval
			}
		}
	}
	if msg.Role == convo.RoleTool && msg.Tool != nil {
		if msg.Tool.Result.Kind == convo.ResultError {
			snap.ToolCallStatus[msg.Tool.ToolUseID] = ToolCallFailed
		} else {
			snap.ToolCallStatus[msg.Tool.ToolUseID] = ToolCallCompleted
		}
	}
}
