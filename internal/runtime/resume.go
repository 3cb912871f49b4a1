package runtime

import (
	"context"
	"fmt"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/stepper"
)

// ResumeState rebuilds the stepper.State (plus any pending outputs) a
// resumed session's Scheduler should start from, by reducing the
// session's persisted event log. A session crashed or restarted with no
// tool call in flight resumes to a plain AwaitingModel state over its
// active path. A session that crashed with tool calls still pending
// approval or execution can't simply resume those calls — the model
// that requested them and the process executing them are both gone — so
// it instead runs the reconstructed mid-operation state through
// stepper.CancelInput{} once, reusing the stepper's own cancellation
// synthesis (stepCancel) to produce the same "cancelled: <tool>" Tool
// messages a live cancel would have produced, rather than writing a
// second code path to fabricate them.
//
// Exported for the wiring package's registry.Spawner implementation.
func ResumeState(ctx context.Context, store eventstore.Store, session ids.SessionID, clock stepper.Clock) (stepper.State, uint64, []stepper.Output, error) {
	events, err := store.Load(ctx, session)
	if err != nil {
		if err == eventstore.ErrNotFound {
			return stepper.NewInitialState(nil), 0, nil, nil
		}
		return stepper.State{}, 0, nil, fmt.Errorf("load session log: %w", err)
	}
	if len(events) == 0 {
		return stepper.NewInitialState(nil), 0, nil, nil
	}

	snap, err := eventstore.Reduce(events)
	if err != nil {
		return stepper.State{}, 0, nil, fmt.Errorf("reduce session log: %w", err)
	}
	state, outputs := resumeStateFromSnapshot(snap, clock)
	return state, snap.LatestSeq, outputs, nil
}

// ResumeStateFromSnapshot is ResumeState's pure half: callers that
// already have a Snapshot (e.g. the wiring package's spawn, which also
// needs the Snapshot itself to rebuild the session's workspace/policy)
// use this directly instead of paying for a second Load+Reduce.
func ResumeStateFromSnapshot(snap eventstore.Snapshot, clock stepper.Clock) (stepper.State, []stepper.Output) {
	return resumeStateFromSnapshot(snap, clock)
}

func resumeStateFromSnapshot(snap eventstore.Snapshot, clock stepper.Clock) (stepper.State, []stepper.Output) {
	active := snap.Forest.ActivePath()
	pending := snap.Forest.PendingToolCalls()
	if len(pending) == 0 {
		return stepper.NewInitialState(active), nil
	}

	state := stepper.State{
		Phase:            stepper.PhaseAwaitingToolApprovals,
		Messages:         active,
		PendingApprovals: make(map[ids.ToolCallID]convo.ToolCall),
		PendingResults:   make(map[ids.ToolCallID]convo.ToolCall),
	}
	for _, tc := range pending {
		state.CallOrder = append(state.CallOrder, tc.ID)
		if snap.ToolCallStatus[tc.ID] == eventstore.ToolCallExecuting {
			state.PendingResults[tc.ID] = tc
		} else {
			state.PendingApprovals[tc.ID] = tc
		}
	}

	return stepper.Step(state, stepper.CancelInput{}, clock)
}
