package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/stepper"
)

func userMsg(text string) *convo.Message {
	return convo.NewUserMessage(ids.NewMessageID(), nil, 1, convo.UserContent{Text: &convo.TextContent{Text: text}})
}

func TestResumeStateUnknownSessionReturnsInitialState(t *testing.T) {
	store := eventstore.NewMemoryStore()
	state, seq, outputs, err := ResumeState(context.Background(), store, ids.NewSessionID(), SystemClock)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)
	assert.Nil(t, outputs)
	assert.Equal(t, stepper.PhaseAwaitingModel, state.Phase)
}

func TestResumeStateFromSnapshotNoPendingToolCalls(t *testing.T) {
	forest := convo.NewForest()
	msg := userMsg("hello")
	forest.Add(msg)
	forest.SetActiveLeaf(msg.ID)

	snap := eventstore.Snapshot{Forest: forest, ActiveMessageID: msg.ID, LatestSeq: 1}

	state, outputs := ResumeStateFromSnapshot(snap, SystemClock)
	assert.Nil(t, outputs)
	assert.Equal(t, stepper.PhaseAwaitingModel, state.Phase)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, msg.ID, state.Messages[0].ID)
}

// TestResumeStateFromSnapshotSynthesizesCancellation mirrors a session
// resumed mid-operation: a tool call was in flight (status "executing")
// when the process died. Resuming must synthesize the same cancellation
// a live CancelProcessingCmd would have produced, not merely drop the
// dangling call.
func TestResumeStateFromSnapshotSynthesizesCancellation(t *testing.T) {
	forest := convo.NewForest()
	user := userMsg("run the tests")
	forest.Add(user)

	callID := ids.ToolCallIDFromModel("toolu_1")
	asstID := ids.NewMessageID()
	parent := user.ID
	asst := convo.NewAssistantMessage(asstID, &parent, 2, convo.AssistantContent{
		ToolCall: &convo.ToolCall{ID: callID, Name: "bash", Parameters: []byte(`{"command":"go test ./..."}`)},
	})
	forest.Add(asst)
	forest.SetActiveLeaf(asstID)

	snap := eventstore.Snapshot{
		Forest:          forest,
		ActiveMessageID: asstID,
		ToolCallStatus:  map[ids.ToolCallID]eventstore.ToolCallStatus{callID: eventstore.ToolCallExecuting},
		LatestSeq:       3,
	}

	state, outputs := ResumeStateFromSnapshot(snap, SystemClock)

	require.Equal(t, stepper.PhaseCancelled, state.Phase)
	require.NotEmpty(t, outputs)

	var sawCancelledTool bool
	for _, out := range outputs {
		if emit, ok := out.(stepper.EmitMessageOutput); ok {
			if emit.Message.Role == convo.RoleTool && emit.Message.Tool.ToolUseID == callID {
				require.Equal(t, convo.ResultError, emit.Message.Tool.Result.Kind)
				assert.Equal(t, convo.ErrorCancelled, emit.Message.Tool.Result.Error.Kind)
				sawCancelledTool = true
			}
		}
	}
	assert.True(t, sawCancelledTool, "expected a synthesized cancelled tool-result message")

	_, lastIsCancelled := outputs[len(outputs)-1].(stepper.CancelledOutput)
	assert.True(t, lastIsCancelled)
}

func TestResumeStateFromSnapshotPendingApproval(t *testing.T) {
	forest := convo.NewForest()
	user := userMsg("delete the repo")
	forest.Add(user)

	callID := ids.ToolCallIDFromModel("toolu_2")
	asstID := ids.NewMessageID()
	parent := user.ID
	asst := convo.NewAssistantMessage(asstID, &parent, 2, convo.AssistantContent{
		ToolCall: &convo.ToolCall{ID: callID, Name: "bash", Parameters: []byte(`{"command":"rm -rf ."}`)},
	})
	forest.Add(asst)
	forest.SetActiveLeaf(asstID)

	snap := eventstore.Snapshot{
		Forest:          forest,
		ActiveMessageID: asstID,
		ToolCallStatus:  map[ids.ToolCallID]eventstore.ToolCallStatus{callID: eventstore.ToolCallPendingApproval},
		LatestSeq:       2,
	}

	state, _ := ResumeStateFromSnapshot(snap, SystemClock)
	require.Equal(t, stepper.PhaseCancelled, state.Phase)
}
