package stepper

import (
	"testing"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userHello() *convo.Message {
	return convo.NewUserMessage(ids.NewMessageID(), nil, 1, convo.UserContent{Text: &convo.TextContent{Text: "ls please"}})
}

func bashCall(id ids.ToolCallID) convo.AssistantContent {
	return convo.AssistantContent{ToolCall: &convo.ToolCall{ID: id, Name: "bash", Parameters: []byte(`{"command":"ls"}`)}}
}

// TestScenarioS1SingleToolApproved walks through §8 Scenario S1: a single
// approved bash call, then a plain text completion.
func TestScenarioS1SingleToolApproved(t *testing.T) {
	clock := &fakeClock{}
	state := NewInitialState([]*convo.Message{userHello()})

	t1 := ids.ToolCallIDFromModel("toolu_1")
	state, outputs := Step(state, ModelResponseInput{
		Content:   []convo.AssistantContent{{Text: &convo.TextContent{Text: "ok"}}, bashCall(t1)},
		MessageID: ids.NewMessageID(),
		Timestamp: 2,
	}, clock)

	require.Equal(t, PhaseAwaitingToolApprovals, state.Phase)
	require.Len(t, outputs, 2)
	_, isEmit := outputs[0].(EmitMessageOutput)
	assert.True(t, isEmit)
	reqApproval, ok := outputs[1].(RequestApprovalOutput)
	require.True(t, ok)
	assert.Equal(t, t1, reqApproval.ToolCall.ID)

	state, outputs = Step(state, ToolApprovedInput{ID: t1}, clock)
	require.Equal(t, PhaseAwaitingToolResults, state.Phase)
	require.Len(t, outputs, 1)
	exec, ok := outputs[0].(ExecuteToolOutput)
	require.True(t, ok)
	assert.Equal(t, t1, exec.ToolCall.ID)

	bashResult := convo.ToolResult{Kind: convo.ResultBash, Bash: &convo.BashResult{Command: "ls", Stdout: "a\nb", ExitCode: 0}}
	state, outputs = Step(state, ToolCompletedInput{ID: t1, Result: bashResult}, clock)
	require.Equal(t, PhaseAwaitingModel, state.Phase)
	require.Len(t, outputs, 2)
	_, isEmit = outputs[0].(EmitMessageOutput)
	assert.True(t, isEmit)
	_, isCallModel := outputs[1].(CallModelOutput)
	assert.True(t, isCallModel)

	state, outputs = Step(state, ModelResponseInput{
		Content:   []convo.AssistantContent{{Text: &convo.TextContent{Text: "done"}}},
		MessageID: ids.NewMessageID(),
		Timestamp: 3,
	}, clock)
	require.Equal(t, PhaseComplete, state.Phase)
	require.Len(t, outputs, 2)
	_, isDone := outputs[1].(DoneOutput)
	assert.True(t, isDone)
}

// TestScenarioS6AllToolsDenied walks through §8 Scenario S6.
func TestScenarioS6AllToolsDenied(t *testing.T) {
	clock := &fakeClock{}
	state := NewInitialState([]*convo.Message{userHello()})

	t1 := ids.ToolCallIDFromModel("toolu_1")
	t2 := ids.ToolCallIDFromModel("toolu_2")
	state, _ = Step(state, ModelResponseInput{
		Content:   []convo.AssistantContent{bashCall(t1), bashCall(t2)},
		MessageID: ids.NewMessageID(),
		Timestamp: 2,
	}, clock)
	require.Equal(t, PhaseAwaitingToolApprovals, state.Phase)

	state, outputs := Step(state, ToolDeniedInput{ID: t1}, clock)
	require.Equal(t, PhaseAwaitingToolApprovals, state.Phase)
	require.Len(t, outputs, 1)

	state, outputs = Step(state, ToolDeniedInput{ID: t2}, clock)
	require.Equal(t, PhaseFailed, state.Phase)
	require.Equal(t, "All tools denied", state.Err)
	require.Len(t, outputs, 2)
	_, isError := outputs[1].(ErrorOutput)
	assert.True(t, isError)
}

// TestCancelMidToolSynthesizesOneMessagePerIncompleteCall covers §8
// Scenario S3 and invariant 2.
func TestCancelMidToolSynthesizesOneMessagePerIncompleteCall(t *testing.T) {
	clock := &fakeClock{}
	state := NewInitialState([]*convo.Message{userHello()})

	t1 := ids.ToolCallIDFromModel("toolu_1")
	t2 := ids.ToolCallIDFromModel("toolu_2")
	state, _ = Step(state, ModelResponseInput{
		Content:   []convo.AssistantContent{bashCall(t1), bashCall(t2)},
		MessageID: ids.NewMessageID(),
		Timestamp: 2,
	}, clock)
	state, _ = Step(state, ToolApprovedInput{ID: t1}, clock)
	state, _ = Step(state, ToolApprovedInput{ID: t2}, clock)
	require.Equal(t, PhaseAwaitingToolResults, state.Phase)

	state, outputs := Step(state, CancelInput{}, clock)
	assert.Equal(t, PhaseCancelled, state.Phase)
	// 2 synthesized Tool messages + 1 Cancelled output.
	require.Len(t, outputs, 3)
	_, isCancelled := outputs[2].(CancelledOutput)
	assert.True(t, isCancelled)
}

// TestUnmatchedInputIsNoOp covers the "all unmatched pairs leave state
// unchanged" rule.
func TestUnmatchedInputIsNoOp(t *testing.T) {
	clock := &fakeClock{}
	state := NewInitialState([]*convo.Message{userHello()})

	next, outputs := Step(state, ToolApprovedInput{ID: ids.ToolCallIDFromModel("toolu_ghost")}, clock)
	assert.Equal(t, state, next)
	assert.Empty(t, outputs)
}

// TestTerminalStateIgnoresCancel covers that Cancel on a terminal state
// is itself a no-op (stepCancel's early return).
func TestTerminalStateIgnoresCancel(t *testing.T) {
	clock := &fakeClock{}
	state := NewInitialState([]*convo.Message{userHello()})
	state, _ = Step(state, ModelResponseInput{
		Content:   []convo.AssistantContent{{Text: &convo.TextContent{Text: "done"}}},
		MessageID: ids.NewMessageID(),
		Timestamp: 2,
	}, clock)
	require.Equal(t, PhaseComplete, state.Phase)

	next, outputs := Step(state, CancelInput{}, clock)
	assert.Equal(t, state, next)
	assert.Empty(t, outputs)
}

func TestModelErrorTransitionsToFailed(t *testing.T) {
	clock := &fakeClock{}
	state := NewInitialState([]*convo.Message{userHello()})

	state, outputs := Step(state, ModelErrorInput{Error: "rate limited"}, clock)
	assert.Equal(t, PhaseFailed, state.Phase)
	require.Len(t, outputs, 1)
	errOut, ok := outputs[0].(ErrorOutput)
	require.True(t, ok)
	assert.Equal(t, "rate limited", errOut.Error)
}
