package stepper

import (
	"testing"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genToolCallCount picks how many tool calls a synthetic model response
// carries, biased toward the small counts real sessions see.
func genToolCallCount() gopter.Gen {
	return gen.IntRange(0, 4)
}

func buildResponseWithCalls(n int) ([]convo.AssistantContent, []ids.ToolCallID) {
	content := []convo.AssistantContent{{Text: &convo.TextContent{Text: "working"}}}
	callIDs := make([]ids.ToolCallID, 0, n)
	for i := 0; i < n; i++ {
		id := ids.ToolCallIDFromModel("toolu_" + string(rune('a'+i)))
		callIDs = append(callIDs, id)
		content = append(content, convo.AssistantContent{
			ToolCall: &convo.ToolCall{ID: id, Name: "bash", Parameters: []byte(`{"command":"ls"}`)},
		})
	}
	return content, callIDs
}

// TestPropertyCancelFromNonTerminalReachesCancelledInOneStep is invariant
// 2: from any non-terminal state reachable by a model response with N
// tool calls, Cancel reaches Cancelled in exactly one step and emits one
// Tool message per still-incomplete call plus one Cancelled output.
func TestPropertyCancelFromNonTerminalReachesCancelledInOneStep(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("cancel from AwaitingToolApprovals is total and emits N+1 outputs", prop.ForAll(
		func(n int) bool {
			clock := &fakeClock{}
			state := NewInitialState([]*convo.Message{userHello()})
			content, _ := buildResponseWithCalls(n)
			state, _ = Step(state, ModelResponseInput{Content: content, MessageID: ids.NewMessageID(), Timestamp: 2}, clock)

			if n == 0 {
				// No tool calls means the turn already completed; Cancel
				// on a terminal state is a no-op, which is its own valid
				// branch of invariant 2 ("non-terminal" doesn't apply).
				return state.Phase == PhaseComplete
			}

			next, outputs := Step(state, CancelInput{}, clock)
			return next.Phase == PhaseCancelled && len(outputs) == n+1
		},
		genToolCallCount(),
	))

	properties.TestingRun(t)
}

// TestPropertyTerminalStatesHaveNoIncompleteToolCalls is invariant 3.
func TestPropertyTerminalStatesHaveNoIncompleteToolCalls(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("after reaching Cancelled, every tool call has a Tool message", prop.ForAll(
		func(n int) bool {
			clock := &fakeClock{}
			state := NewInitialState([]*convo.Message{userHello()})
			content, callIDs := buildResponseWithCalls(n)
			state, _ = Step(state, ModelResponseInput{Content: content, MessageID: ids.NewMessageID(), Timestamp: 2}, clock)
			if n == 0 {
				return true
			}
			state, _ = Step(state, CancelInput{}, clock)
			if state.Phase != PhaseCancelled {
				return false
			}

			forest := convo.NewForest()
			for _, m := range state.Messages {
				forest.Add(m)
			}
			for _, id := range callIDs {
				found := false
				for _, m := range forest.ActivePath() {
					if m.Role == convo.RoleTool && m.Tool != nil && m.Tool.ToolUseID == id {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		},
		genToolCallCount(),
	))

	properties.TestingRun(t)
}

// TestPropertyStepIsDeterministic is invariant 1: applying the same input
// to the same state twice yields identical outputs.
func TestPropertyStepIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("Step(state, input) is deterministic in phase and output count", prop.ForAll(
		func(n int) bool {
			content, _ := buildResponseWithCalls(n)
			input := ModelResponseInput{Content: content, MessageID: ids.NewMessageID(), Timestamp: 2}

			base := NewInitialState([]*convo.Message{userHello()})
			s1, o1 := Step(base, input, &fakeClock{})
			s2, o2 := Step(base, input, &fakeClock{})

			return s1.Phase == s2.Phase && len(o1) == len(o2)
		},
		genToolCallCount(),
	))

	properties.TestingRun(t)
}
