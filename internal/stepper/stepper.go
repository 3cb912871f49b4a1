// Package stepper implements the Agent Stepper: a pure state machine that
// turns one typed input (a model response, a tool result, an approval
// decision, a cancellation) into a new conversation state plus a list of
// effects for the runtime scheduler to carry out. It performs no I/O and
// is deterministic, mirroring how the teacher's session processor drove
// its agentic loop but generalized into a reducer with no side effects of
// its own.
package stepper

import (
	"fmt"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
)

// Phase names the stepper's current state kind.
type Phase string

const (
	PhaseAwaitingModel          Phase = "awaiting_model"
	PhaseAwaitingToolApprovals  Phase = "awaiting_tool_approvals"
	PhaseAwaitingToolResults    Phase = "awaiting_tool_results"
	PhaseComplete               Phase = "complete"
	PhaseFailed                 Phase = "failed"
	PhaseCancelled              Phase = "cancelled"
)

// State is the stepper's full state at a point in time. Messages is
// always the active-path message list in chronological order; every
// transition appends to, never rewrites, this slice.
type State struct {
	Phase    Phase
	Messages []*convo.Message

	// AwaitingToolApprovals / AwaitingToolResults bookkeeping. CallOrder
	// fixes the order tool calls appeared in the triggering model
	// response, so map-based pending/approved/denied lookups can still be
	// walked deterministically (map iteration order is not stable in Go).
	CallOrder       []ids.ToolCallID
	PendingApprovals map[ids.ToolCallID]convo.ToolCall
	Approved         map[ids.ToolCallID]convo.ToolCall
	Denied           map[ids.ToolCallID]convo.ToolCall
	PendingResults   map[ids.ToolCallID]convo.ToolCall
	CompletedResults map[ids.ToolCallID]convo.ToolResult

	// Terminal-state payloads.
	FinalMessage *convo.Message
	Err          string
}

// NewInitialState returns the state a freshly created or resumed session
// starts a turn in: AwaitingModel over whatever messages already exist.
func NewInitialState(messages []*convo.Message) State {
	return State{Phase: PhaseAwaitingModel, Messages: messages}
}

func (s State) lastMessage() *convo.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

func (s State) lastMessageID() *ids.MessageID {
	m := s.lastMessage()
	if m == nil {
		return nil
	}
	id := m.ID
	return &id
}

// IsTerminal reports whether the stepper has reached Complete, Failed, or
// Cancelled and will no longer accept inputs.
func (s State) IsTerminal() bool {
	switch s.Phase {
	case PhaseComplete, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// Clock supplies timestamps and message ids for messages the stepper
// synthesizes itself (denials, cancellations, failures). The runtime
// passes a real clock/id-minter; tests pass a deterministic stub.
type Clock interface {
	NowMillis() int64
	NewMessageID() ids.MessageID
}

// Step applies exactly one input to the current state and returns the
// resulting state plus the ordered list of outputs. Unmatched
// (state, input) pairs are a no-op: same state, no outputs, per §4.1.
func Step(state State, input Input, clock Clock) (State, []Output) {
	if cancel, ok := input.(CancelInput); ok {
		return stepCancel(state, cancel, clock)
	}

	switch state.Phase {
	case PhaseAwaitingModel:
		return stepAwaitingModel(state, input, clock)
	case PhaseAwaitingToolApprovals:
		return stepAwaitingToolApprovals(state, input, clock)
	case PhaseAwaitingToolResults:
		return stepAwaitingToolResults(state, input, clock)
	default:
		return state, nil
	}
}

func stepAwaitingModel(state State, input Input, clock Clock) (State, []Output) {
	switch in := input.(type) {
	case ModelResponseInput:
		parent := state.lastMessageID()
		msg := convo.NewAssistantMessage(in.MessageID, parent, in.Timestamp, in.Content...)
		state.Messages = append(state.Messages, msg)

		outputs := []Output{EmitMessageOutput{Message: msg}}

		toolCalls := msg.ToolCalls()
		if len(toolCalls) == 0 {
			state.Phase = PhaseComplete
			state.FinalMessage = msg
			outputs = append(outputs, DoneOutput{FinalMessage: msg})
			return state, outputs
		}

		state.Phase = PhaseAwaitingToolApprovals
		state.PendingApprovals = make(map[ids.ToolCallID]convo.ToolCall, len(toolCalls))
		state.CallOrder = make([]ids.ToolCallID, 0, len(toolCalls))
		for _, tc := range toolCalls {
			state.PendingApprovals[tc.ID] = tc
			state.CallOrder = append(state.CallOrder, tc.ID)
			outputs = append(outputs, RequestApprovalOutput{ToolCall: tc})
		}
		return state, outputs

	case ModelErrorInput:
		state.Phase = PhaseFailed
		state.Err = in.Error
		return state, []Output{ErrorOutput{Error: in.Error}}

	default:
		return state, nil
	}
}

func stepAwaitingToolApprovals(state State, input Input, clock Clock) (State, []Output) {
	switch in := input.(type) {
	case ToolApprovedInput:
		tc, ok := state.PendingApprovals[in.ID]
		if !ok {
			return state, nil
		}
		delete(state.PendingApprovals, in.ID)
		if state.Approved == nil {
			state.Approved = make(map[ids.ToolCallID]convo.ToolCall)
		}
		state.Approved[in.ID] = tc
		outputs := []Output{ExecuteToolOutput{ToolCall: tc}}

		if len(state.PendingApprovals) == 0 {
			return transitionToAwaitingResults(state, outputs)
		}
		return state, outputs

	case ToolDeniedInput:
		tc, ok := state.PendingApprovals[in.ID]
		if !ok {
			return state, nil
		}
		delete(state.PendingApprovals, in.ID)
		if state.Denied == nil {
			state.Denied = make(map[ids.ToolCallID]convo.ToolCall)
		}
		state.Denied[in.ID] = tc

		parent := state.lastMessageID()
		result := convo.ToolResult{Kind: convo.ResultError, Error: &convo.ErrorResult{
			Kind:    convo.ErrorDeniedByUser,
			Tool:    tc.Name,
			Message: fmt.Sprintf("denied by user: %s", tc.Name),
		}}
		msg := convo.NewToolMessage(clock.NewMessageID(), parent, clock.NowMillis(), in.ID, result)
		state.Messages = append(state.Messages, msg)
		outputs := []Output{EmitMessageOutput{Message: msg}}

		if len(state.PendingApprovals) != 0 {
			return state, outputs
		}
		if len(state.Approved) == 0 {
			state.Phase = PhaseFailed
			state.Err = "All tools denied"
			outputs = append(outputs, ErrorOutput{Error: state.Err})
			return state, outputs
		}
		return transitionToAwaitingResults(state, outputs)

	default:
		return state, nil
	}
}

func transitionToAwaitingResults(state State, outputs []Output) (State, []Output) {
	state.Phase = PhaseAwaitingToolResults
	state.PendingResults = state.Approved
	state.Approved = nil
	state.CompletedResults = make(map[ids.ToolCallID]convo.ToolResult)
	return state, outputs
}

func stepAwaitingToolResults(state State, input Input, clock Clock) (State, []Output) {
	var id ids.ToolCallID
	var result convo.ToolResult

	switch in := input.(type) {
	case ToolCompletedInput:
		id = in.ID
		result = in.Result
	case ToolFailedInput:
		id = in.ID
		kind := in.Kind
		if kind == convo.ErrorUnspecified {
			kind = convo.ErrorExecution
		}
		result = convo.ToolResult{Kind: convo.ResultError, Error: &convo.ErrorResult{Kind: kind, Message: in.Error}}
	default:
		return state, nil
	}

	if _, ok := state.PendingResults[id]; !ok {
		return state, nil
	}
	delete(state.PendingResults, id)
	if state.CompletedResults == nil {
		state.CompletedResults = make(map[ids.ToolCallID]convo.ToolResult)
	}
	state.CompletedResults[id] = result

	parent := state.lastMessageID()
	var ts int64
	switch in := input.(type) {
	case ToolCompletedInput:
		ts = in.Timestamp
	case ToolFailedInput:
		ts = in.Timestamp
	}
	if ts == 0 {
		ts = clock.NowMillis()
	}
	msg := convo.NewToolMessage(messageIDFor(input, clock), parent, ts, id, result)
	state.Messages = append(state.Messages, msg)
	outputs := []Output{EmitMessageOutput{Message: msg}}

	if len(state.PendingResults) != 0 {
		return state, outputs
	}

	state.Phase = PhaseAwaitingModel
	outputs = append(outputs, CallModelOutput{Messages: state.Messages})
	return state, outputs
}

func messageIDFor(input Input, clock Clock) ids.MessageID {
	switch in := input.(type) {
	case ToolCompletedInput:
		if !in.MessageID.IsZero() {
			return in.MessageID
		}
	case ToolFailedInput:
		if !in.MessageID.IsZero() {
			return in.MessageID
		}
	}
	return clock.NewMessageID()
}

func stepCancel(state State, _ CancelInput, clock Clock) (State, []Output) {
	if state.IsTerminal() {
		return state, nil
	}

	var outputs []Output
	parent := state.lastMessageID()

	for _, id := range state.CallOrder {
		tc, ok := state.PendingApprovals[id]
		if !ok {
			tc, ok = state.Approved[id]
		}
		if !ok {
			tc, ok = state.PendingResults[id]
		}
		if !ok {
			continue
		}
		result := convo.ToolResult{Kind: convo.ResultError, Error: &convo.ErrorResult{
			Kind:    convo.ErrorCancelled,
			Tool:    tc.Name,
			Message: fmt.Sprintf("cancelled: %s", tc.Name),
		}}
		msg := convo.NewToolMessage(clock.NewMessageID(), parent, clock.NowMillis(), id, result)
		state.Messages = append(state.Messages, msg)
		parentID := msg.ID
		parent = &parentID
		outputs = append(outputs, EmitMessageOutput{Message: msg})
	}

	state.Phase = PhaseCancelled
	state.CallOrder = nil
	state.PendingApprovals = nil
	state.Approved = nil
	state.Denied = nil
	state.PendingResults = nil
	outputs = append(outputs, CancelledOutput{})
	return state, outputs
}
