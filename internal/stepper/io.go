package stepper

import (
	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
)

// Input is one of the typed events the stepper consumes. The set is
// closed; all implementations live in this file.
type Input interface{ isInput() }

// ModelResponseInput carries the LLM's reply for the current turn.
type ModelResponseInput struct {
	Content   []convo.AssistantContent
	MessageID ids.MessageID
	Timestamp int64
}

// ModelErrorInput reports that the LLM call adapter could not produce a
// response (the runtime translates any transport/provider failure to
// this before handing it to the stepper).
type ModelErrorInput struct{ Error string }

// ToolApprovedInput signals the approval policy engine (or an explicit
// user decision) cleared a pending tool call for execution.
type ToolApprovedInput struct{ ID ids.ToolCallID }

// ToolDeniedInput signals a pending tool call was refused.
type ToolDeniedInput struct{ ID ids.ToolCallID }

// ToolCompletedInput carries a tool's result. MessageID/Timestamp may be
// zero, in which case the stepper mints them via Clock.
type ToolCompletedInput struct {
	ID        ids.ToolCallID
	Result    convo.ToolResult
	MessageID ids.MessageID
	Timestamp int64
}

// ToolFailedInput reports a tool execution failure to be wrapped as an
// Error ToolResult. Kind classifies the failure per §6.4's error
// taxonomy; the runtime sets it from whatever the tool orchestrator or
// workspace collaborator returned. Zero value yields ErrorExecution.
type ToolFailedInput struct {
	ID        ids.ToolCallID
	Error     string
	Kind      convo.ErrorKind
	MessageID ids.MessageID
	Timestamp int64
}

// CancelInput unconditionally moves a non-terminal stepper to Cancelled.
type CancelInput struct{}

func (ModelResponseInput) isInput()  {}
func (ModelErrorInput) isInput()     {}
func (ToolApprovedInput) isInput()   {}
func (ToolDeniedInput) isInput()     {}
func (ToolCompletedInput) isInput()  {}
func (ToolFailedInput) isInput()     {}
func (CancelInput) isInput()         {}

// Output is one of the effects the runtime scheduler must carry out
// after a Step call. Zero or more are returned per step, in emission
// order.
type Output interface{ isOutput() }

// CallModelOutput asks the runtime to invoke the LLM call adapter with
// the given conversation.
type CallModelOutput struct{ Messages []*convo.Message }

// RequestApprovalOutput asks the runtime to consult the approval policy
// engine (and, if it returns Ask, the caller) for a tool call.
type RequestApprovalOutput struct{ ToolCall convo.ToolCall }

// ExecuteToolOutput asks the runtime to dispatch a tool call to the tool
// orchestrator.
type ExecuteToolOutput struct{ ToolCall convo.ToolCall }

// EmitMessageOutput asks the runtime to persist and fan out a newly
// appended message.
type EmitMessageOutput struct{ Message *convo.Message }

// DoneOutput reports the session's current turn finished normally.
type DoneOutput struct{ FinalMessage *convo.Message }

// ErrorOutput reports the session's current turn ended in failure.
type ErrorOutput struct{ Error string }

// CancelledOutput reports the session's current turn was cancelled.
type CancelledOutput struct{}

func (CallModelOutput) isOutput()       {}
func (RequestApprovalOutput) isOutput() {}
func (ExecuteToolOutput) isOutput()     {}
func (EmitMessageOutput) isOutput()     {}
func (DoneOutput) isOutput()            {}
func (ErrorOutput) isOutput()           {}
func (CancelledOutput) isOutput()       {}
