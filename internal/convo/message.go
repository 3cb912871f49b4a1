// Package convo defines the message model: the typed content variants a
// Message can carry, the ToolCall/ToolResult shapes exchanged with tools,
// and the forest of messages a session accumulates (§3.2–§3.3 of the
// runtime spec).
package convo

import (
	"encoding/json"
	"fmt"

	"github.com/agentrt/runtime/internal/ids"
)

// Role distinguishes the three message kinds the stepper ever produces.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is an immutable record in a session's message forest.
type Message struct {
	ID       ids.MessageID  `json:"id"`
	Parent   *ids.MessageID `json:"parentMessageID,omitempty"`
	Time     int64          `json:"timestamp"`
	Role     Role           `json:"role"`
	User     *UserData      `json:"user,omitempty"`
	Assistant *AssistantData `json:"assistant,omitempty"`
	Tool     *ToolData      `json:"tool,omitempty"`
}

// UserData is the body of a Message with Role == RoleUser.
type UserData struct {
	Content []UserContent `json:"content"`
}

// UserContent is one item in a user message. Exactly one field is set.
type UserContent struct {
	Text             *TextContent             `json:"text,omitempty"`
	CommandExecution *CommandExecutionContent `json:"commandExecution,omitempty"`
	AppCommand       *AppCommandContent       `json:"appCommand,omitempty"`
}

type TextContent struct {
	Text string `json:"text"`
}

type CommandExecutionContent struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

type AppCommandContent struct {
	Command  string  `json:"command"`
	Response *string `json:"response,omitempty"`
}

// AssistantData is the body of a Message with Role == RoleAssistant.
type AssistantData struct {
	Content []AssistantContent `json:"content"`
}

// AssistantContent is one item in an assistant message. Exactly one field
// is set.
type AssistantContent struct {
	Text     *TextContent   `json:"text,omitempty"`
	ToolCall *ToolCall      `json:"toolCall,omitempty"`
	Thought  *ThoughtContent `json:"thought,omitempty"`
}

// ThoughtKind distinguishes how a model's reasoning content was delivered.
type ThoughtKind string

const (
	ThoughtSimple   ThoughtKind = "simple"
	ThoughtSigned   ThoughtKind = "signed"
	ThoughtRedacted ThoughtKind = "redacted"
)

type ThoughtContent struct {
	Kind      ThoughtKind `json:"kind"`
	Text      string      `json:"text,omitempty"`
	Signature string      `json:"signature,omitempty"`
}

// ToolData is the body of a Message with Role == RoleTool.
type ToolData struct {
	ToolUseID ids.ToolCallID `json:"toolUseID"`
	Result    ToolResult     `json:"result"`
}

// ToolCall is a single invocation the model asked the runtime to perform.
// Ids are minted by the model; the runtime never renames them (§3.3).
type ToolCall struct {
	ID         ids.ToolCallID  `json:"id"`
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

// Text returns the concatenated text of a user or assistant message,
// ignoring any non-text content items; it is "" for a tool message. Used to build titles and compaction summaries.
func (m *Message) Text() string {
	switch {
	case m.User != nil:
		var s string
		for _, c := range m.User.Content {
			if c.Text != nil {
				s += c.Text.Text
			}
		}
		return s
	case m.Assistant != nil:
		var s string
		for _, c := range m.Assistant.Content {
			if c.Text != nil {
				s += c.Text.Text
			}
		}
		return s
	default:
		return ""
	}
}

// ToolCalls returns every ToolCall carried by an assistant message, in
// emission order.
func (m *Message) ToolCalls() []ToolCall {
	if m.Assistant == nil {
		return nil
	}
	var calls []ToolCall
	for _, c := range m.Assistant.Content {
		if c.ToolCall != nil {
			calls = append(calls, *c.ToolCall)
		}
	}
	return calls
}

// NewUserMessage builds a User message with the given parent.
func NewUserMessage(id ids.MessageID, parent *ids.MessageID, ts int64, content ...UserContent) *Message {
	return &Message{ID: id, Parent: parent, Time: ts, Role: RoleUser, User: &UserData{Content: content}}
}

// NewAssistantMessage builds an Assistant message with the given parent.
func NewAssistantMessage(id ids.MessageID, parent *ids.MessageID, ts int64, content ...AssistantContent) *Message {
	return &Message{ID: id, Parent: parent, Time: ts, Role: RoleAssistant, Assistant: &AssistantData{Content: content}}
}

// NewToolMessage builds a Tool result message with the given parent.
func NewToolMessage(id ids.MessageID, parent *ids.MessageID, ts int64, toolUseID ids.ToolCallID, result ToolResult) *Message {
	return &Message{ID: id, Parent: parent, Time: ts, Role: RoleTool, Tool: &ToolData{ToolUseID: toolUseID, Result: result}}
}

// Validate checks the invariant from §3.2: a Tool message must reference a
// ToolCallID that appears in an earlier ancestor Assistant message.
// ancestorHasCall answers that lookup (e.g. Forest.HasToolCall).
func (m *Message) Validate(ancestorHasCall func(ids.ToolCallID) bool) error {
	if m.Role != RoleTool {
		return nil
	}
	if m.Tool == nil {
		return fmt.Errorf("tool message %s has no tool data", m.ID)
	}
	if !ancestorHasCall(m.Tool.ToolUseID) {
		return fmt.Errorf("tool message %s references unknown call %s", m.ID, m.Tool.ToolUseID)
	}
	return nil
}
