package runtime

import (
	"context"

	"github.com/agentrt/runtime/internal/approval"
	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/llmport"
)

// Workspace is the external collaborator a session's tools, file
// listings, and approval-visibility rules come from (§6.3). Concrete
// implementations live in internal/workspace; the runtime only depends
// on this narrow interface, per §9's "Polymorphism" design note.
type Workspace interface {
	// AvailableTools lists the tool schemas to offer the model this turn.
	AvailableTools(ctx context.Context) ([]llmport.ToolSchema, error)
	// ListFiles answers RequestWorkspaceFiles / ListFiles RPCs.
	ListFiles(ctx context.Context, query string, max int) ([]string, error)
	// ExecuteTool runs one tool call to completion or ctx cancellation.
	ExecuteTool(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error)
	// RequiresApproval reports whether a tool name needs policy
	// consultation at all, or is always safe to auto-execute (e.g. a
	// pure read-only tool the workspace itself trusts unconditionally).
	RequiresApproval(toolName string) bool
}

// Config is a session's immutable configuration (§3.4), shared
// read-only between the scheduler and the RPC layer.
type Config struct {
	Workspace            Workspace
	ApprovalPolicy        approval.Policy
	SystemPromptOverride string
	Metadata              map[string]string
}

// Session is the aggregate root described in §3.4: identity plus
// immutable config. Mutable state lives exclusively inside the
// Scheduler that owns the session, per §3.6.
type Session struct {
	ID           ids.SessionID
	CreatedAt    int64
	UpdatedAt    int64
	DefaultModel string
	Config       Config
}

// ConversationSnapshot is what GetConversation / GetCurrentConversation
// RPCs hand back: the active path plus enough metadata to render it.
type ConversationSnapshot struct {
	SessionID       ids.SessionID
	ActiveMessageID ids.MessageID
	Messages        []*convo.Message
	DefaultModel    string
}
