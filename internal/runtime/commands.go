package runtime

import (
	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
)

// Command is one inbound request a session's mailbox accepts (§4.4).
// The set mirrors the RPC surface's per-session client messages (§6.1).
type Command interface{ isCommand() }

// ProcessUserInputCmd starts a new operation from a user's text message.
type ProcessUserInputCmd struct {
	Text        string
	Attachments []string
}

// EditMessageCmd rewrites a message's content and moves the active path
// to a new branch rooted at the edited message's parent.
type EditMessageCmd struct {
	MessageID  ids.MessageID
	NewContent string
}

// ApprovalDecision mirrors the client ToolApproval.decision union (§6.1).
type ApprovalDecision string

const (
	DecisionDeny             ApprovalDecision = "deny"
	DecisionOnce             ApprovalDecision = "once"
	DecisionAlwaysTool       ApprovalDecision = "always_tool"
	DecisionAlwaysBashPattern ApprovalDecision = "always_bash_pattern"
)

// HandleToolResponseCmd answers a pending RequestToolApproval event.
type HandleToolResponseCmd struct {
	ToolCallID  ids.ToolCallID
	Decision    ApprovalDecision
	BashPattern string // set only when Decision == DecisionAlwaysBashPattern
}

// CancelProcessingCmd cancels the current operation, if any.
type CancelProcessingCmd struct{}

// ExecuteBashCommandCmd runs a bash command directly, bypassing the
// approval ask step but not the static denylist (§4.4).
type ExecuteBashCommandCmd struct{ Command string }

// AppCommandKind enumerates the built-in session commands (§4.4).
type AppCommandKind string

const (
	AppCommandClear   AppCommandKind = "clear"
	AppCommandCompact AppCommandKind = "compact"
	AppCommandModel   AppCommandKind = "model"
)

// AppCommand is one ExecuteCommand payload.
type AppCommand struct {
	Kind    AppCommandKind
	ModelID string // set only when Kind == AppCommandModel
}

// ExecuteCommandCmd runs a built-in session command.
type ExecuteCommandCmd struct{ Command AppCommand }

// titleGeneratedCmd carries a background title-generation result back
// onto the scheduler's own goroutine (§4.4's supplemented title feature).
// It is not part of the public Command surface: only maybeGenerateTitle
// constructs one, and only over this session's own mailbox.
type titleGeneratedCmd struct{ title string }

// ShutdownCmd asks the scheduler to persist final state and stop.
type ShutdownCmd struct{ Done chan<- struct{} }

// GetCurrentConversationCmd requests a snapshot of the active path,
// served from the scheduler's own loop per §3.6.
type GetCurrentConversationCmd struct{ Reply chan<- ConversationSnapshot }

// RequestWorkspaceFilesCmd asks the workspace to list files.
type RequestWorkspaceFilesCmd struct {
	Query string
	Max   int
	Reply chan<- []string
}

func (ProcessUserInputCmd) isCommand()       {}
func (EditMessageCmd) isCommand()            {}
func (HandleToolResponseCmd) isCommand()     {}
func (CancelProcessingCmd) isCommand()       {}
func (ExecuteBashCommandCmd) isCommand()     {}
func (ExecuteCommandCmd) isCommand()         {}
func (ShutdownCmd) isCommand()               {}
func (GetCurrentConversationCmd) isCommand() {}
func (RequestWorkspaceFilesCmd) isCommand()  {}
func (titleGeneratedCmd) isCommand()         {}

// userContentFromText wraps plain text the way ProcessUserInput and
// ExecuteBashCommand's synthesized user messages both need.
func userContentFromText(text string) convo.UserContent {
	return convo.UserContent{Text: &convo.TextContent{Text: text}}
}
