package workspace

import (
	"context"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/llmport"
	"github.com/agentrt/runtime/internal/toolorch"
)

// RuntimeAdapter satisfies internal/runtime.Workspace, translating this
// package's ToolSchema into llmport's wire shape and dispatching
// ExecuteTool through the same Orchestrator instance the scheduler uses
// for its own ExecuteToolOutput handling, so there is exactly one
// registration of a session's Executors.
type RuntimeAdapter struct {
	local *Local
	orch  *toolorch.Orchestrator
}

// NewRuntimeAdapter wraps local, dispatching through orch. Callers must
// have already registered local's executors onto orch (workspace.Register
// does this) before passing it here.
func NewRuntimeAdapter(local *Local, orch *toolorch.Orchestrator) *RuntimeAdapter {
	return &RuntimeAdapter{local: local, orch: orch}
}

func (a *RuntimeAdapter) AvailableTools(ctx context.Context) ([]llmport.ToolSchema, error) {
	schemas, err := a.local.AvailableTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]llmport.ToolSchema, len(schemas))
	for i, s := range schemas {
		out[i] = llmport.ToolSchema{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
	}
	return out, nil
}

func (a *RuntimeAdapter) ListFiles(ctx context.Context, query string, max int) ([]string, error) {
	return a.local.ListFiles(ctx, query, max)
}

func (a *RuntimeAdapter) ExecuteTool(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	return a.orch.Execute(ctx, call)
}

func (a *RuntimeAdapter) RequiresApproval(toolName string) bool {
	return a.local.RequiresApproval(toolName)
}
