// Package app wires together every collaborator a running session needs
// — event store, hub, tool orchestrator, workspace, LLM client, approval
// engine — into the two seams the rest of the process depends on:
// registry.Spawner (how a session task gets created, fresh or resumed)
// and rpcapi.SessionFactory (how a brand-new session's aggregate gets
// built). It is the composition root cmd/agentrt drives; no other
// package should need to import it.
package app

import (
	"context"
	"fmt"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/llmport"
	"github.com/agentrt/runtime/internal/runtime"
	"github.com/agentrt/runtime/internal/toolorch"
	"github.com/agentrt/runtime/internal/workspace"
)

// workspaceAdapter bridges internal/workspace's Workspace (AvailableTools
// returning []workspace.ToolSchema, no ExecuteTool method — tool
// dispatch is the orchestrator's job, not the workspace's) to
// internal/runtime.Workspace (AvailableTools returning
// []llmport.ToolSchema, plus ExecuteTool/RequiresApproval). The two
// shapes diverge because the runtime package only knows about the LLM
// call adapter's tool representation, while internal/workspace is the
// thing that actually knows what a tool schema contains; this is the one
// place that translates between them.
type workspaceAdapter struct {
	ws   workspace.Workspace
	orch *toolorch.Orchestrator
}

func newWorkspaceAdapter(ws workspace.Workspace, orch *toolorch.Orchestrator) *workspaceAdapter {
	return &workspaceAdapter{ws: ws, orch: orch}
}

var _ runtime.Workspace = (*workspaceAdapter)(nil)

func (a *workspaceAdapter) AvailableTools(ctx context.Context) ([]llmport.ToolSchema, error) {
	schemas, err := a.ws.AvailableTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: listing workspace tools: %w", err)
	}
	out := make([]llmport.ToolSchema, len(schemas))
	for i, s := range schemas {
		out[i] = llmport.ToolSchema{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
	}
	return out, nil
}

func (a *workspaceAdapter) ListFiles(ctx context.Context, query string, max int) ([]string, error) {
	return a.ws.ListFiles(ctx, query, max)
}

func (a *workspaceAdapter) ExecuteTool(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	return a.orch.Execute(ctx, call)
}

func (a *workspaceAdapter) RequiresApproval(toolName string) bool {
	return a.ws.RequiresApproval(toolName)
}
