// Package workspace implements the external workspace collaborator the
// runtime spec treats as an interface only (§6.3): the set of tools a
// session can invoke, a file listing, and the "does this tool need
// approval" predicate the approval engine consults before a tool name
// ever reaches an explicit policy decision.
//
// Local is the only concrete Workspace this package ships: local files
// under a root directory, plus whatever tools MCP servers configured for
// the session contribute. It is grounded on the teacher's internal/tool
// package (one Executor per former eino-wrapped Tool) and internal/mcp
// (one Executor per connected server's tool), wired directly into
// internal/toolorch.Orchestrator rather than through a second framework.
package workspace

import (
	"context"

	"github.com/agentrt/runtime/internal/toolorch"
)

// ToolSchema describes one tool a workspace makes available to the model,
// per §6.3's available_tools().
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []byte          `json:"parameters"`
	Server      string          `json:"server,omitempty"` // set for MCP-hosted tools
}

// Workspace is the external collaborator §6.3 names: it supplies the
// tool catalog and file listing the runtime needs without the runtime
// knowing how either is implemented.
type Workspace interface {
	// AvailableTools lists every tool schema currently exposed, local and
	// MCP-hosted.
	AvailableTools(ctx context.Context) ([]ToolSchema, error)

	// ListFiles returns paths under the workspace root matching query
	// (a glob; empty matches everything), capped at max (0 means a
	// workspace-chosen default).
	ListFiles(ctx context.Context, query string, max int) ([]string, error)

	// RequiresApproval reports whether toolName should ever reach the
	// approval engine as anything other than Allow — some workspace
	// tools (e.g. read-only search) are exempt from approval entirely
	// regardless of policy.
	RequiresApproval(toolName string) bool

	// Executors returns the toolorch.Executor registered for every tool
	// this workspace exposes, keyed by tool name, so the runtime/registry
	// wiring code can Register them on a session's Orchestrator.
	Executors() map[string]toolorch.Executor
}
