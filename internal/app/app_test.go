package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/runtime/internal/config"
	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/mcp"
	"github.com/agentrt/runtime/internal/rpcapi"
	"github.com/agentrt/runtime/internal/toolorch"
	"github.com/agentrt/runtime/internal/workspace"
)

func TestPolicyFromSnapshotFoldsApprovedToolsAndBash(t *testing.T) {
	snap := eventstore.Snapshot{
		ApprovedTools: map[string]bool{"read": true},
		ApprovedBash:  map[string]bool{"git status": true, "ls *": true},
	}

	policy := policyFromSnapshot(snap)

	assert.True(t, policy.Preapproved.Tools["read"])
	require.Contains(t, policy.Preapproved.PerTool, "bash")
	assert.ElementsMatch(t, []string{"git status", "ls *"}, policy.Preapproved.PerTool["bash"].Patterns)
}

func TestPolicyFromSnapshotEmptyStaysDefault(t *testing.T) {
	policy := policyFromSnapshot(eventstore.Snapshot{})
	assert.Empty(t, policy.Preapproved.Tools)
	assert.NotContains(t, policy.Preapproved.PerTool, "bash")
}

func TestTranslateMcpConfigStdio(t *testing.T) {
	sc := config.McpServerConfig{Transport: "stdio", Command: "mcp-server-fs", Args: []string{"--root", "."}, Env: map[string]string{"FOO": "bar"}}
	mc := translateMcpConfig(sc)

	assert.Equal(t, mcp.TransportTypeStdio, mc.Type)
	assert.Equal(t, []string{"mcp-server-fs", "--root", "."}, mc.Command)
	assert.Equal(t, "bar", mc.Environment["FOO"])
}

func TestTranslateMcpConfigHTTP(t *testing.T) {
	sc := config.McpServerConfig{Transport: "http", URL: "https://example.com/mcp"}
	mc := translateMcpConfig(sc)

	assert.Equal(t, mcp.TransportTypeRemote, mc.Type)
	assert.Equal(t, "https://example.com/mcp", mc.URL)
}

func TestDisconnectMcpServerUnknownNameReturnsError(t *testing.T) {
	r := &Runtime{mcp: mcp.NewClient()}
	err := r.DisconnectMcpServer("nope")
	assert.Error(t, err)
}

func TestConnectMcpServerFailedConnectStillRegisters(t *testing.T) {
	r := &Runtime{mcp: mcp.NewClient()}
	// A server with an empty stdio command can't actually connect:
	// AddServer returns the connect error but still records the server
	// (status Failed), so a later DisconnectMcpServer finds it — this
	// exercises ConnectMcpServer's wiring through to mcp.Client without
	// spawning a real subprocess.
	err := r.ConnectMcpServer(context.Background(), rpcapi.McpConnectRequest{Name: "search", Transport: "stdio"})
	require.Error(t, err)
	require.NoError(t, r.DisconnectMcpServer("search"))
}

// fakeWorkspace is a minimal workspace.Workspace stub for exercising
// workspaceAdapter's schema translation without touching the filesystem.
type fakeWorkspace struct {
	schemas  []workspace.ToolSchema
	requires map[string]bool
}

func (f *fakeWorkspace) AvailableTools(ctx context.Context) ([]workspace.ToolSchema, error) {
	return f.schemas, nil
}

func (f *fakeWorkspace) ListFiles(ctx context.Context, query string, max int) ([]string, error) {
	return []string{"a.go", "b.go"}, nil
}

func (f *fakeWorkspace) RequiresApproval(toolName string) bool {
	return f.requires[toolName]
}

func (f *fakeWorkspace) Executors() map[string]toolorch.Executor {
	return nil
}

func TestWorkspaceAdapterTranslatesSchemasAndRoutesExecution(t *testing.T) {
	ws := &fakeWorkspace{
		schemas:  []workspace.ToolSchema{{Name: "bash", Description: "run a shell command", Parameters: []byte(`{}`)}},
		requires: map[string]bool{"bash": true},
	}
	orch := toolorch.New()
	orch.Register("bash", toolorch.ExecutorFunc(func(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
		return convo.ToolResult{Kind: convo.ResultBash, Bash: &convo.BashResult{Stdout: "ok"}}, nil
	}))

	adapter := newWorkspaceAdapter(ws, orch)

	tools, err := adapter.AvailableTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "bash", tools[0].Name)
	assert.Equal(t, "run a shell command", tools[0].Description)

	files, err := adapter.ListFiles(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, files)

	assert.True(t, adapter.RequiresApproval("bash"))
	assert.False(t, adapter.RequiresApproval("read"))

	result, err := adapter.ExecuteTool(context.Background(), convo.ToolCall{ID: ids.ToolCallIDFromModel("toolu_1"), Name: "bash"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Bash.Stdout)
}
