package workspace

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/mcp"
	"github.com/agentrt/runtime/internal/storage"
	"github.com/agentrt/runtime/internal/toolorch"
)

// toolApprovalExempt lists tools that never need a prompt regardless of
// policy: they are read-only and side-effect free, mirroring the
// teacher's tool registry distinction between mutating and inspecting
// tools.
var toolApprovalExempt = map[string]bool{
	ToolRead: true, ToolList: true, ToolGlob: true, ToolGrep: true, ToolTodoRead: true,
}

// localSchemas is the static catalog of this package's local tool descriptions.
// Kept hand-written (rather than reflected from each Executor) because the
// teacher's own tool.go Parameters() methods are hand-written JSON Schema
// literals too.
var localSchemas = []ToolSchema{
	{Name: ToolRead, Description: "Reads a file from the local filesystem.", Parameters: []byte(`{"type":"object","properties":{"filePath":{"type":"string"},"offset":{"type":"integer"},"limit":{"type":"integer"}},"required":["filePath"]}`)},
	{Name: ToolWrite, Description: "Writes content to a file, creating it if necessary.", Parameters: []byte(`{"type":"object","properties":{"filePath":{"type":"string"},"content":{"type":"string"}},"required":["filePath","content"]}`)},
	{Name: ToolEdit, Description: "Performs an exact (or fuzzy-fallback) string replacement in a file.", Parameters: []byte(`{"type":"object","properties":{"filePath":{"type":"string"},"oldString":{"type":"string"},"newString":{"type":"string"},"replaceAll":{"type":"boolean"}},"required":["filePath","oldString","newString"]}`)},
	{Name: ToolList, Description: "Lists files and directories under a path.", Parameters: []byte(`{"type":"object","properties":{"path":{"type":"string"},"ignore":{"type":"array","items":{"type":"string"}}}}`)},
	{Name: ToolGlob, Description: "Fast file pattern matching.", Parameters: []byte(`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"}},"required":["pattern"]}`)},
	{Name: ToolGrep, Description: "Content search built on ripgrep.", Parameters: []byte(`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"},"include":{"type":"string"}},"required":["pattern"]}`)},
	{Name: ToolBash, Description: "Executes a shell command in the workspace root.", Parameters: []byte(`{"type":"object","properties":{"command":{"type":"string"},"timeout":{"type":"integer"},"description":{"type":"string"}},"required":["command","description"]}`)},
	{Name: ToolFetch, Description: "Fetches a URL and returns text, markdown, or HTML.", Parameters: []byte(`{"type":"object","properties":{"url":{"type":"string"},"format":{"type":"string","enum":["text","markdown","html"]},"timeout":{"type":"integer"}},"required":["url","format"]}`)},
	{Name: ToolTodoRead, Description: "Reads the session's structured todo list.", Parameters: []byte(`{"type":"object","properties":{}}`)},
	{Name: ToolTodoWrite, Description: "Replaces the session's structured todo list.", Parameters: []byte(`{"type":"object","properties":{"todos":{"type":"array"}},"required":["todos"]}`)},
}

// Local is the disk-backed Workspace: the local file tools, plus any
// tools exposed by connected MCP servers. list, glob, grep and bash
// resolve against root; read, write and edit use filePath as given.
type Local struct {
	root      string
	session   ids.SessionID
	store     *storage.Storage
	mcpClient *mcp.Client
	executors map[string]toolorch.Executor
}

var _ Workspace = (*Local)(nil)

// NewLocal builds a Local workspace for one session. mcpClient may be nil
// if the session has no MCP servers configured.
func NewLocal(root string, session ids.SessionID, store *storage.Storage, mcpClient *mcp.Client) *Local {
	l := &Local{root: root, session: session, store: store, mcpClient: mcpClient}
	l.executors = map[string]toolorch.Executor{
		ToolRead:      ReadExecutor{Root: root},
		ToolWrite:     WriteExecutor{Root: root},
		ToolEdit:      EditExecutor{Root: root},
		ToolList:      ListExecutor{Root: root},
		ToolGlob:      GlobExecutor{Root: root},
		ToolGrep:      GrepExecutor{Root: root},
		ToolBash:      NewBashExecutor(root),
		ToolFetch:     NewFetchExecutor(),
		ToolTodoRead:  TodoReadExecutor{Session: session, Store: store},
		ToolTodoWrite: TodoWriteExecutor{Session: session, Store: store},
	}
	if mcpClient != nil {
		_, pairs := mcpTools(mcpClient)
		for name, pair := range pairs {
			l.executors[name] = pair.exec
		}
	}
	return l
}

func (l *Local) AvailableTools(ctx context.Context) ([]ToolSchema, error) {
	schemas := append([]ToolSchema{}, localSchemas...)
	if l.mcpClient != nil {
		mcpSchemas, _ := mcpTools(l.mcpClient)
		schemas = append(schemas, mcpSchemas...)
	}
	return schemas, nil
}

func (l *Local) ListFiles(ctx context.Context, query string, max int) ([]string, error) {
	if max <= 0 {
		max = 200
	}
	pattern := query
	if pattern == "" {
		pattern = "**/*"
	}
	cmd := exec.CommandContext(ctx, "rg", "--files", "--glob", pattern)
	cmd.Dir = l.root
	output, _ := cmd.Output()

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		files = append(files, filepath.Join(l.root, line))
		if len(files) >= max {
			break
		}
	}
	return files, nil
}

func (l *Local) RequiresApproval(toolName string) bool {
	return !toolApprovalExempt[toolName]
}

func (l *Local) Executors() map[string]toolorch.Executor {
	return l.executors
}

// Register binds every Executor this workspace exposes onto orch, the
// step the runtime/registry wiring performs once per session activation.
func Register(orch *toolorch.Orchestrator, ws *Local) {
	for name, exec := range ws.Executors() {
		orch.Register(name, exec)
	}
}
