package convo

import "github.com/sergi/go-diff/diffmatchpatch"

// ToolResultKind enumerates the result shapes a tool invocation can produce,
// per §6.4 of the runtime spec.
type ToolResultKind string

const (
	ResultSearch      ToolResultKind = "search"
	ResultFileList    ToolResultKind = "file_list"
	ResultFileContent ToolResultKind = "file_content"
	ResultEdit        ToolResultKind = "edit"
	ResultBash        ToolResultKind = "bash"
	ResultGlob        ToolResultKind = "glob"
	ResultTodoRead    ToolResultKind = "todo_read"
	ResultTodoWrite   ToolResultKind = "todo_write"
	ResultFetch       ToolResultKind = "fetch"
	ResultAgent       ToolResultKind = "agent"
	ResultExternal    ToolResultKind = "external"
	ResultError       ToolResultKind = "error"
)

// ToolResult is the outcome a workspace collaborator returns for a tool
// call. Exactly one payload field matching Kind is populated.
type ToolResult struct {
	Kind ToolResultKind `json:"kind"`

	Search      *SearchResult      `json:"search,omitempty"`
	FileList    *FileListResult    `json:"fileList,omitempty"`
	FileContent *FileContentResult `json:"fileContent,omitempty"`
	Edit        *EditResult        `json:"edit,omitempty"`
	Bash        *BashResult        `json:"bash,omitempty"`
	Glob        *GlobResult        `json:"glob,omitempty"`
	TodoRead    *TodoReadResult    `json:"todoRead,omitempty"`
	TodoWrite   *TodoWriteResult   `json:"todoWrite,omitempty"`
	Fetch       *FetchResult       `json:"fetch,omitempty"`
	Agent       *AgentResult       `json:"agent,omitempty"`
	External    *ExternalResult    `json:"external,omitempty"`
	Error       *ErrorResult       `json:"error,omitempty"`
}

type SearchMatch struct {
	Path       string `json:"path"`
	LineNumber int    `json:"lineNumber"`
	Line       string `json:"line"`
}

type SearchResult struct {
	Matches  []SearchMatch `json:"matches"`
	Truncated bool         `json:"truncated"`
}

type FileEntry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size"`
}

type FileListResult struct {
	Entries   []FileEntry `json:"entries"`
	Truncated bool        `json:"truncated"`
}

type FileContentResult struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Truncated bool  `json:"truncated"`
}

// EditResult reports a file edit, carrying a diff rendered the way
// diffmatchpatch renders it, for display to an operator or UI.
type EditResult struct {
	Path    string `json:"path"`
	Before  string `json:"before"`
	After   string `json:"after"`
	Diff    string `json:"diff"`
}

// RenderEdit builds an EditResult from a before/after pair, computing the
// diff text with diffmatchpatch the way the teacher's diff tooling does.
func RenderEdit(path, before, after string) EditResult {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return EditResult{
		Path:   path,
		Before: before,
		After:  after,
		Diff:   dmp.DiffPrettyText(diffs),
	}
}

type BashResult struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

type GlobResult struct {
	Paths     []string `json:"paths"`
	Truncated bool     `json:"truncated"`
}

type TodoItem struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Status   string `json:"status"` // "pending" | "in_progress" | "completed"
}

type TodoReadResult struct {
	Todos []TodoItem `json:"todos"`
}

type TodoWriteResult struct {
	Todos []TodoItem `json:"todos"`
}

type FetchResult struct {
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// AgentResult carries the outcome of a sub-agent/subtask delegation.
type AgentResult struct {
	Summary string `json:"summary"`
}

// ExternalResult is the escape hatch for workspace-defined tools (e.g.
// MCP-hosted) whose result shape the runtime doesn't model explicitly.
type ExternalResult struct {
	ToolName string          `json:"toolName"`
	Payload  map[string]any  `json:"payload"`
}

// ErrorKind distinguishes the tool-error taxonomy listed in §6.4.
// Zero value (ErrorUnspecified) covers stepper-synthesized errors
// (denial, cancellation) that predate a workspace-assigned kind.
type ErrorKind string

const (
	ErrorUnspecified       ErrorKind = ""
	ErrorUnknownTool       ErrorKind = "unknown_tool"
	ErrorInvalidParams     ErrorKind = "invalid_params"
	ErrorExecution         ErrorKind = "execution"
	ErrorCancelled         ErrorKind = "cancelled"
	ErrorTimeout           ErrorKind = "timeout"
	ErrorDeniedByUser      ErrorKind = "denied_by_user"
	ErrorInternal          ErrorKind = "internal_error"
	ErrorIO                ErrorKind = "io"
	ErrorSerialization     ErrorKind = "serialization"
	ErrorHTTP              ErrorKind = "http"
	ErrorRegex             ErrorKind = "regex"
	ErrorMcpConnectionFailed ErrorKind = "mcp_connection_failed"
)

type ErrorResult struct {
	Kind    ErrorKind `json:"kind,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Server  string    `json:"server,omitempty"`
	Message string    `json:"message"`
}
