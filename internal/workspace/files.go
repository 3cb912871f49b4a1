package workspace

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/agentrt/runtime/internal/convo"
)

const (
	ToolRead  = "read"
	ToolWrite = "write"
	ToolEdit  = "edit"
	ToolList  = "list"
)

const maxReadLines = 2000
const maxLineWidth = 2000

// ReadExecutor implements the "read" tool: paginated, line-numbered file
// reads, grounded on internal/tool/read.go minus its eino wrapping.
type ReadExecutor struct{ Root string }

type readParams struct {
	FilePath string `json:"filePath"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (e ReadExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	var p readParams
	if err := json.Unmarshal(call.Parameters, &p); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.Limit <= 0 {
		p.Limit = maxReadLines
	}
	if shouldBlockEnvFile(p.FilePath) {
		return convo.ToolResult{}, fmt.Errorf("%w: reading %s is blocked", ErrInvalidParams, p.FilePath)
	}

	info, err := os.Stat(p.FilePath)
	if err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if info.IsDir() {
		return convo.ToolResult{}, fmt.Errorf("%w: %s is a directory", ErrInvalidParams, p.FilePath)
	}

	file, err := os.Open(p.FilePath)
	if err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if p.Offset > 0 && lineNum < p.Offset {
			continue
		}
		if len(lines) >= p.Limit {
			continue
		}
		line := scanner.Text()
		if len(line) > maxLineWidth {
			line = line[:maxLineWidth] + "..."
		}
		lines = append(lines, fmt.Sprintf("%05d| %s", lineNum, line))
	}

	var sb strings.Builder
	sb.WriteString("<file>\n")
	sb.WriteString(strings.Join(lines, "\n"))
	lastReadLine := p.Offset + len(lines)
	if lineNum > lastReadLine {
		sb.WriteString(fmt.Sprintf("\n\n(File has more lines. Use 'offset' parameter to read beyond line %d)", lastReadLine))
	} else {
		sb.WriteString(fmt.Sprintf("\n\n(End of file - total %d lines)", lineNum))
	}
	sb.WriteString("\n</file>")

	return convo.ToolResult{
		Kind: convo.ResultFileContent,
		FileContent: &convo.FileContentResult{
			Path:      p.FilePath,
			Content:   sb.String(),
			Truncated: lineNum > lastReadLine,
		},
	}, nil
}

// shouldBlockEnvFile refuses .env reads except recognized sample/example
// variants, per the teacher's read tool.
func shouldBlockEnvFile(path string) bool {
	for _, allowed := range []string{".env.sample", ".example"} {
		if strings.HasSuffix(path, allowed) {
			return false
		}
	}
	return strings.Contains(path, ".env")
}

// WriteExecutor implements the "write" tool: full-file overwrite,
// creating parent directories as needed.
type WriteExecutor struct{ Root string }

type writeParams struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

func (e WriteExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	var p writeParams
	if err := json.Unmarshal(call.Parameters, &p); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := os.MkdirAll(filepath.Dir(p.FilePath), 0o755); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	before := ""
	if existing, err := os.ReadFile(p.FilePath); err == nil {
		before = string(existing)
	}
	if err := os.WriteFile(p.FilePath, []byte(p.Content), 0o644); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	edit := convo.RenderEdit(p.FilePath, before, p.Content)
	return convo.ToolResult{Kind: convo.ResultEdit, Edit: &edit}, nil
}

// EditExecutor implements the "edit" tool: exact string replacement,
// falling back to line-ending-normalized and then fuzzy (Levenshtein
// similarity) matching the way internal/tool/edit.go does, via
// agnivade/levenshtein rather than a hand-rolled distance function.
type EditExecutor struct{ Root string }

type editParams struct {
	FilePath   string `json:"filePath"`
	OldString  string `json:"oldString"`
	NewString  string `json:"newString"`
	ReplaceAll bool   `json:"replaceAll,omitempty"`
}

func (e EditExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	var p editParams
	if err := json.Unmarshal(call.Parameters, &p); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.OldString == p.NewString {
		return convo.ToolResult{}, fmt.Errorf("%w: oldString and newString must differ", ErrInvalidParams)
	}

	content, err := os.ReadFile(p.FilePath)
	if err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	before := string(content)

	after, ok := applyReplace(before, p)
	if !ok {
		after, ok = applyNormalizedReplace(before, p)
	}
	if !ok {
		after, ok = applyFuzzyReplace(before, p)
	}
	if !ok {
		return convo.ToolResult{}, fmt.Errorf("%w: oldString not found in %s", ErrInvalidParams, p.FilePath)
	}

	if err := os.WriteFile(p.FilePath, []byte(after), 0o644); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	edit := convo.RenderEdit(p.FilePath, before, after)
	return convo.ToolResult{Kind: convo.ResultEdit, Edit: &edit}, nil
}

func applyReplace(text string, p editParams) (string, bool) {
	count := strings.Count(text, p.OldString)
	if count == 0 {
		return "", false
	}
	if p.ReplaceAll {
		return strings.ReplaceAll(text, p.OldString, p.NewString), true
	}
	if count > 1 {
		return "", false
	}
	return strings.Replace(text, p.OldString, p.NewString, 1), true
}

func applyNormalizedReplace(text string, p editParams) (string, bool) {
	norm := func(s string) string { return strings.ReplaceAll(s, "\r\n", "\n") }
	normText, normOld := norm(text), norm(p.OldString)
	if !strings.Contains(normText, normOld) {
		return "", false
	}
	return strings.Replace(normText, normOld, p.NewString, 1), true
}

// fuzzyMatchThreshold is the minimum normalized Levenshtein similarity
// (1 - distance/maxLen) a candidate block must reach to be treated as
// the intended edit target.
const fuzzyMatchThreshold = 0.7

func applyFuzzyReplace(text string, p editParams) (string, bool) {
	lines := strings.Split(text, "\n")
	targetLines := strings.Split(p.OldString, "\n")

	bestMatch, bestScore := "", 0.0
	if len(targetLines) == 1 {
		for _, line := range lines {
			if s := similarity(line, p.OldString); s > bestScore {
				bestScore, bestMatch = s, line
			}
		}
	} else {
		n := len(targetLines)
		for i := 0; i+n <= len(lines); i++ {
			block := strings.Join(lines[i:i+n], "\n")
			if s := similarity(block, p.OldString); s > bestScore {
				bestScore, bestMatch = s, block
			}
		}
	}
	if bestMatch == "" || bestScore < fuzzyMatchThreshold {
		return "", false
	}
	return strings.Replace(text, bestMatch, p.NewString, 1), true
}

func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

// ListExecutor implements the "list" tool: shallow directory listing with
// the teacher's default ignore patterns.
type ListExecutor struct{ Root string }

type listParams struct {
	Path   string   `json:"path,omitempty"`
	Ignore []string `json:"ignore,omitempty"`
}

var defaultIgnorePatterns = []string{
	"node_modules/", "__pycache__/", ".git/", "dist/", "build/", "target/",
	"vendor/", "bin/", "obj/", ".idea/", ".vscode/", ".cache/", "cache/",
	"logs/", "tmp/", "temp/", ".venv/", "venv/", "env/",
}

func (e ListExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	var p listParams
	if err := json.Unmarshal(call.Parameters, &p); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	dir := e.Root
	if p.Path != "" {
		if filepath.IsAbs(p.Path) {
			dir = p.Path
		} else {
			dir = filepath.Join(dir, p.Path)
		}
	}
	patterns := append(append([]string{}, defaultIgnorePatterns...), p.Ignore...)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrIO, err)
	}

	var out []convo.FileEntry
	for _, entry := range entries {
		if shouldIgnore(entry.Name(), entry.IsDir(), patterns) {
			continue
		}
		info, _ := entry.Info()
		var size int64
		if info != nil {
			size = info.Size()
		}
		out = append(out, convo.FileEntry{Path: entry.Name(), IsDir: entry.IsDir(), Size: size})
	}
	return convo.ToolResult{Kind: convo.ResultFileList, FileList: &convo.FileListResult{Entries: out}}, nil
}

func shouldIgnore(name string, isDir bool, patterns []string) bool {
	checkName := name
	if isDir {
		checkName += "/"
	}
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			if isDir && (checkName == pattern || name == strings.TrimSuffix(pattern, "/")) {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if isDir {
			if matched, _ := filepath.Match(pattern, checkName); matched {
				return true
			}
		}
	}
	return false
}
