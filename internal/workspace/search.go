package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentrt/runtime/internal/convo"
)

const (
	ToolGlob = "glob"
	ToolGrep = "grep"
)

const maxGlobResults = 100
const maxGrepResults = 100

// GlobExecutor implements the "glob" tool by shelling out to ripgrep's
// file-enumeration mode, exactly as internal/tool/glob.go does.
type GlobExecutor struct{ Root string }

type globParams struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

func (e GlobExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	var p globParams
	if err := json.Unmarshal(call.Parameters, &p); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	dir := resolveDir(e.Root, p.Path)

	cmd := exec.CommandContext(ctx, "rg", "--files", "--glob", p.Pattern)
	cmd.Dir = dir
	output, _ := cmd.Output()

	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line != "" {
			paths = append(paths, line)
		}
	}
	truncated := false
	if len(paths) > maxGlobResults {
		paths = paths[:maxGlobResults]
		truncated = true
	}
	return convo.ToolResult{Kind: convo.ResultGlob, Glob: &convo.GlobResult{Paths: paths, Truncated: truncated}}, nil
}

func resolveDir(root, path string) string {
	if path == "" {
		return root
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// GrepExecutor implements the "grep" tool over ripgrep's content search,
// grounded on internal/tool/grep.go.
type GrepExecutor struct{ Root string }

type grepParams struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Include string `json:"include,omitempty"`
}

func (e GrepExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	var p grepParams
	if err := json.Unmarshal(call.Parameters, &p); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if _, err := regexp.Compile(p.Pattern); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrRegex, err)
	}

	args := []string{"--line-number", "--with-filename", "--color=never"}
	if p.Include != "" {
		args = append(args, "--glob", p.Include)
	}
	args = append(args, p.Pattern, resolveDir(e.Root, p.Path))

	cmd := exec.CommandContext(ctx, "rg", args...)
	output, _ := cmd.Output()

	var matches []convo.SearchMatch
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		lineNum, err := strconv.Atoi(parts[1])
		if err != nil {
			return convo.ToolResult{}, fmt.Errorf("parsing ripgrep line number: %w", err)
		}
		matches = append(matches, convo.SearchMatch{Path: parts[0], LineNumber: lineNum, Line: parts[2]})
	}
	truncated := false
	if len(matches) > maxGrepResults {
		matches = matches[:maxGrepResults]
		truncated = true
	}
	return convo.ToolResult{Kind: convo.ResultSearch, Search: &convo.SearchResult{Matches: matches, Truncated: truncated}}, nil
}
