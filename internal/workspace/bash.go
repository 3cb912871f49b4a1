package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/agentrt/runtime/internal/convo"
)

// ToolBash is the tool name the approval policy special-cases for glob
// pre-approval and the static security denylist (§3.5, §4.2).
const ToolBash = "bash"

const (
	defaultBashTimeout = 120 * time.Second
	maxBashTimeout      = 10 * time.Minute
	maxBashOutputLength = 30000
)

// BashExecutor runs a shell command in the workspace root, grounded on
// internal/tool/bash.go. Approval/denylist decisions happen upstream in
// internal/approval; this Executor only runs what it is handed.
type BashExecutor struct {
	Root  string
	Shell string
}

// NewBashExecutor detects the host shell the way the teacher's
// detectShell does.
func NewBashExecutor(root string) BashExecutor {
	return BashExecutor{Root: root, Shell: detectShell()}
}

func detectShell() string {
	if s := os.Getenv("SHELL"); s != "" && s != "/bin/fish" && s != "/usr/bin/fish" {
		return s
	}
	switch runtime.GOOS {
	case "darwin":
		return "/bin/zsh"
	case "windows":
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

type bashParams struct {
	Command     string `json:"command"`
	Timeout     int    `json:"timeout,omitempty"`
	Description string `json:"description"`
}

func (e BashExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	var p bashParams
	if err := json.Unmarshal(call.Parameters, &p); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	timeout := defaultBashTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Millisecond
		if timeout > maxBashTimeout {
			timeout = maxBashTimeout
		}
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(cmdCtx, e.Shell, "/c", p.Command)
	} else {
		cmd = exec.CommandContext(cmdCtx, e.Shell, "-c", p.Command)
	}
	cmd.Dir = e.Root
	cmd.Env = os.Environ()
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cmdCtx.Err() != nil {
		return convo.ToolResult{}, fmt.Errorf("bash: %w", cmdCtx.Err())
	}

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	out, errOut := truncate(stdout.String()), truncate(stderr.String())

	return convo.ToolResult{
		Kind: convo.ResultBash,
		Bash: &convo.BashResult{Command: p.Command, Stdout: out, Stderr: errOut, ExitCode: exitCode},
	}, nil
}

func truncate(s string) string {
	if len(s) <= maxBashOutputLength {
		return s
	}
	return s[:maxBashOutputLength] + "\n\n(output truncated)"
}
