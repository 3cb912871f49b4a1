package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
)

func TestCloneMessageWithParentPreservesRoleAndContent(t *testing.T) {
	parent := ids.NewMessageID()
	src := userMsg("what files changed?")

	clone := cloneMessageWithParent(SystemClock, &parent, src)

	require.NotEqual(t, src.ID, clone.ID, "clone must mint a fresh id")
	assert.Equal(t, &parent, clone.Parent)
	assert.Equal(t, convo.RoleUser, clone.Role)
	assert.Equal(t, src.Text(), clone.Text())
}

func TestCloneMessageWithParentTool(t *testing.T) {
	parent := ids.NewMessageID()
	result := convo.ToolResult{Kind: convo.ResultBash, Bash: &convo.BashResult{Command: "ls", Stdout: "a", ExitCode: 0}}
	src := convo.NewToolMessage(ids.NewMessageID(), nil, 1, ids.ToolCallIDFromModel("toolu_1"), result)

	clone := cloneMessageWithParent(SystemClock, &parent, src)

	assert.Equal(t, convo.RoleTool, clone.Role)
	assert.Equal(t, src.Tool.ToolUseID, clone.Tool.ToolUseID)
	assert.Equal(t, src.Tool.Result, clone.Tool.Result)
}

func TestBuildSummaryPromptRendersEveryRole(t *testing.T) {
	user := userMsg("run the tests")
	callID := ids.ToolCallIDFromModel("toolu_1")
	asst := convo.NewAssistantMessage(ids.NewMessageID(), nil, 2,
		convo.AssistantContent{Text: &convo.TextContent{Text: "sure"}},
		convo.AssistantContent{ToolCall: &convo.ToolCall{ID: callID, Name: "bash"}},
	)
	tool := convo.NewToolMessage(ids.NewMessageID(), nil, 3, callID,
		convo.ToolResult{Kind: convo.ResultBash, Bash: &convo.BashResult{Stdout: "ok", ExitCode: 0}})

	prompt := buildSummaryPrompt([]*convo.Message{user, asst, tool})

	assert.Contains(t, prompt, "USER: run the tests")
	assert.Contains(t, prompt, "ASSISTANT: sure")
	assert.Contains(t, prompt, "[called tool bash]")
	assert.Contains(t, prompt, "TOOL RESULT: ok")
}

func TestTruncateToolOutputTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("x", 1000)
	out := truncateToolOutput(convo.ToolResult{Kind: convo.ResultBash, Bash: &convo.BashResult{Stdout: long}})
	assert.Less(t, len(out), len(long))
	assert.Contains(t, out, "(truncated)")
}

func TestEstimateTokensGrowsWithMessageLength(t *testing.T) {
	short := []*convo.Message{userMsg("hi")}
	long := []*convo.Message{userMsg(strings.Repeat("word ", 200))}
	assert.Less(t, estimateTokens(short), estimateTokens(long))
}
