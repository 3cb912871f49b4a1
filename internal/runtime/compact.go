package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/hub"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/llmport"
	"github.com/agentrt/runtime/internal/logging"
	"github.com/agentrt/runtime/internal/stepper"
)

// compactionConfig mirrors the teacher's session.CompactionConfig: how
// many trailing messages survive a compaction untouched, how much budget
// the summary itself gets, and the fraction of context that triggers an
// automatic pass.
type compactionConfig struct {
	MinMessagesToKeep int
	SummaryMaxTokens  int
	ContextThreshold  float64
}

var defaultCompactionConfig = compactionConfig{
	MinMessagesToKeep: 4,
	SummaryMaxTokens:  2000,
	ContextThreshold:  0.75,
}

// compactionTokenBudget is the rough context window maybeCompact sizes
// ContextThreshold against. It intentionally isn't per-model: this is a
// coarse trigger, not an accounting mechanism.
const compactionTokenBudget = 150000

const compactionSystemPrompt = `You are a conversation summarizer. Summarize the conversation below so that work can continue seamlessly from where it left off. Focus on:
1. What was accomplished
2. Current work in progress
3. Files involved
4. Next steps
5. Any key user requests or constraints
Be concise but detailed enough that the next reader can pick up without re-reading the original messages.`

// maybeCompact folds every message but the trailing MinMessagesToKeep
// into one synthetic summary message, the same shape as the teacher's
// Processor.compactMessages. It is invoked between AwaitingModel cycles
// (dispatchCallModel, force=false) and from the explicit /compact app
// command (force=true) — never mid-operation, so it never touches
// stepper semantics.
func (s *Scheduler) maybeCompact(ctx context.Context, force bool) {
	cfg := defaultCompactionConfig
	if len(s.state.Messages) <= cfg.MinMessagesToKeep {
		return
	}
	if !force && estimateTokens(s.state.Messages) < int(float64(compactionTokenBudget)*cfg.ContextThreshold) {
		return
	}

	cut := len(s.state.Messages) - cfg.MinMessagesToKeep
	toCompact, recent := s.state.Messages[:cut], s.state.Messages[cut:]

	summaryText, err := s.summarize(ctx, toCompact, cfg.SummaryMaxTokens)
	if err != nil {
		logging.Logger.Warn().Err(err).Str("session", s.session.ID.String()).Msg("runtime: compaction summary failed")
		return
	}

	// The summary message is planted as a new forest root (Parent: nil)
	// rather than a child of the compacted chain: ActivePath walks
	// strictly backward from the leaf via Parent, so the only way the
	// runtime's in-memory Messages keeps matching what Reduce() rebuilds
	// from the persisted log (§8 invariant 4) is for the persisted
	// parent chain itself to start over here. The compacted-away
	// messages stay in the log, just off the active path — the same
	// "never mutates old messages" shape handleEditMessage already uses.
	summary := convo.NewUserMessage(s.clock.NewMessageID(), nil, s.clock.NowMillis(),
		convo.UserContent{Text: &convo.TextContent{Text: "Conversation summary (older messages compacted):\n\n" + summaryText}})
	if err := s.persistMessage(ctx, summary); err != nil {
		logging.Logger.Error().Err(err).Str("session", s.session.ID.String()).Msg("runtime: persist compaction summary")
		return
	}

	rebuilt := make([]*convo.Message, 0, 1+len(recent))
	rebuilt = append(rebuilt, summary)
	parent := summary.ID
	for _, m := range recent {
		clone := cloneMessageWithParent(s.clock, &parent, m)
		if err := s.persistMessage(ctx, clone); err != nil {
			logging.Logger.Error().Err(err).Str("session", s.session.ID.String()).Msg("runtime: persist compacted message")
			return
		}
		rebuilt = append(rebuilt, clone)
		parent = clone.ID
	}
	s.persistActiveMessageChanged(ctx, parent)

	s.state.Messages = rebuilt

	s.publish(hub.Event{Kind: hub.KindMessageAdded, MessageAdded: &hub.MessageAddedData{Message: summary, Model: s.session.DefaultModel}})
	s.publish(hub.Event{Kind: hub.KindActiveMessageIDChanged, ActiveMessageChanged: &hub.ActiveMessageChangedData{MessageID: parent}})
	s.publish(hub.Event{Kind: hub.KindWorkspaceChanged})
}

// cloneMessageWithParent re-homes a message under a new parent with a
// fresh id, the same truncate-and-reattach move handleEditMessage makes
// for a single edited message, just applied to every kept message.
func cloneMessageWithParent(clock stepper.Clock, parent *ids.MessageID, src *convo.Message) *convo.Message {
	id := clock.NewMessageID()
	switch src.Role {
	case convo.RoleAssistant:
		return convo.NewAssistantMessage(id, parent, src.Time, src.Assistant.Content...)
	case convo.RoleTool:
		return convo.NewToolMessage(id, parent, src.Time, src.Tool.ToolUseID, src.Tool.Result)
	default:
		return convo.NewUserMessage(id, parent, src.Time, src.User.Content...)
	}
}

// summarize asks the model for a plain-text summary of the given
// messages. It is a one-shot, non-streaming call: the runtime only needs
// the final text, not incremental deltas to broadcast.
func (s *Scheduler) summarize(ctx context.Context, messages []*convo.Message, maxTokens int) (string, error) {
	prompt := buildSummaryPrompt(messages)
	req := llmport.Request{
		ModelID: s.session.DefaultModel,
		Messages: []*convo.Message{
			convo.NewUserMessage(s.clock.NewMessageID(), nil, s.clock.NowMillis(),
				convo.UserContent{Text: &convo.TextContent{Text: compactionSystemPrompt + "\n\n" + prompt}}),
		},
		MaxTokens: maxTokens,
	}
	stream, err := s.llm.Stream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("start summary stream: %w", err)
	}
	for range stream.Deltas() {
		// Drained without rebroadcasting: the summary is a side effect,
		// not turn content a subscriber should see stream in.
	}
	resp, err := stream.Response()
	if err != nil {
		return "", fmt.Errorf("collect summary response: %w", err)
	}
	var b strings.Builder
	for _, c := range resp.Content {
		if c.Text != nil {
			b.WriteString(c.Text.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// buildSummaryPrompt renders messages as a plain USER:/ASSISTANT: transcript,
// truncating tool output the way the teacher's compact.go does so a single
// large result can't blow the summary prompt's own budget.
func buildSummaryPrompt(messages []*convo.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case convo.RoleUser:
			b.WriteString("USER: ")
			b.WriteString(m.Text())
			b.WriteString("\n\n")
		case convo.RoleAssistant:
			b.WriteString("ASSISTANT: ")
			b.WriteString(m.Text())
			for _, c := range m.ToolCalls() {
				fmt.Fprintf(&b, "\n[called tool %s]", c.Name)
			}
			b.WriteString("\n\n")
		case convo.RoleTool:
			b.WriteString("TOOL RESULT: ")
			b.WriteString(truncateToolOutput(m.Tool.Result))
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func truncateToolOutput(r convo.ToolResult) string {
	var s string
	switch {
	case r.Bash != nil:
		s = r.Bash.Stdout + r.Bash.Stderr
	case r.FileContent != nil:
		s = r.FileContent.Content
	case r.Error != nil:
		s = r.Error.Message
	default:
		s = string(r.Kind)
	}
	const limit = 500
	if len(s) > limit {
		return s[:limit] + "... (truncated)"
	}
	return s
}

// estimateTokens is the same rough chars/4 heuristic the teacher's
// compact.go uses: good enough to decide whether to compact, not an
// accounting mechanism.
func estimateTokens(messages []*convo.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Text()) / 4
		if m.Tool != nil {
			total += len(truncateToolOutput(m.Tool.Result)) / 4
		}
	}
	return total
}
