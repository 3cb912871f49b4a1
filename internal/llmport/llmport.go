// Package llmport defines the external-collaborator LLM Call Adapter
// (the runtime's only seam for talking to a model) plus one reference
// streaming implementation used by tests and the default CLI. It
// intentionally does not depend on any concrete provider SDK or
// orchestration framework: internal/stepper emits CallModel effects and
// internal/runtime drives a Client, but neither cares which model family
// answers.
package llmport

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agentrt/runtime/internal/convo"
)

// ToolSchema describes one tool available to the model, converted from
// the tool orchestrator's registry.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  []byte // JSON Schema
}

// Request is everything a Client needs to produce the next assistant
// message: the active-path conversation, the tools on offer, and the
// target model.
type Request struct {
	ProviderID string
	ModelID    string
	Messages   []*convo.Message
	Tools      []ToolSchema
	MaxTokens  int
}

// Delta is one streamed increment of the assistant response, forwarded
// by the runtime as a MessagePart hub event.
type Delta struct {
	TextDelta string
	// ToolCall is set once a tool call is fully parsed out of the
	// stream (providers typically deliver tool-call arguments as their
	// own delta stream before closing the call).
	ToolCall *convo.ToolCall
}

// Response is the final, fully-assembled model turn.
type Response struct {
	Content   []convo.AssistantContent
	Usage     Usage
	StopReason string
}

// Usage reports token accounting for cost/limit tracking.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Stream is returned by Client.Stream; callers range over Deltas until
// the channel closes, then call Response, which returns the final
// Response or the stream's terminal error.
type Stream interface {
	Deltas() <-chan Delta
	Response() (Response, error)
}

// Client is the LLM Call Adapter contract (spec §6). Implementations
// must honor ctx cancellation promptly — internal/runtime binds ctx to
// the current operation's cancellation token.
type Client interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// RetryConfig mirrors the teacher's exponential-backoff tuning for
// transient provider errors (rate limits, 5xx, timeouts).
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// DefaultRetryConfig matches internal/session/loop.go's constants.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
		MaxRetries:      3,
	}
}

// NewBackOff builds a context-aware exponential backoff policy from cfg,
// for adapters that want retry-with-jitter around transient failures
// (connection resets, 429s) before surfacing a ModelError to the stepper.
func NewBackOff(ctx context.Context, cfg RetryConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}
