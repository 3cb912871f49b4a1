// Package toolorch implements the Tool Orchestrator (§4.5): a thin,
// concurrency-safe adapter between the runtime scheduler and whatever
// concrete tool implementations are registered (internal/workspace's
// file tools, MCP-hosted tools, or a sub-agent executor). It owns only
// dispatch, timeout, and cancellation — tool semantics live entirely in
// the registered Executors.
package toolorch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/logging"
)

// DefaultTimeout is the per-call timeout Execute applies unless
// WithTimeout overrides it; an earlier deadline already on the call's
// context still wins (§4.5: "default 5 minutes, overridable").
const DefaultTimeout = 5 * time.Minute

// Executor runs one tool's business logic. Implementations must return
// promptly once ctx is cancelled.
type Executor interface {
	Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	return f(ctx, call)
}

// ErrUnknownTool is returned when no Executor is registered for a call's
// tool name.
var ErrUnknownTool = errors.New("toolorch: unknown tool")

// ErrCancelled is returned (wrapped with the tool name) when ctx fires
// before the executor finishes.
var ErrCancelled = errors.New("toolorch: cancelled")

// ErrTimeout is returned (wrapped with the tool name) when a call exceeds
// its timeout.
var ErrTimeout = errors.New("toolorch: timeout")

// Orchestrator dispatches ToolCalls to registered Executors, enforcing a
// per-call timeout and honoring an external cancellation token.
type Orchestrator struct {
	mu        sync.RWMutex
	executors map[string]Executor
	timeout   time.Duration
}

// New creates an Orchestrator with the default per-call timeout.
func New() *Orchestrator {
	return &Orchestrator{executors: make(map[string]Executor), timeout: DefaultTimeout}
}

// WithTimeout overrides the default per-call timeout.
func (o *Orchestrator) WithTimeout(d time.Duration) *Orchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeout = d
	return o
}

// Register binds a tool name to the Executor that implements it. Safe to
// call concurrently with Execute.
func (o *Orchestrator) Register(name string, exec Executor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.executors[name] = exec
}

// Execute runs call.Name's Executor under a bounded, cancellable context
// derived from the operation token in ctx. It is safe to call Execute
// concurrently for distinct ToolCallIds (§4.5).
func (o *Orchestrator) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	o.mu.RLock()
	exec, ok := o.executors[call.Name]
	timeout := o.timeout
	o.mu.RUnlock()
	if !ok {
		return convo.ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result convo.ToolResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := exec.Execute(callCtx, call)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			logging.Logger.Warn().Str("tool", call.Name).Str("call_id", call.ID.String()).Msg("toolorch: timeout")
			return convo.ToolResult{}, fmt.Errorf("%w: %s", ErrTimeout, call.Name)
		}
		logging.Logger.Info().Str("tool", call.Name).Str("call_id", call.ID.String()).Msg("toolorch: cancelled")
		return convo.ToolResult{}, fmt.Errorf("%w: %s", ErrCancelled, call.Name)
	}
}

// ExecuteMany runs several calls concurrently, returning their results in
// the same order as calls. The runtime scheduler does not use it: it
// dispatches each ExecuteTool effect through its own Execute call.
func (o *Orchestrator) ExecuteMany(ctx context.Context, calls []convo.ToolCall) []Result {
	results := make([]Result, len(calls))
	var group errgroup.Group
	for i, call := range calls {
		i, call := i, call
		group.Go(func() error {
			result, err := o.Execute(ctx, call)
			results[i] = Result{CallID: call.ID, Result: result, Err: err}
			return nil
		})
	}
	// Every call's own error already lands in its Result; the group is
	// only used for fan-out/join, so its own error is always nil.
	_ = group.Wait()
	return results
}

// Result pairs a ToolCallID with its outcome, for ExecuteMany callers
// that need to route each back to the stepper as ToolCompleted/ToolFailed.
type Result struct {
	CallID ids.ToolCallID
	Result convo.ToolResult
	Err    error
}
