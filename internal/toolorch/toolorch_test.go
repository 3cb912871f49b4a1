package toolorch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteDispatchesToRegisteredTool(t *testing.T) {
	o := New()
	o.Register("echo", ExecutorFunc(func(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
		return convo.ToolResult{Kind: convo.ResultBash, Bash: &convo.BashResult{Stdout: "hi"}}, nil
	}))

	result, err := o.Execute(context.Background(), convo.ToolCall{ID: ids.ToolCallIDFromModel("t1"), Name: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Bash.Stdout)
}

func TestExecuteReturnsUnknownTool(t *testing.T) {
	o := New()
	_, err := o.Execute(context.Background(), convo.ToolCall{ID: ids.ToolCallIDFromModel("t1"), Name: "nope"})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestExecuteTimesOut(t *testing.T) {
	o := New().WithTimeout(10 * time.Millisecond)
	o.Register("slow", ExecutorFunc(func(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
		select {
		case <-time.After(time.Second):
			return convo.ToolResult{}, nil
		case <-ctx.Done():
			return convo.ToolResult{}, ctx.Err()
		}
	}))

	_, err := o.Execute(context.Background(), convo.ToolCall{ID: ids.ToolCallIDFromModel("t1"), Name: "slow"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestExecuteRespectsCancellation(t *testing.T) {
	o := New()
	started := make(chan struct{})
	o.Register("slow", ExecutorFunc(func(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
		close(started)
		<-ctx.Done()
		return convo.ToolResult{}, ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := o.Execute(ctx, convo.ToolCall{ID: ids.ToolCallIDFromModel("t1"), Name: "slow"})
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("expected cancellation to propagate")
	}
}

func TestExecuteManyRunsConcurrentlyAndPreservesOrder(t *testing.T) {
	o := New()
	o.Register("echo", ExecutorFunc(func(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
		return convo.ToolResult{Kind: convo.ResultBash, Bash: &convo.BashResult{Stdout: call.ID.String()}}, nil
	}))

	calls := []convo.ToolCall{
		{ID: ids.ToolCallIDFromModel("a"), Name: "echo"},
		{ID: ids.ToolCallIDFromModel("b"), Name: "echo"},
		{ID: ids.ToolCallIDFromModel("missing"), Name: "nope"},
	}
	results := o.ExecuteMany(context.Background(), calls)

	require.Len(t, results, 3)
	assert.Equal(t, ids.ToolCallIDFromModel("a"), results[0].CallID)
	assert.Equal(t, "a", results[0].Result.Bash.Stdout)
	assert.Equal(t, ids.ToolCallIDFromModel("b"), results[1].CallID)
	assert.True(t, errors.Is(results[2].Err, ErrUnknownTool))
}
