package llmport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClientReplaysQueuedDeltasThenResponse(t *testing.T) {
	c := NewMockClient()
	c.Enqueue(
		[]Delta{{TextDelta: "hel"}, {TextDelta: "lo"}},
		Response{StopReason: "end_turn", Usage: Usage{InputTokens: 10, OutputTokens: 2}},
	)

	stream, err := c.Stream(context.Background(), Request{ModelID: "test-model"})
	require.NoError(t, err)

	var got []string
	for d := range stream.Deltas() {
		got = append(got, d.TextDelta)
	}
	resp, err := stream.Response()
	require.NoError(t, err)

	assert.Equal(t, []string{"hel", "lo"}, got)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 10, resp.Usage.InputTokens)
}

func TestMockClientReturnsQueuedError(t *testing.T) {
	c := NewMockClient()
	boom := assert.AnError
	c.EnqueueError(boom)

	_, err := c.Stream(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)
}

func TestMockClientErrorsWhenQueueEmpty(t *testing.T) {
	c := NewMockClient()
	_, err := c.Stream(context.Background(), Request{})
	assert.Error(t, err)
}
