package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/storage"
)

const (
	ToolTodoRead  = "todoread"
	ToolTodoWrite = "todowrite"
)

// TodoReadExecutor and TodoWriteExecutor persist a session's structured
// task list via internal/storage, keyed by session id, grounded on
// internal/tool/todoread.go and todowrite.go.
type TodoReadExecutor struct {
	Session ids.SessionID
	Store   *storage.Storage
}

func (e TodoReadExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	todos, err := loadTodos(ctx, e.Store, e.Session)
	if err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return convo.ToolResult{Kind: convo.ResultTodoRead, TodoRead: &convo.TodoReadResult{Todos: todos}}, nil
}

type TodoWriteExecutor struct {
	Session ids.SessionID
	Store   *storage.Storage
}

type todoWriteParams struct {
	Todos []convo.TodoItem `json:"todos"`
}

func (e TodoWriteExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	var p todoWriteParams
	if err := json.Unmarshal(call.Parameters, &p); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := e.Store.Put(ctx, []string{"todo", e.Session.String()}, p.Todos); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return convo.ToolResult{Kind: convo.ResultTodoWrite, TodoWrite: &convo.TodoWriteResult{Todos: p.Todos}}, nil
}

func loadTodos(ctx context.Context, store *storage.Storage, session ids.SessionID) ([]convo.TodoItem, error) {
	var todos []convo.TodoItem
	err := store.Get(ctx, []string{"todo", session.String()}, &todos)
	if errors.Is(err, storage.ErrNotFound) {
		return []convo.TodoItem{}, nil
	}
	return todos, err
}
