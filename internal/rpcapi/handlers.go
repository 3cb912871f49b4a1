package rpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/logging"
	"github.com/agentrt/runtime/internal/registry"
	"github.com/agentrt/runtime/internal/runtime"
)

// commandTimeout bounds how long a unary RPC waits for its session task
// to answer a reply-channel command (GetCurrentConversation,
// RequestWorkspaceFiles). Every other command is fire-and-forget from
// the RPC layer's point of view: the caller learns the outcome from the
// session's event stream, not the HTTP response.
const commandTimeout = 10 * time.Second

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// schedulerFor resolves (spawning or resuming as needed) the session's
// task and asserts it back to *runtime.Scheduler, the concrete type that
// satisfies registry.Task and also exposes Enqueue. registry.Task is
// kept narrow deliberately (see registry.go's own comment), so this
// assertion is the one place rpcapi reaches past it.
func (s *Server) schedulerFor(ctx context.Context, id ids.SessionID) (*runtime.Scheduler, error) {
	task, err := s.registry.Ensure(ctx, id)
	if err != nil {
		return nil, err
	}
	sched, ok := task.(*runtime.Scheduler)
	if !ok {
		return nil, errors.New("rpcapi: active task is not a runtime.Scheduler")
	}
	return sched, nil
}

func sessionIDFromPath(r *http.Request) (ids.SessionID, error) {
	return ids.ParseSessionID(chi.URLParam(r, "sessionID"))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.catalog.list(r.Context())
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type createSessionRequest struct {
	DefaultModel string            `json:"defaultModel"`
	Metadata     map[string]string `json:"metadata"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}

	id := ids.NewSessionID()
	sess, err := s.factory(r.Context(), id, req.DefaultModel, req.Metadata)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	row := SessionSummary{
		ID:           sess.ID,
		CreatedAt:    sess.CreatedAt,
		UpdatedAt:    sess.UpdatedAt,
		DefaultModel: sess.DefaultModel,
		Metadata:     sess.Config.Metadata,
	}
	s.catalog.put(row)

	if _, err := s.registry.Ensure(r.Context(), id); err != nil {
		writeError(w, ErrCodeResourceExhausted, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	row, err := s.catalog.get(r.Context(), id)
	if err != nil {
		if errors.Is(err, eventstore.ErrNotFound) {
			writeError(w, ErrCodeNotFound, "session not found")
			return
		}
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	if s.registry.IsActive(id) {
		if task, err := s.registry.Ensure(r.Context(), id); err == nil {
			_ = task.RequestSuspend(r.Context())
		}
		s.registry.Remove(id)
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	s.catalog.remove(id)
	s.hub.Close(id)
	writeSuccess(w)
}

func (s *Server) activateSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	if _, err := s.catalog.get(r.Context(), id); err != nil {
		if errors.Is(err, eventstore.ErrNotFound) {
			writeError(w, ErrCodeNotFound, "session not found")
			return
		}
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	if _, err := s.registry.Ensure(r.Context(), id); err != nil {
		var capErr *registry.CapacityExceeded
		if errors.As(err, &capErr) {
			writeError(w, ErrCodeResourceExhausted, err.Error())
			return
		}
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeSuccess(w)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	sched, err := s.schedulerFor(r.Context(), id)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	reply := make(chan runtime.ConversationSnapshot, 1)
	if err := sched.Enqueue(ctx, runtime.GetCurrentConversationCmd{Reply: reply}); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	select {
	case snap := <-reply:
		writeJSON(w, http.StatusOK, snap)
	case <-ctx.Done():
		writeError(w, ErrCodeInternal, "timed out waiting for conversation snapshot")
	}
}

type sendMessageRequest struct {
	Text        string   `json:"text"`
	Attachments []string `json:"attachments"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	sched, err := s.schedulerFor(r.Context(), id)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	if err := sched.Enqueue(r.Context(), runtime.ProcessUserInputCmd{Text: req.Text, Attachments: req.Attachments}); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeSuccess(w)
}

type editMessageRequest struct {
	NewContent string `json:"newContent"`
}

func (s *Server) editMessage(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	msgID, err := ids.ParseMessageID(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	var req editMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	sched, err := s.schedulerFor(r.Context(), id)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	if err := sched.Enqueue(r.Context(), runtime.EditMessageCmd{MessageID: msgID, NewContent: req.NewContent}); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeSuccess(w)
}

type toolApprovalRequest struct {
	Decision    string `json:"decision"`
	BashPattern string `json:"bashPattern"`
}

func (s *Server) toolApproval(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	toolCallID := ids.ToolCallIDFromModel(chi.URLParam(r, "toolCallID"))
	var req toolApprovalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	sched, err := s.schedulerFor(r.Context(), id)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	cmd := runtime.HandleToolResponseCmd{
		ToolCallID:  toolCallID,
		Decision:    runtime.ApprovalDecision(req.Decision),
		BashPattern: req.BashPattern,
	}
	if err := sched.Enqueue(r.Context(), cmd); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeSuccess(w)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	sched, err := s.schedulerFor(r.Context(), id)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	if err := sched.Enqueue(r.Context(), runtime.CancelProcessingCmd{}); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeSuccess(w)
}

type executeCommandRequest struct {
	Kind    string `json:"kind"`
	ModelID string `json:"modelId"`
}

func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	var req executeCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	sched, err := s.schedulerFor(r.Context(), id)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	cmd := runtime.ExecuteCommandCmd{Command: runtime.AppCommand{
		Kind:    runtime.AppCommandKind(req.Kind),
		ModelID: req.ModelID,
	}}
	if err := sched.Enqueue(r.Context(), cmd); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeSuccess(w)
}

type executeBashRequest struct {
	Command string `json:"command"`
}

func (s *Server) executeBashCommand(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	var req executeBashRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	sched, err := s.schedulerFor(r.Context(), id)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	if err := sched.Enqueue(r.Context(), runtime.ExecuteBashCommandCmd{Command: req.Command}); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeSuccess(w)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	query := r.URL.Query().Get("query")
	max := 0
	if v := r.URL.Query().Get("max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			max = n
		}
	}
	sched, err := s.schedulerFor(r.Context(), id)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	reply := make(chan []string, 1)
	if err := sched.Enqueue(ctx, runtime.RequestWorkspaceFilesCmd{Query: query, Max: max, Reply: reply}); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	select {
	case files := <-reply:
		writeJSON(w, http.StatusOK, files)
	case <-ctx.Done():
		writeError(w, ErrCodeInternal, "timed out waiting for file listing")
	}
}

func (s *Server) getMcpServers(w http.ResponseWriter, r *http.Request) {
	if s.mcpStatus == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, s.mcpStatus())
}

// connectMcpServer dynamically connects a new MCP server, the RPC
// analogue of the original runtime's ConnectMcpServer effect.
func (s *Server) connectMcpServer(w http.ResponseWriter, r *http.Request) {
	if s.mcpConnect == nil {
		writeError(w, ErrCodeInternal, "mcp server control is not wired")
		return
	}
	var req McpConnectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, ErrCodeInvalidArgument, "name is required")
		return
	}
	if err := s.mcpConnect(r.Context(), req); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeSuccess(w)
}

// disconnectMcpServer tears down a running MCP server, the RPC analogue
// of DisconnectMcpServer.
func (s *Server) disconnectMcpServer(w http.ResponseWriter, r *http.Request) {
	if s.mcpDisconnect == nil {
		writeError(w, ErrCodeInternal, "mcp server control is not wired")
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.mcpDisconnect(name); err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	writeSuccess(w)
}

// subscribe serves the §4.6 SSE event feed: replay since_seq then live
// delivery, exactly what hub.Subscribe already implements — this handler
// only adapts it to the SSE wire format.
func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, ErrCodeInvalidArgument, err.Error())
		return
	}
	var sinceSeq uint64
	if v := r.URL.Query().Get("since_seq"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			sinceSeq = n
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, ErrCodeInternal, "streaming unsupported")
		return
	}

	ctx := r.Context()
	replayer := runtime.NewEventStoreReplayer(s.store)
	dataCh, errCh, unsubscribe, err := s.hub.Subscribe(ctx, id, sinceSeq, replayer)
	if err != nil {
		writeError(w, ErrCodeInternal, err.Error())
		return
	}
	defer unsubscribe()
	s.registry.OnSubscriberJoined(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case env, ok := <-dataCh:
			if !ok {
				return
			}
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\ndata: %s\n\n", env.ID, payload)
			flusher.Flush()
		case err, ok := <-errCh:
			if ok && err != nil {
				logging.Logger.Warn().Err(err).Str("session", id.String()).Msg("rpcapi: subscription error")
			}
			return
		case <-ctx.Done():
			return
		}
	}
}
