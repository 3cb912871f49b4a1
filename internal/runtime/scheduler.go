package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentrt/runtime/internal/approval"
	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/hub"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/llmport"
	"github.com/agentrt/runtime/internal/logging"
	"github.com/agentrt/runtime/internal/stepper"
	"github.com/agentrt/runtime/internal/toolorch"
)

// mailboxBufferSize bounds how many inbound commands an RPC handler can
// hand a session before blocking, per §4.4's single-writer discipline: a
// full mailbox applies backpressure rather than dropping work.
const mailboxBufferSize = 64

// Scheduler is the per-session task described in §4.4. It owns the
// stepper's current state, drives it from a command mailbox and an
// async-result channel, persists every state-changing step through the
// event store, and fans events out through the hub. It satisfies
// internal/registry.Task.
//
// Exactly one goroutine ever touches state/seq/policy/op*: the one
// running Run. Every other method either enqueues onto a channel or (for
// Enqueue/RequestSuspend) blocks on a reply, so Scheduler needs no mutex
// of its own around its live state — only around fields read by other
// goroutines (none at present; kept this way deliberately).
type Scheduler struct {
	session Session

	store    eventstore.Store
	hub      *hub.Hub
	orch     *toolorch.Orchestrator
	llm      llmport.Client
	approval *approval.Engine
	clock    stepper.Clock
	metrics  *Metrics
	tracer   trace.Tracer

	mailbox chan Command
	results chan stepper.Input

	state  stepper.State
	seq    uint64
	policy approval.Policy

	opCtx             context.Context
	opCancel          context.CancelFunc
	modelInFlight     bool
	pendingCancelInfo *hub.OperationCancelledData

	titleGenerator func(ctx context.Context, firstUserText string) (string, error)

	closeOnce sync.Once
	done      chan struct{}
}

// NewSchedulerParams bundles a Scheduler's collaborators, so spawning one
// (Runtime.spawn, a registry.Spawner) doesn't need a long positional
// argument list.
type NewSchedulerParams struct {
	Session  Session
	Store    eventstore.Store
	Hub      *hub.Hub
	Orch     *toolorch.Orchestrator
	LLM      llmport.Client
	Approval *approval.Engine
	Clock    stepper.Clock
	Metrics  *Metrics
	Tracer   trace.Tracer

	// InitialState/InitialSeq/PendingOutputs let a resumed session pick up
	// mid-operation exactly where the event log left off (see resume.go).
	// A brand-new session passes the zero State plus nil messages — the
	// first ProcessUserInputCmd builds the stepper's starting point.
	InitialState   stepper.State
	InitialSeq     uint64
	PendingOutputs []stepper.Output

	// TitleGenerator, if set, is fired once off-loop when a session's
	// first user message lands (see maybeGenerateTitle). Leaving it nil
	// disables title generation entirely — useful in tests.
	TitleGenerator func(ctx context.Context, firstUserText string) (string, error)
}

// NewScheduler constructs a Scheduler ready for Run, but does not start
// its goroutine — callers (Runtime.spawn) start it with `go s.Run(ctx)`.
func NewScheduler(p NewSchedulerParams) *Scheduler {
	if p.Clock == nil {
		p.Clock = SystemClock
	}
	if p.Tracer == nil {
		p.Tracer = otel.Tracer("github.com/agentrt/runtime/internal/runtime")
	}
	s := &Scheduler{
		session:  p.Session,
		store:    p.Store,
		hub:      p.Hub,
		orch:     p.Orch,
		llm:      p.LLM,
		approval: p.Approval,
		clock:    p.Clock,
		metrics:  p.Metrics,
		tracer:   p.Tracer,
		mailbox:  make(chan Command, mailboxBufferSize),
		results:  make(chan stepper.Input, mailboxBufferSize),
		state:    p.InitialState,
		seq:      p.InitialSeq,
		policy:   p.Session.Config.ApprovalPolicy,
		titleGenerator: p.TitleGenerator,
		done:     make(chan struct{}),
	}
	if len(p.PendingOutputs) > 0 {
		s.startOperation()
		s.pump(context.Background(), p.PendingOutputs)
	}
	return s
}

// Enqueue hands a command to the session's mailbox, blocking until there
// is room or ctx is cancelled.
func (s *Scheduler) Enqueue(ctx context.Context, cmd Command) error {
	select {
	case s.mailbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestSuspend implements registry.Task: it asks the running task to
// exit its loop and waits for confirmation.
func (s *Scheduler) RequestSuspend(ctx context.Context) error {
	doneCh := make(chan struct{})
	if err := s.Enqueue(ctx, ShutdownCmd{Done: doneCh}); err != nil {
		return err
	}
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the main loop: select{mailbox -> handle_command; results ->
// feed_and_pump}, until a ShutdownCmd or ctx cancellation. Idle-suspend
// itself is owned by internal/registry's idle timer, not this loop —
// RequestSuspend arrives here as an ordinary ShutdownCmd.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.closeDone()
	for {
		select {
		case cmd, ok := <-s.mailbox:
			if !ok {
				return
			}
			if s.handleCommand(ctx, cmd) {
				return
			}
		case in, ok := <-s.results:
			if !ok {
				return
			}
			s.feedAndPump(ctx, in)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) closeDone() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done reports when the task's main loop has exited.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) handleCommand(ctx context.Context, cmd Command) (stop bool) {
	switch c := cmd.(type) {
	case ProcessUserInputCmd:
		s.handleProcessUserInput(ctx, c)
	case EditMessageCmd:
		s.handleEditMessage(ctx, c)
	case HandleToolResponseCmd:
		s.handleToolResponse(ctx, c)
	case CancelProcessingCmd:
		s.handleCancel(ctx)
	case ExecuteBashCommandCmd:
		s.handleExecuteBash(ctx, c)
	case ExecuteCommandCmd:
		s.handleExecuteCommand(ctx, c)
	case GetCurrentConversationCmd:
		if c.Reply != nil {
			c.Reply <- s.snapshot()
		}
	case RequestWorkspaceFilesCmd:
		s.handleRequestWorkspaceFiles(ctx, c)
	case titleGeneratedCmd:
		s.handleTitleGenerated(ctx, c)
	case ShutdownCmd:
		logging.Logger.Info().Str("session", s.session.ID.String()).Msg("runtime: session task shutting down")
		if c.Done != nil {
			close(c.Done)
		}
		return true
	default:
		logging.Logger.Warn().Str("session", s.session.ID.String()).Msg("runtime: unrecognized command")
	}
	return false
}

func (s *Scheduler) idle() bool { return s.opCtx == nil }

func (s *Scheduler) startOperation() {
	ctx, cancel := context.WithCancel(context.Background())
	s.opCtx = ctx
	s.opCancel = cancel
}

func (s *Scheduler) endOperation() {
	if s.opCancel != nil {
		s.opCancel()
	}
	s.opCtx = nil
	s.opCancel = nil
	s.modelInFlight = false
	s.pendingCancelInfo = nil
}

func (s *Scheduler) lastMessageID() *ids.MessageID {
	if len(s.state.Messages) == 0 {
		return nil
	}
	id := s.state.Messages[len(s.state.Messages)-1].ID
	return &id
}

func (s *Scheduler) handleProcessUserInput(ctx context.Context, c ProcessUserInputCmd) {
	if !s.idle() {
		s.emitError("an operation is already in progress")
		return
	}
	parent := s.lastMessageID()
	msg := convo.NewUserMessage(s.clock.NewMessageID(), parent, s.clock.NowMillis(), userContentFromText(c.Text))
	if err := s.persistMessage(ctx, msg); err != nil {
		s.emitError(fmt.Sprintf("persist user message: %s", err))
		return
	}
	s.state.Messages = append(s.state.Messages, msg)
	s.publish(hub.Event{Kind: hub.KindMessageAdded, MessageAdded: &hub.MessageAddedData{Message: msg, Model: s.session.DefaultModel}})
	s.maybeGenerateTitle(c.Text)

	s.state.Phase = stepper.PhaseAwaitingModel
	s.startOperation()
	s.pump(ctx, []stepper.Output{stepper.CallModelOutput{Messages: s.state.Messages}})
}

// maybeGenerateTitle fires the session's title generator, if one is
// wired, the first time a user message lands: len(s.state.Messages)==1
// right after the append above means this is that first message, and
// the session has no title yet. The generator runs off-loop (it may
// make an LLM round trip) and reports back through the mailbox as
// titleGeneratedCmd, so the result is only ever applied on the
// scheduler's own goroutine.
func (s *Scheduler) maybeGenerateTitle(firstUserText string) {
	if s.titleGenerator == nil || len(s.state.Messages) != 1 {
		return
	}
	if _, ok := s.session.Config.Metadata["title"]; ok {
		return
	}
	gen := s.titleGenerator
	mailbox := s.mailbox
	sessionID := s.session.ID
	go func() {
		title, err := gen(context.Background(), firstUserText)
		if err != nil || title == "" {
			if err != nil {
				logging.Logger.Warn().Err(err).Str("session", sessionID.String()).Msg("runtime: title generation failed")
			}
			return
		}
		select {
		case mailbox <- titleGeneratedCmd{title: title}:
		case <-time.After(5 * time.Second):
		}
	}()
}

func (s *Scheduler) handleTitleGenerated(ctx context.Context, c titleGeneratedCmd) {
	if s.session.Config.Metadata == nil {
		s.session.Config.Metadata = map[string]string{}
	}
	s.session.Config.Metadata["title"] = c.title
	s.persistMetadata(ctx, map[string]string{"title": c.title})
	s.publish(hub.Event{Kind: hub.KindTitleGenerated, TitleGenerated: &hub.TitleGeneratedData{Title: c.title}})
}

// handleEditMessage rewrites a message on the active path: it truncates
// the path at the edited message's position and appends a fresh message
// in its place, rather than mutating the original (§3.2's "never
// mutates old messages"). Edits of a message outside the active path
// are not supported by this simplified branch model.
func (s *Scheduler) handleEditMessage(ctx context.Context, c EditMessageCmd) {
	if !s.idle() {
		s.emitError("an operation is already in progress")
		return
	}
	idx := -1
	for i, m := range s.state.Messages {
		if m.ID == c.MessageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.emitError("edited message not found on active path")
		return
	}
	var parent *ids.MessageID
	if idx > 0 {
		p := s.state.Messages[idx-1].ID
		parent = &p
	} else {
		parent = s.state.Messages[idx].Parent
	}
	msg := convo.NewUserMessage(s.clock.NewMessageID(), parent, s.clock.NowMillis(), userContentFromText(c.NewContent))
	if err := s.persistMessage(ctx, msg); err != nil {
		s.emitError(fmt.Sprintf("persist edited message: %s", err))
		return
	}
	s.persistActiveMessageChanged(ctx, msg.ID)

	truncated := make([]*convo.Message, idx, idx+1)
	copy(truncated, s.state.Messages[:idx])
	s.state.Messages = append(truncated, msg)

	s.publish(hub.Event{Kind: hub.KindMessageAdded, MessageAdded: &hub.MessageAddedData{Message: msg, Model: s.session.DefaultModel}})
	s.publish(hub.Event{Kind: hub.KindActiveMessageIDChanged, ActiveMessageChanged: &hub.ActiveMessageChangedData{MessageID: msg.ID}})

	s.state.Phase = stepper.PhaseAwaitingModel
	s.startOperation()
	s.pump(ctx, []stepper.Output{stepper.CallModelOutput{Messages: s.state.Messages}})
}

func (s *Scheduler) handleToolResponse(ctx context.Context, c HandleToolResponseCmd) {
	tc, ok := s.state.PendingApprovals[c.ToolCallID]
	if !ok {
		// Already resolved (or unknown): answering a stale approval
		// request is a no-op, per §4.4.
		return
	}
	switch c.Decision {
	case DecisionDeny:
		s.feedAndPump(ctx, stepper.ToolDeniedInput{ID: c.ToolCallID})
	case DecisionOnce:
		s.feedAndPump(ctx, stepper.ToolApprovedInput{ID: c.ToolCallID})
	case DecisionAlwaysTool:
		s.recordApproval(ctx, tc.Name, "")
		s.feedAndPump(ctx, stepper.ToolApprovedInput{ID: c.ToolCallID})
	case DecisionAlwaysBashPattern:
		s.recordApproval(ctx, "", c.BashPattern)
		s.feedAndPump(ctx, stepper.ToolApprovedInput{ID: c.ToolCallID})
	default:
		s.feedAndPump(ctx, stepper.ToolDeniedInput{ID: c.ToolCallID})
	}
}

func (s *Scheduler) recordApproval(ctx context.Context, toolName, bashPattern string) {
	err := s.appendEvent(ctx, eventstore.Event{
		Type:             eventstore.EventApprovalRecorded,
		ApprovalRecorded: &eventstore.ApprovalRecordedPayload{ToolName: toolName, BashPattern: bashPattern},
	})
	if err != nil {
		logging.Logger.Error().Err(err).Str("session", s.session.ID.String()).Msg("runtime: persist approval record")
		return
	}
	if toolName != "" {
		if s.policy.Preapproved.Tools == nil {
			s.policy.Preapproved.Tools = map[string]bool{}
		}
		s.policy.Preapproved.Tools[toolName] = true
	}
	if bashPattern != "" {
		if s.policy.Preapproved.PerTool == nil {
			s.policy.Preapproved.PerTool = map[string]approval.PerToolPolicy{}
		}
		pt := s.policy.Preapproved.PerTool["bash"]
		pt.Patterns = append(pt.Patterns, bashPattern)
		s.policy.Preapproved.PerTool["bash"] = pt
	}
}

func (s *Scheduler) handleCancel(ctx context.Context) {
	if s.idle() {
		return
	}
	s.pendingCancelInfo = s.cancelInfo()
	if s.opCancel != nil {
		s.opCancel()
	}
	s.feedAndPump(ctx, stepper.CancelInput{})
}

func (s *Scheduler) cancelInfo() *hub.OperationCancelledData {
	var active, pending []ids.ToolCallID
	for id := range s.state.PendingApprovals {
		pending = append(pending, id)
	}
	for id := range s.state.Approved {
		active = append(active, id)
	}
	for id := range s.state.PendingResults {
		active = append(active, id)
	}
	return &hub.OperationCancelledData{ActiveTools: active, PendingApprovals: pending, ModelCallInFlight: s.modelInFlight}
}

// handleExecuteBash runs a bash command directly, outside the stepper's
// model-driven loop: it still consults the static denylist (§4.4) but
// skips the approval-ask step entirely, since the caller issuing this
// command is the human operator, not the model.
func (s *Scheduler) handleExecuteBash(ctx context.Context, c ExecuteBashCommandCmd) {
	if denied, reason := approval.DenylistCheck(c.Command); denied {
		s.emitError(fmt.Sprintf("command denied: %s", reason))
		return
	}
	params, err := json.Marshal(map[string]string{"command": c.Command})
	if err != nil {
		s.emitError(fmt.Sprintf("encode bash parameters: %s", err))
		return
	}
	call := convo.ToolCall{ID: ids.NewSyntheticToolCallID(), Name: "bash", Parameters: params}
	result, err := s.orch.Execute(ctx, call)

	var content convo.UserContent
	switch {
	case err != nil:
		content = convo.UserContent{CommandExecution: &convo.CommandExecutionContent{Command: c.Command, Stderr: err.Error(), ExitCode: -1}}
	case result.Bash != nil:
		b := result.Bash
		content = convo.UserContent{CommandExecution: &convo.CommandExecutionContent{Command: b.Command, Stdout: b.Stdout, Stderr: b.Stderr, ExitCode: b.ExitCode}}
	default:
		content = convo.UserContent{CommandExecution: &convo.CommandExecutionContent{Command: c.Command}}
	}

	parent := s.lastMessageID()
	msg := convo.NewUserMessage(s.clock.NewMessageID(), parent, s.clock.NowMillis(), content)
	if err := s.persistMessage(ctx, msg); err != nil {
		s.emitError(fmt.Sprintf("persist command execution: %s", err))
		return
	}
	s.state.Messages = append(s.state.Messages, msg)
	s.publish(hub.Event{Kind: hub.KindMessageAdded, MessageAdded: &hub.MessageAddedData{Message: msg, Model: s.session.DefaultModel}})
}

func (s *Scheduler) handleExecuteCommand(ctx context.Context, c ExecuteCommandCmd) {
	switch c.Command.Kind {
	case AppCommandModel:
		s.session.DefaultModel = c.Command.ModelID
		s.persistMetadata(ctx, map[string]string{"default_model": c.Command.ModelID})
		s.publish(hub.Event{Kind: hub.KindModelChanged, ModelChanged: &hub.ModelChangedData{Model: c.Command.ModelID}})
	case AppCommandClear:
		if !s.idle() {
			s.emitError("cannot clear while an operation is in progress")
			return
		}
		s.state = stepper.NewInitialState(nil)
		s.publish(hub.Event{Kind: hub.KindWorkspaceChanged})
	case AppCommandCompact:
		s.maybeCompact(ctx, true)
	default:
		s.emitError(fmt.Sprintf("unknown session command: %s", c.Command.Kind))
	}
}

func (s *Scheduler) handleRequestWorkspaceFiles(ctx context.Context, c RequestWorkspaceFilesCmd) {
	files, err := s.session.Config.Workspace.ListFiles(ctx, c.Query, c.Max)
	if err != nil {
		s.emitError(fmt.Sprintf("list workspace files: %s", err))
		if c.Reply != nil {
			close(c.Reply)
		}
		return
	}
	s.publish(hub.Event{Kind: hub.KindWorkspaceFiles, WorkspaceFiles: &hub.WorkspaceFilesData{Files: files}})
	if c.Reply != nil {
		c.Reply <- files
	}
}

// feedAndPump applies one stepper.Input and carries out the resulting
// effects. Called both from Run's results branch (async tool/model
// outcomes) and synchronously from command handlers whose decision (an
// approval Allow/Deny, a cancellation) requires no further I/O of its
// own.
func (s *Scheduler) feedAndPump(ctx context.Context, in stepper.Input) {
	switch in.(type) {
	case stepper.ModelResponseInput, stepper.ModelErrorInput:
		s.modelInFlight = false
	}
	newState, outputs := stepper.Step(s.state, in, s.clock)
	s.state = newState
	s.pump(ctx, outputs)
}

func (s *Scheduler) pump(ctx context.Context, outputs []stepper.Output) {
	for _, out := range outputs {
		switch o := out.(type) {
		case stepper.EmitMessageOutput:
			s.persistAndPublishMessage(ctx, o.Message)
		case stepper.CallModelOutput:
			s.dispatchCallModel(ctx)
		case stepper.RequestApprovalOutput:
			s.dispatchApproval(ctx, o)
		case stepper.ExecuteToolOutput:
			s.dispatchExecuteTool(ctx, o)
		case stepper.DoneOutput:
			s.publish(hub.Event{Kind: hub.KindProcessingCompleted})
			s.endOperation()
		case stepper.ErrorOutput:
			s.publish(hub.Event{Kind: hub.KindError, Error: &hub.ErrorData{Message: o.Error}})
			s.endOperation()
		case stepper.CancelledOutput:
			info := s.pendingCancelInfo
			if info == nil {
				info = &hub.OperationCancelledData{}
			}
			s.publish(hub.Event{Kind: hub.KindOperationCancelled, OperationCancelled: info})
			s.endOperation()
		}
	}
}

// persistAndPublishMessage appends a message the stepper already folded
// into its own State.Messages (a denial, a cancellation record, or a
// completed tool result) to the durable log, then broadcasts it.
// EmitMessageOutput's message is not re-appended to s.state.Messages
// here: the stepper already did that as part of producing this output.
func (s *Scheduler) persistAndPublishMessage(ctx context.Context, m *convo.Message) {
	if err := s.persistMessage(ctx, m); err != nil {
		logging.Logger.Error().Err(err).Str("session", s.session.ID.String()).Msg("runtime: persist message")
	}
	s.publish(hub.Event{Kind: hub.KindMessageAdded, MessageAdded: &hub.MessageAddedData{Message: m, Model: s.session.DefaultModel}})
}

func (s *Scheduler) dispatchCallModel(ctx context.Context) {
	s.maybeCompact(ctx, false)

	s.modelInFlight = true
	s.publish(hub.Event{Kind: hub.KindProcessingStarted})

	opCtx := s.opCtx
	if opCtx == nil {
		opCtx = ctx
	}
	tools, err := s.session.Config.Workspace.AvailableTools(opCtx)
	if err != nil {
		logging.Logger.Warn().Err(err).Str("session", s.session.ID.String()).Msg("runtime: list available tools")
	}
	req := llmport.Request{ModelID: s.session.DefaultModel, Messages: s.state.Messages, Tools: tools}
	clock := s.clock
	llm := s.llm
	resultsCh := s.results
	metrics := s.metrics
	hubHandle := s.hub
	session := s.session.ID
	tracer := s.tracer

	// pendingID is minted upfront so every message_part envelope streamed
	// for this turn carries the same MessageID as the assistant message
	// the stepper eventually builds from ModelResponseInput — a
	// subscriber can start rendering before the turn completes and the
	// ids still line up.
	pendingID := clock.NewMessageID()

	go func() {
		spanCtx, span := tracer.Start(opCtx, "runtime.call_model", trace.WithAttributes(
			attribute.String("model", req.ModelID),
		))
		defer span.End()

		stream, err := llm.Stream(spanCtx, req)
		if err != nil {
			span.RecordError(err)
			if metrics != nil {
				metrics.ModelCalls.WithLabelValues("error").Inc()
			}
			resultsCh <- stepper.ModelErrorInput{Error: err.Error()}
			return
		}
		for delta := range stream.Deltas() {
			if delta.TextDelta == "" {
				continue
			}
			// message_part is ephemeral: not persisted, only
			// live-broadcast. Publishing straight from this goroutine is
			// safe since hub.Publish is concurrency-safe on its own and
			// the scheduler's mutable state is untouched here.
			hubHandle.Publish(session, hub.Envelope{
				SessionID: session,
				Timestamp: clock.NowMillis(),
				Event: hub.Event{
					Kind:        hub.KindMessagePart,
					MessagePart: &hub.MessagePartData{MessageID: pendingID, Delta: delta.TextDelta},
				},
			})
		}
		resp, err := stream.Response()
		if err != nil {
			span.RecordError(err)
			if metrics != nil {
				metrics.ModelCalls.WithLabelValues("error").Inc()
			}
			resultsCh <- stepper.ModelErrorInput{Error: err.Error()}
			return
		}
		if metrics != nil {
			metrics.ModelCalls.WithLabelValues("ok").Inc()
		}
		resultsCh <- stepper.ModelResponseInput{Content: resp.Content, MessageID: pendingID, Timestamp: clock.NowMillis()}
	}()
}

func (s *Scheduler) dispatchApproval(ctx context.Context, o stepper.RequestApprovalOutput) {
	decision, reason, err := s.approval.Evaluate(s.session.ID, s.policy, o.ToolCall)
	if err != nil {
		logging.Logger.Warn().Err(err).Str("session", s.session.ID.String()).Msg("runtime: approval evaluation failed, denying")
		s.feedAndPump(ctx, stepper.ToolDeniedInput{ID: o.ToolCall.ID})
		return
	}
	switch decision {
	case approval.Allow:
		s.feedAndPump(ctx, stepper.ToolApprovedInput{ID: o.ToolCall.ID})
	case approval.Deny:
		s.feedAndPump(ctx, stepper.ToolDeniedInput{ID: o.ToolCall.ID})
	default: // Ask
		if reason != "" {
			logging.Logger.Info().Str("session", s.session.ID.String()).Str("tool", o.ToolCall.Name).Str("reason", reason).Msg("runtime: approval ask")
		}
		s.publish(hub.Event{Kind: hub.KindRequestToolApproval, RequestToolApproval: &hub.RequestToolApprovalData{
			Name: o.ToolCall.Name, ID: o.ToolCall.ID, Parameters: o.ToolCall.Parameters,
		}})
	}
}

func (s *Scheduler) dispatchExecuteTool(ctx context.Context, o stepper.ExecuteToolOutput) {
	s.persistToolCallStatus(ctx, o.ToolCall.ID, eventstore.ToolCallExecuting)
	s.publish(hub.Event{Kind: hub.KindToolCallStarted, ToolCallStarted: &hub.ToolCallStartedData{
		Name: o.ToolCall.Name, ID: o.ToolCall.ID, Parameters: o.ToolCall.Parameters, Model: s.session.DefaultModel,
	}})

	call := o.ToolCall
	opCtx := s.opCtx
	if opCtx == nil {
		opCtx = ctx
	}
	orch := s.orch
	resultsCh := s.results
	hubHandle := s.hub
	session := s.session.ID
	metrics := s.metrics

	go func() {
		result, err := orch.Execute(opCtx, call)
		if err != nil {
			kind := classifyToolError(err)
			if metrics != nil {
				metrics.ToolExecutions.WithLabelValues(call.Name, "error").Inc()
			}
			hubHandle.Publish(session, hub.Envelope{SessionID: session, Event: hub.Event{
				Kind:            hub.KindToolCallFailed,
				ToolCallFailed:  &hub.ToolCallFailedData{ID: call.ID, Error: err.Error()},
			}})
			resultsCh <- stepper.ToolFailedInput{ID: call.ID, Error: err.Error(), Kind: kind}
			return
		}
		if metrics != nil {
			metrics.ToolExecutions.WithLabelValues(call.Name, "ok").Inc()
		}
		hubHandle.Publish(session, hub.Envelope{SessionID: session, Event: hub.Event{
			Kind:              hub.KindToolCallCompleted,
			ToolCallCompleted: &hub.ToolCallCompletedData{ID: call.ID, Result: result},
		}})
		resultsCh <- stepper.ToolCompletedInput{ID: call.ID, Result: result}
	}()
}

func (s *Scheduler) emitError(msg string) {
	s.publish(hub.Event{Kind: hub.KindError, Error: &hub.ErrorData{Message: msg}})
}

// publish stamps an envelope with the session's current event-store tip
// seq and fans it out. Persisted-backed kinds (MessageAdded,
// ActiveMessageIDChanged, ...) are published immediately after their
// backing event was appended, so Seq is exactly that event's seq.
// Ephemeral kinds share the same floor value; subscribers distinguish
// them by Kind, not by Seq uniqueness — only persisted kinds are ever
// replayed via since_seq (see replay.go).
func (s *Scheduler) publish(ev hub.Event) {
	s.hub.Publish(s.session.ID, hub.Envelope{
		SessionID: s.session.ID,
		Seq:       s.seq,
		Timestamp: s.clock.NowMillis(),
		Event:     ev,
	})
}

func (s *Scheduler) appendEvent(ctx context.Context, ev eventstore.Event) error {
	nextSeq := s.seq + 1
	ev.SessionID = s.session.ID
	ev.Seq = nextSeq
	ev.Timestamp = s.clock.NowMillis()
	if err := s.store.Append(ctx, s.session.ID, s.seq, ev); err != nil {
		return err
	}
	s.seq = nextSeq
	if s.metrics != nil {
		s.metrics.EventAppends.Inc()
	}
	return nil
}

func (s *Scheduler) persistMessage(ctx context.Context, m *convo.Message) error {
	payload, err := eventstore.NewMessageAppended(m)
	if err != nil {
		return err
	}
	return s.appendEvent(ctx, eventstore.Event{Type: eventstore.EventMessageAppended, MessageAppended: payload})
}

func (s *Scheduler) persistToolCallStatus(ctx context.Context, id ids.ToolCallID, status eventstore.ToolCallStatus) {
	err := s.appendEvent(ctx, eventstore.Event{
		Type:                  eventstore.EventToolCallStatusChanged,
		ToolCallStatusChanged: &eventstore.ToolCallStatusChangedPayload{ID: id, Status: status},
	})
	if err != nil {
		logging.Logger.Error().Err(err).Str("session", s.session.ID.String()).Msg("runtime: persist tool call status")
	}
}

func (s *Scheduler) persistActiveMessageChanged(ctx context.Context, id ids.MessageID) {
	err := s.appendEvent(ctx, eventstore.Event{
		Type:                 eventstore.EventActiveMessageChanged,
		ActiveMessageChanged: &eventstore.ActiveMessageChangedPayload{MessageID: id},
	})
	if err != nil {
		logging.Logger.Error().Err(err).Str("session", s.session.ID.String()).Msg("runtime: persist active message changed")
	}
}

func (s *Scheduler) persistMetadata(ctx context.Context, md map[string]string) {
	err := s.appendEvent(ctx, eventstore.Event{
		Type:                   eventstore.EventSessionMetadataUpdated,
		SessionMetadataUpdated: &eventstore.SessionMetadataUpdatedPayload{Metadata: md},
	})
	if err != nil {
		logging.Logger.Error().Err(err).Str("session", s.session.ID.String()).Msg("runtime: persist session metadata")
	}
}

func (s *Scheduler) snapshot() ConversationSnapshot {
	var active ids.MessageID
	if len(s.state.Messages) > 0 {
		active = s.state.Messages[len(s.state.Messages)-1].ID
	}
	msgs := make([]*convo.Message, len(s.state.Messages))
	copy(msgs, s.state.Messages)
	return ConversationSnapshot{SessionID: s.session.ID, ActiveMessageID: active, Messages: msgs, DefaultModel: s.session.DefaultModel}
}
