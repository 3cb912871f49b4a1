// Package runtime implements the Runtime Scheduler (§4.4): the
// per-session task that owns a stepper, drives it with commands from
// the RPC layer, carries out its effects (model calls, tool execution,
// approval consultation), persists every state-changing step through
// the event store, and fans out events through the subscription hub.
//
// Grounded on internal/session/processor.go and internal/session/loop.go's
// control flow (load session -> run agentic loop -> append messages ->
// call provider -> execute tools -> repeat), generalized so the control
// flow is expressed as stepper.Output values rather than direct calls,
// and so state survives a process restart via internal/eventstore.
package runtime
