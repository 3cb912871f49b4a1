package approval

import (
	"encoding/json"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
)

// Engine is the approval policy engine instance a session's runtime task
// owns: the pure decision table plus the two pieces of mutable state the
// expanded spec layers around it (doom-loop history and, by the caller,
// recorded "always" approvals folded back into Policy.Preapproved).
type Engine struct {
	doomLoop *DoomLoopDetector
}

// NewEngine returns an Engine with its own doom-loop detector.
func NewEngine() *Engine {
	return &Engine{doomLoop: NewDoomLoopDetector()}
}

// Evaluate runs the full §4.2 decision: static denylist first, then the
// policy table, then the optional doom-loop escalation.
func (e *Engine) Evaluate(session ids.SessionID, policy Policy, call convo.ToolCall) (Decision, string, error) {
	if call.Name == "bash" {
		var params struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal(call.Parameters, &params); err == nil {
			if denied, reason := DenylistCheck(params.Command); denied {
				return Deny, reason, nil
			}
		}
	}

	decision, err := Decide(policy, call)
	if err != nil {
		return "", "", err
	}

	isLoop := e.doomLoop.Observe(session, call.Name, call.Parameters)
	decision = ApplyDoomLoop(decision, isLoop)
	reason := ""
	if isLoop && decision == Ask {
		reason = "repeated identical call detected, asking for confirmation"
	}
	return decision, reason, nil
}

// ClearSession drops the doom-loop history kept for a session.
func (e *Engine) ClearSession(session ids.SessionID) {
	e.doomLoop.Clear(session)
}
