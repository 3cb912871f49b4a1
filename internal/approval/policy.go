// Package approval implements the Approval Policy Engine: a pure decision
// function that maps a tool call against a session's policy to Allow, Ask,
// or Deny, plus the static bash security denylist that no policy can
// override.
package approval

import (
	"encoding/json"
	"fmt"

	"github.com/agentrt/runtime/internal/convo"
)

// Decision is the outcome of evaluating a tool call against a policy.
type Decision string

const (
	Allow Decision = "allow"
	Ask   Decision = "ask"
	Deny  Decision = "deny"
)

// DefaultBehavior is the fallback decision for a tool not otherwise named
// by a policy.
type DefaultBehavior string

const (
	BehaviorPrompt DefaultBehavior = "prompt"
	BehaviorDeny   DefaultBehavior = "deny"
	BehaviorAllow  DefaultBehavior = "allow"
)

// Policy is a session's approval configuration (§3.5).
type Policy struct {
	DefaultBehavior DefaultBehavior
	Preapproved     Preapproved
}

// Preapproved holds what's been pre-cleared without a runtime prompt.
type Preapproved struct {
	Tools   map[string]bool   // tool name -> always allowed
	PerTool map[string]PerToolPolicy
}

// PerToolPolicy holds tool-specific preapproval data. Only "bash" uses
// Patterns today; the shape is kept generic for future tools.
type PerToolPolicy struct {
	Patterns []string
}

// DefaultPolicy returns the safest policy: ask about everything.
func DefaultPolicy() Policy {
	return Policy{
		DefaultBehavior: BehaviorPrompt,
		Preapproved: Preapproved{
			Tools:   map[string]bool{},
			PerTool: map[string]PerToolPolicy{},
		},
	}
}

// Decide implements §4.2's decision table. It never consults any mutable
// per-session state itself — callers fold in the denylist (DenylistCheck)
// and any doom-loop escalation (doomloop.go) around this pure core.
func Decide(policy Policy, call convo.ToolCall) (Decision, error) {
	if call.Name == "bash" {
		if bp, ok := policy.Preapproved.PerTool["bash"]; ok && len(bp.Patterns) > 0 {
			cmd, err := bashCommandFromParameters(call.Parameters)
			if err != nil {
				return "", err
			}
			for _, pattern := range bp.Patterns {
				if matchBashPattern(pattern, cmd) {
					return Allow, nil
				}
			}
		}
	} else if policy.Preapproved.Tools[call.Name] {
		return Allow, nil
	}

	switch policy.DefaultBehavior {
	case BehaviorPrompt:
		return Ask, nil
	case BehaviorDeny:
		return Deny, nil
	case BehaviorAllow:
		return Allow, nil
	default:
		return Ask, nil
	}
}

func bashCommandFromParameters(raw json.RawMessage) (BashCommand, error) {
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return BashCommand{}, fmt.Errorf("bash tool call parameters: %w", err)
	}
	commands, err := ParseBashCommand(params.Command)
	if err != nil {
		return BashCommand{}, err
	}
	if len(commands) == 0 {
		return BashCommand{}, fmt.Errorf("bash tool call parsed to no commands")
	}
	return commands[0], nil
}
