package approval

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/agentrt/runtime/internal/ids"
)

// DoomLoopThreshold is how many identical consecutive tool calls escalate
// a decision to Ask, even if the policy would otherwise Allow.
const DoomLoopThreshold = 3

// DoomLoopDetector tracks recent call hashes per session to catch a model
// stuck retrying the same tool call. This is additive: per §4 of the
// expanded spec, it can only turn an Allow into an Ask, never a Deny into
// an Allow or vice versa.
type DoomLoopDetector struct {
	mu      sync.Mutex
	history map[ids.SessionID][]string
}

// NewDoomLoopDetector returns an empty detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{history: make(map[ids.SessionID][]string)}
}

// Observe records a tool call and reports whether it completes a doom
// loop (the same call repeated DoomLoopThreshold times in a row).
func (d *DoomLoopDetector) Observe(session ids.SessionID, name string, parameters json.RawMessage) bool {
	hash := hashCall(name, parameters)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := d.history[session]
	isLoop := false
	if len(history) >= DoomLoopThreshold-1 {
		allSame := true
		start := len(history) - (DoomLoopThreshold - 1)
		for i := start; i < len(history); i++ {
			if history[i] != hash {
				allSame = false
				break
			}
		}
		isLoop = allSame
	}

	history = append(history, hash)
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	d.history[session] = history
	return isLoop
}

// Clear drops all history for a session, e.g. on cancellation or
// completion.
func (d *DoomLoopDetector) Clear(session ids.SessionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, session)
}

func hashCall(name string, parameters json.RawMessage) string {
	data, _ := json.Marshal(struct {
		Tool   string          `json:"tool"`
		Params json.RawMessage `json:"params"`
	}{Tool: name, Params: parameters})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ApplyDoomLoop escalates an Allow decision to Ask if the detector judges
// the call to be a repeat beyond the threshold. Ask and Deny decisions
// pass through unchanged.
func ApplyDoomLoop(decision Decision, isLoop bool) Decision {
	if decision == Allow && isLoop {
		return Ask
	}
	return decision
}
