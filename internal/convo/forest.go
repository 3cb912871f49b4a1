package convo

import "github.com/agentrt/runtime/internal/ids"

// Forest holds every message a session has ever produced, indexed for
// parent/child traversal. Messages are never removed; compaction and
// branching both add new messages rather than mutating old ones.
type Forest struct {
	byID     map[ids.MessageID]*Message
	children map[ids.MessageID][]ids.MessageID
	roots    []ids.MessageID
	leaf     ids.MessageID // tip of the currently active path
}

// NewForest returns an empty message forest.
func NewForest() *Forest {
	return &Forest{
		byID:     make(map[ids.MessageID]*Message),
		children: make(map[ids.MessageID][]ids.MessageID),
	}
}

// Add inserts a message and, if it is a root (no parent), is the first
// message, or is a child of the current leaf, advances the active path to
// it.
func (f *Forest) Add(m *Message) {
	f.byID[m.ID] = m
	if m.Parent == nil {
		f.roots = append(f.roots, m.ID)
	} else {
		f.children[*m.Parent] = append(f.children[*m.Parent], m.ID)
	}
	if m.Parent == nil || *m.Parent == f.leaf || f.leaf.IsZero() {
		f.leaf = m.ID
	}
}

// Get returns a message by id.
func (f *Forest) Get(id ids.MessageID) (*Message, bool) {
	m, ok := f.byID[id]
	return m, ok
}

// SetActiveLeaf rewinds or fast-forwards the active path tip explicitly,
// used when a session is resumed from a past branch point.
func (f *Forest) SetActiveLeaf(id ids.MessageID) {
	f.leaf = id
}

// ActivePath returns every message from the earliest root to the current
// leaf, in chronological order. This is the view the stepper operates on.
func (f *Forest) ActivePath() []*Message {
	if f.leaf.IsZero() {
		return nil
	}
	var chain []*Message
	cur, ok := f.byID[f.leaf]
	for ok {
		chain = append(chain, cur)
		if cur.Parent == nil {
			break
		}
		cur, ok = f.byID[*cur.Parent]
	}
	// reverse into chronological order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// PendingToolCalls returns tool calls on the active path's final assistant
// message that have no matching Tool message descendant yet — the set the
// stepper is currently waiting on (§3.3: "complete on the active path when
// it has a matching Tool message descendant").
func (f *Forest) PendingToolCalls() []ToolCall {
	path := f.ActivePath()
	if len(path) == 0 {
		return nil
	}
	resolved := make(map[ids.ToolCallID]bool)
	for _, m := range path {
		if m.Role == RoleTool && m.Tool != nil {
			resolved[m.Tool.ToolUseID] = true
		}
	}
	var last *Message
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Role == RoleAssistant {
			last = path[i]
			break
		}
	}
	if last == nil {
		return nil
	}
	var pending []ToolCall
	for _, tc := range last.ToolCalls() {
		if !resolved[tc.ID] {
			pending = append(pending, tc)
		}
	}
	return pending
}

// HasToolCall reports whether any Assistant message on the current active
// path issued the given tool call id. Used to enforce
// the §3.2 Tool-message invariant.
func (f *Forest) HasToolCall(id ids.ToolCallID) bool {
	for _, m := range f.ActivePath() {
		for _, tc := range m.ToolCalls() {
			if tc.ID == id {
				return true
			}
		}
	}
	return false
}
