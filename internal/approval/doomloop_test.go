package approval

import (
	"testing"

	"github.com/agentrt/runtime/internal/ids"
	"github.com/stretchr/testify/assert"
)

func sessionForTest() ids.SessionID { return ids.NewSessionID() }

func TestDoomLoopDetectorFlagsThirdRepeat(t *testing.T) {
	det := NewDoomLoopDetector()
	session := sessionForTest()

	assert.False(t, det.Observe(session, "bash", []byte(`{"command":"ls"}`)))
	assert.False(t, det.Observe(session, "bash", []byte(`{"command":"ls"}`)))
	assert.True(t, det.Observe(session, "bash", []byte(`{"command":"ls"}`)))
}

func TestDoomLoopDetectorIgnoresDifferentCalls(t *testing.T) {
	det := NewDoomLoopDetector()
	session := sessionForTest()

	assert.False(t, det.Observe(session, "bash", []byte(`{"command":"ls"}`)))
	assert.False(t, det.Observe(session, "bash", []byte(`{"command":"pwd"}`)))
	assert.False(t, det.Observe(session, "bash", []byte(`{"command":"ls"}`)))
}

func TestClearResetsHistory(t *testing.T) {
	det := NewDoomLoopDetector()
	session := sessionForTest()
	det.Observe(session, "bash", []byte(`{"command":"ls"}`))
	det.Observe(session, "bash", []byte(`{"command":"ls"}`))
	det.Clear(session)
	assert.False(t, det.Observe(session, "bash", []byte(`{"command":"ls"}`)))
}
