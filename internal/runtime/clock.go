package runtime

import (
	"time"

	"github.com/agentrt/runtime/internal/ids"
)

// systemClock is the production stepper.Clock: wall-clock timestamps and
// freshly minted UUIDv7 message ids.
type systemClock struct{}

func (systemClock) NowMillis() int64          { return time.Now().UnixMilli() }
func (systemClock) NewMessageID() ids.MessageID { return ids.NewMessageID() }

// SystemClock is the default Clock every production Scheduler uses.
// Exported so tests composing a Scheduler outside this package (e.g. an
// integration test driving the real event store) can reuse it without
// reimplementing wall-clock behavior.
var SystemClock systemClock
