package stepper

import "github.com/agentrt/runtime/internal/ids"

// fakeClock hands out predictable, strictly increasing timestamps and
// fresh message ids, so tests can assert on exact output shapes.
type fakeClock struct {
	now int64
}

func (c *fakeClock) NowMillis() int64 {
	c.now++
	return c.now
}

func (c *fakeClock) NewMessageID() ids.MessageID {
	return ids.NewMessageID()
}
