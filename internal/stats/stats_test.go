package stats

import (
	"expvar"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientStats(t *testing.T) {
	cs := NewClientStats()
	assert.NotNil(t, cs.vars, "expected vars to be initialized")
	assert.NotNil(t, cs.updateChan, "expected updateChan to be initialized")

	for _, name := range []string{
		MessagesSent, MessagesReceived, Connects, Disconnects, SnapshotFetches, SendErrors,
	} {
		assert.NotNil(t, cs.vars.Get(name), "expected metric %s to be registered", name)
	}
	assert.NotNil(t, cs.vars.Get("Uptime"), "expected Uptime to be registered")

	cs.Run()
	defer cs.Stop()

	cs.Incr(MessagesSent)
	cs.Incr(MessagesSent)
	cs.Decr(MessagesSent)

	assert.Eventually(t, func() bool {
		return cs.vars.Get(MessagesSent).(*expvar.Int).Value() == 1
	}, 2*time.Second, 10*time.Millisecond, "expected the counter to settle at 1")
}

func TestMockStatsProvider(t *testing.T) {
	m := NewMockStatsProvider()

	m.Incr(Connects)
	m.Incr(Connects)
	m.Decr(Connects)

	assert.Equal(t, 1, m.Count(Connects), "expected count to reflect updates")
	assert.Equal(t, 0, m.Count(Disconnects), "expected untouched counters to be zero")
}
