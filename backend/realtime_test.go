package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextReconnectWaitDoublesOnFastFailures(t *testing.T) {
	wait := initialReconnectWait

	wait = nextReconnectWait(wait, 100*time.Millisecond)
	assert.Equal(t, 2*time.Second, wait)

	wait = nextReconnectWait(wait, 100*time.Millisecond)
	assert.Equal(t, 4*time.Second, wait)
}

func TestNextReconnectWaitCapped(t *testing.T) {
	wait := initialReconnectWait
	for i := 0; i < 20; i++ {
		wait = nextReconnectWait(wait, 100*time.Millisecond)
	}

	assert.Equal(t, maxReconnectWait, wait)
}

func TestNextReconnectWaitResetsAfterStableConnection(t *testing.T) {
	// Drive the backoff to the cap, then simulate a connection that
	// stayed up past a heartbeat before dropping.
	wait := maxReconnectWait

	wait = nextReconnectWait(wait, heartbeatInterval+time.Second)

	assert.Equal(t, initialReconnectWait, wait)

	// The next quick failure doubles from the start again, not from the
	// cap.
	assert.Equal(t, 2*initialReconnectWait, nextReconnectWait(wait, time.Millisecond))
}

func TestNextReconnectWaitShortUptimeKeepsBackoff(t *testing.T) {
	wait := 8 * time.Second

	// An uptime below a heartbeat does not count as established.
	assert.Equal(t, 16*time.Second, nextReconnectWait(wait, heartbeatInterval-time.Second))
}

func TestSocketURL(t *testing.T) {
	f := testClient().NewChangeFeed("emails")

	assert.Equal(t,
		"wss://project.example.co/realtime/v1/websocket?apikey=anon-key&vsn=1.0.0",
		f.socketURL())
}
