package sse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	a := hub.Register("a")
	b := hub.Register("b")
	defer hub.Unregister("a")
	defer hub.Unregister("b")

	hub.Broadcast(&RunEvent{Event: EventRunStarted, RunID: "r1", ProviderID: 7, Timestamp: time.Now()})

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.Events:
			var ev RunEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			assert.Equal(t, EventRunStarted, ev.Event)
			assert.Equal(t, 7, ev.ProviderID)
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}
}

func TestHubDropsWhenClientBufferFull(t *testing.T) {
	hub := NewHub()
	c := hub.Register("slow")
	defer hub.Unregister("slow")

	for i := 0; i < cap(c.Events)+10; i++ {
		hub.Broadcast(&RunEvent{Event: EventFileDone, RunID: "r1"})
	}
	// the hub never blocks; the channel simply stays at capacity
	assert.Equal(t, cap(c.Events), len(c.Events))
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	c := hub.Register("x")
	hub.Unregister("x")

	_, open := <-c.Events
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount())
}
