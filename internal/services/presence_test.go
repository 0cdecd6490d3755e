package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker() (*PresenceTracker, *time.Time) {
	tracker := NewPresenceTracker(45*time.Second, 4*time.Second)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time { return now })
	return tracker, &now
}

func TestHeartbeatAndListOnline(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)
	tracker.Heartbeat(2, "watt", "⚡", "/forums/charging", PresenceAway)

	online := tracker.ListOnline("")
	require.Len(t, online, 2)
	assert.Equal(t, PresenceOnline, online[0].Status)
	assert.Equal(t, PresenceAway, online[1].Status)

	tesla := tracker.ListOnline("/forums/tesla")
	require.Len(t, tesla, 1)
	assert.Equal(t, uint(1), tesla[0].UserID)
}

func TestHeartbeatIsIdempotentUpsert(t *testing.T) {
	tracker, now := newTestTracker()

	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)
	first := tracker.ListOnline("")[0].LastSeen

	// A duplicate delivered late must not move last_seen backwards.
	*now = now.Add(10 * time.Second)
	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)
	*now = now.Add(-5 * time.Second)
	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)

	records := tracker.ListOnline("")
	require.Len(t, records, 1)
	assert.True(t, records[0].LastSeen.After(first))
}

func TestStaleHeartbeatKeepsCurrentPageAndStatus(t *testing.T) {
	tracker, now := newTestTracker()

	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)
	*now = now.Add(10 * time.Second)
	tracker.Heartbeat(1, "ampere", "🚗", "/forums/charging", PresenceAway)

	// A late duplicate from the old page must not win over newer state.
	*now = now.Add(-5 * time.Second)
	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)

	records := tracker.ListOnline("")
	require.Len(t, records, 1)
	assert.Equal(t, "/forums/charging", records[0].CurrentPage)
	assert.Equal(t, PresenceAway, records[0].Status)
}

func TestExpiryIsAppliedAtReadTime(t *testing.T) {
	tracker, now := newTestTracker()

	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)

	*now = now.Add(44 * time.Second)
	assert.Len(t, tracker.ListOnline(""), 1)

	// TTL elapses; no sweep has run, the read alone must hide the record.
	*now = now.Add(2 * time.Second)
	assert.Empty(t, tracker.ListOnline(""))
}

func TestSweepEvictsExpiredRecords(t *testing.T) {
	tracker, now := newTestTracker()

	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)
	tracker.Heartbeat(2, "watt", "⚡", "/forums/tesla", PresenceOnline)

	*now = now.Add(50 * time.Second)
	tracker.Heartbeat(2, "watt", "⚡", "/forums/tesla", PresenceOnline)
	tracker.Sweep()

	tracker.mu.RLock()
	remaining := len(tracker.entries)
	tracker.mu.RUnlock()
	assert.Equal(t, 1, remaining)
}

func TestTypingAutoClears(t *testing.T) {
	tracker, now := newTestTracker()

	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)
	tracker.SetTyping(1, "thread:42", true)

	records := tracker.ListOnline("thread:42")
	require.Len(t, records, 1)
	assert.True(t, records[0].IsTyping)

	// Past the debounce window the flag reads false without a stop signal.
	*now = now.Add(5 * time.Second)
	records = tracker.ListOnline("thread:42")
	require.Len(t, records, 1)
	assert.False(t, records[0].IsTyping)
}

func TestTypingForUnknownUserIsIgnored(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.SetTyping(99, "thread:42", true)
	assert.Empty(t, tracker.ListOnline(""))
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	tracker, _ := newTestTracker()

	id, updates := tracker.Subscribe("/forums/tesla")
	defer tracker.Unsubscribe(id)

	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)

	select {
	case snapshot := <-updates:
		require.Len(t, snapshot, 1)
		assert.Equal(t, "ampere", snapshot[0].Username)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	// Activity on another page does not concern this subscriber... but a
	// context-less subscriber sees everything.
	allID, all := tracker.Subscribe("")
	defer tracker.Unsubscribe(allID)
	tracker.Heartbeat(2, "watt", "⚡", "/forums/charging", PresenceOnline)

	select {
	case snapshot := <-all:
		assert.Len(t, snapshot, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered to the wildcard subscriber")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	tracker, _ := newTestTracker()

	id, updates := tracker.Subscribe("")
	tracker.Unsubscribe(id)

	tracker.Heartbeat(1, "ampere", "🚗", "/forums/tesla", PresenceOnline)

	select {
	case snapshot, ok := <-updates:
		if ok {
			t.Fatalf("received snapshot after unsubscribe: %v", snapshot)
		}
	default:
	}
}

// Heartbeats racing subscriber churn must never panic: a publish may hold a
// channel that its subscriber abandons mid-send.
func TestPublishSurvivesConcurrentUnsubscribe(t *testing.T) {
	tracker, _ := newTestTracker()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(userID uint) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tracker.Heartbeat(userID, "ampere", "🚗", "/forums/tesla", PresenceOnline)
			}
		}(uint(w + 1))
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id, _ := tracker.Subscribe("/forums/tesla")
				tracker.Unsubscribe(id)
			}
		}()
	}
	wg.Wait()

	tracker.mu.RLock()
	remaining := len(tracker.subscribers)
	tracker.mu.RUnlock()
	assert.Zero(t, remaining)
}
