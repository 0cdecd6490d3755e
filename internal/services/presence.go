package services

import (
	"sort"
	"sync"
	"time"

	"evforum/internal/metrics"

	"github.com/google/uuid"
)

// Presence statuses.
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceOffline = "offline"
)

// Presence timing defaults. Heartbeat interval on the client should stay
// under half the TTL.
const (
	DefaultPresenceTTL   = 45 * time.Second
	DefaultTypingWindow  = 4 * time.Second
	presenceSweepPeriod  = 15 * time.Second
	subscriberBufferSize = 8
)

// PresenceRecord is the wire form of one viewer. Never persisted.
type PresenceRecord struct {
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	Avatar      string    `json:"avatar"`
	Status      string    `json:"status"`
	CurrentPage string    `json:"current_page"`
	IsTyping    bool      `json:"is_typing"`
	LastSeen    time.Time `json:"last_seen"`
}

type presenceEntry struct {
	record        PresenceRecord
	typingContext string
	typingSince   time.Time
}

type presenceSubscriber struct {
	contextID string
	ch        chan []PresenceRecord
}

// PresenceTracker keeps the live viewer registry in process memory. All
// access goes through its methods; no other component touches the map.
type PresenceTracker struct {
	mu          sync.RWMutex
	entries     map[uint]*presenceEntry
	subscribers map[string]presenceSubscriber

	ttl          time.Duration
	typingWindow time.Duration
	now          func() time.Time
	stop         chan struct{}
}

var (
	presenceTracker *PresenceTracker
	presenceOnce    sync.Once
)

// GetPresenceTracker returns the singleton tracker, starting its sweeper on
// first use.
func GetPresenceTracker() *PresenceTracker {
	presenceOnce.Do(func() {
		presenceTracker = NewPresenceTracker(DefaultPresenceTTL, DefaultTypingWindow)
		go presenceTracker.sweeper()
	})
	return presenceTracker
}

// NewPresenceTracker builds an unstarted tracker. Tests construct their own
// and drive time through SetClock instead of running the sweeper.
func NewPresenceTracker(ttl, typingWindow time.Duration) *PresenceTracker {
	return &PresenceTracker{
		entries:      make(map[uint]*presenceEntry),
		subscribers:  make(map[string]presenceSubscriber),
		ttl:          ttl,
		typingWindow: typingWindow,
		now:          time.Now,
		stop:         make(chan struct{}),
	}
}

// SetClock swaps the time source. Test hook.
func (t *PresenceTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Heartbeat upserts the viewer's record and resets its expiry window.
// Duplicate or out-of-order heartbeats are harmless: the record is keyed by
// user id and only moves its last_seen forward.
func (t *PresenceTracker) Heartbeat(userID uint, username, avatar, page, status string) {
	if status != PresenceAway {
		status = PresenceOnline
	}

	t.mu.Lock()
	entry, ok := t.entries[userID]
	if !ok {
		entry = &presenceEntry{}
		t.entries[userID] = entry
	}
	// A late duplicate carries stale page/status too; ignore it wholesale
	// instead of guarding last_seen alone.
	seen := t.now()
	if seen.After(entry.record.LastSeen) {
		entry.record.UserID = userID
		entry.record.Username = username
		entry.record.Avatar = avatar
		entry.record.CurrentPage = page
		entry.record.Status = status
		entry.record.LastSeen = seen
	}
	contextID := entry.record.CurrentPage
	t.mu.Unlock()

	t.publish(contextID)
}

// SetTyping flags the viewer as composing in a context. The flag clears on
// its own after the typing window even without a stop signal.
func (t *PresenceTracker) SetTyping(userID uint, contextID string, isTyping bool) {
	t.mu.Lock()
	entry, ok := t.entries[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	entry.record.IsTyping = isTyping
	entry.typingContext = contextID
	if isTyping {
		entry.typingSince = t.now()
	}
	t.mu.Unlock()

	t.publish(contextID)
}

// ListOnline snapshots the non-expired records, optionally filtered to one
// page/context. Expiry is applied at read time so a slow sweep cycle never
// shows stale viewers.
func (t *PresenceTracker) ListOnline(contextID string) []PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked(contextID)
}

func (t *PresenceTracker) snapshotLocked(contextID string) []PresenceRecord {
	now := t.now()
	records := make([]PresenceRecord, 0, len(t.entries))
	for _, entry := range t.entries {
		if now.Sub(entry.record.LastSeen) > t.ttl {
			continue
		}
		if contextID != "" && entry.record.CurrentPage != contextID && entry.typingContext != contextID {
			continue
		}
		record := entry.record
		if record.IsTyping && now.Sub(entry.typingSince) > t.typingWindow {
			record.IsTyping = false
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UserID < records[j].UserID
	})
	return records
}

// Subscribe registers a listener for snapshot updates of one context.
// The returned id is passed to Unsubscribe when the client goes away.
func (t *PresenceTracker) Subscribe(contextID string) (string, <-chan []PresenceRecord) {
	id := uuid.NewString()
	ch := make(chan []PresenceRecord, subscriberBufferSize)

	t.mu.Lock()
	t.subscribers[id] = presenceSubscriber{contextID: contextID, ch: ch}
	t.mu.Unlock()
	return id, ch
}

// Unsubscribe drops a listener. The channel is deliberately left open: a
// publish may have snapshotted it before the delete, and closing under an
// in-flight send would panic the publisher. Orphaned channels are collected
// once the reader returns.
func (t *PresenceTracker) Unsubscribe(id string) {
	t.mu.Lock()
	delete(t.subscribers, id)
	t.mu.Unlock()
}

// publish pushes a fresh snapshot to every subscriber of the context.
// Slow subscribers are skipped rather than blocked on.
func (t *PresenceTracker) publish(contextID string) {
	t.mu.RLock()
	var targets []presenceSubscriber
	for _, sub := range t.subscribers {
		if sub.contextID == "" || sub.contextID == contextID {
			targets = append(targets, sub)
		}
	}
	t.mu.RUnlock()

	for _, sub := range targets {
		snapshot := t.ListOnline(sub.contextID)
		select {
		case sub.ch <- snapshot:
		default:
		}
	}
}

// sweeper evicts expired records. Reads already filter by TTL; this just
// keeps the map from growing with one entry per user ever seen.
func (t *PresenceTracker) sweeper() {
	ticker := time.NewTicker(presenceSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-t.stop:
			return
		}
	}
}

// Sweep removes every expired entry and refreshes the online gauge.
func (t *PresenceTracker) Sweep() {
	t.mu.Lock()
	now := t.now()
	for userID, entry := range t.entries {
		if now.Sub(entry.record.LastSeen) > t.ttl {
			entry.record.Status = PresenceOffline
			delete(t.entries, userID)
		}
	}
	online := len(t.entries)
	t.mu.Unlock()

	metrics.PresenceOnline.Set(float64(online))
}

// Close stops the sweeper goroutine.
func (t *PresenceTracker) Close() {
	close(t.stop)
}
