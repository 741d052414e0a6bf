// Package trace provides a bounded in-memory tail of recent relay events
// for diagnostics endpoints.
package trace

import (
	"sync"
	"time"
)

// Direction indicates which way a traced message was flowing.
type Direction string

const (
	// DirectionInbound is remote worker to local session.
	DirectionInbound Direction = "inbound"
	// DirectionOutbound is local session to remote worker.
	DirectionOutbound Direction = "outbound"
)

// Outcome records what the relay did with a message.
type Outcome string

const (
	OutcomeForwarded Outcome = "forwarded"
	OutcomeDropped   Outcome = "dropped"
)

// Entry is one traced relay event.
type Entry struct {
	Time      time.Time `json:"time"`
	Direction Direction `json:"direction"`
	Outcome   Outcome   `json:"outcome"`
	Preview   string    `json:"preview"`
}

// Tail is a thread-safe fixed-capacity ring of the most recent relay
// events. When full, the oldest entry is evicted to make room. It exists for
// the diagnostics endpoint; it is never consulted for routing decisions.
type Tail struct {
	entries  []Entry
	start    int
	count    int
	capacity int
	mu       sync.RWMutex
}

// NewTail creates a Tail holding up to capacity entries.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewTail(capacity int) *Tail {
	if capacity <= 0 {
		capacity = 1
	}
	return &Tail{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Record appends one event, evicting the oldest when the tail is full.
func (t *Tail) Record(direction Direction, outcome Outcome, preview string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := (t.start + t.count) % t.capacity
	t.entries[idx] = Entry{
		Time:      time.Now(),
		Direction: direction,
		Outcome:   outcome,
		Preview:   preview,
	}
	if t.count < t.capacity {
		t.count++
	} else {
		t.start = (t.start + 1) % t.capacity
	}
}

// Entries returns a copy of the recorded events, oldest first.
func (t *Tail) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.count == 0 {
		return nil
	}
	out := make([]Entry, t.count)
	for i := 0; i < t.count; i++ {
		out[i] = t.entries[(t.start+i)%t.capacity]
	}
	return out
}

// Len returns the current number of recorded events.
func (t *Tail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Cap returns the capacity of the tail.
func (t *Tail) Cap() int {
	return t.capacity
}

// Clear removes all recorded events.
func (t *Tail) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = 0
	t.count = 0
}
