// Package inspect derives diagnostic statistics from the envelopes flowing
// through a bridge. It never influences routing; the relay stays
// content-agnostic and the inspector only watches.
package inspect

import (
	"sort"
	"sync"

	"github.com/mcp-browser-bridge/backend/internal/protocol"
)

// Stats is a snapshot of what the inspector has seen.
type Stats struct {
	Requests      int64            `json:"requests"`
	Responses     int64            `json:"responses"`
	Notifications int64            `json:"notifications"`
	Errors        int64            `json:"errors"`
	ParseFailures int64            `json:"parseFailures"`
	ByMethod      map[string]int64 `json:"byMethod,omitempty"`
}

// Inspector classifies message payloads by their envelope shape and keeps
// per-method counters for the status endpoint.
type Inspector struct {
	mu       sync.Mutex
	stats    Stats
	byMethod map[string]int64
}

// NewInspector creates an Inspector with zeroed counters.
func NewInspector() *Inspector {
	return &Inspector{byMethod: make(map[string]int64)}
}

// Observe classifies one raw payload. Payloads that do not parse as
// envelopes count as parse failures; nothing else is inferred from them.
func (i *Inspector) Observe(raw []byte) {
	env, err := protocol.Parse(raw)
	if err != nil {
		i.mu.Lock()
		i.stats.ParseFailures++
		i.mu.Unlock()
		return
	}
	i.ObserveEnvelope(env)
}

// ObserveEnvelope records an already-parsed envelope.
func (i *Inspector) ObserveEnvelope(env *protocol.Envelope) {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch env.Kind() {
	case protocol.KindRequest:
		i.stats.Requests++
		i.byMethod[env.Method]++
	case protocol.KindNotification:
		i.stats.Notifications++
		i.byMethod[env.Method]++
	case protocol.KindResponse:
		i.stats.Responses++
		if env.Error != nil {
			i.stats.Errors++
		}
	default:
		i.stats.ParseFailures++
	}
}

// Snapshot returns a copy of the current statistics.
func (i *Inspector) Snapshot() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := i.stats
	if len(i.byMethod) > 0 {
		out.ByMethod = make(map[string]int64, len(i.byMethod))
		for m, n := range i.byMethod {
			out.ByMethod[m] = n
		}
	}
	return out
}

// TopMethods returns up to n method names ordered by how often they were
// seen, busiest first. Ties break alphabetically so output is stable.
func (i *Inspector) TopMethods(n int) []string {
	i.mu.Lock()
	methods := make([]string, 0, len(i.byMethod))
	for m := range i.byMethod {
		methods = append(methods, m)
	}
	counts := make(map[string]int64, len(i.byMethod))
	for m, c := range i.byMethod {
		counts[m] = c
	}
	i.mu.Unlock()

	sort.Slice(methods, func(a, b int) bool {
		if counts[methods[a]] != counts[methods[b]] {
			return counts[methods[a]] > counts[methods[b]]
		}
		return methods[a] < methods[b]
	})
	if n > 0 && len(methods) > n {
		methods = methods[:n]
	}
	return methods
}

// Reset zeroes all counters.
func (i *Inspector) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stats = Stats{}
	i.byMethod = make(map[string]int64)
}
