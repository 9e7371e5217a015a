package usecase

import (
	"sync"
	"time"

	"github.com/shelflink/backend/internal/domain"
)

// defaultDecisionLogCapacity bounds the ring buffer to the most recent
// entries.
const defaultDecisionLogCapacity = 100

// Decision records one accept/reject outcome for diagnostics. Subscores are
// only attached to accepted candidates.
type Decision struct {
	Accepted    bool              `json:"accepted"`
	InternalID  int64             `json:"internalId"`
	ExternalKey string            `json:"externalKey"`
	Reason      string            `json:"reason"`
	Subscores   *domain.Subscores `json:"subscores,omitempty"`
	At          time.Time         `json:"at"`
}

// DecisionLog is a bounded, thread-safe, append-only ring buffer of scoring
// decisions. It is owned by the caller's process lifetime and injected into
// the engine, so tests can instantiate isolated instances. It is diagnostic
// only and never consulted during scoring.
type DecisionLog struct {
	mu       sync.Mutex
	entries  []Decision
	next     int
	total    int
	accepted int
}

// NewDecisionLog creates a log bounded to capacity entries. Non-positive
// capacities fall back to the default of 100.
func NewDecisionLog(capacity int) *DecisionLog {
	if capacity <= 0 {
		capacity = defaultDecisionLogCapacity
	}
	return &DecisionLog{entries: make([]Decision, 0, capacity)}
}

// Record appends a decision, evicting the oldest entry once the buffer is
// full.
func (l *DecisionLog) Record(d Decision) {
	if d.At.IsZero() {
		d.At = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	if d.Accepted {
		l.accepted++
	}

	if len(l.entries) < cap(l.entries) {
		l.entries = append(l.entries, d)
		return
	}
	l.entries[l.next] = d
	l.next = (l.next + 1) % cap(l.entries)
}

// Entries returns a copy of the buffered decisions, oldest first.
func (l *DecisionLog) Entries() []Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Decision, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

// Stats returns the lifetime totals seen by the log, which outlive buffer
// eviction.
func (l *DecisionLog) Stats() (total, accepted int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total, l.accepted
}

// AcceptRate returns the lifetime fraction of accepted decisions.
func (l *DecisionLog) AcceptRate() float64 {
	total, accepted := l.Stats()
	if total == 0 {
		return 0.0
	}
	return float64(accepted) / float64(total)
}
