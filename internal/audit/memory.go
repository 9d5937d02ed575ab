package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLog is the in-memory append-only log used by the memory stores. Append
// never fails so callers can invoke it inside their critical section as the
// last step before publishing their own state.
type MemoryLog struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryLog constructs an empty log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append stamps ev with the next sequence number and stores it.
func (l *MemoryLog) Append(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ev.Seq = int64(len(l.events)) + 1
	l.events = append(l.events, ev)
	return ev
}

func (l *MemoryLog) List(_ context.Context, filter Filter) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	limit := filter.limit()
	out := make([]Event, 0, min(limit, len(l.events)))
	for _, ev := range l.events {
		if !filter.match(ev) {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
