package identity

import (
	"context"
	"sync"

	"github.com/congo-pay/escrow/internal/audit"
	"github.com/congo-pay/escrow/internal/lockmap"
)

type memoryRepository struct {
	locks *lockmap.Map
	log   *audit.MemoryLog

	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

// NewMemoryRepository builds an in-memory identity store that appends its
// audit events to log.
func NewMemoryRepository(log *audit.MemoryLog) Repository {
	return &memoryRepository{
		locks:   lockmap.New(),
		log:     log,
		records: make(map[string]Record),
	}
}

func (r *memoryRepository) Mutate(_ context.Context, holder string, fn Mutation) (Record, audit.Event, error) {
	unlock := r.locks.Lock(holder)
	defer unlock()

	r.mu.RLock()
	current, exists := r.records[holder]
	r.mu.RUnlock()
	if !exists {
		current = Record{Holder: holder}
	}

	next, event, err := fn(current)
	if err != nil {
		return Record{}, audit.Event{}, err
	}
	if event.Kind == "" {
		return current, audit.Event{}, nil
	}

	r.mu.Lock()
	if !exists {
		r.order = append(r.order, holder)
	}
	r.records[holder] = next
	committed := r.log.Append(event)
	r.mu.Unlock()
	return next, committed, nil
}

func (r *memoryRepository) Get(_ context.Context, holder string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[holder]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.order))
	for _, h := range r.order {
		out = append(out, r.records[h])
	}
	return out, nil
}
