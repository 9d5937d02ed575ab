package campaign

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/congo-pay/escrow/internal/audit"
	"github.com/congo-pay/escrow/internal/ledger"
	"github.com/congo-pay/escrow/internal/lockmap"
)

type memoryRepository struct {
	locks    *lockmap.Map
	createMu sync.Mutex
	log      *audit.MemoryLog
	books    ledger.Ledger

	mu      sync.RWMutex
	records map[int64]Campaign
	order   []int64
	lastID  int64
}

// NewMemoryRepository builds an in-memory campaign store that appends its
// audit events to log and posts contributions into escrow on books.
func NewMemoryRepository(log *audit.MemoryLog, books ledger.Ledger) Repository {
	return &memoryRepository{
		locks:   lockmap.New(),
		log:     log,
		books:   books,
		records: make(map[int64]Campaign),
	}
}

func (r *memoryRepository) Create(_ context.Context, build Builder) (Campaign, audit.Event, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	r.mu.RLock()
	id := r.lastID + 1
	r.mu.RUnlock()

	c, event, err := build(id)
	if err != nil {
		return Campaign{}, audit.Event{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID = id
	r.records[id] = c
	r.order = append(r.order, id)
	return c, r.log.Append(event), nil
}

func (r *memoryRepository) Mutate(ctx context.Context, id int64, fn Mutation) (Campaign, audit.Event, error) {
	unlock := r.locks.Lock(strconv.FormatInt(id, 10))
	defer unlock()

	r.mu.RLock()
	current, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return Campaign{}, audit.Event{}, ErrCampaignNotFound
	}

	next, event, err := fn(current)
	if err != nil {
		return Campaign{}, audit.Event{}, err
	}
	if !current.Status.CanBecome(next.Status) {
		return Campaign{}, audit.Event{}, fmt.Errorf("campaign %d: illegal transition %s -> %s", id, current.Status, next.Status)
	}
	if event.Kind == audit.KindContributionMade {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		_, err := r.books.Deposit(ctx, ledger.ContributorAccountCode(event.Holder), event.ID, event.Amount)
		if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
			return Campaign{}, audit.Event{}, fmt.Errorf("post contribution to escrow: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = next
	var committed audit.Event
	if event.Kind != "" {
		committed = r.log.Append(event)
	}
	return next, committed, nil
}

func (r *memoryRepository) Get(_ context.Context, id int64) (Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.records[id]
	if !ok {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Campaign, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id])
	}
	return out, nil
}
