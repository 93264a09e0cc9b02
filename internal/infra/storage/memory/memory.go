package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
)

type MemoryStorage struct {
	cursors  map[domain.NetworkID]*domain.Cursor
	alerts   []*domain.Alert
	alertIDs map[string]struct{}
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		cursors:  make(map[domain.NetworkID]*domain.Cursor),
		alertIDs: make(map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------
// Cursor Repository
// -----------------------------------------------------------------------------

type CursorRepo struct {
	store *MemoryStorage
}

func NewCursorRepo(store *MemoryStorage) *CursorRepo {
	return &CursorRepo{store: store}
}

func (r *CursorRepo) Get(ctx context.Context, network domain.NetworkID) (*domain.Cursor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if c, ok := r.store.cursors[network]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, storage.ErrCursorNotFound
}

func (r *CursorRepo) Save(ctx context.Context, cursor *domain.Cursor) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *cursor
	r.store.cursors[cursor.Network] = &cp
	return nil
}

func (r *CursorRepo) List(ctx context.Context) ([]*domain.Cursor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Cursor, 0, len(r.store.cursors))
	for _, c := range r.store.cursors {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Network < out[j].Network })
	return out, nil
}

func (r *CursorRepo) Delete(ctx context.Context, network domain.NetworkID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.cursors, network)
	return nil
}

// -----------------------------------------------------------------------------
// Alert Repository
// -----------------------------------------------------------------------------

type AlertRepo struct {
	store *MemoryStorage
}

func NewAlertRepo(store *MemoryStorage) *AlertRepo {
	return &AlertRepo{store: store}
}

func (r *AlertRepo) SaveBatch(ctx context.Context, alerts []*domain.Alert) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range alerts {
		if _, dup := r.store.alertIDs[a.ID]; dup {
			continue
		}
		r.store.alertIDs[a.ID] = struct{}{}
		r.store.alerts = append(r.store.alerts, a)
	}
	return nil
}

func (r *AlertRepo) ListByAddress(ctx context.Context, address domain.Address, limit int) ([]*domain.Alert, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Alert
	for i := len(r.store.alerts) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		a := r.store.alerts[i]
		for _, addr := range a.Addresses {
			if domain.Address(addr) == address {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (r *AlertRepo) Count(ctx context.Context, network domain.NetworkID) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	n := 0
	for _, a := range r.store.alerts {
		if a.Network == network {
			n++
		}
	}
	return n, nil
}

func (r *AlertRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.alerts[:0]
	var n int64
	for _, a := range r.store.alerts {
		if a.CreatedAt.Before(cutoff) {
			delete(r.store.alertIDs, a.ID)
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.store.alerts = kept
	return n, nil
}
