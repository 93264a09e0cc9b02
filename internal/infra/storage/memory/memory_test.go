package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
)

func TestCursorRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewCursorRepo(NewMemoryStorage())

	if _, err := repo.Get(ctx, 1); !errors.Is(err, storage.ErrCursorNotFound) {
		t.Fatalf("expected ErrCursorNotFound, got %v", err)
	}

	c := &domain.Cursor{Network: 10, CurrentBlock: 100, CurrentBlockHash: "0xabc"}
	if err := repo.Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}
	c.CurrentBlock = 999 // stored copy must not change

	got, err := repo.Get(ctx, 10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentBlock != 100 {
		t.Errorf("expected block 100, got %d", got.CurrentBlock)
	}

	_ = repo.Save(ctx, &domain.Cursor{Network: 1, CurrentBlock: 5})
	list, _ := repo.List(ctx)
	if len(list) != 2 || list[0].Network != 1 || list[1].Network != 10 {
		t.Errorf("unexpected list order: %+v", list)
	}

	_ = repo.Delete(ctx, 10)
	if _, err := repo.Get(ctx, 10); !errors.Is(err, storage.ErrCursorNotFound) {
		t.Errorf("expected cursor deleted, got %v", err)
	}
}

func TestAlertRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepo(NewMemoryStorage())

	alerts := []*domain.Alert{
		{ID: "a", Network: 1, Addresses: []string{"0xaaa", "0xbbb"}},
		{ID: "b", Network: 1, Addresses: []string{"0xbbb"}},
		{ID: "c", Network: 10, Addresses: []string{"0xccc"}},
	}
	if err := repo.SaveBatch(ctx, alerts); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveBatch(ctx, alerts[:1]); err != nil {
		t.Fatalf("save duplicate: %v", err)
	}

	if n, _ := repo.Count(ctx, 1); n != 2 {
		t.Errorf("expected 2 alerts on network 1, got %d", n)
	}

	got, _ := repo.ListByAddress(ctx, "0xbbb", 0)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("expected newest first [b a], got %+v", got)
	}

	got, _ = repo.ListByAddress(ctx, "0xbbb", 1)
	if len(got) != 1 {
		t.Errorf("expected limit to apply, got %d", len(got))
	}
}

func TestAlertRepo_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepo(NewMemoryStorage())
	now := time.Now()

	_ = repo.SaveBatch(ctx, []*domain.Alert{
		{ID: "old", Network: 1, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "new", Network: 1, CreatedAt: now},
	})

	n, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if c, _ := repo.Count(ctx, 1); c != 1 {
		t.Errorf("expected 1 alert left, got %d", c)
	}

	// A pruned id can be stored again.
	_ = repo.SaveBatch(ctx, []*domain.Alert{{ID: "old", Network: 1, CreatedAt: now}})
	if c, _ := repo.Count(ctx, 1); c != 2 {
		t.Errorf("expected 2 alerts, got %d", c)
	}
}
