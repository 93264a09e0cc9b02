package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

var (
	// ErrCursorNotFound is returned when a cursor doesn't exist
	ErrCursorNotFound = errors.New("cursor not found")
)

// CursorRepository handles cursor storage operations
type CursorRepository interface {
	// Get retrieves the cursor for a network
	Get(ctx context.Context, network domain.NetworkID) (*domain.Cursor, error)

	// Save saves/updates the cursor
	Save(ctx context.Context, cursor *domain.Cursor) error

	// List returns every stored cursor ordered by network
	List(ctx context.Context) ([]*domain.Cursor, error)

	// Delete removes the cursor so the next run starts from configuration
	Delete(ctx context.Context, network domain.NetworkID) error
}

// AlertRepository stores rendered correlation alerts
type AlertRepository interface {
	// SaveBatch saves alerts, ignoring ones already stored
	SaveBatch(ctx context.Context, alerts []*domain.Alert) error

	// ListByAddress returns the most recent alerts touching an address
	ListByAddress(ctx context.Context, address domain.Address, limit int) ([]*domain.Alert, error)

	// Count returns the number of stored alerts for a network
	Count(ctx context.Context, network domain.NetworkID) (int, error)

	// DeleteOlderThan removes alerts created before the cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
