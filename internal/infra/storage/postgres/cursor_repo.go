package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
)

// CursorRepo implements storage.CursorRepository using PostgreSQL.
type CursorRepo struct {
	db *DB
}

type cursorRow struct {
	Network     int64     `db:"network"`
	BlockNumber int64     `db:"block_number"`
	BlockHash   string    `db:"block_hash"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r cursorRow) toDomain() *domain.Cursor {
	return &domain.Cursor{
		Network:          domain.NetworkID(r.Network),
		CurrentBlock:     uint64(r.BlockNumber),
		CurrentBlockHash: r.BlockHash,
		UpdatedAt:        r.UpdatedAt,
	}
}

// NewCursorRepo creates a new PostgreSQL cursor repository.
func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

// Save saves a cursor to the database.
func (r *CursorRepo) Save(ctx context.Context, cursor *domain.Cursor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (network, block_number, block_hash, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (network) DO UPDATE
		SET block_number = EXCLUDED.block_number,
		    block_hash = EXCLUDED.block_hash,
		    updated_at = EXCLUDED.updated_at`,
		int64(cursor.Network), int64(cursor.CurrentBlock), cursor.CurrentBlockHash,
	)
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// Get retrieves a cursor by network.
func (r *CursorRepo) Get(ctx context.Context, network domain.NetworkID) (*domain.Cursor, error) {
	var row cursorRow
	err := r.db.GetContext(ctx, &row,
		`SELECT network, block_number, block_hash, updated_at FROM cursors WHERE network = $1`,
		int64(network),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}
	return row.toDomain(), nil
}

// List returns all cursors.
func (r *CursorRepo) List(ctx context.Context) ([]*domain.Cursor, error) {
	var rows []cursorRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT network, block_number, block_hash, updated_at FROM cursors ORDER BY network`,
	); err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}

	out := make([]*domain.Cursor, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// Delete removes the cursor of a network.
func (r *CursorRepo) Delete(ctx context.Context, network domain.NetworkID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cursors WHERE network = $1`, int64(network)); err != nil {
		return fmt.Errorf("failed to delete cursor: %w", err)
	}
	return nil
}
