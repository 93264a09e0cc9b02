package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

// AlertRepo implements storage.AlertRepository using PostgreSQL.
type AlertRepo struct {
	db *DB
}

type alertRow struct {
	ID          string         `db:"id"`
	AlertID     string         `db:"alert_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Severity    string         `db:"severity"`
	Network     int64          `db:"network"`
	TxHash      string         `db:"tx_hash"`
	BlockNumber int64          `db:"block_number"`
	Metadata    []byte         `db:"metadata"`
	Addresses   pq.StringArray `db:"addresses"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r alertRow) toDomain() (*domain.Alert, error) {
	a := &domain.Alert{
		ID:          r.ID,
		AlertID:     r.AlertID,
		Name:        r.Name,
		Description: r.Description,
		Severity:    domain.Severity(r.Severity),
		Network:     domain.NetworkID(r.Network),
		TxHash:      r.TxHash,
		BlockNumber: uint64(r.BlockNumber),
		Addresses:   []string(r.Addresses),
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode alert %s metadata: %w", r.ID, err)
		}
	}
	return a, nil
}

// NewAlertRepo creates a new PostgreSQL alert repository.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// SaveBatch inserts alerts in one transaction. Alerts already stored are skipped.
func (r *AlertRepo) SaveBatch(ctx context.Context, alerts []*domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO alerts (id, alert_id, name, description, severity, network,
		                    tx_hash, block_number, metadata, addresses, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	for _, a := range alerts {
		meta, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("encode alert %s metadata: %w", a.ID, err)
		}
		if _, err := tx.ExecContext(ctx, q,
			a.ID, a.AlertID, a.Name, a.Description, string(a.Severity), int64(a.Network),
			a.TxHash, int64(a.BlockNumber), string(meta), pq.Array(a.Addresses), a.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}
	return nil
}

// ListByAddress returns the newest alerts whose address set contains address.
func (r *AlertRepo) ListByAddress(ctx context.Context, address domain.Address, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, alert_id, name, description, severity, network, tx_hash,
		       block_number, metadata, addresses, created_at
		FROM alerts
		WHERE addresses @> $1
		ORDER BY created_at DESC
		LIMIT $2`,
		pq.Array([]string{string(address)}), limit,
	); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	out := make([]*domain.Alert, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Count returns the number of stored alerts for a network.
func (r *AlertRepo) Count(ctx context.Context, network domain.NetworkID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM alerts WHERE network = $1`, int64(network)); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes alerts created before cutoff.
func (r *AlertRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	return n, nil
}
