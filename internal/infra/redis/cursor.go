package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
)

// CursorRepo implements storage.CursorRepository on a Redis hash.
type CursorRepo struct {
	rdb *redis.Client
}

// NewCursorRepo creates a new Redis-backed cursor repository.
func NewCursorRepo(client *Client) *CursorRepo {
	return &CursorRepo{rdb: client.rdb}
}

func (r *CursorRepo) Get(ctx context.Context, network domain.NetworkID) (*domain.Cursor, error) {
	val, err := r.rdb.HGet(ctx, cursorsKey, network.String()).Result()
	if err == redis.Nil {
		return nil, storage.ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hget failed: %w", err)
	}
	return ParseCursorValue(network, val)
}

func (r *CursorRepo) Save(ctx context.Context, cursor *domain.Cursor) error {
	updated := cursor.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	if err := r.rdb.HSet(ctx, cursorsKey, cursor.Network.String(),
		FormatCursorValue(cursor.CurrentBlock, cursor.CurrentBlockHash, updated)).Err(); err != nil {
		return fmt.Errorf("hset failed: %w", err)
	}
	return nil
}

func (r *CursorRepo) List(ctx context.Context) ([]*domain.Cursor, error) {
	all, err := r.rdb.HGetAll(ctx, cursorsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}

	out := make([]*domain.Cursor, 0, len(all))
	for field, val := range all {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor field %q: %w", field, err)
		}
		c, err := ParseCursorValue(domain.NetworkID(id), val)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Network < out[j].Network })
	return out, nil
}

func (r *CursorRepo) Delete(ctx context.Context, network domain.NetworkID) error {
	return r.rdb.HDel(ctx, cursorsKey, network.String()).Err()
}

// FormatCursorValue encodes a cursor as "block:hash:unix".
func FormatCursorValue(block uint64, hash string, updated time.Time) string {
	return fmt.Sprintf("%d:%s:%d", block, hash, updated.Unix())
}

// ParseCursorValue parses the "block:hash:unix" format.
func ParseCursorValue(network domain.NetworkID, s string) (*domain.Cursor, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid cursor format: %s", s)
	}

	block, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid block: %w", err)
	}
	unix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	return &domain.Cursor{
		Network:          network,
		CurrentBlock:     block,
		CurrentBlockHash: parts[1],
		UpdatedAt:        time.Unix(unix, 0),
	}, nil
}
