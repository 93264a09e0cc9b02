package emitter

import (
	"context"
	"sort"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
)

// StreamPublisher appends alerts to a stream (Redis XADD).
type StreamPublisher interface {
	PublishAlerts(ctx context.Context, alerts []*domain.Alert) error
}

// RedisEmitter publishes alerts to a Redis stream.
type RedisEmitter struct {
	pub StreamPublisher
}

func NewRedisEmitter(pub StreamPublisher) *RedisEmitter {
	return &RedisEmitter{pub: pub}
}

func (e *RedisEmitter) Name() string { return "redis" }

func (e *RedisEmitter) Emit(ctx context.Context, alerts []*domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return e.pub.PublishAlerts(ctx, alerts)
}

// Close is a no-op; the Redis client is owned by the caller.
func (e *RedisEmitter) Close() error { return nil }

// RepoEmitter persists alerts through an AlertRepository.
type RepoEmitter struct {
	repo storage.AlertRepository
}

func NewRepoEmitter(repo storage.AlertRepository) *RepoEmitter {
	return &RepoEmitter{repo: repo}
}

func (e *RepoEmitter) Name() string { return "postgres" }

func (e *RepoEmitter) Emit(ctx context.Context, alerts []*domain.Alert) error {
	return e.repo.SaveBatch(ctx, alerts)
}

func (e *RepoEmitter) Close() error { return nil }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
