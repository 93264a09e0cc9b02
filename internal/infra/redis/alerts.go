package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

// PublishAlerts appends alerts to the alert stream in one pipeline.
func (c *Client) PublishAlerts(ctx context.Context, alerts []*domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for _, a := range alerts {
		values, err := alertValues(a)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: c.stream,
			MaxLen: c.maxLen,
			Approx: true,
			Values: values,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd failed: %w", err)
	}
	return nil
}

// alertValues flattens an alert into stream fields. The full alert is kept
// as JSON under "payload"; the rest are for consumers filtering by field.
func alertValues(a *domain.Alert) (map[string]any, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert %s: %w", a.ID, err)
	}
	return map[string]any{
		"id":           a.ID,
		"alert_id":     a.AlertID,
		"network":      strconv.FormatUint(uint64(a.Network), 10),
		"tx_hash":      a.TxHash,
		"block_number": strconv.FormatUint(a.BlockNumber, 10),
		"payload":      string(payload),
	}, nil
}
