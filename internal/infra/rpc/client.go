// Package rpc provides a resilient JSON-RPC client for EVM networks.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vietddude/stealthwatch/internal/infra/rpc/provider"
	"github.com/vietddude/stealthwatch/internal/infra/rpc/routing"
)

// Client is the high-level interface for making RPC calls.
// This is what application layers should use.
type Client struct {
	network   string
	providers []provider.Provider
	retry     routing.RetryConfig
	log       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryConfig overrides the per-provider retry policy.
func WithRetryConfig(cfg routing.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a new RPC client over the given providers, tried in order.
func NewClient(network string, providers []provider.Provider, opts ...Option) *Client {
	c := &Client{
		network:   network,
		providers: providers,
		retry:     routing.DefaultRetryConfig,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call makes an RPC call with automatic failover and retry, decoding the
// result into out. A nil out discards the result.
func (c *Client) Call(ctx context.Context, method string, params []any, out any) error {
	result, err := routing.CallWithFailover(ctx, c.providers, method, params, c.retry)
	if err != nil {
		c.log.Warn("rpc call failed", "network", c.network, "method", method, "error", err)
		return fmt.Errorf("%s %s: %w", c.network, method, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("%s %s: decode result: %w", c.network, method, err)
	}
	return nil
}

// BatchCall sends the requests as one batch, failing over between providers
// when the whole batch fails. Per-request errors are returned in the responses.
func (c *Client) BatchCall(ctx context.Context, requests []provider.BatchRequest) ([]provider.BatchResponse, error) {
	candidates := routing.Available(c.providers)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s batch: %w", c.network, routing.ErrNoProviders)
	}

	var lastErr error
	for _, p := range candidates {
		resps, err := p.BatchCall(ctx, requests)
		if err == nil {
			return resps, nil
		}
		lastErr = err
		c.log.Warn("rpc batch failed", "network", c.network, "provider", p.GetName(), "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%s batch: all providers failed: %w", c.network, lastErr)
}

// Health returns the health of each provider keyed by name.
func (c *Client) Health() map[string]provider.HealthStatus {
	out := make(map[string]provider.HealthStatus, len(c.providers))
	for _, p := range c.providers {
		out[p.GetName()] = p.GetHealth()
	}
	return out
}

// Close releases every provider.
func (c *Client) Close() error {
	for _, p := range c.providers {
		_ = p.Close()
	}
	return nil
}
