package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vietddude/stealthwatch/internal/indexing/metrics"
	"github.com/vietddude/stealthwatch/internal/infra/rpc/provider"
)

// RetryConfig defines per-provider retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialDelay:    1 * time.Second,
	MaxDelay:        60 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrNoProviders is returned when every provider is unavailable.
var ErrNoProviders = errors.New("no available providers")

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry    ErrorAction = iota // same provider, after backoff
	ActionFailover                    // next provider
	ActionFatal                       // give up, the request itself is wrong
)

func (a ErrorAction) String() string {
	switch a {
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	default:
		return "retry"
	}
}

// JSON-RPC codes that no provider will answer differently.
var fatalCodes = map[int]bool{
	-32700: true, // parse error
	-32600: true, // invalid request
	-32601: true, // method not found
	-32602: true, // invalid params
}

// Node codes for plan or capacity limits.
var limitCodes = map[int]bool{
	-32005: true, // limit exceeded
	-32097: true, // infura request rate exceeded
}

var limitKeywords = []string{
	"429", "403", "forbidden", "unauthorized", "quota", "plan limit",
	"rate limit", "too many requests", "throttled", "blocked", "count exceeded",
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, provider.ErrThrottled) || errors.Is(err, provider.ErrBlocked) {
		return ActionFailover
	}

	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		switch {
		case fatalCodes[rpcErr.Code]:
			return ActionFatal
		case limitCodes[rpcErr.Code], provider.DetectThrottlePattern(rpcErr.Message):
			return ActionFailover
		}
		return ActionRetry
	}

	// Errors from other transports carry no type; fall back to the text.
	msg := strings.ToLower(err.Error())
	for _, code := range []string{"-32700", "-32600", "-32601", "-32602"} {
		if strings.Contains(msg, code) {
			return ActionFatal
		}
	}
	for _, kw := range limitKeywords {
		if strings.Contains(msg, kw) {
			return ActionFailover
		}
	}
	return ActionRetry
}

// CallWithRetry calls one provider, backing off between transient failures.
func CallWithRetry(
	ctx context.Context,
	p provider.Provider,
	method string,
	params []any,
	config RetryConfig,
) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.RPCRetries.WithLabelValues(p.GetName()).Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(attempt-1, config)):
			}
		}

		result, err := p.Call(ctx, method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ClassifyError(err) != ActionRetry {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// CallWithFailover walks the available providers in order, retrying each
// one, until a call succeeds or an error is fatal.
func CallWithFailover(
	ctx context.Context,
	providers []provider.Provider,
	method string,
	params []any,
	config RetryConfig,
) (json.RawMessage, error) {
	candidates := Available(providers)
	if len(candidates) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, p := range candidates {
		result, err := CallWithRetry(ctx, p, method, params, config)
		if err == nil {
			return result, nil
		}
		if ClassifyError(err) == ActionFatal {
			return nil, fmt.Errorf("fatal error from provider %s: %w", p.GetName(), err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// Available returns the providers currently accepting calls, in order.
func Available(providers []provider.Provider) []provider.Provider {
	out := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			out = append(out, p)
		}
	}
	return out
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	return time.Duration(min(delay, float64(config.MaxDelay)))
}
