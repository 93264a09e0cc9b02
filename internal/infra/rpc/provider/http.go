package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/vietddude/stealthwatch/internal/indexing/metrics"
)

var (
	// ErrThrottled is returned while a provider rate limits this client.
	ErrThrottled = errors.New("provider throttled")

	// ErrBlocked is returned after a provider answered 403.
	ErrBlocked = errors.New("provider blocked")
)

const batchMethod = "batch"

// HTTPProvider speaks JSON-RPC 2.0 over HTTP to one EVM node endpoint.
type HTTPProvider struct {
	name     string
	endpoint string
	client   *http.Client

	mu     sync.RWMutex
	health HealthStatus
	stats  callStats

	Monitor *Monitor
}

type callStats struct {
	ok, failed int
	latency    time.Duration
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// NewHTTPProvider creates a provider. timeout bounds each HTTP round trip.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health:  HealthStatus{Available: true, LastSuccessAt: time.Now()},
		Monitor: NewMonitor(),
	}
}

func newRequest(id int, method string, params []any) rpcRequest {
	if params == nil {
		params = []any{}
	}
	return rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
}

// Call sends one request and returns the raw result. Node errors are
// returned as *RPCError; a node error that reads like a rate limit also
// throttles the provider and wraps ErrThrottled.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	start := time.Now()
	body, err := p.post(ctx, method, newRequest(1, method, params))
	if err != nil {
		return nil, err
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.fail(method, "error")
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != nil {
		if DetectThrottlePattern(resp.Error.Message) {
			p.Monitor.RecordThrottle(http.StatusTooManyRequests, 0)
			p.fail(method, "throttled")
			return nil, fmt.Errorf("%w: %w", ErrThrottled, resp.Error)
		}
		// The node answered; only the request was rejected.
		p.succeed(method, time.Since(start))
		return nil, resp.Error
	}

	p.succeed(method, time.Since(start))
	return resp.Result, nil
}

// BatchCall sends the requests as one JSON array. Responses are matched by
// id since nodes may answer out of order; a request left unanswered gets an
// error in its slot.
func (p *HTTPProvider) BatchCall(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	start := time.Now()
	batch := make([]rpcRequest, len(requests))
	for i, req := range requests {
		batch[i] = newRequest(i+1, req.Method, req.Params)
	}

	body, err := p.post(ctx, batchMethod, batch)
	if err != nil {
		return nil, err
	}

	var raw []rpcResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		p.fail(batchMethod, "error")
		return nil, fmt.Errorf("parse batch response: %w", err)
	}

	out := make([]BatchResponse, len(requests))
	answered := make([]bool, len(requests))
	for _, r := range raw {
		i := r.ID - 1
		if i < 0 || i >= len(requests) {
			continue
		}
		answered[i] = true
		if r.Error != nil {
			out[i].Error = r.Error
		} else {
			out[i].Result = r.Result
		}
	}
	for i := range out {
		if !answered[i] {
			out[i].Error = fmt.Errorf("missing response for %s", requests[i].Method)
		}
	}

	p.succeed(batchMethod, time.Since(start))
	return out, nil
}

func (p *HTTPProvider) post(ctx context.Context, method string, payload any) ([]byte, error) {
	switch p.Monitor.Status() {
	case StatusThrottled:
		metrics.RPCRequests.WithLabelValues(p.name, method, "throttled").Inc()
		return nil, fmt.Errorf("%s: %w, retry after %v", p.name, ErrThrottled, p.Monitor.RetryAfter())
	case StatusBlocked:
		metrics.RPCRequests.WithLabelValues(p.name, method, "throttled").Inc()
		return nil, fmt.Errorf("%s: %w, retry after %v", p.name, ErrBlocked, p.Monitor.RetryAfter())
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.fail(method, "error")
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		p.Monitor.RecordThrottle(resp.StatusCode, parseRetryAfter(retryAfter))
		p.fail(method, "throttled")
		return nil, fmt.Errorf("%s: http 429: %w, retry after %q", p.name, ErrThrottled, retryAfter)
	case http.StatusForbidden:
		p.Monitor.RecordThrottle(resp.StatusCode, 0)
		p.fail(method, "throttled")
		return nil, fmt.Errorf("%s: http 403: %w", p.name, ErrBlocked)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		p.fail(method, "error")
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.fail(method, "error")
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (p *HTTPProvider) GetName() string {
	return p.name
}

// GetHealth returns the provider's health status.
func (p *HTTPProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := p.health
	h.Status = p.Monitor.Status()
	return h
}

// IsAvailable reports whether calls are currently allowed.
func (p *HTTPProvider) IsAvailable() bool {
	status := p.Monitor.Status()
	return status == StatusHealthy || status == StatusDegraded
}

func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) succeed(method string, latency time.Duration) {
	p.Monitor.RecordRequest(latency)
	metrics.RPCRequests.WithLabelValues(p.name, method, "ok").Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.ok++
	p.stats.latency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true
	p.health.Latency = p.stats.latency / time.Duration(p.stats.ok)
	p.health.ErrorRate = p.stats.errorRate()
}

func (p *HTTPProvider) fail(method, outcome string) {
	metrics.RPCRequests.WithLabelValues(p.name, method, outcome).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.failed++
	p.health.LastFailureAt = time.Now()
	p.health.ErrorRate = p.stats.errorRate()
	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
}

func (s callStats) errorRate() float64 {
	return float64(s.failed) / float64(s.ok+s.failed)
}
