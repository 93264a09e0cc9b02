package provider

import (
	"strings"
	"sync"
	"time"
)

// Status represents the health state of a provider.
type Status int

const (
	StatusHealthy   Status = iota // Provider is working normally
	StatusDegraded                // Provider is slow but working
	StatusThrottled               // Provider is rate limiting
	StatusBlocked                 // Provider has blocked this client
)

func (s Status) String() string {
	switch s {
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusBlocked:
		return "blocked"
	default:
		return "healthy"
	}
}

var throttlePatterns = []string{
	"rate limit exceeded",
	"too many requests",
	"daily request count exceeded",
	"project rate limit",
	"monthly quota exceeded",
}

// Monitor tracks provider latency and throttling.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	throttleCount int
	blocked       bool
	lastThrottle  time.Time
	backoff       time.Duration

	slowResponseThreshold time.Duration
	now                   func() time.Time
}

// NewMonitor creates a new monitor with default settings.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		slowResponseThreshold: 3 * time.Second,
		now:                   time.Now,
	}
}

// RecordRequest records a successful request with its latency.
func (m *Monitor) RecordRequest(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
	m.throttleCount = 0
}

// RecordThrottle records a rate limiting (429) or blocking (403) response.
func (m *Monitor) RecordThrottle(statusCode int, retryAfter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastThrottle = m.now()
	switch statusCode {
	case 403:
		m.blocked = true
		m.backoff = 10 * time.Minute
	default:
		m.throttleCount++
		m.backoff = retryAfter
		if m.backoff <= 0 {
			m.backoff = time.Duration(m.throttleCount) * 5 * time.Second
		}
		if m.backoff > time.Minute {
			m.backoff = time.Minute
		}
	}
}

// DetectThrottlePattern checks if a message contains throttle patterns.
func DetectThrottlePattern(message string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range throttlePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Status returns the current status of the provider.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.now().Sub(m.lastThrottle) < m.backoff {
		if m.blocked {
			return StatusBlocked
		}
		return StatusThrottled
	}

	if len(m.recentLatencies) > 10 && m.averageLatency() > m.slowResponseThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

// RetryAfter returns remaining time before the provider should be used again.
func (m *Monitor) RetryAfter() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	remaining := m.backoff - m.now().Sub(m.lastThrottle)
	if remaining > 0 {
		return remaining
	}
	return 0
}

// AverageLatency returns the average latency of recent requests.
func (m *Monitor) AverageLatency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.averageLatency()
}

func (m *Monitor) averageLatency() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}
