package provider

import (
	"testing"
	"time"
)

func TestMonitorThrottleWindow(t *testing.T) {
	m := NewMonitor()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	if got := m.Status(); got != StatusHealthy {
		t.Fatalf("expected healthy, got %v", got)
	}

	m.RecordThrottle(429, 30*time.Second)
	if got := m.Status(); got != StatusThrottled {
		t.Errorf("expected throttled, got %v", got)
	}
	if got := m.RetryAfter(); got != 30*time.Second {
		t.Errorf("expected 30s retry, got %v", got)
	}

	now = now.Add(31 * time.Second)
	if got := m.Status(); got != StatusHealthy {
		t.Errorf("expected healthy after backoff, got %v", got)
	}
	if got := m.RetryAfter(); got != 0 {
		t.Errorf("expected no retry delay, got %v", got)
	}

	m.RecordThrottle(403, 0)
	if got := m.Status(); got != StatusBlocked {
		t.Errorf("expected blocked, got %v", got)
	}
}

func TestMonitorDegraded(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < 20; i++ {
		m.RecordRequest(5 * time.Second)
	}
	if got := m.Status(); got != StatusDegraded {
		t.Errorf("expected degraded, got %v", got)
	}
	if got := m.AverageLatency(); got != 5*time.Second {
		t.Errorf("expected 5s average, got %v", got)
	}
}

func TestDetectThrottlePattern(t *testing.T) {
	if !DetectThrottlePattern("Project Rate Limit reached") {
		t.Error("expected throttle pattern match")
	}
	if DetectThrottlePattern("execution reverted") {
		t.Error("unexpected throttle pattern match")
	}
}
