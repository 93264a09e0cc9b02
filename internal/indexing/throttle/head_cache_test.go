package throttle

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockSource struct {
	head  uint64
	err   error
	calls int
}

func (m *mockSource) LatestBlock(ctx context.Context) (uint64, error) {
	m.calls++
	return m.head, m.err
}

func TestHeadCache_CachesWithinTTL(t *testing.T) {
	src := &mockSource{head: 100}
	c := NewHeadCache(src, 3*time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		head, err := c.LatestBlock(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if head != 100 {
			t.Errorf("expected head 100, got %d", head)
		}
	}
	if src.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", src.calls)
	}

	src.head = 105
	now = now.Add(3 * time.Second)
	head, _ := c.LatestBlock(context.Background())
	if head != 105 || src.calls != 2 {
		t.Errorf("expected refetch after TTL, head=%d calls=%d", head, src.calls)
	}
}

func TestHeadCache_Invalidate(t *testing.T) {
	src := &mockSource{head: 7}
	c := NewHeadCache(src, time.Hour)

	_, _ = c.LatestBlock(context.Background())
	c.Invalidate()
	_, _ = c.LatestBlock(context.Background())

	if src.calls != 2 {
		t.Errorf("expected 2 fetches, got %d", src.calls)
	}
}

func TestHeadCache_ErrorsAreNotCached(t *testing.T) {
	src := &mockSource{err: errors.New("rpc down")}
	c := NewHeadCache(src, time.Hour)

	if _, err := c.LatestBlock(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	src.err = nil
	src.head = 9
	head, err := c.LatestBlock(context.Background())
	if err != nil || head != 9 {
		t.Errorf("expected 9, got %d (%v)", head, err)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 fetches, got %d", src.calls)
	}
}

func TestHeadCache_ZeroTTL(t *testing.T) {
	src := &mockSource{head: 1}
	c := NewHeadCache(src, 0)

	_, _ = c.LatestBlock(context.Background())
	_, _ = c.LatestBlock(context.Background())
	if src.calls != 2 {
		t.Errorf("expected every call to fetch, got %d", src.calls)
	}
}

func TestPacer_Interval(t *testing.T) {
	p := NewPacer(10*time.Second, 2*time.Second, 50)

	tests := []struct {
		lag  int64
		want time.Duration
	}{
		{-3, 10 * time.Second},
		{0, 10 * time.Second},
		{1, 6 * time.Second},
		{49, 6 * time.Second},
		{50, 2 * time.Second},
		{5000, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Interval(tt.lag); got != tt.want {
			t.Errorf("Interval(%d) = %v, want %v", tt.lag, got, tt.want)
		}
	}
}

func TestPacer_Disabled(t *testing.T) {
	for _, catchup := range []time.Duration{0, 10 * time.Second, time.Minute} {
		p := NewPacer(10*time.Second, catchup, 0)
		if got := p.Interval(1000); got != 10*time.Second {
			t.Errorf("catchup %v: expected base interval, got %v", catchup, got)
		}
	}
}
