package throttle

import "time"

// Pacer picks the delay before the next scan from how far the cursor is
// behind the confirmed head.
type Pacer struct {
	base    time.Duration
	catchup time.Duration
	burst   int64
}

// NewPacer creates a pacer. With catchup <= 0 or >= base every scan waits base.
func NewPacer(base, catchup time.Duration, burst int64) *Pacer {
	if burst <= 0 {
		burst = 50
	}
	return &Pacer{base: base, catchup: catchup, burst: burst}
}

// Interval returns the wait before the next scan for a given lag.
//
//   - lag <= 0: base, the pipeline is at the confirmed head
//   - lag < burst: halfway between base and catchup
//   - lag >= burst: catchup
func (p *Pacer) Interval(lag int64) time.Duration {
	if p.catchup <= 0 || p.catchup >= p.base {
		return p.base
	}
	switch {
	case lag <= 0:
		return p.base
	case lag < p.burst:
		return p.catchup + (p.base-p.catchup)/2
	default:
		return p.catchup
	}
}
