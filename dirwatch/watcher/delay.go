package watcher

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DelayPolicy is the timer/debounce primitive shared by the flush and poll
// decisions. It tracks a last-flush timestamp (Restart) and a last-activity
// timestamp (Checkpoint) and reports expiry when either the checkpoint delay
// or the hard maximum delay has elapsed. The checkpoint delay batches tightly
// during bursts; the max delay bounds worst-case latency regardless of
// continued activity.
type DelayPolicy struct {
	clk             clock.Clock
	checkpointDelay time.Duration
	maxDelay        time.Duration

	mu             sync.Mutex
	lastRestart    time.Time
	lastCheckpoint time.Time
}

// NewDelayPolicy creates a policy with both timers set to now.
func NewDelayPolicy(clk clock.Clock, checkpointDelay, maxDelay time.Duration) *DelayPolicy {
	now := clk.Now()
	return &DelayPolicy{
		clk:             clk,
		checkpointDelay: checkpointDelay,
		maxDelay:        maxDelay,
		lastRestart:     now,
		lastCheckpoint:  now,
	}
}

// Restart resets both timers to now. Called after a full flush or poll cycle.
func (p *DelayPolicy) Restart() {
	now := p.clk.Now()
	p.mu.Lock()
	p.lastRestart = now
	p.lastCheckpoint = now
	p.mu.Unlock()
}

// Checkpoint resets only the activity timer. Called when new relevant events
// arrive, so sustained activity keeps deferring the flush up to the max delay.
func (p *DelayPolicy) Checkpoint() {
	now := p.clk.Now()
	p.mu.Lock()
	p.lastCheckpoint = now
	p.mu.Unlock()
}

// Expired reports whether the checkpoint delay has elapsed since the last
// checkpoint, or the max delay has elapsed since the last restart.
func (p *DelayPolicy) Expired() bool {
	now := p.clk.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastCheckpoint) >= p.checkpointDelay || now.Sub(p.lastRestart) >= p.maxDelay
}
