// Package tracker maintains bounded per-contract time series of cumulative
// traded volume and derives deltas over fixed trailing windows.
package tracker

import (
	"sync"
	"time"
)

// Retention is the sliding window beyond which samples are discarded.
const Retention = 300 * time.Second

// Fixed spike windows, newest to oldest.
const (
	Window10s = 10 * time.Second
	Window30s = 30 * time.Second
	Window1m  = time.Minute
	Window3m  = 3 * time.Minute
	Window5m  = 5 * time.Minute
)

// Sample is one (timestamp, cumulative volume) observation.
type Sample struct {
	At     time.Time
	Volume int64
}

// Spikes holds the windowed volume deltas for one contract.
type Spikes struct {
	Vol10s int64
	Vol30s int64
	Vol1m  int64
	Vol3m  int64
	Vol5m  int64
}

// Tracker owns the volume histories for all tracked contracts. It is the
// only state that survives across poll cycles. A single poller accesses it
// sequentially; the mutex exists so a second poller would not corrupt the
// history map.
type Tracker struct {
	mu        sync.Mutex
	history   map[uint32][]Sample
	retention time.Duration
}

// New returns a tracker with the default 300s retention.
func New() *Tracker {
	return &Tracker{
		history:   make(map[uint32][]Sample),
		retention: Retention,
	}
}

// Record appends a volume sample for token and prunes samples older than the
// retention horizon relative to at. Cumulative volume is monotonically
// non-decreasing within a session; a sample below its predecessor means the
// feed rolled into a new session, so the token's history is reset rather
// than producing negative deltas.
func (t *Tracker) Record(token uint32, at time.Time, volume int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := t.history[token]
	if n := len(samples); n > 0 && volume < samples[n-1].Volume {
		samples = samples[:0]
	}
	samples = append(samples, Sample{At: at, Volume: volume})

	cutoff := at.Add(-t.retention)
	start := 0
	for start < len(samples) && samples[start].At.Before(cutoff) {
		start++
	}
	t.history[token] = samples[start:]
}

// WindowedDelta returns the difference between the newest and oldest sample
// within window of now for token. Fewer than two qualifying samples yield 0:
// a single point cannot form a delta.
func (t *Tracker) WindowedDelta(token uint32, window time.Duration, now time.Time) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.windowedDelta(token, window, now)
}

func (t *Tracker) windowedDelta(token uint32, window time.Duration, now time.Time) int64 {
	samples := t.history[token]
	cutoff := now.Add(-window)

	first := 0
	for first < len(samples) && samples[first].At.Before(cutoff) {
		first++
	}
	if len(samples)-first < 2 {
		return 0
	}
	return samples[len(samples)-1].Volume - samples[first].Volume
}

// Spikes returns the deltas for all five fixed windows at once.
func (t *Tracker) Spikes(token uint32, now time.Time) Spikes {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Spikes{
		Vol10s: t.windowedDelta(token, Window10s, now),
		Vol30s: t.windowedDelta(token, Window30s, now),
		Vol1m:  t.windowedDelta(token, Window1m, now),
		Vol3m:  t.windowedDelta(token, Window3m, now),
		Vol5m:  t.windowedDelta(token, Window5m, now),
	}
}

// Len reports the number of retained samples for token.
func (t *Tracker) Len(token uint32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history[token])
}
