package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that installed a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected or failed.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins refused by the local throttle.
	MetricLoginRateLimited
	// MetricRefreshSuccess counts renewal flights that produced a usable token.
	MetricRefreshSuccess
	// MetricRefreshDeferred counts flights classified retry-silently.
	MetricRefreshDeferred
	// MetricRefreshFailure counts flights classified must-logout.
	MetricRefreshFailure
	// MetricRefreshRateLimited counts flights held back by the cooldown.
	MetricRefreshRateLimited
	// MetricRefreshRetry counts backoff retries inside flights.
	MetricRefreshRetry
	// MetricRefreshJoined counts callers that shared another caller's flight.
	MetricRefreshJoined
	// MetricRequestReplayed counts requests replayed after a 401.
	MetricRequestReplayed
	// MetricLogout counts explicit logouts that ended a session.
	MetricLogout
	// MetricRedirect counts forced navigations to the login route.
	MetricRedirect
	// MetricRehydrationTimeout counts starts that gave up waiting for storage.
	MetricRehydrationTimeout
	// MetricStateTransition counts status state changes.
	MetricStateTransition
	// MetricRefreshLatency is the flight duration histogram.
	MetricRefreshLatency
	metricIDCount
)

const histBucketCount = 8

// latencyBounds are the inclusive upper bounds of every bucket but the last (+Inf).
var latencyBounds = [histBucketCount - 1]time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
}

// paddedCounter keeps each counter on its own cache line so hot counters updated from
// different goroutines do not contend.
type paddedCounter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free counters and the renewal latency histogram. A nil *Metrics
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id. It is a no-op when metrics are disabled.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricRefreshLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the histogram of id. Only [MetricRefreshLatency] has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricRefreshLatency {
		return
	}
	m.latency[bucketIndex(d)].Add(1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricRefreshLatency {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter, and the histogram when latency is enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := range MetricRefreshLatency {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricRefreshLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
