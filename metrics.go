package goSala

import (
	"sync/atomic"
	"time"
)

// MetricID names one client counter. The zero value is MetricRequest.
type MetricID uint16

const (
	// MetricRequest counts every request put on the wire, replays included.
	MetricRequest MetricID = iota
	// MetricRequestFailure counts transport failures (no HTTP response).
	MetricRequestFailure
	// MetricUnauthorized counts 401 answers.
	MetricUnauthorized
	// MetricRefreshStarted counts refresh cycles.
	MetricRefreshStarted
	// MetricRefreshSuccess counts cycles that renewed the session.
	MetricRefreshSuccess
	// MetricRefreshFailure counts cycles that ended in logout.
	MetricRefreshFailure
	// MetricRefreshTimeout counts cycles that exceeded the refresh timeout.
	MetricRefreshTimeout
	// MetricRefreshQueued counts callers released by refresh cycles.
	MetricRefreshQueued
	// MetricReplay counts original requests replayed after a refresh.
	MetricReplay
	// MetricReplayUnauthorized counts replays rejected with 401 again.
	MetricReplayUnauthorized
	// MetricLogin counts successful logins.
	MetricLogin
	// MetricLoginFailure counts rejected logins.
	MetricLoginFailure
	// MetricLogout counts logout broadcasts, forced or explicit.
	MetricLogout
	// MetricRateLimited counts requests abandoned while waiting on the limiter.
	MetricRateLimited
	// MetricRequestLatency is the only metric with a histogram.
	MetricRequestLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricRequest:            "request",
	MetricRequestFailure:     "request_failure",
	MetricUnauthorized:       "unauthorized",
	MetricRefreshStarted:     "refresh_started",
	MetricRefreshSuccess:     "refresh_success",
	MetricRefreshFailure:     "refresh_failure",
	MetricRefreshTimeout:     "refresh_timeout",
	MetricRefreshQueued:      "refresh_queued",
	MetricReplay:             "replay",
	MetricReplayUnauthorized: "replay_unauthorized",
	MetricLogin:              "login",
	MetricLoginFailure:       "login_failure",
	MetricLogout:             "logout",
	MetricRateLimited:        "rate_limited",
	MetricRequestLatency:     "request_latency",
}

// String returns the snake_case name used by the exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs lists every defined metric in declaration order.
func MetricIDs() []MetricID {
	out := make([]MetricID, 0, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		out = append(out, id)
	}
	return out
}

// LatencyBucketBounds are the upper bounds, in milliseconds, of the request
// latency histogram. The last bucket is unbounded.
var LatencyBucketBounds = [histBucketCount - 1]float64{5, 10, 25, 50, 100, 250, 500}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters for one client.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of the counters. Histograms maps
// each histogram id to its eight non-cumulative bucket counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a zeroed counter set. With cfg.Enabled false every
// method is a no-op and snapshots are empty.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d into the histogram of id. Only MetricRequestLatency
// carries a histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRequestLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot reads every counter. Values are loaded one by one, so counters
// updated during the call may be off by the in-flight increments.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
