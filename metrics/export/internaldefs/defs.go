package internaldefs

import (
	goSala "github.com/MrEthical07/goSala"
)

// CounterDef binds a client counter to its exported name.
type CounterDef struct {
	ID   goSala.MetricID
	Name string
	Help string
}

// HistogramDef binds a client histogram to its exported name.
type HistogramDef struct {
	ID   goSala.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: goSala.MetricRequest, Name: "sala_client_requests_total", Help: "Requests sent to the backend, replays included."},
	{ID: goSala.MetricRequestFailure, Name: "sala_client_request_failures_total", Help: "Requests that failed without an HTTP response."},
	{ID: goSala.MetricUnauthorized, Name: "sala_client_unauthorized_total", Help: "Responses with status 401."},
	{ID: goSala.MetricRefreshStarted, Name: "sala_client_refresh_started_total", Help: "Session refresh cycles started."},
	{ID: goSala.MetricRefreshSuccess, Name: "sala_client_refresh_success_total", Help: "Session refresh cycles that renewed the access token."},
	{ID: goSala.MetricRefreshFailure, Name: "sala_client_refresh_failure_total", Help: "Session refresh cycles that failed."},
	{ID: goSala.MetricRefreshTimeout, Name: "sala_client_refresh_timeout_total", Help: "Session refresh cycles that timed out."},
	{ID: goSala.MetricRefreshQueued, Name: "sala_client_refresh_queued_total", Help: "Callers released by session refresh cycles."},
	{ID: goSala.MetricReplay, Name: "sala_client_replays_total", Help: "Requests replayed after a session refresh."},
	{ID: goSala.MetricReplayUnauthorized, Name: "sala_client_replay_unauthorized_total", Help: "Replays rejected with 401."},
	{ID: goSala.MetricLogin, Name: "sala_client_login_total", Help: "Successful logins."},
	{ID: goSala.MetricLoginFailure, Name: "sala_client_login_failure_total", Help: "Rejected logins."},
	{ID: goSala.MetricLogout, Name: "sala_client_logout_total", Help: "Logout broadcasts."},
	{ID: goSala.MetricRateLimited, Name: "sala_client_rate_limited_total", Help: "Requests abandoned while waiting on the outbound limiter."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSala.MetricRequestLatency, Name: "sala_client_request_latency_seconds", Help: "Backend request latency histogram."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "sala_client_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// Refresh coordinator gauges.
const (
	RefreshWaitersName = "sala_client_refresh_waiters"
	RefreshWaitersHelp = "Callers currently queued on a session refresh cycle."
	RefreshActiveName  = "sala_client_refresh_in_progress"
	RefreshActiveHelp  = "1 while a session refresh cycle is running, else 0."
)

// HistogramUpperBounds are the bucket bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundLabels are the "le" label values of each bucket, +Inf
// included.
var HistogramBoundLabels = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
