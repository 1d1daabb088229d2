package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Logins that installed a session."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Logins rejected by the server or failed in transport."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Logins refused by the local throttle."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Renewal flights that produced a usable token."},
	{ID: goSession.MetricRefreshDeferred, Name: "gosession_refresh_deferred_total", Help: "Renewal flights deferred to a later attempt."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Renewal flights that ended the session."},
	{ID: goSession.MetricRefreshRateLimited, Name: "gosession_refresh_rate_limited_total", Help: "Renewal flights held back by the cooldown."},
	{ID: goSession.MetricRefreshRetry, Name: "gosession_refresh_retry_total", Help: "Backoff retries inside renewal flights."},
	{ID: goSession.MetricRefreshJoined, Name: "gosession_refresh_joined_total", Help: "Callers that shared a renewal flight already in progress."},
	{ID: goSession.MetricRequestReplayed, Name: "gosession_request_replayed_total", Help: "Requests replayed after a 401."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Explicit logouts that ended a session."},
	{ID: goSession.MetricRedirect, Name: "gosession_redirect_total", Help: "Forced navigations to the login route."},
	{ID: goSession.MetricRehydrationTimeout, Name: "gosession_rehydration_timeout_total", Help: "Starts that stopped waiting for storage."},
	{ID: goSession.MetricStateTransition, Name: "gosession_state_transition_total", Help: "Session status state changes."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Renewal flight duration."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the engine buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals exporters expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
