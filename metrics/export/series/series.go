package series

import (
	"strconv"

	deepblue "github.com/Grara/deepblue-backend"
)

const prefix = "deepblue_"

// Counter is one engine counter as exported.
type Counter struct {
	ID      deepblue.MetricID
	Flow    string
	Outcome string
	Help    string
}

// Name is the exported series name. A counter without an outcome counts
// every run of its flow.
func (c Counter) Name() string {
	if c.Outcome == "" {
		return prefix + c.Flow + "_total"
	}
	return prefix + c.Flow + "_" + c.Outcome + "_total"
}

// Counters lists every exported counter, login first, in render order.
var Counters = []Counter{
	{deepblue.MetricLoginSuccess, "login", "success", "Successful logins."},
	{deepblue.MetricLoginFailure, "login", "failure", "Failed logins."},
	{deepblue.MetricRefreshSuccess, "refresh", "success", "Successful token renewals."},
	{deepblue.MetricRefreshFailure, "refresh", "failure", "Refused token renewals."},
	{deepblue.MetricRefreshUnknownToken, "refresh", "unknown_token", "Renewals refused because the refresh token was not stored."},
	{deepblue.MetricRefreshExpired, "refresh", "expired", "Renewals refused because the refresh token expired."},
	{deepblue.MetricRefreshGraceUsed, "refresh", "grace_used", "Renewals accepted inside the expiry grace window."},
	{deepblue.MetricRefreshRotated, "refresh", "rotated", "Renewals that replaced the refresh token."},
	{deepblue.MetricLogout, "logout", "", "Logout operations."},
	{deepblue.MetricAuthenticateSuccess, "authenticate", "success", "Requests that carried a valid access token."},
	{deepblue.MetricAuthenticateAnonymous, "authenticate", "anonymous", "Requests passed on without a principal."},
}

// Latency describes the validate latency histogram.
var Latency = struct {
	ID   deepblue.MetricID
	Name string
	Help string
}{deepblue.MetricValidateLatency, prefix + "validate_latency_seconds", "Access token validation latency."}

// LatencyBounds are the finite upper edges, in seconds, of the engine's
// latency buckets. The engine keeps one more bucket for everything slower.
var LatencyBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// Le formats the upper edge of bucket i as a Prometheus le label value.
func Le(i int) string {
	if i >= len(LatencyBounds) {
		return "+Inf"
	}
	return strconv.FormatFloat(LatencyBounds[i], 'g', -1, 64)
}

// Cumulative turns per-bucket counts into running totals, one per bucket
// edge plus +Inf. Missing buckets count as empty and extras are dropped.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(LatencyBounds)+1)
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
