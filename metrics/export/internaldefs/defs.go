package internaldefs

import (
	goSecure "github.com/MrEthical07/goSecure"
)

// CounterDef binds an engine counter to its exported metric name.
type CounterDef struct {
	ID   goSecure.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported metric name.
type HistogramDef struct {
	ID   goSecure.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter exported by the prometheus and otel exporters.
var CounterDefs = []CounterDef{
	{ID: goSecure.MetricLoginSuccess, Name: "gosecure_login_success_total", Help: "Logins that issued a session."},
	{ID: goSecure.MetricLoginFailure, Name: "gosecure_login_failure_total", Help: "Logins rejected on credentials."},
	{ID: goSecure.MetricLoginRateLimited, Name: "gosecure_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goSecure.MetricTwoFactorSetup, Name: "gosecure_two_factor_setup_total", Help: "Staged two-factor enrollments."},
	{ID: goSecure.MetricTwoFactorEnabled, Name: "gosecure_two_factor_enabled_total", Help: "Confirmed two-factor enrollments."},
	{ID: goSecure.MetricTwoFactorDisabled, Name: "gosecure_two_factor_disabled_total", Help: "Two-factor removals."},
	{ID: goSecure.MetricTwoFactorVerifySuccess, Name: "gosecure_two_factor_verify_success_total", Help: "Accepted login-time second factors."},
	{ID: goSecure.MetricTwoFactorVerifyFailure, Name: "gosecure_two_factor_verify_failure_total", Help: "Rejected one-time codes."},
	{ID: goSecure.MetricBackupCodeUsed, Name: "gosecure_backup_code_used_total", Help: "Consumed backup codes."},
	{ID: goSecure.MetricBackupCodeFailed, Name: "gosecure_backup_code_failed_total", Help: "Backup codes that matched nothing."},
	{ID: goSecure.MetricBackupCodeRegenerated, Name: "gosecure_backup_code_regenerated_total", Help: "Backup-code rotations."},
	{ID: goSecure.MetricRateLimitHit, Name: "gosecure_rate_limit_hit_total", Help: "Requests refused by a failure limiter."},
	{ID: goSecure.MetricSessionCreated, Name: "gosecure_session_created_total", Help: "Created sessions."},
	{ID: goSecure.MetricSessionRevoked, Name: "gosecure_session_revoked_total", Help: "Single-session revocations."},
	{ID: goSecure.MetricSessionRevokedBulk, Name: "gosecure_session_revoked_bulk_total", Help: "Revoke-all-other operations."},
	{ID: goSecure.MetricSessionTouched, Name: "gosecure_session_touched_total", Help: "Session activity refreshes."},
	{ID: goSecure.MetricPasswordChangeSuccess, Name: "gosecure_password_change_success_total", Help: "Committed password rotations."},
	{ID: goSecure.MetricPasswordChangeInvalidCurrent, Name: "gosecure_password_change_invalid_current_total", Help: "Password rotations refused on the current password."},
	{ID: goSecure.MetricPasswordChangeRejected, Name: "gosecure_password_change_rejected_total", Help: "Password rotations refused by input policy."},
	{ID: goSecure.MetricConcurrentUpdate, Name: "gosecure_concurrent_update_total", Help: "Profile writes lost to a concurrent writer."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: goSecure.MetricAuthenticateLatency, Name: "gosecure_authenticate_latency_seconds", Help: "Bearer authentication latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds rendered for metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
