package goSecure

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that issued a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected on credentials.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins rejected by the password limiter.
	MetricLoginRateLimited
	// MetricTwoFactorSetup counts staged two-factor enrollments.
	MetricTwoFactorSetup
	// MetricTwoFactorEnabled counts confirmed enrollments.
	MetricTwoFactorEnabled
	// MetricTwoFactorDisabled counts two-factor removals.
	MetricTwoFactorDisabled
	// MetricTwoFactorVerifySuccess counts accepted login-time second factors.
	MetricTwoFactorVerifySuccess
	// MetricTwoFactorVerifyFailure counts rejected OTP codes on any path.
	MetricTwoFactorVerifyFailure
	// MetricBackupCodeUsed counts consumed backup codes.
	MetricBackupCodeUsed
	// MetricBackupCodeFailed counts backup codes that matched nothing.
	MetricBackupCodeFailed
	// MetricBackupCodeRegenerated counts full backup-code rotations.
	MetricBackupCodeRegenerated
	// MetricRateLimitHit counts requests refused by any failure limiter.
	MetricRateLimitHit
	// MetricSessionCreated counts new session records.
	MetricSessionCreated
	// MetricSessionRevoked counts single-session revocations.
	MetricSessionRevoked
	// MetricSessionRevokedBulk counts revoke-all-other calls.
	MetricSessionRevokedBulk
	// MetricSessionTouched counts last-activity refreshes.
	MetricSessionTouched
	// MetricPasswordChangeSuccess counts committed password rotations.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeInvalidCurrent counts rotations refused on the current password.
	MetricPasswordChangeInvalidCurrent
	// MetricPasswordChangeRejected counts rotations refused by input policy.
	MetricPasswordChangeRejected
	// MetricConcurrentUpdate counts profile writes lost to a concurrent writer.
	MetricConcurrentUpdate
	// MetricAuthenticateLatency is the histogram slot for bearer authentication.
	MetricAuthenticateLatency
	metricIDCount
)

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

// Metrics is a fixed set of lock-free counters plus one latency histogram.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
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

// LatencyEnabled reports whether the authentication histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricAuthenticateLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAuthenticateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
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
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthenticateLatency].buckets[i])
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
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
