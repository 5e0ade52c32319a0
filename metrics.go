package shopauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricSignupSuccess counts signups that reached the pending state and delivered an OTP.
	MetricSignupSuccess MetricID = iota
	// MetricSignupDuplicate counts signups rejected because the account or a pending signup exists.
	MetricSignupDuplicate
	// MetricOTPVerifySuccess counts pending signups promoted to accounts.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts rejected OTP submissions.
	MetricOTPVerifyFailure
	// MetricOTPExpired counts correct OTPs submitted after expiry.
	MetricOTPExpired
	// MetricOTPResend counts reissued signup OTPs.
	MetricOTPResend
	// MetricResendCooldown counts resends rejected inside the cooldown.
	MetricResendCooldown
	// MetricSignInSuccess counts successful sign-ins.
	MetricSignInSuccess
	// MetricSignInFailure counts rejected sign-ins.
	MetricSignInFailure
	// MetricVerificationCodeSent counts delivered account verification codes.
	MetricVerificationCodeSent
	// MetricVerificationCodeSuccess counts accounts verified by code.
	MetricVerificationCodeSuccess
	// MetricVerificationCodeFailure counts rejected verification codes.
	MetricVerificationCodeFailure
	// MetricPasswordResetRequest counts delivered forgot-password codes.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess counts completed password resets.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure counts rejected reset codes.
	MetricPasswordResetFailure
	// MetricPasswordChangeSuccess counts authenticated password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeFailure counts rejected password changes.
	MetricPasswordChangeFailure
	// MetricDeliveryFailure counts codes the mail transport did not accept.
	MetricDeliveryFailure
	// MetricRateLimitHit counts limiter denials across all flows.
	MetricRateLimitHit
	// MetricSessionIssued counts signed session tokens.
	MetricSessionIssued
	// MetricTokenRejected counts tokens that failed verification.
	MetricTokenRejected
	// MetricRoleDenied counts role checks that returned forbidden.
	MetricRoleDenied
	// MetricAccountDeleted counts account deletions.
	MetricAccountDeleted
	// MetricPendingSwept counts pending signups removed by the sweeper.
	MetricPendingSwept
	// MetricSignInLatency is the sign-in latency histogram.
	MetricSignInLatency
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

// Metrics holds lock-free in-process counters.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
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

// Enabled reports whether counters record.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms record.
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

// Observe records d into the histogram id. Only latency metrics accept samples.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricSignInLatency {
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

// Snapshot copies all counters. Disabled metrics return empty maps.
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
		if id == MetricSignInLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricSignInLatency].buckets[i])
		}
		s.Histograms[MetricSignInLatency] = buckets
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
