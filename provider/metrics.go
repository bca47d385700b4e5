package provider

import (
	"sync"
	"time"

	"encore.app/pkg/models"
)

// sampleCap bounds the raw-sample ring kept per kind so percentile
// recomputation stays O(sampleCap log sampleCap) instead of growing without
// bound (mirrors the teacher's monitoring package's fixed-size ring buffers).
const sampleCap = 512

// Metrics tracks request latency percentiles broken out by outcome kind
// (the named ErrorKinds, plus kindOK for successes), reusing
// pkg/models.LatencySummary rather than a bespoke percentile type.
type Metrics struct {
	mu      sync.Mutex
	samples map[ErrorKind][]time.Duration
}

// NewMetrics returns an empty metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{samples: make(map[ErrorKind][]time.Duration)}
}

// Record folds one observed request latency into kind's sample ring.
func (m *Metrics) Record(kind ErrorKind, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.samples[kind]
	if len(s) >= sampleCap {
		s = s[1:]
	}
	m.samples[kind] = append(s, d)
}

// Snapshot returns a LatencySummary per kind that has at least one sample.
func (m *Metrics) Snapshot() map[ErrorKind]models.LatencySummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[ErrorKind]models.LatencySummary, len(m.samples))
	for kind, s := range m.samples {
		cp := make([]time.Duration, len(s))
		copy(cp, s)
		out[kind] = models.CalculateLatencySummary(cp)
	}
	return out
}
