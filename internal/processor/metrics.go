package processor

import (
	"sync/atomic"
	"time"
)

// ServiceMetrics counts processed queue messages since the last reset.
type ServiceMetrics struct {
	processed  atomic.Int64
	failed     atomic.Int64
	durationNs atomic.Int64
	resetAt    atomic.Int64
}

type ProcessorStats struct {
	Processed     int64   `json:"processed"`
	Failed        int64   `json:"failed"`
	RatePerSecond float64 `json:"rate_per_second"`
	AvgDurationMs int64   `json:"avg_duration_ms"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func NewServiceMetrics() *ServiceMetrics {
	m := &ServiceMetrics{}
	m.resetAt.Store(time.Now().UnixNano())
	return m
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	m.processed.Add(1)
	m.durationNs.Add(int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	m.failed.Add(1)
}

func (m *ServiceMetrics) Stats() ProcessorStats {
	processed := m.processed.Load()
	elapsed := time.Since(time.Unix(0, m.resetAt.Load())).Seconds()

	stats := ProcessorStats{
		Processed:     processed,
		Failed:        m.failed.Load(),
		UptimeSeconds: elapsed,
	}
	if elapsed > 0 {
		stats.RatePerSecond = float64(processed) / elapsed
	}
	if processed > 0 {
		stats.AvgDurationMs = time.Duration(m.durationNs.Load() / processed).Milliseconds()
	}
	return stats
}

func (m *ServiceMetrics) Reset() {
	m.processed.Store(0)
	m.failed.Store(0)
	m.durationNs.Store(0)
	m.resetAt.Store(time.Now().UnixNano())
}
