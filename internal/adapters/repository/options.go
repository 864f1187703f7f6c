package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSnapshotInterval sets how often the read snapshot is rebuilt.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.snapshotInterval = interval
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
