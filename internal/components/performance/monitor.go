package performance

import (
	"sync"
	"time"
)

// PerformanceMonitor tracks timings of named operations such as a render pass.
type PerformanceMonitor struct {
	metrics map[string]*Metric
	mutex   sync.RWMutex
}

// Metric represents a performance metric
type Metric struct {
	Name        string
	Count       int64
	TotalTime   time.Duration
	MinTime     time.Duration
	MaxTime     time.Duration
	LastTime    time.Duration
	LastUpdated time.Time
	Samples     []time.Duration
	MaxSamples  int
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		metrics: make(map[string]*Metric),
	}
}

// StartTimer starts timing an operation; call the returned func to stop it.
func (pm *PerformanceMonitor) StartTimer(name string) func() {
	start := time.Now()
	return func() {
		pm.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records a duration for a metric
func (pm *PerformanceMonitor) RecordDuration(name string, duration time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	metric, exists := pm.metrics[name]
	if !exists {
		metric = &Metric{
			Name:       name,
			MinTime:    duration,
			MaxTime:    duration,
			MaxSamples: 100,
			Samples:    make([]time.Duration, 0, 100),
		}
		pm.metrics[name] = metric
	}

	metric.Count++
	metric.TotalTime += duration
	metric.LastTime = duration
	metric.LastUpdated = time.Now()
	if duration < metric.MinTime {
		metric.MinTime = duration
	}
	if duration > metric.MaxTime {
		metric.MaxTime = duration
	}

	if len(metric.Samples) >= metric.MaxSamples {
		metric.Samples = metric.Samples[1:]
	}
	metric.Samples = append(metric.Samples, duration)
}

// GetMetric returns a copy of a metric, or nil if it was never recorded.
func (pm *PerformanceMonitor) GetMetric(name string) *Metric {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	metric, exists := pm.metrics[name]
	if !exists {
		return nil
	}
	cp := *metric
	cp.Samples = append([]time.Duration(nil), metric.Samples...)
	return &cp
}

// Reset clears a metric
func (pm *PerformanceMonitor) Reset(name string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	delete(pm.metrics, name)
}

// AverageTime returns the average time for a metric
func (m *Metric) AverageTime() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.Count)
}

// RecentAverageTime returns the average of the last sampleCount samples
func (m *Metric) RecentAverageTime(sampleCount int) time.Duration {
	if len(m.Samples) == 0 || sampleCount <= 0 {
		return 0
	}

	start := len(m.Samples) - sampleCount
	if start < 0 {
		start = 0
	}

	var total time.Duration
	for _, s := range m.Samples[start:] {
		total += s
	}
	return total / time.Duration(len(m.Samples)-start)
}

// RateLimiter allows at most one operation per rate interval.
type RateLimiter struct {
	rate     time.Duration
	lastCall time.Time
	now      func() time.Time
	mutex    sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate time.Duration) *RateLimiter {
	return &RateLimiter{
		rate: rate,
		now:  time.Now,
	}
}

// Allow returns whether an operation should be allowed
func (rl *RateLimiter) Allow() bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	if rl.lastCall.IsZero() || now.Sub(rl.lastCall) >= rl.rate {
		rl.lastCall = now
		return true
	}
	return false
}
