// Package metrics counts agent polls for diagnostics.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates poll metrics.
type Collector struct {
	requestsTotal atomic.Int64
	errorsTotal   atomic.Int64
	retriesTotal  atomic.Int64

	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts: make(map[string]*atomic.Int64),
		statusCodes: make(map[int]*atomic.Int64),
		startTime:   time.Now(),
	}
}

// RecordRequest records an HTTP request to the agent.
func (c *Collector) RecordRequest() {
	c.requestsTotal.Add(1)
}

// RecordError records a failed attempt by error type.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.Add(1)

	c.errorMu.Lock()
	if c.errorCounts[errorType] == nil {
		c.errorCounts[errorType] = &atomic.Int64{}
	}
	c.errorCounts[errorType].Add(1)
	c.errorMu.Unlock()
}

// RecordResponseTime records a response time.
func (c *Collector) RecordResponseTime(d time.Duration) {
	c.responseTimesSum.Add(d.Milliseconds())
	c.responseTimesNum.Add(1)
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	c.statusMu.Lock()
	if c.statusCodes[code] == nil {
		c.statusCodes[code] = &atomic.Int64{}
	}
	c.statusCodes[code].Add(1)
	c.statusMu.Unlock()
}

// RecordRetry records a pause before another attempt.
func (c *Collector) RecordRetry() {
	c.retriesTotal.Add(1)
}

// GetAverageResponseTime returns the mean response time.
func (c *Collector) GetAverageResponseTime() time.Duration {
	n := c.responseTimesNum.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(c.responseTimesSum.Load()/n) * time.Millisecond
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	RequestsTotal   int64
	ErrorsTotal     int64
	RetriesTotal    int64
	AvgResponseTime time.Duration
	ErrorCounts     map[string]int64
	StatusCodes     map[int]int64
	Uptime          time.Duration
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() *Snapshot {
	snap := &Snapshot{
		RequestsTotal:   c.requestsTotal.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		RetriesTotal:    c.retriesTotal.Load(),
		AvgResponseTime: c.GetAverageResponseTime(),
		ErrorCounts:     make(map[string]int64),
		StatusCodes:     make(map[int]int64),
		Uptime:          time.Since(c.startTime),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		snap.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	c.statusMu.RLock()
	for k, v := range c.statusCodes {
		snap.StatusCodes[k] = v.Load()
	}
	c.statusMu.RUnlock()

	return snap
}

// ErrorRate returns the share of requests that failed.
func (s *Snapshot) ErrorRate() float64 {
	if s.RequestsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.RequestsTotal)
}

// Summary returns the snapshot as log fields.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"requests":          s.RequestsTotal,
		"errors":            s.ErrorsTotal,
		"retries":           s.RetriesTotal,
		"error_rate":        s.ErrorRate(),
		"avg_response_time": s.AvgResponseTime.String(),
		"error_counts":      s.ErrorCounts,
		"uptime":            s.Uptime.Round(time.Millisecond).String(),
	}
}
