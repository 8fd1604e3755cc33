package lock

import (
	"sync/atomic"
	"time"
)

// Stats is a read-only snapshot of the statistics of a Service.
// Use Service.Stats() to obtain a snapshot that can be exported
// to any monitoring system.
type Stats struct {
	Acquired          int64         // Number of successful acquisitions
	Timeouts          int64         // Number of acquisitions that timed out
	Cancelled         int64         // Number of acquisitions stopped by the context
	Released          int64         // Number of records deleted by their owner
	ReleaseSkipped    int64         // Number of unlocks that found another owner or no record
	ReleaseErrors     int64         // Number of unlocks that failed against the store
	BackendErrors     int64         // Number of store errors while polling
	Held              int64         // Number of locks currently held by this service
	TotalHoldDuration time.Duration // Cumulative hold duration of released locks
}

// stats uses atomic counters for thread-safe statistics collection.
type stats struct {
	acquired          atomic.Int64
	timeouts          atomic.Int64
	cancelled         atomic.Int64
	released          atomic.Int64
	releaseSkipped    atomic.Int64
	releaseErrors     atomic.Int64
	backendErrors     atomic.Int64
	held              atomic.Int64
	totalHoldDuration atomic.Int64 // stored as nanoseconds
}

func (c *stats) snapshot() Stats {
	return Stats{
		Acquired:          c.acquired.Load(),
		Timeouts:          c.timeouts.Load(),
		Cancelled:         c.cancelled.Load(),
		Released:          c.released.Load(),
		ReleaseSkipped:    c.releaseSkipped.Load(),
		ReleaseErrors:     c.releaseErrors.Load(),
		BackendErrors:     c.backendErrors.Load(),
		Held:              c.held.Load(),
		TotalHoldDuration: time.Duration(c.totalHoldDuration.Load()),
	}
}

func (c *stats) lockAcquired() {
	c.acquired.Add(1)
	c.held.Add(1)
}

// lockDropped is called once per held lock, whatever the unlock outcome.
func (c *stats) lockDropped(since time.Time) {
	c.held.Add(-1)
	c.totalHoldDuration.Add(int64(time.Since(since)))
}

func (c *stats) timeout()       { c.timeouts.Add(1) }
func (c *stats) cancel()        { c.cancelled.Add(1) }
func (c *stats) release()       { c.released.Add(1) }
func (c *stats) releaseSkip()   { c.releaseSkipped.Add(1) }
func (c *stats) releaseFailed() { c.releaseErrors.Add(1) }
func (c *stats) backendError()  { c.backendErrors.Add(1) }
