// Package metrics provides per-rank metrics collection for the execution
// core. The Collector accumulates counters for the lifetime of one rank
// process; it is a leaf package with no internal dependencies, adapted
// from the teacher's run-scoped metrics.Collector to the rank-scoped
// counters this domain needs.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of a rank's counters.
type Snapshot struct {
	JobsStarted    int64
	JobsFinished   int64
	JobsExcepted   int64
	BarrierEntered int64
	BarrierCleared int64
	FramesSent     int64
	FramesReceived int64
	SpawnFailures  int64

	Rank uint32
}

// Collector accumulates counters during one rank's lifetime. Thread-safe
// via sync.Mutex. All increment methods are nil-receiver safe, mirroring
// the teacher's Collector so callers need not nil-check before use.
type Collector struct {
	mu sync.Mutex

	jobsStarted    int64
	jobsFinished   int64
	jobsExcepted   int64
	barrierEntered int64
	barrierCleared int64
	framesSent     int64
	framesReceived int64
	spawnFailures  int64

	rank uint32
}

// NewCollector creates a Collector scoped to rank.
func NewCollector(rank uint32) *Collector {
	return &Collector{rank: rank}
}

// IncJobStarted records a job entering RUNNING on this rank's subtree.
func (c *Collector) IncJobStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jobsStarted++
	c.mu.Unlock()
}

// IncJobFinished records a job's subtree converging on FINISH.
func (c *Collector) IncJobFinished() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jobsFinished++
	c.mu.Unlock()
}

// IncJobExcepted records a job-fatal exception observed on this rank.
func (c *Collector) IncJobExcepted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jobsExcepted++
	c.mu.Unlock()
}

// IncBarrierEntered records a barrier-enter processed locally or from a
// child.
func (c *Collector) IncBarrierEntered() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.barrierEntered++
	c.mu.Unlock()
}

// IncBarrierCleared records this rank's subtree reaching barrier
// completion.
func (c *Collector) IncBarrierCleared() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.barrierCleared++
	c.mu.Unlock()
}

// IncFramesSent records a frame handed to the transport by downstream
// fan-out.
func (c *Collector) IncFramesSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesSent++
	c.mu.Unlock()
}

// IncFramesReceived records a frame delivered by the transport.
func (c *Collector) IncFramesReceived() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesReceived++
	c.mu.Unlock()
}

// IncSpawnFailure records a local job shell that failed to spawn.
func (c *Collector) IncSpawnFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.spawnFailures++
	c.mu.Unlock()
}

// Snapshot returns an immutable view of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		JobsStarted:    c.jobsStarted,
		JobsFinished:   c.jobsFinished,
		JobsExcepted:   c.jobsExcepted,
		BarrierEntered: c.barrierEntered,
		BarrierCleared: c.barrierCleared,
		FramesSent:     c.framesSent,
		FramesReceived: c.framesReceived,
		SpawnFailures:  c.spawnFailures,
		Rank:           c.rank,
	}
}
