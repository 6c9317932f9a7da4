// Package helloresp implements the per-rank hello responder: it
// accumulates per-rank job additions into a batched state-update hello
// response, coalesced behind a short timer (spec.md §4.2).
package helloresp

import (
	"time"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/wire"
)

// DefaultCoalesceWindow is the coalescing delay between the first push and
// the scheduled pop, bounding fan-out rate at the cost of at most one
// timer's worth of added latency (spec.md §4.2).
const DefaultCoalesceWindow = 15 * time.Millisecond

// Record is one accumulated state-update entry.
type Record struct {
	JobID  uint64
	UserID uint32
	Ranks  idset.Set
}

// Responder accumulates Records and their union idset until Pop is
// called, clearing the accumulator. It owns no timer itself — the owning
// reactor schedules Pop via its own timer facility (spec.md §5: timers are
// suspension points registered with the single per-rank event loop, not
// goroutines private to this package).
type Responder struct {
	records  []Record
	aggregate idset.Set
}

// New creates an empty Responder.
func New() *Responder {
	return &Responder{}
}

// Push appends a record and unions its ranks into the running aggregate.
// Returns true if this push is the first since the last Pop — the signal
// the caller uses to arm its coalescing timer.
func (r *Responder) Push(jobID uint64, userID uint32, ranks idset.Set) bool {
	first := len(r.records) == 0
	r.records = append(r.records, Record{JobID: jobID, UserID: userID, Ranks: ranks})
	r.aggregate = r.aggregate.Union(ranks)
	return first
}

// Pending reports whether there are unflushed records.
func (r *Responder) Pending() bool {
	return len(r.records) > 0
}

// Pop emits a batched state-update hello response for everything
// accumulated since the last Pop, and clears the accumulator. Returns
// false if there was nothing to emit.
func (r *Responder) Pop() (wire.HelloResponse, bool) {
	if len(r.records) == 0 {
		return wire.HelloResponse{}, false
	}
	jobs := make([]wire.StateUpdateJob, len(r.records))
	for i, rec := range r.records {
		jobs[i] = wire.StateUpdateJob{ID: rec.JobID, UserID: rec.UserID, Type: "add", Ranks: rec.Ranks}
	}
	resp := wire.HelloResponse{
		Type:  wire.TypeStateUpdate,
		Idset: r.aggregate,
		Data:  map[string]any{"jobs": jobs},
	}
	r.records = nil
	r.aggregate = idset.Set{}
	return resp, true
}
