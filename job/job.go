// Package job implements the per-job, per-rank record: the distributed
// job's identity, the rank-local view of its progress (start/finish/
// release idsets), its barrier, and its local shell handle, if any
// (spec.md §3 "Job record", §4.5 "Job state and exec engine").
package job

import (
	"github.com/pithecene-io/derp/barrier"
	"github.com/pithecene-io/derp/idset"
)

// State is this rank's view of a job's local state machine (spec.md §4.5
// "State machine per job, per rank").
type State int

const (
	// StateInit is entered when the job record is created.
	StateInit State = iota
	// StateRunning is entered once the local shell reports RUNNING.
	StateRunning
	// StateBarrier is entered while the local shell is inside a barrier
	// cycle.
	StateBarrier
	// StateFinished is entered once the local shell completes or its
	// spawn failed.
	StateFinished
	// StateSkip is entered for ranks not in the job's target rank set;
	// it has no further local transitions.
	StateSkip
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateBarrier:
		return "BARRIER"
	case StateFinished:
		return "FINISHED"
	case StateSkip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// ShellHandle is the minimal surface the job record needs from a locally
// spawned job shell: enough to deliver a kill signal. The exec engine
// owns the rest of the shell's lifecycle (spec.md §4.6, package shell).
type ShellHandle interface {
	Signal(sig int) error
}

// Record is one job's state on one rank.
type Record struct {
	ID     uint64
	UserID uint32

	// TraceID is the request envelope id the job was started with
	// (spec.md §4.9 domain stack), propagated unchanged to every rank
	// that creates a record for this job. Empty on jobs bootstrapped
	// from a hello-response state-update rather than a direct start.
	TraceID string

	// Ranks is the full set of ranks the job runs on, cluster-wide.
	Ranks idset.Set
	// SubtreeRanks is Ranks ∩ this rank's subtree — the ranks this rank
	// is responsible for aggregating.
	SubtreeRanks idset.Set

	StartRanks   idset.Set
	FinishRanks  idset.Set
	ReleaseRanks idset.Set

	Barrier *barrier.Barrier

	// Status is the highest exit code observed within SubtreeRanks.
	Status int

	// Severity is the severity carried by the most recent exception
	// reported for this job, if any (spec.md §4.5 "{severity, type,
	// note}"). 0 means the job cannot continue; root gates its SIGTERM
	// kill fanout on this value (spec.md §8 scenario 4).
	Severity int

	State State

	// Local is the handle to this rank's own spawned job shell, or nil
	// if this rank is not a target of the job.
	Local ShellHandle

	// Request is the originating client request envelope. Root only;
	// nil everywhere else.
	Request any
}

// New creates a job record for id/userid spanning ranks, computing this
// rank's SubtreeRanks as ranks ∩ rankSubtree. traceID is the request
// envelope id to correlate this record's logs and events with; pass ""
// where none is available.
func New(id uint64, userID uint32, ranks, rankSubtree idset.Set, traceID string) *Record {
	return &Record{
		ID:           id,
		UserID:       userID,
		TraceID:      traceID,
		Ranks:        ranks,
		SubtreeRanks: ranks.Intersect(rankSubtree),
		Barrier:      barrier.New(),
		State:        StateInit,
	}
}

// IsLocalTarget reports whether self is itself one of the job's target
// ranks, i.e. whether this rank must spawn a local shell.
func (r *Record) IsLocalTarget(self idset.Rank) bool {
	return r.Ranks.Contains(self)
}

// AddStart unions ranks into StartRanks, restricted to SubtreeRanks: an
// event for a rank outside this rank's responsibility is ignored in
// place, preserving the invariant start_ranks ⊆ subtree_ranks (spec.md §8).
func (r *Record) AddStart(ranks idset.Set) {
	r.StartRanks = r.StartRanks.Union(ranks.Intersect(r.SubtreeRanks))
}

// AddFinish unions ranks into FinishRanks, restricted to SubtreeRanks.
func (r *Record) AddFinish(ranks idset.Set) {
	r.FinishRanks = r.FinishRanks.Union(ranks.Intersect(r.SubtreeRanks))
}

// AddRelease unions ranks into ReleaseRanks, restricted to SubtreeRanks.
func (r *Record) AddRelease(ranks idset.Set) {
	r.ReleaseRanks = r.ReleaseRanks.Union(ranks.Intersect(r.SubtreeRanks))
}

// StartConverged reports whether every rank this rank is responsible for
// has reported start.
func (r *Record) StartConverged() bool {
	return r.StartRanks.Equal(r.SubtreeRanks)
}

// FinishConverged reports whether every rank this rank is responsible for
// has reported finish.
func (r *Record) FinishConverged() bool {
	return r.FinishRanks.Equal(r.SubtreeRanks)
}

// ObserveStatus folds status into Status via max — the reduction spec.md
// §4.5 specifies for aggregating exit codes across ranks.
func (r *Record) ObserveStatus(status int) {
	if status > r.Status {
		r.Status = status
	}
}
