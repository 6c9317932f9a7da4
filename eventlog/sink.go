// Package eventlog defines the contract for the persistent job-event log
// an adjacent collaborator owns: a KVS-backed store of job lifecycle
// events keyed by rank and job id (spec.md §7 "Persisted state": "external
// KVS-based eventlog is written by an adjacent collaborator and not
// specified here"). derpd depends on the Sink interface, not on any one
// implementation; the sinks in this package are dev/test stand-ins, not
// the authoritative production store.
package eventlog

import (
	"context"
	"time"

	"github.com/pithecene-io/derp/idset"
)

// Kind is the job lifecycle event this record reports.
type Kind string

const (
	KindStart     Kind = "start"
	KindFinish    Kind = "finish"
	KindException Kind = "exception"
	KindRelease   Kind = "release"
)

// Event is one rank's observation of a job lifecycle transition. TraceID
// carries the request envelope id a job was started with (job.Record.TraceID),
// letting every rank's events for one job be correlated without a central
// sequence counter.
type Event struct {
	JobID   uint64
	Rank    idset.Rank
	Kind    Kind
	TraceID string
	Status  int
	At      time.Time
}

// Sink persists a batch of events. Implementations must preserve the
// batch's ordering; callers pass events for a single job mostly, but a
// sink must not assume that.
type Sink interface {
	Write(ctx context.Context, events []Event) error
	Close() error
}

// NopSink discards every event. It is the default when no sink is
// configured, matching the module's treatment of eventlog as an optional
// external collaborator.
type NopSink struct{}

func (NopSink) Write(context.Context, []Event) error { return nil }
func (NopSink) Close() error                         { return nil }

var _ Sink = NopSink{}
