// Package barrier implements the distributed barrier used to synchronize
// the job shells of a single job across the ranks they run on (spec.md §3
// "Barrier record", §4.4 "Distributed barrier"). A Barrier is pure state:
// it tracks which subtree ranks have entered the current sequence and the
// downstream envelopes waiting on completion. The exec engine owns the
// transport-facing decisions (whether this rank is the LCA, whether to
// notify upstream, when to release the local shell).
package barrier

import (
	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/rerr"
)

// Envelope is an opaque downstream request handle retained until the
// barrier completes or is cancelled.
type Envelope any

// Barrier tracks one job's barrier state on one rank.
type Barrier struct {
	Sequence     int
	RanksEntered idset.Set
	Pending      []Envelope
}

// New creates a Barrier at sequence 0 with nothing entered.
func New() *Barrier {
	return &Barrier{}
}

// EnterLocal records that rank (this rank's own local job shell) has
// entered the barrier.
func (b *Barrier) EnterLocal(rank idset.Rank) {
	b.RanksEntered = b.RanksEntered.Add(rank)
}

// Enter records a downstream barrier-enter: ranks union into
// RanksEntered and envelope is retained until Complete. seq must match
// Sequence or a PROTOCOL-kind mismatch error is returned (spec.md §4.4
// "validate seq == sequence (else MISMATCH)").
func (b *Barrier) Enter(envelope Envelope, ranks idset.Set, seq int) error {
	if seq != b.Sequence {
		return rerr.New(rerr.Protocol, "barrier sequence mismatch: got %d, want %d", seq, b.Sequence)
	}
	b.RanksEntered = b.RanksEntered.Union(ranks)
	b.Pending = append(b.Pending, envelope)
	return nil
}

// SubtreeComplete reports whether every rank in subtreeRanks (this rank's
// share of the job) has entered the current sequence.
func (b *Barrier) SubtreeComplete(subtreeRanks idset.Set) bool {
	return b.RanksEntered.Equal(subtreeRanks)
}

// Complete replies to every pending envelope with err (nil on success),
// then advances to the next sequence, clearing RanksEntered and Pending.
// It does not touch the local shell — the caller releases or cancels it
// based on the same err.
func (b *Barrier) Complete(err error, reply func(envelope Envelope, err error)) {
	for _, env := range b.Pending {
		reply(env, err)
	}
	b.reset()
}

func (b *Barrier) reset() {
	b.Sequence++
	b.RanksEntered = idset.Set{}
	b.Pending = nil
}
