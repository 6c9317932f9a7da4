// Package peer implements the per-child connection table on an internal
// rank: which children are connected, their subtree rank sets, and the
// pending-response queue each accumulates while disconnected (spec.md §3
// "Peer (child) record", §4.1 "Peer table").
package peer

import (
	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/rerr"
	"github.com/pithecene-io/derp/wire"
)

// Envelope is an opaque route handle for a connected child: whatever the
// transport needs to address a reply back down the hello stream that
// child opened. The core never inspects it beyond SenderRank.
type Envelope interface {
	SenderRank() idset.Rank
}

// Shared is a reference-counted, immutable hello response shared across
// the pending queues of multiple children (spec.md §9 "Cyclic or shared
// ownership"). No child mutates the payload; the last releaser is
// responsible for any cleanup the caller attaches via OnRelease.
type Shared struct {
	Response  wire.HelloResponse
	refs      int
	OnRelease func()
}

// NewShared wraps a hello response for fan-out to multiple children.
func NewShared(resp wire.HelloResponse) *Shared {
	return &Shared{Response: resp}
}

func (s *Shared) retain() *Shared {
	s.refs++
	return s
}

// Release drops one reference; when the last reference is dropped,
// OnRelease (if set) runs.
func (s *Shared) Release() {
	s.refs--
	if s.refs <= 0 && s.OnRelease != nil {
		s.OnRelease()
	}
}

// Peer is the per-child connection record on an internal rank.
type Peer struct {
	Rank         idset.Rank
	SubtreeIdset idset.Set
	Connected    bool
	Envelope     Envelope
	Pending      []*Shared
}

// Responder delivers a restricted hello response to a connected child.
// The idset on resp is always the intersection of the original target set
// with the child's own subtree.
type Responder func(envelope Envelope, resp wire.HelloResponse) error

// Table is the per-rank set of immediate-child peers.
type Table struct {
	peers map[idset.Rank]*Peer
	order []idset.Rank // topology order, for deterministic iteration
}

// NewTable builds a peer table from the immediate children of a rank, each
// with its precomputed subtree idset.
func NewTable(children []idset.Rank, subtreeOf func(idset.Rank) idset.Set) *Table {
	t := &Table{peers: make(map[idset.Rank]*Peer, len(children))}
	for _, c := range children {
		t.peers[c] = &Peer{Rank: c, SubtreeIdset: subtreeOf(c)}
		t.order = append(t.order, c)
	}
	return t
}

// Connect marks the peer identified by envelope's sender rank as
// connected, storing the envelope as its route handle. Returns a
// PROTOCOL-kind error if the sender is not a child of this rank.
func (t *Table) Connect(envelope Envelope) error {
	rank := envelope.SenderRank()
	p, ok := t.peers[rank]
	if !ok {
		return rerr.New(rerr.Protocol, "unknown peer rank %d", rank)
	}
	p.Envelope = envelope
	p.Connected = true
	return nil
}

// Disconnect clears the connected flag for the peer addressed by
// envelope's sender rank. Pending responses are preserved for replay on
// reconnect.
func (t *Table) Disconnect(envelope Envelope) error {
	rank := envelope.SenderRank()
	p, ok := t.peers[rank]
	if !ok {
		return rerr.New(rerr.Protocol, "unknown peer rank %d", rank)
	}
	p.Connected = false
	p.Envelope = nil
	return nil
}

// Peers returns the peers in topology order.
func (t *Table) Peers() []*Peer {
	out := make([]*Peer, 0, len(t.order))
	for _, r := range t.order {
		out = append(out, t.peers[r])
	}
	return out
}

// Peer returns the peer for rank, if any.
func (t *Table) Peer(rank idset.Rank) (*Peer, bool) {
	p, ok := t.peers[rank]
	return p, ok
}

// ForwardResponse fans a hello response out to every child whose subtree
// intersects the response's target idset. Connected children are replied
// to immediately, restricted to the intersection; disconnected children
// queue a shared reference for replay on reconnect (spec.md §4.1).
//
// respond is invoked once per connected, intersecting child; its error, if
// any, is collected and the first one is returned after all children have
// been attempted (spec.md §4.3 "fanout errors are aggregated").
func (t *Table) ForwardResponse(resp wire.HelloResponse, respond Responder) error {
	var firstErr error
	shared := NewShared(resp)
	anyQueued := false
	for _, rank := range t.order {
		p := t.peers[rank]
		restricted := resp.Idset.Intersect(p.SubtreeIdset)
		if restricted.Empty() {
			continue
		}
		if p.Connected {
			out := resp
			out.Idset = restricted
			if err := respond(p.Envelope, out); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.Pending = append(p.Pending, shared.retain())
		anyQueued = true
	}
	if !anyQueued {
		// No disconnected child queued a reference; nothing else retains
		// shared, so release it immediately (refs never went above 0).
		shared.Release()
	}
	return firstErr
}

// ProcessPending drains rank's pending queue in FIFO order, delivering
// each queued response restricted to rank's subtree, and clears the
// queue. Call this after Connect to replay state missed while
// disconnected.
func (t *Table) ProcessPending(rank idset.Rank, respond Responder) error {
	p, ok := t.peers[rank]
	if !ok {
		return rerr.New(rerr.Protocol, "unknown peer rank %d", rank)
	}
	pending := p.Pending
	p.Pending = nil
	var firstErr error
	for _, shared := range pending {
		restricted := shared.Response.Idset.Intersect(p.SubtreeIdset)
		if !restricted.Empty() {
			out := shared.Response
			out.Idset = restricted
			if err := respond(p.Envelope, out); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		shared.Release()
	}
	return firstErr
}
