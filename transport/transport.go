// Package transport abstracts the physical channel ranks use to exchange
// hello/forward/notify frames across the overlay (spec.md §1 "transport is
// an external collaborator", §6 "External Interfaces"). The core only ever
// depends on the Transport interface; concrete adapters live alongside it.
package transport

import (
	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/wire"
)

// Direction distinguishes a downstream hello/forward frame from an upstream
// notify (spec.md §6).
type Direction int

const (
	// Action is a parent -> child hello/forward frame.
	Action Direction = iota
	// Notify is a child -> parent notify frame.
	Notify
)

// Frame is one message crossing the wire between two ranks.
type Frame struct {
	From      idset.Rank
	To        idset.Rank
	Direction Direction
	Type      wire.Type
	Idset     idset.Set
	Data      map[string]any
}

// SenderRank implements peer.Envelope, letting a Frame double as the route
// handle a Transport hands back to the peer table on Connect.
func (f Frame) SenderRank() idset.Rank { return f.From }

// Transport is the minimal surface the reactor needs to exchange frames
// with its parent and children.
type Transport interface {
	// SendDown delivers an action frame to a specific child rank.
	SendDown(to idset.Rank, typ wire.Type, ranks idset.Set, data map[string]any) error
	// SendUp delivers a notify frame to this rank's parent.
	SendUp(to idset.Rank, typ wire.Type, ranks idset.Set, data map[string]any) error
	// Subscribe registers self to receive inbound frames and returns the
	// channel they arrive on. Called once per rank at startup.
	Subscribe(self idset.Rank) (<-chan Frame, error)
	// Close releases any held connections.
	Close() error
}
