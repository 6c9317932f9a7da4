// Package router implements the action/notify handler registry and the
// `forward` primitive that fans a typed payload out across the peer table
// and, on root, dispatches it locally (spec.md §3 "Action/notification
// registry", §4.3 "Router and forward").
package router

import (
	"go.uber.org/multierr"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/rerr"
	"github.com/pithecene-io/derp/wire"
)

// ActionFn runs on downstream receipt of a registered type.
type ActionFn func(ranks idset.Set, data map[string]any) error

// NotifyFn runs on upstream receipt of a registered type (i.e. this rank
// is the parent receiving a notify from a child).
type NotifyFn func(ranks idset.Set, data map[string]any) error

// FanOut hands a hello response to the peer table for downstream
// distribution, restricted per-child to each child's subtree.
type FanOut func(resp wire.HelloResponse) error

// Router owns the action/notify registries for one rank and implements
// forward.
type Router struct {
	isRoot  bool
	fanOut  FanOut
	actions map[wire.Type]ActionFn
	notifies map[wire.Type]NotifyFn
}

// New creates a Router. fanOut is called by Forward to distribute a
// constructed hello response to connected/pending children; isRoot
// governs whether Forward also dispatches locally.
func New(isRoot bool, fanOut FanOut) *Router {
	return &Router{
		isRoot:   isRoot,
		fanOut:   fanOut,
		actions:  make(map[wire.Type]ActionFn),
		notifies: make(map[wire.Type]NotifyFn),
	}
}

// RegisterAction registers the action handler for typ. Returns an EXISTS
// error if one is already registered.
func (r *Router) RegisterAction(typ wire.Type, fn ActionFn) error {
	if _, ok := r.actions[typ]; ok {
		return rerr.New(rerr.Exists, "action already registered for %q", typ)
	}
	r.actions[typ] = fn
	return nil
}

// RegisterNotify registers the notify handler for typ. Returns an EXISTS
// error if one is already registered.
func (r *Router) RegisterNotify(typ wire.Type, fn NotifyFn) error {
	if _, ok := r.notifies[typ]; ok {
		return rerr.New(rerr.Exists, "notify already registered for %q", typ)
	}
	r.notifies[typ] = fn
	return nil
}

// Action returns the registered action for typ, if any.
func (r *Router) Action(typ wire.Type) (ActionFn, bool) {
	fn, ok := r.actions[typ]
	return fn, ok
}

// Notify returns the registered notify for typ, if any.
func (r *Router) Notify(typ wire.Type) (NotifyFn, bool) {
	fn, ok := r.notifies[typ]
	return fn, ok
}

// Forward constructs a hello response of the given type targeted at
// ranks, hands it to the peer table for downstream fan-out, and — only on
// root — also invokes the locally registered action for typ, since
// internal ranks already dispatched this type when their own parent
// delivered it (spec.md §4.3).
//
// Fan-out and local-action errors are aggregated with multierr; callers
// that only care whether forwarding succeeded at all can test the result
// with rerr.Is / errors.Is against the specific cause.
func (r *Router) Forward(typ wire.Type, ranks idset.Set, data map[string]any) error {
	resp := wire.HelloResponse{Type: typ, Idset: ranks, Data: data}
	var err error
	if fanErr := r.fanOut(resp); fanErr != nil {
		err = multierr.Append(err, fanErr)
	}
	if r.isRoot {
		if action, ok := r.actions[typ]; ok {
			if actErr := action(ranks, data); actErr != nil {
				err = multierr.Append(err, actErr)
			}
		}
	}
	return err
}

// Receive handles a hello frame arriving from this rank's parent: it
// forwards the same message further downstream, then invokes the
// registered action for typ if one exists. A missing handler is not an
// error — the caller is expected to log and continue per spec.md §4.3.
func (r *Router) Receive(typ wire.Type, ranks idset.Set, data map[string]any) (handled bool, err error) {
	if fwdErr := r.forwardOnly(typ, ranks, data); fwdErr != nil {
		err = multierr.Append(err, fwdErr)
	}
	action, ok := r.actions[typ]
	if !ok {
		return false, err
	}
	if actErr := action(ranks, data); actErr != nil {
		err = multierr.Append(err, actErr)
	}
	return true, err
}

// forwardOnly hands the message to the peer table without the
// root-only local-dispatch step Forward performs; non-root ranks use this
// inside Receive since they already run the action below.
func (r *Router) forwardOnly(typ wire.Type, ranks idset.Set, data map[string]any) error {
	return r.fanOut(wire.HelloResponse{Type: typ, Idset: ranks, Data: data})
}
