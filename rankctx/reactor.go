package rankctx

import (
	"github.com/pithecene-io/derp/transport"
)

// NotifyFromKey is the data key the reactor stashes the sending child's
// rank under before invoking a notify handler, so handlers that need to
// know which child reported (e.g. to validate against SubtreeRanks) don't
// require a wider NotifyFn signature change.
const NotifyFromKey = "_from"

// ClientHandler processes a client request. Set by package exec before
// Run is called; nil on non-root ranks.
type ClientHandler func(req ClientRequest)

// LocalHandler processes an event from this rank's own spawned job
// shell. Set by package exec before Run is called.
type LocalHandler func(ev LocalEvent)

// Handlers bundles the two handler hooks Run dispatches to outside the
// router's action/notify registries.
type Handlers struct {
	Client ClientHandler
	Local  LocalHandler
}

// Run drains inbound transport frames, client requests and local shell
// events in a single goroutine until Stop is called or the inbound
// channel closes (spec.md §5: one reactor per rank, no shared-memory
// concurrency within a rank).
func (c *Context) Run(h Handlers) {
	for {
		select {
		case <-c.stop:
			return
		case f, ok := <-c.inbound:
			if !ok {
				return
			}
			c.Metrics.IncFramesReceived()
			c.dispatchFrame(f)
		case req := <-c.ClientReqs:
			if h.Client != nil {
				h.Client(req)
			}
		case ev := <-c.LocalEvents:
			if h.Local != nil {
				h.Local(ev)
			}
		case <-c.helloTimerC:
			c.helloTimerC = nil
			if resp, ok := c.Hello.Pop(); ok {
				_ = c.fanOut(resp)
			}
		}
	}
}

func (c *Context) dispatchFrame(f transport.Frame) {
	switch f.Direction {
	case transport.Action:
		if _, err := c.Router.Receive(f.Type, f.Idset, f.Data); err != nil {
			c.Log.Warn("action dispatch failed", map[string]any{"type": string(f.Type), "err": err.Error()})
		}
	case transport.Notify:
		notify, ok := c.Router.Notify(f.Type)
		if !ok {
			c.Log.Warn("no notify handler registered", map[string]any{"type": string(f.Type)})
			return
		}
		data := f.Data
		if data == nil {
			data = map[string]any{}
		}
		data[NotifyFromKey] = uint32(f.From)
		if err := notify(f.Idset, data); err != nil {
			c.Log.Warn("notify dispatch failed", map[string]any{"type": string(f.Type), "err": err.Error()})
		}
	}
}
