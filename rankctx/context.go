// Package rankctx assembles one rank's full state — topology position,
// peer table, router, job table, transport, logging and metrics — behind
// a single-goroutine reactor loop (spec.md §5 "Concurrency & Resource
// Model": no intra-rank shared-memory concurrency; suspension points are
// modeled as channel sends into this loop). It is the rough analogue of
// the teacher's RunOrchestrator (runtime/run.go), generalized from
// driving one run's IPC ingestion loop to driving one rank's overlay
// event loop for the lifetime of the process.
package rankctx

import (
	"time"

	"github.com/pithecene-io/derp/helloresp"
	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/job"
	"github.com/pithecene-io/derp/metrics"
	"github.com/pithecene-io/derp/peer"
	"github.com/pithecene-io/derp/rlog"
	"github.com/pithecene-io/derp/router"
	"github.com/pithecene-io/derp/topology"
	"github.com/pithecene-io/derp/transport"
	"github.com/pithecene-io/derp/wire"
)

// ClientRequest is a request arriving from a derpctl client, handled only
// when this rank is root (spec.md §6 "Client -> root").
type ClientRequest struct {
	Kind  string // "exec.start" | "exec.kill" | "ping"
	Reply chan<- any
	Data  any
}

// LocalEvent is a notification originating from this rank's own spawned
// job shell: a barrier enter, or a process exit (spec.md §4.5, §8
// scenario 2).
type LocalEvent struct {
	JobID uint64
	Kind  string // "barrier-enter" | "exit"
	Code  int
	Err   error
}

// Context is the full assembled state of one rank.
type Context struct {
	Self     idset.Rank
	Topology *topology.Tree
	Peers    *peer.Table
	Router   *router.Router
	Jobs     map[uint64]*job.Record
	Hello    *helloresp.Responder
	Transport transport.Transport
	Log      *rlog.Logger
	Metrics  *metrics.Collector

	CoalesceWindow time.Duration

	inbound    <-chan transport.Frame
	ClientReqs chan ClientRequest
	LocalEvents chan LocalEvent

	helloTimerC <-chan time.Time
	stop        chan struct{}
}

// New assembles a Context for self within tree, wired to tr for transport.
// Router.RegisterAction/RegisterNotify (done by callers, typically package
// exec) must run before Run is called.
func New(self idset.Rank, tree *topology.Tree, tr transport.Transport) (*Context, error) {
	children := tree.Children(self)
	childRanks := make([]idset.Rank, len(children))
	for i, c := range children {
		childRanks[i] = c.Rank
	}
	peers := peer.NewTable(childRanks, tree.Subtree)

	inbound, err := tr.Subscribe(self)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		Self:        self,
		Topology:    tree,
		Peers:       peers,
		Jobs:        make(map[uint64]*job.Record),
		Hello:       helloresp.New(),
		Transport:   tr,
		Log:         rlog.New(self),
		Metrics:     metrics.NewCollector(uint32(self)),
		CoalesceWindow: helloresp.DefaultCoalesceWindow,
		inbound:     inbound,
		ClientReqs:  make(chan ClientRequest, 16),
		LocalEvents: make(chan LocalEvent, 16),
		stop:        make(chan struct{}),
	}

	ctx.Router = router.New(tree.IsRoot(self), ctx.fanOut)
	return ctx, nil
}

// fanOut is the router.FanOut callback: it hands a hello response to the
// peer table for per-child restricted delivery over the transport.
func (c *Context) fanOut(resp wire.HelloResponse) error {
	return c.Peers.ForwardResponse(resp, func(env peer.Envelope, out wire.HelloResponse) error {
		to := env.SenderRank()
		c.Metrics.IncFramesSent()
		return c.Transport.SendDown(to, out.Type, out.Idset, out.Data)
	})
}

// ArmHelloTimer starts (or restarts) the coalescing timer used to flush
// the hello responder; when it fires, Run pops one batched response and
// fans it out. Package exec neither calls it nor pushes to the hello
// responder: it fans start actions out through the router directly.
func (c *Context) ArmHelloTimer() {
	c.helloTimerC = time.After(c.CoalesceWindow)
}

// HelloTimerC returns the channel Run selects on to flush the hello
// responder; nil if no timer is armed.
func (c *Context) HelloTimerC() <-chan time.Time {
	return c.helloTimerC
}

// Stop requests the reactor loop to exit.
func (c *Context) Stop() {
	close(c.stop)
}

// FanOut hands a response of typ/ranks/data to the peer table for
// per-child restricted downstream delivery, bypassing the router's
// root-only local-dispatch gate. Package exec uses this to broadcast a
// release within a job's subtree from whichever rank declares barrier
// completion, which need not be the overlay root.
func (c *Context) FanOut(typ wire.Type, ranks idset.Set, data map[string]any) error {
	return c.fanOut(wire.HelloResponse{Type: typ, Idset: ranks, Data: data})
}

// Connect marks childRank as connected with route handle env, replaying
// anything queued while it was disconnected.
func (c *Context) Connect(env peer.Envelope) error {
	if err := c.Peers.Connect(env); err != nil {
		return err
	}
	return c.Peers.ProcessPending(env.SenderRank(), func(e peer.Envelope, out wire.HelloResponse) error {
		return c.Transport.SendDown(e.SenderRank(), out.Type, out.Idset, out.Data)
	})
}

// Disconnect marks childRank as disconnected; its pending queue is
// preserved for replay on reconnect.
func (c *Context) Disconnect(env peer.Envelope) error {
	return c.Peers.Disconnect(env)
}
