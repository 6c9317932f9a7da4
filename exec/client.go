package exec

import (
	"github.com/google/uuid"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/job"
	"github.com/pithecene-io/derp/rankctx"
	"github.com/pithecene-io/derp/rerr"
	"github.com/pithecene-io/derp/wire"
)

// handleClient dispatches a client request; only meaningful on root
// (spec.md §6 "Client -> root"). Non-root ranks never receive
// ClientRequests since derpctl always dials root.
func (e *Engine) handleClient(req rankctx.ClientRequest) {
	switch req.Kind {
	case "exec.start":
		e.handleExecStart(req)
	case "exec.kill":
		e.handleExecKill(req)
	case "ping":
		e.handlePing(req)
	}
}

// handleExecStart creates the client-supplied job's root-side record and
// forwards a start action across the whole overlay restricted to the
// request's target ranks (spec.md §4.5, §6 "exec.start": the request
// carries its own id; a duplicate exec.start for a job id still in
// flight is rejected with EXISTS).
func (e *Engine) handleExecStart(req rankctx.ClientRequest) {
	start, ok := req.Data.(wire.ExecStartRequest)
	if !ok {
		return
	}
	id := start.ID

	if existing, ok := e.ctx.Jobs[id]; ok && existing.State != job.StateSkip {
		if req.Reply != nil {
			req.Reply <- rerr.New(rerr.Exists, "job %d: already exists", id)
		}
		return
	}

	reqID := start.ReqID
	if reqID == "" {
		reqID = uuid.NewString()
	}

	r := job.New(id, start.UserID, start.Ranks, e.ctx.Topology.Subtree(e.ctx.Self), reqID)
	r.Request = req
	e.ctx.Jobs[id] = r

	if !r.IsLocalTarget(e.ctx.Self) {
		r.State = job.StateSkip
	}
	_ = e.ctx.Router.Forward(wire.TypeStart, start.Ranks, map[string]any{
		"id": id, "userid": start.UserID, "reqid": reqID,
	})
}

// handleExecKill forwards a kill action restricted to the request's
// target ranks (spec.md §6 "exec.kill", §8 scenario 4/5).
func (e *Engine) handleExecKill(req rankctx.ClientRequest) {
	kill, ok := req.Data.(wire.ExecKillRequest)
	if !ok {
		return
	}
	err := e.ctx.Router.Forward(wire.TypeKill, kill.Ranks, map[string]any{
		"id": kill.ID, "signal": kill.Signal,
	})
	if req.Reply != nil {
		if err != nil {
			req.Reply <- err
		} else {
			req.Reply <- struct{}{}
		}
	}
}

// handlePing starts a new ping aggregation and forwards the ping action
// restricted to the request's target ranks (spec.md §6 "ping").
func (e *Engine) handlePing(req rankctx.ClientRequest) {
	ping, ok := req.Data.(wire.PingRequest)
	if !ok {
		return
	}

	e.mu.Lock()
	e.nextPingID++
	id := e.nextPingID
	e.mu.Unlock()

	e.pingReqs[id] = req
	e.pings[id] = &pingState{expected: ping.Ranks, entered: idset.Set{}}
	_ = e.ctx.Router.Forward(wire.TypePing, ping.Ranks, map[string]any{"pingid": id})
}
