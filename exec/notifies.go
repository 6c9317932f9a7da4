package exec

import (
	"github.com/pithecene-io/derp/barrier"
	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/rankctx"
	"github.com/pithecene-io/derp/rerr"
	"github.com/pithecene-io/derp/wire"
)

// notifyStart accumulates a child's start notify. Once every rank in this rank's subtree has reported,
// either the job is fully started (root) or this rank re-notifies its
// own parent with its whole converged subtree (spec.md §4.5).
func (e *Engine) notifyStart(ranks idset.Set, data map[string]any) error {
	id := uint64FromData(data, "id")
	r, ok := e.ctx.Jobs[id]
	if !ok {
		return nil
	}
	r.AddStart(ranks)
	e.checkStartProgress(r)
	return nil
}

// notifyFinish accumulates a child's finish notify and its reported exit
// status (max-reduced across the subtree), bubbling up once converged.
func (e *Engine) notifyFinish(ranks idset.Set, data map[string]any) error {
	id := uint64FromData(data, "id")
	r, ok := e.ctx.Jobs[id]
	if !ok {
		return nil
	}
	r.AddFinish(ranks)
	r.ObserveStatus(statusFromData(data))
	if !r.FinishConverged() {
		return nil
	}
	e.ctx.Metrics.IncJobFinished()
	if e.ctx.Topology.IsRoot(e.ctx.Self) {
		if req, ok := r.Request.(rankctx.ClientRequest); ok && req.Reply != nil {
			req.Reply <- wire.ExecStartResponse{ID: id, Type: "finish", Data: map[string]any{"status": r.Status}}
		}
		return nil
	}
	parent, ok := e.ctx.Topology.Parent(e.ctx.Self)
	if !ok {
		return nil
	}
	return e.ctx.Transport.SendUp(parent, wire.TypeFinish, r.SubtreeRanks, map[string]any{"id": id, "status": r.Status})
}

// notifyBarrierEnter records a child's subtree-wide barrier entry and
// re-checks this rank's own barrier progress (spec.md §4.4).
func (e *Engine) notifyBarrierEnter(ranks idset.Set, data map[string]any) error {
	id := uint64FromData(data, "id")
	r, ok := e.ctx.Jobs[id]
	if !ok {
		return nil
	}
	from, _ := data[rankctx.NotifyFromKey].(uint32)
	if err := r.Barrier.Enter(barrier.Envelope(idset.Rank(from)), ranks, r.Barrier.Sequence); err != nil {
		return err
	}
	e.ctx.Metrics.IncBarrierEntered()
	e.checkBarrierProgress(r)
	return nil
}

// notifyException bubbles a job-fatal status toward root, max-reducing
// as it goes (spec.md §7 JOB_FATAL, §4.5).
func (e *Engine) notifyException(ranks idset.Set, data map[string]any) error {
	id := uint64FromData(data, "id")
	r, ok := e.ctx.Jobs[id]
	if !ok {
		return nil
	}
	status := statusFromData(data)
	severity := severityFromData(data)
	kind := kindFromData(data)
	r.ObserveStatus(status)
	e.reportException(r, status, severity, kind, rerr.New(rerr.JobFatal, "job %d: child reported exception (status %d, severity %d)", id, status, severity))
	return nil
}

// notifyPingReply aggregates ping acknowledgements the same way
// notifyStart aggregates job starts: once this rank's whole expected set
// has reported, it either answers the client (root) or re-notifies its
// own parent.
func (e *Engine) notifyPingReply(ranks idset.Set, data map[string]any) error {
	id := uint64FromData(data, "pingid")
	ps, ok := e.pings[id]
	if !ok {
		return nil
	}
	ps.entered = ps.entered.Union(ranks)
	e.maybeCompletePing(id, ps, data)
	return nil
}

func (e *Engine) maybeCompletePing(id uint64, ps *pingState, data map[string]any) {
	if !ps.entered.Equal(ps.expected) {
		return
	}
	delete(e.pings, id)
	if e.ctx.Topology.IsRoot(e.ctx.Self) {
		if req, ok := e.pingReqs[id]; ok && req.Reply != nil {
			req.Reply <- wire.PingResponse{Ranks: ps.expected}
			delete(e.pingReqs, id)
		}
		return
	}
	parent, ok := e.ctx.Topology.Parent(e.ctx.Self)
	if !ok {
		return
	}
	_ = e.ctx.Transport.SendUp(parent, wire.TypePingReply, ps.expected, map[string]any{"pingid": id})
}
