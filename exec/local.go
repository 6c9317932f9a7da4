package exec

import (
	"github.com/pithecene-io/derp/eventlog"
	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/job"
	"github.com/pithecene-io/derp/rankctx"
	"github.com/pithecene-io/derp/rerr"
	"github.com/pithecene-io/derp/wire"
)

// handleLocal processes one event from this rank's own spawned job
// shell: a barrier entry, or a process exit (spec.md §4.5, §8 scenario
// 2/3).
func (e *Engine) handleLocal(ev rankctx.LocalEvent) {
	r, ok := e.ctx.Jobs[ev.JobID]
	if !ok {
		return
	}
	switch ev.Kind {
	case "barrier-enter":
		r.Barrier.EnterLocal(e.ctx.Self)
		r.State = job.StateBarrier
		e.ctx.Metrics.IncBarrierEntered()
		e.checkBarrierProgress(r)
	case "exit":
		e.handleLocalExit(r, ev)
	}
}

func (e *Engine) handleLocalExit(r *job.Record, ev rankctx.LocalEvent) {
	delete(e.shellOf, r.ID)
	r.State = job.StateFinished

	if ev.Err != nil {
		r.ObserveStatus(wire.ExitOther)
		e.emit(r, eventlog.KindException, wire.ExitOther)
		e.reportException(r, wire.ExitOther, 0, "wait-failed", rerr.Wrap(rerr.JobFatal, ev.Err, "job %d: local shell wait failed", r.ID))
		return
	}

	r.ObserveStatus(ev.Code)
	e.emit(r, eventlog.KindFinish, ev.Code)
	r.AddFinish(idset.New(e.ctx.Self))
	if !r.FinishConverged() {
		return
	}
	e.ctx.Metrics.IncJobFinished()
	if e.ctx.Topology.IsRoot(e.ctx.Self) {
		if req, ok := r.Request.(rankctx.ClientRequest); ok && req.Reply != nil {
			req.Reply <- wire.ExecStartResponse{ID: r.ID, Type: "finish", Data: map[string]any{"status": r.Status}}
		}
		return
	}
	parent, ok := e.ctx.Topology.Parent(e.ctx.Self)
	if !ok {
		return
	}
	_ = e.ctx.Transport.SendUp(parent, wire.TypeFinish, r.SubtreeRanks, map[string]any{"id": r.ID, "status": r.Status})
}
