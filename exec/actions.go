package exec

import (
	"fmt"

	"github.com/pithecene-io/derp/barrier"
	"github.com/pithecene-io/derp/eventlog"
	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/job"
	"github.com/pithecene-io/derp/rerr"
	"github.com/pithecene-io/derp/shell"
	"github.com/pithecene-io/derp/wire"
)

// actionStateUpdate applies a batched job-membership add (spec.md §4.2):
// each entry in data["jobs"] creates (or confirms) the job record for
// this rank's subtree, without itself starting execution.
func (e *Engine) actionStateUpdate(ranks idset.Set, data map[string]any) error {
	jobs, _ := data["jobs"].([]wire.StateUpdateJob)
	for _, j := range jobs {
		e.jobRecord(j.ID, j.UserID, j.Ranks, "")
	}
	return nil
}

// actionStart begins execution of job id across ranks (spec.md §4.5):
// creates the job record if needed and, if this rank is itself one of
// the job's target ranks, spawns the local job shell.
func (e *Engine) actionStart(ranks idset.Set, data map[string]any) error {
	id := uint64FromData(data, "id")
	userID := uint32FromData(data, "userid")
	reqID, _ := data["reqid"].(string)
	r := e.jobRecord(id, userID, ranks, reqID)
	if r.State != job.StateInit {
		return nil
	}
	if !r.IsLocalTarget(e.ctx.Self) {
		r.State = job.StateSkip
		return nil
	}

	cfg := e.ShellTemplate
	cfg.Env = append(append([]string{}, e.ShellTemplate.Env...),
		fmt.Sprintf("DERP_JOB_ID=%d", id),
		fmt.Sprintf("DERP_USER_ID=%d", userID),
	)
	cfg.Barrier = !r.Ranks.Equal(idset.New(e.ctx.Self))
	if !e.spawnLocal(r, cfg) {
		return nil
	}

	r.AddStart(idset.New(e.ctx.Self))
	e.checkStartProgress(r)
	return nil
}

// actionRelease handles a release broadcast for job id's current barrier
// cycle (spec.md §4.4): every addressed rank flushes its own barrier
// state and, if it is a local target, releases its spawned shell.
func (e *Engine) actionRelease(ranks idset.Set, data map[string]any) error {
	id := uint64FromData(data, "id")
	r, ok := e.ctx.Jobs[id]
	if !ok {
		return nil
	}
	r.Barrier.Complete(nil, func(barrier.Envelope, error) {})
	e.ctx.Metrics.IncBarrierCleared()
	if proc, ok := e.shellOf[id]; ok {
		_ = proc.ReplyBarrier(0, nil)
	}
	r.State = job.StateRunning
	e.emit(r, eventlog.KindRelease, 0)
	return nil
}

// actionKill signals job id's local shell with the requested signal, if
// this rank is itself one of the kill's addressed ranks (spec.md §8
// scenario 4/5: a kill fanout can target the job's full rank set or a
// restricted subset, e.g. an explicit exec.kill against part of a running
// job).
func (e *Engine) actionKill(ranks idset.Set, data map[string]any) error {
	id := uint64FromData(data, "id")
	sig, _ := data["signal"].(int)
	if sig == 0 {
		sig = wire.SIGTERM
	}
	r, ok := e.ctx.Jobs[id]
	if !ok {
		return rerr.New(rerr.NotFound, "job %d: unknown", id)
	}
	if !ranks.Contains(e.ctx.Self) || r.Local == nil {
		return nil
	}
	return r.Local.Signal(sig)
}

// actionPing begins (or continues) aggregation of a ping addressed to
// ranks, which on arrival at this rank already equals the address set
// restricted to this rank's subtree (spec.md §4.1 per-child restriction).
// A rank with no further children and nothing else to wait for reports
// immediately; others wait for their children's ping-reply notifies.
func (e *Engine) actionPing(ranks idset.Set, data map[string]any) error {
	id := uint64FromData(data, "pingid")
	ps, ok := e.pings[id]
	if !ok {
		ps = &pingState{expected: ranks}
		e.pings[id] = ps
	}
	if ranks.Contains(e.ctx.Self) {
		ps.entered = ps.entered.Add(e.ctx.Self)
	}
	e.maybeCompletePing(id, ps, data)
	return nil
}
