// Package exec is the job state machine engine: it registers the
// action/notify handlers package rankctx dispatches into, owns the
// mapping from job id to running local shell, and drives each job
// through INIT -> RUNNING -> BARRIER(k) -> ... -> FINISHED (or SKIP on
// ranks outside the job), including kill and exception propagation
// (spec.md §4.5 "Job state and exec engine"). It is the rough analogue
// of the teacher's ExecutorManager (runtime/executor.go) generalized from
// managing one run's executor processes to driving many concurrent jobs'
// distributed state machines on one rank.
package exec

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/pithecene-io/derp/eventlog"
	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/job"
	"github.com/pithecene-io/derp/rankctx"
	"github.com/pithecene-io/derp/rerr"
	"github.com/pithecene-io/derp/shell"
	"github.com/pithecene-io/derp/wire"
)

// ShellFactory creates the local job shell for a spawn. Overridable for
// tests; defaults to shell.NewProcess.
type ShellFactory func(cfg shell.Config) shell.Shell

// pingState tracks one outstanding ping's aggregation at this rank: the
// subtree-restricted set of ranks it is expected to hear from (computed
// from the action's own idset, already restricted per-child by the peer
// table) and the set that has reported in so far.
type pingState struct {
	expected idset.Set
	entered  idset.Set
}

// Engine drives every job's state machine on one rank.
type Engine struct {
	ctx      *rankctx.Context
	spawn    ShellFactory
	shellOf  map[uint64]shell.Shell
	pings    map[uint64]*pingState
	pingReqs map[uint64]rankctx.ClientRequest

	// ShellTemplate is the base Path/Args/Env every locally-spawned job
	// shell is built from (spec.md §4.5 "spawn the local job shell with
	// the given job id and a namespace-scoped environment"); exec.start
	// carries no path/args of its own (spec.md §6), so the command to run
	// is rank-local configuration, not part of the wire request.
	ShellTemplate shell.Config

	// EventSink receives this rank's own job lifecycle observations
	// (start/finish/exception/release of its local shell), forwarded to
	// the external eventlog collaborator spec.md §7 describes. Defaults
	// to eventlog.NopSink{}, so wiring one in is opt-in.
	EventSink eventlog.Sink

	mu         sync.Mutex
	nextPingID uint64 // root only
}

// New creates an Engine bound to ctx. Call Register to wire its handlers
// into ctx.Router before ctx.Run starts.
func New(c *rankctx.Context, spawn ShellFactory) *Engine {
	if spawn == nil {
		spawn = func(cfg shell.Config) shell.Shell { return shell.NewProcess(cfg) }
	}
	return &Engine{
		ctx:       c,
		spawn:     spawn,
		shellOf:   make(map[uint64]shell.Shell),
		pings:     make(map[uint64]*pingState),
		pingReqs:  make(map[uint64]rankctx.ClientRequest),
		EventSink: eventlog.NopSink{},
	}
}

// emit reports a lifecycle event for this rank's own view of job r to
// e.EventSink, best-effort: a dev-sink write failure never affects job
// progress.
func (e *Engine) emit(r *job.Record, kind eventlog.Kind, status int) {
	_ = e.EventSink.Write(context.Background(), []eventlog.Event{{
		JobID:   r.ID,
		Rank:    e.ctx.Self,
		Kind:    kind,
		TraceID: r.TraceID,
		Status:  status,
		At:      time.Now(),
	}})
}

// Register wires every action/notify handler this engine implements into
// e.ctx.Router. Call once, before e.ctx.Run.
func (e *Engine) Register() error {
	actions := map[wire.Type]func(idset.Set, map[string]any) error{
		wire.TypeStateUpdate: e.actionStateUpdate,
		wire.TypeStart:       e.actionStart,
		wire.TypeRelease:     e.actionRelease,
		wire.TypeKill:        e.actionKill,
		wire.TypePing:        e.actionPing,
	}
	for typ, fn := range actions {
		if err := e.ctx.Router.RegisterAction(typ, fn); err != nil {
			return err
		}
	}

	notifies := map[wire.Type]func(idset.Set, map[string]any) error{
		wire.TypeStart:        e.notifyStart,
		wire.TypeFinish:       e.notifyFinish,
		wire.TypeBarrierEnter: e.notifyBarrierEnter,
		wire.TypeException:    e.notifyException,
		wire.TypePingReply:    e.notifyPingReply,
	}
	for typ, fn := range notifies {
		if err := e.ctx.Router.RegisterNotify(typ, fn); err != nil {
			return err
		}
	}
	return nil
}

// Handlers returns the rankctx.Handlers wiring for this engine's client
// request and local shell event processing.
func (e *Engine) Handlers() rankctx.Handlers {
	return rankctx.Handlers{Client: e.handleClient, Local: e.handleLocal}
}

// jobRecord looks up or lazily creates the job record for id, computing this
// rank's SubtreeRanks against the job's target ranks. traceID carries
// through from the root's request envelope id where one is available,
// and is empty for jobs first seen via a hello-response state-update.
func (e *Engine) jobRecord(id uint64, userID uint32, ranks idset.Set, traceID string) *job.Record {
	r, ok := e.ctx.Jobs[id]
	if ok {
		return r
	}
	r = job.New(id, userID, ranks, e.ctx.Topology.Subtree(e.ctx.Self), traceID)
	if !r.IsLocalTarget(e.ctx.Self) {
		r.State = job.StateSkip
	}
	e.ctx.Jobs[id] = r
	return r
}

func statusFromData(data map[string]any) int {
	if v, ok := data["status"].(int); ok {
		return v
	}
	return 0
}

// severityFromData extracts the wire.ExceptionPayload severity carried in
// an action/notify data map, defaulting to 0 (fatal) when absent — the
// same default a local spawn or wait failure reports directly.
func severityFromData(data map[string]any) int {
	if v, ok := data["severity"].(int); ok {
		return v
	}
	return 0
}

func kindFromData(data map[string]any) string {
	v, _ := data["type"].(string)
	return v
}

func uint64FromData(data map[string]any, key string) uint64 {
	v, _ := data[key].(uint64)
	return v
}

func uint32FromData(data map[string]any, key string) uint32 {
	v, _ := data[key].(uint32)
	return v
}

// spawnLocal starts the job's local shell, recording a spawn failure as a
// job-fatal status rather than propagating the raw OS error, per spec.md
// §4.5's numeric exit-code policy for local spawn failures. Reports
// whether the shell is now running.
func (e *Engine) spawnLocal(r *job.Record, cfg shell.Config) bool {
	proc := e.spawn(cfg)
	sctx, cancel := context.WithCancel(context.Background())
	if err := proc.Start(sctx); err != nil {
		cancel()
		e.ctx.Metrics.IncSpawnFailure()
		status := shell.ClassifySpawnError(err)
		r.ObserveStatus(status)
		r.State = job.StateFinished
		e.emit(r, eventlog.KindException, status)
		e.reportException(r, status, 0, "spawn-failed", rerr.Wrap(rerr.JobFatal, err, "job %d: local spawn failed", r.ID))
		return false
	}
	e.shellOf[r.ID] = proc
	r.Local = shellHandle{proc}
	r.State = job.StateRunning
	e.ctx.Metrics.IncJobStarted()
	e.emit(r, eventlog.KindStart, 0)

	go func() {
		for range proc.BarrierEnter() {
			e.ctx.LocalEvents <- rankctx.LocalEvent{JobID: r.ID, Kind: "barrier-enter"}
		}
	}()
	go func() {
		code, waitErr := proc.Wait()
		cancel()
		e.ctx.LocalEvents <- rankctx.LocalEvent{JobID: r.ID, Kind: "exit", Code: code, Err: waitErr}
	}()
	return true
}

// checkStartProgress re-evaluates r's start convergence after a local
// spawn or a child's start notify is recorded (spec.md §4.5): once every
// rank in this rank's subtree has started, either the job is fully
// started (root) or this rank re-notifies its own parent.
func (e *Engine) checkStartProgress(r *job.Record) {
	if !r.StartConverged() {
		return
	}
	if e.ctx.Topology.IsRoot(e.ctx.Self) {
		if req, ok := r.Request.(rankctx.ClientRequest); ok && req.Reply != nil {
			req.Reply <- wire.ExecStartResponse{ID: r.ID, Type: "start"}
		}
		return
	}
	parent, ok := e.ctx.Topology.Parent(e.ctx.Self)
	if !ok {
		return
	}
	_ = e.ctx.Transport.SendUp(parent, wire.TypeStart, r.SubtreeRanks, map[string]any{"id": r.ID})
}

// shellHandle adapts shell.Shell's syscall.Signal-typed Signal to the
// plain-int signature job.ShellHandle declares, avoiding a dependency
// from package job on package shell.
type shellHandle struct{ shell.Shell }

func (s shellHandle) Signal(sig int) error { return s.Shell.Signal(syscall.Signal(sig)) }

// checkBarrierProgress re-evaluates r's barrier after a local or
// upstream entry is recorded (spec.md §4.4): once every rank in this
// rank's subtree has entered, either this rank is the job's LCA and
// declares cluster-wide completion directly, or it notifies its own
// parent and waits for the release to arrive as a normal action.
func (e *Engine) checkBarrierProgress(r *job.Record) {
	if !r.Barrier.SubtreeComplete(r.SubtreeRanks) {
		return
	}
	if !e.ctx.Topology.IsLCA(e.ctx.Self, r.Ranks) {
		parent, ok := e.ctx.Topology.Parent(e.ctx.Self)
		if !ok {
			return
		}
		_ = e.ctx.Transport.SendUp(parent, wire.TypeBarrierEnter, r.SubtreeRanks, map[string]any{"id": r.ID})
		return
	}

	// This rank is the LCA: declare completion directly instead of
	// bubbling further up. actionRelease applies the release to this
	// rank itself (resetting its barrier and releasing its own shell,
	// if any); FanOut then broadcasts the same release to every
	// descendant rank within the job (spec.md GLOSSARY "LCA").
	_ = e.actionRelease(r.SubtreeRanks, map[string]any{"id": r.ID})
	_ = e.ctx.FanOut(wire.TypeRelease, r.Ranks, map[string]any{"id": r.ID})
}

// reportException folds status and severity into r, then either notifies
// this rank's parent (non-root) or finalizes the job locally (root), per
// spec.md §4.5 "root turns it into a client response and, if severity ==
// 0, a SIGTERM fanout". severity 0 means the job cannot continue; kind
// classifies the failure ("spawn-failed", "wait-failed", or whatever a
// child rank reported).
func (e *Engine) reportException(r *job.Record, status, severity int, kind string, cause error) {
	e.ctx.Metrics.IncJobExcepted()
	r.Severity = severity
	if e.ctx.Topology.IsRoot(e.ctx.Self) {
		e.finalizeException(r, status, severity, kind, cause)
		return
	}
	parent, ok := e.ctx.Topology.Parent(e.ctx.Self)
	if !ok {
		return
	}
	payload := wire.ExceptionPayload{Severity: severity, Kind: kind, Note: fmt.Sprintf("%v", cause)}.Map()
	payload["id"] = r.ID
	payload["status"] = status
	_ = e.ctx.Transport.SendUp(parent, wire.TypeException, r.SubtreeRanks, payload)
}

// finalizeException runs only on root: it replies to the originating
// client request (if still pending) with the exception, then fans a
// SIGTERM out across the whole job rank set only if severity == 0 — the
// job cannot continue (spec.md §4.5, §8 scenario 4: "rank 3 raises
// exception severity=0 ... then fans out kill SIGTERM to 0-3"). A
// nonzero severity is reported to the client without killing the job.
func (e *Engine) finalizeException(r *job.Record, status, severity int, kind string, cause error) {
	if req, ok := r.Request.(rankctx.ClientRequest); ok && req.Reply != nil {
		data := wire.ExceptionPayload{Severity: severity, Kind: kind, Note: fmt.Sprintf("%v", cause)}.Map()
		data["status"] = status
		req.Reply <- wire.ExecStartResponse{ID: r.ID, Type: "exception", Data: data}
	}
	if severity != 0 {
		return
	}
	_ = e.ctx.Router.Forward(wire.TypeKill, r.Ranks, map[string]any{
		"id": r.ID, "signal": wire.SIGTERM,
	})
}
