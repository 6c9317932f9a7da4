// Package wire defines the payload types exchanged on the overlay and with
// clients, per spec.md §6 ("External Interfaces"). All types carry msgpack
// tags so they can ride the same binary framing the rest of the execution
// core uses for the overlay's hello/forward channel.
package wire

import (
	"github.com/pithecene-io/derp/idset"
)

// Type is the message-type tag routed through action/notify handlers
// (spec.md §3 "Action/notification registry").
type Type string

// Message types known to the core (spec.md §6, §4.5).
const (
	TypeStateUpdate  Type = "state-update"
	TypeStart        Type = "start"
	TypeFinish       Type = "finish"
	TypeBarrierEnter Type = "barrier-enter"
	TypeException    Type = "exception"
	TypeRelease      Type = "release"
	TypeKill         Type = "kill"
	TypePing         Type = "ping"
	TypePingReply    Type = "ping-reply"
)

// HelloResponse is the unit of downstream fan-out (spec.md §3 "Hello
// response"). Idset is always a subset of the sender's subtree.
type HelloResponse struct {
	Type Type           `msgpack:"type"`
	Idset idset.Set     `msgpack:"idset"`
	Data  map[string]any `msgpack:"data"`
}

// StateUpdateJob is one record in a state-update{add} batch (spec.md §4.2).
type StateUpdateJob struct {
	ID     uint64    `msgpack:"id"`
	UserID uint32    `msgpack:"userid"`
	Type   string    `msgpack:"type"` // always "add" today
	Ranks  idset.Set `msgpack:"ranks"`
}

// StateUpdatePayload is the `data` field of a state-update hello response.
type StateUpdatePayload struct {
	Jobs []StateUpdateJob `msgpack:"jobs"`
}

// ExecStartRequest is the `exec.start` client request payload. ReqID is
// the request envelope id derpctl stamps on the call (a uuid.NewString()
// value); root echoes it back into the job record as job.Record.TraceID
// for cross-rank log correlation, generating one itself if the client
// left it blank.
type ExecStartRequest struct {
	ID     uint64    `msgpack:"id"`
	UserID uint32    `msgpack:"userid"`
	Ranks  idset.Set `msgpack:"ranks"`
	ReqID  string    `msgpack:"reqid,omitempty"`
}

// ExecStartResponse is one frame of the `exec.start` streaming response.
type ExecStartResponse struct {
	ID   uint64         `msgpack:"id"`
	Type string         `msgpack:"type"` // start | finish | exception | release
	Data map[string]any `msgpack:"data,omitempty"`
}

// ExecKillRequest is the `exec.kill` client request payload.
type ExecKillRequest struct {
	ID     uint64    `msgpack:"id"`
	Signal int       `msgpack:"signal"`
	Ranks  idset.Set `msgpack:"ranks"`
}

// PingRequest is the `ping` client request payload.
type PingRequest struct {
	Ranks idset.Set      `msgpack:"ranks"`
	Data  map[string]any `msgpack:"data,omitempty"`
}

// PingResponse is the `ping` client response payload, returned once every
// addressed rank has replied.
type PingResponse struct {
	Ranks idset.Set `msgpack:"ranks"`
}

// NotifyPayload is the `data` field of an upstream notify (spec.md §6
// "Any rank -> parent (notify, no-response)").
type NotifyPayload struct {
	ID    uint64         `msgpack:"id"`
	Ranks idset.Set      `msgpack:"ranks,omitempty"`
	Extra map[string]any `msgpack:"extra,omitempty"`
}

// ExceptionPayload is the typed shape of an `exception` response/notify's
// `data` field (spec.md §4.5 "it responds to the client request with
// {type: exception, severity, type, note}"). Kind classifies the
// underlying failure (e.g. "spawn-failed", "wait-failed"); Severity 0
// means the job cannot continue, and root's exec.Engine uses it to gate
// the SIGTERM kill fanout (spec.md §8 scenario 4: "rank 3 raises
// exception severity=0 ... fans out kill SIGTERM").
type ExceptionPayload struct {
	Severity int    `msgpack:"severity"`
	Kind     string `msgpack:"type"`
	Note     string `msgpack:"note,omitempty"`
}

// Map converts p to the map[string]any shape ExecStartResponse.Data and
// NotifyPayload.Extra carry on the wire.
func (p ExceptionPayload) Map() map[string]any {
	m := map[string]any{"severity": p.Severity, "type": p.Kind}
	if p.Note != "" {
		m["note"] = p.Note
	}
	return m
}

// ExceptionFromMap reconstructs an ExceptionPayload from a decoded data
// map, defaulting Severity to 0 (fatal) when absent.
func ExceptionFromMap(data map[string]any) ExceptionPayload {
	severity, _ := data["severity"].(int)
	kind, _ := data["type"].(string)
	note, _ := data["note"].(string)
	return ExceptionPayload{Severity: severity, Kind: kind, Note: note}
}

// Exit code mapping for local spawn failures (spec.md §4.5 "Tie-breaks and
// numeric policies").
const (
	ExitPermissionDenied = 126
	ExitNotFound         = 127
	ExitHostUnreachable  = 68
	ExitOther            = 1
)

// Signal numbers used by the kill fanout (spec.md §8 scenario 4/5).
const (
	SIGTERM = 15
	SIGKILL = 9
)
