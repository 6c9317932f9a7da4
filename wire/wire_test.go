package wire

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/derp/idset"
)

func TestHelloResponseMsgpackRoundTrip(t *testing.T) {
	hr := HelloResponse{
		Type:  TypeStateUpdate,
		Idset: idset.New(0, 1, 2, 3),
		Data: map[string]any{
			"jobs": []any{"placeholder"},
		},
	}
	b, err := msgpack.Marshal(&hr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got HelloResponse
	if err := msgpack.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != hr.Type || !got.Idset.Equal(hr.Idset) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, hr)
	}
}

func TestExecStartRequestRoundTrip(t *testing.T) {
	req := ExecStartRequest{ID: 42, UserID: 1000, Ranks: idset.New(0, 1, 2, 3)}
	b, err := msgpack.Marshal(&req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got ExecStartRequest
	if err := msgpack.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ID != req.ID || got.UserID != req.UserID || !got.Ranks.Equal(req.Ranks) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, req)
	}
}

func TestExceptionPayloadMapRoundTrip(t *testing.T) {
	p := ExceptionPayload{Severity: 0, Kind: "spawn-failed", Note: "exec: permission denied"}
	got := ExceptionFromMap(p.Map())
	if got != p {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestExceptionFromMap_MissingSeverityDefaultsZero(t *testing.T) {
	got := ExceptionFromMap(map[string]any{"type": "wait-failed"})
	if got.Severity != 0 {
		t.Errorf("Severity = %d, want 0", got.Severity)
	}
	if got.Kind != "wait-failed" {
		t.Errorf("Kind = %q, want wait-failed", got.Kind)
	}
}
