package rpc

import (
	"bytes"
	"io"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		{Kind: "exec.start", Data: map[string]any{"userid": uint32(7), "ranks": "0-3"}},
		{Kind: "exec.kill", Data: map[string]any{"id": uint64(1), "signal": 15, "ranks": "1,3"}},
		{Kind: "ping", Data: map[string]any{"ranks": "0-3"}},
	}
	for _, req := range cases {
		var buf bytes.Buffer
		if err := WriteRequest(&buf, req); err != nil {
			t.Fatalf("WriteRequest(%q): %v", req.Kind, err)
		}
		got, err := ReadRequest(NewFrameDecoder(&buf))
		if err != nil {
			t.Fatalf("ReadRequest(%q): %v", req.Kind, err)
		}
		if got.Kind != req.Kind {
			t.Errorf("Kind = %q, want %q", got.Kind, req.Kind)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := Response{Kind: "finish", Data: map[string]any{"status": 0}}
	var buf bytes.Buffer
	if err := WriteResponse(&buf, resp); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	got, err := ReadResponse(NewFrameDecoder(&buf))
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if got.Kind != "finish" {
		t.Errorf("Kind = %q, want finish", got.Kind)
	}
}

func TestMultipleFramesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteResponse(&buf, Response{Kind: "start"})
	_ = WriteResponse(&buf, Response{Kind: "finish", Data: map[string]any{"status": 0}})

	dec := NewFrameDecoder(&buf)
	first, err := ReadResponse(dec)
	if err != nil || first.Kind != "start" {
		t.Fatalf("first frame = %#v, err = %v", first, err)
	}
	second, err := ReadResponse(dec)
	if err != nil || second.Kind != "finish" {
		t.Fatalf("second frame = %#v, err = %v", second, err)
	}
	if _, err := ReadResponse(dec); err != io.EOF {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	oversized := EncodeFrame(make([]byte, 0))
	oversized[0] = 0xFF // corrupt the length prefix to something huge
	dec := NewFrameDecoder(bytes.NewReader(oversized))
	_, err := dec.ReadFrame()
	fe, ok := err.(*FrameError)
	if !ok || fe.Kind != FrameErrorTooLarge {
		t.Fatalf("err = %v, want FrameErrorTooLarge", err)
	}
}

func TestReadFramePartial(t *testing.T) {
	full := EncodeFrame([]byte("hello"))
	dec := NewFrameDecoder(bytes.NewReader(full[:LengthPrefixSize+2]))
	_, err := dec.ReadFrame()
	fe, ok := err.(*FrameError)
	if !ok || fe.Kind != FrameErrorPartial {
		t.Fatalf("err = %v, want FrameErrorPartial", err)
	}
}
