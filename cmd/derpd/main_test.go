package main

import (
	"testing"

	"github.com/pithecene-io/derp/eventlog"
	"github.com/pithecene-io/derp/rconfig"
)

func TestBuildTransport_DefaultsToInproc(t *testing.T) {
	tr, err := buildTransport(rconfig.TransportConfig{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tr == nil {
		t.Fatal("expected a non-nil transport")
	}
}

func TestBuildTransport_Inproc(t *testing.T) {
	tr, err := buildTransport(rconfig.TransportConfig{Kind: "inproc"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tr == nil {
		t.Fatal("expected a non-nil transport")
	}
}

func TestBuildTransport_Unknown(t *testing.T) {
	_, err := buildTransport(rconfig.TransportConfig{Kind: "carrier-pigeon"})
	if err == nil {
		t.Error("expected error for unknown transport kind")
	}
}

func TestBuildEventSink_DefaultsToNop(t *testing.T) {
	sink, err := buildEventSink(rconfig.EventLogConfig{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := sink.(eventlog.NopSink); !ok {
		t.Errorf("expected eventlog.NopSink, got %T", sink)
	}
}

func TestBuildEventSink_Memory(t *testing.T) {
	sink, err := buildEventSink(rconfig.EventLogConfig{Kind: "memory"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := sink.(*eventlog.MemorySink); !ok {
		t.Errorf("expected *eventlog.MemorySink, got %T", sink)
	}
}

func TestBuildEventSink_FS(t *testing.T) {
	sink, err := buildEventSink(rconfig.EventLogConfig{Kind: "fs", Root: t.TempDir()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sink == nil {
		t.Fatal("expected a non-nil sink")
	}
}

func TestBuildEventSink_S3RequiresBucket(t *testing.T) {
	_, err := buildEventSink(rconfig.EventLogConfig{Kind: "s3"})
	if err == nil {
		t.Error("expected error when s3 sink is configured without a bucket")
	}
}

func TestBuildEventSink_Unknown(t *testing.T) {
	_, err := buildEventSink(rconfig.EventLogConfig{Kind: "carrier-pigeon"})
	if err == nil {
		t.Error("expected error for unknown eventlog kind")
	}
}
