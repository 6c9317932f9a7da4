package transport

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/wire"
)

func newTestRedis(t *testing.T) (*RedisTransport, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	tr, err := NewRedis(RedisConfig{URL: "redis://" + mr.Addr(), Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	return tr, mr
}

func TestRedisTransportSendDownReceive(t *testing.T) {
	tr, mr := newTestRedis(t)
	defer mr.Close()
	defer tr.Close()

	frames, err := tr.Subscribe(2)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := tr.SendDown(2, wire.TypeStart, idset.New(2, 3), map[string]any{"job": uint64(7)}); err != nil {
		t.Fatalf("SendDown: %v", err)
	}

	select {
	case f := <-frames:
		if f.Type != wire.TypeStart {
			t.Errorf("Type = %v, want start", f.Type)
		}
		if f.Idset.String() != "2-3" {
			t.Errorf("Idset = %q, want 2-3", f.Idset.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestRedisTransportSendUp(t *testing.T) {
	tr, mr := newTestRedis(t)
	defer mr.Close()
	defer tr.Close()

	frames, err := tr.Subscribe(0)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := tr.SendUp(0, wire.TypeFinish, idset.New(5), nil); err != nil {
		t.Fatalf("SendUp: %v", err)
	}
	select {
	case f := <-frames:
		if f.Direction != Notify {
			t.Errorf("Direction = %v, want Notify", f.Direction)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}
