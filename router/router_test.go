package router

import (
	"errors"
	"testing"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/wire"
)

func TestRegisterActionDuplicate(t *testing.T) {
	r := New(true, func(wire.HelloResponse) error { return nil })
	if err := r.RegisterAction(wire.TypeKill, func(idset.Set, map[string]any) error { return nil }); err != nil {
		t.Fatal(err)
	}
	err := r.RegisterAction(wire.TypeKill, func(idset.Set, map[string]any) error { return nil })
	if err == nil {
		t.Fatal("expected EXISTS error on duplicate registration")
	}
}

func TestForwardOnRootInvokesLocalAction(t *testing.T) {
	var fannedOut wire.HelloResponse
	r := New(true, func(resp wire.HelloResponse) error {
		fannedOut = resp
		return nil
	})
	invoked := false
	_ = r.RegisterAction(wire.TypeStateUpdate, func(ranks idset.Set, data map[string]any) error {
		invoked = true
		return nil
	})

	if err := r.Forward(wire.TypeStateUpdate, idset.New(0, 1), nil); err != nil {
		t.Fatal(err)
	}
	if !invoked {
		t.Error("root should invoke its own registered action on Forward")
	}
	if fannedOut.Type != wire.TypeStateUpdate {
		t.Errorf("fan-out type = %v, want state-update", fannedOut.Type)
	}
}

func TestForwardOnInternalRankSkipsLocalAction(t *testing.T) {
	r := New(false, func(wire.HelloResponse) error { return nil })
	invoked := false
	_ = r.RegisterAction(wire.TypeKill, func(idset.Set, map[string]any) error {
		invoked = true
		return nil
	})
	if err := r.Forward(wire.TypeKill, idset.New(1), nil); err != nil {
		t.Fatal(err)
	}
	if invoked {
		t.Error("internal rank must not invoke its own action on Forward (it already dispatched via Receive)")
	}
}

func TestReceiveForwardsThenInvokesAction(t *testing.T) {
	var fannedOut bool
	r := New(false, func(wire.HelloResponse) error {
		fannedOut = true
		return nil
	})
	invoked := false
	_ = r.RegisterAction(wire.TypeKill, func(idset.Set, map[string]any) error {
		invoked = true
		return nil
	})
	handled, err := r.Receive(wire.TypeKill, idset.New(1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !handled {
		t.Error("expected handled=true when an action is registered")
	}
	if !fannedOut {
		t.Error("Receive must forward downstream before (or regardless of) invoking the local action")
	}
	if !invoked {
		t.Error("expected local action to be invoked")
	}
}

func TestReceiveMissingHandlerNotError(t *testing.T) {
	r := New(false, func(wire.HelloResponse) error { return nil })
	handled, err := r.Receive(wire.Type("unknown-type"), idset.New(1), nil)
	if err != nil {
		t.Fatalf("missing handler must not be an error, got %v", err)
	}
	if handled {
		t.Error("expected handled=false for unregistered type")
	}
}

func TestForwardAggregatesFanoutError(t *testing.T) {
	boom := errors.New("boom")
	r := New(false, func(wire.HelloResponse) error { return boom })
	err := r.Forward(wire.TypeKill, idset.New(1), nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected aggregated error to wrap fan-out error, got %v", err)
	}
}
