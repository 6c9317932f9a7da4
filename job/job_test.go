package job

import (
	"testing"

	"github.com/pithecene-io/derp/idset"
)

func TestNewComputesSubtreeRanks(t *testing.T) {
	r := New(1, 1000, idset.New(0, 1, 2, 3), idset.New(1, 2), "")
	if got := r.SubtreeRanks.String(); got != "1-2" {
		t.Errorf("SubtreeRanks = %q, want 1-2", got)
	}
	if r.State != StateInit {
		t.Errorf("initial state = %v, want INIT", r.State)
	}
}

func TestIsLocalTarget(t *testing.T) {
	r := New(1, 1000, idset.New(0, 3), idset.New(0, 1, 2, 3), "")
	if !r.IsLocalTarget(0) {
		t.Error("rank 0 should be a local target")
	}
	if r.IsLocalTarget(1) {
		t.Error("rank 1 should not be a local target")
	}
}

func TestAddStartIgnoresOutOfSubtreeRanks(t *testing.T) {
	r := New(1, 1000, idset.New(0, 1, 2, 3), idset.New(1, 2), "") // subtree = {1,2}
	r.AddStart(idset.New(1, 5))                                // 5 is out of subtree, must be dropped
	if got := r.StartRanks.String(); got != "1" {
		t.Errorf("StartRanks = %q, want 1 (rank 5 must be ignored)", got)
	}
	if r.StartConverged() {
		t.Error("should not be converged with only {1} of {1,2} reporting")
	}
	r.AddStart(idset.New(2))
	if !r.StartConverged() {
		t.Error("should converge once {1,2} both report")
	}
}

func TestObserveStatusMax(t *testing.T) {
	r := New(1, 1000, idset.New(0), idset.New(0), "")
	r.ObserveStatus(0)
	r.ObserveStatus(127)
	r.ObserveStatus(1)
	if r.Status != 127 {
		t.Errorf("Status = %d, want 127 (max reduction)", r.Status)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateInit:     "INIT",
		StateRunning:  "RUNNING",
		StateBarrier:  "BARRIER",
		StateFinished: "FINISHED",
		StateSkip:     "SKIP",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
