package barrier

import (
	"errors"
	"testing"

	"github.com/pithecene-io/derp/idset"
)

func TestEnterSequenceMismatch(t *testing.T) {
	b := New()
	if err := b.Enter("env", idset.New(1), 1); err == nil {
		t.Fatal("expected mismatch error for wrong sequence")
	}
}

func TestProgressToSubtreeComplete(t *testing.T) {
	b := New()
	subtree := idset.New(0, 1, 2, 3)

	b.EnterLocal(0)
	if b.SubtreeComplete(subtree) {
		t.Fatal("should not be complete after only rank 0 enters")
	}
	if err := b.Enter("e1", idset.New(1), 0); err != nil {
		t.Fatal(err)
	}
	if b.SubtreeComplete(subtree) {
		t.Fatal("should not be complete after {0,1}")
	}
	if err := b.Enter("e2", idset.New(2, 3), 0); err != nil {
		t.Fatal(err)
	}
	if !b.SubtreeComplete(subtree) {
		t.Fatal("should be complete once ranks_entered == subtree_ranks")
	}
}

func TestCompleteRepliesAndResets(t *testing.T) {
	b := New()
	b.EnterLocal(0)
	_ = b.Enter("e1", idset.New(1), 0)

	var replied []Envelope
	b.Complete(nil, func(env Envelope, err error) {
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		replied = append(replied, env)
	})

	if len(replied) != 1 || replied[0] != Envelope("e1") {
		t.Errorf("expected e1 to be replied to, got %v", replied)
	}
	if b.Sequence != 1 {
		t.Errorf("Sequence = %d, want 1", b.Sequence)
	}
	if !b.RanksEntered.Empty() {
		t.Error("RanksEntered should reset to empty")
	}
	if len(b.Pending) != 0 {
		t.Error("Pending should reset to empty")
	}
}

func TestCompleteWithCancellationError(t *testing.T) {
	b := New()
	_ = b.Enter("e1", idset.New(1), 0)
	cancelErr := errors.New("upstream failed")
	var gotErr error
	b.Complete(cancelErr, func(env Envelope, err error) {
		gotErr = err
	})
	if !errors.Is(gotErr, cancelErr) {
		t.Errorf("expected cancellation error to be delivered, got %v", gotErr)
	}
	// sequence still advances even on cancellation so a retry can proceed.
	if b.Sequence != 1 {
		t.Errorf("Sequence = %d, want 1 after cancelled complete", b.Sequence)
	}
}

func TestNextSequenceAfterReset(t *testing.T) {
	b := New()
	_ = b.Enter("e1", idset.New(1), 0)
	b.Complete(nil, func(Envelope, error) {})
	if err := b.Enter("e2", idset.New(1), 0); err == nil {
		t.Fatal("old sequence number should now be rejected")
	}
	if err := b.Enter("e2", idset.New(1), 1); err != nil {
		t.Fatalf("new sequence number should be accepted: %v", err)
	}
}
