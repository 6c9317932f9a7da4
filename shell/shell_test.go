package shell

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestProcessRunToCompletion exercises a barrier-less shell: spawn, wait,
// exit code propagation.
func TestProcessRunToCompletion(t *testing.T) {
	p := NewProcess(Config{Path: "/bin/sh", Args: []string{"-c", "exit 0"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	code, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestProcessNonZeroExit(t *testing.T) {
	p := NewProcess(Config{Path: "/bin/sh", Args: []string{"-c", "exit 7"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	code, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
}

// TestProcessBarrierHandshake exercises the literal "enter\n" / "exit=0\n"
// protocol: the child writes "enter" on fd 3, the test replies "exit=0"
// on fd 4, and the child only then exits.
func TestProcessBarrierHandshake(t *testing.T) {
	script := `echo enter >&3; read line <&4; exit 0`
	p := NewProcess(Config{Path: "/bin/sh", Args: []string{"-c", script}, Barrier: true})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-p.BarrierEnter():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for barrier enter")
	}

	if err := p.ReplyBarrier(0, nil); err != nil {
		t.Fatalf("ReplyBarrier: %v", err)
	}

	code, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestClassifySpawnError(t *testing.T) {
	if got := ClassifySpawnError(os.ErrPermission); got != 126 {
		t.Errorf("ClassifySpawnError(ErrPermission) = %d, want 126", got)
	}
	if got := ClassifySpawnError(os.ErrNotExist); got != 127 {
		t.Errorf("ClassifySpawnError(ErrNotExist) = %d, want 127", got)
	}
}
