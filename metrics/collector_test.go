package metrics

import "testing"

func TestCollectorIncrementMethods(t *testing.T) {
	c := NewCollector(3)

	c.IncJobStarted()
	c.IncJobFinished()
	c.IncJobFinished()
	c.IncJobExcepted()
	c.IncBarrierEntered()
	c.IncBarrierEntered()
	c.IncBarrierCleared()
	c.IncFramesSent()
	c.IncFramesReceived()
	c.IncSpawnFailure()

	s := c.Snapshot()
	if s.JobsStarted != 1 {
		t.Errorf("JobsStarted = %d, want 1", s.JobsStarted)
	}
	if s.JobsFinished != 2 {
		t.Errorf("JobsFinished = %d, want 2", s.JobsFinished)
	}
	if s.JobsExcepted != 1 {
		t.Errorf("JobsExcepted = %d, want 1", s.JobsExcepted)
	}
	if s.BarrierEntered != 2 {
		t.Errorf("BarrierEntered = %d, want 2", s.BarrierEntered)
	}
	if s.BarrierCleared != 1 {
		t.Errorf("BarrierCleared = %d, want 1", s.BarrierCleared)
	}
	if s.FramesSent != 1 || s.FramesReceived != 1 {
		t.Errorf("FramesSent/Received = %d/%d, want 1/1", s.FramesSent, s.FramesReceived)
	}
	if s.SpawnFailures != 1 {
		t.Errorf("SpawnFailures = %d, want 1", s.SpawnFailures)
	}
	if s.Rank != 3 {
		t.Errorf("Rank = %d, want 3", s.Rank)
	}
}

func TestCollectorNilReceiverSafety(t *testing.T) {
	var c *Collector

	c.IncJobStarted()
	c.IncJobFinished()
	c.IncJobExcepted()
	c.IncBarrierEntered()
	c.IncBarrierCleared()
	c.IncFramesSent()
	c.IncFramesReceived()
	c.IncSpawnFailure()

	if s := c.Snapshot(); s.JobsStarted != 0 {
		t.Errorf("nil collector snapshot JobsStarted = %d, want 0", s.JobsStarted)
	}
}

func TestCollectorSnapshotImmutability(t *testing.T) {
	c := NewCollector(0)
	c.IncJobStarted()
	s1 := c.Snapshot()
	c.IncJobStarted()
	if s1.JobsStarted != 1 {
		t.Errorf("s1.JobsStarted = %d, want 1 (snapshot should be frozen)", s1.JobsStarted)
	}
	s2 := c.Snapshot()
	if s2.JobsStarted != 2 {
		t.Errorf("s2.JobsStarted = %d, want 2", s2.JobsStarted)
	}
}
