package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	// None of these may panic on a nil receiver.
	c.IncSessionStarted()
	c.IncSessionExited()
	c.IncSessionFailed()
	c.AddChunkSent(10)
	c.AddChunkReceived(20)
	c.IncHeartbeatSent()
	c.IncStdinChunkSent()
	c.IncStdinEOFSent()

	snap := c.Snapshot()
	if snap.SessionsStarted != 0 || snap.ChunksSent != 0 {
		t.Errorf("nil collector snapshot should be zero, got %+v", snap)
	}
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()
	c.IncSessionStarted()
	c.IncSessionStarted()
	c.IncSessionExited()
	c.IncSessionFailed()
	c.AddChunkSent(5)
	c.AddChunkSent(7)
	c.AddChunkReceived(100)
	c.IncHeartbeatSent()
	c.IncStdinChunkSent()
	c.IncStdinEOFSent()

	snap := c.Snapshot()
	if snap.SessionsStarted != 2 {
		t.Errorf("SessionsStarted = %d, want 2", snap.SessionsStarted)
	}
	if snap.SessionsExited != 1 || snap.SessionsFailed != 1 {
		t.Errorf("exited/failed = %d/%d, want 1/1", snap.SessionsExited, snap.SessionsFailed)
	}
	if snap.ChunksSent != 2 || snap.BytesSent != 12 {
		t.Errorf("sent = %d chunks / %d bytes, want 2 / 12", snap.ChunksSent, snap.BytesSent)
	}
	if snap.ChunksReceived != 1 || snap.BytesReceived != 100 {
		t.Errorf("received = %d chunks / %d bytes, want 1 / 100", snap.ChunksReceived, snap.BytesReceived)
	}
	if snap.HeartbeatsSent != 1 || snap.StdinChunksSent != 1 || snap.StdinEOFsSent != 1 {
		t.Errorf("heartbeats/stdin/eof = %d/%d/%d, want 1/1/1",
			snap.HeartbeatsSent, snap.StdinChunksSent, snap.StdinEOFsSent)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector()
	c.IncSessionStarted()
	before := c.Snapshot()
	c.IncSessionStarted()
	if before.SessionsStarted != 1 {
		t.Errorf("snapshot mutated after collector update: %d", before.SessionsStarted)
	}
}

func TestTimes_Aggregation(t *testing.T) {
	var times Times
	times.Add(10 * time.Millisecond)
	times.Add(30 * time.Millisecond)
	times.Add(20 * time.Millisecond)

	s := times.Snapshot()
	if s.Count != 3 {
		t.Fatalf("Count = %d, want 3", s.Count)
	}
	if s.Min != 10*time.Millisecond {
		t.Errorf("Min = %v, want 10ms", s.Min)
	}
	if s.Max != 30*time.Millisecond {
		t.Errorf("Max = %v, want 30ms", s.Max)
	}
	if s.Mean != 20*time.Millisecond {
		t.Errorf("Mean = %v, want 20ms", s.Mean)
	}
}

func TestTimes_Empty(t *testing.T) {
	var times Times
	s := times.Snapshot()
	if s.Count != 0 || s.Mean != 0 {
		t.Errorf("empty snapshot = %+v", s)
	}
	if got := times.String(); got != "no samples" {
		t.Errorf("String() = %q", got)
	}
}

func TestTimes_String(t *testing.T) {
	var times Times
	times.Add(1500 * time.Microsecond)
	got := times.String()
	if !strings.Contains(got, "1.5ms") {
		t.Errorf("String() = %q, want it to contain 1.5ms", got)
	}
	if !strings.Contains(got, "min:") || !strings.Contains(got, "max:") {
		t.Errorf("String() = %q, want min/max markers", got)
	}
}
