// Package metrics provides per-client metrics collection.
//
// The Collector accumulates counters across sessions. It is a leaf
// package with no internal dependencies. All methods are nil-receiver
// safe so the client core can record metrics unconditionally; callers
// that don't care simply pass nil.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted int64
	SessionsExited  int64
	SessionsFailed  int64

	// Wire traffic
	ChunksSent     int64
	ChunksReceived int64
	BytesSent      int64
	BytesReceived  int64
	HeartbeatsSent int64

	// Stdin servicing
	StdinChunksSent int64
	StdinEOFsSent   int64
}

// Collector accumulates counters across sessions.
// Thread-safe via sync.Mutex. All increment methods are nil-safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted int64
	sessionsExited  int64
	sessionsFailed  int64

	chunksSent     int64
	chunksReceived int64
	bytesSent      int64
	bytesReceived  int64
	heartbeatsSent int64

	stdinChunksSent int64
	stdinEOFsSent   int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsStarted++
	c.mu.Unlock()
}

// IncSessionExited records a session that reached a server exit chunk.
func (c *Collector) IncSessionExited() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsExited++
	c.mu.Unlock()
}

// IncSessionFailed records a session torn down by a protocol error.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsFailed++
	c.mu.Unlock()
}

// AddChunkSent records one outgoing chunk of the given payload size.
func (c *Collector) AddChunkSent(payloadBytes int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksSent++
	c.bytesSent += int64(payloadBytes)
	c.mu.Unlock()
}

// AddChunkReceived records one incoming chunk of the given payload size.
func (c *Collector) AddChunkReceived(payloadBytes int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksReceived++
	c.bytesReceived += int64(payloadBytes)
	c.mu.Unlock()
}

// IncHeartbeatSent records one heartbeat write.
func (c *Collector) IncHeartbeatSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.heartbeatsSent++
	c.mu.Unlock()
}

// IncStdinChunkSent records one stdin payload sent upstream.
func (c *Collector) IncStdinChunkSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stdinChunksSent++
	c.mu.Unlock()
}

// IncStdinEOFSent records the stdin-exhausted signal.
func (c *Collector) IncStdinEOFSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stdinEOFsSent++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		SessionsStarted: c.sessionsStarted,
		SessionsExited:  c.sessionsExited,
		SessionsFailed:  c.sessionsFailed,

		ChunksSent:     c.chunksSent,
		ChunksReceived: c.chunksReceived,
		BytesSent:      c.bytesSent,
		BytesReceived:  c.bytesReceived,
		HeartbeatsSent: c.heartbeatsSent,

		StdinChunksSent: c.stdinChunksSent,
		StdinEOFsSent:   c.stdinEOFsSent,
	}
}
