package nailgun

import (
	"time"

	"github.com/mihaip/nailgun/protocol"
)

// emitHeartbeats writes an empty heartbeat chunk every interval until
// stop closes. It runs for the lifetime of a streaming session,
// concurrently with the receive loop, sharing the chunk-granular write
// lock so a heartbeat can never interleave with a stdin chunk at the
// byte level.
//
// A heartbeat write failure is a connection failure: fail closes the
// transport, which also unblocks the receive loop. After stop closes
// the emitter returns without touching the transport again, so it
// never writes after close on the normal path either.
func (c *Conn) emitHeartbeats(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.writeChunk(protocol.ChunkHeartbeat, nil); err != nil {
				c.logger.Debug("heartbeat write failed", map[string]any{
					"error": err.Error(),
				})
				c.fail(err)
				return
			}
			c.collector.IncHeartbeatSent()
		}
	}
}
