package nailgun

import (
	"io"
	"net"
	"path/filepath"
	"testing"

	"github.com/mihaip/nailgun/iox"
	"github.com/mihaip/nailgun/protocol"
	"github.com/mihaip/nailgun/transport"
)

// startServer listens on a unix socket in a test temp dir and runs
// script against the first accepted connection. It returns the
// "local:" address to dial. Scripts run in a goroutine, so they report
// failures with t.Errorf and bail out on read/write errors.
func startServer(t *testing.T, script func(sc *serverConn)) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ng.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	done := make(chan struct{})
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})

	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer iox.DiscardClose(conn)
		script(&serverConn{t: t, conn: conn})
	}()

	return transport.LocalScheme + path
}

// serverConn is the scripted server side of one session.
type serverConn struct {
	t    *testing.T
	conn net.Conn
}

func (s *serverConn) readChunk() (protocol.Chunk, error) {
	header := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		return protocol.Chunk{}, err
	}
	length, typ, err := protocol.ParseHeader(header)
	if err != nil {
		return protocol.Chunk{}, err
	}
	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return protocol.Chunk{}, err
		}
	}
	return protocol.Chunk{Type: typ, Payload: payload}, nil
}

func (s *serverConn) send(typ protocol.ChunkType, payload string) bool {
	if _, err := s.conn.Write(protocol.Encode(typ, []byte(payload))); err != nil {
		s.t.Errorf("server write %s failed: %v", typ, err)
		return false
	}
	return true
}

// sendRaw writes arbitrary bytes, for scripting malformed traffic.
func (s *serverConn) sendRaw(b []byte) bool {
	if _, err := s.conn.Write(b); err != nil {
		s.t.Errorf("server raw write failed: %v", err)
		return false
	}
	return true
}

// request is the recorded setup phase of a session.
type request struct {
	dir     string
	env     []string
	args    []string
	command string
	order   []protocol.ChunkType
}

// readRequest consumes chunks until the command chunk that ends the
// setup phase.
func (s *serverConn) readRequest() (request, bool) {
	var req request
	for {
		chunk, err := s.readChunk()
		if err != nil {
			s.t.Errorf("server read during setup failed: %v", err)
			return req, false
		}
		req.order = append(req.order, chunk.Type)
		switch chunk.Type {
		case protocol.ChunkWorkingDir:
			req.dir = string(chunk.Payload)
		case protocol.ChunkEnvironment:
			req.env = append(req.env, string(chunk.Payload))
		case protocol.ChunkArgument:
			req.args = append(req.args, string(chunk.Payload))
		case protocol.ChunkCommand:
			req.command = string(chunk.Payload)
			return req, true
		default:
			s.t.Errorf("unexpected chunk %s during setup", chunk.Type)
			return req, false
		}
	}
}

// drain reads chunks until the client closes, returning everything
// observed after the point of call.
func (s *serverConn) drain() []protocol.Chunk {
	var chunks []protocol.Chunk
	for {
		chunk, err := s.readChunk()
		if err != nil {
			return chunks
		}
		chunks = append(chunks, chunk)
	}
}

// noHeartbeats disables the heartbeat emitter so scripts only see the
// traffic they provoke.
func noHeartbeats() *Options {
	return &Options{HeartbeatInterval: -1}
}
