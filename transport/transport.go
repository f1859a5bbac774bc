// Package transport resolves opaque Nailgun addresses into connected,
// bidirectional byte streams.
//
// An address is either "local:PATH" for a unix domain socket or
// "HOST:PORT" for TCP. The Transport owns the underlying handle
// exclusively: no other component reads or writes it directly.
package transport

import (
	"io"
	"net"
	"strings"
	"sync"

	"github.com/mihaip/nailgun/protocol"
)

// LocalScheme prefixes addresses naming a filesystem-local endpoint.
const LocalScheme = "local:"

// Transport is a connected byte stream. All methods are safe to call
// after Close; reads and writes then fail with ConnectionBroken.
// Close is idempotent and unblocks any in-flight ReadExact or WriteAll,
// which is how the rest of the client cancels a stuck session.
type Transport struct {
	conn      net.Conn
	closeOnce sync.Once
	closeErr  error
}

// Resolve maps an opaque address string to a network and dial address.
// The choice of scheme is the caller's; this layer only translates.
func Resolve(address string) (network, addr string, err error) {
	if path, ok := strings.CutPrefix(address, LocalScheme); ok {
		if path == "" {
			return "", "", &protocol.Error{Kind: protocol.ConnectFailed, Op: "resolve " + address}
		}
		return "unix", path, nil
	}
	if !strings.Contains(address, ":") {
		return "", "", &protocol.Error{Kind: protocol.ConnectFailed, Op: "resolve " + address}
	}
	return "tcp", address, nil
}

// Dial opens a transport to the given address. No retry is performed
// here; retry policy, if any, belongs to the caller.
func Dial(address string) (*Transport, error) {
	network, addr, err := Resolve(address)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, &protocol.Error{Kind: protocol.ConnectFailed, Op: "dial " + address, Err: err}
	}
	return New(conn), nil
}

// New wraps an already-connected stream. Used by Dial and by tests
// that script the server side of a connection.
func New(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// ReadExact blocks until exactly n bytes are available or the peer
// closes. A clean close before n bytes is ConnectionBroken, as is any
// lower-level I/O fault.
func (t *Transport) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return nil, &protocol.Error{Kind: protocol.ConnectionBroken, Op: "read", Err: err}
	}
	return buf, nil
}

// WriteAll blocks until b is fully written.
func (t *Transport) WriteAll(b []byte) error {
	if _, err := t.conn.Write(b); err != nil {
		return &protocol.Error{Kind: protocol.ConnectionBroken, Op: "write", Err: err}
	}
	return nil
}

// Close releases the underlying handle. Safe to call multiple times
// and safe to call after a failure; only the first call closes.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
