// Package nailgun implements the client side of the Nailgun protocol:
// running a command inside a long-lived server process over a single
// bidirectional byte stream, streaming stdin/stdout/stderr, and
// returning the command's exit code.
//
// A session is one command on one connection. The usual entry point is
// Run, which scopes the whole exchange:
//
//	code, err := nailgun.Run(ctx, "local:/tmp/ng.sock", nailgun.Command{
//		Name:   "ng-stats",
//		Stdout: os.Stdout,
//	}, nil)
//
// For explicit control over the connection lifetime, Dial then
// Conn.Run, and Close on every exit path.
package nailgun

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mihaip/nailgun/iox"
	"github.com/mihaip/nailgun/log"
	"github.com/mihaip/nailgun/metrics"
	"github.com/mihaip/nailgun/protocol"
	"github.com/mihaip/nailgun/transport"
)

// Defaults for tunables. The heartbeat interval is a client knob, not
// a protocol constant; servers only require that heartbeats keep
// arriving while the session is idle.
const (
	DefaultHeartbeatInterval = 500 * time.Millisecond
	DefaultStdinChunkSize    = 2048
)

// ErrSessionUsed is returned by Conn.Run when the connection has
// already carried a command. The protocol runs one command per
// connection; open a new one to run another.
var ErrSessionUsed = errors.New("connection already ran a command")

// State is the lifecycle phase of a connection.
type State int32

const (
	StateConnecting State = iota
	StateRequestSent
	StateStreaming
	StateExited
	StateFailed
)

var stateNames = map[State]string{
	StateConnecting:  "connecting",
	StateRequestSent: "request_sent",
	StateStreaming:   "streaming",
	StateExited:      "exited",
	StateFailed:      "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Command describes one invocation to run on the server.
//
// Stdin, Stdout and Stderr are borrowed from the caller: the session
// never closes them. A nil Stdin means the command has no input (the
// server's first input request is answered with end-of-input); nil
// output writers discard.
type Command struct {
	// Name is the command to execute. Required.
	Name string
	// Args are positional arguments, sent in order.
	Args []string
	// Env entries in NAME=VALUE form. nil means inherit the client
	// process environment; an empty non-nil slice sends none.
	Env []string
	// Dir is the working directory. Empty means the client process's
	// current directory.
	Dir string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Options tunes a connection. The zero value (or nil) uses defaults.
type Options struct {
	// HeartbeatInterval between liveness chunks. Zero means
	// DefaultHeartbeatInterval; negative disables heartbeats.
	HeartbeatInterval time.Duration
	// StdinChunkSize bounds how many input bytes are read and sent
	// per server input request. Zero means DefaultStdinChunkSize.
	StdinChunkSize int
	// Logger for session diagnostics. nil discards.
	Logger *log.Logger
	// Collector receives wire and lifecycle counters. nil is valid.
	Collector *metrics.Collector
}

func (o *Options) heartbeatInterval() time.Duration {
	switch {
	case o == nil || o.HeartbeatInterval == 0:
		return DefaultHeartbeatInterval
	case o.HeartbeatInterval < 0:
		return 0
	default:
		return o.HeartbeatInterval
	}
}

func (o *Options) stdinChunkSize() int {
	if o == nil || o.StdinChunkSize <= 0 {
		return DefaultStdinChunkSize
	}
	return o.StdinChunkSize
}

func (o *Options) logger() *log.Logger {
	if o == nil || o.Logger == nil {
		return log.NewNop()
	}
	return o.Logger
}

func (o *Options) collector() *metrics.Collector {
	if o == nil {
		return nil
	}
	return o.Collector
}

// Conn is one client connection to a Nailgun server. It owns its
// transport exclusively for its lifetime and supports a single Run.
type Conn struct {
	tr        *transport.Transport
	logger    *log.Logger
	collector *metrics.Collector

	heartbeatEvery time.Duration
	stdinChunkSize int

	// writeMu serializes transport writes at chunk granularity: a full
	// header+payload is the minimum atomic write unit, so heartbeats
	// can never split a concurrently in-flight stdin chunk.
	writeMu sync.Mutex

	state atomic.Int32

	// failOnce records the first failure. Whichever loop loses the
	// race still unblocks promptly because fail closes the transport.
	failOnce sync.Once
	failErr  error

	ran atomic.Bool

	stdinBuf       []byte
	stdinExhausted bool
	stdinEOFSent   bool
}

// Dial connects to a Nailgun server at the given address
// ("local:PATH" or "HOST:PORT"). The caller must Close the returned
// connection on every exit path.
func Dial(address string, opts *Options) (*Conn, error) {
	tr, err := transport.Dial(address)
	if err != nil {
		return nil, err
	}
	return NewConn(tr, opts), nil
}

// NewConn wraps an already-established transport. The connection takes
// ownership of tr and closes it.
func NewConn(tr *transport.Transport, opts *Options) *Conn {
	c := &Conn{
		tr:             tr,
		logger:         opts.logger(),
		collector:      opts.collector(),
		heartbeatEvery: opts.heartbeatInterval(),
		stdinChunkSize: opts.stdinChunkSize(),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// State reports the connection's lifecycle phase.
func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// Close releases the transport. Idempotent; safe on every exit path.
func (c *Conn) Close() error {
	return c.tr.Close()
}

// fail records the first terminal error and closes the transport so
// that any loop blocked on it returns promptly.
func (c *Conn) fail(err error) {
	c.failOnce.Do(func() {
		c.failErr = err
		if c.State() != StateExited {
			c.setState(StateFailed)
		}
		iox.DiscardClose(c.tr)
	})
}

// sessionError prefers the first recorded failure over err: when the
// heartbeat (or cancellation) kills the transport, the demultiplexer
// observes a secondary broken-connection error that would otherwise
// mask the cause.
func (c *Conn) sessionError(err error) error {
	if c.failErr != nil {
		return c.failErr
	}
	return err
}

// writeChunk sends one full chunk under the write lock.
func (c *Conn) writeChunk(t protocol.ChunkType, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.tr.WriteAll(protocol.Encode(t, payload)); err != nil {
		return err
	}
	c.collector.AddChunkSent(len(payload))
	return nil
}

// Run executes cmd on the server and returns its exit code. The exit
// code is only meaningful when err is nil. All errors are terminal for
// the session; Run never retries.
//
// Run does not close the connection: Close remains the caller's
// obligation (see the package-level Run for the fully scoped variant).
func (c *Conn) Run(ctx context.Context, cmd Command) (int, error) {
	if cmd.Name == "" {
		return -1, errors.New("nailgun: command name required")
	}
	if !c.ran.CompareAndSwap(false, true) {
		return -1, ErrSessionUsed
	}

	logger := c.logger.WithCommand(cmd.Name)
	c.collector.IncSessionStarted()

	if err := c.sendRequest(cmd); err != nil {
		c.fail(err)
		c.collector.IncSessionFailed()
		return -1, c.sessionError(err)
	}
	c.setState(StateRequestSent)
	logger.Debug("request sent", map[string]any{
		"args": len(cmd.Args),
		"dir":  cmd.Dir,
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup

	if c.heartbeatEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.emitHeartbeats(c.heartbeatEvery, stop)
		}()
	}
	if ctx.Done() != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				c.fail(&protocol.Error{Kind: protocol.ConnectionBroken, Op: "session canceled", Err: ctx.Err()})
			case <-stop:
			}
		}()
	}

	c.setState(StateStreaming)
	code, err := c.demux(cmd)

	close(stop)
	wg.Wait()

	if err != nil {
		c.fail(err)
		c.collector.IncSessionFailed()
		err = c.sessionError(err)
		logger.Error("session failed", map[string]any{"error": err.Error()})
		return -1, err
	}

	c.setState(StateExited)
	c.collector.IncSessionExited()
	logger.Info("session exited", map[string]any{"exit_code": code})
	return code, nil
}

// Run dials address, executes cmd, and releases the transport on every
// exit path, success or failure. It returns the server-reported exit
// code or a classified error (see the protocol package's ErrorKind).
func Run(ctx context.Context, address string, cmd Command, opts *Options) (int, error) {
	conn, err := Dial(address, opts)
	if err != nil {
		return -1, err
	}
	defer iox.DiscardClose(conn)
	return conn.Run(ctx, cmd)
}

// RunBytes is the raw-input variant of Run: the command's input is the
// given byte slice rather than a reader. Protocol behavior is
// identical; only how the input source yields bytes differs.
func RunBytes(ctx context.Context, address string, cmd Command, input []byte, opts *Options) (int, error) {
	cmd.Stdin = bytes.NewReader(input)
	return Run(ctx, address, cmd, opts)
}
