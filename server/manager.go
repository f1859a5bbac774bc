// Package server manages a Nailgun server as a child process: starting
// it, waiting for its listener to come up, and tearing it down. The
// clean way to stop a server is the ng-stop command over a client
// connection; Stop and Kill here are the fallback for servers that are
// past talking to.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/mihaip/nailgun/iox"
	"github.com/mihaip/nailgun/log"
	"github.com/mihaip/nailgun/transport"
)

// DefaultStartupTimeout bounds WaitReady when the config doesn't.
const DefaultStartupTimeout = 10 * time.Second

const readyPollInterval = 10 * time.Millisecond

// Config configures a managed server process.
type Config struct {
	// Command is the server executable. Required.
	Command string
	// Args are passed to the server verbatim. The address is not
	// appended automatically; include it here in whatever form the
	// server expects.
	Args []string
	// Address the server will listen on ("local:PATH" or "HOST:PORT").
	// WaitReady probes it until the listener is up.
	Address string
	// StartupTimeout bounds WaitReady. Zero means DefaultStartupTimeout.
	StartupTimeout time.Duration
	// Logger for lifecycle diagnostics. nil discards.
	Logger *log.Logger
}

// Result is the outcome of a finished server process.
type Result struct {
	// ExitCode is the process exit code, -1 when killed by a signal.
	ExitCode int
	// StderrBytes is the captured stderr output.
	StderrBytes []byte
}

// Manager owns one server process lifecycle.
type Manager struct {
	config *Config
	logger *log.Logger
	cmd    *exec.Cmd
	stderr io.ReadCloser
}

// NewManager creates a manager for the given config. Nothing runs
// until Start.
func NewManager(config *Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{config: config, logger: logger}
}

// Start launches the server process. Stderr is captured for
// diagnostics; stdout is discarded since the server's useful output
// flows through client sessions.
func (m *Manager) Start(ctx context.Context) error {
	if m.config.Command == "" {
		return errors.New("server command required")
	}

	m.cmd = exec.CommandContext(ctx, m.config.Command, m.config.Args...)

	stderr, err := m.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	m.stderr = stderr

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	m.logger.Info("server started", map[string]any{
		"command": m.config.Command,
		"pid":     m.cmd.Process.Pid,
	})
	return nil
}

// WaitReady polls the configured address until the server is
// accepting, the startup timeout elapses, or ctx is done. For a
// "local:" address readiness is the socket path appearing; for a
// host:port address it is a successful dial probe.
func (m *Manager) WaitReady(ctx context.Context) error {
	if m.config.Address == "" {
		return errors.New("server address required for readiness probe")
	}
	network, addr, err := transport.Resolve(m.config.Address)
	if err != nil {
		return err
	}

	timeout := m.config.StartupTimeout
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	deadline := time.Now().Add(timeout)
	m.logger.Sugar().Debugf("waiting up to %s for %s to accept connections", timeout, m.config.Address)

	for {
		if ready := probe(network, addr); ready {
			m.logger.Debug("server ready", map[string]any{"address": m.config.Address})
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server not ready at %s after %s", m.config.Address, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}

func probe(network, addr string) bool {
	if network == "unix" {
		_, err := os.Stat(addr)
		return err == nil
	}
	conn, err := net.DialTimeout(network, addr, readyPollInterval)
	if err != nil {
		return false
	}
	iox.DiscardClose(conn)
	return true
}

// Wait blocks until the server process exits and returns the result.
// Must be called after Start. A nonzero exit is reported in the
// result, not as an error.
func (m *Manager) Wait() (*Result, error) {
	if m.cmd == nil {
		return nil, errors.New("server not started")
	}

	stderrBytes, _ := io.ReadAll(m.stderr)
	err := m.cmd.Wait()

	result := &Result{StderrBytes: stderrBytes}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("server wait failed: %w", err)
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		} else {
			result.ExitCode = -1
		}
	}

	m.logger.Info("server exited", map[string]any{
		"exit_code": result.ExitCode,
		"stderr":    strings.TrimSpace(string(stderrBytes)),
	})
	return result, nil
}

// Stop asks the process to terminate (SIGTERM). Use the ng-stop
// command first when the server is still responsive.
func (m *Manager) Stop() error {
	if m.cmd == nil || m.cmd.Process == nil {
		return nil
	}
	return m.cmd.Process.Signal(syscall.SIGTERM)
}

// Kill terminates the process immediately.
func (m *Manager) Kill() error {
	if m.cmd == nil || m.cmd.Process == nil {
		return nil
	}
	return m.cmd.Process.Kill()
}
