package nailgun

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mihaip/nailgun/protocol"
)

// demux is the session receive loop. It reads chunks off the transport
// and routes them: output payloads to the caller's sinks verbatim and
// in order, server input requests to the stdin source, and the exit
// chunk to termination.
//
// The server may request input at any point, not only at the start, so
// the client never pushes stdin eagerly: forwarding is driven entirely
// by explicit input-request chunks. Eager pushes (or eager blocking on
// output the server won't send until it gets input) could deadlock the
// two sides against each other.
//
// Any tag other than stdout/stderr/input-request/exit is fatal: the
// framing can no longer be trusted and the stream cannot be resynced.
func (c *Conn) demux(cmd Command) (int, error) {
	stdout := cmd.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := cmd.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	for {
		header, err := c.tr.ReadExact(protocol.HeaderSize)
		if err != nil {
			return -1, err
		}
		length, err := protocol.ParseLength(header[:protocol.LengthSize])
		if err != nil {
			return -1, err
		}
		typ, err := protocol.ParseChunkType(header[protocol.LengthSize])
		if err != nil {
			// Don't read the claimed payload: the length field is as
			// untrustworthy as the tag.
			return -1, err
		}

		var payload []byte
		if length > 0 {
			payload, err = c.tr.ReadExact(int(length))
			if err != nil {
				return -1, err
			}
		}
		c.collector.AddChunkReceived(len(payload))

		switch typ {
		case protocol.ChunkStdout:
			if _, werr := stdout.Write(payload); werr != nil {
				return -1, fmt.Errorf("writing stdout sink: %w", werr)
			}

		case protocol.ChunkStderr:
			if _, werr := stderr.Write(payload); werr != nil {
				return -1, fmt.Errorf("writing stderr sink: %w", werr)
			}

		case protocol.ChunkStartReadingStdin:
			if serr := c.serviceStdin(cmd.Stdin); serr != nil {
				return -1, serr
			}

		case protocol.ChunkExit:
			code, perr := parseExitStatus(payload)
			if perr != nil {
				return -1, &protocol.Error{
					Kind: protocol.ConnectionBroken,
					Op:   "parse exit status",
					Err:  perr,
				}
			}
			return code, nil

		default:
			// Tag is in the closed set but not one the server may send.
			return -1, &protocol.Error{
				Kind:  protocol.UnexpectedChunkType,
				Op:    "read chunk",
				Chunk: typ,
			}
		}
	}
}

// serviceStdin answers one server input request. It reads up to the
// configured chunk size from the input source and sends the bytes as a
// single stdin chunk. Once the source is exhausted it sends exactly one
// end-of-input chunk and never reads the source again; later input
// requests are no-ops.
func (c *Conn) serviceStdin(stdin io.Reader) error {
	if c.stdinEOFSent {
		return nil
	}
	if stdin == nil || c.stdinExhausted {
		c.stdinEOFSent = true
		c.collector.IncStdinEOFSent()
		return c.writeChunk(protocol.ChunkStdinEOF, nil)
	}

	if c.stdinBuf == nil {
		c.stdinBuf = make([]byte, c.stdinChunkSize)
	}
	n, err := stdin.Read(c.stdinBuf)
	if err != nil {
		// io.EOF is the normal exhaustion signal; any other read
		// failure also ends forwarding, it does not fail the session.
		c.stdinExhausted = true
		if !errors.Is(err, io.EOF) {
			c.logger.Warn("stdin read failed, ending input", map[string]any{
				"error": err.Error(),
			})
		}
	}
	if n > 0 {
		c.collector.IncStdinChunkSent()
		return c.writeChunk(protocol.ChunkStdin, c.stdinBuf[:n])
	}
	c.stdinEOFSent = true
	c.collector.IncStdinEOFSent()
	return c.writeChunk(protocol.ChunkStdinEOF, nil)
}

// parseExitStatus parses the exit chunk's payload: the process exit
// status as base-10 text.
func parseExitStatus(payload []byte) (int, error) {
	text := strings.TrimSpace(string(payload))
	code, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("exit status %q is not an integer", text)
	}
	return code, nil
}
