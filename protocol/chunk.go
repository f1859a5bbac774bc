// Package protocol implements the Nailgun chunk wire format.
//
// Every message on a Nailgun connection is a chunk: a 4-byte big-endian
// payload length, a single ASCII type tag, and the payload bytes. The
// tag values are fixed by the protocol and must not change, or the
// client stops interoperating with existing servers.
//
//	+-----------------+----------+---------+
//	| Payload Length  | Type Tag | Payload |
//	+-----------------+----------+---------+
//	|   4B big-endian |    1B    |   var   |
package protocol

import "encoding/binary"

// ChunkType is the single-byte tag identifying a chunk on the wire.
type ChunkType byte

// Chunk type tags. The closed set of the protocol.
const (
	// Client to server.
	ChunkArgument    ChunkType = 'A' // one command-line argument
	ChunkEnvironment ChunkType = 'E' // one NAME=VALUE environment entry
	ChunkWorkingDir  ChunkType = 'D' // working directory path
	ChunkCommand     ChunkType = 'C' // command name; ends the setup phase
	ChunkStdin       ChunkType = '0' // chunk of input bytes
	ChunkStdinEOF    ChunkType = '.' // no more input bytes
	ChunkHeartbeat   ChunkType = 'H' // liveness signal, empty payload

	// Server to client.
	ChunkStdout            ChunkType = '1' // chunk of output bytes
	ChunkStderr            ChunkType = '2' // chunk of error bytes
	ChunkStartReadingStdin ChunkType = 'S' // server requests input
	ChunkExit              ChunkType = 'X' // textual exit status; terminal
)

// Header field sizes in bytes.
const (
	LengthSize = 4
	TypeSize   = 1
	HeaderSize = LengthSize + TypeSize
)

var chunkNames = map[ChunkType]string{
	ChunkArgument:          "argument",
	ChunkEnvironment:       "environment",
	ChunkWorkingDir:        "working_dir",
	ChunkCommand:           "command",
	ChunkStdin:             "stdin",
	ChunkStdinEOF:          "stdin_eof",
	ChunkHeartbeat:         "heartbeat",
	ChunkStdout:            "stdout",
	ChunkStderr:            "stderr",
	ChunkStartReadingStdin: "start_reading_stdin",
	ChunkExit:              "exit",
}

// Valid reports whether t is in the closed tag set.
func (t ChunkType) Valid() bool {
	_, ok := chunkNames[t]
	return ok
}

// String returns a human-readable name for logging and diagnostics.
func (t ChunkType) String() string {
	if name, ok := chunkNames[t]; ok {
		return name
	}
	return "unknown(" + string(rune(t)) + ")"
}

// Chunk pairs a type tag with its payload. Chunks are constructed
// transiently per read or write and never persisted.
type Chunk struct {
	Type    ChunkType
	Payload []byte
}

// Encode serializes a chunk: length prefix, type tag, payload.
// No length limit is enforced here; callers control payload size.
func Encode(t ChunkType, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthSize], uint32(len(payload)))
	buf[LengthSize] = byte(t)
	copy(buf[HeaderSize:], payload)
	return buf
}

// ParseLength decodes the 4-byte big-endian payload length from b.
// The caller is responsible for buffering until a full header is
// present; fewer than 4 bytes is a MalformedHeader error.
func ParseLength(b []byte) (uint32, error) {
	if len(b) < LengthSize {
		return 0, &Error{Kind: MalformedHeader, Op: "parse length"}
	}
	return binary.BigEndian.Uint32(b[:LengthSize]), nil
}

// ParseChunkType validates a type tag against the closed set.
// An unknown tag means the stream can no longer be trusted: the error
// is fatal for the connection, there is no way to resynchronize.
func ParseChunkType(b byte) (ChunkType, error) {
	t := ChunkType(b)
	if !t.Valid() {
		return t, &Error{Kind: UnexpectedChunkType, Chunk: t, Op: "parse type"}
	}
	return t, nil
}

// ParseHeader decodes a full chunk header (length + type tag).
func ParseHeader(b []byte) (uint32, ChunkType, error) {
	length, err := ParseLength(b)
	if err != nil {
		return 0, 0, err
	}
	if len(b) < HeaderSize {
		return 0, 0, &Error{Kind: MalformedHeader, Op: "parse header"}
	}
	t, err := ParseChunkType(b[LengthSize])
	if err != nil {
		return 0, 0, err
	}
	return length, t, nil
}
