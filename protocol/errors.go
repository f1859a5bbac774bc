package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies protocol failures. The set is closed: every
// error surfaced by the client core carries exactly one of these kinds,
// and all of them are terminal for the session. A half-consumed
// protocol stream cannot be safely resumed, so there is no in-session
// retry; callers may retry with a fresh connection.
type ErrorKind int

const (
	// ConnectFailed means the transport could not be established:
	// the named socket or pipe does not exist or refused the connection.
	ConnectFailed ErrorKind = iota

	// ConnectionBroken means a transport read or write failed, or the
	// peer closed the stream mid-session.
	ConnectionBroken

	// UnexpectedChunkType means a received tag is outside the closed
	// set, or outside the set the server is allowed to send. The
	// framing is untrustworthy from that point on.
	UnexpectedChunkType

	// MalformedHeader means header bytes could not be parsed. Callers
	// treat this the same as ConnectionBroken.
	MalformedHeader
)

var kindNames = map[ErrorKind]string{
	ConnectFailed:       "connect failed",
	ConnectionBroken:    "connection broken",
	UnexpectedChunkType: "unexpected chunk type",
	MalformedHeader:     "malformed header",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("protocol error %d", int(k))
}

// Error is a classified protocol failure. It preserves the underlying
// error in the chain for inspection via errors.As, and records the
// chunk tag that triggered the failure when one is known.
type Error struct {
	// Kind is the classification; see the ErrorKind constants.
	Kind ErrorKind
	// Chunk is the tag that triggered the failure, when applicable.
	Chunk ChunkType
	// Op is the operation that failed (e.g. "dial", "read chunk").
	Op string
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Kind == UnexpectedChunkType && e.Chunk != 0 {
		msg = fmt.Sprintf("%s %q", msg, string(rune(e.Chunk)))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from err. The second return is
// false when err carries no protocol classification at all.
func KindOf(err error) (ErrorKind, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a protocol error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsBenignAfterStop reports whether err is one of the outcomes expected
// when the server is shutting down underneath the client, typically
// right after a deliberate stop command. The server may close the
// transport before or after acknowledging, so connect failures, broken
// connections and garbled trailing chunks are all normal in that
// window. Nothing is suppressed automatically: call sites that issued
// the stop must opt in, and these kinds stay fatal everywhere else.
func IsBenignAfterStop(err error) bool {
	switch k, ok := KindOf(err); {
	case !ok:
		return false
	case k == ConnectFailed, k == ConnectionBroken, k == UnexpectedChunkType:
		return true
	default:
		return false
	}
}
