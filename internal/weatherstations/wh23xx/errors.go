package wh23xx

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportUnavailable means the console could not be found or opened.
	// It is never retried.
	ErrTransportUnavailable = errors.New("station transport unavailable")

	// ErrNoData is a transient empty read. It never consumes a retry attempt.
	ErrNoData = errors.New("no data available")

	ErrBadHeader        = errors.New("bad header")
	ErrUnexpectedMarker = errors.New("unexpected reply marker")
	ErrBadReply         = errors.New("bad reply")
	ErrUnknownItem      = errors.New("unknown item")
	ErrTruncated        = errors.New("truncated data")
	ErrBadChecksum      = errors.New("checksum mismatch")
	ErrBadRequest       = errors.New("bad request")

	ErrRetriesExceeded = errors.New("max retries exceeded")
	ErrResetFailed     = errors.New("device reset failed")
)

// ProtocolError describes a malformed or unsupported reply. Kind is one of
// the Err* sentinels above, so callers can use errors.Is.
type ProtocolError struct {
	Op     string
	Kind   error
	ID     byte // item id, only meaningful for ErrUnknownItem
	Detail string
}

func (e *ProtocolError) Error() string {
	msg := e.Kind.Error()
	if e.Kind == ErrUnknownItem {
		msg = fmt.Sprintf("%s 0x%02x", msg, e.ID)
	}
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Kind
}

func protoErr(op string, kind error, format string, args ...any) *ProtocolError {
	return &ProtocolError{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// RetriesExceededError is returned once a read-class operation has used up
// its retry budget. It matches ErrRetriesExceeded and the last failure.
type RetriesExceededError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetriesExceededError) Error() string {
	return fmt.Sprintf("%s: max retries (%d) exceeded: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetriesExceededError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRetriesExceeded}
	}
	return []error{ErrRetriesExceeded, e.Err}
}
