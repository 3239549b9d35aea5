package wh23xx

import (
	"context"
	"time"
)

// Transport is a packet channel to the console. Read returns ErrNoData (or
// an error wrapping it) when nothing arrived within timeout, and may return
// an empty slice when the console answered with nothing. Reset must leave
// the transport ready for further reads and writes.
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	Write(p []byte) (int, error)
	Read(timeout time.Duration) ([]byte, error)
	Reset() error
}
