package transport

import (
	"net"
	"time"
)

// BufSize is the largest single socket write; bigger payloads are fragmented
const BufSize = 8192

// Transport defines the interface for one accepted connection
type Transport interface {
	// Read receives data from the peer, blocking until data arrives,
	// the peer closes or the idle timeout elapses.
	// Returns the number of bytes read
	Read(buf []byte) (int, error)

	// Write sends all of buf to the peer
	// Returns the number of bytes written
	Write(buf []byte) (int, error)

	// SetIdleTimeout bounds every subsequent Read; zero disables it
	SetIdleTimeout(d time.Duration)

	// RemoteAddr returns the peer address captured at accept time
	RemoteAddr() net.Addr

	// Close closes the connection; it is safe to call more than once
	// and from another goroutine than the reader
	Close() error
}

// Listener hands out one Transport per accepted connection
type Listener interface {
	Accept() (Transport, error)
	Addr() net.Addr
	Close() error
}
