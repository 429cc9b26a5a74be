package transport

import (
	stderrors "errors"
	"io"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
)

// TcpTransport implements Transport on top of a stream net.Conn.
// Unix socket connections use it as well.
type TcpTransport struct {
	conn   net.Conn
	remote net.Addr
	idle   time.Duration
	closed atomic.Bool
}

// NewTcpTransport wraps an accepted connection
func NewTcpTransport(conn net.Conn) *TcpTransport {
	return &TcpTransport{
		conn:   conn,
		remote: conn.RemoteAddr(),
	}
}

// SetIdleTimeout implements Transport
func (t *TcpTransport) SetIdleTimeout(d time.Duration) {
	t.idle = d
}

// RemoteAddr implements Transport
func (t *TcpTransport) RemoteAddr() net.Addr {
	return t.remote
}

// Read receives data from the connection
func (t *TcpTransport) Read(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	deadline := time.Time{}
	if t.idle > 0 {
		deadline = time.Now().Add(t.idle)
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to arm idle timeout",
			err,
		)
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		return n, classifyReadError(err)
	}
	if n == 0 && len(buf) > 0 {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed by peer",
			nil,
		)
	}

	return n, nil
}

// Write sends data over the connection
func (t *TcpTransport) Write(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	n, err := t.conn.Write(buf)
	if err != nil {
		// Check for broken pipe or connection reset
		if stderrors.Is(err, syscall.EPIPE) || stderrors.Is(err, syscall.ECONNRESET) ||
			stderrors.Is(err, net.ErrClosed) {
			return n, errors.NewTransportError(errors.TransportErrorConnectionClosed, "write failed", err)
		}
		return n, errors.NewTransportError(errors.TransportErrorSocketWriteFailure, "write failed", err)
	}

	return n, nil
}

// Close closes the connection
func (t *TcpTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil // Idempotent close
	}

	if err := t.conn.Close(); err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}
	return nil
}

func classifyReadError(err error) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTransportError(errors.TransportErrorTimeout, "no data within idle timeout", err)
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, net.ErrClosed) ||
		stderrors.Is(err, syscall.ECONNRESET) {
		return errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed by peer", err)
	}
	return errors.NewTransportError(errors.TransportErrorSocketReadFailure, "read failed", err)
}
