package transport

import (
	stderrors "errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/iceber/iouring-go"
	"github.com/nczempin/httpd-go-uring/errors"
	"golang.org/x/sys/unix"
)

// UringTransport implements Transport using io_uring for socket I/O.
// The ring is owned by the listener and shared by every connection it accepts.
type UringTransport struct {
	iour   *iouring.IOURing
	file   *os.File
	fd     int
	remote net.Addr
	idle   time.Duration

	mu     sync.Mutex
	closed bool
}

// sysConn is satisfied by *net.TCPConn and *net.UnixConn
type sysConn interface {
	net.Conn
	File() (*os.File, error)
}

// NewUringTransport takes over the descriptor of an accepted connection.
// conn is closed; the transport keeps a duplicate of its descriptor.
func NewUringTransport(iour *iouring.IOURing, conn net.Conn) (*UringTransport, error) {
	sc, ok := conn.(sysConn)
	if !ok {
		conn.Close()
		return nil, errors.NewInvalidArgumentError("connection does not expose a file descriptor")
	}

	remote := conn.RemoteAddr()
	file, err := sc.File()
	conn.Close()
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorAcceptFailure,
			"failed to duplicate socket",
			err,
		)
	}

	fd := int(file.Fd())

	// Set socket to non-blocking mode for io_uring
	if err := unix.SetNonblock(fd, true); err != nil {
		file.Close()
		return nil, errors.NewTransportError(
			errors.TransportErrorAcceptFailure,
			"failed to set non-blocking mode",
			err,
		)
	}

	return &UringTransport{
		iour:   iour,
		file:   file,
		fd:     fd,
		remote: remote,
	}, nil
}

// SetIdleTimeout implements Transport
func (t *UringTransport) SetIdleTimeout(d time.Duration) {
	t.idle = d
}

// RemoteAddr implements Transport
func (t *UringTransport) RemoteAddr() net.Addr {
	return t.remote
}

func (t *UringTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Write sends data over the connection using io_uring
func (t *UringTransport) Write(buf []byte) (int, error) {
	if t.isClosed() {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		ch := make(chan iouring.Result, 1)
		prepReq := iouring.Send(t.fd, buf[totalWritten:], unix.MSG_NOSIGNAL)
		if _, err := t.iour.SubmitRequest(prepReq, ch); err != nil {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorIoUringSubmit,
				"failed to submit write request",
				err,
			)
		}

		result := <-ch
		n, err := completion(result)
		if err != nil {
			if stderrors.Is(err, unix.EPIPE) || stderrors.Is(err, unix.ECONNRESET) {
				return totalWritten, errors.NewTransportError(
					errors.TransportErrorConnectionClosed,
					"connection closed during write",
					err,
				)
			}
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorSocketWriteFailure,
				"write failed",
				err,
			)
		}

		if n <= 0 {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Read receives data from the connection using io_uring.
// With an idle timeout the recv is linked to a timeout request; expiry cancels it.
func (t *UringTransport) Read(buf []byte) (int, error) {
	if t.isClosed() {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	ch := make(chan iouring.Result, 1)
	prepReq := iouring.Recv(t.fd, buf, 0)

	var err error
	if t.idle > 0 {
		_, err = t.iour.SubmitRequests(prepReq.WithTimeout(t.idle), ch)
	} else {
		_, err = t.iour.SubmitRequest(prepReq, ch)
	}
	if err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to submit read request",
			err,
		)
	}

	result := <-ch
	n, err := completion(result)
	if err != nil {
		// The linked timeout cancels the recv when it expires
		if stderrors.Is(err, unix.ECANCELED) {
			return 0, errors.NewTransportError(
				errors.TransportErrorTimeout,
				"no data within idle timeout",
				err,
			)
		}
		if stderrors.Is(err, unix.ECONNRESET) || stderrors.Is(err, unix.EBADF) ||
			stderrors.Is(err, unix.EPIPE) {
			return 0, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed by peer",
				err,
			)
		}
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			"read failed",
			err,
		)
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

// Close shuts the socket down, which also completes a pending recv, then
// releases the descriptor.
func (t *UringTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil // Already closed
	}
	t.closed = true

	unix.Shutdown(t.fd, unix.SHUT_RDWR)
	if err := t.file.Close(); err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}

	return nil
}

// completion returns the kernel result of a finished send or recv.
// Send and Recv requests carry no resolver, so the raw cqe result is read
// and a negative value is turned into its errno.
func completion(result iouring.Result) (int, error) {
	req, ok := result.(iouring.Request)
	if !ok {
		return 0, errors.NewInvalidArgumentError("unexpected io_uring result type")
	}
	res, err := req.GetRes()
	if err != nil {
		return 0, err
	}
	if res < 0 {
		return 0, unix.Errno(-res)
	}
	return res, nil
}
