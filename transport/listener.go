package transport

import (
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/iceber/iouring-go"
	"github.com/nczempin/httpd-go-uring/errors"
)

// Mode selects how accepted connections are driven
type Mode string

const (
	// ModeNet uses the Go runtime poller through net.Conn
	ModeNet Mode = "net"
	// ModeUring hands the socket to io_uring
	ModeUring Mode = "uring"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeNet, ModeUring:
		return m, nil
	}
	return "", errors.NewInvalidArgumentError(fmt.Sprintf("unknown transport mode %q", s))
}

// NetListener accepts connections from a net.Listener and wraps each in a Transport
type NetListener struct {
	ln      net.Listener
	iour    *iouring.IOURing
	cleanup func()

	closeOnce sync.Once
	closeErr  error
}

// Listen opens a listening socket on network ("tcp" or "unix") and address.
// In ModeUring one io_uring instance is created for all accepted connections.
func Listen(network, address string, mode Mode) (*NetListener, error) {
	if network == "unix" {
		return ListenUnix(address, mode)
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorListenFailure,
			fmt.Sprintf("failed to listen on %s", address),
			err,
		)
	}
	return newNetListener(ln, mode, nil)
}

func newNetListener(ln net.Listener, mode Mode, cleanup func()) (*NetListener, error) {
	l := &NetListener{ln: ln, cleanup: cleanup}
	if mode != ModeUring {
		return l, nil
	}

	// Create io_uring instance with queue depth of 256
	iour, err := iouring.New(256)
	if err != nil {
		ln.Close()
		if cleanup != nil {
			cleanup()
		}
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}
	l.iour = iour
	return l, nil
}

// Accept waits for the next connection
func (l *NetListener) Accept() (Transport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		if stderrors.Is(err, net.ErrClosed) {
			return nil, errors.NewTransportError(errors.TransportErrorConnectionClosed, "listener closed", err)
		}
		return nil, errors.NewTransportError(errors.TransportErrorAcceptFailure, "accept failed", err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	if l.iour == nil {
		return NewTcpTransport(conn), nil
	}
	t, err := NewUringTransport(l.iour, conn)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Addr returns the listening address
func (l *NetListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting and releases the ring, if any. Only the first call
// has an effect. Transports already accepted keep working until the ring
// is closed, so close the listener after its sessions.
func (l *NetListener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
		if l.cleanup != nil {
			l.cleanup()
		}
	})
	return l.closeErr
}

// Release frees the io_uring instance shared by accepted transports
func (l *NetListener) Release() {
	if l.iour != nil {
		l.iour.Close()
	}
}
