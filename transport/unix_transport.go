package transport

import (
	"io/fs"
	"net"
	"os"

	"github.com/nczempin/httpd-go-uring/errors"
)

// ListenUnix listens on a Unix domain socket path.
// A stale socket file left by a previous run is removed first, and the file is
// removed again when the listener closes.
func ListenUnix(path string, mode Mode) (*NetListener, error) {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&fs.ModeSocket == 0 {
			return nil, errors.NewTransportError(
				errors.TransportErrorListenFailure,
				path+" exists and is not a socket",
				nil,
			)
		}
		os.Remove(path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorListenFailure,
			"failed to listen on unix socket",
			err,
		)
	}
	if ul, ok := ln.(*net.UnixListener); ok {
		// Removal is done by cleanup so it also happens on the uring path
		ul.SetUnlinkOnClose(false)
	}

	return newNetListener(ln, mode, func() { os.Remove(path) })
}
