// Package server accepts connections and runs one session per connection.
package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nczempin/httpd-go-uring/config"
	"github.com/nczempin/httpd-go-uring/cookie"
	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/logging"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/storage"
	"github.com/nczempin/httpd-go-uring/transport"
)

// Options carries collaborators; zero values select defaults from the config
type Options struct {
	Sink  logging.Sink
	Files storage.FileSource
	// Now overrides the clock used for Date headers
	Now func() time.Time
}

// releaser is implemented by listeners holding resources shared with their
// transports; those are freed once every session is done
type releaser interface {
	Release()
}

// Server is the accept loop plus the registry of live sessions
type Server struct {
	cfg       config.Config
	sink      logging.Sink
	files     storage.FileSource
	ownsFiles bool
	enc       *protocol.Encoder
	router    *Router

	sessions *xsync.MapOf[uint64, *Session]
	nextID   atomic.Uint64
	wg       sync.WaitGroup

	mu       sync.Mutex
	ln       transport.Listener
	shutdown bool
}

// New builds a server from a validated config
func New(cfg config.Config, opts Options) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		sink:     opts.Sink,
		files:    opts.Files,
		sessions: xsync.NewMapOf[uint64, *Session](xsync.WithPresize(64)),
	}
	if s.sink == nil {
		s.sink = logging.Discard
	}

	if s.files == nil {
		switch cfg.Storage {
		case "uring":
			us, err := storage.NewUringStore()
			if err != nil {
				return nil, err
			}
			s.files = us
		default:
			s.files = storage.NewOSStore()
		}
		s.ownsFiles = true
	}

	s.enc = protocol.NewEncoder(cfg.ServerName, cfg.CookieName, cfg.IdleTimeout())
	if opts.Now != nil {
		s.enc.Now = opts.Now
	}

	counter := cookie.New(cfg.MaxAccesses)
	counter.Name = cfg.CookieName

	s.router = NewRouter(RouterConfig{
		WebRoot:       cfg.WebRoot,
		FormTarget:    cfg.FormTarget,
		OkFile:        cfg.OkFile,
		FailFile:      cfg.FailFile,
		AllowedEmails: cfg.AllowedEmails,
	}, s.files, s.enc, counter)

	return s, nil
}

// Listen opens the listener described by the config
func (s *Server) Listen() (transport.Listener, error) {
	mode, err := transport.ParseMode(s.cfg.Transport)
	if err != nil {
		return nil, err
	}
	network, address := "tcp", s.cfg.Address()
	if s.cfg.Socket != "" {
		network, address = "unix", s.cfg.Socket
	}

	ln, err := transport.Listen(network, address, mode)
	if err != nil {
		return nil, err
	}
	return ln, nil
}

// ListenAndServe listens per the config and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled or Shutdown is
// called. It returns after every session has finished.
func (s *Server) Serve(ctx context.Context, ln transport.Listener) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		ln.Close()
		return errors.NewTransportError(errors.TransportErrorConnectionClosed, "server is shut down", nil)
	}
	s.ln = ln
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.sink.Emit(logging.Event{Kind: logging.KindServerStarted, Target: ln.Addr().String()})
	defer s.sink.Emit(logging.Event{Kind: logging.KindServerStopped, Target: ln.Addr().String()})

	var retryDelay time.Duration
	for {
		t, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isShutdown() || errors.IsClosed(err) {
				cancel()
				s.wg.Wait()
				if r, ok := ln.(releaser); ok {
					r.Release()
				}
				return nil
			}

			s.sink.Emit(logging.Event{Kind: logging.KindTransportError, Err: err})
			if retryDelay == 0 {
				retryDelay = 5 * time.Millisecond
			} else if retryDelay *= 2; retryDelay > time.Second {
				retryDelay = time.Second
			}
			time.Sleep(retryDelay)
			continue
		}
		retryDelay = 0

		s.start(ctx, t)
	}
}

// start runs a session for t unless Shutdown has begun, in which case t is
// closed. The flag and wg.Add share s.mu with Shutdown.
func (s *Server) start(ctx context.Context, t transport.Transport) bool {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		t.Close()
		return false
	}
	id := s.nextID.Add(1)
	sess := newSession(id, t, s)
	s.sessions.Store(id, sess)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.sessions.Delete(id)
		sess.Run(ctx)
	}()
	return true
}

// Shutdown stops accepting, closes every live session and waits for them.
// File sources created by New are released.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	s.shutdown = true
	ln := s.ln
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}

	s.sessions.Range(func(_ uint64, sess *Session) bool {
		sess.Close()
		return true
	})
	s.wg.Wait()

	if s.ownsFiles {
		s.files.Close()
	}
	return err
}

// ActiveSessions returns the number of connections being served
func (s *Server) ActiveSessions() int {
	return s.sessions.Size()
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}
