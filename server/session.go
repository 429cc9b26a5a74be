package server

import (
	"context"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/logging"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/transport"
)

// State is where a session is in its lifecycle
type State int

const (
	StateWaitingForData State = iota
	StateHaveCompleteMessage
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateWaitingForData:
		return "waiting for data"
	case StateHaveCompleteMessage:
		return "have complete message"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session owns one accepted connection until it closes
type Session struct {
	id     uint64
	t      transport.Transport
	router *Router
	enc    *protocol.Encoder
	sink   logging.Sink

	idle           time.Duration
	maxHeaderBytes int
	maxBodyBytes   int

	buf          []byte
	state        State
	requests     int
	lastActivity time.Time
}

func newSession(id uint64, t transport.Transport, s *Server) *Session {
	return &Session{
		id:             id,
		t:              t,
		router:         s.router,
		enc:            s.enc,
		sink:           s.sink,
		idle:           s.cfg.IdleTimeout(),
		maxHeaderBytes: s.cfg.MaxHeaderBytes,
		maxBodyBytes:   protocol.DefaultMaxBodyBytes,
		state:          StateWaitingForData,
	}
}

// ID returns the registry key of the session
func (s *Session) ID() uint64 { return s.id }

// Close tears the connection down; a blocked Run returns soon after
func (s *Session) Close() error {
	return s.t.Close()
}

// Run drives the connection until the peer leaves, the idle timeout
// elapses, a handler asks to terminate or ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { s.t.Close() })
	defer stop()
	defer s.t.Close()

	s.t.SetIdleTimeout(s.idle)
	s.lastActivity = time.Now()
	s.emit(logging.Event{Kind: logging.KindConnectionOpened})

	readBuf := make([]byte, transport.BufSize)
	for s.state != StateClosed {
		if s.state == StateHaveCompleteMessage || len(s.buf) > 0 && s.frameReady() {
			s.state = StateHaveCompleteMessage
			s.step()
			continue
		}

		n, err := s.t.Read(readBuf)
		if err != nil {
			s.readFailed(ctx, err)
			break
		}
		s.lastActivity = time.Now()
		s.buf = append(s.buf, readBuf[:n]...)
	}

	s.state = StateClosed
	s.emit(logging.Event{
		Kind:     logging.KindConnectionClosed,
		Requests: s.requests,
		Elapsed:  time.Since(s.lastActivity),
	})
}

func (s *Session) frameReady() bool {
	_, status := protocol.Frame(s.buf, s.maxHeaderBytes, s.maxBodyBytes)
	return status != protocol.FrameIncomplete
}

func (s *Session) readFailed(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil:
	case errors.IsTimeout(err):
		s.emit(logging.Event{Kind: logging.KindTimeout, Elapsed: time.Since(s.lastActivity)})
	case errors.IsClosed(err):
	default:
		s.emit(logging.Event{Kind: logging.KindTransportError, Err: err})
	}
}

// step handles the message at the front of the buffer
func (s *Session) step() {
	n, status := protocol.Frame(s.buf, s.maxHeaderBytes, s.maxBodyBytes)
	msg := s.buf[:n]
	defer s.consume(n)

	start := time.Now()
	switch status {
	case protocol.FrameComplete:
	case protocol.FrameTooLarge:
		s.reject(nil, start, protocol.StatusBadRequest,
			errors.NewProtocolError(errors.ProtocolErrorMessageTooLarge, "request exceeds size limits"))
		return
	default:
		s.reject(nil, start, protocol.StatusBadRequest,
			errors.NewProtocolError(errors.ProtocolErrorMalformedRequest, "unframeable request"))
		return
	}

	req, err := protocol.Parse(msg)
	if err != nil {
		s.reject(nil, start, protocol.StatusBadRequest, err)
		return
	}
	s.emit(requestEvent(req))

	switch {
	case req.Version != protocol.Version1_1:
		s.reject(req, start, protocol.StatusVersionNotSupported,
			errors.NewProtocolError(errors.ProtocolErrorUnsupportedVersion, req.Version))
	case !req.Method.Implemented():
		msg := "method " + string(req.Method) + " not implemented"
		if !req.Method.Known() {
			msg = "unknown method " + string(req.Method)
		}
		s.reject(req, start, protocol.StatusMethodNotAllowed,
			errors.NewProtocolError(errors.ProtocolErrorMethodNotAllowed, msg))
	default:
		res, err := s.router.Serve(req, s.t)
		s.finish(req, start, res, err, nil)
	}
}

// reject answers with an inline error page and keeps the connection.
// cause is logged with the response.
func (s *Session) reject(req *protocol.HttpRequest, start time.Time, status protocol.Status, cause error) {
	res, err := writeInline(s.t, s.enc, status, 0, OutcomeRejected)
	s.finish(req, start, res, err, cause)
}

// finish logs the response. Only a write error closes the session;
// cause explains a rejection.
func (s *Session) finish(req *protocol.HttpRequest, start time.Time, res Result, err, cause error) {
	s.requests++

	ev := logging.Event{
		Kind:    logging.KindResponse,
		Status:  int(res.Status),
		Bytes:   res.Bytes,
		Elapsed: time.Since(start),
		Err:     err,
	}
	if err == nil {
		ev.Err = cause
	}
	if req != nil {
		ev.Method = string(req.Method)
		ev.Target = req.Target
	}
	s.emit(ev)

	if err != nil || res.Outcome == OutcomeTerminate {
		s.state = StateClosed
		return
	}
	s.state = StateWaitingForData
}

// consume drops n bytes from the front of the buffer, keeping pipelined data
func (s *Session) consume(n int) {
	rest := copy(s.buf, s.buf[n:])
	s.buf = s.buf[:rest]
}

func (s *Session) emit(ev logging.Event) {
	ev.Session = s.id
	if ev.Remote == nil {
		ev.Remote = s.t.RemoteAddr()
	}
	s.sink.Emit(ev)
}

func requestEvent(req *protocol.HttpRequest) logging.Event {
	headers := make([]logging.Header, len(req.Headers))
	for i, h := range req.Headers {
		headers[i] = logging.Header{Key: h.Key, Value: h.Value}
	}
	return logging.Event{
		Kind:    logging.KindRequest,
		Method:  string(req.Method),
		Target:  req.Target,
		Headers: headers,
	}
}
