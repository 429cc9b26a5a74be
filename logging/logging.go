// Package logging turns server events into log records.
package logging

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind names what happened on a connection
type Kind string

const (
	KindConnectionOpened Kind = "connection_opened"
	KindRequest          Kind = "request"
	KindResponse         Kind = "response"
	KindTimeout          Kind = "timeout"
	KindConnectionClosed Kind = "connection_closed"
	KindTransportError   Kind = "transport_error"
	KindServerStarted    Kind = "server_started"
	KindServerStopped    Kind = "server_stopped"
)

// Header is one request header as logged
type Header struct {
	Key   string
	Value string
}

// Event is a single observable thing the server did
type Event struct {
	Kind    Kind
	Session uint64
	Remote  net.Addr
	Method  string
	Target  string
	Status  int
	Bytes   int64
	Err     error
	Elapsed time.Duration
	Headers []Header
	// Requests is set on connection_closed
	Requests int
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// Format selects the output encoding
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// ZerologSink writes events through a zerolog.Logger
type ZerologSink struct {
	log zerolog.Logger
}

// New builds a sink writing to w. Verbose lowers the level to debug,
// which also logs request headers.
func New(w io.Writer, format Format, verbose bool) *ZerologSink {
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return &ZerologSink{
		log: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// Logger exposes the underlying logger for startup messages
func (s *ZerologSink) Logger() *zerolog.Logger {
	return &s.log
}

// Emit implements Sink
func (s *ZerologSink) Emit(ev Event) {
	var e *zerolog.Event
	switch ev.Kind {
	case KindTransportError:
		e = s.log.Warn()
	case KindRequest, KindConnectionOpened, KindConnectionClosed, KindTimeout:
		e = s.log.Debug()
	default:
		e = s.log.Info()
	}
	if e == nil {
		return
	}

	e = e.Str("event", string(ev.Kind))
	if ev.Session != 0 {
		e = e.Uint64("session", ev.Session)
	}
	if ev.Remote != nil {
		e = e.Str("remote", ev.Remote.String())
	}
	if ev.Method != "" {
		e = e.Str("method", ev.Method)
	}
	if ev.Target != "" {
		e = e.Str("target", ev.Target)
	}
	if ev.Status != 0 {
		e = e.Int("status", ev.Status)
	}
	if ev.Kind == KindResponse {
		e = e.Int64("bytes", ev.Bytes)
	}
	if ev.Kind == KindConnectionClosed {
		e = e.Int("requests", ev.Requests)
	}
	if ev.Elapsed > 0 {
		e = e.Dur("elapsed", ev.Elapsed)
	}
	if len(ev.Headers) > 0 {
		d := zerolog.Dict()
		for _, h := range ev.Headers {
			d = d.Str(h.Key, h.Value)
		}
		e = e.Dict("headers", d)
	}
	if ev.Err != nil {
		e = e.Err(ev.Err)
	}
	e.Send()
}

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event
var Discard Sink = discard{}

// Recorder keeps events in memory; tests use it to observe the server
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of kind k were recorded
func (r *Recorder) Count(k Kind) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind == k {
			n++
		}
	}
	return n
}
