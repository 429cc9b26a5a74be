package server

import (
	"io"
	"strings"

	"github.com/nczempin/httpd-go-uring/cookie"
	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/storage"
	"github.com/nczempin/httpd-go-uring/transport"
)

// Outcome tells the session loop what to do after a request was answered
type Outcome int

const (
	// OutcomeSuccess keeps the connection open
	OutcomeSuccess Outcome = iota
	// OutcomeNotFound keeps the connection open after a 404
	OutcomeNotFound
	// OutcomeRejected keeps the connection open after a 401 or 405
	OutcomeRejected
	// OutcomeTerminate closes the connection
	OutcomeTerminate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not found"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTerminate:
		return "terminate"
	}
	return "unknown"
}

// Result describes the response a handler produced
type Result struct {
	Outcome Outcome
	Status  protocol.Status
	// Bytes counts head and body bytes written
	Bytes int64
}

// RouterConfig holds what the router needs to resolve and answer requests
type RouterConfig struct {
	// WebRoot is prepended to resource names; it ends in a separator
	WebRoot       string
	FormTarget    string
	OkFile        string
	FailFile      string
	AllowedEmails []string
}

// Router answers GET and POST requests
type Router struct {
	cfg     RouterConfig
	files   storage.FileSource
	enc     *protocol.Encoder
	counter cookie.Counter
	allowed map[string]struct{}
}

// NewRouter creates a router reading files from files
func NewRouter(cfg RouterConfig, files storage.FileSource, enc *protocol.Encoder, counter cookie.Counter) *Router {
	allowed := make(map[string]struct{}, len(cfg.AllowedEmails))
	for _, e := range cfg.AllowedEmails {
		allowed[e] = struct{}{}
	}
	return &Router{
		cfg:     cfg,
		files:   files,
		enc:     enc,
		counter: counter,
		allowed: allowed,
	}
}

// Serve dispatches req by method and writes the response to t.
// A returned error means the transport failed and the connection is unusable.
func (r *Router) Serve(req *protocol.HttpRequest, t transport.Transport) (Result, error) {
	switch req.Method {
	case protocol.MethodGet:
		return r.Get(req, t)
	case protocol.MethodPost:
		return r.Post(req, t)
	}
	return r.inline(t, protocol.StatusMethodNotAllowed, 0, OutcomeRejected)
}

// Get serves a static file. A saturated access counter answers 403 and ends the
// connection; anything that cannot be served answers 404 and keeps it.
func (r *Router) Get(req *protocol.HttpRequest, t transport.Transport) (Result, error) {
	resource := ResourceName(req.Target)

	counter := r.counter.Next(req.Headers, resource)
	if r.counter.Exceeded(counter) {
		return r.inline(t, protocol.StatusForbidden, counter, OutcomeTerminate)
	}

	if !safeResource(resource) {
		return r.inline(t, protocol.StatusNotFound, counter, OutcomeNotFound)
	}

	contentType, known := protocol.ContentType(resource)
	if !known {
		return r.inline(t, protocol.StatusNotFound, counter, OutcomeNotFound)
	}

	f, info, err := r.files.Open(r.cfg.WebRoot + resource)
	if err != nil {
		return r.inline(t, protocol.StatusNotFound, counter, OutcomeNotFound)
	}
	defer f.Close()

	w := transport.NewChunkWriter(t)
	head := r.enc.Ok(contentType, info.Size, counter)
	if _, err := w.Write(head); err != nil {
		return Result{Status: protocol.StatusOK}, err
	}

	n, err := w.Stream(io.LimitReader(f, info.Size))
	res := Result{Outcome: OutcomeSuccess, Status: protocol.StatusOK, Bytes: int64(len(head)) + n}
	if err != nil {
		if errors.IsType(err, errors.ErrorTransport) {
			return res, err
		}
		res.Outcome = OutcomeTerminate
		return res, nil
	}
	if n != info.Size {
		// Content-Length promised more than the file delivered
		res.Outcome = OutcomeTerminate
	}
	return res, nil
}

// Post handles the form submission target. The first body line carries
// key=value where value is the submitted email.
func (r *Router) Post(req *protocol.HttpRequest, t transport.Transport) (Result, error) {
	if req.Path() != r.cfg.FormTarget {
		return r.inline(t, protocol.StatusMethodNotAllowed, 0, OutcomeRejected)
	}

	counter := r.counter.Next(req.Headers, "")

	_, accepted := r.allowed[FormEmail(req.Body)]
	page, status, outcome := r.cfg.OkFile, protocol.StatusOK, OutcomeSuccess
	if !accepted {
		page, status, outcome = r.cfg.FailFile, protocol.StatusUnauthorized, OutcomeRejected
	}

	body, err := r.readPage(page)
	if err != nil {
		return r.inline(t, protocol.StatusNotFound, counter, OutcomeNotFound)
	}

	var head []byte
	if accepted {
		contentType, known := protocol.ContentType(page)
		if !known {
			contentType = "text/html"
		}
		head = r.enc.Ok(contentType, int64(len(body)), counter)
	} else {
		head = r.enc.Error(status, counter, protocol.ErrorModeFile, int64(len(body)))
	}

	msg := append(head, body...)
	n, err := transport.NewChunkWriter(t).Write(msg)
	return Result{Outcome: outcome, Status: status, Bytes: int64(n)}, err
}

// readPage returns at most one buffer of the page
func (r *Router) readPage(name string) ([]byte, error) {
	f, _, err := r.files.Open(r.cfg.WebRoot + name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, transport.BufSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}

// inline writes an error status with the generated HTML page
func (r *Router) inline(t transport.Transport, status protocol.Status, counter int, outcome Outcome) (Result, error) {
	return writeInline(t, r.enc, status, counter, outcome)
}

func writeInline(t transport.Transport, enc *protocol.Encoder, status protocol.Status, counter int, outcome Outcome) (Result, error) {
	msg := enc.Error(status, counter, protocol.ErrorModeInline, 0)
	n, err := transport.NewChunkWriter(t).Write(msg)
	return Result{Outcome: outcome, Status: status, Bytes: int64(n)}, err
}

// ResourceName maps a request target to a name under the web root.
// The query is dropped, "/" becomes index.html and one leading slash is removed.
func ResourceName(target string) string {
	path, _, _ := strings.Cut(target, "?")
	if path == "/" {
		return cookie.DefaultTracked
	}
	return strings.TrimPrefix(path, "/")
}

// FormEmail extracts and decodes the value of the first body line
func FormEmail(body []byte) string {
	line := string(body)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	_, value, found := strings.Cut(line, "=")
	if !found {
		return ""
	}
	return strings.ReplaceAll(strings.TrimSpace(value), "%40", "@")
}

// safeResource rejects names that would escape the web root
func safeResource(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.ContainsRune(name, 0) {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
