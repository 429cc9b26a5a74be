package protocol

import "strings"

// HttpMethod is the request method token as sent by the client
type HttpMethod string

const (
	MethodGet     HttpMethod = "GET"
	MethodPost    HttpMethod = "POST"
	MethodHead    HttpMethod = "HEAD"
	MethodPut     HttpMethod = "PUT"
	MethodDelete  HttpMethod = "DELETE"
	MethodConnect HttpMethod = "CONNECT"
	MethodOptions HttpMethod = "OPTIONS"
	MethodTrace   HttpMethod = "TRACE"
	MethodPatch   HttpMethod = "PATCH"
)

// Implemented reports whether the server serves the method.
// Everything else, known or not, is answered with 405.
func (m HttpMethod) Implemented() bool {
	return m == MethodGet || m == MethodPost
}

// Known reports whether the method is a standard HTTP/1.1 method.
func (m HttpMethod) Known() bool {
	switch m {
	case MethodGet, MethodPost, MethodHead, MethodPut, MethodDelete,
		MethodConnect, MethodOptions, MethodTrace, MethodPatch:
		return true
	}
	return false
}

// Version1_1 is the only protocol version the server accepts
const Version1_1 = "HTTP/1.1"

// HttpHeader represents an HTTP header key-value pair
type HttpHeader struct {
	Key   string
	Value string
}

// HttpRequest represents a parsed HTTP request.
// Headers keep the order and duplicates of the wire.
type HttpRequest struct {
	Method  HttpMethod
	Target  string
	Version string
	Headers []HttpHeader
	Body    []byte
}

// Header returns the value of the first header named key, compared case-insensitively.
func (r *HttpRequest) Header(key string) (string, bool) {
	return findHeader(r.Headers, key)
}

// Path returns the target without its query string.
func (r *HttpRequest) Path() string {
	if i := strings.IndexByte(r.Target, '?'); i >= 0 {
		return r.Target[:i]
	}
	return r.Target
}

func findHeader(headers []HttpHeader, key string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// Status is a response status code
type Status int

const (
	StatusOK                  Status = 200
	StatusBadRequest          Status = 400
	StatusUnauthorized        Status = 401
	StatusForbidden           Status = 403
	StatusNotFound            Status = 404
	StatusMethodNotAllowed    Status = 405
	StatusVersionNotSupported Status = 505
)

var statusText = map[Status]string{
	StatusOK:                  "OK",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusVersionNotSupported: "Version Not Supported",
}

// Reason returns the reason phrase sent on the status line.
func (s Status) Reason() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return "Unknown"
}

// Terminates reports whether the connection must be closed after the response.
func (s Status) Terminates() bool {
	return s == StatusForbidden
}
