package protocol

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// TimeFormat is the HTTP date layout; times must be in UTC
	TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

	// CookieMaxAge is the lifetime in seconds of the counter cookie
	CookieMaxAge = 120

	DefaultServerName = "STTT3776.org"
)

// ErrorMode selects where an error response body comes from
type ErrorMode int

const (
	// ErrorModeInline carries a small generated HTML page
	ErrorModeInline ErrorMode = iota
	// ErrorModeFile emits the head only; the caller appends a file body
	ErrorModeFile
)

// Head describes everything that goes before the body
type Head struct {
	Status        Status
	ContentType   string
	ContentLength int64
	Counter       int
	Close         bool
}

// Encoder serializes response heads
type Encoder struct {
	ServerName       string
	KeepAliveTimeout time.Duration
	CookieName       string
	Now              func() time.Time
}

// NewEncoder creates an encoder advertising the given keep-alive timeout
func NewEncoder(serverName, cookieName string, keepAlive time.Duration) *Encoder {
	return &Encoder{
		ServerName:       serverName,
		KeepAliveTimeout: keepAlive,
		CookieName:       cookieName,
		Now:              time.Now,
	}
}

// Encode builds the status line and headers followed by the blank line.
// A zero counter means no Set-Cookie header.
func (e *Encoder) Encode(h Head) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(h.Status), 10)
	buf = append(buf, ' ')
	buf = append(buf, h.Status.Reason()...)
	buf = append(buf, "\r\n"...)

	buf = appendHeader(buf, "Date", e.now().UTC().Format(TimeFormat))
	buf = appendHeader(buf, "Server", e.ServerName)
	if h.Close {
		buf = appendHeader(buf, "Connection", "close")
	} else {
		buf = appendHeader(buf, "Connection", "keep-alive")
		buf = appendHeader(buf, "Keep-Alive", "timeout="+strconv.Itoa(int(e.KeepAliveTimeout/time.Second)))
	}
	if h.Counter != 0 {
		buf = appendHeader(buf, "Set-Cookie",
			fmt.Sprintf("%s=%d; max-age=%d", e.CookieName, h.Counter, CookieMaxAge))
	}
	buf = appendHeader(buf, "Content-Length", strconv.FormatInt(h.ContentLength, 10))
	buf = appendHeader(buf, "Content-Type", h.ContentType)

	return append(buf, "\r\n"...)
}

// Ok builds a 200 head for a body of contentLength bytes
func (e *Encoder) Ok(contentType string, contentLength int64, counter int) []byte {
	return e.Encode(Head{
		Status:        StatusOK,
		ContentType:   contentType,
		ContentLength: contentLength,
		Counter:       counter,
	})
}

// Error builds an error response. In inline mode the returned bytes include the
// generated HTML page. In file mode they hold the head only, sized by fileSize.
// Statuses that terminate the connection advertise Connection: close.
func (e *Encoder) Error(status Status, counter int, mode ErrorMode, fileSize int64) []byte {
	head := Head{
		Status:      status,
		ContentType: contentTypes["html"],
		Counter:     counter,
		Close:       status.Terminates(),
	}

	if mode == ErrorModeFile {
		head.ContentLength = fileSize
		return e.Encode(head)
	}

	page := ErrorPage(status)
	head.ContentLength = int64(len(page))
	return append(e.Encode(head), page...)
}

// ErrorPage renders the inline HTML body for status
func ErrorPage(status Status) []byte {
	return []byte(fmt.Sprintf("<!DOCTYPE html>"+
		"<html>\r\n"+
		"\t<head>\r\n"+
		"\t\t<title>Error %d</title>\r\n"+
		"\t</head>\r\n"+
		"\t<body>\r\n"+
		"\t\t<h1>%d. %s</h1>\r\n"+
		"\t</body>\r\n"+
		"</html>\r\n", int(status), int(status), status.Reason()))
}

func (e *Encoder) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func appendHeader(buf []byte, key, value string) []byte {
	buf = append(buf, key...)
	buf = append(buf, ": "...)
	buf = append(buf, value...)
	return append(buf, "\r\n"...)
}
