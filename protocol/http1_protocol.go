package protocol

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/nczempin/httpd-go-uring/errors"
)

var (
	headerSeparator  = []byte("\r\n\r\n")
	contentLengthKey = []byte("content-length:")
	postPrefix       = []byte("POST ")
)

const (
	// DefaultMaxHeaderBytes bounds the request line plus header block
	DefaultMaxHeaderBytes = 64 << 10
	// DefaultMaxBodyBytes bounds the body a request may carry
	DefaultMaxBodyBytes = 1 << 20
)

// FrameStatus is the result of testing buffered bytes for a complete message
type FrameStatus int

const (
	FrameIncomplete FrameStatus = iota
	FrameComplete
	FrameMalformed
	FrameTooLarge
)

func (s FrameStatus) String() string {
	switch s {
	case FrameIncomplete:
		return "incomplete"
	case FrameComplete:
		return "complete"
	case FrameMalformed:
		return "malformed"
	case FrameTooLarge:
		return "too large"
	}
	return "unknown"
}

// Frame reports whether buf starts with a complete request message and how many
// bytes that message spans. Bytes past n belong to the next request.
//
// The header block ends at the first CRLF CRLF. A Content-Length header extends the
// message by that many body bytes. Without one, a POST takes whatever follows the
// header block and any other method has an empty body.
//
// A Content-Length above maxBodyBytes is FrameTooLarge as soon as the header block
// is buffered. Zero limits disable the checks.
//
// For FrameMalformed and FrameTooLarge, n covers the whole buffer since the stream
// cannot be resynchronised.
func Frame(buf []byte, maxHeaderBytes, maxBodyBytes int) (int, FrameStatus) {
	pos := bytes.Index(buf, headerSeparator)
	if pos < 0 {
		if maxHeaderBytes > 0 && len(buf) > maxHeaderBytes {
			return len(buf), FrameTooLarge
		}
		return 0, FrameIncomplete
	}

	headerSize := pos + len(headerSeparator)
	if maxHeaderBytes > 0 && headerSize > maxHeaderBytes {
		return len(buf), FrameTooLarge
	}

	length, found, ok := parseContentLength(buf[:headerSize])
	if found {
		if !ok {
			return len(buf), FrameMalformed
		}
		if maxBodyBytes > 0 && length > maxBodyBytes {
			return len(buf), FrameTooLarge
		}
		if len(buf)-headerSize < length {
			return 0, FrameIncomplete
		}
		return headerSize + length, FrameComplete
	}

	if bytes.HasPrefix(buf, postPrefix) {
		if maxBodyBytes > 0 && len(buf)-headerSize > maxBodyBytes {
			return len(buf), FrameTooLarge
		}
		return len(buf), FrameComplete
	}
	return headerSize, FrameComplete
}

// parseContentLength extracts Content-Length from a header block.
// found reports whether the header is present, ok whether its value is usable.
func parseContentLength(headersView []byte) (length int, found, ok bool) {
	lines := bytes.Split(headersView, []byte("\r\n"))
	for _, line := range lines[1:] { // Skip request line
		if len(line) == 0 {
			break
		}

		if bytes.HasPrefix(bytes.ToLower(line), contentLengthKey) {
			valueStr := strings.TrimSpace(string(line[len(contentLengthKey):]))
			n, err := strconv.Atoi(valueStr)
			if err != nil || n < 0 {
				return 0, true, false
			}
			return n, true, true
		}
	}
	return 0, false, false
}

// Parse tokenizes one framed message into a request.
//
// The request line must be METHOD SP TARGET SP HTTP/<digit>.<digit>, with a method of
// at least three characters. Each header line must be "Name: Value" with both sides
// non-empty. Anything after the blank line is the body.
func Parse(msg []byte) (*HttpRequest, error) {
	pos := bytes.Index(msg, headerSeparator)
	if pos < 0 {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequest,
			"missing end of header block",
		)
	}

	lines := strings.Split(string(msg[:pos]), "\r\n")
	for _, line := range lines {
		if strings.ContainsAny(line, "\r\n") {
			return nil, errors.NewProtocolError(
				errors.ProtocolErrorMalformedRequest,
				"bare CR or LF in header block",
			)
		}
	}

	req, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, err
	}

	for _, line := range lines[1:] {
		header, err := parseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		req.Headers = append(req.Headers, header)
	}

	if body := msg[pos+len(headerSeparator):]; len(body) > 0 {
		req.Body = make([]byte, len(body))
		copy(req.Body, body)
	}

	return req, nil
}

// parseRequestLine splits "GET /index.html HTTP/1.1" on single spaces.
func parseRequestLine(line string) (*HttpRequest, error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequest,
			"request line must have three fields",
		)
	}

	method, target, version := parts[0], parts[1], parts[2]
	if len(method) < 3 {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequest,
			"method token too short",
		)
	}
	if target == "" {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequest,
			"empty request target",
		)
	}
	if !validVersion(version) {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequest,
			"invalid version token "+strconv.Quote(version),
		)
	}

	return &HttpRequest{
		Method:  HttpMethod(method),
		Target:  target,
		Version: version,
	}, nil
}

// validVersion accepts HTTP/<digit>.<digit>
func validVersion(v string) bool {
	if len(v) != len("HTTP/1.1") || !strings.HasPrefix(v, "HTTP/") {
		return false
	}
	return isDigit(v[5]) && v[6] == '.' && isDigit(v[7])
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func parseHeaderLine(line string) (HttpHeader, error) {
	i := strings.Index(line, ": ")
	if i <= 0 {
		return HttpHeader{}, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequest,
			"header line without \": \" separator",
		)
	}

	value := strings.TrimSpace(line[i+2:])
	if value == "" {
		return HttpHeader{}, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequest,
			"empty header value for "+line[:i],
		)
	}

	return HttpHeader{Key: line[:i], Value: value}, nil
}
