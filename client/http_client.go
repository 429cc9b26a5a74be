// Package client is a wire-level HTTP/1.1 client for driving the server.
// It writes requests byte for byte as given and frames responses by
// Content-Length, so malformed and pipelined traffic can be produced.
package client

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/protocol"
)

// HttpResponse is one parsed response
type HttpResponse struct {
	StatusCode    int
	StatusMessage string
	Headers       []protocol.HttpHeader
	Body          []byte
	ContentLength int
}

// Header returns the first header named key, case-insensitively
func (r *HttpResponse) Header(key string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// Cookie returns the value a Set-Cookie header assigns to name
func (r *HttpResponse) Cookie(name string) (string, bool) {
	for _, h := range r.Headers {
		if !strings.EqualFold(h.Key, "Set-Cookie") {
			continue
		}
		pair, _, _ := strings.Cut(h.Value, ";")
		k, v, found := strings.Cut(strings.TrimSpace(pair), "=")
		if found && k == name {
			return v, true
		}
	}
	return "", false
}

// HttpClient holds one connection to the server
type HttpClient struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// Dial connects to address. timeout bounds every later read.
func Dial(network, address string, timeout time.Duration) (*HttpClient, error) {
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			fmt.Sprintf("failed to connect to %s", address),
			err,
		)
	}
	return &HttpClient{conn: conn, r: bufio.NewReader(conn), timeout: timeout}, nil
}

// Disconnect closes the connection
func (c *HttpClient) Disconnect() error {
	return c.conn.Close()
}

// LocalAddr returns the client side of the connection
func (c *HttpClient) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Send writes raw bytes to the server
func (c *HttpClient) Send(raw []byte) error {
	if _, err := c.conn.Write(raw); err != nil {
		return errors.NewTransportError(errors.TransportErrorSocketWriteFailure, "send failed", err)
	}
	return nil
}

// Do serializes req, sends it and reads one response
func (c *HttpClient) Do(req *protocol.HttpRequest) (*HttpResponse, error) {
	if err := c.Send(Build(req)); err != nil {
		return nil, err
	}
	return c.ReadResponse()
}

// Get requests target with optional extra headers
func (c *HttpClient) Get(target string, headers ...protocol.HttpHeader) (*HttpResponse, error) {
	return c.Do(&protocol.HttpRequest{
		Method:  protocol.MethodGet,
		Target:  target,
		Version: protocol.Version1_1,
		Headers: headers,
	})
}

// Post submits body to target. Content-Length is added when missing.
func (c *HttpClient) Post(target string, body []byte, headers ...protocol.HttpHeader) (*HttpResponse, error) {
	hasContentLength := false
	for _, h := range headers {
		if strings.EqualFold(h.Key, "Content-Length") {
			hasContentLength = true
			break
		}
	}
	if !hasContentLength {
		headers = append(headers, protocol.HttpHeader{Key: "Content-Length", Value: strconv.Itoa(len(body))})
	}

	return c.Do(&protocol.HttpRequest{
		Method:  protocol.MethodPost,
		Target:  target,
		Version: protocol.Version1_1,
		Headers: headers,
		Body:    body,
	})
}

// Build serializes a request. A Host header is not added.
func Build(req *protocol.HttpRequest) []byte {
	version := req.Version
	if version == "" {
		version = protocol.Version1_1
	}

	var b strings.Builder
	b.WriteString(string(req.Method))
	b.WriteByte(' ')
	b.WriteString(req.Target)
	b.WriteByte(' ')
	b.WriteString(version)
	b.WriteString("\r\n")
	for _, h := range req.Headers {
		b.WriteString(h.Key)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(req.Body)
	return []byte(b.String())
}

// ReadResponse reads one response from the connection
func (c *HttpClient) ReadResponse() (*HttpResponse, error) {
	if c.timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	}

	statusLine, err := c.readLine()
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return nil, errors.NewProtocolError(errors.ProtocolErrorMalformedRequest, "invalid status line: "+statusLine)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errors.NewProtocolError(errors.ProtocolErrorMalformedRequest, "invalid status code: "+parts[1])
	}
	resp := &HttpResponse{StatusCode: code}
	if len(parts) == 3 {
		resp.StatusMessage = parts[2]
	}

	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, errors.NewProtocolError(errors.ProtocolErrorMalformedRequest, "invalid header line: "+line)
		}
		resp.Headers = append(resp.Headers, protocol.HttpHeader{Key: key, Value: strings.TrimSpace(value)})
	}

	if v, ok := resp.Header("Content-Length"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.NewProtocolError(errors.ProtocolErrorMalformedRequest, "invalid Content-Length: "+v)
		}
		resp.ContentLength = n
		resp.Body = make([]byte, n)
		if _, err := io.ReadFull(c.r, resp.Body); err != nil {
			return nil, classify(err)
		}
	}

	return resp, nil
}

// Closed reports whether the server has closed the connection, waiting at
// most wait for the close to arrive.
func (c *HttpClient) Closed(wait time.Duration) bool {
	c.conn.SetReadDeadline(time.Now().Add(wait))
	_, err := c.r.Peek(1)
	if err == nil {
		return false
	}
	var netErr net.Error
	return !(stderrors.As(err, &netErr) && netErr.Timeout())
}

func (c *HttpClient) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}

func classify(err error) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTransportError(errors.TransportErrorTimeout, "read timed out", err)
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed", err)
	}
	return errors.NewTransportError(errors.TransportErrorSocketReadFailure, "read failed", err)
}
