package protocol

import (
	"strings"
	"testing"

	"github.com/nczempin/httpd-go-uring/errors"
)

func TestFrame_HeaderBlock(t *testing.T) {
	tests := []struct {
		name   string
		buf    string
		n      int
		status FrameStatus
	}{
		{"empty", "", 0, FrameIncomplete},
		{"partial request line", "GET / HT", 0, FrameIncomplete},
		{"missing blank line", "GET / HTTP/1.1\r\nHost: a\r\n", 0, FrameIncomplete},
		{"complete get", "GET / HTTP/1.1\r\nHost: a\r\n\r\n", 27, FrameComplete},
		{"no headers", "GET / HTTP/1.1\r\n\r\n", 18, FrameComplete},
		{"pipelined get", "GET / HTTP/1.1\r\n\r\nGET /a HTTP/1.1\r\n\r\n", 18, FrameComplete},
		{"content length body", "POST /f HTTP/1.1\r\nContent-Length: 3\r\n\r\nabcGET", 42, FrameComplete},
		{"content length pending", "POST /f HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc", 0, FrameIncomplete},
		{"post without length takes rest", "POST /f HTTP/1.1\r\n\r\nemail=x", 27, FrameComplete},
		{"bad content length", "GET / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", 38, FrameMalformed},
		{"non numeric content length", "GET / HTTP/1.1\r\ncontent-length: ten\r\n\r\n", 39, FrameMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, status := Frame([]byte(tt.buf), DefaultMaxHeaderBytes, DefaultMaxBodyBytes)
			if status != tt.status {
				t.Fatalf("Expected status %v, got %v", tt.status, status)
			}
			if n != tt.n {
				t.Errorf("Expected n=%d, got %d", tt.n, n)
			}
		})
	}
}

func TestFrame_TooLarge(t *testing.T) {
	buf := make([]byte, 100)
	for i := range buf {
		buf[i] = 'a'
	}

	n, status := Frame(buf, 64, 0)
	if status != FrameTooLarge {
		t.Fatalf("Expected FrameTooLarge, got %v", status)
	}
	if n != len(buf) {
		t.Errorf("Expected whole buffer to be consumed, got %d", n)
	}

	// Below the limit the same bytes are simply incomplete
	if _, status := Frame(buf, 0, 0); status != FrameIncomplete {
		t.Errorf("Expected FrameIncomplete without limit, got %v", status)
	}
}

func TestFrame_BodyLimit(t *testing.T) {
	head := "POST /f HTTP/1.1\r\nContent-Length: 5000000\r\n\r\n"
	buf := []byte(head + "email=x")

	n, status := Frame(buf, DefaultMaxHeaderBytes, DefaultMaxBodyBytes)
	if status != FrameTooLarge {
		t.Fatalf("Expected FrameTooLarge for an announced body above the limit, got %v", status)
	}
	if n != len(buf) {
		t.Errorf("Expected whole buffer to be consumed, got %d", n)
	}

	// At the limit the message is just waiting for its body
	atLimit := []byte("POST /f HTTP/1.1\r\nContent-Length: 16\r\n\r\nabc")
	if _, status := Frame(atLimit, DefaultMaxHeaderBytes, 16); status != FrameIncomplete {
		t.Errorf("Expected FrameIncomplete at the limit, got %v", status)
	}

	// Unframed POST bodies are capped as well
	unframed := []byte("POST /f HTTP/1.1\r\n\r\n" + strings.Repeat("a", 32))
	if _, status := Frame(unframed, DefaultMaxHeaderBytes, 16); status != FrameTooLarge {
		t.Errorf("Expected FrameTooLarge for oversized unframed body, got %v", status)
	}
}

func TestParse_Valid(t *testing.T) {
	msg := "GET /index.html?x=1 HTTP/1.1\r\n" +
		"Host: localhost:8080\r\n" +
		"Cookie: cookie_counter_3776=4\r\n" +
		"Cookie: other=1\r\n" +
		"\r\n"

	req, err := Parse([]byte(msg))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if req.Method != MethodGet {
		t.Errorf("Expected GET, got %q", req.Method)
	}
	if req.Target != "/index.html?x=1" {
		t.Errorf("Expected target with query, got %q", req.Target)
	}
	if req.Path() != "/index.html" {
		t.Errorf("Expected path without query, got %q", req.Path())
	}
	if req.Version != Version1_1 {
		t.Errorf("Expected HTTP/1.1, got %q", req.Version)
	}
	if len(req.Headers) != 3 {
		t.Fatalf("Expected 3 headers, got %d", len(req.Headers))
	}
	if req.Headers[1].Value != "cookie_counter_3776=4" || req.Headers[2].Value != "other=1" {
		t.Errorf("Headers out of order: %+v", req.Headers)
	}
	if host, ok := req.Header("host"); !ok || host != "localhost:8080" {
		t.Errorf("Expected case-insensitive Host lookup, got %q %v", host, ok)
	}
	if req.Body != nil {
		t.Errorf("Expected no body, got %q", req.Body)
	}
}

func TestParse_Body(t *testing.T) {
	msg := "POST /accion_form.html HTTP/1.1\r\nContent-Length: 15\r\n\r\nemail=a%40b.es\n"

	req, err := Parse([]byte(msg))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.Method != MethodPost {
		t.Errorf("Expected POST, got %q", req.Method)
	}
	if string(req.Body) != "email=a%40b.es\n" {
		t.Errorf("Unexpected body %q", req.Body)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"missing version", "GET /\r\n\r\n"},
		{"double space", "GET  / HTTP/1.1\r\n\r\n"},
		{"short method", "GE / HTTP/1.1\r\n\r\n"},
		{"bad version", "GET / HTTP/x.1\r\n\r\n"},
		{"long version", "GET / HTTP/1.10\r\n\r\n"},
		{"lowercase proto", "GET / http/1.1\r\n\r\n"},
		{"header without separator", "GET / HTTP/1.1\r\nHost\r\n\r\n"},
		{"header without space", "GET / HTTP/1.1\r\nHost:a\r\n\r\n"},
		{"header empty name", "GET / HTTP/1.1\r\n: a\r\n\r\n"},
		{"header empty value", "GET / HTTP/1.1\r\nHost: \r\n\r\n"},
		{"bare lf", "GET / HTTP/1.1\r\nHost: a\nX: b\r\n\r\n"},
		{"no terminator", "GET / HTTP/1.1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.msg))
			if err == nil {
				t.Fatal("Expected parse error")
			}
			if !errors.IsProtocol(err, errors.ProtocolErrorMalformedRequest) {
				t.Errorf("Expected MalformedRequest, got %v", err)
			}
		})
	}
}

func TestParse_OtherVersionsAndMethodsAreWellFormed(t *testing.T) {
	for _, msg := range []string{
		"GET / HTTP/1.0\r\n\r\n",
		"DELETE /x HTTP/1.1\r\n\r\n",
		"BREW /pot HTTP/1.1\r\n\r\n",
	} {
		if _, err := Parse([]byte(msg)); err != nil {
			t.Errorf("Parse(%q) failed: %v", msg, err)
		}
	}
}

func TestHttpMethod_Implemented(t *testing.T) {
	if !MethodGet.Implemented() || !MethodPost.Implemented() {
		t.Error("GET and POST must be implemented")
	}
	for _, m := range []HttpMethod{MethodHead, MethodPut, MethodDelete, MethodOptions, "BREW"} {
		if m.Implemented() {
			t.Errorf("%s should not be implemented", m)
		}
	}
	if !MethodTrace.Known() || HttpMethod("BREW").Known() {
		t.Error("Known() disagrees with the method table")
	}
}
