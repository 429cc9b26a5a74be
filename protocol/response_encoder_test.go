package protocol

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func fixedEncoder() *Encoder {
	e := NewEncoder(DefaultServerName, "cookie_counter_3776", 23*time.Second)
	e.Now = func() time.Time {
		return time.Date(2024, time.March, 5, 9, 4, 7, 0, time.FixedZone("CET", 3600))
	}
	return e
}

func TestEncoder_Ok(t *testing.T) {
	got := string(fixedEncoder().Ok("text/html", 42, 3))
	want := "HTTP/1.1 200 OK\r\n" +
		"Date: Tue, 05 Mar 2024 08:04:07 GMT\r\n" +
		"Server: STTT3776.org\r\n" +
		"Connection: keep-alive\r\n" +
		"Keep-Alive: timeout=23\r\n" +
		"Set-Cookie: cookie_counter_3776=3; max-age=120\r\n" +
		"Content-Length: 42\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n"

	if got != want {
		t.Errorf("Unexpected head:\n%q\nwant\n%q", got, want)
	}
}

func TestEncoder_ZeroCounterOmitsCookie(t *testing.T) {
	got := string(fixedEncoder().Ok("image/png", 1, 0))
	if strings.Contains(got, "Set-Cookie") {
		t.Errorf("Expected no Set-Cookie for counter 0:\n%s", got)
	}
}

func TestEncoder_InlineError(t *testing.T) {
	got := string(fixedEncoder().Error(StatusNotFound, 2, ErrorModeInline, 0))

	head, body, found := strings.Cut(got, "\r\n\r\n")
	if !found {
		t.Fatalf("No header terminator in %q", got)
	}
	if !strings.HasPrefix(head, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("Unexpected status line in %q", head)
	}
	if !strings.Contains(body, "<h1>404. Not Found</h1>") {
		t.Errorf("Unexpected body %q", body)
	}
	if !strings.Contains(head, "Content-Length: "+strconv.Itoa(len(body))) {
		t.Errorf("Content-Length does not match body of %d bytes:\n%s", len(body), head)
	}
	if !strings.Contains(head, "Connection: keep-alive") {
		t.Errorf("404 must keep the connection:\n%s", head)
	}
}

func TestEncoder_ForbiddenCloses(t *testing.T) {
	got := string(fixedEncoder().Error(StatusForbidden, 10, ErrorModeInline, 0))
	if !strings.Contains(got, "Connection: close\r\n") {
		t.Errorf("Expected Connection: close:\n%s", got)
	}
	if strings.Contains(got, "Keep-Alive") {
		t.Errorf("Expected no Keep-Alive on a closing response:\n%s", got)
	}
	if !strings.Contains(got, "Set-Cookie: cookie_counter_3776=10; max-age=120") {
		t.Errorf("Expected saturated counter cookie:\n%s", got)
	}
}

func TestEncoder_FileModeError(t *testing.T) {
	got := string(fixedEncoder().Error(StatusUnauthorized, 1, ErrorModeFile, 512))
	if !strings.HasPrefix(got, "HTTP/1.1 401 Unauthorized\r\n") {
		t.Errorf("Unexpected status line in %q", got)
	}
	if !strings.Contains(got, "Content-Length: 512\r\n") {
		t.Errorf("Expected file size as Content-Length:\n%s", got)
	}
	if !strings.HasSuffix(got, "\r\n\r\n") {
		t.Errorf("File mode must end after the head:\n%q", got)
	}
}

func TestStatus_Reason(t *testing.T) {
	if StatusVersionNotSupported.Reason() != "Version Not Supported" {
		t.Errorf("Unexpected reason %q", StatusVersionNotSupported.Reason())
	}
	if Status(299).Reason() != "Unknown" {
		t.Errorf("Unexpected reason for unknown status")
	}
}
