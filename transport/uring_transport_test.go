package transport

import (
	"testing"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
)

func TestUringTransport_ReadWrite(t *testing.T) {
	server, client, cleanup := setupTcpPair(t, ModeUring)
	defer cleanup()

	if _, ok := server.(*UringTransport); !ok {
		t.Fatalf("Expected *UringTransport, got %T", server)
	}

	if _, err := client.Write([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("client write failed: %v", err)
	}
	buf := make([]byte, 64)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "GET / HTTP/1.1\r\n\r\n" {
		t.Errorf("Unexpected payload %q", buf[:n])
	}

	if _, err := server.Write([]byte("ok")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, err = client.Read(buf)
	if err != nil || string(buf[:n]) != "ok" {
		t.Errorf("client read = %q, %v", buf[:n], err)
	}
}

func TestUringTransport_IdleTimeout(t *testing.T) {
	server, _, cleanup := setupTcpPair(t, ModeUring)
	defer cleanup()

	server.SetIdleTimeout(50 * time.Millisecond)
	_, err := server.Read(make([]byte, 16))
	if !errors.IsTimeout(err) {
		t.Errorf("Expected timeout error, got %v", err)
	}
}

func TestUringTransport_CloseUnblocksRead(t *testing.T) {
	server, _, cleanup := setupTcpPair(t, ModeUring)
	defer cleanup()

	done := make(chan error, 1)
	go func() {
		_, err := server.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	server.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected an error from the interrupted read")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock the pending read")
	}
}
