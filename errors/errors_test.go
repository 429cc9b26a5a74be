package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestHttpError_Message(t *testing.T) {
	tests := []struct {
		err  *HttpError
		want string
	}{
		{NewTransportError(TransportErrorTimeout, "idle", nil), "Transport error"},
		{NewProtocolError(ProtocolErrorMalformedRequest, "bad line"), "bad line"},
		{NewStorageError(StorageErrorNotFound, "/www/x.html", nil), "/www/x.html"},
		{NewInvalidArgumentError("port"), "Invalid argument: port"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); !strings.Contains(got, tt.want) {
			t.Errorf("Error() = %q, expected it to contain %q", got, tt.want)
		}
	}
}

func TestHttpError_Unwrap(t *testing.T) {
	err := NewTransportError(TransportErrorConnectionClosed, "peer", io.EOF)
	if !stderrors.Is(err, io.EOF) {
		t.Error("Expected errors.Is to reach the underlying error")
	}
	if !strings.Contains(err.Error(), "caused by") {
		t.Errorf("Expected cause in message, got %q", err.Error())
	}
}

func TestClassifiers(t *testing.T) {
	timeout := NewTransportError(TransportErrorTimeout, "", nil)
	closed := fmt.Errorf("session: %w", NewTransportError(TransportErrorConnectionClosed, "", nil))
	notFound := NewStorageError(StorageErrorNotFound, "", nil)

	if !IsTimeout(timeout) || IsTimeout(closed) {
		t.Error("IsTimeout misclassified")
	}
	if !IsClosed(closed) || IsClosed(timeout) {
		t.Error("IsClosed misclassified, including through wrapping")
	}
	if !IsStorage(notFound, StorageErrorNotFound) || IsStorage(notFound, StorageErrorReadFailure) {
		t.Error("IsStorage misclassified")
	}
	if !IsType(notFound, ErrorStorage) || IsType(notFound, ErrorTransport) {
		t.Error("IsType misclassified")
	}
	if IsTimeout(io.EOF) || IsType(nil, ErrorTransport) {
		t.Error("plain errors must not classify")
	}
	if !IsProtocol(NewProtocolError(ProtocolErrorUnsupportedVersion, ""), ProtocolErrorUnsupportedVersion) {
		t.Error("IsProtocol misclassified")
	}
}
