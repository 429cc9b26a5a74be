package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorStorage
	ErrorInvalidArgument
)

// TransportError represents transport-layer specific errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorListenFailure
	TransportErrorAcceptFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorTimeout
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

func (e TransportError) String() string {
	switch e {
	case TransportErrorListenFailure:
		return "listen failed"
	case TransportErrorAcceptFailure:
		return "accept failed"
	case TransportErrorSocketReadFailure:
		return "socket read failed"
	case TransportErrorSocketWriteFailure:
		return "socket write failed"
	case TransportErrorConnectionClosed:
		return "connection closed"
	case TransportErrorTimeout:
		return "idle timeout"
	case TransportErrorIoUringInit:
		return "io_uring init failed"
	case TransportErrorIoUringSubmit:
		return "io_uring submit failed"
	default:
		return fmt.Sprintf("transport error %d", int(e))
	}
}

// ProtocolError represents protocol-layer specific errors
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorMalformedRequest
	ProtocolErrorUnsupportedVersion
	ProtocolErrorMethodNotAllowed
	ProtocolErrorMessageTooLarge
)

func (e ProtocolError) String() string {
	switch e {
	case ProtocolErrorMalformedRequest:
		return "malformed request"
	case ProtocolErrorUnsupportedVersion:
		return "unsupported version"
	case ProtocolErrorMethodNotAllowed:
		return "method not allowed"
	case ProtocolErrorMessageTooLarge:
		return "message too large"
	default:
		return fmt.Sprintf("protocol error %d", int(e))
	}
}

// StorageError represents failures of the file byte-source
type StorageError int

const (
	StorageErrorNone StorageError = iota
	StorageErrorNotFound
	StorageErrorNotRegular
	StorageErrorReadFailure
)

func (e StorageError) String() string {
	switch e {
	case StorageErrorNotFound:
		return "not found"
	case StorageErrorNotRegular:
		return "not a regular file"
	case StorageErrorReadFailure:
		return "read failed"
	default:
		return fmt.Sprintf("storage error %d", int(e))
	}
}

// HttpError is the main error type for the HTTP server
type HttpError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	StorageErr    StorageError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("Transport error (%s)", e.TransportErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("Protocol error (%s)", e.ProtocolErr)
	case ErrorStorage:
		typeStr = fmt.Sprintf("Storage error (%s)", e.StorageErr)
	case ErrorInvalidArgument:
		typeStr = "Invalid argument"
	default:
		typeStr = "Unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewStorageError creates a new storage error
func NewStorageError(err StorageError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorStorage,
		StorageErr:    err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *HttpError {
	return &HttpError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

func asHttpError(err error) (*HttpError, bool) {
	var httpErr *HttpError
	if stderrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsTransport reports whether err carries the given transport code.
func IsTransport(err error, code TransportError) bool {
	httpErr, ok := asHttpError(err)
	return ok && httpErr.Type == ErrorTransport && httpErr.TransportErr == code
}

// IsProtocol reports whether err carries the given protocol code.
func IsProtocol(err error, code ProtocolError) bool {
	httpErr, ok := asHttpError(err)
	return ok && httpErr.Type == ErrorProtocol && httpErr.ProtocolErr == code
}

// IsStorage reports whether err carries the given storage code.
func IsStorage(err error, code StorageError) bool {
	httpErr, ok := asHttpError(err)
	return ok && httpErr.Type == ErrorStorage && httpErr.StorageErr == code
}

// IsTimeout reports whether err is an idle timeout.
func IsTimeout(err error) bool {
	return IsTransport(err, TransportErrorTimeout)
}

// IsClosed reports whether err means the peer went away.
func IsClosed(err error) bool {
	return IsTransport(err, TransportErrorConnectionClosed)
}

// IsType reports whether err is an HttpError of the given category.
func IsType(err error, t ErrorType) bool {
	httpErr, ok := asHttpError(err)
	return ok && httpErr.Type == t
}
