package engine

import (
	"errors"
	"fmt"
	"time"
)

// Error is the failure delivered through a command's error continuation.
//
// Errors include:
//   - Transport: the command could not be handed off or the connection broke
//   - Remote: the server answered with a non-2xx status
//   - Malformed response: a 2xx answer lacked an expected field
//   - Timeout: no response arrived within the configured command timeout
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Method and Path identify the command that failed.
	Method string
	Path   string

	// Status and Body carry the server's answer for remote errors.
	Status int
	Body   []byte

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes command failures.
type ErrorCode string

const (
	ErrCodeTransport         ErrorCode = "TRANSPORT"
	ErrCodeRemote            ErrorCode = "REMOTE"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
)

// ErrClosed is the cause attached to commands sent after the engine stopped.
var ErrClosed = errors.New("engine closed")

// Error implements the error interface.
func (e *Error) Error() string {
	target := e.Method + " " + e.Path
	switch {
	case e.Code == ErrCodeRemote:
		return fmt.Sprintf("%s: %s (%s, status=%d)", e.Code, e.Message, target, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s (%s): %v", e.Code, e.Message, target, e.Err)
	default:
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, target)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransportError reports that cmd could not be delivered.
func NewTransportError(cmd Command, err error) *Error {
	return &Error{
		Code:    ErrCodeTransport,
		Message: "command not delivered",
		Method:  cmd.Method,
		Path:    cmd.Path,
		Err:     err,
	}
}

// NewRemoteError reports a non-success status for cmd.
func NewRemoteError(cmd Command, status int, body []byte) *Error {
	return &Error{
		Code:    ErrCodeRemote,
		Message: "server rejected command",
		Method:  cmd.Method,
		Path:    cmd.Path,
		Status:  status,
		Body:    body,
	}
}

// NewMalformedResponse reports a success response missing an expected field.
func NewMalformedResponse(cmd Command, message string) *Error {
	return &Error{
		Code:    ErrCodeMalformedResponse,
		Message: message,
		Method:  cmd.Method,
		Path:    cmd.Path,
	}
}

// NewTimeoutError reports that cmd got no response within d.
func NewTimeoutError(cmd Command, d time.Duration) *Error {
	return &Error{
		Code:    ErrCodeTimeout,
		Message: fmt.Sprintf("no response within %s", d),
		Method:  cmd.Method,
		Path:    cmd.Path,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsTransportError reports whether err is a transport failure.
func IsTransportError(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsRemoteError reports whether err is a non-success server answer.
func IsRemoteError(err error) bool { return hasCode(err, ErrCodeRemote) }

// IsMalformedResponse reports whether err is a malformed success answer.
func IsMalformedResponse(err error) bool { return hasCode(err, ErrCodeMalformedResponse) }

// IsTimeout reports whether err is a command timeout.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// RemoteStatus returns the server status carried by a remote error.
func RemoteStatus(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Code == ErrCodeRemote {
		return e.Status, true
	}
	return 0, false
}
