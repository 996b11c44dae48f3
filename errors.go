package serclient

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error represents a structured serclient error with protocol context
type Error struct {
	Op    string    // Operation that failed (e.g., "open", "decode")
	GUID  uuid.UUID // Packet guid (zero if not applicable)
	Code  ErrorCode // High-level error category
	Msg   string    // Human-readable message
	Inner error     // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("serclient: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("serclient: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support for code comparison
func (e *Error) Is(target error) bool {
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	ErrCodeOpenFailed      ErrorCode = "serial open failed"
	ErrCodeDeviceIO        ErrorCode = "device I/O error"
	ErrCodeMalformedHeader ErrorCode = "malformed packet header"
	ErrCodeMalformedBody   ErrorCode = "malformed packet body"
	ErrCodeBadCommand      ErrorCode = "malformed command payload"
	ErrCodeUnknownGUID     ErrorCode = "unknown guid"
	ErrCodeTimeout         ErrorCode = "timeout"
	ErrCodeJournal         ErrorCode = "restart journal failure"
)

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewPacketError creates a new error tied to a packet guid
func NewPacketError(op string, guid uuid.UUID, code ErrorCode, msg string) *Error {
	return &Error{Op: op, GUID: guid, Code: code, Msg: msg}
}

// WrapError wraps an existing error with serclient context
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	if se, ok := inner.(*Error); ok {
		return &Error{
			Op:    op,
			GUID:  se.GUID,
			Code:  se.Code,
			Msg:   se.Msg,
			Inner: se.Inner,
		}
	}
	return &Error{
		Op:    op,
		Code:  code,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
