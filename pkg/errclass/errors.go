package errclass

import (
	"errors"
	"fmt"
)

// MopsError is a stable, machine-readable error class.
type MopsError struct {
	Code    string
	Message string
}

func (e *MopsError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *MopsError) Is(target error) bool {
	t, ok := target.(*MopsError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new MopsError with the same Code but a specific message.
func (e *MopsError) WithMessage(msg string) *MopsError {
	return &MopsError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new MopsError with a formatted message.
func (e *MopsError) WithMessagef(format string, args ...any) *MopsError {
	return &MopsError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error matching both this class and cause.
func (e *MopsError) Wrap(cause error, msg string) error {
	if cause == nil {
		return e.WithMessage(msg)
	}
	return errors.Join(e.WithMessagef("%s: %v", msg, cause), cause)
}

// Code returns the class code carried by err, or "" when err has none.
func Code(err error) string {
	var me *MopsError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// Stable error classes.
var (
	ErrValidation        = &MopsError{Code: "E_VALIDATION"}
	ErrNotFound          = &MopsError{Code: "E_NOT_FOUND"}
	ErrChecksumMismatch  = &MopsError{Code: "E_CHECKSUM_MISMATCH"}
	ErrStorageWrite      = &MopsError{Code: "E_STORAGE_WRITE"}
	ErrFormatUnsupported = &MopsError{Code: "E_FORMAT_UNSUPPORTED"}
	ErrDataCorrupt       = &MopsError{Code: "E_DATA_CORRUPT"}
	ErrAuditChainBroken  = &MopsError{Code: "E_AUDIT_CHAIN_BROKEN"}
	ErrQueueClosed       = &MopsError{Code: "E_QUEUE_CLOSED"}
)
