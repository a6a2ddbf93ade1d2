package services

import "errors"

// Error codes surfaced by the event recorder and task transitions.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidState        = "INVALID_STATE"
	CodePreconditionFailed  = "PRECONDITION_FAILED"
	CodeAttachmentsRequired = "ATTACHMENTS_REQUIRED"
	CodeConflict            = "CONFLICT"
	CodeUploadFailed        = "UPLOAD_FAILED"
)

// Error is a coded error the transport layer can map to a status without
// string matching. Geofence violations are never errors, only warnings.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// ErrorCode extracts the taxonomy code, or "" for untyped errors.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
