package domainerrors

import "errors"

// Code is a transport-independent failure category.
type Code string

const (
	CodeMissingParameters    Code = "missing_parameters"
	CodeInvalidState         Code = "invalid_state"
	CodeIntegrityCheckFailed Code = "integrity_check_failed"
	CodeExchangeFailed       Code = "exchange_failed"
	CodeStorage              Code = "storage_error"
	CodeTenantNotConnected   Code = "tenant_not_connected"
	CodeNotFound             Code = "not_found"
	CodeBadRequest           Code = "bad_request"
	CodeNotConfigured        Code = "not_configured"
	CodeUpstream             Code = "upstream_failed"
)

// Error carries a stable Code plus a message that is safe to show to users.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinels declared with New work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches code and msg to err. An existing domain code in err's chain is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the first domain code in err's chain, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
