// Package common defines shared constants and coded errors used across
// accountkeeper components. Callers should use errors.Is to match the
// sentinel values; Is compares by numeric code, so detailed copies made
// with WithDetail still match their sentinel.
package common

import "errors"

// Error is an application error carrying the numeric code exposed to API
// clients in the response envelope.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is reports whether target is an *Error with the same code. Two errors
// with the same code are the same failure regardless of message detail.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithDetail returns a copy of the error with a more specific message while
// keeping the code, so errors.Is against the sentinel keeps working.
func (e *Error) WithDetail(msg string) *Error {
	return &Error{Code: e.Code, Msg: msg}
}

var (
	ErrUnknown             = &Error{Code: 1, Msg: "unknown error"}
	ErrIncompleteArguments = &Error{Code: 4, Msg: "incomplete arguments"}

	// Validation errors.
	ErrInvalidUsername = &Error{Code: 1000, Msg: "invalid username"}
	ErrInvalidEmail    = &Error{Code: 1001, Msg: "invalid email"}
	ErrInvalidFullName = &Error{Code: 1003, Msg: "invalid full name"}
	ErrInvalidSex      = &Error{Code: 1004, Msg: "invalid sex"}
	ErrInvalidPassword = &Error{Code: 1005, Msg: "invalid password"}

	// Account mutation errors.
	ErrDuplicateUser = &Error{Code: 1100, Msg: "duplicate user"}
	ErrWriteFailed   = &Error{Code: 1101, Msg: "error writing user"}

	// Signin errors.
	ErrNoSuchUser         = &Error{Code: 1200, Msg: "no such user"}
	ErrInvalidAccountType = &Error{Code: 1201, Msg: "invalid account type"}
	ErrUnknownAccountType = &Error{Code: 1202, Msg: "cannot detect account type"}
	ErrPasswordMismatch   = &Error{Code: 1203, Msg: "password not match"}

	// Authorization errors.
	ErrInvalidCredential = &Error{Code: 1400, Msg: "invalid credential"}
)
