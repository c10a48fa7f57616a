package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Relay error codes. 1xxx are reported back to clients on the socket or over HTTP.
const (
	CodeMalformedFrame     = 1001
	CodeInvalidSignal      = 1002
	CodeUnauthorized       = 1401
	CodeInvalidCredentials = 1402
	CodeStoreUnavailable   = 1501
	ServerInternalError    = 1500
)

var (
	ErrMalformedFrame     = NewCodeError(CodeMalformedFrame, "malformed frame")
	ErrInvalidSignal      = NewCodeError(CodeInvalidSignal, "invalid signaling payload")
	ErrUnauthorized       = NewCodeError(CodeUnauthorized, "unauthorized")
	ErrInvalidCredentials = NewCodeError(CodeInvalidCredentials, "Invalid credentials")
	ErrStoreUnavailable   = NewCodeError(CodeStoreUnavailable, "pending store unavailable")
	ErrInternal           = NewCodeError(ServerInternalError, "internal error")
)

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`

	cause error
}

func (e CodeError) WithDetail(detail string) CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
		cause:  e.cause,
	}
}

// Wrap attaches cause to a copy of e; the cause's text lands in Detail.
func (e CodeError) Wrap(cause error) error {
	if cause == nil {
		return e
	}
	out := e.WithDetail(cause.Error())
	out.cause = cause
	return out
}

func (e CodeError) Unwrap() error { return e.cause }

// Is matches any CodeError with the same code, whatever its detail.
func (e CodeError) Is(target error) bool {
	var other CodeError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

const initialCapacity = 3

func (e CodeError) Error() string {
	v := make([]string, 0, initialCapacity)
	v = append(v, strconv.Itoa(e.Code), e.Msg)

	if e.Detail != "" {
		v = append(v, e.Detail)
	}

	return strings.Join(v, " ")
}

// AsCode extracts the CodeError carried by err, falling back to ErrInternal.
func AsCode(err error) CodeError {
	var ce CodeError
	if errors.As(err, &ce) {
		return ce
	}
	if err == nil {
		return CodeError{}
	}
	return ErrInternal.WithDetail(err.Error())
}
