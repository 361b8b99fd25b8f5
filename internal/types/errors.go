package types

import (
	"errors"
	"fmt"
)

// ErrorKind groups business failures by how callers are expected to react.
type ErrorKind string

const (
	ErrorValidation    ErrorKind = "VALIDATION"
	ErrorAuthorization ErrorKind = "AUTHORIZATION"
	ErrorState         ErrorKind = "STATE"
	ErrorLiquidity     ErrorKind = "LIQUIDITY"
	ErrorTemporal      ErrorKind = "TEMPORAL"
	ErrorReplay        ErrorKind = "REPLAY"
	ErrorInternal      ErrorKind = "INTERNAL"
)

func (k ErrorKind) String() string {
	return string(k)
}

// ErrorCode is the stable machine-readable reason attached to an Error.
type ErrorCode string

const (
	HookRejected          ErrorCode = "HookRejected"
	ZeroAmount            ErrorCode = "ZeroAmount"
	AssetMismatch         ErrorCode = "AssetMismatch"
	InsufficientBalance   ErrorCode = "InsufficientBalance"
	Unauthorized          ErrorCode = "Unauthorized"
	RampExceeded          ErrorCode = "RampExceeded"
	StaleTimestamp        ErrorCode = "StaleTimestamp"
	BadSignature          ErrorCode = "BadSignature"
	NonceReused           ErrorCode = "NonceReused"
	Expired               ErrorCode = "Expired"
	WrongState            ErrorCode = "WrongState"
	InsufficientLiquidity ErrorCode = "InsufficientLiquidity"
	InternalServiceError  ErrorCode = "InternalServiceError"
)

func (c ErrorCode) String() string {
	return string(c)
}

// Error is the result type for expected business failures. Panics are
// reserved for invariant violations that indicate a programming defect.
type Error struct {
	Kind ErrorKind
	Code ErrorCode
	Err  error
}

func NewError(kind ErrorKind, code ErrorCode, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func NewErrorf(kind ErrorKind, code ErrorCode, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Err: fmt.Errorf(format, args...)}
}

func NewInternalError(err error) *Error {
	return &Error{Kind: ErrorInternal, Code: InternalServiceError, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s/%s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasErrorCode reports whether err is (or wraps) an *Error carrying code.
func HasErrorCode(err error, code ErrorCode) bool {
	var target *Error
	if !errors.As(err, &target) {
		return false
	}
	return target.Code == code
}

// HasErrorKind reports whether err is (or wraps) an *Error of the given kind.
func HasErrorKind(err error, kind ErrorKind) bool {
	var target *Error
	if !errors.As(err, &target) {
		return false
	}
	return target.Kind == kind
}
