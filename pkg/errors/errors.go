package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes used across the gateway client and the callback service.
const (
	CodeFormat            = 66001 // inbound date/enum/JSON field failed to parse
	CodeSignatureMismatch = 66002 // recomputed signature differs from the received one
	CodeForbiddenSource   = 66003 // callback sent from an address outside the allowlist
	CodeTransport         = 66010 // network failure or non-2xx answer from the gateway
	CodeDependency        = 66011 // redis/postgres unavailable
	CodeSerialization     = 66020 // payload could not be turned into its structural form
)

type DomainError struct {
	Code      int
	Message   string
	Details   string
	Retryable bool
	Cause     error
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

func NewDomainError(code int, message, details string) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
	}
}

func WrapDomainError(err error, code int, message, details string) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Cause:     err,
	}
}

// NewFormatError reports an inbound field that does not match its wire format.
func NewFormatError(field, details string) *DomainError {
	return NewDomainError(CodeFormat, "invalid "+field, details)
}

// NewSignatureMismatch reports a callback whose signature does not verify.
func NewSignatureMismatch(details string) *DomainError {
	return NewDomainError(CodeSignatureMismatch, "signature mismatch", details)
}

// NewTransportError wraps a failed exchange with the gateway. Transport
// failures are retryable from the caller's point of view.
func NewTransportError(err error, details string) *DomainError {
	return WrapDomainError(err, CodeTransport, "gateway transport failed", details).WithRetryable(true)
}

// NewSerializationError wraps a payload that could not be encoded.
func NewSerializationError(err error, details string) *DomainError {
	return WrapDomainError(err, CodeSerialization, "payload serialization failed", details)
}

func IsDomainError(err error) bool {
	_, ok := err.(*DomainError)
	return ok
}

// AsDomainError finds the first DomainError in err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if stderrors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// HasCode reports whether any DomainError in err's chain carries code.
func HasCode(err error, code int) bool {
	for err != nil {
		var domainErr *DomainError
		if !stderrors.As(err, &domainErr) {
			return false
		}
		if domainErr.Code == code {
			return true
		}
		err = domainErr.Cause
	}
	return false
}

func GetHTTPStatus(err error) int {
	domainErr, ok := AsDomainError(err)
	if !ok {
		return 500
	}

	switch domainErr.Code {
	case CodeFormat:
		return 400
	case CodeSignatureMismatch:
		return 401
	case CodeForbiddenSource:
		return 403
	case CodeTransport:
		return 502
	case CodeDependency:
		return 503
	case CodeSerialization:
		return 500
	default:
		return 500
	}
}
