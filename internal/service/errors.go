package service

import (
	"context"
	"errors"
	"fmt"

	"loyalty/scanhub/internal/repository"
)

// ErrorKind classifies a scan failure. The first five kinds are terminal for
// the attempt; TransientStore is the only retryable kind.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindSecurity       ErrorKind = "security"
	KindExpiration     ErrorKind = "expiration"
	KindBusinessLogic  ErrorKind = "business_logic"
	KindRateLimit      ErrorKind = "rate_limit"
	KindTransientStore ErrorKind = "transient_store"
)

// Machine-readable failure codes surfaced alongside the safe message.
const (
	CodeMalformedPayload  = "MALFORMED_PAYLOAD"
	CodeUnknownType       = "UNKNOWN_CODE_TYPE"
	CodeNotFound          = "CODE_NOT_FOUND"
	CodeNotActive         = "CODE_NOT_ACTIVE"
	CodeSignatureMismatch = "SIGNATURE_MISMATCH"
	CodeSignatureStale    = "SIGNATURE_STALE"
	CodeExpired           = "CODE_EXPIRED"
	CodeNeedsRefresh      = "CODE_NEEDS_REFRESH"
	CodeEntityInactive    = "ENTITY_INACTIVE"
	CodePromoWindow       = "PROMO_OUTSIDE_WINDOW"
	CodePromoCapReached   = "PROMO_CAP_REACHED"
	CodeRotationRefused   = "ROTATION_REFUSED"
	CodeDeviceAuthFailed  = "DEVICE_AUTH_FAILED"
	CodeDeviceDisabled    = "DEVICE_DISABLED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
)

// Error is the scan error taxonomy: a kind for classification, a
// machine-readable code, and a message safe to show to the scanning client.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	// CodeID references the looked-up code record when the failure happened
	// after lookup, so the audit row can point at it.
	CodeID *int64

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

func NewValidationError(code, message string) *Error {
	return newError(KindValidation, code, message, nil)
}

func NewSecurityError(code, message string, cause error) *Error {
	return newError(KindSecurity, code, message, cause)
}

func NewExpirationError(code, message string) *Error {
	return newError(KindExpiration, code, message, nil)
}

func NewBusinessLogicError(code, message string) *Error {
	return newError(KindBusinessLogic, code, message, nil)
}

func NewRateLimitError(message string) *Error {
	return newError(KindRateLimit, CodeRateLimited, message, nil)
}

func NewTransientStoreError(cause error) *Error {
	return newError(KindTransientStore, CodeStoreUnavailable, "temporary storage failure, retry later", cause)
}

// KindOf extracts the classification of err, or "" for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError extracts the taxonomy error, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsTransient reports whether err may be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransientStore
}

// classifyStoreErr wraps an infrastructure error from the store as transient
// unless it is a definitive miss or a cancelled context.
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return NewTransientStoreError(err)
}
