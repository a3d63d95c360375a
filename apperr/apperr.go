package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Validation      Kind = "validation_error"
	NotFound        Kind = "not_found"
	Forbidden       Kind = "forbidden"
	Conflict        Kind = "conflict"
	Signature       Kind = "signature_error"
	PaymentNetwork  Kind = "payment_network_error"
	PaymentProvider Kind = "payment_provider_error"
	Config          Kind = "config_error"
	Internal        Kind = "internal"
)

// AppError is the only error type allowed to cross the service boundary.
// Adapter and storage failures are reclassified into one of the kinds above
// before they reach a handler.
type AppError struct {
	Kind      Kind
	Message   string // safe to show to the caller
	Retryable bool
	Err       error // internal cause, for logs only
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func ValidationErr(msg string) *AppError {
	return &AppError{Kind: Validation, Message: msg}
}

func NotFoundErr(msg string) *AppError {
	return &AppError{Kind: NotFound, Message: msg}
}

func ConflictErr(msg string) *AppError {
	return &AppError{Kind: Conflict, Message: msg}
}

func ForbiddenErr(msg string) *AppError {
	return &AppError{Kind: Forbidden, Message: msg}
}

func SignatureErr(msg string) *AppError {
	return &AppError{Kind: Signature, Message: msg}
}

// NetworkErr classifies an unreachable or timed-out gateway. Retryable: the
// outcome is unknown and the caller may safely re-initiate or poll.
func NetworkErr(msg string, err error) *AppError {
	return &AppError{Kind: PaymentNetwork, Message: msg, Retryable: true, Err: err}
}

// ProviderErr classifies a domain-specific decline from the gateway. Not
// retryable; Message carries the user-facing reason.
func ProviderErr(reason string, err error) *AppError {
	return &AppError{Kind: PaymentProvider, Message: reason, Err: err}
}

func ConfigErr(msg string) *AppError {
	return &AppError{Kind: Config, Message: msg}
}

func Wrap(err error, msg string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: Internal, Message: msg, Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsKind(err error, k Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == k
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Validation:
			return http.StatusBadRequest
		case NotFound:
			return http.StatusNotFound
		case Forbidden:
			return http.StatusForbidden
		case Conflict:
			return http.StatusConflict
		case Signature:
			return http.StatusUnauthorized
		case PaymentProvider:
			return http.StatusUnprocessableEntity
		case PaymentNetwork:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.Message != "" {
		return ae.Message
	}
	return "An unexpected error occurred."
}

func Retryable(err error) bool {
	ae, ok := As(err)
	return ok && ae.Retryable
}
