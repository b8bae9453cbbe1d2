package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "upstream_unavailable"
	KindUpstream    Kind = "upstream_error"
	KindInternal    Kind = "internal"
)

// Error is the tagged error variant carried across the aggregation layers.
// Status mirrors the HTTP status the failure should surface with; Detail
// holds the upstream's own error payload when one exists.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Detail  any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

func Unavailable(message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Status: http.StatusInternalServerError, Message: message, Err: err}
}

func Upstream(status int, message string, detail any) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: message, Detail: detail}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// StatusOf extracts the HTTP status to surface for err, defaulting to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// DetailOf returns the upstream error payload attached to err, if any.
func DetailOf(err error) any {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Detail
	}
	return nil
}

func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
