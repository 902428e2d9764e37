// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package apierror defines the error taxonomy shared by the services and the
// HTTP adapter. Services return *Error values; the adapter maps each Kind to a
// status code.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindNotFound      Kind = "not_found"
	KindInvalidState  Kind = "invalid_state"
	KindExpired       Kind = "expired"
	KindQuotaExceeded Kind = "quota_exceeded"
	KindUpstream      Kind = "upstream_error"
	KindProvider      Kind = "provider_error"
	KindUnauthorized  Kind = "unauthorized"
	KindForbidden     Kind = "forbidden"
)

// Error is a classified failure. Status carries the raw provider run status
// for KindProvider and the HTTP status line for KindUpstream.
type Error struct {
	Kind       Kind
	Message    string
	Status     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Detail returns the underlying cause as text, or the message when there is none.
func (e *Error) Detail() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// HTTPStatus maps the kind to a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInvalidState, KindExpired, KindQuotaExceeded:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Expired(format string, args ...any) *Error {
	return &Error{Kind: KindExpired, Message: fmt.Sprintf(format, args...)}
}

func QuotaExceeded(format string, args ...any) *Error {
	return &Error{Kind: KindQuotaExceeded, Message: fmt.Sprintf(format, args...)}
}

// Upstream reports a failed outbound webhook call.
func Upstream(statusCode int, status string, err error) *Error {
	msg := "upstream call failed"
	if statusCode != 0 {
		msg = fmt.Sprintf("upstream returned %s", status)
	}
	return &Error{Kind: KindUpstream, Message: msg, Status: status, StatusCode: statusCode, Err: err}
}

// Provider reports an LLM run that ended in a non-completed status.
func Provider(status, detail string) *Error {
	msg := fmt.Sprintf("run ended with status %s", status)
	if detail != "" {
		msg += ": " + detail
	}
	return &Error{Kind: KindProvider, Message: msg, Status: status}
}

// Wrap attaches a cause to a classified error.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Kind == kind
}
