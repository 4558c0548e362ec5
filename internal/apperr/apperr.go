// Package apperr defines the error taxonomy shared by the authorization,
// service and API layers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an error for the API boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindOrganizationRequired
	KindValidation
	KindInvalidReference
	KindNotFound
)

var kindNames = map[Kind]string{
	KindInternal:             "internal_error",
	KindUnauthenticated:      "unauthenticated",
	KindForbidden:            "forbidden",
	KindOrganizationRequired: "organization_required",
	KindValidation:           "validation_error",
	KindInvalidReference:     "invalid_reference",
	KindNotFound:             "not_found",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindInternal]
}

// HTTPStatus returns the status code the API boundary uses for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindOrganizationRequired:
		return http.StatusForbidden
	case KindValidation, KindInvalidReference:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Message is safe to return to callers, Err is
// the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string // per-field validation messages
	Err     error
}

// Sentinels for use with errors.Is. Matching is by Kind only.
var (
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrForbidden            = &Error{Kind: KindForbidden, Message: "access denied"}
	ErrOrganizationRequired = &Error{Kind: KindOrganizationRequired, Message: "an organization must be selected"}
	ErrValidation           = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInvalidReference     = &Error{Kind: KindInvalidReference, Message: "invalid reference"}
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInternal             = &Error{Kind: KindInternal, Message: "internal server error"}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// PublicMessage returns the message that may be shown to a caller. Internal
// errors never expose their cause.
func (e *Error) PublicMessage() string {
	if e.Kind == KindInternal || e.Message == "" {
		return ErrInternal.Message
	}
	return e.Message
}

// KindOf returns the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// From returns err as an *Error, wrapping unclassified errors as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: ErrInternal.Message, Err: err}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func OrganizationRequired() *Error {
	return &Error{Kind: KindOrganizationRequired, Message: ErrOrganizationRequired.Message}
}

// Validation returns a validation error with per-field messages.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: ErrValidation.Message, Fields: fields}
}

func InvalidReference(msg string, cause error) *Error {
	return &Error{Kind: KindInvalidReference, Message: msg, Err: cause}
}

func NotFound(msg string, cause error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: cause}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: ErrInternal.Message, Err: cause}
}
