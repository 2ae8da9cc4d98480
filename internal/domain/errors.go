package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can react without parsing messages
type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindDuplicateCode     Kind = "DuplicateCode"
	KindNotFound          Kind = "NotFound"
	KindInvalidQuantity   Kind = "InvalidQuantity"
	KindInvalidFormat     Kind = "InvalidFormat"
	KindInvalidSortField  Kind = "InvalidSortField"
	KindInvalidParameters Kind = "InvalidParameters"
	KindInternal          Kind = "InternalError"
)

// Sentinels for errors.Is matching by kind
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrDuplicateCode     = &Error{Kind: KindDuplicateCode}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidQuantity   = &Error{Kind: KindInvalidQuantity}
	ErrInvalidFormat     = &Error{Kind: KindInvalidFormat}
	ErrInvalidSortField  = &Error{Kind: KindInvalidSortField}
	ErrInvalidParameters = &Error{Kind: KindInvalidParameters}
	ErrInternal          = &Error{Kind: KindInternal}
)

// FieldError describes one offending input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error shape returned by the services
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

// NewError builds an error of the given kind with a formatted message
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError builds a ValidationError carrying every offending field
func NewValidationError(fields []FieldError) *Error {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return &Error{
		Kind:    KindValidation,
		Message: "invalid fields: " + strings.Join(names, ", "),
		Fields:  fields,
	}
}

// Internal wraps an unexpected failure; the cause is kept for logging only
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	if e.Err != nil && e.Kind == KindInternal {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works on detailed errors
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// KindOf reports the kind of err, treating anything that is not an *Error as internal
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
