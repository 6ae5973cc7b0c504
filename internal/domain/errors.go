package domain

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindCapExceeded Kind = "cap_exceeded"
	KindAuth        Kind = "auth"
	KindForbidden   Kind = "forbidden"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrCapExceeded = errors.New("import limit exceeded")
	ErrAuth        = errors.New("authentication failed")
	ErrForbidden   = errors.New("forbidden")
)

var sentinels = map[Kind]error{
	KindValidation:  ErrValidation,
	KindNotFound:    ErrNotFound,
	KindConflict:    ErrConflict,
	KindCapExceeded: ErrCapExceeded,
	KindAuth:        ErrAuth,
	KindForbidden:   ErrForbidden,
}

// Error is the structured error every store, importer and auth operation returns
// for caller mistakes. Anything else is an infrastructure failure.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil && !isSentinel(e.Err) {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	out := []error{sentinels[e.Kind]}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func isSentinel(err error) bool {
	for _, s := range sentinels {
		if err == s {
			return true
		}
	}
	return false
}

func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func NotFound(entity EntityType, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

func Conflict(msg string) error { return &Error{Kind: KindConflict, Message: msg} }

func CapExceeded(msg string) error { return &Error{Kind: KindCapExceeded, Message: msg} }

func AuthFailed(msg string) error { return &Error{Kind: KindAuth, Message: msg} }

func Forbidden(msg string) error { return &Error{Kind: KindForbidden, Message: msg} }

// KindOf reports the kind of a domain error, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
