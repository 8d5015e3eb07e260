package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "VALIDATION"
	ErrorKindNotFound   ErrorKind = "NOT_FOUND"
	ErrorKindConflict   ErrorKind = "CONFLICT"
	ErrorKindInternal   ErrorKind = "INTERNAL"
)

// Error is the business error surfaced to callers. Details carries the
// offending identifiers (copy codes, policy ids) when there are any.
type Error struct {
	Kind    ErrorKind
	Message string
	Details []string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Details, ", "))
}

// Expected marks business rejections so they are not logged as failures.
func (e *Error) Expected() bool { return e.Kind != ErrorKindInternal }

func NewValidationError(msg string, details ...string) *Error {
	return &Error{Kind: ErrorKindValidation, Message: msg, Details: details}
}

func NewNotFoundError(msg string, details ...string) *Error {
	return &Error{Kind: ErrorKindNotFound, Message: msg, Details: details}
}

func NewConflictError(msg string, details ...string) *Error {
	return &Error{Kind: ErrorKindConflict, Message: msg, Details: details}
}

// KindOf returns the kind of the first *Error in err's chain, or
// ErrorKindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrorKindInternal
}

func IsValidation(err error) bool { return KindOf(err) == ErrorKindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == ErrorKindNotFound }

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")
