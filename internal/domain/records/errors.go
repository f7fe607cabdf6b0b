package records

import (
	"errors"
	"fmt"
)

// Kind classifies a failed operation. Only the kind and the message cross
// the package boundary.
type Kind string

const (
	KindDuplicateKey     Kind = "duplicate_key"
	KindNotFound         Kind = "not_found"
	KindStoreUnavailable Kind = "store_unavailable"
	KindValidationFailed Kind = "validation_failed"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err. Errors that are not *Error are treated as
// store failures; a nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

func duplicateKey(id int64) *Error {
	return &Error{Kind: KindDuplicateKey, Message: fmt.Sprintf("patient %d already exists", id)}
}

func notFound(id int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("patient %d not found", id)}
}

func unavailable(store string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: store + " unavailable", Err: err}
}

// ValidationFailed wraps an input rejection from the web layer.
func ValidationFailed(err error) *Error {
	return &Error{Kind: KindValidationFailed, Message: err.Error()}
}
