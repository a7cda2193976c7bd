package library

import (
	"errors"
	"fmt"

	"github.com/desertthunder/spots/internal/store"
)

// Kind classifies a library failure.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindAlreadyExists
	KindMissingSource
	KindAlreadyInPlaylist
	KindProtected
	KindInvalidInput
	KindNotReady
	KindTransactionAborted
	KindSchemaError
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindMissingSource:
		return "MissingSource"
	case KindAlreadyInPlaylist:
		return "AlreadyInPlaylist"
	case KindProtected:
		return "Protected"
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotReady:
		return "NotReady"
	case KindTransactionAborted:
		return "TransactionAborted"
	case KindSchemaError:
		return "SchemaError"
	default:
		return "Unknown"
	}
}

// Error is returned by every [Service] operation. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches any [Error] of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrMissingSource      = &Error{Kind: KindMissingSource}
	ErrAlreadyInPlaylist  = &Error{Kind: KindAlreadyInPlaylist}
	ErrProtected          = &Error{Kind: KindProtected}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrNotReady           = &Error{Kind: KindNotReady}
	ErrTransactionAborted = &Error{Kind: KindTransactionAborted}
	ErrSchema             = &Error{Kind: KindSchemaError}
)

// KindOf returns the kind of a library error, or zero.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func playlistNotFound(id string) *Error {
	return newError(KindNotFound, "playlist %q does not exist", id)
}

func trackNotFound(id string) *Error {
	return newError(KindNotFound, "track %q does not exist", id)
}

// fromStore maps a store failure onto the library taxonomy. Errors already in it pass through.
func fromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	switch store.KindOf(err) {
	case store.KindNotReady:
		return &Error{Kind: KindNotReady, Message: "library store is not ready", Err: err}
	case store.KindNotFound:
		return &Error{Kind: KindNotFound, Message: what + " does not exist", Err: err}
	case store.KindDuplicateKey:
		return &Error{Kind: KindAlreadyExists, Message: what + " already exists", Err: err}
	case store.KindSchemaError:
		return &Error{Kind: KindSchemaError, Message: "library store schema mismatch", Err: err}
	default:
		return &Error{Kind: KindTransactionAborted, Message: "failed to save " + what, Err: err}
	}
}
