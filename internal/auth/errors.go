package auth

import (
	"errors"

	"github.com/desertthunder/spots/internal/store"
)

// Kind classifies an authentication failure.
type Kind int

const (
	KindInvalidLogin Kind = iota + 1
	KindAlreadyExists
	KindInvalidInput
	KindNotReady
	KindTransactionAborted
	KindSchemaError
	KindHostFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidLogin:
		return "InvalidLogin"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotReady:
		return "NotReady"
	case KindTransactionAborted:
		return "TransactionAborted"
	case KindSchemaError:
		return "SchemaError"
	case KindHostFailure:
		return "HostFailure"
	default:
		return "Unknown"
	}
}

// InvalidLoginMessage is the only message an [KindInvalidLogin] error carries.
const InvalidLoginMessage = "invalid username or password"

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
	ErrInvalidLogin       = &Error{Kind: KindInvalidLogin}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrNotReady           = &Error{Kind: KindNotReady}
	ErrTransactionAborted = &Error{Kind: KindTransactionAborted}
	ErrSchema             = &Error{Kind: KindSchemaError}
	ErrHostFailure        = &Error{Kind: KindHostFailure}
)

// KindOf returns the kind of an auth error, or zero.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

func invalidLogin() *Error {
	return &Error{Kind: KindInvalidLogin, Message: InvalidLoginMessage}
}

// fromStore maps a store failure onto the auth taxonomy. Errors already in it pass through.
func fromStore(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch store.KindOf(err) {
	case store.KindNotReady:
		return &Error{Kind: KindNotReady, Message: "session store is not ready", Err: err}
	case store.KindDuplicateKey:
		return &Error{Kind: KindAlreadyExists, Message: "username is already taken", Err: err}
	case store.KindSchemaError:
		return &Error{Kind: KindSchemaError, Message: "session store schema mismatch", Err: err}
	default:
		return &Error{Kind: KindTransactionAborted, Message: "session change could not be saved", Err: err}
	}
}
