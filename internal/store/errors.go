package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Kind classifies a store failure.
type Kind int

const (
	KindNotReady Kind = iota + 1
	KindNotFound
	KindDuplicateKey
	KindTransactionAborted
	KindSchemaError
)

func (k Kind) String() string {
	switch k {
	case KindNotReady:
		return "NotReady"
	case KindNotFound:
		return "NotFound"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindTransactionAborted:
		return "TransactionAborted"
	case KindSchemaError:
		return "SchemaError"
	default:
		return "Unknown"
	}
}

// Error is the failure returned by every store operation.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any [Error] of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotReady           = &Error{Kind: KindNotReady}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrDuplicateKey       = &Error{Kind: KindDuplicateKey}
	ErrTransactionAborted = &Error{Kind: KindTransactionAborted}
	ErrSchema             = &Error{Kind: KindSchemaError}
)

// KindOf returns the kind of a store error, or zero when err is not one.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func newError(kind Kind, msg string, ctx map[string]any, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Context: ctx, Err: cause}
}

func notReady(name string) *Error {
	return newError(KindNotReady, "store is not open", map[string]any{"store": name}, nil)
}

func notFound(table, key string) *Error {
	return newError(KindNotFound, fmt.Sprintf("no record with key %q in %s", key, table),
		map[string]any{"table": table, "key": key}, nil)
}

func schemaError(msg string, ctx map[string]any, cause error) *Error {
	return newError(KindSchemaError, msg, ctx, cause)
}

// classify converts a driver error into a store [Error].
func classify(err error, op string, ctx map[string]any) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if ctx == nil {
		ctx = map[string]any{}
	}
	ctx["op"] = op

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return newError(KindDuplicateKey, "a record with the same key already exists", ctx, err)
		}
		switch sqliteErr.Code {
		case sqlite3.ErrError:
			if strings.Contains(sqliteErr.Error(), "no such table") || strings.Contains(sqliteErr.Error(), "already exists") {
				return schemaError("schema mismatch", ctx, err)
			}
		case sqlite3.ErrMisuse:
			return newError(KindNotReady, "connection is not usable", ctx, err)
		}
		return newError(KindTransactionAborted, "transaction aborted", ctx, err)
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return newError(KindNotReady, "connection is closed", ctx, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTransactionAborted, "transaction cancelled", ctx, err)
	}
	return newError(KindTransactionAborted, "transaction aborted", ctx, err)
}
