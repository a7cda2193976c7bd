package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/spots/internal/models"
)

// Table is a typed handle over one record table. T is the pointer type stored in it.
//
// Each method runs in its own transaction over the table plus any deps; use
// [Table.In] to take part in a wider transaction instead.
type Table[T models.Record] struct {
	engine *Engine
	name   string
}

var (
	_ models.Repository[*models.User]     = (*Table[*models.User])(nil)
	_ models.Repository[*models.Playlist] = (*Table[*models.Playlist])(nil)
	_ models.Repository[*models.Track]    = (*Table[*models.Track])(nil)
)

// NewTable returns a handle for name. The table is checked against the catalog on first use.
func NewTable[T models.Record](e *Engine, name string) *Table[T] {
	return &Table[T]{engine: e, name: name}
}

// Users, Playlists and Tracks return handles for the tables declared by the schema.
func Users(e *Engine) *Table[*models.User]         { return NewTable[*models.User](e, models.UsersTable) }
func Playlists(e *Engine) *Table[*models.Playlist] { return NewTable[*models.Playlist](e, models.PlaylistsTable) }
func Tracks(e *Engine) *Table[*models.Track]       { return NewTable[*models.Track](e, models.TracksTable) }

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) scope(deps []string) []string {
	return append([]string{t.name}, deps...)
}

// Create inserts rec, failing with DuplicateKey when its key is taken.
func (t *Table[T]) Create(ctx context.Context, rec T, deps ...string) error {
	return t.engine.Update(ctx, t.scope(deps), func(tx *Tx) error {
		return t.In(tx).Create(rec)
	})
}

// Read returns the record stored under key.
func (t *Table[T]) Read(ctx context.Context, key string, deps ...string) (T, error) {
	var out T
	err := t.engine.View(ctx, t.scope(deps), func(tx *Tx) error {
		rec, err := t.In(tx).Read(key)
		out = rec
		return err
	})
	return out, err
}

// Update replaces the record stored under key with rec.
func (t *Table[T]) Update(ctx context.Context, key string, rec T, deps ...string) error {
	return t.engine.Update(ctx, t.scope(deps), func(tx *Tx) error {
		return t.In(tx).Update(key, rec)
	})
}

// Delete removes the record stored under key and returns it.
func (t *Table[T]) Delete(ctx context.Context, key string, deps ...string) (T, error) {
	var out T
	err := t.engine.Update(ctx, t.scope(deps), func(tx *Tx) error {
		rec, err := t.In(tx).Delete(key)
		out = rec
		return err
	})
	return out, err
}

// ReadAll returns every record in insertion order.
func (t *Table[T]) ReadAll(ctx context.Context, deps ...string) ([]T, error) {
	var out []T
	err := t.engine.View(ctx, t.scope(deps), func(tx *Tx) error {
		recs, err := t.In(tx).ReadAll()
		out = recs
		return err
	})
	return out, err
}

// FindBy returns the records whose indexed field equals v.
func (t *Table[T]) FindBy(ctx context.Context, index string, v any, deps ...string) ([]T, error) {
	var out []T
	err := t.engine.View(ctx, t.scope(deps), func(tx *Tx) error {
		recs, err := t.In(tx).FindBy(index, v)
		out = recs
		return err
	})
	return out, err
}

// In binds the table to a running transaction.
func (t *Table[T]) In(tx *Tx) *Bound[T] {
	return &Bound[T]{tx: tx, name: t.name}
}

// Bound is a [Table] bound to a transaction.
type Bound[T models.Record] struct {
	tx   *Tx
	name string
}

// Create inserts rec.
func (b *Bound[T]) Create(rec T) error {
	key, data, err := b.encode(rec)
	if err != nil {
		return err
	}
	return b.tx.insert(b.name, key, data)
}

// Read returns the record stored under key.
func (b *Bound[T]) Read(key string) (T, error) {
	data, err := b.tx.get(b.name, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return b.decode(data)
}

// Update replaces the record stored under key. rec's own key must equal key.
func (b *Bound[T]) Update(key string, rec T) error {
	recKey, data, err := b.encode(rec)
	if err != nil {
		return err
	}
	if recKey != key {
		return schemaError(fmt.Sprintf("record key %q does not match %q", recKey, key),
			map[string]any{"table": b.name, "key": key}, nil)
	}
	return b.tx.replace(b.name, key, data)
}

// Delete removes the record stored under key and returns it.
func (b *Bound[T]) Delete(key string) (T, error) {
	data, err := b.tx.remove(b.name, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return b.decode(data)
}

// ReadAll returns every record in insertion order.
func (b *Bound[T]) ReadAll() ([]T, error) {
	rows, err := b.tx.all(b.name)
	if err != nil {
		return nil, err
	}
	return b.decodeAll(rows)
}

// FindBy returns the records whose indexed field equals v.
func (b *Bound[T]) FindBy(index string, v any) ([]T, error) {
	rows, err := b.tx.find(b.name, index, v)
	if err != nil {
		return nil, err
	}
	return b.decodeAll(rows)
}

func (b *Bound[T]) encode(rec T) (string, []byte, error) {
	if err := rec.Validate(); err != nil {
		return "", nil, schemaError("record does not satisfy the table schema",
			map[string]any{"table": b.name}, err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", nil, schemaError("record cannot be encoded", map[string]any{"table": b.name}, err)
	}
	return rec.Key(), data, nil
}

func (b *Bound[T]) decode(data []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		var zero T
		return zero, schemaError("stored record cannot be decoded", map[string]any{"table": b.name}, err)
	}
	return rec, nil
}

func (b *Bound[T]) decodeAll(rows [][]byte) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, data := range rows {
		rec, err := b.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
