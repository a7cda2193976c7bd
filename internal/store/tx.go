package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Tx is a transaction over a fixed set of tables, handed to the callback of
// [Engine.View] or [Engine.Update]. It must not be used after the callback returns.
type Tx struct {
	ctx      context.Context
	tx       *sql.Tx
	engine   *Engine
	scope    []string
	writable bool
}

// Context returns the context the transaction was started with.
func (t *Tx) Context() context.Context { return t.ctx }

// Writable reports whether the transaction may modify records.
func (t *Tx) Writable() bool { return t.writable }

// Tables returns the tables in scope.
func (t *Tx) Tables() []string { return slices.Clone(t.scope) }

// NextSequence increments and returns the named counter. The counter must be named after a table in scope.
// A counter that has never been used starts at 0.
func (t *Tx) NextSequence(name string) (int, error) {
	if err := t.check(name, true); err != nil {
		return 0, err
	}

	var value int
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO store_sequences (name, value) VALUES (?, 0)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`, name).Scan(&value)
	if err != nil {
		return 0, classify(err, "next_sequence", map[string]any{"sequence": name})
	}
	return value, nil
}

func (t *Tx) check(table string, write bool) error {
	if !slices.Contains(t.scope, table) {
		return schemaError(fmt.Sprintf("table %q is not part of this transaction", table),
			map[string]any{"table": table, "scope": t.scope}, nil)
	}
	if write && !t.writable {
		return newError(KindTransactionAborted, "write attempted in a read-only transaction",
			map[string]any{"table": table}, nil)
	}
	return nil
}

func (t *Tx) insert(table, key string, data []byte) error {
	if err := t.check(table, true); err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %q (record_key, data) VALUES (?, ?)`, table)
	if _, err := t.tx.ExecContext(t.ctx, query, key, string(data)); err != nil {
		return classify(err, "create", map[string]any{"table": table, "key": key})
	}
	return nil
}

func (t *Tx) get(table, key string) ([]byte, error) {
	if err := t.check(table, false); err != nil {
		return nil, err
	}
	var data string
	query := fmt.Sprintf(`SELECT data FROM %q WHERE record_key = ?`, table)
	err := t.tx.QueryRowContext(t.ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(table, key)
	}
	if err != nil {
		return nil, classify(err, "read", map[string]any{"table": table, "key": key})
	}
	return []byte(data), nil
}

func (t *Tx) replace(table, key string, data []byte) error {
	if err := t.check(table, true); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %q SET data = ? WHERE record_key = ?`, table)
	result, err := t.tx.ExecContext(t.ctx, query, string(data), key)
	if err != nil {
		return classify(err, "update", map[string]any{"table": table, "key": key})
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return classify(err, "update", map[string]any{"table": table, "key": key})
	}
	if rows == 0 {
		return notFound(table, key)
	}
	return nil
}

func (t *Tx) remove(table, key string) ([]byte, error) {
	if err := t.check(table, true); err != nil {
		return nil, err
	}
	data, err := t.get(table, key)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`DELETE FROM %q WHERE record_key = ?`, table)
	if _, err := t.tx.ExecContext(t.ctx, query, key); err != nil {
		return nil, classify(err, "delete", map[string]any{"table": table, "key": key})
	}
	return data, nil
}

func (t *Tx) all(table string) ([][]byte, error) {
	if err := t.check(table, false); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT data FROM %q ORDER BY rowid`, table)
	return t.collect(table, "read_all", query)
}

func (t *Tx) find(table, index string, v any) ([][]byte, error) {
	if err := t.check(table, false); err != nil {
		return nil, err
	}
	idx, err := t.engine.catalog.index(table, index)
	if err != nil {
		return nil, err
	}
	arg, err := indexValue(v)
	if err != nil {
		return nil, schemaError("index value cannot be encoded", map[string]any{"index": index}, err)
	}
	query := fmt.Sprintf(`SELECT data FROM %q WHERE json_extract(data, '$.%s') = ? ORDER BY rowid`, table, idx.Field)
	return t.collect(table, "find_by", query, arg)
}

func (t *Tx) collect(table, op, query string, args ...any) ([][]byte, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, classify(err, op, map[string]any{"table": table})
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, classify(err, op, map[string]any{"table": table})
		}
		out = append(out, []byte(data))
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, op, map[string]any{"table": table})
	}
	return out, nil
}

// indexValue converts v into the value json_extract yields for the same field.
// Scalars compare directly; lists and objects compare as their JSON text.
func indexValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, float32, float64:
		return val, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}
