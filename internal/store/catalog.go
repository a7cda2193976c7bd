package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// TableInfo describes a record table as declared by the migrations.
type TableInfo struct {
	Name    string
	KeyPath string
	Indexes map[string]IndexInfo
}

// IndexInfo describes a named index over one record field.
type IndexInfo struct {
	Name   string
	Field  string
	Unique bool
}

// Catalog is the set of record tables known to an open [Engine].
type Catalog struct {
	tables map[string]TableInfo
}

// Tables returns the table names in sorted order.
func (c *Catalog) Tables() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the declaration of name.
func (c *Catalog) Table(name string) (TableInfo, bool) {
	info, ok := c.tables[name]
	return info, ok
}

func (c *Catalog) index(table, name string) (IndexInfo, error) {
	info, ok := c.tables[table]
	if !ok {
		return IndexInfo{}, schemaError(fmt.Sprintf("unknown table %q", table), map[string]any{"table": table}, nil)
	}
	idx, ok := info.Indexes[name]
	if !ok {
		return IndexInfo{}, schemaError(fmt.Sprintf("unknown index %q on %s", name, table),
			map[string]any{"table": table, "index": name}, nil)
	}
	return idx, nil
}

// loadCatalog reads store_tables and store_indexes and checks every declared table exists.
func loadCatalog(ctx context.Context, db *sql.DB) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]TableInfo)}

	rows, err := db.QueryContext(ctx, "SELECT name, key_path FROM store_tables")
	if err != nil {
		return nil, classify(err, "load_catalog", nil)
	}
	for rows.Next() {
		var info TableInfo
		if err := rows.Scan(&info.Name, &info.KeyPath); err != nil {
			rows.Close()
			return nil, classify(err, "load_catalog", nil)
		}
		info.Indexes = make(map[string]IndexInfo)
		c.tables[info.Name] = info
	}
	if err := rows.Close(); err != nil {
		return nil, classify(err, "load_catalog", nil)
	}

	rows, err = db.QueryContext(ctx, "SELECT name, table_name, field, is_unique FROM store_indexes")
	if err != nil {
		return nil, classify(err, "load_catalog", nil)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			idx   IndexInfo
			table string
		)
		if err := rows.Scan(&idx.Name, &table, &idx.Field, &idx.Unique); err != nil {
			return nil, classify(err, "load_catalog", nil)
		}
		info, ok := c.tables[table]
		if !ok {
			return nil, schemaError(fmt.Sprintf("index %q refers to unknown table %q", idx.Name, table), nil, nil)
		}
		info.Indexes[idx.Name] = idx
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "load_catalog", nil)
	}

	for name := range c.tables {
		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)", name).Scan(&exists)
		if err != nil {
			return nil, classify(err, "load_catalog", nil)
		}
		if !exists {
			return nil, schemaError(fmt.Sprintf("declared table %q is missing", name), map[string]any{"table": name}, nil)
		}
	}

	return c, nil
}
