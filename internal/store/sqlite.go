// Package store exports fact tables to a SQLite database for ad-hoc SQL
// queries over a project.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/robert-at-pretension-io/hdlkit/internal/facts"
)

const schema = `
CREATE TABLE files (
	path TEXT PRIMARY KEY,
	language TEXT NOT NULL
);

CREATE TABLE modules (
	name TEXT NOT NULL,
	file TEXT NOT NULL,
	line INTEGER NOT NULL,
	col INTEGER NOT NULL
);

CREATE TABLE ports (
	module TEXT NOT NULL,
	name TEXT NOT NULL,
	direction TEXT NOT NULL,
	type TEXT NOT NULL,
	bit_range TEXT NOT NULL,
	file TEXT NOT NULL,
	line INTEGER NOT NULL,
	position INTEGER NOT NULL
);

CREATE TABLE parameters (
	module TEXT NOT NULL,
	name TEXT NOT NULL,
	default_value TEXT NOT NULL,
	file TEXT NOT NULL,
	line INTEGER NOT NULL
);

CREATE TABLE instances (
	module TEXT NOT NULL,
	name TEXT NOT NULL,
	target TEXT NOT NULL,
	file TEXT NOT NULL,
	line INTEGER NOT NULL,
	resolved INTEGER NOT NULL
);

CREATE TABLE duplicates (
	name TEXT NOT NULL,
	file TEXT NOT NULL,
	winner TEXT NOT NULL
);

CREATE INDEX idx_modules_name ON modules(name);
CREATE INDEX idx_ports_module ON ports(module);
CREATE INDEX idx_instances_target ON instances(target);
`

// ExportSQLite writes tables to a fresh database at path. An existing file
// is replaced; all rows are written in one transaction.
func ExportSQLite(ctx context.Context, path string, tables facts.Tables) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove old export: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRows(ctx, tx, "INSERT INTO files (path, language) VALUES (?, ?)",
		tables.Files, func(r facts.FileRow) []any {
			return []any{r.Path, r.Language}
		}); err != nil {
		return fmt.Errorf("insert files: %w", err)
	}
	if err := insertRows(ctx, tx, "INSERT INTO modules (name, file, line, col) VALUES (?, ?, ?, ?)",
		tables.Modules, func(r facts.ModuleRow) []any {
			return []any{r.Name, r.File, r.Line, r.Column}
		}); err != nil {
		return fmt.Errorf("insert modules: %w", err)
	}

	position := map[string]int{}
	if err := insertRows(ctx, tx, "INSERT INTO ports (module, name, direction, type, bit_range, file, line, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		tables.Ports, func(r facts.PortRow) []any {
			key := r.Module + "|" + r.File
			pos := position[key]
			position[key]++
			return []any{r.Module, r.Name, r.Direction, r.Type, r.Range, r.File, r.Line, pos}
		}); err != nil {
		return fmt.Errorf("insert ports: %w", err)
	}
	if err := insertRows(ctx, tx, "INSERT INTO parameters (module, name, default_value, file, line) VALUES (?, ?, ?, ?, ?)",
		tables.Parameters, func(r facts.ParameterRow) []any {
			return []any{r.Module, r.Name, r.Default, r.File, r.Line}
		}); err != nil {
		return fmt.Errorf("insert parameters: %w", err)
	}
	if err := insertRows(ctx, tx, "INSERT INTO instances (module, name, target, file, line, resolved) VALUES (?, ?, ?, ?, ?, ?)",
		tables.Instances, func(r facts.InstanceRow) []any {
			return []any{r.Module, r.Name, r.Target, r.File, r.Line, r.Resolved}
		}); err != nil {
		return fmt.Errorf("insert instances: %w", err)
	}
	if err := insertRows(ctx, tx, "INSERT INTO duplicates (name, file, winner) VALUES (?, ?, ?)",
		tables.Duplicates, func(r facts.DuplicateRow) []any {
			return []any{r.Name, r.File, r.Winner}
		}); err != nil {
		return fmt.Errorf("insert duplicates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRows[T any](ctx context.Context, tx *sql.Tx, query string, rows []T, args func(T) []any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, args(row)...); err != nil {
			return err
		}
	}
	return nil
}
