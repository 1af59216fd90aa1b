// Package store opens and reads the analytical warehouse. The default
// backend is a local SQLite file (pure-Go driver); a postgres:// URL
// selects Postgres through the pgx stdlib adapter instead. The core only
// ever reads; schema creation and loading belong to the ingestion pipeline.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"harbor_insight/pkg/core/registry"
)

// Warehouse wraps the database handle for the fixed analytical schema.
type Warehouse struct {
	db       *sql.DB
	postgres bool
}

// ResultSet is one executed query: column names plus raw rows.
type ResultSet struct {
	Columns []string
	Rows    [][]interface{}
}

// Empty reports whether the query returned no rows.
func (rs *ResultSet) Empty() bool { return rs == nil || len(rs.Rows) == 0 }

// Open connects to the warehouse. A postgres:// or postgresql:// DSN uses
// pgx; anything else is treated as a SQLite file path.
func Open(dsn string) (*Warehouse, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres warehouse: %w", err)
		}
		return &Warehouse{db: db, postgres: true}, nil
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite warehouse: %w", err)
	}
	// SQLite behaves best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Warehouse{db: db}, nil
}

// Close releases the handle.
func (w *Warehouse) Close() error { return w.db.Close() }

// DB exposes the raw handle for the ingestion pipeline.
func (w *Warehouse) DB() *sql.DB { return w.db }

// Query runs one read-only statement and materializes the rows. Templates
// are written with ? placeholders; they are rebound to $N for Postgres.
func (w *Warehouse) Query(ctx context.Context, sqlText string, args ...interface{}) (*ResultSet, error) {
	if w.postgres {
		sqlText = rebindPositional(sqlText)
	}
	rows, err := w.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return rs, nil
}

// Periods loads the period dimension for the registry, oldest first.
func (w *Warehouse) Periods(ctx context.Context) ([]registry.PeriodRef, error) {
	rows, err := w.db.QueryContext(ctx,
		"SELECT raw_label, start_year, end_year, period_type, COALESCE(quarter, 0), sort_key "+
			"FROM dim_period WHERE sort_key IS NOT NULL ORDER BY sort_key ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to load periods: %w", err)
	}
	defer rows.Close()

	var out []registry.PeriodRef
	for rows.Next() {
		var p registry.PeriodRef
		if err := rows.Scan(&p.Label, &p.StartYear, &p.EndYear, &p.PeriodType, &p.Quarter, &p.SortKey); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Ports loads the port dimension names.
func (w *Warehouse) Ports(ctx context.Context) ([]string, error) {
	return w.stringColumn(ctx, "SELECT port_name FROM dim_port ORDER BY port_name")
}

// CargoTypes loads the cargo type dimension names.
func (w *Warehouse) CargoTypes(ctx context.Context) ([]string, error) {
	return w.stringColumn(ctx, "SELECT name FROM dim_cargo_type ORDER BY name")
}

func (w *Warehouse) stringColumn(ctx context.Context, q string) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("dimension query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan dimension value: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// rebindPositional rewrites ? placeholders as $1..$N. Collaborator SQL can
// carry ? inside string literals or quoted identifiers, so the scan tracks
// quoting and leaves those untouched.
func rebindPositional(sqlText string) string {
	var b strings.Builder
	n := 0
	var quote rune
	for _, r := range sqlText {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			b.WriteRune(r)
			continue
		}
		switch r {
		case '\'', '"':
			quote = r
			b.WriteRune(r)
		case '?':
			n++
			b.WriteString("$" + strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
