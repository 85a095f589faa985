// Package store is the durable, append-only columnar store behind ingestion.
//
// Data lives in immutable parquet files under a warehouse directory; a
// SQLite catalog records tables and one snapshot per appended file. A
// table's contents are the data files of all its snapshots in sequence
// order.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/json"
	"github.com/ajitpratap0/cura/pkg/logger"
)

const (
	catalogFile  = "catalog.db"
	warehouseDir = "warehouse"
)

const ddl = `
CREATE TABLE IF NOT EXISTS tables (
	namespace   TEXT NOT NULL,
	name        TEXT NOT NULL,
	location    TEXT NOT NULL,
	schema_json TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (namespace, name)
);
CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id     INTEGER PRIMARY KEY,
	namespace       TEXT NOT NULL,
	table_name      TEXT NOT NULL,
	parent_id       INTEGER,
	sequence_number INTEGER NOT NULL,
	data_file       TEXT NOT NULL,
	source_file     TEXT NOT NULL,
	row_count       INTEGER NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_by_table ON snapshots (namespace, table_name, sequence_number);
`

// ErrTableNotFound is returned by LoadTable for unknown tables
var ErrTableNotFound = fmt.Errorf("table not found")

// Catalog tracks tables and their snapshots
type Catalog struct {
	db     *sql.DB
	root   string
	logger *zap.Logger
}

// Exists reports whether a catalog was created under dir
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, catalogFile))
	return err == nil
}

// Open opens or creates the catalog under dir
func Open(ctx context.Context, dir string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Join(dir, warehouseDir), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create warehouse directory")
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, catalogFile))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open catalog")
	}
	// Single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to initialize catalog")
	}

	return &Catalog{
		db:     db,
		root:   dir,
		logger: logger.Get().With(zap.String("component", "store_catalog")),
	}, nil
}

// Close releases the catalog database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// CreateTable registers a new table with string columns
func (c *Catalog) CreateTable(ctx context.Context, namespace, name string, columns []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "table needs at least one column")
	}
	schema, err := json.Marshal(columns)
	if err != nil {
		return nil, err
	}
	location := filepath.Join(c.root, warehouseDir, namespace, name, "data")
	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create table location")
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO tables (namespace, name, location, schema_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		namespace, name, location, strings.TrimSpace(string(schema)), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to register table").
			WithDetail("table", namespace+"."+name)
	}

	c.logger.Info("table created",
		zap.String("table", namespace+"."+name),
		zap.Strings("columns", columns))

	return &Table{catalog: c, namespace: namespace, name: name, location: location, columns: append([]string(nil), columns...)}, nil
}

// LoadTable returns an existing table
func (c *Catalog) LoadTable(ctx context.Context, namespace, name string) (*Table, error) {
	var location, schema string
	err := c.db.QueryRowContext(ctx,
		`SELECT location, schema_json FROM tables WHERE namespace = ? AND name = ?`,
		namespace, name).Scan(&location, &schema)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, namespace, name)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to load table")
	}

	var columns []string
	if err := json.Unmarshal([]byte(schema), &columns); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "corrupt table schema")
	}
	return &Table{catalog: c, namespace: namespace, name: name, location: location, columns: columns}, nil
}

// LoadOrCreateTable loads the table and checks its columns, creating it when absent
func (c *Catalog) LoadOrCreateTable(ctx context.Context, namespace, name string, columns []string) (*Table, error) {
	t, err := c.LoadTable(ctx, namespace, name)
	if errors.Is(err, ErrTableNotFound) {
		return c.CreateTable(ctx, namespace, name, columns)
	}
	if err != nil {
		return nil, err
	}
	if strings.Join(t.columns, "\x00") != strings.Join(columns, "\x00") {
		return nil, errors.Newf(errors.ErrorTypeStructural,
			"stored table columns %v do not match expected columns %v; reset the data buffer to re-ingest",
			t.columns, columns).WithDetail("table", namespace+"."+name)
	}
	return t, nil
}
