package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/frame"
)

// Snapshot is one committed append
type Snapshot struct {
	ID         int64
	ParentID   int64
	Sequence   int64
	DataFile   string
	SourceFile string
	RowCount   int64
	CreatedAt  time.Time
}

// String renders the snapshot the way it is recorded in the ingestion ledger
func (s Snapshot) String() string {
	return fmt.Sprintf("append: id=%d, parent_id=%d, sequence_number=%d, added_rows=%d, source=%s",
		s.ID, s.ParentID, s.Sequence, s.RowCount, s.SourceFile)
}

// Table is an append-only table of string columns. It implements frame.Source.
type Table struct {
	catalog   *Catalog
	namespace string
	name      string
	location  string
	columns   []string
}

// Name returns namespace.name
func (t *Table) Name() string {
	return t.namespace + "." + t.name
}

// Columns returns the table columns
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Append writes f as a new data file and commits a snapshot for it. Nothing
// is visible to readers until the catalog row is committed.
func (t *Table) Append(ctx context.Context, f *frame.Frame, sourceFile string) (Snapshot, error) {
	data, err := f.Select(t.columns...)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, errors.ErrorTypeIngestion, "frame does not match table columns").
			WithDetail("table", t.Name()).
			WithDetail("file", sourceFile)
	}

	fileID := uuid.New()
	dataFile := filepath.Join(t.location, fmt.Sprintf("%s.parquet", fileID.String()))
	if err := writeDataFile(dataFile, data); err != nil {
		return Snapshot{}, errors.Wrap(err, errors.ErrorTypeIngestion, "failed to write data file").
			WithDetail("file", sourceFile)
	}

	snap, err := t.commit(ctx, dataFile, sourceFile, int64(data.NumRows()))
	if err != nil {
		os.Remove(dataFile)
		return Snapshot{}, errors.Wrap(err, errors.ErrorTypeIngestion, "failed to commit snapshot").
			WithDetail("file", sourceFile)
	}

	t.catalog.logger.Info("snapshot committed",
		zap.String("table", t.Name()),
		zap.Int64("snapshot_id", snap.ID),
		zap.Int64("rows", snap.RowCount),
		zap.String("source_file", sourceFile))
	return snap, nil
}

func (t *Table) commit(ctx context.Context, dataFile, sourceFile string, rows int64) (Snapshot, error) {
	tx, err := t.catalog.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	var parentID, seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM snapshots WHERE namespace = ? AND table_name = ?`,
		t.namespace, t.name).Scan(&seq)
	if err != nil {
		return Snapshot{}, err
	}
	if seq > 0 {
		err = tx.QueryRowContext(ctx,
			`SELECT snapshot_id FROM snapshots WHERE namespace = ? AND table_name = ? AND sequence_number = ?`,
			t.namespace, t.name, seq).Scan(&parentID)
		if err != nil {
			return Snapshot{}, err
		}
	}

	snap := Snapshot{
		ID:         newSnapshotID(),
		ParentID:   parentID,
		Sequence:   seq + 1,
		DataFile:   dataFile,
		SourceFile: sourceFile,
		RowCount:   rows,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, namespace, table_name, parent_id, sequence_number, data_file, source_file, row_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, t.namespace, t.name, snap.ParentID, snap.Sequence, filepath.Base(dataFile),
		sourceFile, snap.RowCount, snap.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Snapshot{}, err
	}
	return snap, tx.Commit()
}

// DropSnapshot removes a snapshot from the catalog and deletes its data
// file. Ingestion uses it to undo an append whose ledger entry could not
// be written. Dropping an unknown snapshot is an error.
func (t *Table) DropSnapshot(ctx context.Context, id int64) error {
	var dataFile string
	err := t.catalog.db.QueryRowContext(ctx,
		`SELECT data_file FROM snapshots WHERE namespace = ? AND table_name = ? AND snapshot_id = ?`,
		t.namespace, t.name, id).Scan(&dataFile)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to find snapshot").
			WithDetail("snapshot_id", id)
	}

	if _, err := t.catalog.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE namespace = ? AND table_name = ? AND snapshot_id = ?`,
		t.namespace, t.name, id); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to drop snapshot").
			WithDetail("snapshot_id", id)
	}

	path := filepath.Join(t.location, dataFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to delete data file").
			WithDetail("snapshot_id", id).
			WithDetail("path", path)
	}

	t.catalog.logger.Warn("snapshot dropped",
		zap.String("table", t.Name()),
		zap.Int64("snapshot_id", id),
		zap.String("data_file", dataFile))
	return nil
}

// Snapshots returns the committed snapshots in sequence order
func (t *Table) Snapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := t.catalog.db.QueryContext(ctx,
		`SELECT snapshot_id, COALESCE(parent_id, 0), sequence_number, data_file, source_file, row_count, created_at
		 FROM snapshots WHERE namespace = ? AND table_name = ? ORDER BY sequence_number`,
		t.namespace, t.name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var created string
		if err := rows.Scan(&s.ID, &s.ParentID, &s.Sequence, &s.DataFile, &s.SourceFile, &s.RowCount, &created); err != nil {
			return nil, err
		}
		s.DataFile = filepath.Join(t.location, s.DataFile)
		s.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Schema implements frame.Source
func (t *Table) Schema(context.Context) ([]string, error) {
	return t.Columns(), nil
}

// Scan implements frame.Source, reading data files in commit order
func (t *Table) Scan(ctx context.Context, fn func(*frame.Frame) error) error {
	snaps, err := t.Snapshots(ctx)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := frame.ScanParquet(ctx, s.DataFile, fn); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to scan data file").
				WithDetail("snapshot_id", s.ID)
		}
	}
	return nil
}

// Lazy returns a lazy handle over the full table
func (t *Table) Lazy() *frame.LazyFrame {
	return frame.Lazy(t)
}

func writeDataFile(path string, f *frame.Frame) error {
	tmp := path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := frame.WriteParquet(fh, f, frame.ParquetSnappy); err != nil {
		fh.Close()
		os.Remove(tmp)
		return err
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return err
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// newSnapshotID returns a random positive id
func newSnapshotID() int64 {
	u := uuid.New()
	id := int64(binary.BigEndian.Uint64(u[:8]) & math.MaxInt64)
	if id == 0 {
		id = 1
	}
	return id
}
