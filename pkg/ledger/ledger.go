// Package ledger records which source files were durably ingested and with
// what content checksum.
package ledger

import (
	"os"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/json"
	"github.com/ajitpratap0/cura/pkg/ordered"
)

// FileName is the ledger's name inside the domain buffer directory
const FileName = "ingestion_tracker.json"

// Entry is what the ledger knows about one ingested file
type Entry struct {
	Checksum string `json:"checksum"`
	Snapshot string `json:"snapshot"`
}

// Status is the outcome of comparing a file against the ledger
type Status int

const (
	// StatusNew means the file was never ingested
	StatusNew Status = iota
	// StatusUnchanged means the file was ingested with the same checksum
	StatusUnchanged
	// StatusChanged means the file was ingested but its content changed since
	StatusChanged
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusUnchanged:
		return "unchanged"
	case StatusChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Ledger maps source file names to entries, in ingestion order.
// It is append-only: entries are never replaced or removed.
type Ledger struct {
	path    string
	entries *ordered.Map[Entry]
}

// Exists reports whether a ledger file is present at path
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads the ledger at path. A missing file yields an empty ledger.
func Load(path string) (*Ledger, error) {
	l := &Ledger{path: path, entries: ordered.New[Entry]()}
	err := json.ReadFile(path, l.entries)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read ingestion ledger").
			WithDetail("path", path)
	}
	return l, nil
}

// Path returns the file the ledger persists to
func (l *Ledger) Path() string {
	return l.path
}

// Check compares a file's checksum against its ledger entry
func (l *Ledger) Check(name, checksum string) (Status, Entry) {
	e, ok := l.entries.Get(name)
	switch {
	case !ok:
		return StatusNew, Entry{}
	case e.Checksum == checksum:
		return StatusUnchanged, e
	default:
		return StatusChanged, e
	}
}

// Get returns the entry for name
func (l *Ledger) Get(name string) (Entry, bool) {
	return l.entries.Get(name)
}

// Files returns the ingested file names in ingestion order
func (l *Ledger) Files() []string {
	return l.entries.Keys()
}

// Len returns the number of ingested files
func (l *Ledger) Len() int {
	return l.entries.Len()
}

// Record adds an entry and rewrites the ledger file, synced to disk, before
// returning. Recording a file twice is an error.
func (l *Ledger) Record(name string, e Entry) error {
	if l.entries.Has(name) {
		return errors.Newf(errors.ErrorTypeIngestion, "file %s is already in the ledger", name).
			WithDetail("file", name)
	}
	l.entries.Set(name, e)
	if err := json.WriteFile(l.path, l.entries); err != nil {
		l.entries.Delete(name)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to persist ingestion ledger").
			WithDetail("file", name)
	}
	return nil
}
