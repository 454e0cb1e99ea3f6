package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/gas-sensor/internal/logic"
)

// FileStore keeps the record as a small JSON document. Writes go to a
// sibling temp file that is synced and renamed over the target.
type FileStore struct {
	path string
	log  logrus.FieldLogger
}

// fileRecord mirrors State with pointers so missing keys are detectable.
type fileRecord struct {
	TickCounter      *int     `json:"tick_counter"`
	ConsumptionTotal *float64 `json:"consumption_total"`
	Trigger          string   `json:"trigger,omitempty"`
}

// NewFileStore creates the parent directory of path if needed.
func NewFileStore(path string, log logrus.FieldLogger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: empty path")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &FileStore{path: path, log: log.WithField("store", path)}, nil
}

// Path returns the record location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) tmpPath() string {
	return f.path + ".tmp"
}

// Load reads the record. A missing, unreadable or malformed file reports
// ok == false; only the malformed cases are logged.
func (f *FileStore) Load() (State, bool, error) {
	// A leftover temp file means a crash between write and rename. The
	// target still holds the last complete record.
	if err := os.Remove(f.tmpPath()); err == nil {
		f.log.Warn("removed incomplete record from interrupted save")
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		f.log.WithError(err).Warn("cannot read counter record, starting from zero")
		return State{}, false, nil
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		f.log.WithError(err).Warn("corrupt counter record, starting from zero")
		return State{}, false, nil
	}
	if rec.TickCounter == nil || rec.ConsumptionTotal == nil {
		f.log.Warn("incomplete counter record, starting from zero")
		return State{}, false, nil
	}

	s := State{
		TickCounter:      *rec.TickCounter,
		ConsumptionTotal: *rec.ConsumptionTotal,
	}
	if err := s.Validate(); err != nil {
		f.log.WithError(err).Warn("invalid counter record, starting from zero")
		return State{}, false, nil
	}
	if st, ok := logic.ParseState(rec.Trigger); ok {
		s.Trigger = st
	}
	return s, true, nil
}

// Save writes the record to a temp file, syncs it, renames it over the
// target and syncs the directory.
func (f *FileStore) Save(s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	tmp := f.tmpPath()
	fh, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	if _, err := fh.Write(data); err != nil {
		fh.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace record: %w", err)
	}
	return syncDir(filepath.Dir(f.path))
}

// Close is a no-op; the file is not held open between saves.
func (f *FileStore) Close() error {
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open store directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync store directory: %w", err)
	}
	return nil
}
