package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/gas-sensor/internal/logic"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the record as the single row of a SQLite table.
type SQLiteStore struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// SQLite primary result codes for a damaged or foreign file.
const (
	sqliteCorrupt = 11 // SQLITE_CORRUPT
	sqliteNotADB  = 26 // SQLITE_NOTADB
)

var errCorruptDatabase = errors.New("corrupt database")

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. A file that SQLite reports as damaged is moved aside to
// path+".corrupt" and replaced with an empty database.
func NewSQLiteStore(path string, log logrus.FieldLogger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	log = log.WithField("store", path)

	s, err := openSQLite(path, log)
	if err == nil {
		return s, nil
	}
	if !isCorrupt(err) {
		return nil, err
	}

	aside := path + ".corrupt"
	log.WithError(err).WithField("moved_to", aside).Warn("corrupt counter database, starting from zero")
	if err := moveAside(path, aside); err != nil {
		return nil, err
	}
	return openSQLite(path, log)
}

func openSQLite(path string, log logrus.FieldLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; a single connection keeps pragmas applied.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, log: log}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	if err := s.db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	if err := s.configure(); err != nil {
		return err
	}
	if err := s.createSchema(); err != nil {
		return err
	}
	var check string
	if err := s.db.QueryRowContext(context.Background(), "PRAGMA quick_check").Scan(&check); err != nil {
		return fmt.Errorf("check database: %w", err)
	}
	if check != "ok" {
		return fmt.Errorf("%w: %s", errCorruptDatabase, check)
	}
	return nil
}

// isCorrupt reports whether err means the file itself is unusable, as
// opposed to a permission or I/O problem.
func isCorrupt(err error) bool {
	if errors.Is(err, errCorruptDatabase) {
		return true
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case sqliteCorrupt, sqliteNotADB:
			return true
		}
	}
	return false
}

// moveAside renames the database and any WAL or shared-memory files.
func moveAside(path, aside string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Rename(path+suffix, aside+suffix)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move corrupt database aside: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteStore) createSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS counter_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		tick_counter INTEGER NOT NULL,
		consumption_total REAL NOT NULL,
		trigger_state TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Load reads the single row. No row, a damaged row or invalid values
// report ok == false.
func (s *SQLiteStore) Load() (State, bool, error) {
	var (
		st      State
		trigger string
	)
	row := s.db.QueryRowContext(context.Background(),
		`SELECT tick_counter, consumption_total, trigger_state FROM counter_state WHERE id = 1`)
	err := row.Scan(&st.TickCounter, &st.ConsumptionTotal, &trigger)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		if isCorrupt(err) {
			s.log.WithError(err).Warn("corrupt counter record, starting from zero")
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("load record: %w", err)
	}
	if err := st.Validate(); err != nil {
		s.log.WithError(err).Warn("invalid counter record, starting from zero")
		return State{}, false, nil
	}
	if parsed, ok := logic.ParseState(trigger); ok {
		st.Trigger = parsed
	}
	return st, true, nil
}

// Save upserts the row inside a transaction.
func (s *SQLiteStore) Save(st State) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO counter_state (id, tick_counter, consumption_total, trigger_state, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			tick_counter = excluded.tick_counter,
			consumption_total = excluded.consumption_total,
			trigger_state = excluded.trigger_state,
			updated_at = excluded.updated_at`,
		st.TickCounter, st.ConsumptionTotal, string(st.Trigger))
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	_, _ = s.db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
