package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/gas-sensor/internal/logic"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	log, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "db", "gas.db")

	s, err := NewSQLiteStore(path, log)
	require.NoError(t, err)

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok, "fresh database has no record")

	require.NoError(t, s.Save(State{TickCounter: 3, ConsumptionTotal: 0.03, Trigger: logic.StateOpen}))
	require.NoError(t, s.Save(State{TickCounter: 4, ConsumptionTotal: 0.04, Trigger: logic.StateClosed}))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path, log)
	require.NoError(t, err)
	defer s2.Close()

	got, ok, err := s2.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, State{TickCounter: 4, ConsumptionTotal: 0.04, Trigger: logic.StateClosed}, got)

	var rows int
	require.NoError(t, s2.db.QueryRow(`SELECT COUNT(*) FROM counter_state`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSQLiteStoreEmptyTrigger(t *testing.T) {
	log, _ := test.NewNullLogger()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "gas.db"), log)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(State{TickCounter: 9}))
	got, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, logic.State(""), got.Trigger)
}

func TestSQLiteStoreCorruptFile(t *testing.T) {
	log, hook := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "gas.db")
	junk := bytes.Repeat([]byte("this is not a sqlite database\n"), 200)
	require.NoError(t, os.WriteFile(path, junk, 0o644))

	st, err := Open(KindSQLite, path, log)
	require.NoError(t, err, "a damaged database must not stop startup")
	defer st.Close()

	_, ok, err := st.Load()
	require.NoError(t, err)
	assert.False(t, ok, "damaged database starts from zero")

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning about the damaged database")

	aside, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err, "damaged file is kept for inspection")
	assert.Equal(t, junk, aside)

	want := State{TickCounter: 1, ConsumptionTotal: 0.01, Trigger: logic.StateClosed}
	require.NoError(t, st.Save(want))
	got, ok, err := st.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestSQLiteStoreFailedSaveKeepsPrevious(t *testing.T) {
	log, _ := test.NewNullLogger()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "gas.db"), log)
	require.NoError(t, err)
	defer s.Close()

	prev := State{TickCounter: 7, ConsumptionTotal: 0.07, Trigger: logic.StateOpen}
	require.NoError(t, s.Save(prev))

	// Fail the write inside the transaction.
	_, err = s.db.Exec(`CREATE TRIGGER fail_update BEFORE UPDATE ON counter_state
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	assert.Error(t, s.Save(State{TickCounter: 8, ConsumptionTotal: 0.08, Trigger: logic.StateClosed}))

	got, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, prev, got)
}

func TestSQLiteStoreRolledBackWriteKeepsPrevious(t *testing.T) {
	log, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "gas.db")
	s, err := NewSQLiteStore(path, log)
	require.NoError(t, err)

	prev := State{TickCounter: 7, ConsumptionTotal: 0.07, Trigger: logic.StateOpen}
	require.NoError(t, s.Save(prev))

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, `UPDATE counter_state SET tick_counter = 99, trigger_state = 'CLOSED' WHERE id = 1`)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path, log)
	require.NoError(t, err)
	defer s2.Close()

	got, ok, err := s2.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, prev, got)
}

func TestSQLiteStoreInvalidRecord(t *testing.T) {
	log, hook := test.NewNullLogger()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "gas.db"), log)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO counter_state (id, tick_counter, consumption_total, trigger_state)
		VALUES (1, -1, 0, 'OPEN')`)
	require.NoError(t, err)

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

type codedError struct{ code int }

func (e *codedError) Error() string { return fmt.Sprintf("sqlite error %d", e.code) }
func (e *codedError) Code() int     { return e.code }

func TestIsCorrupt(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not a database", fmt.Errorf("configure: %w", &codedError{code: 26}), true},
		{"corrupt", &codedError{code: 11}, true},
		{"extended corrupt code", &codedError{code: 11 | 1<<8}, true},
		{"quick check", fmt.Errorf("%w: page 3 is never used", errCorruptDatabase), true},
		{"busy", &codedError{code: 5}, false},
		{"plain", errors.New("permission denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCorrupt(tt.err))
		})
	}
}
