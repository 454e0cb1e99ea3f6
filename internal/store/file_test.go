package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/gas-sensor/internal/logic"
)

func newFileStore(t *testing.T) (*FileStore, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "gas_counter.json"), log)
	require.NoError(t, err)
	return fs, hook
}

func TestFileStoreAbsent(t *testing.T) {
	fs, hook := newFileStore(t)

	_, ok, err := fs.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, hook.AllEntries(), "missing file is not worth a warning")
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs, _ := newFileStore(t)

	want := State{TickCounter: 42, ConsumptionTotal: 1.234, Trigger: logic.StateClosed}
	require.NoError(t, fs.Save(want))

	got, ok, err := fs.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, err = os.Stat(fs.tmpPath())
	assert.True(t, os.IsNotExist(err), "temp file must not survive a save")
}

func TestFileStoreOverwrite(t *testing.T) {
	fs, _ := newFileStore(t)

	require.NoError(t, fs.Save(State{TickCounter: 1}))
	require.NoError(t, fs.Save(State{TickCounter: 2, ConsumptionTotal: 0.01}))

	got, ok, err := fs.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.TickCounter)
	assert.Equal(t, 0.01, got.ConsumptionTotal)
}

func TestFileStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "nested", "gas_counter.json")
	log, _ := test.NewNullLogger()

	fs, err := NewFileStore(path, log)
	require.NoError(t, err)
	require.NoError(t, fs.Save(State{TickCounter: 7, ConsumptionTotal: 0.07}))
	require.NoError(t, fs.Close())

	fs2, err := NewFileStore(path, log)
	require.NoError(t, err)
	got, ok, err := fs2.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, got.TickCounter)
}

func TestFileStoreCorruptRecord(t *testing.T) {
	cases := map[string]string{
		"truncated":        `{"tick_counter": 4`,
		"not json":         "\x00\x00\x00",
		"empty":            "",
		"missing counter":  `{"consumption_total": 1.5}`,
		"missing total":    `{"tick_counter": 3}`,
		"wrong type":       `{"tick_counter": "three", "consumption_total": 1}`,
		"negative counter": `{"tick_counter": -1, "consumption_total": 0}`,
		"negative total":   `{"tick_counter": 5, "consumption_total": -0.5}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			fs, hook := newFileStore(t)
			require.NoError(t, os.WriteFile(fs.Path(), []byte(content), 0o644))

			_, ok, err := fs.Load()
			require.NoError(t, err)
			assert.False(t, ok)
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		})
	}
}

func TestFileStoreInterruptedSaveKeepsPrevious(t *testing.T) {
	fs, hook := newFileStore(t)
	require.NoError(t, fs.Save(State{TickCounter: 10, ConsumptionTotal: 0.1}))

	// Simulate a crash after a partial temp write and before rename.
	require.NoError(t, os.WriteFile(fs.tmpPath(), []byte(`{"tick_coun`), 0o644))

	got, ok, err := fs.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, got.TickCounter)
	assert.NotEmpty(t, hook.AllEntries())

	_, err = os.Stat(fs.tmpPath())
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreInterruptedFirstSave(t *testing.T) {
	fs, _ := newFileStore(t)
	require.NoError(t, os.WriteFile(fs.tmpPath(), []byte(`{"tick_counter": 1,`), 0o644))

	_, ok, err := fs.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreUnknownTrigger(t *testing.T) {
	fs, _ := newFileStore(t)
	require.NoError(t, os.WriteFile(fs.Path(),
		[]byte(`{"tick_counter": 5, "consumption_total": 0.05, "trigger": "AJAR"}`), 0o644))

	got, ok, err := fs.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, got.TickCounter)
	assert.Equal(t, logic.State(""), got.Trigger)
}

func TestFileStoreLegacyRecordWithoutTrigger(t *testing.T) {
	fs, _ := newFileStore(t)
	require.NoError(t, os.WriteFile(fs.Path(),
		[]byte(`{"tick_counter": 65535, "consumption_total": 123.456}`), 0o644))

	got, ok, err := fs.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, State{TickCounter: 65535, ConsumptionTotal: 123.456}, got)
}

func TestFileStoreSaveFailure(t *testing.T) {
	fs, _ := newFileStore(t)
	// A directory where the temp file should go makes the create fail.
	require.NoError(t, os.Mkdir(fs.tmpPath(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fs.tmpPath(), "x"), nil, 0o644))

	assert.Error(t, fs.Save(State{TickCounter: 1}))
}

func TestNewFileStoreEmptyPath(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := NewFileStore("", log)
	assert.Error(t, err)
}
