package store

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	log, _ := test.NewNullLogger()
	dir := t.TempDir()

	fs, err := Open(KindFile, filepath.Join(dir, "c.json"), log)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fs)

	ss, err := Open(KindSQLite, filepath.Join(dir, "c.db"), log)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, ss)
	require.NoError(t, ss.Close())

	ns, err := Open(KindNone, "", log)
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, ns)

	_, err = Open("etcd", "", log)
	assert.Error(t, err)
}

func TestNopStore(t *testing.T) {
	var s CounterStore = NopStore{}
	require.NoError(t, s.Save(State{TickCounter: 1}))
	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Close())
}

func TestStateValidate(t *testing.T) {
	tests := []struct {
		name  string
		state State
		ok    bool
	}{
		{"zero", State{}, true},
		{"typical", State{TickCounter: 65535, ConsumptionTotal: 1234.56}, true},
		{"negative counter", State{TickCounter: -1}, false},
		{"negative total", State{ConsumptionTotal: -0.01}, false},
		{"nan total", State{ConsumptionTotal: math.NaN()}, false},
		{"infinite total", State{ConsumptionTotal: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrMalformedRecord), "got %v", err)
			}
		})
	}
}
