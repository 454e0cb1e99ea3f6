// Package store persists the gas counter record across restarts.
//
// Exactly one record exists per daemon. Every Save replaces it in full, so a
// reader at startup sees either the previous record or the new one, never a
// mix. An unreadable record is treated the same as no record.
package store

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/gas-sensor/internal/logic"
)

// Store kinds accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindNone   = "none"
)

// State is the persisted counter record.
type State struct {
	TickCounter      int         `json:"tick_counter"`
	ConsumptionTotal float64     `json:"consumption_total"`
	Trigger          logic.State `json:"trigger,omitempty"`
}

// ErrMalformedRecord marks a record whose values cannot have been written
// by the daemon.
var ErrMalformedRecord = errors.New("malformed counter record")

// Validate rejects negative or non-finite values. Stores treat an invalid
// record as absent.
func (s State) Validate() error {
	if s.TickCounter < 0 {
		return fmt.Errorf("%w: negative tick_counter %d", ErrMalformedRecord, s.TickCounter)
	}
	if math.IsNaN(s.ConsumptionTotal) || math.IsInf(s.ConsumptionTotal, 0) || s.ConsumptionTotal < 0 {
		return fmt.Errorf("%w: consumption_total %v", ErrMalformedRecord, s.ConsumptionTotal)
	}
	return nil
}

// CounterStore loads and saves the counter record.
type CounterStore interface {
	// Load returns the last saved record. ok is false when there is no
	// usable record, in which case the caller starts from zero.
	Load() (s State, ok bool, err error)
	// Save atomically replaces the record.
	Save(s State) error
	// Close releases any resources held by the store.
	Close() error
}

// Open returns the store for the given kind.
func Open(kind, path string, log logrus.FieldLogger) (CounterStore, error) {
	switch kind {
	case KindFile:
		return NewFileStore(path, log)
	case KindSQLite:
		return NewSQLiteStore(path, log)
	case KindNone:
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

// NopStore never remembers anything.
type NopStore struct{}

func (NopStore) Load() (State, bool, error) { return State{}, false, nil }
func (NopStore) Save(State) error           { return nil }
func (NopStore) Close() error               { return nil }
