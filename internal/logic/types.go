// Package logic contains pure business logic for gas meter tick detection.
// This package has NO external I/O (no I2C, MQTT, disk, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logic level of the threshold trigger.
type State string

const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
)

// ParseState converts a persisted or wire value into a State.
// Unknown values report false.
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StateOpen:
		return StateOpen, true
	case StateClosed:
		return StateClosed, true
	}
	return "", false
}

// Transition is a change of trigger level.
type Transition struct {
	From State
	To   State
	// Tick is true for the single countable edge (OPEN -> CLOSED).
	Tick bool
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Ticks     int
	Commands  int
}
