package mqtt

import (
	"github.com/sweeney/gas-sensor/internal/sensor"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// States contains all counter snapshots that were published.
	States []CounterState

	// StatePayloads contains the JSON payloads for counter snapshots.
	StatePayloads [][]byte

	// Temperatures contains all published temperature readings.
	Temperatures []float64

	// Magnetometer contains all published debug readings.
	Magnetometer []sensor.Reading

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by every data publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishState records the counter snapshot.
func (f *FakePublisher) PublishState(state CounterState) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatState(state)
	if err != nil {
		return err
	}
	f.States = append(f.States, state)
	f.StatePayloads = append(f.StatePayloads, payload)
	return nil
}

// PublishTemperature records the reading.
func (f *FakePublisher) PublishTemperature(celsius float64) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Temperatures = append(f.Temperatures, celsius)
	return nil
}

// PublishMagnetometer records the raw reading.
func (f *FakePublisher) PublishMagnetometer(r sensor.Reading) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Magnetometer = append(f.Magnetometer, r)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// LastState returns the most recent counter snapshot, or false if none.
func (f *FakePublisher) LastState() (CounterState, bool) {
	if len(f.States) == 0 {
		return CounterState{}, false
	}
	return f.States[len(f.States)-1], true
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages and injected errors.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
