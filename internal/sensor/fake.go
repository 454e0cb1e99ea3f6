package sensor

import (
	"errors"
	"math"
)

// FakeSource is a test double that returns scripted readings.
type FakeSource struct {
	// Readings contains scripted values to return.
	// Each call to Read() consumes the next reading.
	Readings []Reading
	// index tracks current position in Readings
	index int
	// Closed tracks if Close was called
	Closed bool
	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeSource creates a FakeSource with the given readings.
func NewFakeSource(readings []Reading) *FakeSource {
	return &FakeSource{Readings: readings}
}

// NewFakeBz creates a FakeSource that scripts only the Z axis.
func NewFakeBz(bz ...int) *FakeSource {
	readings := make([]Reading, len(bz))
	for i, z := range bz {
		readings[i] = Reading{Z: z}
	}
	return NewFakeSource(readings)
}

// Read returns the next scripted reading.
// If readings are exhausted, returns the last reading repeatedly.
func (f *FakeSource) Read() (Reading, error) {
	if f.ReadError != nil {
		return Reading{}, f.ReadError
	}
	if len(f.Readings) == 0 {
		return Reading{}, errors.New("no readings configured")
	}
	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the source to the first reading.
func (f *FakeSource) Reset() {
	f.index = 0
	f.Closed = false
}

// SimulatedSource produces a synthetic rotating dial for dry runs: Bz swings
// sinusoidally between Center-Amplitude and Center+Amplitude once every
// Period reads, and the temperature channel holds steady.
type SimulatedSource struct {
	Center         int
	Amplitude      int
	Period         int
	TemperatureRaw int

	n int
}

// NewSimulatedSource returns a source whose swing crosses the default
// trigger thresholds once per period.
func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{Center: -5000, Amplitude: 1500, Period: 20}
}

// Read returns the next point on the waveform.
func (s *SimulatedSource) Read() (Reading, error) {
	period := s.Period
	if period <= 0 {
		period = 1
	}
	phase := 2 * math.Pi * float64(s.n%period) / float64(period)
	s.n++
	z := s.Center + int(math.Round(float64(s.Amplitude)*math.Cos(phase)))
	return Reading{Z: z, TemperatureRaw: s.TemperatureRaw}, nil
}

// Close is a no-op.
func (s *SimulatedSource) Close() error { return nil }
