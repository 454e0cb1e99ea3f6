// Package sensor provides magnetometer reading with hardware abstraction.
// The real implementation talks to a QMC5883L over I2C.
// The fake implementations allow testing and dry runs without hardware.
package sensor

import "errors"

// ErrNotInitialized is returned when reading from a closed sensor.
var ErrNotInitialized = errors.New("sensor: not initialized")

// Reading is one sample of the three magnetic axes plus the on-die
// temperature, all in raw sensor units.
type Reading struct {
	X              int `json:"bx"`
	Y              int `json:"by"`
	Z              int `json:"bz"`
	TemperatureRaw int `json:"temperature_raw"`
}

// Source reads the magnetometer.
type Source interface {
	// Read returns the latest sample. Errors are transient bus failures;
	// the caller skips the cycle and tries again on the next poll.
	Read() (Reading, error)
	// Close releases bus resources.
	Close() error
}
