// Package gpio drives the tick indicator LED with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Indicator shows the trigger level on an output line.
type Indicator interface {
	// Set drives the line: true while the trigger is CLOSED.
	Set(on bool) error

	// Close turns the line off and releases GPIO resources.
	Close() error
}

// DefaultChip is the Raspberry Pi header GPIO chip.
const DefaultChip = "gpiochip0"

// Nop is used when no indicator pin is configured.
type Nop struct{}

func (Nop) Set(bool) error { return nil }
func (Nop) Close() error   { return nil }
