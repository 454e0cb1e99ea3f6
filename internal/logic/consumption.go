package logic

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeConsumption is returned when an absolute set would make the total negative.
	ErrNegativeConsumption = errors.New("consumption must not be negative")
	// ErrInvalidConsumption is returned for NaN or infinite values.
	ErrInvalidConsumption = errors.New("consumption must be a finite number")
	// ErrConsumptionDisabled is returned when a set arrives while tracking is off.
	ErrConsumptionDisabled = errors.New("consumption tracking is disabled")
)

var litresPerCubicMetre = decimal.NewFromInt(1000)

// ConsumptionTracker accumulates gas volume in cubic metres.
//
// The total is kept as a decimal so that N ticks always add up to exactly
// N * litresPerTick / 1000, however long the daemon runs.
type ConsumptionTracker struct {
	enabled bool
	perTick decimal.Decimal
	total   decimal.Decimal
}

// NewConsumptionTracker creates a tracker. A disabled tracker ignores ticks
// and rejects sets, but still carries its total so it can be persisted.
func NewConsumptionTracker(enabled bool, litresPerTick float64) *ConsumptionTracker {
	return &ConsumptionTracker{
		enabled: enabled,
		perTick: decimal.NewFromFloat(litresPerTick).Div(litresPerCubicMetre),
	}
}

// Enabled reports whether ticks and sets are applied.
func (c *ConsumptionTracker) Enabled() bool {
	return c.enabled
}

// Tick records one dial rotation.
func (c *ConsumptionTracker) Tick() {
	if !c.enabled {
		return
	}
	c.total = c.total.Add(c.perTick)
}

// Set overwrites the total with an absolute value in m³.
func (c *ConsumptionTracker) Set(m3 float64) error {
	if !c.enabled {
		return ErrConsumptionDisabled
	}
	if math.IsNaN(m3) || math.IsInf(m3, 0) {
		return ErrInvalidConsumption
	}
	v := decimal.NewFromFloat(m3)
	if v.IsNegative() {
		return ErrNegativeConsumption
	}
	c.total = v
	return nil
}

// Restore seeds the total from persisted state regardless of enablement.
// Negative values are clamped to zero.
func (c *ConsumptionTracker) Restore(m3 float64) {
	if math.IsNaN(m3) || math.IsInf(m3, 0) {
		m3 = 0
	}
	v := decimal.NewFromFloat(m3)
	if v.IsNegative() {
		v = decimal.Zero
	}
	c.total = v
}

// Total returns the accumulated volume in m³.
func (c *ConsumptionTracker) Total() decimal.Decimal {
	return c.total
}

// TotalFloat returns the total as a float64 for wire formats.
func (c *ConsumptionTracker) TotalFloat() float64 {
	f, _ := c.total.Float64()
	return f
}
