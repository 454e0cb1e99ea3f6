package meter

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/gas-sensor/internal/logic"
	"github.com/sweeney/gas-sensor/internal/metrics"
	"github.com/sweeney/gas-sensor/internal/sensor"
)

// TemperaturePublisher publishes smoothed temperatures.
type TemperaturePublisher interface {
	PublishTemperature(celsius float64) error
}

// TemperatureConfig holds the linear calibration and smoothing settings.
type TemperatureConfig struct {
	Scale  float64 // celsius per raw unit
	Offset float64 // celsius at raw zero
	Alpha  float64 // EWMA factor
	Delta  float64 // minimum change in published value before republishing
}

// Temperature calibrates and smooths the magnetometer's temperature channel.
type Temperature struct {
	cfg     TemperatureConfig
	filter  *logic.Filter
	pub     TemperaturePublisher
	metrics metrics.Recorder
	log     logrus.FieldLogger

	last      float64
	published bool
}

// NewTemperature creates the device. rec may be nil.
func NewTemperature(cfg TemperatureConfig, pub TemperaturePublisher, rec metrics.Recorder, log logrus.FieldLogger) *Temperature {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Temperature{
		cfg:     cfg,
		filter:  logic.NewFilter(cfg.Alpha),
		pub:     pub,
		metrics: rec,
		log:     log.WithField("device", "temperature"),
	}
}

// Poll reads the sensor and updates the smoothed temperature.
func (t *Temperature) Poll(src sensor.Source) error {
	r, err := src.Read()
	if err != nil {
		t.metrics.SensorReadError()
		t.log.WithError(err).Warn("sensor read failed, skipping temperature")
		return fmt.Errorf("read sensor: %w", err)
	}
	t.Update(r.TemperatureRaw)
	return nil
}

// Update calibrates raw, feeds the filter and publishes the value rounded
// to 0.1 °C when it differs from the last published value by at least
// Delta. It returns the rounded value and whether it was published.
func (t *Temperature) Update(raw int) (float64, bool) {
	celsius := t.cfg.Scale*float64(raw) + t.cfg.Offset
	smoothed := t.filter.Update(celsius)
	rounded := math.Round(smoothed*10) / 10
	t.metrics.SetTemperature(smoothed)

	// Tolerance absorbs float error in differences of rounded values.
	if t.published && math.Abs(rounded-t.last) < t.cfg.Delta-1e-9 {
		return rounded, false
	}
	if err := t.pub.PublishTemperature(rounded); err != nil {
		t.log.WithError(err).Warn("publish temperature failed")
		return rounded, false
	}
	t.last = rounded
	t.published = true
	t.log.WithField("celsius", rounded).Debug("temperature published")
	return rounded, true
}

// Value returns the current smoothed temperature, false before the first
// sample.
func (t *Temperature) Value() (float64, bool) {
	return t.filter.Value()
}
