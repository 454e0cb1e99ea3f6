package meter

import (
	"github.com/sirupsen/logrus"

	"github.com/sweeney/gas-sensor/internal/sensor"
)

// MagnetometerPublisher publishes raw axis values.
type MagnetometerPublisher interface {
	PublishMagnetometer(r sensor.Reading) error
}

// Magnetometer republishes raw readings for threshold calibration.
type Magnetometer struct {
	pub MagnetometerPublisher
	log logrus.FieldLogger
}

// NewMagnetometer creates the debug device.
func NewMagnetometer(pub MagnetometerPublisher, log logrus.FieldLogger) *Magnetometer {
	return &Magnetometer{pub: pub, log: log.WithField("device", "magnetometer")}
}

// Publish sends r. Failures are logged at debug level only.
func (m *Magnetometer) Publish(r sensor.Reading) {
	if err := m.pub.PublishMagnetometer(r); err != nil {
		m.log.WithError(err).Debug("publish magnetometer failed")
	}
}
