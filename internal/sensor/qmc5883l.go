package sensor

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Default bus location of the QMC5883L on a Raspberry Pi.
const (
	DefaultBus     = 1
	DefaultAddress = 0x0D
)

// Register map.
const (
	regData     = 0x00 // 9 bytes: X, Y, Z (LE int16), status, temperature (LE int16)
	regControl  = 0x09
	regSetReset = 0x0B

	// Continuous mode, 10 Hz output rate, 8 gauss range, 64x oversampling.
	controlContinuous8G = 0b11010001
	// Datasheet-recommended SET/RESET period.
	setResetPeriod = 0x01

	dataLen = 9
)

// QMC5883L reads a QMC5883L 3-axis magnetometer over I2C.
type QMC5883L struct {
	dev *i2c.Dev
	bus i2c.BusCloser
}

// NewQMC5883L opens the numbered I2C bus and configures the chip for
// continuous measurement.
func NewQMC5883L(busNumber int, address uint16) (*QMC5883L, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(strconv.Itoa(busNumber))
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %d: %w", busNumber, err)
	}
	q, err := newQMC5883L(bus, address)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return q, nil
}

func newQMC5883L(bus i2c.BusCloser, address uint16) (*QMC5883L, error) {
	q := &QMC5883L{
		dev: &i2c.Dev{Addr: address, Bus: bus},
		bus: bus,
	}
	if err := q.dev.Tx([]byte{regControl, controlContinuous8G}, nil); err != nil {
		return nil, fmt.Errorf("write control register: %w", err)
	}
	if err := q.dev.Tx([]byte{regSetReset, setResetPeriod}, nil); err != nil {
		return nil, fmt.Errorf("write set/reset register: %w", err)
	}
	return q, nil
}

// Read returns the three axes and raw temperature in one block transfer.
func (q *QMC5883L) Read() (Reading, error) {
	if q.bus == nil {
		return Reading{}, ErrNotInitialized
	}
	buf := make([]byte, dataLen)
	if err := q.dev.Tx([]byte{regData}, buf); err != nil {
		return Reading{}, fmt.Errorf("read data block: %w", err)
	}
	return decodeBlock(buf), nil
}

// Close releases the bus. Reads after Close return ErrNotInitialized.
func (q *QMC5883L) Close() error {
	if q.bus == nil {
		return nil
	}
	err := q.bus.Close()
	q.bus = nil
	return err
}

// decodeBlock unpacks the data registers. Byte 6 is the status register
// and is not used.
func decodeBlock(b []byte) Reading {
	return Reading{
		X:              le16(b[0:2]),
		Y:              le16(b[2:4]),
		Z:              le16(b[4:6]),
		TemperatureRaw: le16(b[7:9]),
	}
}

func le16(b []byte) int {
	return int(int16(binary.LittleEndian.Uint16(b)))
}
