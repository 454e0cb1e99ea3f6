// Package meter ties the pure logic to the sensor, store and publisher.
//
// None of the types here are safe for concurrent use. The host run loop
// owns them and serializes every call.
package meter

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/gas-sensor/internal/gpio"
	"github.com/sweeney/gas-sensor/internal/logic"
	"github.com/sweeney/gas-sensor/internal/metrics"
	"github.com/sweeney/gas-sensor/internal/mqtt"
	"github.com/sweeney/gas-sensor/internal/sensor"
	"github.com/sweeney/gas-sensor/internal/store"
)

// ErrInvalidCommand is returned for command payloads that cannot be parsed.
var ErrInvalidCommand = errors.New("invalid command")

// StatePublisher publishes counter snapshots.
type StatePublisher interface {
	PublishState(state mqtt.CounterState) error
}

// CounterConfig configures a GasCounter.
type CounterConfig struct {
	Center             int
	Band               int
	ConsumptionEnabled bool
	LitresPerTick      float64

	// Optional collaborators; nil means none.
	Indicator gpio.Indicator
	Metrics   metrics.Recorder
}

// PollResult describes one polling cycle.
type PollResult struct {
	Reading    sensor.Reading
	Transition logic.Transition
	Changed    bool
}

// GasCounter turns Bz samples into counted, persisted and published ticks.
type GasCounter struct {
	trigger     *logic.Trigger
	counter     logic.TickCounter
	consumption *logic.ConsumptionTracker

	store     store.CounterStore
	pub       StatePublisher
	indicator gpio.Indicator
	metrics   metrics.Recorder
	log       logrus.FieldLogger
}

// NewGasCounter creates a counter at zero with the trigger OPEN. Call
// Restore to resume from the persisted record.
func NewGasCounter(cfg CounterConfig, st store.CounterStore, pub StatePublisher, log logrus.FieldLogger) *GasCounter {
	c := &GasCounter{
		trigger:     logic.NewTrigger(cfg.Center, cfg.Band),
		counter:     logic.NewTickCounter(0),
		consumption: logic.NewConsumptionTracker(cfg.ConsumptionEnabled, cfg.LitresPerTick),
		store:       st,
		pub:         pub,
		indicator:   cfg.Indicator,
		metrics:     cfg.Metrics,
		log:         log.WithField("device", "gas_counter"),
	}
	if c.indicator == nil {
		c.indicator = gpio.Nop{}
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	return c
}

// Restore seeds the counter, consumption total and trigger level from the
// store. A missing or unreadable record leaves everything at zero.
func (c *GasCounter) Restore() {
	s, ok, err := c.store.Load()
	if err != nil {
		c.log.WithError(err).Warn("cannot load counter record, starting from zero")
	}
	if ok {
		c.counter = logic.NewTickCounter(s.TickCounter)
		c.consumption.Restore(s.ConsumptionTotal)
		c.trigger.Restore(s.Trigger)
		c.log.WithFields(logrus.Fields{
			"counter":     c.counter.Value(),
			"consumption": c.consumption.Total().String(),
			"trigger":     c.trigger.State(),
		}).Info("restored counter record")
	} else {
		c.log.Info("no counter record, starting from zero")
	}

	c.metrics.SetCounter(c.counter.Value())
	c.metrics.SetTrigger(c.trigger.State())
	c.metrics.SetConsumption(c.consumption.TotalFloat())
	c.setIndicator()
}

// Poll reads one sample and processes it. A read failure skips the cycle
// without touching any state.
func (c *GasCounter) Poll(src sensor.Source) (PollResult, error) {
	r, err := src.Read()
	if err != nil {
		c.metrics.SensorReadError()
		c.log.WithError(err).Warn("sensor read failed, skipping cycle")
		return PollResult{}, fmt.Errorf("read sensor: %w", err)
	}
	tr, changed := c.Process(r.Z)
	return PollResult{Reading: r, Transition: tr, Changed: changed}, nil
}

// Process feeds one Bz sample through the trigger. Any level change is
// saved and published; the OPEN to CLOSED edge also counts a tick.
func (c *GasCounter) Process(bz int) (logic.Transition, bool) {
	tr, changed := c.trigger.Update(bz)
	if !changed {
		return tr, false
	}

	if tr.Tick {
		n := c.counter.Inc()
		c.consumption.Tick()
		c.metrics.Tick(n)
		c.metrics.SetConsumption(c.consumption.TotalFloat())
		c.log.WithFields(logrus.Fields{
			"counter": n,
			"bz":      bz,
		}).Info("tick")
	} else {
		c.log.WithField("bz", bz).Debug("trigger reopened")
	}
	c.metrics.SetTrigger(tr.To)
	c.setIndicator()

	c.save()
	c.PublishState()
	return tr, true
}

type setCommand struct {
	ConsumptionM3 *float64 `json:"consumption_m3"`
}

// SetConsumption applies a {"consumption_m3": N} command. Rejected
// commands change nothing and publish nothing.
func (c *GasCounter) SetConsumption(payload []byte) error {
	err := c.setConsumption(payload)
	if err != nil {
		c.metrics.Command(metrics.CommandRejected)
		c.log.WithError(err).WithField("payload", string(payload)).Warn("consumption command rejected")
		return err
	}
	c.metrics.Command(metrics.CommandAccepted)
	c.metrics.SetConsumption(c.consumption.TotalFloat())
	c.log.WithField("consumption", c.consumption.Total().String()).Info("consumption set")

	c.save()
	c.PublishState()
	return nil
}

func (c *GasCounter) setConsumption(payload []byte) error {
	if !c.consumption.Enabled() {
		return logic.ErrConsumptionDisabled
	}
	var cmd setCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if cmd.ConsumptionM3 == nil {
		return fmt.Errorf("%w: missing consumption_m3", ErrInvalidCommand)
	}
	return c.consumption.Set(*cmd.ConsumptionM3)
}

// State returns the snapshot that PublishState sends.
func (c *GasCounter) State() mqtt.CounterState {
	s := mqtt.CounterState{
		Counter: c.counter.Value(),
		Trigger: c.trigger.State(),
	}
	if c.consumption.Enabled() {
		v := c.consumption.Total().Round(3).InexactFloat64()
		s.ConsumptionM3 = &v
	}
	return s
}

// PublishState sends the current snapshot. Failures are logged; the next
// change publishes again.
func (c *GasCounter) PublishState() {
	if err := c.pub.PublishState(c.State()); err != nil {
		c.log.WithError(err).Warn("publish state failed")
	}
}

// Record returns the persisted form of the current state.
func (c *GasCounter) Record() store.State {
	return store.State{
		TickCounter:      c.counter.Value(),
		ConsumptionTotal: c.consumption.TotalFloat(),
		Trigger:          c.trigger.State(),
	}
}

func (c *GasCounter) save() error {
	start := time.Now()
	err := c.store.Save(c.Record())
	c.metrics.StoreSaved(time.Since(start), err)
	if err != nil {
		c.log.WithError(err).Error("save counter record failed, keeping state in memory")
	}
	return err
}

func (c *GasCounter) setIndicator() {
	if err := c.indicator.Set(c.trigger.State() == logic.StateClosed); err != nil {
		c.log.WithError(err).Debug("indicator update failed")
	}
}

// Close saves the current state and closes the store.
func (c *GasCounter) Close() error {
	saveErr := c.save()
	closeErr := c.store.Close()
	return errors.Join(saveErr, closeErr)
}
