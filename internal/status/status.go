// Package status provides a thread-safe status tracker for the gas-sensor daemon.
// It is read by the HTTP handlers and by the system event publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/gas-sensor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs             int64
	TemperatureMs      int64
	HeartbeatMs        int64
	TriggerCenter      int
	TriggerBand        int
	ConsumptionEnabled bool
	LitresPerTick      float64
	Store              string
	Broker             string
	HTTPAddr           string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Counter       int
	Trigger       logic.State
	ConsumptionM3 *float64 // nil when consumption tracking is disabled
	TemperatureC  *float64 // nil until the first temperature reading
	LastBz        *int     // nil until the first successful read
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Trigger:   logic.StateOpen,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the counter state. Called from the run loop after every
// change and at startup.
func (t *Tracker) Update(counter int, trigger logic.State, consumptionM3 *float64) {
	t.mu.Lock()
	t.snap.Counter = counter
	t.snap.Trigger = trigger
	t.snap.ConsumptionM3 = copyFloat(consumptionM3)
	t.mu.Unlock()
}

// SetLastBz records the most recent Bz sample.
func (t *Tracker) SetLastBz(bz int) {
	t.mu.Lock()
	t.snap.LastBz = &bz
	t.mu.Unlock()
}

// SetTemperature records the most recent smoothed temperature.
func (t *Tracker) SetTemperature(celsius float64) {
	t.mu.Lock()
	t.snap.TemperatureC = &celsius
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.ConsumptionM3 = copyFloat(s.ConsumptionM3)
	s.TemperatureC = copyFloat(s.TemperatureC)
	if s.LastBz != nil {
		bz := *s.LastBz
		s.LastBz = &bz
	}
	s.Now = time.Now()
	return s
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
