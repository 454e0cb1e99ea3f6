// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/gas-sensor/internal/logic"
	"github.com/sweeney/gas-sensor/internal/sensor"
)

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "gasmeter"

// Topics holds the full topic names derived from a prefix.
type Topics struct {
	State        string // counter snapshot, retained
	Set          string // inbound consumption commands
	Temperature  string
	Magnetometer string
	System       string // lifecycle events and LWT
}

// NewTopics derives all topics from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		State:        prefix + "/gas_counter/state",
		Set:          prefix + "/gas_counter/set",
		Temperature:  prefix + "/temperature/state",
		Magnetometer: prefix + "/magnetometer/state",
		System:       prefix + "/status",
	}
}

// Publisher publishes meter output to MQTT.
type Publisher interface {
	// PublishState sends the counter snapshot. Retained so new
	// subscribers see the latest value.
	PublishState(state CounterState) error

	// PublishTemperature sends a smoothed temperature reading.
	PublishTemperature(celsius float64) error

	// PublishMagnetometer sends raw axis values for debugging.
	PublishMagnetometer(r sensor.Reading) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CounterState is the counter snapshot published on every trigger change.
// ConsumptionM3 is nil when consumption tracking is disabled.
type CounterState struct {
	Counter       int         `json:"counter"`
	Trigger       logic.State `json:"trigger"`
	ConsumptionM3 *float64    `json:"consumption_m3,omitempty"`
}

// FormatState creates the JSON payload for a counter snapshot.
func FormatState(state CounterState) ([]byte, error) {
	return json.Marshal(state)
}

// TemperaturePayload is the temperature message body.
type TemperaturePayload struct {
	Temperature float64 `json:"temperature"`
}

// FormatTemperature creates the JSON payload for a temperature reading.
func FormatTemperature(celsius float64) ([]byte, error) {
	return json.Marshal(TemperaturePayload{Temperature: celsius})
}

// MagnetometerPayload is the debug message body.
type MagnetometerPayload struct {
	Bx int `json:"bx"`
	By int `json:"by"`
	Bz int `json:"bz"`
}

// FormatMagnetometer creates the JSON payload for raw axis values.
func FormatMagnetometer(r sensor.Reading) ([]byte, error) {
	return json.Marshal(MagnetometerPayload{Bx: r.X, By: r.Y, Bz: r.Z})
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventOffline     = "OFFLINE"
	EventReconnected = "RECONNECTED"
)

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload returns the last-will message the broker publishes if the
// daemon disappears without a clean disconnect.
func WillPayload(now time.Time) []byte {
	data, _ := FormatSystemPayload(SystemEvent{Timestamp: now, Event: EventOffline})
	return data
}
