package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/gas-sensor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Counter       int            `json:"counter"`
	Trigger       string         `json:"trigger"`
	ConsumptionM3 *float64       `json:"consumption_m3,omitempty"`
	TemperatureC  *float64       `json:"temperature,omitempty"`
	LastBz        *int           `json:"last_bz,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Heartbeat     *HeartbeatJSON `json:"heartbeat,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// HeartbeatJSON carries activity totals since startup.
type HeartbeatJSON struct {
	Ticks    int `json:"ticks"`
	Commands int `json:"commands"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs             int64   `json:"poll_ms"`
	TemperatureMs      int64   `json:"temperature_ms"`
	HeartbeatMs        int64   `json:"heartbeat_ms"`
	TriggerCenter      int     `json:"trigger_center"`
	TriggerBand        int     `json:"trigger_band"`
	ConsumptionEnabled bool    `json:"consumption_enabled"`
	LitresPerTick      float64 `json:"litres_per_tick"`
	Store              string  `json:"store"`
	Broker             string  `json:"broker"`
	HTTPAddr           string  `json:"http_addr,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	trigger := string(snap.Trigger)
	if trigger == "" {
		trigger = "UNKNOWN"
	}

	inner := StatusInner{
		Counter:       snap.Counter,
		Trigger:       trigger,
		ConsumptionM3: snap.ConsumptionM3,
		LastBz:        snap.LastBz,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:             snap.Config.PollMs,
			TemperatureMs:      snap.Config.TemperatureMs,
			HeartbeatMs:        snap.Config.HeartbeatMs,
			TriggerCenter:      snap.Config.TriggerCenter,
			TriggerBand:        snap.Config.TriggerBand,
			ConsumptionEnabled: snap.Config.ConsumptionEnabled,
			LitresPerTick:      snap.Config.LitresPerTick,
			Store:              snap.Config.Store,
			Broker:             snap.Config.Broker,
			HTTPAddr:           snap.Config.HTTPAddr,
		},
	}
	if snap.TemperatureC != nil {
		v := math.Round(*snap.TemperatureC*10) / 10
		inner.TemperatureC = &v
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatHeartbeat returns the JSON status for a HEARTBEAT system event.
func FormatHeartbeat(snap Snapshot, hb logic.HeartbeatData) []byte {
	inner := buildInner(snap)
	inner.Event = "HEARTBEAT"
	inner.Timestamp = hb.Timestamp.UTC().Format(time.RFC3339)
	inner.UptimeSeconds = int64(hb.Uptime.Truncate(time.Second).Seconds())
	inner.Heartbeat = &HeartbeatJSON{Ticks: hb.Ticks, Commands: hb.Commands}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
