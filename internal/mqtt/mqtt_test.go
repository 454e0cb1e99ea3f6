package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/gas-sensor/internal/logic"
	"github.com/sweeney/gas-sensor/internal/sensor"
)

func floatPtr(v float64) *float64 { return &v }

func TestNewTopics(t *testing.T) {
	topics := NewTopics("home/gas")
	if topics.State != "home/gas/gas_counter/state" {
		t.Errorf("unexpected state topic: %s", topics.State)
	}
	if topics.Set != "home/gas/gas_counter/set" {
		t.Errorf("unexpected set topic: %s", topics.Set)
	}
	if topics.Temperature != "home/gas/temperature/state" {
		t.Errorf("unexpected temperature topic: %s", topics.Temperature)
	}
	if topics.Magnetometer != "home/gas/magnetometer/state" {
		t.Errorf("unexpected magnetometer topic: %s", topics.Magnetometer)
	}
	if topics.System != "home/gas/status" {
		t.Errorf("unexpected system topic: %s", topics.System)
	}
}

func TestNewTopicsDefaultsAndTrailingSlash(t *testing.T) {
	if got := NewTopics("").State; got != "gasmeter/gas_counter/state" {
		t.Errorf("empty prefix: got %s", got)
	}
	if got := NewTopics("x/").Set; got != "x/gas_counter/set" {
		t.Errorf("trailing slash: got %s", got)
	}
}

func TestFormatStateExactJSON(t *testing.T) {
	tests := []struct {
		name  string
		state CounterState
		want  string
	}{
		{
			"with consumption",
			CounterState{Counter: 42, Trigger: logic.StateClosed, ConsumptionM3: floatPtr(1.234)},
			`{"counter":42,"trigger":"CLOSED","consumption_m3":1.234}`,
		},
		{
			"consumption disabled",
			CounterState{Counter: 7, Trigger: logic.StateOpen},
			`{"counter":7,"trigger":"OPEN"}`,
		},
		{
			"zero consumption still present",
			CounterState{Counter: 0, Trigger: logic.StateOpen, ConsumptionM3: floatPtr(0)},
			`{"counter":0,"trigger":"OPEN","consumption_m3":0}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatState(tt.state)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, tt.want)
			}
		})
	}
}

func TestFormatTemperature(t *testing.T) {
	payload, err := FormatTemperature(21.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"temperature":21.5}` {
		t.Errorf("unexpected payload: %s", payload)
	}
}

func TestFormatMagnetometer(t *testing.T) {
	payload, err := FormatMagnetometer(sensor.Reading{X: 12, Y: -34, Z: -5000, TemperatureRaw: 99})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"bx":12,"by":-34,"bz":-5000}` {
		t.Errorf("unexpected payload: %s", payload)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     EventShutdown,
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 10, 30, 0, 0, loc),
		Event:     EventReconnected,
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Timestamp != "2026-02-10T08:30:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.System.Timestamp)
	}
	if parsed.System.Reason != "" {
		t.Errorf("RECONNECTED should not have reason, got %s", parsed.System.Reason)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: EventHeartbeat, RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	payload := WillPayload(time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC))

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"OFFLINE"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFakePublisherRecordsEverything(t *testing.T) {
	f := NewFakePublisher()

	f.PublishState(CounterState{Counter: 1, Trigger: logic.StateClosed})
	f.PublishState(CounterState{Counter: 1, Trigger: logic.StateOpen})
	f.PublishTemperature(20.3)
	f.PublishMagnetometer(sensor.Reading{Z: -4000})
	f.PublishSystem(SystemEvent{Event: EventStartup, Retained: true})

	if len(f.States) != 2 || len(f.StatePayloads) != 2 {
		t.Fatalf("expected 2 states, got %d", len(f.States))
	}
	last, ok := f.LastState()
	if !ok || last.Trigger != logic.StateOpen {
		t.Errorf("unexpected last state: %+v", last)
	}
	if string(f.StatePayloads[0]) != `{"counter":1,"trigger":"CLOSED"}` {
		t.Errorf("unexpected payload: %s", f.StatePayloads[0])
	}
	if len(f.Temperatures) != 1 || f.Temperatures[0] != 20.3 {
		t.Errorf("unexpected temperatures: %v", f.Temperatures)
	}
	if len(f.Magnetometer) != 1 || f.Magnetometer[0].Z != -4000 {
		t.Errorf("unexpected magnetometer: %v", f.Magnetometer)
	}
	if len(f.SystemEvents) != 1 || !f.SystemEvents[0].Retained {
		t.Errorf("unexpected system events: %v", f.SystemEvents)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker gone")
	f.PublishSystemError = errors.New("broker gone")

	if err := f.PublishState(CounterState{}); err == nil {
		t.Error("expected state error")
	}
	if err := f.PublishTemperature(1); err == nil {
		t.Error("expected temperature error")
	}
	if err := f.PublishMagnetometer(sensor.Reading{}); err == nil {
		t.Error("expected magnetometer error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected system error")
	}
	if len(f.States)+len(f.Temperatures)+len(f.Magnetometer)+len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
	if _, ok := f.LastState(); ok {
		t.Error("expected no last state")
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.PublishState(CounterState{Counter: 3})
	f.Close()

	if !f.Closed {
		t.Error("expected Closed after Close")
	}
	if !f.IsConnected() {
		t.Error("expected IsConnected to follow Connected")
	}

	f.Reset()
	if f.Closed || f.Connected || len(f.States) != 0 {
		t.Error("Reset should clear all recorded state")
	}
	f.PublishState(CounterState{Counter: 4})
	if len(f.States) != 1 {
		t.Error("publisher should be reusable after Reset")
	}
}
