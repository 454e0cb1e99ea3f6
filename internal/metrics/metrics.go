// Package metrics exposes the meter's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/gas-sensor/internal/logic"
)

// Command results.
const (
	CommandAccepted = "accepted"
	CommandRejected = "rejected"
)

// Recorder receives meter events. Prom is the real implementation; Nop
// discards everything.
type Recorder interface {
	Tick(counter int)
	SetCounter(counter int)
	SetTrigger(s logic.State)
	SetConsumption(m3 float64)
	SetTemperature(celsius float64)
	SensorReadError()
	StoreSaved(d time.Duration, err error)
	Command(result string)
}

// Prom records into Prometheus collectors.
type Prom struct {
	ticks        prometheus.Counter
	counter      prometheus.Gauge
	triggerOpen  prometheus.Gauge
	consumption  prometheus.Gauge
	temperature  prometheus.Gauge
	readErrors   prometheus.Counter
	storeErrors  prometheus.Counter
	saveDuration prometheus.Histogram
	commands     *prometheus.CounterVec
}

// NewProm creates the collectors and registers them with reg.
func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gasmeter_ticks_total",
			Help: "Dial revolutions counted since process start.",
		}),
		counter: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gasmeter_tick_counter",
			Help: "Current value of the persisted 16-bit tick counter.",
		}),
		triggerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gasmeter_trigger_open",
			Help: "1 while the trigger is OPEN, 0 while CLOSED.",
		}),
		consumption: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gasmeter_consumption_cubic_meters",
			Help: "Accumulated gas consumption.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gasmeter_temperature_celsius",
			Help: "Smoothed sensor temperature.",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gasmeter_sensor_read_errors_total",
			Help: "Magnetometer reads that failed and were skipped.",
		}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gasmeter_store_write_errors_total",
			Help: "Counter record saves that failed.",
		}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gasmeter_store_save_seconds",
			Help:    "Time taken to durably save the counter record.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gasmeter_commands_total",
			Help: "Consumption set commands by result.",
		}, []string{"result"}),
	}
	p.triggerOpen.Set(1)

	reg.MustRegister(
		p.ticks, p.counter, p.triggerOpen, p.consumption, p.temperature,
		p.readErrors, p.storeErrors, p.saveDuration, p.commands,
	)
	return p
}

func (p *Prom) Tick(counter int) {
	p.ticks.Inc()
	p.counter.Set(float64(counter))
}

func (p *Prom) SetCounter(counter int) {
	p.counter.Set(float64(counter))
}

func (p *Prom) SetTrigger(s logic.State) {
	if s == logic.StateOpen {
		p.triggerOpen.Set(1)
	} else {
		p.triggerOpen.Set(0)
	}
}

func (p *Prom) SetConsumption(m3 float64) {
	p.consumption.Set(m3)
}

func (p *Prom) SetTemperature(celsius float64) {
	p.temperature.Set(celsius)
}

func (p *Prom) SensorReadError() {
	p.readErrors.Inc()
}

func (p *Prom) StoreSaved(d time.Duration, err error) {
	if err != nil {
		p.storeErrors.Inc()
		return
	}
	p.saveDuration.Observe(d.Seconds())
}

func (p *Prom) Command(result string) {
	p.commands.WithLabelValues(result).Inc()
}

// Nop discards all events.
type Nop struct{}

func (Nop) Tick(int)                        {}
func (Nop) SetCounter(int)                  {}
func (Nop) SetTrigger(logic.State)          {}
func (Nop) SetConsumption(float64)          {}
func (Nop) SetTemperature(float64)          {}
func (Nop) SensorReadError()                {}
func (Nop) StoreSaved(time.Duration, error) {}
func (Nop) Command(string)                  {}
