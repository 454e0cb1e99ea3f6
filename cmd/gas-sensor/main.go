// Command gas-sensor counts gas meter dial rotations from a QMC5883L
// magnetometer and publishes counter, consumption and temperature to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/gas-sensor/internal/config"
	"github.com/sweeney/gas-sensor/internal/gpio"
	"github.com/sweeney/gas-sensor/internal/logic"
	"github.com/sweeney/gas-sensor/internal/meter"
	"github.com/sweeney/gas-sensor/internal/metrics"
	"github.com/sweeney/gas-sensor/internal/mqtt"
	"github.com/sweeney/gas-sensor/internal/sensor"
	"github.com/sweeney/gas-sensor/internal/status"
	"github.com/sweeney/gas-sensor/internal/store"
	"github.com/sweeney/gas-sensor/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := newLogger(cfg.Level())
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("fatal")
	}
}

func newLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
	return log
}

func run(cfg *config.Config, log *logrus.Logger) error {
	source, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer source.Close()

	// Print reading mode
	if cfg.PrintReading {
		return printReading(os.Stdout, source, cfg)
	}

	st, err := store.Open(cfg.StoreKind, cfg.StateFile, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewProm(reg)

	publisher, err := mqtt.NewRealPublisher(mqtt.Config{
		Broker:     cfg.Broker,
		ClientID:   cfg.ClientID,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Prefix:     cfg.TopicPrefix,
		BufferSize: cfg.BufferSize,
	}, log)
	if err != nil {
		st.Close()
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	indicator, err := openIndicator(cfg)
	if err != nil {
		log.WithError(err).Warn("tick indicator unavailable")
		indicator = gpio.Nop{}
	}
	defer indicator.Close()

	counter := meter.NewGasCounter(meter.CounterConfig{
		Center:             cfg.TriggerLevel,
		Band:               cfg.TriggerHysteresis,
		ConsumptionEnabled: cfg.EnableConsumptionTracking,
		LitresPerTick:      cfg.LitresPerTick,
		Indicator:          indicator,
		Metrics:            rec,
	}, st, publisher, log)
	counter.Restore()
	counter.PublishState()

	temperature := meter.NewTemperature(meter.TemperatureConfig{
		Scale:  cfg.TempScale,
		Offset: cfg.TempOffset,
		Alpha:  cfg.EwmaAlpha,
		Delta:  cfg.TempDelta,
	}, publisher, rec, log)

	var magnetometer *meter.Magnetometer
	if cfg.EnableDebugDevice {
		magnetometer = meter.NewMagnetometer(publisher, log)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), cfg.StatusConfig())
	syncTracker(tracker, counter, publisher)
	if err := temperature.Poll(source); err == nil {
		if v, ok := temperature.Value(); ok {
			tracker.SetTemperature(v)
		}
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTPAddr).Info("http status server listening")
	}

	log.WithFields(logrus.Fields{
		"poll":        cfg.PollInterval,
		"temperature": cfg.TemperatureInterval,
		"trigger":     cfg.TriggerLevel,
		"band":        cfg.TriggerHysteresis,
		"consumption": cfg.EnableConsumptionTracking,
		"store":       cfg.StoreKind,
		"broker":      cfg.Broker,
		"heartbeat":   cfg.HeartbeatInterval,
	}).Info("started")

	pollTicker := time.NewTicker(cfg.PollInterval)
	defer pollTicker.Stop()
	tempTicker := time.NewTicker(cfg.TemperatureInterval)
	defer tempTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	loopErr := runLoop(loopDeps{
		source:       source,
		counter:      counter,
		temperature:  temperature,
		magnetometer: magnetometer,
		publisher:    publisher,
		mqttStatus:   publisher,
		tracker:      tracker,
		heartbeat:    cfg.HeartbeatInterval,
		log:          log,
	}, time.Now, pollTicker.C, tempTicker.C, publisher.Commands(), sigCh)

	// Final save before the store closes.
	if err := counter.Close(); err != nil {
		log.WithError(err).Error("final save failed")
	} else {
		log.WithField("counter", counter.State().Counter).Info("counter record saved")
	}
	return loopErr
}

func openSource(cfg *config.Config) (sensor.Source, error) {
	switch cfg.SensorKind {
	case config.SensorSimulated:
		src := sensor.NewSimulatedSource()
		src.Center = cfg.TriggerLevel
		if swing := cfg.TriggerHysteresis * 2; src.Amplitude < swing {
			src.Amplitude = swing
		}
		return src, nil
	default:
		return sensor.NewQMC5883L(cfg.BusNumber, uint16(cfg.SensorAddress))
	}
}

func openIndicator(cfg *config.Config) (gpio.Indicator, error) {
	if cfg.IndicatorPin < 0 {
		return gpio.Nop{}, nil
	}
	return gpio.NewRealIndicator(cfg.IndicatorChip, cfg.IndicatorPin)
}

func printReading(w io.Writer, source sensor.Source, cfg *config.Config) error {
	r, err := source.Read()
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	fmt.Fprintln(w, formatReading(r, cfg.TempScale, cfg.TempOffset))
	return nil
}

func formatReading(r sensor.Reading, scale, offset float64) string {
	return fmt.Sprintf("Bx: %d, By: %d, Bz: %d, Temperature: %.1f°C (raw %d)",
		r.X, r.Y, r.Z, scale*float64(r.TemperatureRaw)+offset, r.TemperatureRaw)
}

// loopDeps holds everything the run loop drives. magnetometer and tracker
// may be nil.
type loopDeps struct {
	source       sensor.Source
	counter      *meter.GasCounter
	temperature  *meter.Temperature
	magnetometer *meter.Magnetometer
	publisher    mqtt.Publisher
	mqttStatus   mqtt.ConnectionStatus
	tracker      *status.Tracker
	heartbeat    time.Duration
	log          logrus.FieldLogger
}

func runLoop(d loopDeps, now func() time.Time, tick, tempTick <-chan time.Time, commands <-chan []byte, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(now())

	for {
		select {
		case s := <-sig:
			signalName := signalString(s)
			d.log.WithField("signal", signalName).Info("shutting down")
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     mqtt.EventShutdown,
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				syncTracker(d.tracker, d.counter, d.mqttStatus)
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, mqtt.EventShutdown, signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				d.log.WithError(err).Warn("failed to publish shutdown event")
			} else {
				d.log.Info("published shutdown event")
			}
			return nil

		case payload, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if err := d.counter.SetConsumption(payload); err == nil {
				hb.RecordCommand()
			}
			if d.tracker != nil {
				syncTracker(d.tracker, d.counter, d.mqttStatus)
			}

		case <-tempTick:
			if err := d.temperature.Poll(d.source); err != nil {
				continue
			}
			if v, ok := d.temperature.Value(); ok && d.tracker != nil {
				d.tracker.SetTemperature(v)
			}

		case <-tick:
			t := now()
			res, err := d.counter.Poll(d.source)
			if err == nil {
				if res.Transition.Tick {
					hb.RecordTick()
				}
				if d.magnetometer != nil {
					d.magnetometer.Publish(res.Reading)
				}
				if d.tracker != nil {
					d.tracker.SetLastBz(res.Reading.Z)
				}
			}

			if d.tracker != nil {
				syncTracker(d.tracker, d.counter, d.mqttStatus)
			}

			// Check for heartbeat
			if hbData := hb.Check(t, d.heartbeat); hbData != nil {
				d.log.WithFields(logrus.Fields{
					"uptime":   hbData.Uptime,
					"ticks":    hbData.Ticks,
					"commands": hbData.Commands,
				}).Info("heartbeat")

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     mqtt.EventHeartbeat,
				}
				if d.tracker != nil {
					hbEvent.RawPayload = status.FormatHeartbeat(d.tracker.Snapshot(), *hbData)
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					d.log.WithError(err).Warn("heartbeat publish error")
				}
			}
		}
	}
}

// syncTracker copies the counter state and broker connectivity into the
// tracker read by the status server.
func syncTracker(tracker *status.Tracker, counter *meter.GasCounter, conn mqtt.ConnectionStatus) {
	s := counter.State()
	tracker.Update(s.Counter, s.Trigger, s.ConsumptionM3)
	if conn != nil {
		tracker.SetMQTTConnected(conn.IsConnected())
	}
}

func signalString(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
