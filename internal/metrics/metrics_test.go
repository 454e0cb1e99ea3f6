package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/gas-sensor/internal/logic"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm(reg)

	p.Tick(1)
	p.Tick(2)
	if got := testutil.ToFloat64(p.ticks); got != 2 {
		t.Fatalf("expected ticks 2, got %f", got)
	}
	if got := testutil.ToFloat64(p.counter); got != 2 {
		t.Fatalf("expected counter gauge 2, got %f", got)
	}

	p.SetCounter(65535)
	if got := testutil.ToFloat64(p.counter); got != 65535 {
		t.Fatalf("expected counter gauge 65535, got %f", got)
	}

	if got := testutil.ToFloat64(p.triggerOpen); got != 1 {
		t.Fatalf("expected trigger to start open, got %f", got)
	}
	p.SetTrigger(logic.StateClosed)
	if got := testutil.ToFloat64(p.triggerOpen); got != 0 {
		t.Fatalf("expected trigger closed gauge 0, got %f", got)
	}

	p.SetConsumption(1.25)
	if got := testutil.ToFloat64(p.consumption); got != 1.25 {
		t.Fatalf("expected consumption 1.25, got %f", got)
	}

	p.SetTemperature(21.5)
	if got := testutil.ToFloat64(p.temperature); got != 21.5 {
		t.Fatalf("expected temperature 21.5, got %f", got)
	}

	p.SensorReadError()
	if got := testutil.ToFloat64(p.readErrors); got != 1 {
		t.Fatalf("expected read errors 1, got %f", got)
	}

	p.StoreSaved(time.Millisecond, nil)
	p.StoreSaved(0, errors.New("disk full"))
	if got := testutil.ToFloat64(p.storeErrors); got != 1 {
		t.Fatalf("expected store errors 1, got %f", got)
	}
	if samples := testutil.CollectAndCount(p.saveDuration); samples != 1 {
		t.Fatalf("expected save histogram to record 1 sample, got %d", samples)
	}

	p.Command(CommandAccepted)
	p.Command(CommandRejected)
	p.Command(CommandRejected)
	if got := testutil.ToFloat64(p.commands.WithLabelValues(CommandRejected)); got != 2 {
		t.Fatalf("expected rejected commands 2, got %f", got)
	}
}

func TestPromRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm(reg)
	p.Command(CommandAccepted)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 9 {
		t.Errorf("expected 9 metric families, got %d", len(mfs))
	}
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.Tick(1)
	r.StoreSaved(0, errors.New("x"))
}
