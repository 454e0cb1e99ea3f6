package logic

import "time"

// Heartbeat decides when a periodic liveness event is due and carries the
// running totals reported with it.
type Heartbeat struct {
	startTime time.Time
	last      time.Time
	ticks     int
	commands  int
}

// NewHeartbeat creates a heartbeat clock. The startTime is used for
// calculating uptime in heartbeat events.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{startTime: startTime, last: startTime}
}

// RecordTick counts a tick seen since startup.
func (h *Heartbeat) RecordTick() {
	h.ticks++
}

// RecordCommand counts an accepted command since startup.
func (h *Heartbeat) RecordCommand() {
	h.commands++
}

// Check returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not
// elapsed, or if interval is <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(h.last) < interval {
		return nil
	}
	h.last = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
		Ticks:     h.ticks,
		Commands:  h.commands,
	}
}
