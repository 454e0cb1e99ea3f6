package logic

// Trigger is a comparator with hysteresis over the magnetometer Bz axis.
//
// Two thresholds surround the centre: lower = center - band and
// upper = center + band. Falling to or below lower closes the trigger and
// counts one dial rotation; rising to or above upper reopens it. Samples
// inside the dead band never change the level.
type Trigger struct {
	center int
	band   int
	state  State
}

// NewTrigger creates an OPEN trigger. A negative band is treated as zero.
func NewTrigger(center, band int) *Trigger {
	if band < 0 {
		band = 0
	}
	return &Trigger{center: center, band: band, state: StateOpen}
}

// Update feeds one sample and reports the transition it caused, if any.
func (t *Trigger) Update(sample int) (Transition, bool) {
	switch t.state {
	case StateOpen:
		if sample <= t.Lower() {
			t.state = StateClosed
			return Transition{From: StateOpen, To: StateClosed, Tick: true}, true
		}
	case StateClosed:
		if sample >= t.Upper() {
			t.state = StateOpen
			return Transition{From: StateClosed, To: StateOpen}, true
		}
	}
	return Transition{}, false
}

// State returns the current logic level.
func (t *Trigger) State() State {
	return t.state
}

// Restore forces the level, e.g. from persisted state. Unknown values are ignored.
func (t *Trigger) Restore(s State) {
	if s == StateOpen || s == StateClosed {
		t.state = s
	}
}

// Upper returns the reopening threshold.
func (t *Trigger) Upper() int {
	return t.center + t.band
}

// Lower returns the closing (counting) threshold.
func (t *Trigger) Lower() int {
	return t.center - t.band
}
