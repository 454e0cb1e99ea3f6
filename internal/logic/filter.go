package logic

// Filter is an exponentially weighted moving average:
//
//	y = alpha*x + (1-alpha)*y_prev
//
// alpha = 1 disables smoothing; smaller values smooth harder. The first
// sample after construction or Reset seeds the filter unchanged.
type Filter struct {
	alpha  float64
	value  float64
	seeded bool
}

// NewFilter creates a filter. alpha is clamped into (0, 1]; a non-positive
// alpha would freeze the output at the first sample forever.
func NewFilter(alpha float64) *Filter {
	if !(alpha > 0 && alpha <= 1) {
		alpha = 1
	}
	return &Filter{alpha: alpha}
}

// Update feeds a raw sample and returns the smoothed value.
func (f *Filter) Update(x float64) float64 {
	if !f.seeded {
		f.value = x
		f.seeded = true
		return f.value
	}
	f.value += f.alpha * (x - f.value)
	return f.value
}

// Value returns the current smoothed value and whether the filter has been seeded.
func (f *Filter) Value() (float64, bool) {
	return f.value, f.seeded
}

// Reset clears the state so the next sample re-seeds the filter.
func (f *Filter) Reset() {
	f.value = 0
	f.seeded = false
}
