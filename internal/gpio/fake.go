package gpio

// FakeIndicator is a test double that records line values.
type FakeIndicator struct {
	// Values contains every value passed to Set, in order.
	Values []bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeIndicator creates a FakeIndicator.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{}
}

// Set records the value.
func (f *FakeIndicator) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, on)
	return nil
}

// On reports the last value set, false if never set.
func (f *FakeIndicator) On() bool {
	return len(f.Values) > 0 && f.Values[len(f.Values)-1]
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.Closed = true
	return nil
}
