package logic

// TickCounter counts dial rotations. It is 16 bits wide and wraps to zero
// after 65535, matching what the meter's own display would do.
type TickCounter struct {
	value uint16
}

// NewTickCounter returns a counter starting at v. Values outside the
// 16-bit range are reduced modulo 65536, so -1 becomes 65535. Persisted
// records are validated before they get here.
func NewTickCounter(v int) TickCounter {
	return TickCounter{value: uint16(v)}
}

// Inc adds one tick and returns the new value.
func (c *TickCounter) Inc() int {
	c.value++
	return int(c.value)
}

// Value returns the current count.
func (c TickCounter) Value() int {
	return int(c.value)
}
