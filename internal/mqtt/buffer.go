package mqtt

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf      []bufferedMsg
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]bufferedMsg, capacity),
		capacity: capacity,
	}
}

// push appends msg, overwriting the oldest entry when full. It reports true
// the first time a message is dropped after a drain so the caller can log
// once per outage.
func (r *ringBuffer) push(msg bufferedMsg) (firstDrop bool) {
	if r.count == r.capacity {
		firstDrop = !r.overflow
		r.overflow = true
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		return firstDrop
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
	return false
}

// pushRetained keeps at most one retained message per topic: an older
// retained message on the same topic is superseded rather than replayed.
func (r *ringBuffer) pushRetained(msg bufferedMsg) (firstDrop bool) {
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		idx := (start + i) % r.capacity
		if r.buf[idx].retained && r.buf[idx].topic == msg.topic {
			r.remove(i)
			break
		}
	}
	return r.push(msg)
}

// remove deletes the i-th oldest element, preserving order.
func (r *ringBuffer) remove(i int) {
	start := (r.head - r.count + r.capacity) % r.capacity
	for j := i; j < r.count-1; j++ {
		r.buf[(start+j)%r.capacity] = r.buf[(start+j+1)%r.capacity]
	}
	r.head = (r.head - 1 + r.capacity) % r.capacity
	r.buf[r.head] = bufferedMsg{}
	r.count--
}

func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	result := make([]bufferedMsg, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
