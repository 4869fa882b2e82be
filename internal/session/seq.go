package session

// lossThreshold separates forward gaps (lost frames) from backward jumps
// (reordering or a device restart), which are not counted.
const lossThreshold = 1 << 15

// SeqTracker estimates lost capture events from the device's 16-bit
// sequence counter. It is not safe for concurrent use.
type SeqTracker struct {
	expected uint16
	armed    bool
}

// Observe records seq and returns the number of events missing since the
// previous one. The first event after construction or Reset returns 0.
func (t *SeqTracker) Observe(seq uint16) uint64 {
	var gap uint16
	if t.armed {
		gap = seq - t.expected
		if gap >= lossThreshold {
			gap = 0
		}
	}
	t.expected = seq + 1
	t.armed = true
	return uint64(gap)
}

// Reset forgets the expected sequence number.
func (t *SeqTracker) Reset() {
	t.expected = 0
	t.armed = false
}
