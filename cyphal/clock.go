package cyphal

// Timestamp is a monotonic clock reading, one tick per microsecond, stored
// in a 32-bit counter that wraps around roughly every 71.5 minutes. All
// arithmetic on Timestamp is modular: subtracting an earlier reading from a
// later one gives the correct elapsed duration even across a wrap, as long
// as the two readings are never more than half the counter period apart.
//
// This mirrors canadensis's Instant/Duration split (there generic over the
// platform's native tick width) collapsed to the concrete width this engine
// targets; a board with a narrower or wider free-running timer truncates or
// extends its timestamps into this type at the frame-source boundary.
type Timestamp uint32

// Duration is the modular difference between two Timestamp values, also in
// microsecond ticks.
type Duration uint32

// Since returns the wrap-safe elapsed duration from earlier to t.
//
// Because the underlying arithmetic is unsigned modular subtraction, this is
// always correct regardless of whether a wrap occurred between the two
// readings, provided the true elapsed time never exceeds about half the
// counter's period (~35.7 minutes at 1 tick/us). That is the same
// constraint canadensis's Instant::duration_since documents.
func (t Timestamp) Since(earlier Timestamp) Duration {
	return Duration(uint32(t) - uint32(earlier))
}

// Microseconds constructs a Duration from a plain microsecond count.
func Microseconds(us uint32) Duration {
	return Duration(us)
}
