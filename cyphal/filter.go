package cyphal

// Filter is a hardware acceptance filter over the 29-bit CAN identifier:
// a frame is admitted iff (frame.ID & Mask) == Match.
type Filter struct {
	Mask  uint32
	Match uint32
}

// subjectFilter returns the filter that matches message transfers on one
// subject, from any source, at any priority, anonymous or not (spec
// section 4.7). Bits 21 and 22 are outside the mask, so they are cleared
// from Match to keep the (ID & Mask) == Match contract satisfiable.
func subjectFilter(subject SubjectId) Filter {
	match := uint32(0b0_0000_0110_0000_0000_0000_0000_0000) | uint32(subject)<<8
	mask := uint32(0b0_0010_1001_1111_1111_1111_1000_0000)
	return Filter{Mask: mask, Match: match & mask}
}

// requestFilter returns the filter that matches service request transfers
// for one service addressed to the given local node, from any source, at
// any priority.
func requestFilter(service ServiceId, local NodeId) Filter {
	dynamic := uint32(service)<<14 | uint32(local)<<7
	match := uint32(0b0_0011_0000_0000_0000_0000_0000_0000) | dynamic
	mask := uint32(0b0_0011_1111_1111_1111_1111_1000_0000)
	return Filter{Mask: mask, Match: match}
}

// responseFilter returns the filter that matches service response
// transfers for one service addressed to the given local node.
func responseFilter(service ServiceId, local NodeId) Filter {
	dynamic := uint32(service)<<14 | uint32(local)<<7
	match := uint32(0b0_0010_0000_0000_0000_0000_0000_0000) | dynamic
	mask := uint32(0b0_0011_1111_1111_1111_1111_1000_0000)
	return Filter{Mask: mask, Match: match}
}

// Admits reports whether id would be accepted by this filter.
func (f Filter) Admits(id CanId) bool {
	return uint32(id)&f.Mask == f.Match
}
