package cyphal

// TailByte decodes the last payload byte of every Cyphal/CAN frame:
//
//	bit 7: start   bit 6: end   bit 5: toggle   bits 4..0: transfer-id
type TailByte struct {
	Start      bool
	End        bool
	Toggle     bool
	TransferID TransferId
}

// ParseTailByte decodes a raw tail byte.
func ParseTailByte(b byte) TailByte {
	return TailByte{
		Start:      b&0x80 != 0,
		End:        b&0x40 != 0,
		Toggle:     b&0x20 != 0,
		TransferID: transferIdFromBits(b & 0x1f),
	}
}

// SingleFrame reports whether this tail byte marks a complete transfer
// carried in exactly one frame: start and end both set. A single-frame
// tail byte must also have toggle set to 1; callers that need to enforce
// that invariant check it themselves (see Subscription.accept), since a
// tail byte that fails it is just malformed, not impossible to parse.
func (t TailByte) SingleFrame() bool {
	return t.Start && t.End
}

// Encode packs the tail byte fields back into a single byte.
func (t TailByte) Encode() byte {
	var b byte
	if t.Start {
		b |= 0x80
	}
	if t.End {
		b |= 0x40
	}
	if t.Toggle {
		b |= 0x20
	}
	b |= byte(t.TransferID) & 0x1f
	return b
}
