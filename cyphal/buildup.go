package cyphal

// crcSize is the length, in bytes, of the transfer CRC appended to every
// multi-frame transfer before tail-byte segmentation.
const crcSize = 2

// buildup is the bounded byte vector assembling a single in-progress
// transfer's payload across frames, per spec section 4.4. It stores every
// payload byte received so far (tail bytes already stripped) including,
// once the end frame arrives, the two trailing CRC bytes.
//
// canadensis's buildup module keeps a genuinely incremental CRC register
// because its target has no heap guarantees and cannot grow a Vec freely.
// This implementation already retains the full byte buffer (the hosted
// hosted/default build used here allocates via a fallible-checked slice,
// not a fixed array - see DESIGN.md), so the CRC is instead recomputed
// once, over the stored bytes minus the trailing two, at end-of-transfer;
// this is equivalent in outcome and simpler to get right than threading a
// rolling register through every append.
type buildup struct {
	data         []byte
	transferID   TransferId
	expectToggle bool
	transferTS   Timestamp
}

// newBuildup starts a fresh buildup from a start-of-transfer frame.
func newBuildup(tid TransferId, ts Timestamp) *buildup {
	return &buildup{
		data:       make([]byte, 0, 64),
		transferID: tid,
		// The start frame's own toggle is always 1; append() flips this
		// after consuming it, so the first mid/end frame is expected to
		// carry toggle 0, per the 1,0,1,0,... alternation.
		expectToggle: true,
		transferTS:   ts,
	}
}

// append adds a frame's payload (tail byte already stripped) to the
// buildup and flips the expected toggle. It returns ErrPayloadTooLarge if
// the running size, including the 2-byte CRC budget, would exceed max.
func (b *buildup) append(payload []byte, max int) error {
	if len(b.data)+len(payload) > max+crcSize {
		return ErrPayloadTooLarge
	}
	b.data = append(b.data, payload...)
	b.expectToggle = !b.expectToggle
	return nil
}

// finish validates the transfer CRC and returns the delivered payload
// (the buildup minus its trailing 2-byte CRC) on success.
func (b *buildup) finish() ([]byte, error) {
	if len(b.data) < crcSize {
		return nil, ErrCRCMismatch
	}
	payload := b.data[:len(b.data)-crcSize]
	trailer := b.data[len(b.data)-crcSize:]
	got := newCRC16().update(payload).value()
	want := uint16(trailer[0])<<8 | uint16(trailer[1])
	if got != want {
		return nil, ErrCRCMismatch
	}
	return payload, nil
}
