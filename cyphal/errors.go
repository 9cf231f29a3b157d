package cyphal

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is the only error that Receiver.Accept ever propagates to
// its caller. Every other fault below is absorbed and only surfaces through
// Receiver.ErrorCount.
var ErrOutOfMemory = errors.New("cyphal: out of memory")

// Internal fault classification. These never leave Receiver.Accept; they
// exist so tests and the optional debug logger can name what happened.
var (
	// ErrMalformedFrame covers a missing tail byte, a reserved-bit
	// violation in the CAN ID, or an anonymous transfer spanning more
	// than one frame.
	ErrMalformedFrame = errors.New("cyphal: malformed frame")
	// ErrBit23Set is a more specific ErrMalformedFrame: reserved bit 23
	// of the CAN ID was set. errors.Is(ErrBit23Set, ErrMalformedFrame)
	// holds, so callers that only care about the general fault still
	// classify it correctly.
	ErrBit23Set = fmt.Errorf("%w: reserved bit 23 set", ErrMalformedFrame)
	// ErrBit7Set is a more specific ErrMalformedFrame: reserved bit 7 of
	// a message CAN ID was set. Also matches errors.Is(..., ErrMalformedFrame).
	ErrBit7Set = fmt.Errorf("%w: reserved bit 7 set", ErrMalformedFrame)
	// ErrAnonymousMultiFrame means an anonymous publication tried to
	// span more than one frame, which the wire format forbids.
	// Also matches errors.Is(..., ErrMalformedFrame).
	ErrAnonymousMultiFrame = fmt.Errorf("%w: anonymous transfer is multi-frame", ErrMalformedFrame)

	// ErrProtocolViolation covers toggle mismatches and mid/end frames
	// that do not match any in-progress buildup.
	ErrProtocolViolation = errors.New("cyphal: protocol violation")
	// ErrToggleMismatch is a more specific ErrProtocolViolation, matched
	// by errors.Is(ErrToggleMismatch, ErrProtocolViolation).
	ErrToggleMismatch = fmt.Errorf("%w: toggle bit mismatch", ErrProtocolViolation)
	// ErrUnexpectedTransferID is a more specific ErrProtocolViolation: a
	// mid/end frame's transfer ID does not match the active buildup.
	// Also matches errors.Is(..., ErrProtocolViolation).
	ErrUnexpectedTransferID = fmt.Errorf("%w: unexpected transfer id", ErrProtocolViolation)

	// ErrCRCMismatch means a completed multi-frame transfer failed its
	// CRC-16/CCITT-FALSE check.
	ErrCRCMismatch = errors.New("cyphal: transfer CRC mismatch")

	// ErrPayloadTooLarge means the assembled payload exceeded the
	// subscription's payload_size_max.
	ErrPayloadTooLarge = errors.New("cyphal: payload exceeds payload_size_max")

	// ErrDuplicateTransfer means a transfer ID was rejected by the
	// deduplication window.
	ErrDuplicateTransfer = errors.New("cyphal: duplicate transfer id")
)

// ServiceSubscribeError is returned by SubscribeRequest/SubscribeResponse.
// It distinguishes "this receiver is anonymous and cannot handle services"
// from a propagated allocation failure, mirroring canadensis's
// ServiceSubscribeError enum.
type ServiceSubscribeError struct {
	// Anonymous is true when the receiver has no local node ID.
	Anonymous bool
	// Memory, if non-nil, is the underlying ErrOutOfMemory wrap.
	Memory error
}

func (e *ServiceSubscribeError) Error() string {
	if e.Anonymous {
		return "cyphal: anonymous receiver cannot subscribe to services"
	}
	return "cyphal: service subscribe: " + e.Memory.Error()
}

func (e *ServiceSubscribeError) Unwrap() error {
	return e.Memory
}

func errAnonymous() *ServiceSubscribeError {
	return &ServiceSubscribeError{Anonymous: true}
}

func errServiceMemory(err error) *ServiceSubscribeError {
	return &ServiceSubscribeError{Memory: err}
}
