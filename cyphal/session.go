package cyphal

// session is the per-source-node reassembly state within a subscription,
// per spec section 4.3. A session conceptually sits in one of two states:
//
//   - Idle: no buildup active; last_transfer_id may still be remembered so
//     a late duplicate of a just-completed transfer can be rejected.
//   - Assembling: a buildup is in progress.
//
// The zero value is a valid freshly created Idle session.
type session struct {
	build *buildup

	haveLastTID bool
	lastTID     TransferId
	transferTS  Timestamp
}

// newSession returns an empty Idle session.
func newSession() *session {
	return &session{}
}

// transferTimestamp is the timestamp of the first frame of the current (if
// Assembling) or most recently completed/remembered (if Idle) transfer. The
// expiry sweep in Receiver compares against this.
func (s *session) transferTimestamp() Timestamp {
	if s.build != nil {
		return s.build.transferTS
	}
	return s.transferTS
}

// expire destroys an in-progress buildup, e.g. because the transfer-id
// timeout elapsed since its first frame. The session slot itself may be
// freed separately by the caller if nothing else needs remembering.
func (s *session) expire() {
	s.build = nil
}

// idle reports whether this session has no buildup in progress, and so is
// a candidate for slot reclamation once nothing needs remembering.
func (s *session) idle() bool {
	return s.build == nil
}

// dedupAccept implements the transfer-ID dedup/skip rule from spec section
// 4.3: a transfer with the given id is accepted iff no prior id is
// remembered, the dedup window has elapsed, or the id differs from the one
// remembered (the receiver does not enforce strict monotonicity).
func (s *session) dedupAccept(tid TransferId, now Timestamp, timeout Duration) bool {
	if !s.haveLastTID {
		return true
	}
	if now.Since(s.transferTS) > timeout {
		return true
	}
	return tid != s.lastTID
}

// accept runs one frame through the session state machine. payload is the
// frame's data with the tail byte already stripped. It returns the
// completed transfer payload (nil if the transfer isn't finished yet) and
// an error classifying anything that was dropped; a nil error with a nil
// payload means "frame consumed, nothing to deliver yet".
func (s *session) accept(tail TailByte, payload []byte, ts Timestamp, payloadMax int, timeout Duration) ([]byte, error) {
	if s.build == nil {
		return s.acceptIdle(tail, payload, ts, payloadMax, timeout)
	}
	return s.acceptAssembling(tail, payload, ts, payloadMax, timeout)
}

// acceptIdle handles a frame while no buildup is active (spec 4.3, Idle
// rows), and is reused verbatim when an Assembling session abandons its
// buildup and has to process the frame that caused the abandonment as if
// arriving fresh.
func (s *session) acceptIdle(tail TailByte, payload []byte, ts Timestamp, payloadMax int, timeout Duration) ([]byte, error) {
	switch {
	case tail.SingleFrame():
		if !tail.Toggle {
			return nil, ErrMalformedFrame
		}
		if !s.dedupAccept(tail.TransferID, ts, timeout) {
			return nil, ErrDuplicateTransfer
		}
		s.haveLastTID = true
		s.lastTID = tail.TransferID
		s.transferTS = ts
		delivered := make([]byte, len(payload))
		copy(delivered, payload)
		return delivered, nil

	case tail.Start:
		// Start of a multi-frame transfer: start && !end.
		if !tail.Toggle {
			return nil, ErrMalformedFrame
		}
		if !s.dedupAccept(tail.TransferID, ts, timeout) {
			return nil, ErrDuplicateTransfer
		}
		b := newBuildup(tail.TransferID, ts)
		if err := b.append(payload, payloadMax); err != nil {
			// A single oversized first frame: never becomes a buildup.
			return nil, err
		}
		s.build = b
		return nil, nil

	default:
		// Neither start nor single-frame: a stray mid/end frame with no
		// buildup to attach to.
		return nil, ErrProtocolViolation
	}
}

// acceptAssembling handles a frame while a buildup is active (spec 4.3,
// Assembling rows).
func (s *session) acceptAssembling(tail TailByte, payload []byte, ts Timestamp, payloadMax int, timeout Duration) ([]byte, error) {
	b := s.build

	if tail.Start {
		if tail.TransferID == b.transferID {
			// Same transfer id restarting: the sender lost its own
			// context and is retrying from the beginning.
			s.build = nil
			return s.acceptIdle(tail, payload, ts, payloadMax, timeout)
		}
		// A different transfer id is starting: the old buildup is
		// abandoned in favor of the newer one (spec 4.3 "Interleaving").
		s.build = nil
		return s.acceptIdle(tail, payload, ts, payloadMax, timeout)
	}

	if tail.TransferID != b.transferID {
		// Mid/end frame that doesn't belong to the active buildup.
		s.build = nil
		return nil, ErrUnexpectedTransferID
	}

	if tail.Toggle != b.expectToggle {
		// Drop the frame, keep the buildup intact.
		return nil, ErrToggleMismatch
	}

	if tail.End {
		if err := b.append(payload, payloadMax); err != nil {
			s.build = nil
			return nil, err
		}
		delivered, err := b.finish()
		s.build = nil
		if err != nil {
			return nil, err
		}
		s.haveLastTID = true
		s.lastTID = tail.TransferID
		s.transferTS = b.transferTS
		out := make([]byte, len(delivered))
		copy(out, delivered)
		return out, nil
	}

	// Middle frame.
	if err := b.append(payload, payloadMax); err != nil {
		s.build = nil
		return nil, err
	}
	return nil, nil
}
