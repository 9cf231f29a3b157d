package cyphal

// maxSessionSlots is the hard ceiling on concurrent sessions within one
// subscription: NodeId only has 128 possible values, so a session table
// keyed by NodeId can never hold more than this regardless of backing
// storage (fixed array on a no-heap target, map on a hosted one).
const maxSessionSlots = 128

// Subscription is one active receive registration for a port: it owns a
// session table indexed by source node ID, a timeout, and a payload cap
// (spec section 4.5).
type Subscription struct {
	kind           Kind
	portID         PortId
	payloadSizeMax int
	timeout        Duration
	mtu            Mtu

	sessions map[NodeId]*session
}

// newSubscription creates a subscription with an empty session table.
func newSubscription(kind Kind, portID PortId, payloadSizeMax int, timeout Duration, mtu Mtu) *Subscription {
	return &Subscription{
		kind:           kind,
		portID:         portID,
		payloadSizeMax: payloadSizeMax,
		timeout:        timeout,
		mtu:            mtu,
		sessions:       make(map[NodeId]*session),
	}
}

// PortID returns the subject or service ID this subscription listens on.
func (s *Subscription) PortID() PortId { return s.portID }

// SessionCount returns the number of source nodes this subscription
// currently holds reassembly/dedup state for, for telemetry purposes.
func (s *Subscription) SessionCount() int { return len(s.sessions) }

// Timeout returns the transfer-id timeout configured for this
// subscription.
func (s *Subscription) Timeout() Duration { return s.timeout }

// sweepExpired destroys the buildup of every session whose first frame is
// older than the subscription's timeout, per spec section 4.6 step 1 /
// canadensis's clean_sessions_from_subscriptions. A session slot that goes
// idle with nothing left to remember is freed outright.
func (s *Subscription) sweepExpired(now Timestamp) {
	for node, sess := range s.sessions {
		if sess.build == nil {
			continue
		}
		if now.Since(sess.transferTimestamp()) > s.timeout {
			sess.expire()
		}
		if sess.idle() && !sess.haveLastTID {
			delete(s.sessions, node)
		}
	}
}

// accept routes a frame to the session for its source node (creating one
// on demand) and runs it through the session state machine. An anonymous
// message (header.Source == nil) has no stable identity to key a session
// by and, per spec, can only ever be a single frame, so it bypasses the
// session table entirely and is decoded and delivered directly.
func (s *Subscription) accept(ts Timestamp, source *NodeId, tail TailByte, payload []byte) (*Transfer, error) {
	if tail.SingleFrame() && len(payload) > s.payloadSizeMax {
		return nil, ErrPayloadTooLarge
	}
	if source == nil {
		if !tail.SingleFrame() || !tail.Toggle {
			return nil, ErrAnonymousMultiFrame
		}
		delivered := make([]byte, len(payload))
		copy(delivered, payload)
		return &Transfer{Payload: delivered}, nil
	}

	sess, ok := s.sessions[*source]
	if !ok {
		if len(s.sessions) >= maxSessionSlots {
			// Unreachable in practice: NodeId has exactly maxSessionSlots
			// possible values, so the map can never actually fill up more
			// than that. Kept as an explicit guard to document the
			// invariant rather than rely on it silently.
			return nil, ErrOutOfMemory
		}
		sess = newSession()
		s.sessions[*source] = sess
	}

	delivered, err := sess.accept(tail, payload, ts, s.payloadSizeMax, s.timeout)
	if err != nil {
		return nil, err
	}
	if delivered == nil {
		return nil, nil
	}
	return &Transfer{Payload: delivered}, nil
}
