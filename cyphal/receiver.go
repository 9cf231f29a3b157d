package cyphal

import "log/slog"

// Receiver is the top-level entry point of the reception engine: three
// subscription lists (message/request/response), anonymous-vs-addressed
// handling, frame sanity gating, counters, and filter projection (spec
// section 4.6). A Receiver is a plain value; it owns all of its
// subscriptions exclusively and holds no back-references, so multiple
// independent receivers on separate buses are always valid.
type Receiver struct {
	subsMessage  []*Subscription
	subsRequest  []*Subscription
	subsResponse []*Subscription

	localID *NodeId
	mtu     Mtu

	transferCount uint64
	errorCount    uint64

	log *slog.Logger
}

// New creates a Receiver with the given local node ID.
func New(local NodeId, mtu Mtu, opts ...ReceiverOption) *Receiver {
	return newReceiver(&local, mtu, opts)
}

// NewAnonymous creates a Receiver with no local node ID. An anonymous
// receiver cannot subscribe to or receive service requests/responses.
func NewAnonymous(mtu Mtu, opts ...ReceiverOption) *Receiver {
	return newReceiver(nil, mtu, opts)
}

func newReceiver(local *NodeId, mtu Mtu, opts []ReceiverOption) *Receiver {
	r := &Receiver{
		localID: local,
		mtu:     mtu,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetID updates the local node ID, e.g. once dynamic node ID allocation
// completes. Passing nil makes the receiver anonymous again.
func (r *Receiver) SetID(id *NodeId) {
	r.localID = id
}

// LocalID returns the receiver's local node ID, or nil if anonymous.
func (r *Receiver) LocalID() *NodeId {
	return r.localID
}

// SubscribeMessage registers a receive subscription for a subject.
func (r *Receiver) SubscribeMessage(subject SubjectId, opts ...SubscribeOption) error {
	return r.subscribe(KindMessage, PortFromSubject(subject), opts)
}

// UnsubscribeMessage removes a message subscription. Idempotent.
func (r *Receiver) UnsubscribeMessage(subject SubjectId) {
	r.unsubscribe(KindMessage, PortFromSubject(subject))
}

// SubscribeRequest registers a receive subscription for service requests.
// It fails if this receiver is anonymous.
func (r *Receiver) SubscribeRequest(service ServiceId, opts ...SubscribeOption) error {
	if r.localID == nil {
		return errAnonymous()
	}
	if err := r.subscribe(KindRequest, PortFromService(service), opts); err != nil {
		return errServiceMemory(err)
	}
	return nil
}

// UnsubscribeRequest removes a service-request subscription. Idempotent.
func (r *Receiver) UnsubscribeRequest(service ServiceId) {
	r.unsubscribe(KindRequest, PortFromService(service))
}

// SubscribeResponse registers a receive subscription for service
// responses. It fails if this receiver is anonymous.
func (r *Receiver) SubscribeResponse(service ServiceId, opts ...SubscribeOption) error {
	if r.localID == nil {
		return errAnonymous()
	}
	if err := r.subscribe(KindResponse, PortFromService(service), opts); err != nil {
		return errServiceMemory(err)
	}
	return nil
}

// UnsubscribeResponse removes a service-response subscription. Idempotent.
func (r *Receiver) UnsubscribeResponse(service ServiceId) {
	r.unsubscribe(KindResponse, PortFromService(service))
}

func (r *Receiver) subscribe(kind Kind, port PortId, opts []SubscribeOption) error {
	cfg := applySubscribeOptions(opts)
	sub := newSubscription(kind, port, cfg.payloadSizeMax, cfg.timeout, r.mtu)

	list := r.subscriptionsForKind(kind)
	for i, existing := range *list {
		if existing.PortID() == port {
			// In-place swap: a single slice element assignment cannot
			// partially fail, satisfying the "replacement cannot
			// partially fail" requirement of spec section 4.6 without
			// needing to reserve capacity up front the way the teacher's
			// remove-then-append does.
			(*list)[i] = sub
			return nil
		}
	}
	*list = append(*list, sub)
	return nil
}

func (r *Receiver) unsubscribe(kind Kind, port PortId) {
	list := r.subscriptionsForKind(kind)
	out := (*list)[:0]
	for _, sub := range *list {
		if sub.PortID() != port {
			out = append(out, sub)
		}
	}
	*list = out
}

func (r *Receiver) subscriptionsForKind(kind Kind) *[]*Subscription {
	switch kind {
	case KindMessage:
		return &r.subsMessage
	case KindRequest:
		return &r.subsRequest
	default:
		return &r.subsResponse
	}
}

// Accept handles one incoming CAN or CAN-FD frame. If the frame completes
// a transfer, it is returned. OutOfMemory is the only error this function
// ever returns; every other irregularity (malformed frame, duplicate,
// protocol violation, CRC mismatch, payload overflow) is absorbed and only
// visible through ErrorCount (spec section 4.6 / 7). Service traffic for
// another node and frames on an unsubscribed port are dropped without
// being counted.
func (r *Receiver) Accept(frame Frame) (*Transfer, error) {
	r.sweepExpiredSessions(frame.Timestamp)

	header, tail, ok := r.frameSanityCheck(frame)
	if !ok {
		r.incrementErrorCount()
		return nil, nil
	}

	var source *NodeId
	switch h := header.(type) {
	case MessageHeader:
		source = h.Source
	case RequestHeader:
		if r.localID == nil || h.Destination != *r.localID {
			// Not for us: routine bus traffic for another node, not an
			// error.
			return nil, nil
		}
		src := h.Source
		source = &src
	case ResponseHeader:
		if r.localID == nil || h.Destination != *r.localID {
			return nil, nil
		}
		src := h.Source
		source = &src
	}

	sub := r.findSubscription(header.Kind(), header.PortID())
	if sub == nil {
		// Not subscribed: silently drop.
		return nil, nil
	}

	payload := frame.Data[:len(frame.Data)-1]
	transfer, err := sub.accept(frame.Timestamp, source, tail, payload)
	if err != nil {
		if err == ErrOutOfMemory {
			return nil, err
		}
		r.log.Debug("frame rejected", "kind", header.Kind(), "port", header.PortID(), "reason", err)
		r.incrementErrorCount()
		return nil, nil
	}
	if transfer == nil {
		return nil, nil
	}
	transfer.Header = header
	r.incrementTransferCount()
	return transfer, nil
}

// frameSanityCheck runs the basic checks of spec section 4.2/4.6 step 2: a
// tail byte must be present, the CAN ID must parse without reserved-bit
// violations, and an anonymous message must be single-frame.
func (r *Receiver) frameSanityCheck(frame Frame) (Header, TailByte, bool) {
	if len(frame.Data) == 0 {
		return nil, TailByte{}, false
	}
	tail := ParseTailByte(frame.Data[len(frame.Data)-1])

	header, err := ParseCanId(frame.ID, frame.Timestamp, tail.TransferID)
	if err != nil {
		r.log.Debug("frame failed CAN ID sanity check", "error", err)
		return nil, TailByte{}, false
	}

	if mh, ok := header.(MessageHeader); ok && mh.Source == nil {
		if !(tail.SingleFrame() && tail.Toggle) {
			r.log.Debug("anonymous multi-frame transfer, ignoring")
			return nil, TailByte{}, false
		}
	}

	return header, tail, true
}

func (r *Receiver) findSubscription(kind Kind, port PortId) *Subscription {
	for _, sub := range r.subscriptionListForKind(kind) {
		if sub.PortID() == port {
			return sub
		}
	}
	return nil
}

func (r *Receiver) subscriptionListForKind(kind Kind) []*Subscription {
	switch kind {
	case KindMessage:
		return r.subsMessage
	case KindRequest:
		return r.subsRequest
	default:
		return r.subsResponse
	}
}

func (r *Receiver) sweepExpiredSessions(now Timestamp) {
	for _, sub := range r.subsMessage {
		sub.sweepExpired(now)
	}
	for _, sub := range r.subsRequest {
		sub.sweepExpired(now)
	}
	for _, sub := range r.subsResponse {
		sub.sweepExpired(now)
	}
}

// FrameFilters returns the minimal set of hardware acceptance filters
// admitting exactly the traffic this receiver is subscribed to (spec
// section 4.7). An anonymous receiver emits only message filters, since it
// cannot handle services.
func (r *Receiver) FrameFilters() ([]Filter, error) {
	total := len(r.subsMessage)
	if r.localID != nil {
		total += len(r.subsRequest) + len(r.subsResponse)
	}
	filters := make([]Filter, 0, total)

	for _, sub := range r.subsMessage {
		subject := SubjectId(sub.PortID())
		filters = append(filters, subjectFilter(subject))
	}
	if r.localID != nil {
		local := *r.localID
		for _, sub := range r.subsRequest {
			filters = append(filters, requestFilter(ServiceId(sub.PortID()), local))
		}
		for _, sub := range r.subsResponse {
			filters = append(filters, responseFilter(ServiceId(sub.PortID()), local))
		}
	}
	return filters, nil
}

// TransferCount returns the number of transfers successfully received.
func (r *Receiver) TransferCount() uint64 { return r.transferCount }

// ErrorCount returns the number of frames rejected as malformed, duplicate,
// out of protocol, CRC-failed or oversized. Service traffic for another
// node, frames on an unsubscribed port and OutOfMemory are not counted.
func (r *Receiver) ErrorCount() uint64 { return r.errorCount }

// SessionCount returns the total number of source-node sessions held open
// across every subscription, i.e. the current occupancy of the session
// tables spec section 4.5 bounds at 128 slots per subscription.
func (r *Receiver) SessionCount() int {
	total := 0
	for _, sub := range r.subsMessage {
		total += sub.SessionCount()
	}
	for _, sub := range r.subsRequest {
		total += sub.SessionCount()
	}
	for _, sub := range r.subsResponse {
		total += sub.SessionCount()
	}
	return total
}

func (r *Receiver) incrementTransferCount() { r.transferCount++ }
func (r *Receiver) incrementErrorCount()    { r.errorCount++ }
