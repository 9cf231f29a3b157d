package cyphal

// Kind distinguishes the three transfer shapes a Cyphal/CAN frame can
// carry.
type Kind uint8

const (
	KindMessage Kind = iota
	KindRequest
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Header is the common face of MessageHeader, RequestHeader and
// ResponseHeader: the three concrete shapes of canadensis's Header<I>
// union. A type switch on the concrete type (or Kind()) recovers the
// specific fields.
type Header interface {
	Kind() Kind
	Timestamp() Timestamp
	TransferID() TransferId
	Priority() Priority
	// PortID returns the subject or service ID this header addresses,
	// as the PortId union used to index subscription tables.
	PortID() PortId
}

// MessageHeader is the header of a published message transfer. Source is
// absent for anonymous publications.
type MessageHeader struct {
	Ts         Timestamp
	TID        TransferId
	Prio       Priority
	Subject    SubjectId
	Source     *NodeId // nil for anonymous publications
}

func (h MessageHeader) Kind() Kind             { return KindMessage }
func (h MessageHeader) Timestamp() Timestamp   { return h.Ts }
func (h MessageHeader) TransferID() TransferId { return h.TID }
func (h MessageHeader) Priority() Priority     { return h.Prio }
func (h MessageHeader) PortID() PortId         { return PortFromSubject(h.Subject) }

// ServiceHeader holds the fields common to service requests and
// responses.
type ServiceHeader struct {
	Ts          Timestamp
	TID         TransferId
	Prio        Priority
	Service     ServiceId
	Source      NodeId
	Destination NodeId
}

// RequestHeader is the header of a service request transfer.
type RequestHeader struct{ ServiceHeader }

func (h RequestHeader) Kind() Kind             { return KindRequest }
func (h RequestHeader) Timestamp() Timestamp   { return h.Ts }
func (h RequestHeader) TransferID() TransferId { return h.TID }
func (h RequestHeader) Priority() Priority     { return h.Prio }
func (h RequestHeader) PortID() PortId         { return PortFromService(h.Service) }

// ResponseHeader is the header of a service response transfer.
type ResponseHeader struct{ ServiceHeader }

func (h ResponseHeader) Kind() Kind             { return KindResponse }
func (h ResponseHeader) Timestamp() Timestamp   { return h.Ts }
func (h ResponseHeader) TransferID() TransferId { return h.TID }
func (h ResponseHeader) Priority() Priority     { return h.Prio }
func (h ResponseHeader) PortID() PortId         { return PortFromService(h.Service) }

// Transfer is a complete, reassembled, application-level unit of
// communication: the output of Receiver.Accept.
type Transfer struct {
	Header  Header
	Payload []byte
}
