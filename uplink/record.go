package uplink

import "github.com/atsika/cyphalcan/cyphal"

// Record is the opaque, archived shape of one completed transfer: header
// fields plus raw payload bytes. A Recorder never inspects payload
// content — DSDL decoding stays firmly out of scope, per spec.md's
// Non-goals.
type Record struct {
	Timestamp  cyphal.Timestamp
	Kind       cyphal.Kind
	Port       cyphal.PortId
	Source     *cyphal.NodeId
	TransferID cyphal.TransferId
	Payload    []byte
}

// RecordFromTransfer extracts the archived fields from a completed
// Transfer, regardless of which of the three header shapes produced it.
func RecordFromTransfer(tr *cyphal.Transfer) Record {
	h := tr.Header
	rec := Record{
		Timestamp:  h.Timestamp(),
		Kind:       h.Kind(),
		Port:       h.PortID(),
		TransferID: h.TransferID(),
		Payload:    append([]byte(nil), tr.Payload...),
	}
	switch hh := h.(type) {
	case cyphal.MessageHeader:
		rec.Source = hh.Source
	case cyphal.RequestHeader:
		src := hh.Source
		rec.Source = &src
	case cyphal.ResponseHeader:
		src := hh.Source
		rec.Source = &src
	}
	return rec
}
