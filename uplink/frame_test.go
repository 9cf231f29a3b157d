package uplink

import (
	"testing"

	"github.com/atsika/cyphalcan/cyphal"
)

func mustNode(t *testing.T, v uint8) cyphal.NodeId {
	t.Helper()
	id, err := cyphal.NewNodeId(v)
	if err != nil {
		t.Fatalf("NewNodeId(%d): %v", v, err)
	}
	return id
}

func mustSubjectPort(t *testing.T, v uint16) cyphal.PortId {
	t.Helper()
	s, err := cyphal.NewSubjectId(v)
	if err != nil {
		t.Fatalf("NewSubjectId(%d): %v", v, err)
	}
	return cyphal.PortFromSubject(s)
}

func TestRecordRoundTrip(t *testing.T) {
	node := mustNode(t, 7)
	records := []Record{
		{
			Timestamp:  1234,
			Kind:       cyphal.KindMessage,
			Port:       mustSubjectPort(t, 100),
			Source:     &node,
			TransferID: 5,
			Payload:    []byte{0xde, 0xad, 0xbe, 0xef},
		},
		{
			Timestamp:  5678,
			Kind:       cyphal.KindMessage,
			Port:       mustSubjectPort(t, 200),
			Source:     nil,
			TransferID: 0,
			Payload:    nil,
		},
	}

	encoded := encodeRecords(records)
	decoded, err := decodeRecords(encoded)
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}
	if len(decoded) != len(records) {
		t.Fatalf("got %d records, want %d", len(decoded), len(records))
	}

	for i, want := range records {
		got := decoded[i]
		if got.Timestamp != want.Timestamp || got.Kind != want.Kind || got.Port != want.Port || got.TransferID != want.TransferID {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
		if (got.Source == nil) != (want.Source == nil) {
			t.Errorf("record %d: source presence mismatch", i)
		}
		if got.Source != nil && want.Source != nil && *got.Source != *want.Source {
			t.Errorf("record %d: source = %v, want %v", i, *got.Source, *want.Source)
		}
		if len(got.Payload) != len(want.Payload) {
			t.Errorf("record %d: payload length = %d, want %d", i, len(got.Payload), len(want.Payload))
		}
		for j := range got.Payload {
			if got.Payload[j] != want.Payload[j] {
				t.Errorf("record %d: payload[%d] = %x, want %x", i, j, got.Payload[j], want.Payload[j])
			}
		}
	}
}

func TestDecodeRecordsTruncated(t *testing.T) {
	if _, err := decodeRecords([]byte{0x00}); err == nil {
		t.Fatal("expected error decoding a truncated frame header")
	}
}

func TestDecodeRecordsSkipsUnknownType(t *testing.T) {
	// A frame with a type byte other than recordFrameType should be
	// skipped rather than rejected, the same tolerance the teacher's
	// frame reader gives to unrecognized message types.
	body := []byte{0xAA, 0xBB}
	var raw []byte
	raw = append(raw, 0x00, 0x02, 0xFF)
	raw = append(raw, body...)

	out, err := decodeRecords(raw)
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected unknown-type frame to be skipped, got %d records", len(out))
	}
}
