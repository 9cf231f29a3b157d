package cyphal

import (
	"bytes"
	"testing"
)

func mustNodeId(t *testing.T, v uint8) NodeId {
	t.Helper()
	n, err := NewNodeId(v)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func mustSubjectId(t *testing.T, v uint16) SubjectId {
	t.Helper()
	s, err := NewSubjectId(v)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustServiceId(t *testing.T, v uint16) ServiceId {
	t.Helper()
	s, err := NewServiceId(v)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// buildMessageFrame assembles a Frame for a published message from a named
// source, with the given tail byte and pre-tail payload.
func buildMessageFrame(t *testing.T, ts Timestamp, prio Priority, subject SubjectId, source NodeId, tail TailByte, payload []byte) Frame {
	t.Helper()
	id := EncodeMessageCanId(prio, subject, &source, 0)
	data := append(append([]byte{}, payload...), tail.Encode())
	return Frame{Timestamp: ts, ID: id, Data: data}
}

// transferWithCRC appends the CRC-16/CCITT-FALSE of payload, big-endian, as
// the final two bytes a correct sender would have included.
func transferWithCRC(payload []byte) []byte {
	crc := newCRC16().update(payload).value()
	return append(append([]byte{}, payload...), byte(crc>>8), byte(crc))
}

// S1: single-frame heartbeat.
func TestS1SingleFrameHeartbeat(t *testing.T) {
	r := NewAnonymous(MtuCanClassic)
	subject := mustSubjectId(t, 7509)
	if err := r.SubscribeMessage(subject, WithPayloadSizeMax(7), WithTransferIDTimeout(0)); err != nil {
		t.Fatal(err)
	}

	id, err := NewCanId(0x107d552a)
	if err != nil {
		t.Fatal(err)
	}
	frame := Frame{
		Timestamp: 42,
		ID:        id,
		Data:      []byte{0x00, 0x00, 0x00, 0x00, 0x04, 0x78, 0x68, 0xe0},
	}

	transfer, err := r.Accept(frame)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if transfer == nil {
		t.Fatal("expected a transfer")
	}
	mh, ok := transfer.Header.(MessageHeader)
	if !ok {
		t.Fatalf("expected MessageHeader, got %T", transfer.Header)
	}
	if mh.Source == nil || *mh.Source != 42 {
		t.Fatalf("expected source 42, got %v", mh.Source)
	}
	if mh.TransferID() != 0 {
		t.Fatalf("expected transfer id 0, got %v", mh.TransferID())
	}
	if mh.Priority() != PriorityNominal {
		t.Fatalf("expected Nominal priority, got %v", mh.Priority())
	}
	want := []byte{0x00, 0x00, 0x00, 0x00, 0x04, 0x78, 0x68}
	if !bytes.Equal(transfer.Payload, want) {
		t.Fatalf("payload mismatch: want %x got %x", want, transfer.Payload)
	}
	if r.TransferCount() != 1 || r.ErrorCount() != 0 {
		t.Fatalf("unexpected counters: transfers=%d errors=%d", r.TransferCount(), r.ErrorCount())
	}
}

// S2: service request addressed to a different node is silently dropped.
func TestS2RequestForOtherNode(t *testing.T) {
	local := mustNodeId(t, 43)
	r := New(local, MtuCanClassic)
	service := mustServiceId(t, 430)
	if err := r.SubscribeRequest(service, WithPayloadSizeMax(0), WithTransferIDTimeout(0)); err != nil {
		t.Fatal(err)
	}

	id, err := NewCanId(0x136b957b) // destination 42, not 43
	if err != nil {
		t.Fatal(err)
	}
	frame := Frame{Timestamp: 302, ID: id, Data: []byte{0xe1}}

	transfer, err := r.Accept(frame)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if transfer != nil {
		t.Fatalf("expected no transfer, got %+v", transfer)
	}
	if r.ErrorCount() != 0 {
		t.Fatalf("expected error count unchanged, got %d", r.ErrorCount())
	}
}

// S3: multi-frame... here single-frame, per spec's own framing ("First
// frame ... completes tid 21") — with a clock wrap between the first
// delivery and its would-be duplicates.
func TestS3ClockOverflowDedup(t *testing.T) {
	r := NewAnonymous(MtuCanClassic)
	subject := mustSubjectId(t, 100)
	if err := r.SubscribeMessage(subject, WithPayloadSizeMax(4), WithTransferIDTimeout(1000)); err != nil {
		t.Fatal(err)
	}
	source := mustNodeId(t, 10)

	tail := TailByte{Start: true, End: true, Toggle: true, TransferID: 21}
	first := buildMessageFrame(t, Timestamp(^uint32(0)-499), PriorityNominal, subject, source, tail, []byte{1, 2, 3, 4})
	transfer, err := r.Accept(first)
	if err != nil || transfer == nil {
		t.Fatalf("expected first frame to complete a transfer, err=%v transfer=%v", err, transfer)
	}

	dup := buildMessageFrame(t, 10, PriorityNominal, subject, source, tail, []byte{1, 2, 3, 4})
	transfer, err = r.Accept(dup)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if transfer != nil {
		t.Fatal("expected duplicate to be rejected within the dedup window")
	}
	if r.ErrorCount() != 1 {
		t.Fatalf("expected error count 1 after duplicate, got %d", r.ErrorCount())
	}

	fresh := buildMessageFrame(t, 505, PriorityNominal, subject, source, tail, []byte{1, 2, 3, 4})
	transfer, err = r.Accept(fresh)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if transfer == nil {
		t.Fatal("expected a new transfer once the dedup window elapsed")
	}
	if r.TransferCount() != 2 {
		t.Fatalf("expected 2 transfers, got %d", r.TransferCount())
	}
}

// S4: interleaved transfers, earlier loses.
func TestS4InterleavedEarlierLoses(t *testing.T) {
	r := NewAnonymous(MtuCanFD)
	subject := mustSubjectId(t, 200)
	if err := r.SubscribeMessage(subject, WithPayloadSizeMax(16), WithTransferIDTimeout(10_000)); err != nil {
		t.Fatal(err)
	}
	source := mustNodeId(t, 5)

	start := func(tid TransferId) TailByte { return TailByte{Start: true, Toggle: true, TransferID: tid} }
	end := func(tid TransferId) TailByte { return TailByte{End: true, Toggle: false, TransferID: tid} }

	f1 := buildMessageFrame(t, 13309, PriorityNominal, subject, source, start(1), []byte{0xAA, 0xAA})
	if tr, err := r.Accept(f1); err != nil || tr != nil {
		t.Fatalf("unexpected result from start(tid1): tr=%v err=%v", tr, err)
	}

	f2 := buildMessageFrame(t, 13311, PriorityNominal, subject, source, start(2), []byte{0xBB, 0xBB})
	if tr, err := r.Accept(f2); err != nil || tr != nil {
		t.Fatalf("unexpected result from start(tid2): tr=%v err=%v", tr, err)
	}

	f3 := buildMessageFrame(t, 13316, PriorityNominal, subject, source, end(2), transferWithCRC([]byte{0xBB, 0xBB})[2:])
	tr, err := r.Accept(f3)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if tr == nil {
		t.Fatal("expected tid 2 to complete")
	}
	if tr.Header.TransferID() != 2 {
		t.Fatalf("expected transfer id 2, got %v", tr.Header.TransferID())
	}

	f4 := buildMessageFrame(t, 13320, PriorityNominal, subject, source, end(1), []byte{0x00, 0x00})
	tr, err = r.Accept(f4)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if tr != nil {
		t.Fatal("expected tid 1's end frame to produce nothing: it was abandoned")
	}
}

// S5: CRC split across frames.
func TestS5CRCSplitAcrossFrames(t *testing.T) {
	r := NewAnonymous(MtuCanClassic)
	subject := mustSubjectId(t, 300)
	if err := r.SubscribeMessage(subject, WithPayloadSizeMax(4), WithTransferIDTimeout(1000)); err != nil {
		t.Fatal(err)
	}
	source := mustNodeId(t, 7)

	payload := []byte{0x11, 0x22, 0x33, 0x44}
	framed := transferWithCRC(payload) // 6 bytes: 4 data + 2 CRC

	start := TailByte{Start: true, Toggle: true, TransferID: 3}
	mid := TailByte{Toggle: false, TransferID: 3}
	endTail := TailByte{End: true, Toggle: true, TransferID: 3}

	f1 := buildMessageFrame(t, 1000, PriorityNominal, subject, source, start, framed[0:2])
	if _, err := r.Accept(f1); err != nil {
		t.Fatalf("Accept f1: %v", err)
	}
	// CRC byte 1 lands as the last byte of the middle frame, CRC byte 2 is
	// the sole payload byte of the final frame — the boundary straddles
	// the last two frames, per spec section 4.4.
	f2 := buildMessageFrame(t, 1001, PriorityNominal, subject, source, mid, framed[2:5])
	if _, err := r.Accept(f2); err != nil {
		t.Fatalf("Accept f2: %v", err)
	}
	f3 := buildMessageFrame(t, 1002, PriorityNominal, subject, source, endTail, framed[5:6])
	tr, err := r.Accept(f3)
	if err != nil {
		t.Fatalf("Accept f3: %v", err)
	}
	if tr == nil {
		t.Fatal("expected a completed transfer")
	}
	if !bytes.Equal(tr.Payload, payload) {
		t.Fatalf("payload mismatch: want %x got %x", payload, tr.Payload)
	}

	// Now corrupt the CRC and confirm the transfer is rejected.
	r2 := NewAnonymous(MtuCanClassic)
	if err := r2.SubscribeMessage(subject, WithPayloadSizeMax(4), WithTransferIDTimeout(1000)); err != nil {
		t.Fatal(err)
	}
	bad := append([]byte{}, framed...)
	bad[len(bad)-1] ^= 0xFF
	g1 := buildMessageFrame(t, 1000, PriorityNominal, subject, source, start, bad[0:2])
	r2.Accept(g1)
	g2 := buildMessageFrame(t, 1001, PriorityNominal, subject, source, mid, bad[2:5])
	r2.Accept(g2)
	g3 := buildMessageFrame(t, 1002, PriorityNominal, subject, source, endTail, bad[5:6])
	tr2, err := r2.Accept(g3)
	if err != nil {
		t.Fatalf("Accept g3: %v", err)
	}
	if tr2 != nil {
		t.Fatal("expected corrupted CRC to be rejected")
	}
	if r2.ErrorCount() != 1 {
		t.Fatalf("expected error count 1, got %d", r2.ErrorCount())
	}
}

// S6: multi-frame anonymous transfers are rejected.
func TestS6AnonymousMultiFrameRejected(t *testing.T) {
	r := NewAnonymous(MtuCanClassic)
	subject := mustSubjectId(t, 400)
	if err := r.SubscribeMessage(subject, WithPayloadSizeMax(16), WithTransferIDTimeout(1000)); err != nil {
		t.Fatal(err)
	}

	id := EncodeMessageCanId(PriorityNominal, subject, nil, 99)
	start := TailByte{Start: true, Toggle: true, TransferID: 1}
	end := TailByte{End: true, Toggle: false, TransferID: 1}

	f1 := Frame{Timestamp: 1, ID: id, Data: []byte{0x01, 0x02, start.Encode()}}
	if tr, err := r.Accept(f1); err != nil || tr != nil {
		t.Fatalf("expected no transfer, got tr=%v err=%v", tr, err)
	}
	f2 := Frame{Timestamp: 2, ID: id, Data: []byte{0x03, 0x04, end.Encode()}}
	if tr, err := r.Accept(f2); err != nil || tr != nil {
		t.Fatalf("expected no transfer, got tr=%v err=%v", tr, err)
	}

	if r.TransferCount() != 0 {
		t.Fatalf("expected 0 transfers, got %d", r.TransferCount())
	}
	if r.ErrorCount() != 2 {
		t.Fatalf("expected 2 errors (one per rejected frame), got %d", r.ErrorCount())
	}
}

func TestCountersMonotonic(t *testing.T) {
	r := NewAnonymous(MtuCanClassic)
	subject := mustSubjectId(t, 9)
	if err := r.SubscribeMessage(subject, WithPayloadSizeMax(8), WithTransferIDTimeout(100)); err != nil {
		t.Fatal(err)
	}
	source := mustNodeId(t, 1)

	prevTotal := uint64(0)
	for i := 0; i < 20; i++ {
		tail := TailByte{Start: true, End: true, Toggle: true, TransferID: TransferId(i % 32)}
		frame := buildMessageFrame(t, Timestamp(i*200), PriorityNominal, subject, source, tail, []byte{byte(i)})
		r.Accept(frame)
		total := r.TransferCount() + r.ErrorCount()
		if total < prevTotal {
			t.Fatalf("counters went backwards: %d -> %d", prevTotal, total)
		}
		prevTotal = total
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	r := NewAnonymous(MtuCanClassic)
	subject := mustSubjectId(t, 55)
	r.SubscribeMessage(subject, WithPayloadSizeMax(8))
	r.UnsubscribeMessage(subject)
	before := len(r.subsMessage)
	r.UnsubscribeMessage(subject)
	after := len(r.subsMessage)
	if before != after {
		t.Fatalf("unsubscribe is not idempotent: %d != %d", before, after)
	}
}

func TestTimeoutRecovery(t *testing.T) {
	r := NewAnonymous(MtuCanClassic)
	subject := mustSubjectId(t, 61)
	if err := r.SubscribeMessage(subject, WithPayloadSizeMax(8), WithTransferIDTimeout(100)); err != nil {
		t.Fatal(err)
	}
	source := mustNodeId(t, 2)

	start := TailByte{Start: true, Toggle: true, TransferID: 4}
	f1 := buildMessageFrame(t, 0, PriorityNominal, subject, source, start, []byte{1, 2})
	if tr, err := r.Accept(f1); err != nil || tr != nil {
		t.Fatalf("unexpected: tr=%v err=%v", tr, err)
	}

	// Let the buildup time out, then start a fresh transfer from the same
	// source; it must be accepted.
	newStart := TailByte{Start: true, Toggle: true, TransferID: 5}
	f2 := buildMessageFrame(t, 500, PriorityNominal, subject, source, newStart, []byte{3, 4})
	if tr, err := r.Accept(f2); err != nil || tr != nil {
		t.Fatalf("unexpected: tr=%v err=%v", tr, err)
	}
	endTail := TailByte{End: true, Toggle: false, TransferID: 5}
	payload := transferWithCRC([]byte{3, 4})[2:]
	f3 := buildMessageFrame(t, 501, PriorityNominal, subject, source, endTail, payload)
	tr, err := r.Accept(f3)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if tr == nil {
		t.Fatal("expected the post-timeout transfer to complete")
	}
}
