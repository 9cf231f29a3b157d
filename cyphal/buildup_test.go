package cyphal

import (
	"bytes"
	"errors"
	"testing"
)

func TestBuildupAppendAndFinish(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	framed := transferWithCRC(payload)

	b := newBuildup(3, 100)
	if err := b.append(framed[:2], 3); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := b.append(framed[2:], 3); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	got, err := b.finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: want %x got %x", payload, got)
	}
}

func TestBuildupRejectsPayloadOverflow(t *testing.T) {
	b := newBuildup(1, 0)
	err := b.append([]byte{1, 2, 3, 4, 5}, 2) // max 2 + crcSize(2) = 4, this is 5
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestBuildupRejectsCorruptCRC(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	framed := transferWithCRC(payload)
	framed[len(framed)-1] ^= 0xFF

	b := newBuildup(1, 0)
	if err := b.append(framed, 4); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := b.finish(); !errors.Is(err, ErrCRCMismatch) {
		t.Fatalf("expected ErrCRCMismatch, got %v", err)
	}
}

func TestBuildupTogglesAlternate(t *testing.T) {
	b := newBuildup(1, 0)
	// The start frame's payload is appended by the caller exactly once,
	// immediately flipping expectToggle from true to false: the next
	// frame in the 1,0,1,0,... alternation must carry toggle 0.
	if !b.expectToggle {
		t.Fatal("a fresh buildup should expect toggle true until its start frame is appended")
	}
	b.append([]byte{0x01}, 64)
	if b.expectToggle {
		t.Fatal("expectToggle should flip to false after the start frame is appended")
	}
	b.append([]byte{0x02}, 64)
	if !b.expectToggle {
		t.Fatal("expectToggle should flip back to true after a middle frame")
	}
}
