package cyphal

import "testing"

func TestTailByteRoundTrip(t *testing.T) {
	cases := []TailByte{
		{Start: true, End: true, Toggle: true, TransferID: 0},
		{Start: true, End: false, Toggle: true, TransferID: 17},
		{Start: false, End: false, Toggle: false, TransferID: 31},
		{Start: false, End: true, Toggle: true, TransferID: 5},
	}
	for _, tc := range cases {
		b := tc.Encode()
		got := ParseTailByte(b)
		if got != tc {
			t.Fatalf("round trip mismatch: want %+v got %+v (byte %#02x)", tc, got, b)
		}
	}
}

func TestTailByteSingleFrame(t *testing.T) {
	if !(TailByte{Start: true, End: true}).SingleFrame() {
		t.Fatal("start+end should report single frame")
	}
	if (TailByte{Start: true}).SingleFrame() {
		t.Fatal("start alone is not single frame")
	}
	if (TailByte{End: true}).SingleFrame() {
		t.Fatal("end alone is not single frame")
	}
}

func TestTailByteEncodeMasksTransferID(t *testing.T) {
	tail := TailByte{TransferID: 200} // out-of-range input, encode must mask to 5 bits
	b := tail.Encode()
	if b&0x1f != 200&0x1f {
		t.Fatalf("expected masked transfer id, got %#02x", b)
	}
}
