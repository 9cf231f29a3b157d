package cyphal

import "testing"

// Known CRC-16/CCITT-FALSE test vectors (poly 0x1021, init 0xFFFF, no
// reflection, no final XOR), the same check value used across Cyphal's
// transport implementations.
func TestCRC16CCITTFalse(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", []byte{}, 0xFFFF},
		{"check string", []byte("123456789"), 0x29B1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := newCRC16().update(tc.data).value()
			if got != tc.want {
				t.Fatalf("crc(%q) = %#04x, want %#04x", tc.data, got, tc.want)
			}
		})
	}
}

func TestCRC16Incremental(t *testing.T) {
	whole := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02}
	oneShot := newCRC16().update(whole).value()

	split := newCRC16().update(whole[:2]).update(whole[2:4]).update(whole[4:]).value()
	if oneShot != split {
		t.Fatalf("splitting the input changed the result: %#04x vs %#04x", oneShot, split)
	}
}
