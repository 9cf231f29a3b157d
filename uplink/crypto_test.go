package uplink

import "testing"

func TestArchiveCipherSealOpenRoundTrip(t *testing.T) {
	c, err := newArchiveCipher()
	if err != nil {
		t.Fatalf("newArchiveCipher: %v", err)
	}

	plaintext := []byte("a framed batch of archived transfer records")
	sealed, err := c.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(sealed) <= len(plaintext) {
		t.Fatalf("sealed output (%d bytes) should be longer than plaintext (%d bytes)", len(sealed), len(plaintext))
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(opened) != string(plaintext) {
		t.Fatalf("Open() = %q, want %q", opened, plaintext)
	}
}

func TestArchiveCipherOpenRejectsTruncated(t *testing.T) {
	c, err := newArchiveCipher()
	if err != nil {
		t.Fatalf("newArchiveCipher: %v", err)
	}
	if _, err := c.Open([]byte{0x00, 0x01}); err == nil {
		t.Fatal("expected an error opening a too-short sealed chunk")
	}
}
