package uplink

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/flynn/noise"
)

// sealOverhead is the encryption overhead on a sealed chunk: 4 bytes
// length prefix + 16 bytes AES-GCM tag.
const sealOverhead = 4 + 16

var defaultCipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256)

var (
	// ErrNoiseInitFailed means the Noise handshake state could not be
	// constructed.
	ErrNoiseInitFailed = errors.New("uplink: noise handshake initialization failed")
	// ErrHandshakeIncomplete means newArchiveCipher's one-shot handshake
	// ended without yielding both cipher states.
	ErrHandshakeIncomplete = errors.New("uplink: noise handshake not complete")
)

// archiveCipher is a one-shot Noise session used to encrypt archived
// batches before they leave the gateway: every Recorder generates a
// fresh ephemeral keypair per run and completes a local NN handshake
// with itself split into an initiator/responder pair, exactly the way
// the teacher's Noise type is driven from both ends of a real
// connection — collapsed here into a single process since the "peer" is
// the blob container, not a live socket.
type archiveCipher struct {
	send *noise.CipherState
	recv *noise.CipherState
}

// newArchiveCipher completes a local Noise_NN handshake and returns a
// cipher ready to seal archive batches.
func newArchiveCipher() (*archiveCipher, error) {
	initiator, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: defaultCipherSuite,
		Pattern:     noise.HandshakeNN,
		Initiator:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoiseInitFailed, err)
	}
	responder, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: defaultCipherSuite,
		Pattern:     noise.HandshakeNN,
		Initiator:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoiseInitFailed, err)
	}

	msg1, _, _, err := initiator.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoiseInitFailed, err)
	}
	if _, _, _, err := responder.ReadMessage(nil, msg1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoiseInitFailed, err)
	}
	msg2, csR1, csR2, err := responder.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoiseInitFailed, err)
	}
	_, csI1, csI2, err := initiator.ReadMessage(nil, msg2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoiseInitFailed, err)
	}
	if csI1 == nil || csI2 == nil || csR1 == nil || csR2 == nil {
		return nil, ErrHandshakeIncomplete
	}

	// cs1 is the initiator-to-responder direction: csI1 and csR1 are
	// independent CipherState values over the same derived key, one per
	// side, each tracking its own nonce counter from zero. Sealing with
	// csI1 and keeping csR1 as the matching recv key lets Open correctly
	// invert Seal even though nothing in this process plays the
	// responder role for real traffic.
	return &archiveCipher{send: csI1, recv: csR1}, nil
}

// Seal encrypts plaintext and prepends a 4-byte big-endian length, the
// same envelope the teacher's Noise.SealData uses.
func (c *archiveCipher) Seal(plaintext []byte) ([]byte, error) {
	ciphertext, err := c.send.Encrypt(nil, nil, plaintext)
	if err != nil {
		return nil, fmt.Errorf("uplink: seal archive: %w", err)
	}
	out := make([]byte, 4+len(ciphertext))
	binary.BigEndian.PutUint32(out[:4], uint32(len(ciphertext)))
	copy(out[4:], ciphertext)
	return out, nil
}

// Open decrypts a single sealed chunk produced by Seal.
func (c *archiveCipher) Open(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("uplink: sealed archive too short")
	}
	length := binary.BigEndian.Uint32(data[:4])
	if len(data) < 4+int(length) {
		return nil, fmt.Errorf("uplink: sealed archive truncated")
	}
	return c.recv.Decrypt(nil, nil, data[4:4+length])
}
