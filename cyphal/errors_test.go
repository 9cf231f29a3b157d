package cyphal

import (
	"errors"
	"testing"
)

// A caller that only classifies on the general sentinel must still catch
// the specific ones.
func TestSentinelErrorsWrapGeneralFault(t *testing.T) {
	for _, err := range []error{ErrBit23Set, ErrBit7Set} {
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("errors.Is(%v, ErrMalformedFrame) = false, want true", err)
		}
	}
	for _, err := range []error{ErrToggleMismatch, ErrUnexpectedTransferID} {
		if !errors.Is(err, ErrProtocolViolation) {
			t.Errorf("errors.Is(%v, ErrProtocolViolation) = false, want true", err)
		}
	}
}
