package cyphal

import "errors"

// ErrWouldBlock is returned by FrameSource.Receive when no frame is
// currently available and the caller should try again later, rather than
// treat it as a driver fault.
var ErrWouldBlock = errors.New("cyphal: would block")

// FrameSource is the abstract boundary over a board's CAN controller
// driver (spec section 9, "Dynamic dispatch": the only pluggable boundary
// is the frame source, modeled as a capability interface parameterized at
// construction rather than a global registry). Receiver.Accept itself
// never touches a FrameSource; this interface exists for the pump loop
// that drives it, and for swapping in a SocketCAN, FlexCAN, or test double
// driver without changing the reception engine.
type FrameSource interface {
	// Receive returns the next available frame, or ErrWouldBlock if none
	// is ready yet.
	Receive() (Frame, error)
	// ApplyFilters installs an acceptance filter set on the controller, as
	// produced by Receiver.FrameFilters.
	ApplyFilters(filters []Filter) error
	// ApplyAcceptAll disables filtering, admitting every frame on the bus.
	ApplyAcceptAll() error
}
