// Package socketcan is a reference cyphal.FrameSource over Linux
// SocketCAN, grounded on samsamfire/gocanopen's pkg/can/socketcanv3: a
// raw AF_CAN socket bound to an interface, blocking reads with a short
// kernel-side timeout so ApplyFilters/ApplyAcceptAll changes take effect
// between reads without needing a separate control channel.
package socketcan

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/atsika/cyphalcan/cyphal"
)

// classicFrameSize is sizeof(struct can_frame): 4 bytes id + 1 dlc + 3
// pad/reserved + 8 data.
const classicFrameSize = 16

// fdFrameSize is sizeof(struct canfd_frame): 4 bytes id + 1 len + 1
// flags + 2 reserved + 64 data.
const fdFrameSize = 72

// canEFFFlag marks an extended (29-bit) identifier in the kernel's
// canid_t encoding; Cyphal/CAN only ever uses extended frames.
const canEFFFlag = 0x80000000

// Bus is a cyphal.FrameSource backed by a raw SocketCAN socket.
type Bus struct {
	fd      int
	ifindex int

	// epoch anchors cyphal.Timestamp (a free-running microsecond
	// counter) to this process's monotonic clock, since SocketCAN frames
	// carry no hardware timestamp by default in this minimal driver.
	epoch time.Time
}

// Open binds a raw CAN_RAW socket to the named interface (e.g. "can0").
// The interface must already be up; Open does not configure bitrate or
// bring the link up itself.
func Open(channel string) (*Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, fmt.Errorf("socketcan: %s: %w", channel, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socketcan: create socket: %w", err)
	}

	// CAN FD frames are wider than classic frames; accepting them
	// requires opting in explicitly.
	one := 1
	_ = unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, one)

	timeout := unix.Timeval{Usec: 100_000} // 100ms: see Receive's ErrWouldBlock contract
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &timeout); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: set read timeout: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: bind %s: %w", channel, err)
	}

	return &Bus{fd: fd, ifindex: iface.Index, epoch: time.Now()}, nil
}

// Close releases the underlying socket.
func (b *Bus) Close() error {
	return unix.Close(b.fd)
}

// Receive reads the next CAN or CAN-FD frame, or cyphal.ErrWouldBlock if
// the read timeout (set at Open) elapses with nothing available.
func (b *Bus) Receive() (cyphal.Frame, error) {
	buf := make([]byte, fdFrameSize)
	n, err := unix.Read(b.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return cyphal.Frame{}, cyphal.ErrWouldBlock
		}
		return cyphal.Frame{}, fmt.Errorf("socketcan: read: %w", err)
	}

	var length int
	switch n {
	case classicFrameSize:
		length = int(buf[4])
	case fdFrameSize:
		length = int(buf[4])
	default:
		return cyphal.Frame{}, fmt.Errorf("socketcan: unexpected frame size %d", n)
	}

	rawID := binary.LittleEndian.Uint32(buf[0:4])
	id, err := cyphal.NewCanId(rawID &^ canEFFFlag)
	if err != nil {
		return cyphal.Frame{}, fmt.Errorf("socketcan: %w", err)
	}

	data := make([]byte, length)
	copy(data, buf[8:8+length])

	return cyphal.Frame{
		Timestamp: b.timestamp(),
		ID:        id,
		Data:      data,
	}, nil
}

// timestamp returns the free-running microsecond counter cyphal.Frame
// expects, anchored at Open.
func (b *Bus) timestamp() cyphal.Timestamp {
	return cyphal.Timestamp(uint32(time.Since(b.epoch).Microseconds()))
}

// ApplyFilters installs an exact acceptance filter set on the socket,
// replacing whatever was there before.
func (b *Bus) ApplyFilters(filters []cyphal.Filter) error {
	raw := make([]unix.CanFilter, len(filters))
	for i, f := range filters {
		raw[i] = unix.CanFilter{Id: f.Match | canEFFFlag, Mask: f.Mask | canEFFFlag}
	}
	return unix.SetsockoptCanRawFilter(b.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, raw)
}

// ApplyAcceptAll disables filtering, admitting every frame on the bus.
func (b *Bus) ApplyAcceptAll() error {
	return unix.SetsockoptCanRawFilter(b.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, []unix.CanFilter{
		{Id: 0, Mask: 0},
	})
}
