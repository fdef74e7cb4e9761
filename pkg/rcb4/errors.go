package rcb4

import "errors"

// Sentinel errors returned by the driver. Callers match them with errors.Is;
// most values come wrapped with call-site detail.
var (
	// ErrClosed is returned when a command is issued on a closed channel.
	ErrClosed = errors.New("rcb4: serial channel is not open")

	// ErrConnection wraps OS-level open/write/read failures.
	ErrConnection = errors.New("rcb4: connection failed")

	// ErrTimeout is returned when no bytes, or not enough bytes for a full
	// frame, arrive within the read budget. The channel is closed first.
	ErrTimeout = errors.New("rcb4: read timeout")

	// ErrProtocol marks fatal dialect mismatches: wrong firmware identity or
	// a malformed frame declaration. Not retryable.
	ErrProtocol = errors.New("rcb4: protocol error")

	// ErrChecksum is returned when a received frame's trailing checksum does
	// not match its contents. The channel stays open; the frame boundary was
	// still consistent.
	ErrChecksum = errors.New("rcb4: response checksum mismatch")

	// ErrLengthMismatch is returned when ID and value lists disagree in
	// length, or a payload would not fit in a single frame.
	ErrLengthMismatch = errors.New("rcb4: length mismatch")

	// ErrInvalidServoID is returned for IDs outside [0,35], or IDs not
	// discovered on the bus where a discovered ID is required.
	ErrInvalidServoID = errors.New("rcb4: invalid servo id")

	// ErrUnreachable is returned when a block poll exhausted its reconnect
	// attempts without a correctly sized response.
	ErrUnreachable = errors.New("rcb4: device unreachable")

	// ErrNoDevice is returned by AutoOpen when no USB adapter with the
	// RCB-4 vendor:product identity is attached.
	ErrNoDevice = errors.New("rcb4: no rcb-4 usb adapter found")
)
