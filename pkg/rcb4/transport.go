package rcb4

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Serial link defaults.
const (
	DefaultPort        = "/dev/ttyUSB0"
	DefaultBaudRate    = 1_250_000
	DefaultReadTimeout = 10 * time.Millisecond

	// defaultExchangeBudget bounds one write+read exchange when the caller's
	// context carries no deadline.
	defaultExchangeBudget = 10 * time.Second
)

// USB identity of the Kondo adapter, as reported by the port enumerator.
const (
	usbVendorID  = "165C"
	usbProductID = "0008"
)

// serialPort is the slice of go.bug.st/serial.Port the driver uses. Tests
// substitute a scripted device.
type serialPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Swappable for tests.
var (
	openSerialPort = func(name string, mode *serial.Mode) (serialPort, error) {
		return serial.Open(name, mode)
	}
	listUSBPorts = enumerator.GetDetailedPortsList
)

// Open opens the configured port and runs the protocol handshake: the ack
// check, whose mismatch is reported as (false, nil), then the firmware
// identity check, whose mismatch is fatal and closes the channel.
func (b *Board) Open(ctx context.Context) (bool, error) {
	return b.open(ctx, b.cfg.Port)
}

// DetectPorts returns the device names of all attached USB serial adapters
// carrying the Kondo vendor:product identity 0x165C:0x0008.
func DetectPorts() ([]string, error) {
	ports, err := listUSBPorts()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate ports: %v", ErrConnection, err)
	}
	var names []string
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if !strings.EqualFold(p.VID, usbVendorID) || !strings.EqualFold(p.PID, usbProductID) {
			continue
		}
		names = append(names, p.Name)
	}
	return names, nil
}

// AutoOpen opens the first port reported by DetectPorts.
func (b *Board) AutoOpen(ctx context.Context) (bool, error) {
	names, err := DetectPorts()
	if err != nil {
		return false, err
	}
	if len(names) == 0 {
		return false, ErrNoDevice
	}
	b.log.Debug().Str("port", names[0]).Msg("rcb-4 usb adapter found")
	return b.open(ctx, names[0])
}

func (b *Board) open(ctx context.Context, name string) (bool, error) {
	b.mu.Lock()
	b.closeLocked()
	mode := &serial.Mode{
		BaudRate: b.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openSerialPort(name, mode)
	if err != nil {
		b.mu.Unlock()
		return false, fmt.Errorf("%w: open %s: %v", ErrConnection, name, err)
	}
	if err := port.SetReadTimeout(b.cfg.ReadTimeout); err != nil {
		port.Close()
		b.mu.Unlock()
		return false, fmt.Errorf("%w: set read timeout: %v", ErrConnection, err)
	}
	b.port = port
	b.portName = name
	b.mu.Unlock()

	ok, err := b.Ack(ctx)
	if err != nil {
		b.Close()
		return false, err
	}
	if !ok {
		// Wrong dialect. Not an error; the caller decides whether to retry.
		return false, nil
	}
	if err := b.checkFirmware(ctx); err != nil {
		b.Close()
		return false, err
	}
	b.log.Info().Str("port", name).Int("baud", b.cfg.BaudRate).Msg("rcb-4 opened")
	return true, nil
}

// Close releases the serial handle. Safe to call repeatedly.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Board) closeLocked() error {
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	b.log.Debug().Str("port", b.portName).Msg("rcb-4 closed")
	return err
}

// IsOpen reports whether the serial channel is open.
func (b *Board) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port != nil
}

// PortName returns the path of the last successfully opened port.
func (b *Board) PortName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.portName
}

// reopen re-establishes the channel after a mid-poll failure: the last-known
// port first, then USB discovery.
func (b *Board) reopen(ctx context.Context) bool {
	b.mu.Lock()
	name := b.portName
	b.mu.Unlock()
	if name != "" {
		if ok, err := b.open(ctx, name); err == nil && ok {
			return true
		}
	}
	ok, err := b.AutoOpen(ctx)
	return err == nil && ok
}

// exchange sends one framed command and reads the one framed response inside
// a single critical section; the link is half-duplex and exchanges must never
// interleave. Stale input is flushed before the write. Transport faults and
// timeouts close the channel; a checksum mismatch does not.
func (b *Board) exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	deadline := time.Now().Add(defaultExchangeBudget)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		return nil, ErrClosed
	}
	if err := b.port.ResetInputBuffer(); err != nil {
		b.closeLocked()
		return nil, fmt.Errorf("%w: flush input: %v", ErrConnection, err)
	}
	if _, err := b.port.Write(cmd); err != nil {
		b.closeLocked()
		return nil, fmt.Errorf("%w: write: %v", ErrConnection, err)
	}
	raw, err := b.readFrameLocked(ctx, deadline)
	if err != nil {
		return nil, err
	}
	return parseFrame(raw)
}

// readFrameLocked accumulates one frame. The first byte declares the total
// length; reading continues until exactly that many bytes arrived or the
// budget ran out.
func (b *Board) readFrameLocked(ctx context.Context, deadline time.Time) ([]byte, error) {
	var acc []byte
	buf := make([]byte, 256)
	for {
		// The deadline already folds in any context deadline, so an expired
		// context budget lands here and closes the channel. A bare ctx.Err
		// afterwards only means explicit cancellation.
		if !time.Now().Before(deadline) {
			b.closeLocked()
			if len(acc) == 0 {
				return nil, fmt.Errorf("%w: no data received", ErrTimeout)
			}
			return nil, fmt.Errorf("%w: incomplete frame (%d of %d bytes)", ErrTimeout, len(acc), acc[0])
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := b.port.Read(buf)
		if err != nil {
			b.closeLocked()
			return nil, fmt.Errorf("%w: read: %v", ErrConnection, err)
		}
		if n == 0 {
			// Slice timeout; budget not spent yet.
			continue
		}
		acc = append(acc, buf[:n]...)

		total := int(acc[0])
		if total < 3 {
			b.closeLocked()
			return nil, fmt.Errorf("%w: declared frame length %d is below minimum", ErrProtocol, total)
		}
		if len(acc) < total {
			continue
		}
		if len(acc) > total {
			b.closeLocked()
			return nil, fmt.Errorf("%w: %d bytes past declared frame length %d", ErrProtocol, len(acc)-total, total)
		}
		return acc, nil
	}
}

// Ack sends the handshake command and reports whether the device answered
// with the expected acknowledge byte.
func (b *Board) Ack(ctx context.Context) (bool, error) {
	payload, err := b.exchange(ctx, ackCommand())
	if err != nil {
		return false, err
	}
	if len(payload) < 2 {
		return false, fmt.Errorf("%w: ack response of %d bytes", ErrProtocol, len(payload))
	}
	return payload[1] == 0x06, nil
}

// firmwareIdentity is the full version payload of the RCB-4 mini dialect
// this driver speaks. Other board revisions do not share the wire contract.
const firmwareIdentity = "\xfdCB-4 V1.0      090715          \xc7"

// FirmwareVersion returns the printable firmware identity string.
func (b *Board) FirmwareVersion(ctx context.Context) (string, error) {
	payload, err := b.exchange(ctx, versionCommand())
	if err != nil {
		return "", err
	}
	if len(payload) < 3 {
		return "", fmt.Errorf("%w: version response of %d bytes", ErrProtocol, len(payload))
	}
	return strings.TrimRight(string(payload[1:len(payload)-1]), " "), nil
}

func (b *Board) checkFirmware(ctx context.Context) error {
	payload, err := b.exchange(ctx, versionCommand())
	if err != nil {
		return err
	}
	if string(payload) != firmwareIdentity {
		return fmt.Errorf("%w: incompatible firmware %q, expected an RCB-4 mini", ErrProtocol, payload)
	}
	b.log.Debug().Str("firmware", strings.TrimRight(string(payload[1:len(payload)-1]), " ")).Msg("firmware verified")
	return nil
}
