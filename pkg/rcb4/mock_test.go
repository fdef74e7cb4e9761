package rcb4

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakePort is an in-memory serialPort. Each Write hands the frame to the
// responder; whatever comes back queues up for Read. An empty queue reads as
// (0, nil), matching a serial slice timeout.
type fakePort struct {
	respond  func(cmd []byte) []byte
	rx       []byte
	writes   [][]byte
	chunk    int // max bytes per Read, 0 = unlimited
	readErr  error
	writeErr error
	closed   bool
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.rx) == 0 {
		return 0, nil
	}
	n := len(p.rx)
	if n > len(buf) {
		n = len(buf)
	}
	if p.chunk > 0 && n > p.chunk {
		n = p.chunk
	}
	copy(buf, p.rx[:n])
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(buf []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	cmd := append([]byte(nil), buf...)
	p.writes = append(p.writes, cmd)
	if p.respond != nil {
		p.rx = append(p.rx, p.respond(cmd)...)
	}
	return len(buf), nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.rx = nil
	return nil
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

// simDevice emulates a controller: a RAM image served over the wire
// protocol, with every received frame recorded. Fault injection fields are
// one-shot counters unless noted.
type simDevice struct {
	ram    [0x1000]byte
	frames [][]byte

	ackByte     byte
	identity    string
	mute        bool // swallow commands without responding
	shortReads  int  // halve the data of the next n RAM reads
	truncate    int  // drop the last n bytes of the next reply
	appendJunk  []byte
	badChecksum bool
}

func newSimDevice() *simDevice {
	return &simDevice{ackByte: 0x06, identity: firmwareIdentity}
}

// simFrame wraps a body in wire framing: length byte, body, checksum.
func simFrame(body []byte) []byte {
	f := make([]byte, 0, len(body)+2)
	f = append(f, byte(len(body)+2))
	f = append(f, body...)
	f = append(f, checksum(f))
	return f
}

func (d *simDevice) respond(cmd []byte) []byte {
	d.frames = append(d.frames, append([]byte(nil), cmd...))
	if d.mute {
		return nil
	}
	var reply []byte
	switch CommandType(cmd[1]) {
	case CmdAckCheck:
		reply = simFrame([]byte{byte(CmdAckCheck), d.ackByte})
	case CmdVersion:
		reply = simFrame([]byte(d.identity))
	case CmdMove:
		reply = d.ramRead(cmd)
	case CmdMultiServoSingleVelocity:
		for i, id := range decodeBitmap(cmd[2:7]) {
			d.setReference(id, binary.LittleEndian.Uint16(cmd[8+2*i:]))
		}
		reply = simFrame([]byte{cmd[1]})
	case CmdMultiServoMultiVelocities:
		for i, id := range decodeBitmap(cmd[2:7]) {
			d.setReference(id, binary.LittleEndian.Uint16(cmd[8+3*i:]))
		}
		reply = simFrame([]byte{cmd[1]})
	default:
		reply = simFrame([]byte{cmd[1]})
	}

	if d.truncate > 0 {
		reply = reply[:len(reply)-d.truncate]
		d.truncate = 0
	}
	if len(d.appendJunk) > 0 {
		reply = append(reply, d.appendJunk...)
		d.appendJunk = nil
	}
	if d.badChecksum && len(reply) > 0 {
		reply[len(reply)-1] ^= 0xFF
	}
	return reply
}

func (d *simDevice) ramRead(cmd []byte) []byte {
	if MoveOp(cmd[2]) != MoveRAMToCOM {
		return simFrame([]byte{cmd[1]})
	}
	addr := int(cmd[6]) | int(cmd[7])<<8
	size := int(cmd[8])
	if d.shortReads > 0 {
		d.shortReads--
		size /= 2
	}
	body := make([]byte, 0, size+1)
	body = append(body, cmd[1])
	body = append(body, d.ram[addr:addr+size]...)
	return simFrame(body)
}

// setServo writes one state table record: error, current and reference.
func (d *simDevice) setServo(id int, errVal, current, reference uint16) {
	off := ramServoStateBase + servoRecordStride*id + scanFieldOffset
	binary.LittleEndian.PutUint16(d.ram[off:], errVal)
	binary.LittleEndian.PutUint16(d.ram[off+2:], current)
	binary.LittleEndian.PutUint16(d.ram[off+4:], reference)
}

func (d *simDevice) setReference(id int, ref uint16) {
	off := ramServoStateBase + servoRecordStride*id + scanFieldOffset + 4
	binary.LittleEndian.PutUint16(d.ram[off:], ref)
}

func (d *simDevice) setParamBlock(id int, block []byte) {
	copy(d.ram[ramServoParamBase+id*servoParamBlockSize:], block)
}

// framesOf filters the recorded command frames by type.
func (d *simDevice) framesOf(ct CommandType) [][]byte {
	var out [][]byte
	for _, f := range d.frames {
		if CommandType(f[1]) == ct {
			out = append(out, f)
		}
	}
	return out
}

func decodeBitmap(bm []byte) []int {
	var ids []int
	for id := 0; id < servoSlots; id++ {
		if bm[id/8]&(1<<(id%8)) != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// portFactory builds a fresh fakePort per open, all wired to one device, so
// reconnects during a test keep talking to the same RAM image.
type portFactory struct {
	sim   *simDevice
	ports []*fakePort
	err   error
}

func (f *portFactory) open(string, *serial.Mode) (serialPort, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePort{respond: f.sim.respond}
	f.ports = append(f.ports, p)
	return p, nil
}

// stubOpen points the serial opener at the simulator for the test's duration.
func stubOpen(t *testing.T, sim *simDevice) *portFactory {
	t.Helper()
	f := &portFactory{sim: sim}
	prev := openSerialPort
	openSerialPort = f.open
	t.Cleanup(func() { openSerialPort = prev })
	return f
}

// newTestBoard opens a Board against the simulated device.
func newTestBoard(t *testing.T, sim *simDevice) *Board {
	t.Helper()
	stubOpen(t, sim)
	b := New(Config{Port: "sim"})
	ok, err := b.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if !ok {
		t.Fatal("Open() = false, want true")
	}
	return b
}
