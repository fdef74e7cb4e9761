package rcb4

import "fmt"

// CommandType is the frame type byte of an RCB-4 command.
type CommandType byte

// Command types understood by the RCB-4 firmware.
const (
	CmdMove                      CommandType = 0x00
	CmdJump                      CommandType = 0x0B
	CmdCall                      CommandType = 0x0C
	CmdSingleServo               CommandType = 0x0F
	CmdMultiServoSingleVelocity  CommandType = 0x10
	CmdMultiServoMultiVelocities CommandType = 0x11
	CmdServoParam                CommandType = 0x12
	CmdVersion                   CommandType = 0xFD
	CmdAckCheck                  CommandType = 0xFE
)

func (c CommandType) String() string {
	switch c {
	case CmdMove:
		return "move"
	case CmdJump:
		return "jump"
	case CmdCall:
		return "call"
	case CmdSingleServo:
		return "single servo"
	case CmdMultiServoSingleVelocity:
		return "multi servo, single velocity"
	case CmdMultiServoMultiVelocities:
		return "multi servo, multi velocities"
	case CmdServoParam:
		return "servo param"
	case CmdVersion:
		return "version"
	case CmdAckCheck:
		return "ack check"
	default:
		return fmt.Sprintf("command(0x%02X)", byte(c))
	}
}

// ServoParam selects which per-servo ICS parameter a CmdServoParam frame
// carries.
type ServoParam byte

// Servo parameter classes.
const (
	ParamStretch          ServoParam = 0x01
	ParamSpeed            ServoParam = 0x02
	ParamCurrentLimit     ServoParam = 0x03
	ParamTemperatureLimit ServoParam = 0x04
)

func (p ServoParam) String() string {
	switch p {
	case ParamStretch:
		return "stretch"
	case ParamSpeed:
		return "speed"
	case ParamCurrentLimit:
		return "current limit"
	case ParamTemperatureLimit:
		return "temperature limit"
	default:
		return fmt.Sprintf("param(0x%02X)", byte(p))
	}
}

// MoveOp is the transfer direction sub-command of CmdMove.
type MoveOp byte

// Move sub-commands.
const (
	MoveCOMToRAM    MoveOp = 0x02
	MoveCOMToDevice MoveOp = 0x12
	MoveRAMToCOM    MoveOp = 0x20
	MoveDeviceToCOM MoveOp = 0x21
)

func (o MoveOp) String() string {
	switch o {
	case MoveCOMToRAM:
		return "com to ram"
	case MoveCOMToDevice:
		return "com to device"
	case MoveRAMToCOM:
		return "ram to com"
	case MoveDeviceToCOM:
		return "device to com"
	default:
		return fmt.Sprintf("move(0x%02X)", byte(o))
	}
}

// buildCommand frames a command: [L][type][payload...][checksum], where L
// counts itself, the type byte, the payload, and the trailing checksum.
func buildCommand(ct CommandType, payload []byte) ([]byte, error) {
	total := len(payload) + 3
	if total > 0xFF {
		return nil, fmt.Errorf("%w: %s payload of %d bytes exceeds frame limit", ErrLengthMismatch, ct, len(payload))
	}
	cmd := make([]byte, 0, total)
	cmd = append(cmd, byte(total), byte(ct))
	cmd = append(cmd, payload...)
	cmd = append(cmd, checksum(cmd))
	return cmd, nil
}

// ackCommand is the fixed 4-byte handshake request. The device echoes it
// verbatim when the protocol dialect matches.
func ackCommand() []byte {
	cmd, _ := buildCommand(CmdAckCheck, []byte{0x06})
	return cmd
}

// versionCommand requests the firmware identity string.
func versionCommand() []byte {
	cmd, _ := buildCommand(CmdVersion, nil)
	return cmd
}

// ramReadCommand builds a RAM-to-COM transfer of size bytes starting at addr.
// The response payload carries one echo byte followed by the size data bytes.
func ramReadCommand(addr uint16, size byte) []byte {
	payload := []byte{
		byte(MoveRAMToCOM),
		0x00, 0x00, 0x00,
		byte(addr & 0xFF),
		byte(addr >> 8),
		size,
	}
	cmd, _ := buildCommand(CmdMove, payload)
	return cmd
}

// servoMoveCommand builds a multi-servo move with one shared velocity.
// IDs and targets must already be sorted ascending by ID.
func servoMoveCommand(ids []int, velocity int, targets []Target) ([]byte, error) {
	bitmap, err := encodeServoIDs(ids)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(bitmap)+1+2*len(targets))
	payload = append(payload, bitmap...)
	payload = append(payload, velocityByte(velocity))
	payload = append(payload, encodePositions(targets)...)
	return buildCommand(CmdMultiServoSingleVelocity, payload)
}

// servoMoveVelocitiesCommand builds a multi-servo move with one velocity per
// servo. IDs, velocities and targets must share order, sorted ascending by ID.
func servoMoveVelocitiesCommand(ids, velocities []int, targets []Target) ([]byte, error) {
	bitmap, err := encodeServoIDs(ids)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(bitmap)+3*len(targets))
	payload = append(payload, bitmap...)
	payload = append(payload, encodeVelocityPositions(velocities, targets)...)
	return buildCommand(CmdMultiServoMultiVelocities, payload)
}

// servoParamCommand builds a per-servo parameter write: bitmap, parameter
// class, then one value byte per servo in ascending-ID order.
func servoParamCommand(ids []int, param ServoParam, values []byte) ([]byte, error) {
	bitmap, err := encodeServoIDs(ids)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(bitmap)+1+len(values))
	payload = append(payload, bitmap...)
	payload = append(payload, byte(param))
	payload = append(payload, values...)
	return buildCommand(CmdServoParam, payload)
}
