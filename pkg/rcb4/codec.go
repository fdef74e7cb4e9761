package rcb4

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// MaxServoID is the highest servo address on an RCB-4 bus.
const MaxServoID = 35

// servoSlots is the size of the ID space covered by the 5-byte presence
// bitmap.
const servoSlots = MaxServoID + 1

// checksum is the additive single-byte checksum over all preceding command
// bytes, including the length byte.
func checksum(cmd []byte) byte {
	var sum int
	for _, b := range cmd {
		sum += int(b)
	}
	return byte(sum & 0xFF)
}

// parseFrame validates a complete received frame and returns its payload:
// bytes 1..L-2, with the length byte and trailing checksum stripped.
func parseFrame(raw []byte) ([]byte, error) {
	if len(raw) < 3 {
		return nil, fmt.Errorf("%w: frame of %d bytes is below minimum", ErrProtocol, len(raw))
	}
	if int(raw[0]) != len(raw) {
		return nil, fmt.Errorf("%w: declared length %d, got %d bytes", ErrProtocol, raw[0], len(raw))
	}
	body := raw[:len(raw)-1]
	if got, want := raw[len(raw)-1], checksum(body); got != want {
		return nil, fmt.Errorf("%w: got 0x%02X, computed 0x%02X", ErrChecksum, got, want)
	}
	return raw[1 : len(raw)-1], nil
}

// encodeServoIDs packs servo IDs into the 5-byte presence bitmap: bit id%8 of
// byte id/8.
func encodeServoIDs(ids []int) ([]byte, error) {
	bitmap := make([]byte, 5)
	for _, id := range ids {
		if id < 0 || id > MaxServoID {
			return nil, fmt.Errorf("%w: %d out of range [0,%d]", ErrInvalidServoID, id, MaxServoID)
		}
		bitmap[id/8] |= 1 << (id % 8)
	}
	return bitmap, nil
}

// encodePositions lowers targets to little-endian 16-bit wire values, in the
// given (ascending-ID) order.
func encodePositions(targets []Target) []byte {
	out := make([]byte, 0, 2*len(targets))
	for _, t := range targets {
		out = binary.LittleEndian.AppendUint16(out, t.encode())
	}
	return out
}

// encodeVelocityPositions interleaves one velocity byte and one little-endian
// 16-bit position per servo.
func encodeVelocityPositions(velocities []int, targets []Target) []byte {
	out := make([]byte, 0, 3*len(targets))
	for i, t := range targets {
		out = append(out, velocityByte(velocities[i]))
		out = binary.LittleEndian.AppendUint16(out, t.encode())
	}
	return out
}

// velocityByte clamps a requested velocity into the firmware's [1,255] range.
func velocityByte(v int) byte {
	if v < 1 {
		v = 1
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

// stretchByte clamps a stretch gain into the ICS servo range [1,127].
func stretchByte(v int) byte {
	if v < 1 {
		v = 1
	}
	if v > 127 {
		v = 127
	}
	return byte(v)
}

// argsortIDs returns the index permutation that orders ids ascending. Motion
// frames carry per-servo fields in ascending-ID order, matching the bitmap.
func argsortIDs(ids []int) []int {
	idx := make([]int, len(ids))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return ids[idx[a]] < ids[idx[b]] })
	return idx
}
