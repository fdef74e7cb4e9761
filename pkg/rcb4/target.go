package rcb4

import "fmt"

// Reserved actuator values. The firmware interprets them instead of moving
// to a pulse position.
const (
	// HoldPulse locks a servo at its current position.
	HoldPulse uint16 = 32767
	// FreePulse releases servo torque. Reference readings equal to this
	// value mark a floating servo.
	FreePulse uint16 = 32768
)

type targetKind uint8

const (
	targetPosition targetKind = iota
	targetHold
	targetFree
)

// Target is one servo's commanded state: an actuator pulse position, or one
// of the two reserved modes. The reserved modes lower to their sentinel
// values only when a frame is encoded.
type Target struct {
	kind  targetKind
	pulse uint16
}

// Position targets an absolute actuator pulse (neutral is 7500).
func Position(pulse uint16) Target {
	return Target{kind: targetPosition, pulse: pulse}
}

// Hold targets the servo's current position, locking it in place.
func Hold() Target {
	return Target{kind: targetHold}
}

// Free releases the servo's torque.
func Free() Target {
	return Target{kind: targetFree}
}

// encode lowers the target to its wire value.
func (t Target) encode() uint16 {
	switch t.kind {
	case targetHold:
		return HoldPulse
	case targetFree:
		return FreePulse
	default:
		return t.pulse
	}
}

func (t Target) String() string {
	switch t.kind {
	case targetHold:
		return "hold"
	case targetFree:
		return "free"
	default:
		return fmt.Sprintf("%d", t.pulse)
	}
}
