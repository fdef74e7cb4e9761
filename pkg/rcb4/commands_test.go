package rcb4

import (
	"bytes"
	"errors"
	"testing"
)

func TestAckCommand(t *testing.T) {
	expected := []byte{0x04, 0xFE, 0x06, 0x08}
	if got := ackCommand(); !bytes.Equal(got, expected) {
		t.Errorf("ackCommand() = % X, want % X", got, expected)
	}
}

func TestVersionCommand(t *testing.T) {
	expected := []byte{0x03, 0xFD, 0x00}
	if got := versionCommand(); !bytes.Equal(got, expected) {
		t.Errorf("versionCommand() = % X, want % X", got, expected)
	}
}

func TestRAMReadCommand(t *testing.T) {
	// First block of the servo state table.
	got := ramReadCommand(0x0092, 126)
	expected := []byte{0x0A, 0x00, 0x20, 0x00, 0x00, 0x00, 0x92, 0x00, 0x7E, 0x3A}
	if !bytes.Equal(got, expected) {
		t.Errorf("ramReadCommand(0x0092, 126) = % X, want % X", got, expected)
	}
}

func TestServoMoveCommand(t *testing.T) {
	cmd, err := servoMoveCommand([]int{1, 3, 7}, 127, []Target{
		Position(7500), Position(7500), Position(7500),
	})
	if err != nil {
		t.Fatalf("servoMoveCommand() error: %v", err)
	}
	expected := []byte{
		0x0F, 0x10,
		0x8A, 0x00, 0x00, 0x00, 0x00,
		0x7F,
		0x4C, 0x1D, 0x4C, 0x1D, 0x4C, 0x1D,
		0x63,
	}
	if !bytes.Equal(cmd, expected) {
		t.Errorf("servoMoveCommand() = % X, want % X", cmd, expected)
	}
}

func TestServoMoveVelocitiesCommand(t *testing.T) {
	cmd, err := servoMoveVelocitiesCommand([]int{1, 3}, []int{10, 20}, []Target{
		Position(7500), Position(7530),
	})
	if err != nil {
		t.Fatalf("servoMoveVelocitiesCommand() error: %v", err)
	}
	expected := []byte{
		0x0E, 0x11,
		0x0A, 0x00, 0x00, 0x00, 0x00,
		0x0A, 0x4C, 0x1D,
		0x14, 0x6A, 0x1D,
		0x37,
	}
	if !bytes.Equal(cmd, expected) {
		t.Errorf("servoMoveVelocitiesCommand() = % X, want % X", cmd, expected)
	}
}

func TestServoParamCommand(t *testing.T) {
	cmd, err := servoParamCommand([]int{1}, ParamStretch, []byte{0x20})
	if err != nil {
		t.Fatalf("servoParamCommand() error: %v", err)
	}
	expected := []byte{0x0A, 0x12, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 0x20, 0x3F}
	if !bytes.Equal(cmd, expected) {
		t.Errorf("servoParamCommand() = % X, want % X", cmd, expected)
	}
}

func TestBuildCommandTooLong(t *testing.T) {
	_, err := buildCommand(CmdMove, make([]byte, 0xFD))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("buildCommand() error = %v, want ErrLengthMismatch", err)
	}
}

func TestServoMoveCommandInvalidID(t *testing.T) {
	_, err := servoMoveCommand([]int{40}, 127, []Target{Position(7500)})
	if !errors.Is(err, ErrInvalidServoID) {
		t.Errorf("servoMoveCommand() error = %v, want ErrInvalidServoID", err)
	}
}

func TestCommandTypeString(t *testing.T) {
	tests := []struct {
		ct       CommandType
		expected string
	}{
		{CmdMove, "move"},
		{CmdAckCheck, "ack check"},
		{CommandType(0x42), "command(0x42)"},
	}

	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.expected {
			t.Errorf("CommandType(0x%02X).String() = %q, want %q", byte(tt.ct), got, tt.expected)
		}
	}
}
