package rcb4

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
)

func TestNibbleValue(t *testing.T) {
	block := make([]byte, servoParamBlockSize)
	block[0] = 0xAB
	block[1] = 0x28
	block[8] = 0x12
	block[9] = 0x34

	tests := []struct {
		name     string
		expected int
	}{
		{"fix_header", 0xAB},
		{"stretch_gain", 0x28},
		{"pulse_max_limit", 0x1234},
		{"speed", 0},
	}

	for _, tt := range tests {
		if got := nibbleValue(block, servoParamNibbles[tt.name]); got != tt.expected {
			t.Errorf("nibbleValue(%s) = %d, want %d", tt.name, got, tt.expected)
		}
	}
}

func TestServoParamNames(t *testing.T) {
	names := ServoParamNames()
	if len(names) != len(servoParamNibbles) {
		t.Fatalf("ServoParamNames() returned %d names, want %d", len(names), len(servoParamNibbles))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("ServoParamNames() not sorted: %v", names)
	}
}

func TestServoParams(t *testing.T) {
	sim := simWithServos(2)
	block := make([]byte, servoParamBlockSize)
	block[1] = 0x28  // stretch_gain
	block[2] = 0x10  // speed
	block[14] = 0x3C // temperature_limit
	sim.setParamBlock(2, block)
	b := newTestBoard(t, sim)
	ctx := context.Background()

	params, err := b.ServoParams(ctx, 2, "stretch_gain", "speed", "temperature_limit")
	if err != nil {
		t.Fatalf("ServoParams() error: %v", err)
	}
	expected := map[string]int{"stretch_gain": 0x28, "speed": 0x10, "temperature_limit": 0x3C}
	for name, want := range expected {
		if params[name] != want {
			t.Errorf("ServoParams()[%s] = %d, want %d", name, params[name], want)
		}
	}

	// No names means all of them.
	all, err := b.ServoParams(ctx, 2)
	if err != nil {
		t.Fatalf("ServoParams() error: %v", err)
	}
	if len(all) != len(servoParamNibbles) {
		t.Errorf("ServoParams() decoded %d parameters, want %d", len(all), len(servoParamNibbles))
	}
}

func TestServoParamsUnknownName(t *testing.T) {
	sim := simWithServos(2)
	b := newTestBoard(t, sim)

	_, err := b.ServoParams(context.Background(), 2, "torque_ripple")
	if err == nil || !strings.Contains(err.Error(), "unknown servo parameter") {
		t.Errorf("ServoParams() error = %v, want unknown parameter", err)
	}
}

func TestServoParamsInvalidID(t *testing.T) {
	sim := simWithServos(2)
	b := newTestBoard(t, sim)

	if _, err := b.ServoParams(context.Background(), 40); !errors.Is(err, ErrInvalidServoID) {
		t.Errorf("ServoParams(40) error = %v, want ErrInvalidServoID", err)
	}
}
