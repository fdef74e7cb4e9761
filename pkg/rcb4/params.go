package rcb4

import (
	"context"
	"fmt"
	"sort"
)

// Servo parameter mirror. The controller keeps a 64-byte configuration block
// per servo in RAM; fields live at fixed 4-bit positions inside the block.
const (
	ramServoParamBase   = 0x0400
	servoParamBlockSize = 64
)

// servoParamNibbles maps parameter names to their 1-based nibble positions
// inside a servo's configuration block, most significant nibble first. Odd
// positions address the high nibble of a byte, even positions the low one.
var servoParamNibbles = map[string][]int{
	"fix_header":        {1, 2},
	"stretch_gain":      {3, 4},
	"speed":             {5, 6},
	"punch":             {7, 8},
	"dead_band":         {9, 10},
	"dumping":           {11, 12},
	"safe_timer":        {13, 14},
	"mode_flag":         {15, 16},
	"pulse_max_limit":   {17, 18, 19, 20},
	"pulse_min_limit":   {21, 22, 23, 24},
	"ics_baud_rate":     {27, 28},
	"temperature_limit": {29, 30},
	"current_limit":     {31, 32},
	"response":          {51, 52},
	"user_offset":       {53, 54},
	"servo_id":          {57, 58},
	"stretch_1":         {59, 60},
	"stretch_2":         {61, 62},
	"stretch_3":         {63, 64},
}

// ServoParamNames returns the readable parameter names, sorted.
func ServoParamNames() []string {
	names := make([]string, 0, len(servoParamNibbles))
	for name := range servoParamNibbles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// nibbleValue assembles an integer from the block's nibbles at the given
// 1-based positions, most significant first.
func nibbleValue(block []byte, positions []int) int {
	v := 0
	for _, pos := range positions {
		by := block[(pos-1)/2]
		var nib byte
		if pos%2 == 1 {
			nib = by >> 4
		} else {
			nib = by & 0x0F
		}
		v = v<<4 | int(nib)
	}
	return v
}

// ServoParams reads the configuration block of one servo and decodes the
// named parameters; with no names, all of them. Note the mirror stores
// stretch gains doubled; ReadStretch halves them.
func (b *Board) ServoParams(ctx context.Context, servoID int, names ...string) (map[string]int, error) {
	if servoID < 0 || servoID > MaxServoID {
		return nil, fmt.Errorf("%w: %d out of range", ErrInvalidServoID, servoID)
	}
	if len(names) == 0 {
		names = ServoParamNames()
	}
	for _, name := range names {
		if _, ok := servoParamNibbles[name]; !ok {
			return nil, fmt.Errorf("unknown servo parameter %q", name)
		}
	}

	block, err := b.servoParamBlock(ctx, servoID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(names))
	for _, name := range names {
		out[name] = nibbleValue(block, servoParamNibbles[name])
	}
	return out, nil
}

// servoParamBlock fetches one servo's 64-byte configuration block from the
// RAM mirror.
func (b *Board) servoParamBlock(ctx context.Context, servoID int) ([]byte, error) {
	addr := uint16(ramServoParamBase + servoID*servoParamBlockSize)
	payload, err := b.exchange(ctx, ramReadCommand(addr, servoParamBlockSize))
	if err != nil {
		return nil, err
	}
	if len(payload) != servoParamBlockSize+1 {
		return nil, fmt.Errorf("%w: parameter block read returned %d bytes, want %d",
			ErrProtocol, len(payload)-1, servoParamBlockSize)
	}
	return payload[1:], nil
}
