package rcb4

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// RAM layout of the servo state table. Records are 20 bytes apart; the three
// 16-bit state fields start two bytes into each record. 35 slots are
// readable, polled 7 at a time; a 126-byte read reaches through the last
// record's fields.
const (
	ramServoStateBase = 0x0090
	servoRecordStride = 20
	scanFieldOffset   = 2

	scanSlots       = 35
	scanBlockServos = 7
	scanBlocks      = scanSlots / scanBlockServos
	blockReadBytes  = 126
)

// Block-poll retry policy. A failed block is retried after reconnecting, with
// the delay doubling from the base up to the cap.
const (
	scanAttempts    = 5
	scanBudget      = 100 * time.Millisecond
	scanBackoffBase = 20 * time.Millisecond
	scanBackoffCap  = 500 * time.Millisecond
)

// ramSlot selects which state field a table scan extracts.
type ramSlot int

const (
	slotError ramSlot = iota
	slotCurrent
	slotReference
)

func (s ramSlot) String() string {
	switch s {
	case slotError:
		return "error"
	case slotCurrent:
		return "current"
	case slotReference:
		return "reference"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// registry is one discovery result: the present IDs, their dense index
// mapping, and the coordinate transforms sized to them. Immutable once
// built; Rescan swaps the whole value.
type registry struct {
	ids []int           // present servo IDs, ascending
	seq [servoSlots]int // raw ID -> dense index, -1 when absent
	j2a *mat.Dense
	a2j *mat.Dense
}

func newRegistry(ids []int) (*registry, error) {
	r := &registry{ids: ids}
	for i := range r.seq {
		r.seq[i] = -1
	}
	for i, id := range ids {
		r.seq[id] = i
	}
	r.j2a = jointToActuatorMatrix(len(ids))
	a2j, err := actuatorToJointMatrix(r.j2a)
	if err != nil {
		return nil, err
	}
	r.a2j = a2j
	return r, nil
}

// indexOf returns the dense index of a raw servo ID, -1 when absent or out
// of range.
func (r *registry) indexOf(id int) int {
	if id < 0 || id >= servoSlots {
		return -1
	}
	return r.seq[id]
}

// Discover scans the servo state table once and caches the present IDs
// together with their transforms. Subsequent calls return the cached set.
func (b *Board) Discover(ctx context.Context) ([]int, error) {
	b.regMu.Lock()
	defer b.regMu.Unlock()
	if b.reg == nil {
		reg, err := b.discoverLocked(ctx)
		if err != nil {
			return nil, err
		}
		b.reg = reg
	}
	return append([]int(nil), b.reg.ids...), nil
}

// Rescan rebuilds the registry and both transform matrices from a fresh bus
// scan. The previous cache stays in place if the scan fails.
func (b *Board) Rescan(ctx context.Context) ([]int, error) {
	b.regMu.Lock()
	defer b.regMu.Unlock()
	reg, err := b.discoverLocked(ctx)
	if err != nil {
		return nil, err
	}
	b.reg = reg
	return append([]int(nil), reg.ids...), nil
}

// ensureRegistry returns the cached registry, discovering on first use.
// Single writer: discovery runs under regMu.
func (b *Board) ensureRegistry(ctx context.Context) (*registry, error) {
	b.regMu.Lock()
	defer b.regMu.Unlock()
	if b.reg == nil {
		reg, err := b.discoverLocked(ctx)
		if err != nil {
			return nil, err
		}
		b.reg = reg
	}
	return b.reg, nil
}

func (b *Board) discoverLocked(ctx context.Context) (*registry, error) {
	current, err := b.scanServoTable(ctx, slotCurrent)
	if err != nil {
		return nil, err
	}
	var ids []int
	for id, v := range current {
		if v > 0 {
			ids = append(ids, id)
		}
	}
	reg, err := newRegistry(ids)
	if err != nil {
		return nil, err
	}
	b.log.Info().Ints("ids", ids).Msg("servos discovered")
	return reg, nil
}

// scanServoTable reads the full 35-slot state table and returns the selected
// field per raw servo ID. Slot 35 has no table record and is never reported.
func (b *Board) scanServoTable(ctx context.Context, slot ramSlot) ([]uint16, error) {
	out := make([]uint16, 0, scanSlots)
	for j := 0; j < scanBlocks; j++ {
		addr := uint16(ramServoStateBase + servoRecordStride*scanBlockServos*j + scanFieldOffset)
		block, err := b.readBlock(ctx, addr)
		if err != nil {
			return nil, err
		}
		for i := 0; i < scanBlockServos; i++ {
			rec := block[i*servoRecordStride:]
			var v uint16
			switch slot {
			case slotError:
				v = binary.LittleEndian.Uint16(rec[0:2])
			case slotCurrent:
				v = binary.LittleEndian.Uint16(rec[2:4])
			case slotReference:
				v = binary.LittleEndian.Uint16(rec[4:6])
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// readBlock fetches one 126-byte slice of the state table, reconnecting and
// retrying on transport faults or short responses, up to scanAttempts.
func (b *Board) readBlock(ctx context.Context, addr uint16) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= scanAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(attempt - 1)):
			}
			if !b.reopen(ctx) {
				b.log.Warn().Int("attempt", attempt).Msg("reconnect failed")
				continue
			}
		}
		sctx, cancel := context.WithTimeout(ctx, scanBudget)
		payload, err := b.exchange(sctx, ramReadCommand(addr, blockReadBytes))
		cancel()
		if err != nil {
			lastErr = err
			b.log.Warn().Err(err).Int("attempt", attempt).Uint16("addr", addr).Msg("block read failed")
			continue
		}
		// One echo byte precedes the data.
		if len(payload) != blockReadBytes+1 {
			lastErr = fmt.Errorf("block at 0x%04X: %d of %d data bytes", addr, len(payload)-1, blockReadBytes)
			b.log.Warn().Int("attempt", attempt).Uint16("addr", addr).Int("bytes", len(payload)-1).Msg("short block read")
			continue
		}
		return payload[1:], nil
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnreachable, scanAttempts, lastErr)
}

// backoffDelay doubles from the base per retry and saturates at the cap.
func backoffDelay(retry int) time.Duration {
	d := scanBackoffBase << (retry - 1)
	if d > scanBackoffCap || d <= 0 {
		d = scanBackoffCap
	}
	return d
}
