// Package rcb4 drives a Kondo RCB-4 servo controller over a half-duplex
// serial link: framed checksummed commands, servo discovery with dense index
// mapping, and joint-space motion on top of raw actuator pulses.
package rcb4

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultVelocity is the firmware velocity used by Hold, Free and Neutral.
const DefaultVelocity = 127

// Board is one session to an RCB-4 controller. Create it with New, establish
// the channel with Open or AutoOpen, then issue motion and parameter calls.
// Methods are safe for concurrent use; exchanges serialize on the half-duplex
// link.
type Board struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex // one in-flight exchange; guards port lifecycle
	port     serialPort
	portName string

	regMu sync.Mutex // guards registry swaps; discovery runs under it
	reg   *registry
}

// New returns an unopened Board. Zero-valued Config fields fall back to the
// package defaults.
func New(cfg Config) *Board {
	cfg = cfg.withDefaults()
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Board{cfg: cfg, log: log}
}

// ServoIDs returns the discovered servo IDs, ascending, scanning the bus on
// first use.
func (b *Board) ServoIDs(ctx context.Context) ([]int, error) {
	return b.Discover(ctx)
}

// ValidServoIDs reports, per queried ID, whether it was discovered on the
// bus. Out-of-range IDs report false.
func (b *Board) ValidServoIDs(ctx context.Context, servoIDs ...int) ([]bool, error) {
	reg, err := b.ensureRegistry(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(servoIDs))
	for i, id := range servoIDs {
		out[i] = reg.indexOf(id) >= 0
	}
	return out, nil
}

// SequentializedServoIDs maps raw servo IDs to their dense indices; -1 marks
// an ID that is not present.
func (b *Board) SequentializedServoIDs(ctx context.Context, servoIDs ...int) ([]int, error) {
	reg, err := b.ensureRegistry(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(servoIDs))
	for i, id := range servoIDs {
		out[i] = reg.indexOf(id)
	}
	return out, nil
}

// ServoIDToIndex returns the dense index of one servo ID and whether the ID
// is present.
func (b *Board) ServoIDToIndex(ctx context.Context, servoID int) (int, bool, error) {
	reg, err := b.ensureRegistry(ctx)
	if err != nil {
		return 0, false, err
	}
	idx := reg.indexOf(servoID)
	return idx, idx >= 0, nil
}

// AngleVector reads current servo positions and maps them to joint space.
// With no arguments it returns the full vector over all discovered servos in
// dense index order; with IDs it returns those joints in request order.
func (b *Board) AngleVector(ctx context.Context, servoIDs ...int) ([]float64, error) {
	reg, err := b.ensureRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if len(reg.ids) == 0 || (servoIDs != nil && len(servoIDs) == 0) {
		return []float64{}, nil
	}

	current, err := b.scanServoTable(ctx, slotCurrent)
	if err != nil {
		return nil, err
	}
	dense := make([]float64, len(reg.ids))
	for i, id := range reg.ids {
		dense[i] = float64(current[id])
	}
	joints := applyAffine(reg.a2j, dense)

	if servoIDs == nil {
		return joints, nil
	}
	out := make([]float64, len(servoIDs))
	for k, id := range servoIDs {
		idx := reg.indexOf(id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %d not discovered", ErrInvalidServoID, id)
		}
		out[k] = joints[idx]
	}
	return out, nil
}

// SendAngleVector maps joint angles through the transform and commands the
// servos at one shared velocity. A nil ID slice targets all discovered
// servos, in dense index order.
func (b *Board) SendAngleVector(ctx context.Context, angles []float64, servoIDs []int, velocity int) error {
	ids, targets, err := b.jointTargets(ctx, angles, servoIDs)
	if err != nil || len(ids) == 0 {
		return err
	}
	return b.SendTargets(ctx, ids, targets, velocity)
}

// SendAngleVectorVelocities is SendAngleVector with one velocity per servo.
func (b *Board) SendAngleVectorVelocities(ctx context.Context, angles []float64, servoIDs []int, velocities []int) error {
	ids, targets, err := b.jointTargets(ctx, angles, servoIDs)
	if err != nil || len(ids) == 0 {
		return err
	}
	if len(velocities) != len(ids) {
		return fmt.Errorf("%w: %d velocities for %d servos", ErrLengthMismatch, len(velocities), len(ids))
	}
	return b.SendTargetsVelocities(ctx, ids, targets, velocities)
}

// jointTargets resolves the requested IDs and converts joint angles to pulse
// targets. Angles embed into a full-length vector at their dense indices, so
// untargeted joints ride through the transform as zeros.
func (b *Board) jointTargets(ctx context.Context, angles []float64, servoIDs []int) ([]int, []Target, error) {
	reg, err := b.ensureRegistry(ctx)
	if err != nil {
		return nil, nil, err
	}
	ids := servoIDs
	if ids == nil {
		ids = reg.ids
	}
	if len(angles) != len(ids) {
		return nil, nil, fmt.Errorf("%w: %d angles for %d servos", ErrLengthMismatch, len(angles), len(ids))
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	seq := make([]int, len(ids))
	for k, id := range ids {
		idx := reg.indexOf(id)
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: %d not discovered", ErrInvalidServoID, id)
		}
		seq[k] = idx
	}
	full := make([]float64, len(reg.ids))
	for k, idx := range seq {
		full[idx] = angles[k]
	}
	pulses := applyAffine(reg.j2a, full)

	targets := make([]Target, len(ids))
	for k, idx := range seq {
		targets[k] = Position(uint16(math.Round(pulses[idx])))
	}
	return ids, targets, nil
}

// SendTargets commands raw actuator targets at one shared velocity,
// bypassing the joint transform. Per-servo fields go out in ascending-ID
// order regardless of argument order.
func (b *Board) SendTargets(ctx context.Context, servoIDs []int, targets []Target, velocity int) error {
	if len(servoIDs) != len(targets) {
		return fmt.Errorf("%w: %d targets for %d servos", ErrLengthMismatch, len(targets), len(servoIDs))
	}
	if len(servoIDs) == 0 {
		return nil
	}
	idx := argsortIDs(servoIDs)
	ids := make([]int, len(idx))
	sorted := make([]Target, len(idx))
	for i, j := range idx {
		ids[i] = servoIDs[j]
		sorted[i] = targets[j]
	}
	cmd, err := servoMoveCommand(ids, velocity, sorted)
	if err != nil {
		return err
	}
	_, err = b.exchange(ctx, cmd)
	return err
}

// SendTargetsVelocities commands raw actuator targets with one velocity per
// servo.
func (b *Board) SendTargetsVelocities(ctx context.Context, servoIDs []int, targets []Target, velocities []int) error {
	if len(servoIDs) != len(targets) || len(servoIDs) != len(velocities) {
		return fmt.Errorf("%w: %d servos, %d targets, %d velocities", ErrLengthMismatch, len(servoIDs), len(targets), len(velocities))
	}
	if len(servoIDs) == 0 {
		return nil
	}
	idx := argsortIDs(servoIDs)
	ids := make([]int, len(idx))
	sorted := make([]Target, len(idx))
	vels := make([]int, len(idx))
	for i, j := range idx {
		ids[i] = servoIDs[j]
		sorted[i] = targets[j]
		vels[i] = velocities[j]
	}
	cmd, err := servoMoveVelocitiesCommand(ids, vels, sorted)
	if err != nil {
		return err
	}
	_, err = b.exchange(ctx, cmd)
	return err
}

// Hold locks the given servos at their current positions; with no IDs, all
// discovered servos.
func (b *Board) Hold(ctx context.Context, servoIDs ...int) error {
	return b.sendMode(ctx, servoIDs, Hold())
}

// Free releases torque on the given servos; with no IDs, all discovered
// servos.
func (b *Board) Free(ctx context.Context, servoIDs ...int) error {
	return b.sendMode(ctx, servoIDs, Free())
}

func (b *Board) sendMode(ctx context.Context, servoIDs []int, t Target) error {
	ids, err := b.defaultIDs(ctx, servoIDs)
	if err != nil || len(ids) == 0 {
		return err
	}
	targets := make([]Target, len(ids))
	for i := range targets {
		targets[i] = t
	}
	return b.SendTargets(ctx, ids, targets, DefaultVelocity)
}

// Neutral moves the given servos to the zero joint pose; with nil IDs, all
// discovered servos.
func (b *Board) Neutral(ctx context.Context, servoIDs []int, velocity int) error {
	ids, err := b.defaultIDs(ctx, servoIDs)
	if err != nil || len(ids) == 0 {
		return err
	}
	return b.SendAngleVector(ctx, make([]float64, len(ids)), ids, velocity)
}

// ReferenceVector reads the raw reference pulse per servo, untransformed.
// A nil/empty ID list covers all discovered servos. Reference readings equal
// to FreePulse mark floating servos.
func (b *Board) ReferenceVector(ctx context.Context, servoIDs ...int) ([]uint16, error) {
	return b.readSlot(ctx, slotReference, servoIDs)
}

// ServoErrors reads the raw error field per servo, untransformed.
func (b *Board) ServoErrors(ctx context.Context, servoIDs ...int) ([]uint16, error) {
	return b.readSlot(ctx, slotError, servoIDs)
}

// readSlot serves the raw state-table readers. Any in-range raw ID is
// accepted; slots without a discovered servo read as the table holds them.
func (b *Board) readSlot(ctx context.Context, slot ramSlot, servoIDs []int) ([]uint16, error) {
	ids, err := b.defaultIDs(ctx, servoIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []uint16{}, nil
	}
	for _, id := range ids {
		if id < 0 || id >= scanSlots {
			return nil, fmt.Errorf("%w: %d has no state record", ErrInvalidServoID, id)
		}
	}
	table, err := b.scanServoTable(ctx, slot)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, len(ids))
	for k, id := range ids {
		out[k] = table[id]
	}
	return out, nil
}

// ServoStates returns the IDs currently under active control: discovered
// servos whose reference reading differs from the free sentinel.
func (b *Board) ServoStates(ctx context.Context) ([]int, error) {
	reg, err := b.ensureRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if len(reg.ids) == 0 {
		return []int{}, nil
	}
	refs, err := b.scanServoTable(ctx, slotReference)
	if err != nil {
		return nil, err
	}
	on := make([]int, 0, len(reg.ids))
	for _, id := range reg.ids {
		if refs[id] != FreePulse {
			on = append(on, id)
		}
	}
	return on, nil
}

// SendStretch sets one stretch gain on the given servos; with no IDs, all
// discovered servos. Gains clamp into [1,127].
func (b *Board) SendStretch(ctx context.Context, value int, servoIDs ...int) error {
	ids, err := b.defaultIDs(ctx, servoIDs)
	if err != nil || len(ids) == 0 {
		return err
	}
	values := make([]int, len(ids))
	for i := range values {
		values[i] = value
	}
	return b.SendStretchValues(ctx, values, ids)
}

// SendStretchValues sets per-servo stretch gains, value i applying to servo
// ID i.
func (b *Board) SendStretchValues(ctx context.Context, values []int, servoIDs []int) error {
	ids := servoIDs
	if ids == nil {
		var err error
		if ids, err = b.Discover(ctx); err != nil {
			return err
		}
	}
	if len(values) != len(ids) {
		return fmt.Errorf("%w: %d stretch values for %d servos", ErrLengthMismatch, len(values), len(ids))
	}
	if len(ids) == 0 {
		return nil
	}
	idx := argsortIDs(ids)
	sortedIDs := make([]int, len(idx))
	bytes := make([]byte, len(idx))
	for i, j := range idx {
		sortedIDs[i] = ids[j]
		bytes[i] = stretchByte(values[j])
	}
	cmd, err := servoParamCommand(sortedIDs, ParamStretch, bytes)
	if err != nil {
		return err
	}
	_, err = b.exchange(ctx, cmd)
	return err
}

// ReadStretch reads the stretch gain per servo from the parameter mirror;
// with no IDs, all discovered servos. The mirror stores gains doubled.
func (b *Board) ReadStretch(ctx context.Context, servoIDs ...int) ([]int, error) {
	ids, err := b.defaultIDs(ctx, servoIDs)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(ids))
	for k, id := range ids {
		params, err := b.ServoParams(ctx, id, "stretch_gain")
		if err != nil {
			return nil, err
		}
		out[k] = params["stretch_gain"] / 2
	}
	return out, nil
}

// defaultIDs substitutes the discovered servo set for an absent ID list.
func (b *Board) defaultIDs(ctx context.Context, servoIDs []int) ([]int, error) {
	if servoIDs != nil {
		return servoIDs, nil
	}
	return b.Discover(ctx)
}
