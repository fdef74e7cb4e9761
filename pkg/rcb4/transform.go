package rcb4

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Joint-space to actuator-space scaling. One joint unit is 30 pulses; the
// neutral pose sits at pulse 7500.
const (
	jointScale  = 30
	pulseOffset = 7500
)

// jointToActuatorMatrix builds the (n+1)x(n+1) homogeneous transform for n
// discovered servos: diagonal scale per joint, pulse offset in the
// translation column, 1 in the homogeneous corner.
func jointToActuatorMatrix(n int) *mat.Dense {
	m := mat.NewDense(n+1, n+1, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, jointScale)
		m.Set(i, n, pulseOffset)
	}
	m.Set(n, n, 1)
	return m
}

// actuatorToJointMatrix inverts the joint transform. The matrix is
// upper-triangular with a nonzero diagonal, so inversion only fails on a
// malformed input.
func actuatorToJointMatrix(j2a *mat.Dense) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(j2a); err != nil {
		return nil, fmt.Errorf("invert joint transform: %w", err)
	}
	return &inv, nil
}

// applyAffine maps v through m in homogeneous coordinates and drops the
// trailing component.
func applyAffine(m *mat.Dense, v []float64) []float64 {
	n := len(v)
	h := make([]float64, n+1)
	copy(h, v)
	h[n] = 1

	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(n+1, h))

	res := make([]float64, n)
	for i := 0; i < n; i++ {
		res[i] = out.AtVec(i)
	}
	return res
}
