package allocation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSingularAllocation is returned when the thruster geometry produces an
	// allocation matrix that cannot be inverted.
	ErrSingularAllocation = errors.New("allocation matrix is singular")
	// ErrNonFinite is returned when a solve produces NaN or infinite forces.
	ErrNonFinite = errors.New("non-finite thruster force")
)

// Wrench is the desired force/torque in the body frame. Marine convention:
// x forward, z down.
type Wrench struct {
	Surge float64 `json:"surge"` // N
	Heave float64 `json:"heave"` // N
	Yaw   float64 `json:"yaw"`   // N·m
}

// Forces is the per-thruster force solution in newtons.
type Forces struct {
	Port      float64 `json:"port"`
	Vertical  float64 `json:"vertical"`
	Starboard float64 `json:"starboard"`
}

// Solver solves A·T = F for the fixed three-thruster layout. The port and
// starboard thrusters push along surge at lateral offsets -d and +d, the
// vertical thruster pushes along heave only:
//
//	| 1  0  1 |
//	| 0  1  0 |
//	|-d  0  d |
type Solver struct {
	offset float64
	a      *mat.Dense
	inv    *mat.Dense
}

// NewSolver builds the allocation matrix for lateral offset d (metres) and
// caches its inverse. A zero or non-finite offset is rejected.
func NewSolver(d float64) (*Solver, error) {
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return nil, fmt.Errorf("%w: thruster offset %v", ErrSingularAllocation, d)
	}

	a := mat.NewDense(3, 3, []float64{
		1, 0, 1,
		0, 1, 0,
		-d, 0, d,
	})

	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularAllocation, err)
	}

	return &Solver{offset: d, a: a, inv: &inv}, nil
}

// Offset returns the lateral thruster offset the solver was built with.
func (s *Solver) Offset() float64 { return s.offset }

// Matrix returns a copy of the allocation matrix.
func (s *Solver) Matrix() *mat.Dense {
	return mat.DenseCopyOf(s.a)
}

// Solve returns the thruster forces that produce w.
func (s *Solver) Solve(w Wrench) (Forces, error) {
	f := mat.NewVecDense(3, []float64{w.Surge, w.Heave, w.Yaw})

	var t mat.VecDense
	t.MulVec(s.inv, f)

	out := Forces{
		Port:      t.AtVec(0),
		Vertical:  t.AtVec(1),
		Starboard: t.AtVec(2),
	}
	for _, v := range []float64{out.Port, out.Vertical, out.Starboard} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Forces{}, fmt.Errorf("%w: wrench %+v", ErrNonFinite, w)
		}
	}
	return out, nil
}

// Apply computes A·T, the wrench a force vector actually produces.
func (s *Solver) Apply(t Forces) Wrench {
	v := mat.NewVecDense(3, []float64{t.Port, t.Vertical, t.Starboard})
	var w mat.VecDense
	w.MulVec(s.a, v)
	return Wrench{Surge: w.AtVec(0), Heave: w.AtVec(1), Yaw: w.AtVec(2)}
}
