package allocation

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewSolver_RejectsSingularGeometry(t *testing.T) {
	for _, d := range []float64{0, math.NaN(), math.Inf(1), math.Inf(-1)} {
		s, err := NewSolver(d)
		assert.Nil(t, s, "d=%v", d)
		assert.True(t, errors.Is(err, ErrSingularAllocation), "d=%v: got %v", d, err)
	}
}

func TestNewSolver_FullRank(t *testing.T) {
	for _, d := range []float64{0.045, -0.045, 1e-3, 0.5, 2} {
		s, err := NewSolver(d)
		require.NoError(t, err, "d=%v", d)
		assert.NotZero(t, mat.Det(s.Matrix()), "d=%v", d)
		assert.Equal(t, d, s.Offset())
	}
}

func TestSolver_SurgeOnlySplitsEvenly(t *testing.T) {
	s, err := NewSolver(0.045)
	require.NoError(t, err)

	f, err := s.Solve(Wrench{Surge: 4})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, f.Port, 1e-12)
	assert.InDelta(t, 0.0, f.Vertical, 1e-12)
	assert.InDelta(t, 2.0, f.Starboard, 1e-12)
}

func TestSolver_MatchesClosedForm(t *testing.T) {
	const d = 0.045
	s, err := NewSolver(d)
	require.NoError(t, err)

	w := Wrench{Surge: 1.2, Heave: -3, Yaw: 0.3}
	f, err := s.Solve(w)
	require.NoError(t, err)

	// A⁻¹ = [[1/2, 0, -1/2d], [0, 1, 0], [1/2, 0, 1/2d]]
	assert.InDelta(t, w.Surge/2-w.Yaw/(2*d), f.Port, 1e-9)
	assert.InDelta(t, w.Heave, f.Vertical, 1e-12)
	assert.InDelta(t, w.Surge/2+w.Yaw/(2*d), f.Starboard, 1e-9)
}

func TestSolver_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, d := range []float64{0.045, 0.2, -0.1} {
		s, err := NewSolver(d)
		require.NoError(t, err)

		for i := 0; i < 200; i++ {
			want := Forces{
				Port:      rng.Float64()*40 - 20,
				Vertical:  rng.Float64()*40 - 20,
				Starboard: rng.Float64()*40 - 20,
			}
			got, err := s.Solve(s.Apply(want))
			require.NoError(t, err)
			assert.InDelta(t, want.Port, got.Port, 1e-9)
			assert.InDelta(t, want.Vertical, got.Vertical, 1e-9)
			assert.InDelta(t, want.Starboard, got.Starboard, 1e-9)
		}
	}
}

func TestSolver_NonFiniteWrench(t *testing.T) {
	s, err := NewSolver(0.045)
	require.NoError(t, err)

	_, err = s.Solve(Wrench{Surge: math.NaN()})
	assert.ErrorIs(t, err, ErrNonFinite)

	_, err = s.Solve(Wrench{Yaw: math.Inf(1)})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestSolver_MatrixIsCopy(t *testing.T) {
	s, err := NewSolver(0.045)
	require.NoError(t, err)

	m := s.Matrix()
	m.Set(2, 0, 0)
	m.Set(2, 2, 0)

	f, err := s.Solve(Wrench{Surge: 4})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, f.Port, 1e-12)
}
