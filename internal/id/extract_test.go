package id

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/iderr"
	"github.com/samcharles93/cpid/internal/linalg"
	"github.com/samcharles93/cpid/internal/synth"
)

func gaussian(seed uint64, r, c int) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, 0))
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, rng.NormFloat64())
		}
	}
	return m
}

func requireValidIndices(t *testing.T, j []int, n int) {
	t.Helper()
	seen := map[int]bool{}
	for _, v := range j {
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, n)
		require.False(t, seen[v], "duplicate index %d", v)
		seen[v] = true
	}
}

func TestExactWhenNoTruncation(t *testing.T) {
	t.Parallel()
	y := gaussian(1, 6, 4)
	for _, s := range []Strategy{ColumnPivotedQR, StrongRRQR} {
		res, err := Extract(y, 4, Options{Strategy: s})
		require.NoError(t, err)
		require.Equal(t, 4, res.K())
		require.False(t, res.Clamped)
		ratio, err := linalg.ResidualRatio(y, res.J, res.P)
		require.NoError(t, err)
		require.Less(t, ratio, 1e-12, "strategy %v", s)
	}
}

func TestIndicesDistinctAndInRange(t *testing.T) {
	t.Parallel()
	for seed := uint64(0); seed < 20; seed++ {
		y := gaussian(seed, 8, 25)
		for _, s := range []Strategy{ColumnPivotedQR, StrongRRQR} {
			res, err := Extract(y, 5, Options{Strategy: s})
			require.NoError(t, err)
			require.Equal(t, 5, res.K())
			requireValidIndices(t, res.J, 25)
			r, c := res.P.Dims()
			require.Equal(t, 5, r)
			require.Equal(t, 25, c)
			for i, j := range res.J {
				require.Equal(t, 1.0, res.P.At(i, j))
			}
		}
	}
}

func TestRankClampOnDeficientSketch(t *testing.T) {
	t.Parallel()
	y, err := synth.LowRank(4, 6, 10, 2, 0)
	require.NoError(t, err)
	for _, s := range []Strategy{ColumnPivotedQR, StrongRRQR} {
		res, err := Extract(y, 4, Options{Strategy: s})
		require.NoError(t, err)
		require.Equal(t, 2, res.K(), "strategy %v", s)
		require.Equal(t, 2, res.Rank)
		require.Equal(t, 4, res.Requested)
		require.True(t, res.Clamped)
		ratio, err := linalg.ResidualRatio(y, res.J, res.P)
		require.NoError(t, err)
		require.Less(t, ratio, 1e-10)
	}
}

func TestRankEqualsSketchDimension(t *testing.T) {
	t.Parallel()
	y := gaussian(3, 4, 12)
	res, err := Extract(y, 4, Options{})
	require.NoError(t, err)
	require.Equal(t, 4, res.K())
	// With k = l the selected columns span the whole sketch space.
	ratio, err := linalg.ResidualRatio(y, res.J, res.P)
	require.NoError(t, err)
	require.Less(t, ratio, 1e-10)
}

func TestStrongPathBoundsInterpolation(t *testing.T) {
	t.Parallel()
	y := gaussian(9, 10, 60)
	res, err := Extract(y, 6, Options{Strategy: StrongRRQR, Factor: 1.2})
	require.NoError(t, err)
	r, c := res.P.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			require.LessOrEqual(t, math.Abs(res.P.At(i, j)), 1.2+1e-9)
		}
	}
}

func TestFewerColumnsThanRank(t *testing.T) {
	t.Parallel()
	y := gaussian(5, 6, 3)
	res, err := Extract(y, 5, Options{})
	require.NoError(t, err)
	require.Equal(t, 3, res.K())
	require.True(t, res.Clamped)
}

func TestExtractContractViolations(t *testing.T) {
	t.Parallel()
	y := gaussian(1, 3, 5)
	_, err := Extract(y, 4, Options{})
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
	_, err = Extract(y, 0, Options{})
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
	_, err = Extract(nil, 1, Options{})
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
	_, err = Extract(y, 2, Options{Strategy: Strategy(7)})
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
	_, err = Extract(y, 2, Options{Strategy: StrongRRQR, Factor: 0.5})
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
}

func TestZeroSketchIsInstability(t *testing.T) {
	t.Parallel()
	_, err := Extract(mat.NewDense(3, 4, nil), 2, Options{})
	require.ErrorIs(t, err, iderr.ErrNumericalInstability)
	var ie *iderr.InstabilityError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, 0, ie.Rank)
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()
	s, err := ParseStrategy("strong-rrqr")
	require.NoError(t, err)
	require.Equal(t, StrongRRQR, s)
	s, err = ParseStrategy("column-pivoted-qr")
	require.NoError(t, err)
	require.Equal(t, ColumnPivotedQR, s)
	_, err = ParseStrategy("svd")
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)

	b, err := StrongRRQR.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "strong-rrqr", string(b))
}

func BenchmarkExtract(b *testing.B) {
	y := gaussian(1, 40, 2000)
	for _, s := range []Strategy{ColumnPivotedQR, StrongRRQR} {
		b.Run(s.String(), func(b *testing.B) {
			for b.Loop() {
				_, _ = Extract(y, 32, Options{Strategy: s})
			}
		})
	}
}
