package snorm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/iderr"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/synth"
)

func quiet(o Options) Options {
	o.Log = logger.Nop()
	return o
}

func identityTensor(t *testing.T, weights []float64, modes int) *cp.Tensor {
	t.Helper()
	r := len(weights)
	factors := make([]*mat.Dense, modes)
	for n := range factors {
		u := mat.NewDense(r+n, r, nil)
		for c := 0; c < r; c++ {
			u.Set(c, c, 1)
		}
		factors[n] = u
	}
	tensor, err := cp.New(weights, factors)
	require.NoError(t, err)
	return tensor
}

func topSingularValue(t *testing.T, tensor *cp.Tensor) float64 {
	t.Helper()
	var svd mat.SVD
	require.True(t, svd.Factorize(tensor.Unfold(), mat.SVDNone))
	return svd.Values(nil)[0]
}

func TestRankOneIsExact(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(1, synth.CPOptions{Dims: []int{4, 5, 3}, Weights: []float64{3}})
	require.NoError(t, err)
	for _, policy := range []Init{FirstColumn, Mean} {
		res, err := Estimate(tensor, quiet(Options{Init: policy}))
		require.NoError(t, err)
		require.True(t, res.Converged)
		require.NoError(t, res.Warning())
		require.InDelta(t, 3, res.Norm, 1e-10)
	}
}

func TestOrthogonalFactorsMeanInit(t *testing.T) {
	t.Parallel()
	tensor := identityTensor(t, []float64{2, 5, 1}, 3)
	res, err := Estimate(tensor, quiet(Options{Init: Mean, Tol: 1e-12, MaxIter: 500}))
	require.NoError(t, err)
	require.True(t, res.Converged)
	require.InDelta(t, 5, res.Norm, 1e-8)
}

func TestFirstColumnInitCanStall(t *testing.T) {
	t.Parallel()
	// e_0 is a fixed point for orthogonal factors, so the first component
	// is returned even though it is not the largest.
	tensor := identityTensor(t, []float64{2, 5, 1}, 3)
	res, err := Estimate(tensor, quiet(Options{Init: FirstColumn}))
	require.NoError(t, err)
	require.True(t, res.Converged)
	require.InDelta(t, 2, res.Norm, 1e-12)
}

func TestMatchesTopSingularValueForMatrices(t *testing.T) {
	t.Parallel()
	for seed := uint64(0); seed < 5; seed++ {
		tensor, err := synth.CP(seed, synth.CPOptions{Dims: []int{12, 9}, Weights: synth.GeometricWeights(6, 4, 0.5)})
		require.NoError(t, err)
		want := topSingularValue(t, tensor)
		res, err := Estimate(tensor, quiet(Options{Init: Mean, Tol: 1e-13, MaxIter: 5000}))
		require.NoError(t, err)
		require.True(t, res.Converged)
		require.InDelta(t, want, res.Norm, 1e-6*want, "seed %d", seed)
	}
}

func TestNeverExceedsFrobeniusNorm(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(21, synth.CPOptions{Dims: []int{6, 5, 4}, Weights: synth.GeometricWeights(8, 1, 0.8)})
	require.NoError(t, err)
	res, err := Estimate(tensor, quiet(Options{Init: Mean}))
	require.NoError(t, err)
	require.LessOrEqual(t, res.Norm, tensor.Norm()*(1+1e-12))
	require.Greater(t, res.Norm, 0.0)
}

func TestScaleConsistency(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(7, synth.CPOptions{Dims: []int{6, 7, 5}, Weights: synth.GeometricWeights(5, 2, 0.6)})
	require.NoError(t, err)
	opts := quiet(Options{Init: Mean, Tol: 1e-12, MaxIter: 1000})
	base, err := Estimate(tensor, opts)
	require.NoError(t, err)
	const c = 3.5
	scaled, err := Estimate(tensor.Scaled(c), opts)
	require.NoError(t, err)
	require.InDelta(t, c*base.Norm, scaled.Norm, 1e-9)
}

func TestIterationCapIsAWarning(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(3, synth.CPOptions{Dims: []int{8, 8, 8}, Weights: synth.GeometricWeights(6, 1, 0.9)})
	require.NoError(t, err)
	res, err := Estimate(tensor, quiet(Options{Tol: 1e-15, MaxIter: 1}))
	require.NoError(t, err)
	require.False(t, res.Converged)
	require.Equal(t, 1, res.Iterations)
	require.False(t, math.IsNaN(res.Norm))

	warn := res.Warning()
	require.ErrorIs(t, warn, iderr.ErrNonConvergence)
	var ce *iderr.ConvergenceError
	require.ErrorAs(t, warn, &ce)
	require.Equal(t, 1, ce.Iterations)
	require.Equal(t, res.Norm, ce.Estimate)
}

func TestRunToCapPerformsEverySweep(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(1, synth.CPOptions{Dims: []int{4, 5, 3}, Weights: []float64{3}})
	require.NoError(t, err)

	early, err := Estimate(tensor, quiet(Options{MaxIter: 40}))
	require.NoError(t, err)
	require.Less(t, early.Iterations, 40)

	full, err := Estimate(tensor, quiet(Options{MaxIter: 40, RunToCap: true}))
	require.NoError(t, err)
	require.Equal(t, 40, full.Iterations)
	require.True(t, full.Converged)
	require.NoError(t, full.Warning())
	require.InDelta(t, early.Norm, full.Norm, 1e-10)

	// A tolerance no sweep can meet leaves the run unconverged.
	strict, err := Estimate(tensor, quiet(Options{Tol: 1e-300, MaxIter: 5, RunToCap: true}))
	require.NoError(t, err)
	require.Equal(t, 5, strict.Iterations)
	if strict.Delta >= 1e-300 {
		require.False(t, strict.Converged)
		require.ErrorIs(t, strict.Warning(), iderr.ErrNonConvergence)
	}
}

func TestZeroTensor(t *testing.T) {
	t.Parallel()
	tensor, err := cp.New([]float64{1, 1}, []*mat.Dense{mat.NewDense(3, 2, nil), mat.NewDense(2, 2, nil)})
	require.NoError(t, err)
	res, err := Estimate(tensor, quiet(Options{}))
	require.NoError(t, err)
	require.Equal(t, 0.0, res.Norm)
}

func TestSingleMode(t *testing.T) {
	t.Parallel()
	u := mat.NewDense(2, 2, []float64{3, 0, 0, 4})
	tensor, err := cp.New([]float64{1, 1}, []*mat.Dense{u})
	require.NoError(t, err)
	res, err := Estimate(tensor, quiet(Options{}))
	require.NoError(t, err)
	require.InDelta(t, 5, res.Norm, 1e-12)
}

func TestRejectsInvalidOptions(t *testing.T) {
	t.Parallel()
	tensor := identityTensor(t, []float64{1, 2}, 2)
	for _, o := range []Options{
		{Tol: -1},
		{Tol: math.NaN()},
		{MaxIter: -3},
		{Init: Init(4)},
	} {
		_, err := Estimate(tensor, quiet(o))
		require.ErrorIs(t, err, iderr.ErrInvalidArgument)
	}
	_, err := Estimate(nil, Options{})
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
}

func TestParseInit(t *testing.T) {
	t.Parallel()
	i, err := ParseInit("mean")
	require.NoError(t, err)
	require.Equal(t, Mean, i)
	i, err = ParseInit("")
	require.NoError(t, err)
	require.Equal(t, FirstColumn, i)
	_, err = ParseInit("random")
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)

	var got Init
	require.NoError(t, got.UnmarshalText([]byte("first-column")))
	require.Equal(t, FirstColumn, got)
}

func BenchmarkEstimate(b *testing.B) {
	tensor, err := synth.CP(1, synth.CPOptions{Dims: []int{300, 200, 100}, Weights: synth.GeometricWeights(50, 1, 0.9)})
	if err != nil {
		b.Fatal(err)
	}
	opts := Options{Init: Mean, Log: logger.Nop()}
	for b.Loop() {
		if _, err := Estimate(tensor, opts); err != nil {
			b.Fatal(err)
		}
	}
}
