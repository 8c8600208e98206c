package decomp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/id"
	"github.com/samcharles93/cpid/internal/iderr"
	"github.com/samcharles93/cpid/internal/linalg"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/sketch"
	"github.com/samcharles93/cpid/internal/synth"
)

func quiet() context.Context {
	return logger.WithContext(context.Background(), logger.Nop())
}

// lsResidual is the best relative error achievable on y using columns j.
func lsResidual(t *testing.T, y *mat.Dense, j []int) float64 {
	t.Helper()
	yj, err := linalg.SelectColumns(y, j)
	require.NoError(t, err)
	var p mat.Dense
	require.NoError(t, p.Solve(yj, y))
	ratio, err := linalg.ResidualRatio(y, j, &p)
	require.NoError(t, err)
	return ratio
}

func TestTensorSelectsDominantComponents(t *testing.T) {
	t.Parallel()
	const trials = 200
	pairs := [][]int{{0, 1}, {0, 2}, {1, 2}}
	var idSum, randomSum float64
	picked := make([]int, 3)
	for trial := uint64(0); trial < trials; trial++ {
		tensor, err := synth.CP(trial, synth.CPOptions{Dims: []int{5, 5}, Weights: []float64{5, 3, 1}})
		require.NoError(t, err)
		res, err := Tensor(quiet(), tensor, Config{
			Rank:      2,
			SketchDim: 3,
			Strategy:  id.ColumnPivotedQR,
			Seed:      1000 + trial,
		})
		require.NoError(t, err)
		require.Len(t, res.ID.J, 2)
		require.Equal(t, 2, res.Tensor.Rank())
		for _, j := range res.ID.J {
			picked[j]++
		}
		idSum += res.SketchResidual

		// Expected residual of a uniformly random pair.
		var avg float64
		for _, p := range pairs {
			avg += lsResidual(t, res.Sketch, p)
		}
		randomSum += avg / float64(len(pairs))
	}
	require.Less(t, idSum/trials, randomSum/trials)
	require.Greater(t, picked[0], picked[2])
	require.Greater(t, picked[1], picked[2])
}

func TestOversamplingDoesNotHurt(t *testing.T) {
	t.Parallel()
	const trials = 30
	weights := synth.GeometricWeights(20, 1, 0.7)
	meanErr := func(l int) float64 {
		var sum float64
		for trial := uint64(0); trial < trials; trial++ {
			tensor, err := synth.CP(trial, synth.CPOptions{Dims: []int{30, 30}, Weights: weights})
			require.NoError(t, err)
			res, err := Tensor(quiet(), tensor, Config{Rank: 5, SketchDim: l, Seed: 77 + trial})
			require.NoError(t, err)
			e, err := res.RelativeError(tensor)
			require.NoError(t, err)
			sum += e
		}
		return sum / trials
	}
	require.LessOrEqual(t, meanErr(15), meanErr(5))
}

func TestTensorExactWhenRankCoversComponents(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(3, synth.CPOptions{Dims: []int{6, 7, 4}, Weights: []float64{4, 2, 1, 0.5}})
	require.NoError(t, err)
	for _, kind := range []sketch.Kind{sketch.Gaussian, sketch.SparseSign} {
		res, err := Tensor(quiet(), tensor, Config{
			Rank:     4,
			Strategy: id.StrongRRQR,
			Sketch:   sketch.Operator{Kind: kind},
			Seed:     9,
		})
		require.NoError(t, err)
		e, err := res.RelativeError(tensor)
		require.NoError(t, err)
		require.Less(t, e, 1e-6, "sketch %v", kind)
	}
}

func TestTensorIsDeterministic(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(5, synth.CPOptions{Dims: []int{10, 8, 6}, Weights: synth.GeometricWeights(12, 1, 0.8)})
	require.NoError(t, err)
	cfg := Config{Rank: 4, SketchDim: 8, Seed: 42, Workers: 3}
	a, err := Tensor(quiet(), tensor, cfg)
	require.NoError(t, err)
	cfg.Workers = 1
	b, err := Tensor(quiet(), tensor, cfg)
	require.NoError(t, err)
	require.Equal(t, a.ID.J, b.ID.J)
	require.True(t, mat.Equal(a.Sketch, b.Sketch))
	require.Equal(t, a.Tensor.Weights(), b.Tensor.Weights())
}

func TestTensorLeavesInputUnmodified(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(8, synth.CPOptions{Dims: []int{5, 6}, Weights: []float64{3, 2, 1, 1}})
	require.NoError(t, err)
	before := tensor.Clone()
	_, err = Tensor(quiet(), tensor, Config{Rank: 2, Seed: 1})
	require.NoError(t, err)
	require.Equal(t, before.Weights(), tensor.Weights())
	for n := 0; n < tensor.Modes(); n++ {
		require.True(t, mat.Equal(before.Factor(n), tensor.Factor(n)))
	}
}

func TestTensorRejectsBadConfig(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(1, synth.CPOptions{Dims: []int{4, 4}, Weights: []float64{1, 1, 1}})
	require.NoError(t, err)
	for _, cfg := range []Config{
		{Rank: 0},
		{Rank: 3, SketchDim: 2},
		{Rank: 2, SketchDim: -1},
		{Rank: 2, Strategy: id.Strategy(9)},
		{Rank: 2, Factor: 0.5},
		{Rank: 2, Sketch: sketch.Operator{Kind: sketch.Kind(5)}},
	} {
		_, err := Tensor(quiet(), tensor, cfg)
		require.ErrorIs(t, err, iderr.ErrInvalidArgument, "config %+v", cfg)
	}
	_, err = Tensor(quiet(), nil, Config{Rank: 1})
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
}

func TestMatrixRecoversLowRank(t *testing.T) {
	t.Parallel()
	a, err := synth.LowRank(11, 40, 30, 3, 0)
	require.NoError(t, err)
	res, err := Matrix(quiet(), a, Config{Rank: 3, SketchDim: 8, Seed: 5})
	require.NoError(t, err)
	rows, cols := res.Columns.Dims()
	require.Equal(t, 40, rows)
	require.Equal(t, 3, cols)

	var diff mat.Dense
	diff.Sub(a, res.Reconstruct())
	require.Less(t, mat.Norm(&diff, 2)/mat.Norm(a, 2), 1e-8)
}

func TestMatrixClampsRank(t *testing.T) {
	t.Parallel()
	a, err := synth.LowRank(12, 20, 15, 2, 0)
	require.NoError(t, err)
	res, err := Matrix(quiet(), a, Config{Rank: 4, SketchDim: 6, Seed: 2})
	require.NoError(t, err)
	require.True(t, res.ID.Clamped)
	require.Equal(t, 2, res.ID.K())
	require.Equal(t, 4, res.ID.Requested)
}

func TestZeroTensorIsInstability(t *testing.T) {
	t.Parallel()
	tensor, err := cp.New([]float64{0, 0}, []*mat.Dense{mat.NewDense(3, 2, nil), mat.NewDense(4, 2, nil)})
	require.NoError(t, err)
	_, err = Tensor(quiet(), tensor, Config{Rank: 1})
	require.ErrorIs(t, err, iderr.ErrNumericalInstability)
}

func TestAssembleTensorWeights(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(4, synth.CPOptions{Dims: []int{3, 4}, Weights: []float64{2, 3, 5}})
	require.NoError(t, err)
	p := mat.NewDense(2, 3, []float64{
		1, 0.5, 0,
		0, 0.25, 1,
	})
	out, err := AssembleTensor(tensor, []int{0, 2}, p)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{2 * 1.5, 5 * 1.25}, out.Weights(), 1e-15)
	for n := 0; n < 2; n++ {
		require.Equal(t, mat.Col(nil, 2, tensor.Factor(n)), mat.Col(nil, 1, out.Factor(n)))
	}
}

func TestAssembleRejectsContractViolations(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(4, synth.CPOptions{Dims: []int{3, 4}, Weights: []float64{2, 3, 5}})
	require.NoError(t, err)
	p := mat.NewDense(2, 3, nil)
	_, err = AssembleTensor(tensor, []int{1, 1}, p)
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
	_, err = AssembleTensor(tensor, []int{0, 3}, p)
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
	_, err = AssembleTensor(tensor, []int{0}, p)
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
	_, err = AssembleMatrix(mat.NewDense(3, 3, nil), []int{0, 1}, mat.NewDense(2, 4, nil))
	require.ErrorIs(t, err, iderr.ErrInvalidArgument)
}

func BenchmarkTensor(b *testing.B) {
	tensor, err := synth.CP(1, synth.CPOptions{Dims: []int{200, 150, 100}, Weights: synth.GeometricWeights(64, 1, 0.95)})
	if err != nil {
		b.Fatal(err)
	}
	ctx := quiet()
	for _, kind := range []sketch.Kind{sketch.Gaussian, sketch.SparseSign} {
		b.Run(kind.String(), func(b *testing.B) {
			cfg := Config{Rank: 16, Sketch: sketch.Operator{Kind: kind}, Seed: 3}
			for b.Loop() {
				if _, err := Tensor(ctx, tensor, cfg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
