// Package sketch generates random linear maps that compress an ambient
// dimension m down to a sketch dimension l.
//
// Every column j of a sketch is drawn from its own PCG stream seeded with
// (seed, j). Skipping a column therefore never shifts the values of the
// others, which is what makes sparse-aware generation exact: active columns
// are bit-identical to the fully dense draw and inactive ones are zero.
package sketch

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/iderr"
)

// DefaultDensity is the number of nonzeros per column of a sparse-sign
// sketch when Operator.Density is zero.
const DefaultDensity = 8

// Operator describes how sketches are drawn. The zero value is a dense
// Gaussian operator without sparse-aware generation.
type Operator struct {
	Kind Kind
	// Density is the number of nonzeros per column for SparseSign.
	Density int
	// SparseAware draws only the columns marked active; the rest stay zero.
	SparseAware bool
}

func (o Operator) Validate() error {
	switch o.Kind {
	case Gaussian, SparseSign:
	default:
		return iderr.Invalid("sketch", "unknown kind %d", int(o.Kind))
	}
	if o.Density < 0 {
		return iderr.Invalid("sketch", "density %d must not be negative", o.Density)
	}
	return nil
}

func (o Operator) density(l int) int {
	d := o.Density
	if d == 0 {
		d = DefaultDensity
	}
	return min(d, l)
}

// Sketch is an l x m random map.
type Sketch struct {
	rows, cols int
	kind       Kind

	dense *mat.Dense

	// per-column nonzeros of a sparse-sign sketch
	idx [][]int
	val [][]float64

	drawn int
}

// Generate draws an l x m sketch from seed. active, when non-nil and the
// operator is sparse-aware, must have length m and marks the columns that
// will meet nonzero rows downstream.
func (o Operator) Generate(l, m int, seed uint64, active []bool) (*Sketch, error) {
	const op = "sketch.Generate"
	if l <= 0 || m <= 0 {
		return nil, iderr.Invalid(op, "dimensions %dx%d must be positive", l, m)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if active != nil && len(active) != m {
		return nil, iderr.Invalid(op, "active mask has length %d, want %d", len(active), m)
	}
	if !o.SparseAware {
		active = nil
	}

	s := &Sketch{rows: l, cols: m, kind: o.Kind}
	src := rand.NewPCG(0, 0)
	rng := rand.New(src)

	switch o.Kind {
	case Gaussian:
		s.dense = mat.NewDense(l, m, nil)
		for j := 0; j < m; j++ {
			if active != nil && !active[j] {
				continue
			}
			src.Seed(seed, uint64(j))
			for i := 0; i < l; i++ {
				s.dense.Set(i, j, rng.NormFloat64())
			}
			s.drawn++
		}
	case SparseSign:
		nnz := o.density(l)
		scale := 1 / math.Sqrt(float64(nnz))
		s.idx = make([][]int, m)
		s.val = make([][]float64, m)
		for j := 0; j < m; j++ {
			if active != nil && !active[j] {
				continue
			}
			src.Seed(seed, uint64(j))
			rows := sampleRows(rng, l, nnz)
			vals := make([]float64, nnz)
			for k := range vals {
				if rng.Uint64()&1 == 0 {
					vals[k] = scale
				} else {
					vals[k] = -scale
				}
			}
			s.idx[j] = rows
			s.val[j] = vals
			s.drawn++
		}
	}
	return s, nil
}

// sampleRows picks k distinct values in [0,n) with Floyd's algorithm.
func sampleRows(rng *rand.Rand, n, k int) []int {
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rng.IntN(j + 1)
		for _, v := range out {
			if v == t {
				t = j
				break
			}
		}
		out = append(out, t)
	}
	return out
}

// Dims returns (l, m).
func (s *Sketch) Dims() (int, int) { return s.rows, s.cols }

func (s *Sketch) Kind() Kind { return s.kind }

// Drawn returns the number of columns that were actually generated.
func (s *Sketch) Drawn() int { return s.drawn }

// Dense materializes the sketch as a new l x m matrix.
func (s *Sketch) Dense() *mat.Dense {
	if s.dense != nil {
		return mat.DenseCopyOf(s.dense)
	}
	out := mat.NewDense(s.rows, s.cols, nil)
	for j, rows := range s.idx {
		for k, i := range rows {
			out.Set(i, j, s.val[j][k])
		}
	}
	return out
}

// Apply returns S*U for an m x R matrix U. Sparse-sign sketches cost
// O(nnz(S) * R).
func (s *Sketch) Apply(u mat.Matrix) (*mat.Dense, error) {
	m, r := u.Dims()
	if m != s.cols {
		return nil, iderr.Invalid("sketch.Apply", "operand has %d rows, sketch has %d columns", m, s.cols)
	}
	out := mat.NewDense(s.rows, r, nil)
	if s.dense != nil {
		out.Mul(s.dense, u)
		return out, nil
	}
	src := make([]float64, r)
	for j, rows := range s.idx {
		if len(rows) == 0 {
			continue
		}
		mat.Row(src, j, u)
		for k, i := range rows {
			v := s.val[j][k]
			dst := out.RawRowView(i)
			for c := range dst {
				dst[c] += v * src[c]
			}
		}
	}
	return out, nil
}

// StreamSeed derives an independent seed for stream n (a tensor mode, a
// trial) from a base seed using the splitmix64 finalizer.
func StreamSeed(base uint64, n int) uint64 {
	z := base + uint64(n+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
