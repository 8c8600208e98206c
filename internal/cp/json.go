package cp

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
)

// fileTensor is the on-disk JSON layout: factors are lists of rows.
type fileTensor struct {
	Weights []float64     `json:"weights"`
	Factors [][][]float64 `json:"factors"`
}

func (t *Tensor) MarshalJSON() ([]byte, error) {
	ft := fileTensor{
		Weights: t.weights,
		Factors: make([][][]float64, len(t.factors)),
	}
	for n, u := range t.factors {
		rows, cols := u.Dims()
		ft.Factors[n] = make([][]float64, rows)
		for i := 0; i < rows; i++ {
			ft.Factors[n][i] = mat.Row(make([]float64, cols), i, u)
		}
	}
	return json.Marshal(ft)
}

func (t *Tensor) UnmarshalJSON(b []byte) error {
	var ft fileTensor
	if err := json.Unmarshal(b, &ft); err != nil {
		return err
	}
	factors := make([]*mat.Dense, len(ft.Factors))
	for n, rows := range ft.Factors {
		if len(rows) == 0 {
			return fmt.Errorf("cp: factor %d has no rows", n)
		}
		cols := len(rows[0])
		if cols == 0 {
			return fmt.Errorf("cp: factor %d has no columns", n)
		}
		data := make([]float64, 0, len(rows)*cols)
		for i, row := range rows {
			if len(row) != cols {
				return fmt.Errorf("cp: factor %d row %d has %d entries, want %d", n, i, len(row), cols)
			}
			data = append(data, row...)
		}
		factors[n] = mat.NewDense(len(rows), cols, data)
	}
	parsed, err := New(ft.Weights, factors)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// Read decodes a JSON tensor from r.
func Read(r io.Reader) (*Tensor, error) {
	t := new(Tensor)
	if err := json.NewDecoder(r).Decode(t); err != nil {
		return nil, fmt.Errorf("cp: decode tensor: %w", err)
	}
	return t, nil
}

// Write encodes t as JSON to w.
func Write(w io.Writer, t *Tensor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}
