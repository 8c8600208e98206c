package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/cpid/internal/decomp"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/snorm"
	"github.com/samcharles93/cpid/internal/synth"
)

func TestTensorReportRoundTrip(t *testing.T) {
	t.Parallel()
	tensor, err := synth.CP(1, synth.CPOptions{Dims: []int{5, 6}, Weights: []float64{4, 2, 1, 0.5}})
	if err != nil {
		t.Fatalf("synth: %v", err)
	}
	cfg := decomp.Config{Rank: 2, Seed: 3}
	ctx := logger.WithContext(context.Background(), logger.Nop())
	res, err := decomp.Tensor(ctx, tensor, cfg)
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	rel := 0.125
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Tensor(res, cfg, tensor.Dims(), &rel, now)

	var buf bytes.Buffer
	if err := Write(&buf, r); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, want := range []string{`"kind": "tensor"`, `"strategy": "column-pivoted-qr"`, `"sketch_dim": 7`, `"relative_error": 0.125`} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %s in report:\n%s", want, buf.String())
		}
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := uuid.Parse(got.RunID); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", got.RunID, err)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, now)
	}
	if got.Result == nil || len(got.Result.Selected) != 2 || got.Result.Returned != 2 {
		t.Fatalf("unexpected result block: %+v", got.Result)
	}
	if len(got.Result.Weights) != 2 {
		t.Fatalf("weights = %v", got.Result.Weights)
	}
}

func TestMatrixReportOmitsTensorFields(t *testing.T) {
	t.Parallel()
	a, err := synth.LowRank(2, 12, 9, 3, 0)
	if err != nil {
		t.Fatalf("synth: %v", err)
	}
	cfg := decomp.Config{Rank: 3}
	res, err := decomp.Matrix(logger.WithContext(context.Background(), logger.Nop()), a, cfg)
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, Matrix(res, cfg, time.Now())); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "relative_error") || strings.Contains(out, "weights") {
		t.Fatalf("matrix report should not carry tensor fields:\n%s", out)
	}
	if !strings.Contains(out, `"input_dims": [`) {
		t.Fatalf("missing input dims:\n%s", out)
	}
}

func TestSNormReportCarriesWarning(t *testing.T) {
	t.Parallel()
	res := &snorm.Result{Norm: 2.5, Iterations: 3, Delta: 0.1}
	opts := snorm.Options{MaxIter: 3}.WithDefaults()
	r := SNormRun(res, opts, []int{4, 4}, time.Millisecond, time.Now())
	if r.SNorm == nil {
		t.Fatal("missing snorm block")
	}
	if r.SNorm.Warning == "" || !strings.Contains(r.SNorm.Warning, "no convergence") {
		t.Fatalf("warning = %q", r.SNorm.Warning)
	}
	if r.SNorm.Tol != snorm.DefaultTol || r.SNorm.Init != "first-column" {
		t.Fatalf("unexpected options echo: %+v", r.SNorm)
	}
	if r.ElapsedMS != 1 {
		t.Fatalf("elapsed_ms = %v", r.ElapsedMS)
	}
}
