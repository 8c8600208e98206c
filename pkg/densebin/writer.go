package densebin

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

type WriteOptions struct {
	Order Order
	// Width is 4 or 8; zero selects 8.
	Width uint8
}

// Write encodes m to w.
func Write(w io.Writer, m mat.Matrix, opts WriteOptions) error {
	if m == nil {
		return errors.New("densebin: nil matrix")
	}
	if opts.Width == 0 {
		opts.Width = 8
	}
	r, c := m.Dims()
	h := Header{
		Version: CurrentVersion,
		Order:   opts.Order,
		Width:   opts.Width,
		Rows:    uint64(r),
		Cols:    uint64(c),
	}
	if err := h.validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(encodeHeader(h)); err != nil {
		return err
	}
	var elem [8]byte
	put := func(v float64) error {
		if h.Width == 4 {
			binary.LittleEndian.PutUint32(elem[:4], math.Float32bits(float32(v)))
			_, err := bw.Write(elem[:4])
			return err
		}
		binary.LittleEndian.PutUint64(elem[:], math.Float64bits(v))
		_, err := bw.Write(elem[:])
		return err
	}
	if h.Order == RowMajor {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if err := put(m.At(i, j)); err != nil {
					return err
				}
			}
		}
	} else {
		for j := 0; j < c; j++ {
			for i := 0; i < r; i++ {
				if err := put(m.At(i, j)); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// WriteFile creates path and writes m to it.
func WriteFile(path string, m mat.Matrix, opts WriteOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, m, opts)
}
