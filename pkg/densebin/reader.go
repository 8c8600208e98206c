package densebin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/sys/unix"
	"gonum.org/v1/gonum/mat"
)

type File struct {
	Header  Header
	payload []byte
	data    []byte
	mmapped bool
}

// Open maps a densebin file read-only and validates its header.
// If mmap is unavailable, it falls back to ReadAt-based loading.
// The returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < headerSize || size64 > int64(math.MaxInt) {
		return nil, ErrCorruptFile
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		df, parseErr := parse(data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return df, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return parse(data, false)
}

// OpenReaderAt loads and validates a densebin payload without mmap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < headerSize || size > int64(math.MaxInt) {
		return nil, ErrCorruptFile
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parse(data, false)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

func parse(data []byte, mmapped bool) (*File, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	n, _ := h.PayloadSize()
	if len(data)-headerSize != n {
		return nil, fmt.Errorf("%w: payload is %d bytes, header wants %d", ErrCorruptFile, len(data)-headerSize, n)
	}
	return &File{
		Header:  h,
		payload: data[headerSize:],
		data:    data,
		mmapped: mmapped,
	}, nil
}

// Dims returns the matrix shape.
func (f *File) Dims() (int, int) { return int(f.Header.Rows), int(f.Header.Cols) }

// At decodes a single element straight from the payload.
func (f *File) At(i, j int) float64 {
	r, c := f.Dims()
	if i < 0 || i >= r || j < 0 || j >= c {
		panic(mat.ErrIndexOutOfRange)
	}
	var k int
	if f.Header.Order == RowMajor {
		k = i*c + j
	} else {
		k = j*r + i
	}
	return f.elem(k)
}

// T implements mat.Matrix.
func (f *File) T() mat.Matrix { return mat.Transpose{Matrix: f} }

func (f *File) elem(k int) float64 {
	if f.Header.Width == 4 {
		off := 4 * k
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(f.payload[off : off+4])))
	}
	off := 8 * k
	return math.Float64frombits(binary.LittleEndian.Uint64(f.payload[off : off+8]))
}

// Dense copies the payload into a new row-major matrix.
func (f *File) Dense() *mat.Dense {
	r, c := f.Dims()
	out := make([]float64, r*c)
	for k := range out {
		v := f.elem(k)
		if f.Header.Order == RowMajor {
			out[k] = v
		} else {
			out[(k%r)*c+k/r] = v
		}
	}
	return mat.NewDense(r, c, out)
}

// Close releases file resources and any mmap backing.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.data)
	}
	f.data = nil
	f.payload = nil
	f.mmapped = false
	return err
}

// Read decodes a densebin stream into a new matrix.
func Read(r io.Reader) (*mat.Dense, error) {
	hb := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hb); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorruptFile, err)
	}
	h, err := decodeHeader(hb)
	if err != nil {
		return nil, err
	}
	n, _ := h.PayloadSize()
	// The header is untrusted: grow with the bytes actually read rather
	// than allocating n up front.
	var payload bytes.Buffer
	got, err := io.CopyN(&payload, r, int64(n))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read payload: %v", ErrCorruptFile, err)
	}
	if got != int64(n) {
		return nil, fmt.Errorf("%w: payload is %d bytes, header wants %d", ErrCorruptFile, got, n)
	}
	f := &File{Header: h, payload: payload.Bytes()}
	return f.Dense(), nil
}

// ReadFile opens path and returns its contents as a dense matrix.
func ReadFile(path string) (*mat.Dense, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return f.Dense(), nil
}
