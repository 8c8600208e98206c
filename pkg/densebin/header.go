// Package densebin reads and writes dense real matrices in a small
// little-endian binary container:
//
//	offset size field
//	0      4    magic "DMAT"
//	4      2    version (1)
//	6      1    order (0 row-major, 1 column-major)
//	7      1    element width in bytes (4 or 8)
//	8      8    rows
//	16     8    cols
//	24     8    reserved, zero
//	32     ...  rows*cols elements
package densebin

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	Magic = "DMAT"

	CurrentVersion uint16 = 1

	headerSize = 32
)

type Order uint8

const (
	RowMajor Order = iota
	ColMajor
)

func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColMajor:
		return "col-major"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

type Header struct {
	Version uint16
	Order   Order
	// Width is 4 for float32 payloads and 8 for float64.
	Width uint8
	Rows  uint64
	Cols  uint64
}

// PayloadSize returns the number of payload bytes after the header, or
// false when it does not fit in an int.
func (h Header) PayloadSize() (int, bool) {
	if h.Cols != 0 && h.Rows > math.MaxInt/h.Cols {
		return 0, false
	}
	n := h.Rows * h.Cols
	if n > uint64(math.MaxInt)/uint64(max(h.Width, 1)) {
		return 0, false
	}
	return int(n) * int(h.Width), true
}

func (h Header) validate() error {
	if h.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Order != RowMajor && h.Order != ColMajor {
		return fmt.Errorf("%w: unknown order %d", ErrCorruptFile, h.Order)
	}
	if h.Width != 4 && h.Width != 8 {
		return fmt.Errorf("%w: element width %d", ErrCorruptFile, h.Width)
	}
	if h.Rows == 0 || h.Cols == 0 {
		return fmt.Errorf("%w: empty %dx%d matrix", ErrCorruptFile, h.Rows, h.Cols)
	}
	if _, ok := h.PayloadSize(); !ok {
		return fmt.Errorf("%w: %dx%d payload too large", ErrCorruptFile, h.Rows, h.Cols)
	}
	return nil
}

func encodeHeader(h Header) []byte {
	b := make([]byte, headerSize)
	copy(b[0:4], Magic)
	binary.LittleEndian.PutUint16(b[4:6], h.Version)
	b[6] = byte(h.Order)
	b[7] = h.Width
	binary.LittleEndian.PutUint64(b[8:16], h.Rows)
	binary.LittleEndian.PutUint64(b[16:24], h.Cols)
	return b
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, ErrCorruptFile
	}
	if string(b[0:4]) != Magic {
		return Header{}, ErrInvalidMagic
	}
	h := Header{
		Version: binary.LittleEndian.Uint16(b[4:6]),
		Order:   Order(b[6]),
		Width:   b[7],
		Rows:    binary.LittleEndian.Uint64(b[8:16]),
		Cols:    binary.LittleEndian.Uint64(b[16:24]),
	}
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}
