package snorm

import (
	"fmt"
	"strings"

	"github.com/samcharles93/cpid/internal/iderr"
)

// Init selects how the per-mode estimate vectors are seeded.
type Init int

const (
	// FirstColumn starts every mode from the first factor column.
	FirstColumn Init = iota
	// Mean starts every mode from the mean of the factor columns.
	Mean
)

func (i Init) String() string {
	switch i {
	case FirstColumn:
		return "first-column"
	case Mean:
		return "mean"
	default:
		return fmt.Sprintf("Init(%d)", int(i))
	}
}

func ParseInit(s string) (Init, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first-column", "first":
		return FirstColumn, nil
	case "mean", "average":
		return Mean, nil
	default:
		return 0, iderr.Invalid("snorm.ParseInit", "unknown init policy %q", s)
	}
}

func (i Init) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *Init) UnmarshalText(b []byte) error {
	parsed, err := ParseInit(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
