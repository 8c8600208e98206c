package id

import (
	"fmt"
	"strings"

	"github.com/samcharles93/cpid/internal/iderr"
)

// Strategy selects the rank-revealing factorization.
type Strategy int

const (
	// ColumnPivotedQR is the fast path without an entry bound on P.
	ColumnPivotedQR Strategy = iota
	// StrongRRQR bounds every entry of P by the strong RRQR factor.
	StrongRRQR
)

func (s Strategy) String() string {
	switch s {
	case ColumnPivotedQR:
		return "column-pivoted-qr"
	case StrongRRQR:
		return "strong-rrqr"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "column-pivoted-qr", "cpqr", "qr":
		return ColumnPivotedQR, nil
	case "strong-rrqr", "srrqr", "rrqr":
		return StrongRRQR, nil
	default:
		return 0, iderr.Invalid("id.ParseStrategy", "unknown strategy %q", s)
	}
}

func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Strategy) UnmarshalText(b []byte) error {
	parsed, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
