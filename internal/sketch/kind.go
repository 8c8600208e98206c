package sketch

import (
	"fmt"
	"strings"

	"github.com/samcharles93/cpid/internal/iderr"
)

// Kind selects the sketch family.
type Kind int

const (
	// Gaussian draws i.i.d. standard normal entries.
	Gaussian Kind = iota
	// SparseSign places a fixed number of ±1/sqrt(s) entries per column.
	SparseSign
)

func (k Kind) String() string {
	switch k {
	case Gaussian:
		return "gaussian"
	case SparseSign:
		return "sparse-sign"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts "gaussian" and "sparse-sign" (also "sparse").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gaussian", "gauss":
		return Gaussian, nil
	case "sparse-sign", "sparse", "sparse_sign":
		return SparseSign, nil
	default:
		return 0, iderr.Invalid("sketch.ParseKind", "unknown sketch kind %q", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
