package refjson

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Number is a JSON number carried as its literal text. Marshal emits the
// literal verbatim and Unmarshal captures number tokens into it, so values
// that do not fit a float64 survive a round trip undamaged. Number is a
// leaf: it never participates in identity tracking.
type Number string

// String returns the literal text of the number.
func (n Number) String() string { return string(n) }

// IsInt reports whether the literal carries no fraction or exponent part.
func (n Number) IsInt() bool {
	if len(n) == 0 {
		return false
	}
	for i := 0; i < len(n); i++ {
		switch n[i] {
		case '.', 'e', 'E':
			return false
		}
	}
	return true
}

// Int64 returns the number as an int64.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Uint64 returns the number as a uint64.
func (n Number) Uint64() (uint64, error) {
	return strconv.ParseUint(string(n), 10, 64)
}

// Float64 returns the number as a float64.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Validate reports whether the literal is a well-formed JSON number token.
func (n Number) Validate() error {
	d := jx.DecodeStr(string(n))
	if d.Next() != jx.Number {
		return errors.Errorf("refjson: %q is not a JSON number", string(n))
	}
	if _, err := d.Num(); err != nil {
		return errors.Wrap(err, "refjson: number")
	}
	return nil
}

// MarshalJSON emits the literal verbatim, validating it first so a
// hand-built Number cannot corrupt the output stream.
func (n Number) MarshalJSON() ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return []byte(n), nil
}

// UnmarshalJSON captures a number token; any other token is rejected.
func (n *Number) UnmarshalJSON(data []byte) error {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Number {
		return errors.Errorf("refjson: cannot unmarshal %s into Number", d.Next())
	}
	num, err := d.Num()
	if err != nil {
		return errors.Wrap(err, "refjson: number")
	}
	*n = Number(num.String())
	return nil
}
