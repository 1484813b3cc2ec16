// Package bands resolves amount bands: piecewise lookups from a monetary
// amount to a configured classification such as extension days or a reason
// label.
package bands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ErrMisconfigured is returned for empty, mismatched or unordered band tables.
// Callers surface it as a configuration error instead of guessing.
var ErrMisconfigured = errors.New("amount band misconfigured")

// Band pairs strictly increasing thresholds with one value per threshold.
type Band struct {
	Thresholds []decimal.Decimal
	Values     []string
}

// Validate checks the table shape.
func (b Band) Validate() error {
	if len(b.Thresholds) == 0 || len(b.Values) == 0 {
		return fmt.Errorf("%w: empty table", ErrMisconfigured)
	}
	if len(b.Thresholds) != len(b.Values) {
		return fmt.Errorf("%w: %d thresholds but %d values", ErrMisconfigured, len(b.Thresholds), len(b.Values))
	}
	for i := 1; i < len(b.Thresholds); i++ {
		if !b.Thresholds[i].GreaterThan(b.Thresholds[i-1]) {
			return fmt.Errorf("%w: thresholds not strictly increasing at %d", ErrMisconfigured, i)
		}
	}
	return nil
}

// Resolve returns the value of the highest threshold amount meets or exceeds.
// Amounts below the first threshold resolve to the first value.
func (b Band) Resolve(amount decimal.Decimal) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}

	idx := 0
	for i, t := range b.Thresholds {
		if amount.LessThan(t) {
			break
		}
		idx = i
	}
	return b.Values[idx], nil
}

// ResolveInt resolves and parses the value as an integer.
func (b Band) ResolveInt(amount decimal.Decimal) (int, error) {
	v, err := b.Resolve(amount)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: value %q is not an integer", ErrMisconfigured, v)
	}
	return n, nil
}

// Directional holds two value lists over one threshold list, selected by a
// direction flag (old to new network vs new to old, cross vs same network).
type Directional struct {
	Thresholds []decimal.Decimal
	Forward    []string
	Reverse    []string
}

// Resolve picks Forward when forward is true, Reverse otherwise.
func (d Directional) Resolve(amount decimal.Decimal, forward bool) (string, error) {
	values := d.Reverse
	if forward {
		values = d.Forward
	}
	return Band{Thresholds: d.Thresholds, Values: values}.Resolve(amount)
}
