package money

import (
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// Range is a closed interval [Min, Max] of a single currency.
type Range struct {
	min Money
	max Money
}

// NewRange builds a Range, requiring equal currencies and min <= max.
func NewRange(min, max Money) (Range, error) {
	c, err := min.Compare(max)
	if err != nil {
		return Range{}, err
	}
	if c > 0 {
		return Range{}, apperrors.Validation("range", min.String()+" > "+max.String(), "minimum must not exceed maximum")
	}
	return Range{min: min, max: max}, nil
}

// Min returns the lower bound.
func (r Range) Min() Money { return r.min }

// Max returns the upper bound.
func (r Range) Max() Money { return r.max }

// Currency returns the range currency.
func (r Range) Currency() Currency { return r.min.currency }

// IsSingle reports whether min and max are equal.
func (r Range) IsSingle() bool { return r.min.Equal(r.max) }

// Contains reports whether m lies within the range, bounds included.
func (r Range) Contains(m Money) (bool, error) {
	lo, err := r.min.LessThanOrEqual(m)
	if err != nil {
		return false, err
	}
	hi, err := m.LessThanOrEqual(r.max)
	if err != nil {
		return false, err
	}
	return lo && hi, nil
}

// Overlaps reports whether the two ranges share at least one value.
func (r Range) Overlaps(other Range) (bool, error) {
	a, err := r.min.LessThanOrEqual(other.max)
	if err != nil {
		return false, err
	}
	b, err := other.min.LessThanOrEqual(r.max)
	if err != nil {
		return false, err
	}
	return a && b, nil
}

// Format renders "£10.00 - £20.00", or a single price when the bounds match.
func (r Range) Format() string {
	if r.IsSingle() {
		return r.min.Format()
	}
	return r.min.Format() + " - " + r.max.Format()
}
