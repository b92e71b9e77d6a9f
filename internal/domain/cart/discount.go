package cart

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
	DiscountShipping   DiscountType = "shipping"
)

// DiscountScope selects what a discount is applied against.
type DiscountScope string

const (
	ScopeOrder    DiscountScope = "order"
	ScopeShipping DiscountScope = "shipping"
	ScopeItems    DiscountScope = "items"
)

// MaxDiscountCodeLength bounds discount codes.
const MaxDiscountCodeLength = 64

// DiscountInput holds the fields for NewDiscount. Value is a percentage for
// percentage and shipping discounts; Amount is used for fixed discounts.
type DiscountInput struct {
	ID              identity.DiscountID
	Code            string
	Description     string
	Type            DiscountType
	Value           float64
	Amount          money.Money
	Currency        money.Currency
	Scope           DiscountScope
	MinimumAmount   *money.Money
	MaximumDiscount *money.Money
}

// Discount is a promotion applied to a cart.
type Discount struct {
	id              identity.DiscountID
	code            string
	description     string
	dtype           DiscountType
	value           float64
	amount          money.Money
	currency        money.Currency
	scope           DiscountScope
	minimumAmount   *money.Money
	maximumDiscount *money.Money
}

// NewDiscount validates input and builds a Discount. A missing ID is generated,
// a missing scope defaults to shipping for shipping discounts and order otherwise.
func NewDiscount(in DiscountInput) (Discount, error) {
	var errs apperrors.ValidationErrorCollection

	code := strings.ToUpper(strings.TrimSpace(in.Code))
	switch {
	case code == "":
		errs.Add("code", in.Code, "is required")
	case len(code) > MaxDiscountCodeLength:
		errs.Add("code", in.Code, fmt.Sprintf("must not exceed %d characters", MaxDiscountCodeLength))
	}

	currency := in.Currency
	if currency.IsZero() && in.Type == DiscountFixed {
		currency = in.Amount.Currency()
	}
	if currency.IsZero() {
		errs.Add("currency", "", "is required")
	}

	scope := in.Scope
	switch in.Type {
	case DiscountPercentage, DiscountShipping:
		if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) || in.Value <= 0 || in.Value > 100 {
			errs.Add("value", in.Value, "must be greater than 0 and at most 100")
		}
	case DiscountFixed:
		if !in.Amount.IsPositive() {
			errs.Add("amount", in.Amount.Amount(), "must be greater than 0")
		}
	default:
		errs.Add("type", string(in.Type), "must be one of: percentage, fixed, shipping")
	}

	if scope == "" {
		scope = ScopeOrder
		if in.Type == DiscountShipping {
			scope = ScopeShipping
		}
	}
	switch scope {
	case ScopeOrder, ScopeItems, ScopeShipping:
	default:
		errs.Add("scope", string(scope), "must be one of: order, shipping, items")
	}
	if in.Type == DiscountShipping && scope != ScopeShipping {
		errs.Add("scope", string(scope), "shipping discounts must use shipping scope")
	}

	if in.MinimumAmount != nil && in.MinimumAmount.IsNegative() {
		errs.Add("minimum_amount", in.MinimumAmount.Amount(), "must not be negative")
	}
	if in.MaximumDiscount != nil && !in.MaximumDiscount.IsPositive() {
		errs.Add("maximum_discount", in.MaximumDiscount.Amount(), "must be greater than 0")
	}
	if err := errs.Err(); err != nil {
		return Discount{}, err
	}

	for _, m := range []*money.Money{in.MinimumAmount, in.MaximumDiscount} {
		if m != nil && m.Currency() != currency {
			return Discount{}, apperrors.BusinessRule(money.RuleCurrencyMismatch,
				fmt.Sprintf("discount amounts must be in %s", currency.Code()))
		}
	}
	if in.Type == DiscountFixed && in.Amount.Currency() != currency {
		return Discount{}, apperrors.BusinessRule(money.RuleCurrencyMismatch,
			fmt.Sprintf("discount amounts must be in %s", currency.Code()))
	}

	id := in.ID
	if id.IsZero() {
		id = identity.Generate[identity.DiscountKind]()
	}
	d := Discount{
		id:              id,
		code:            code,
		description:     strings.TrimSpace(in.Description),
		dtype:           in.Type,
		currency:        currency,
		scope:           scope,
		minimumAmount:   in.MinimumAmount,
		maximumDiscount: in.MaximumDiscount,
	}
	if in.Type == DiscountFixed {
		d.amount = in.Amount
	} else {
		d.value = in.Value
	}
	return d, nil
}

func (d Discount) ID() identity.DiscountID  { return d.id }
func (d Discount) Code() string             { return d.code }
func (d Discount) Description() string      { return d.description }
func (d Discount) Type() DiscountType       { return d.dtype }
func (d Discount) Value() float64           { return d.value }
func (d Discount) Amount() money.Money      { return d.amount }
func (d Discount) Currency() money.Currency { return d.currency }
func (d Discount) Scope() DiscountScope     { return d.scope }

// MinimumAmount returns the qualifying minimum, if any.
func (d Discount) MinimumAmount() (money.Money, bool) {
	if d.minimumAmount == nil {
		return money.Money{}, false
	}
	return *d.minimumAmount, true
}

// MaximumDiscount returns the cap, if any.
func (d Discount) MaximumDiscount() (money.Money, bool) {
	if d.maximumDiscount == nil {
		return money.Money{}, false
	}
	return *d.maximumDiscount, true
}

// Qualifies reports whether amount meets the discount minimum.
func (d Discount) Qualifies(amount money.Money) bool {
	return d.minimumAmount == nil || amount.Amount() >= d.minimumAmount.Amount()
}

// CalculateDiscount returns the reduction for base. It is zero when base is
// below the minimum, is capped by the maximum and never exceeds base.
func (d Discount) CalculateDiscount(base money.Money) (money.Money, error) {
	if base.Currency() != d.currency {
		return money.Money{}, apperrors.BusinessRule(money.RuleCurrencyMismatch,
			fmt.Sprintf("discount %s is in %s, amount is in %s", d.code, d.currency.Code(), base.Currency().Code()))
	}
	return money.FromMinorUnits(d.reduction(base.Amount(), base.Amount()), d.currency), nil
}

// reduction computes the minor-unit reduction on base when qualifying meets
// the minimum.
func (d Discount) reduction(base, qualifying int64) int64 {
	if base <= 0 {
		return 0
	}
	if d.minimumAmount != nil && qualifying < d.minimumAmount.Amount() {
		return 0
	}

	var off int64
	if d.dtype == DiscountFixed {
		off = d.amount.Amount()
	} else {
		off = decimal.NewFromInt(base).
			Mul(decimal.NewFromFloat(d.value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	}

	if d.maximumDiscount != nil && off > d.maximumDiscount.Amount() {
		off = d.maximumDiscount.Amount()
	}
	if off > base {
		off = base
	}
	return off
}
