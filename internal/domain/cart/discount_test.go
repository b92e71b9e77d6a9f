package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

func TestNewDiscount_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    DiscountInput
		field string
	}{
		{"missing code", DiscountInput{Type: DiscountPercentage, Value: 10, Currency: money.GBP}, "code"},
		{"percentage over 100", DiscountInput{Code: "X", Type: DiscountPercentage, Value: 101, Currency: money.GBP}, "value"},
		{"zero percentage", DiscountInput{Code: "X", Type: DiscountPercentage, Currency: money.GBP}, "value"},
		{"fixed without amount", DiscountInput{Code: "X", Type: DiscountFixed, Currency: money.GBP}, "amount"},
		{"unknown type", DiscountInput{Code: "X", Type: "bogo", Currency: money.GBP}, "type"},
		{"missing currency", DiscountInput{Code: "X", Type: DiscountPercentage, Value: 5}, "currency"},
		{"shipping with order scope", DiscountInput{Code: "X", Type: DiscountShipping, Value: 100, Currency: money.GBP, Scope: ScopeOrder}, "scope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDiscount(tt.in)
			var coll *apperrors.ValidationErrorCollection
			require.ErrorAs(t, err, &coll)
			_, ok := coll.Field(tt.field)
			assert.True(t, ok, "expected error on %s, got %v", tt.field, coll.Fields())
		})
	}
}

func TestNewDiscount_Defaults(t *testing.T) {
	d, err := NewDiscount(DiscountInput{Code: " spring ", Type: DiscountShipping, Value: 100, Currency: money.GBP})
	require.NoError(t, err)
	assert.Equal(t, "SPRING", d.Code())
	assert.Equal(t, ScopeShipping, d.Scope())
	assert.False(t, d.ID().IsZero())

	d, err = NewDiscount(DiscountInput{Code: "TEN", Type: DiscountFixed, Amount: gbp(1000)})
	require.NoError(t, err)
	assert.Equal(t, ScopeOrder, d.Scope())
	assert.Equal(t, money.GBP, d.Currency())
}

func TestNewDiscount_CurrencyMismatch(t *testing.T) {
	minimum := money.FromMinorUnits(100, money.USD)
	_, err := NewDiscount(DiscountInput{Code: "X", Type: DiscountPercentage, Value: 5, Currency: money.GBP, MinimumAmount: &minimum})
	assert.True(t, apperrors.IsRule(err, money.RuleCurrencyMismatch))
}

func TestCalculateDiscount(t *testing.T) {
	minimum := gbp(1000)
	capAt := gbp(300)
	pct, err := NewDiscount(DiscountInput{
		Code: "P20", Type: DiscountPercentage, Value: 20, Currency: money.GBP,
		MinimumAmount: &minimum, MaximumDiscount: &capAt,
	})
	require.NoError(t, err)

	tests := []struct {
		base int64
		want int64
	}{
		{999, 0},
		{1000, 200},
		{1499, 300},
		{5000, 300},
	}
	for _, tt := range tests {
		got, err := pct.CalculateDiscount(gbp(tt.base))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Amount(), "base %d", tt.base)
	}

	fixed, err := NewDiscount(DiscountInput{Code: "F", Type: DiscountFixed, Amount: gbp(500)})
	require.NoError(t, err)
	got, err := fixed.CalculateDiscount(gbp(300))
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.Amount(), "never exceeds base")

	_, err = fixed.CalculateDiscount(money.FromMinorUnits(300, money.EUR))
	assert.True(t, apperrors.IsRule(err, money.RuleCurrencyMismatch))
}

func TestExpiryPolicy(t *testing.T) {
	p := ExpiryPolicy{GuestTTL: 0, UserTTL: 0}
	assert.Equal(t, DefaultGuestTTL, p.TTL(false))
	assert.Equal(t, DefaultUserTTL, p.TTL(true))
	assert.Equal(t, t0.Add(DefaultUserTTL), p.ExpiresAt(true, t0))
}
