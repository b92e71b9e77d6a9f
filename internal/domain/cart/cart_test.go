package cart

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newGuestCart(t *testing.T) (*Cart, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	c, err := NewGuestCart(identity.MustNew[identity.SessionKind]("sess-1"), money.GBP, DefaultExpiryPolicy(), WithClock(clock.Now))
	require.NoError(t, err)
	return c, clock
}

func gbp(minor int64) money.Money { return money.FromMinorUnits(minor, money.GBP) }

func itemInput(product, variant string, qty int, price int64) ItemInput {
	return ItemInput{
		ProductID: identity.MustNew[identity.ProductKind](product),
		VariantID: identity.MustNew[identity.ProductVariantKind](variant),
		Title:     "Product " + product,
		SKU:       "SKU-" + variant,
		Quantity:  qty,
		UnitPrice: gbp(price),
	}
}

func mustDiscount(t *testing.T, in DiscountInput) Discount {
	t.Helper()
	d, err := NewDiscount(in)
	require.NoError(t, err)
	return d
}

func TestNewGuestCart(t *testing.T) {
	c, _ := newGuestCart(t)

	assert.False(t, c.ID().IsZero())
	assert.Equal(t, StatusActive, c.Status())
	assert.Equal(t, money.GBP, c.Currency())
	assert.False(t, c.HasOwner())
	assert.Equal(t, "sess-1", c.SessionID().String())
	assert.Equal(t, t0.Add(7*24*time.Hour), c.ExpiresAt())
	assert.True(t, c.IsActive(t0))
	assert.True(t, c.IsEmpty())
	assert.Equal(t, []string{EventCreated}, event.Types(c.UncommittedEvents()))
}

func TestNewUserCart_UsesUserWindow(t *testing.T) {
	clock := &fakeClock{now: t0}
	c, err := NewUserCart(identity.MustNew[identity.UserKind]("u-1"), money.USD, ExpiryPolicy{}, WithClock(clock.Now))
	require.NoError(t, err)
	assert.True(t, c.HasOwner())
	assert.Equal(t, t0.Add(30*24*time.Hour), c.ExpiresAt())
}

func TestNewCart_RequiresOwnerOrSession(t *testing.T) {
	_, err := NewGuestCart(identity.SessionID{}, money.GBP, DefaultExpiryPolicy())
	assert.True(t, apperrors.IsRule(err, RuleOwnerOrSessionMissing))

	_, err = NewGuestCart(identity.MustNew[identity.SessionKind]("s"), money.Currency{}, DefaultExpiryPolicy())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddItem_SamePairMergesQuantities(t *testing.T) {
	c, _ := newGuestCart(t)

	first, err := c.AddItem(itemInput("p-1", "v-1", 2, 1000))
	require.NoError(t, err)
	second, err := c.AddItem(itemInput("p-1", "v-1", 3, 1000))
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	require.Len(t, c.Items(), 1)
	assert.Equal(t, 5, c.Items()[0].Quantity())
	assert.Equal(t, 5, c.ItemCount())
	assert.Equal(t, 1, c.DistinctItemCount())
	assert.Equal(t, []string{
		EventCreated,
		EventItemAdded,
		EventItemQuantityChanged,
		EventItemQuantityUpdated,
	}, event.Types(c.UncommittedEvents()))
}

func TestAddItem_DifferentVariantsAreSeparateLines(t *testing.T) {
	c, clock := newGuestCart(t)
	_, err := c.AddItem(itemInput("p-1", "v-1", 1, 1000))
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = c.AddItem(itemInput("p-1", "v-2", 1, 1200))
	require.NoError(t, err)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "v-1", items[0].VariantID().String())
	assert.Equal(t, "v-2", items[1].VariantID().String())
}

func TestAddItem_AboveCeilingLeavesCartUnmodified(t *testing.T) {
	c, clock := newGuestCart(t)
	_, err := c.AddItem(itemInput("p-1", "v-1", 998, 100))
	require.NoError(t, err)
	c.MarkEventsAsCommitted()

	before := c.Snapshot()
	clock.Advance(time.Minute)

	_, err = c.AddItem(itemInput("p-1", "v-1", 2, 100))
	require.Error(t, err)
	assert.True(t, apperrors.IsRule(err, RuleMaxQuantityExceeded))

	assert.Equal(t, before, c.Snapshot())
	assert.Empty(t, c.UncommittedEvents())
}

func TestAddItem_Validation(t *testing.T) {
	c, _ := newGuestCart(t)

	_, err := c.AddItem(itemInput("p-1", "v-1", 0, 100))
	var coll *apperrors.ValidationErrorCollection
	require.ErrorAs(t, err, &coll)
	_, ok := coll.Field("quantity")
	assert.True(t, ok)

	_, err = c.AddItem(itemInput("p-1", "v-1", 1000, 100))
	assert.True(t, apperrors.IsRule(err, RuleMaxQuantityExceeded))

	in := itemInput("p-1", "v-1", 1, 100)
	in.UnitPrice = money.FromMinorUnits(100, money.EUR)
	_, err = c.AddItem(in)
	assert.True(t, apperrors.IsRule(err, money.RuleCurrencyMismatch))

	in = itemInput("p-1", "v-1", 1, 100)
	cmp := gbp(100)
	in.CompareAtPrice = &cmp
	_, err = c.AddItem(in)
	require.ErrorAs(t, err, &coll)
	_, ok = coll.Field("compare_at_price")
	assert.True(t, ok)

	assert.True(t, c.IsEmpty())
}

func TestItem_TotalsAndCompareAtDiscount(t *testing.T) {
	c, _ := newGuestCart(t)
	in := itemInput("p-1", "v-1", 3, 800)
	was := gbp(1000)
	in.CompareAtPrice = &was

	it, err := c.AddItem(in)
	require.NoError(t, err)
	assert.Equal(t, int64(2400), it.TotalPrice().Amount())
	assert.Equal(t, int64(600), it.DiscountAmount().Amount())
	assert.Equal(t, int64(600), c.SavingsFromCompareAt().Amount())
}

func TestRemoveItem(t *testing.T) {
	c, _ := newGuestCart(t)
	it, err := c.AddItem(itemInput("p-1", "v-1", 1, 100))
	require.NoError(t, err)

	require.NoError(t, c.RemoveItem(it.ID()))
	assert.True(t, c.IsEmpty())

	err = c.RemoveItem(it.ID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveItem_CarriesItemEventsIntoCartQueue(t *testing.T) {
	c, _ := newGuestCart(t)
	it, err := c.AddItem(itemInput("p-1", "v-1", 1, 100))
	require.NoError(t, err)
	require.NoError(t, c.UpdateItemQuantity(it.ID(), 4))
	require.NoError(t, c.RemoveItem(it.ID()))

	assert.Equal(t, []string{
		EventCreated,
		EventItemAdded,
		EventItemQuantityChanged,
		EventItemQuantityUpdated,
		EventItemRemoved,
	}, event.Types(c.UncommittedEvents()))
}

func TestUpdateItemQuantity(t *testing.T) {
	c, _ := newGuestCart(t)
	it, err := c.AddItem(itemInput("p-1", "v-1", 1, 100))
	require.NoError(t, err)

	require.NoError(t, c.UpdateItemQuantity(it.ID(), 7))
	got, ok := c.Item(it.ID())
	require.True(t, ok)
	assert.Equal(t, 7, got.Quantity())

	err = c.UpdateItemQuantity(it.ID(), 1000)
	assert.True(t, apperrors.IsRule(err, RuleMaxQuantityExceeded))

	err = c.UpdateItemQuantity(it.ID(), -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.NoError(t, c.UpdateItemQuantity(it.ID(), 0))
	assert.True(t, c.IsEmpty())
}

func TestTotals(t *testing.T) {
	c, _ := newGuestCart(t)
	_, err := c.AddItem(itemInput("p-1", "v-1", 2, 1000))
	require.NoError(t, err)
	_, err = c.AddItem(itemInput("p-2", "v-1", 1, 500))
	require.NoError(t, err)

	require.NoError(t, c.ApplyDiscount(mustDiscount(t, DiscountInput{
		Code: "TENOFF", Type: DiscountPercentage, Value: 10, Currency: money.GBP,
	})))
	minimum := gbp(2000)
	require.NoError(t, c.ApplyDiscount(mustDiscount(t, DiscountInput{
		Code: "FREESHIP", Type: DiscountShipping, Value: 100, Currency: money.GBP, MinimumAmount: &minimum,
	})))
	require.NoError(t, c.UpdateShipping(Shipping{MethodID: "std", Name: "Standard", Cost: gbp(499)}))

	assert.Equal(t, int64(2500), c.Subtotal().Amount())
	assert.Equal(t, int64(250), c.TotalDiscounts().Amount())
	assert.Equal(t, int64(0), c.ShippingCost().Amount())
	assert.Equal(t, int64(2250), c.Total().Amount())
}

func TestTotal_EqualsSubtotalMinusDiscountsPlusShipping(t *testing.T) {
	cases := []struct {
		name      string
		items     []ItemInput
		discounts []DiscountInput
		shipping  int64
	}{
		{"empty", nil, nil, 0},
		{"items only", []ItemInput{itemInput("a", "1", 3, 333)}, nil, 0},
		{"fixed capped at subtotal", []ItemInput{itemInput("a", "1", 1, 300)}, []DiscountInput{
			{Code: "BIG", Type: DiscountFixed, Amount: gbp(5000)},
		}, 250},
		{"partial shipping discount", []ItemInput{itemInput("a", "1", 1, 1999)}, []DiscountInput{
			{Code: "HALFSHIP", Type: DiscountShipping, Value: 50, Currency: money.GBP},
			{Code: "P15", Type: DiscountPercentage, Value: 15, Currency: money.GBP},
		}, 399},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newGuestCart(t)
			for _, in := range tc.items {
				_, err := c.AddItem(in)
				require.NoError(t, err)
			}
			for _, din := range tc.discounts {
				require.NoError(t, c.ApplyDiscount(mustDiscount(t, din)))
			}
			if tc.shipping > 0 {
				require.NoError(t, c.UpdateShipping(Shipping{MethodID: "m", Name: "M", Cost: gbp(tc.shipping)}))
			}

			want := c.Subtotal().Amount() - c.TotalDiscounts().Amount() + c.ShippingCost().Amount()
			assert.Equal(t, want, c.Total().Amount())
			assert.GreaterOrEqual(t, c.ShippingCost().Amount(), int64(0))
			assert.GreaterOrEqual(t, c.Total().Amount(), int64(0))
		})
	}
}

func TestApplyDiscount_Rules(t *testing.T) {
	c, _ := newGuestCart(t)
	_, err := c.AddItem(itemInput("p-1", "v-1", 1, 1000))
	require.NoError(t, err)

	minimum := gbp(5000)
	err = c.ApplyDiscount(mustDiscount(t, DiscountInput{
		Code: "BIGSPEND", Type: DiscountPercentage, Value: 20, Currency: money.GBP, MinimumAmount: &minimum,
	}))
	assert.True(t, apperrors.IsRule(err, RuleMinimumAmountNotMet))

	d := mustDiscount(t, DiscountInput{Code: "five", Type: DiscountFixed, Amount: gbp(500)})
	require.NoError(t, c.ApplyDiscount(d))
	assert.True(t, apperrors.IsRule(c.ApplyDiscount(d), RuleDiscountApplied))

	sameCode := mustDiscount(t, DiscountInput{Code: "FIVE", Type: DiscountFixed, Amount: gbp(100)})
	assert.True(t, apperrors.IsRule(c.ApplyDiscount(sameCode), RuleDiscountApplied))

	usd := mustDiscount(t, DiscountInput{Code: "USD", Type: DiscountFixed, Amount: money.FromMinorUnits(100, money.USD)})
	assert.True(t, apperrors.IsRule(c.ApplyDiscount(usd), money.RuleCurrencyMismatch))

	require.NoError(t, c.RemoveDiscount(d.ID()))
	assert.Empty(t, c.Discounts())
	assert.ErrorIs(t, c.RemoveDiscount(d.ID()), apperrors.ErrNotFound)
}

func TestShipping(t *testing.T) {
	c, _ := newGuestCart(t)

	err := c.UpdateShipping(Shipping{Cost: gbp(-1)})
	var coll *apperrors.ValidationErrorCollection
	require.ErrorAs(t, err, &coll)
	assert.Contains(t, coll.Fields(), "method_id")
	assert.Contains(t, coll.Fields(), "cost")

	err = c.UpdateShipping(Shipping{MethodID: "x", Name: "X", Cost: money.FromMinorUnits(1, money.JPY)})
	assert.True(t, apperrors.IsRule(err, money.RuleCurrencyMismatch))

	require.NoError(t, c.UpdateShipping(Shipping{MethodID: "x", Name: "X", Cost: gbp(300)}))
	sh, ok := c.Shipping()
	require.True(t, ok)
	assert.Equal(t, "x", sh.MethodID)

	require.NoError(t, c.ClearShipping())
	_, ok = c.Shipping()
	assert.False(t, ok)
	assert.True(t, c.ShippingCost().IsZero())
}

func TestUpdateNotes(t *testing.T) {
	c, _ := newGuestCart(t)
	require.NoError(t, c.UpdateNotes("  leave at door "))
	assert.Equal(t, "leave at door", c.Notes())

	long := make([]byte, MaxNotesLength+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.ErrorIs(t, c.UpdateNotes(string(long)), apperrors.ErrInvalidInput)
}

func TestComplete(t *testing.T) {
	c, clock := newGuestCart(t)

	err := c.Complete()
	assert.True(t, apperrors.IsRule(err, RuleEmptyCart))
	assert.Equal(t, StatusActive, c.Status())

	_, err = c.AddItem(itemInput("p-1", "v-1", 1, 100))
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, c.Complete())
	assert.Equal(t, StatusCompleted, c.Status())
	at, ok := c.CompletedAt()
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour), at)

	_, err = c.AddItem(itemInput("p-2", "v-1", 1, 100))
	assert.True(t, apperrors.IsRule(err, RuleCartNotActive))
	err = c.ApplyDiscount(mustDiscount(t, DiscountInput{Code: "X", Type: DiscountPercentage, Value: 5, Currency: money.GBP}))
	assert.True(t, apperrors.IsRule(err, RuleCartNotActive))
	assert.True(t, apperrors.IsRule(c.Expire(), RuleCartCompleted))
	assert.False(t, c.CanCheckout(clock.Now()))
}

func TestAbandon_SnapshotsTotals(t *testing.T) {
	c, _ := newGuestCart(t)
	_, err := c.AddItem(itemInput("p-1", "v-1", 2, 750))
	require.NoError(t, err)
	c.MarkEventsAsCommitted()

	require.NoError(t, c.Abandon())
	assert.Equal(t, StatusAbandoned, c.Status())

	events := c.UncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventAbandoned, events[0].Type())
	total, _ := events[0].Payload().Get("total")
	assert.Equal(t, int64(1500), total)
	currency, _ := events[0].Payload().Get("currency")
	assert.Equal(t, "GBP", currency)
	count, _ := events[0].Payload().Get("item_count")
	assert.Equal(t, 2, count)

	assert.True(t, apperrors.IsRule(c.Abandon(), RuleCartNotActive))
}

func TestExpire(t *testing.T) {
	c, _ := newGuestCart(t)
	require.NoError(t, c.Abandon())
	require.NoError(t, c.Expire())
	assert.Equal(t, StatusExpired, c.Status())

	c.MarkEventsAsCommitted()
	require.NoError(t, c.Expire())
	assert.Empty(t, c.UncommittedEvents())
}

func TestMutationAfterExpiry_DemotesCart(t *testing.T) {
	c, clock := newGuestCart(t)
	c.MarkEventsAsCommitted()
	clock.Advance(DefaultGuestTTL)

	assert.False(t, c.IsActive(clock.Now()))
	assert.True(t, c.IsExpired(clock.Now()))

	_, err := c.AddItem(itemInput("p-1", "v-1", 1, 100))
	assert.True(t, apperrors.IsRule(err, RuleCartExpired))
	assert.Equal(t, StatusExpired, c.Status())
	assert.True(t, c.IsEmpty())
	assert.Equal(t, []string{EventExpired}, event.Types(c.UncommittedEvents()))
}

func TestActivitySlidesExpiry(t *testing.T) {
	c, clock := newGuestCart(t)
	clock.Advance(3 * 24 * time.Hour)
	require.NoError(t, c.Touch())
	assert.Equal(t, clock.Now().Add(DefaultGuestTTL), c.ExpiresAt())
	assert.Equal(t, clock.Now(), c.LastActivityAt())
}

func TestAssignToUser(t *testing.T) {
	c, clock := newGuestCart(t)
	clock.Advance(time.Hour)
	user := identity.MustNew[identity.UserKind]("u-9")

	require.NoError(t, c.AssignToUser(user))
	assert.Equal(t, user, c.UserID())
	assert.True(t, c.SessionID().IsZero())
	assert.Equal(t, clock.Now().Add(DefaultUserTTL), c.ExpiresAt())

	err := c.AssignToUser(identity.MustNew[identity.UserKind]("u-10"))
	assert.True(t, apperrors.IsRule(err, RuleCartAlreadyOwned))
}

func TestClear(t *testing.T) {
	c, _ := newGuestCart(t)
	_, err := c.AddItem(itemInput("p-1", "v-1", 2, 100))
	require.NoError(t, err)
	_, err = c.AddItem(itemInput("p-2", "v-1", 1, 100))
	require.NoError(t, err)
	c.MarkEventsAsCommitted()

	require.NoError(t, c.Clear())
	assert.True(t, c.IsEmpty())
	events := c.UncommittedEvents()
	require.Len(t, events, 1)
	n, _ := events[0].Payload().Get("item_count")
	assert.Equal(t, 3, n)
}

func TestMarkEventsAsCommitted_ClearsItemQueues(t *testing.T) {
	c, _ := newGuestCart(t)
	it, err := c.AddItem(itemInput("p-1", "v-1", 1, 100))
	require.NoError(t, err)
	require.NoError(t, c.UpdateItemQuantity(it.ID(), 2))

	c.MarkEventsAsCommitted()
	assert.Empty(t, c.UncommittedEvents())
	got, _ := c.Item(it.ID())
	assert.Empty(t, got.UncommittedEvents())
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	c, clock := newGuestCart(t)
	in := itemInput("p-1", "v-1", 2, 1299)
	was := gbp(1500)
	in.CompareAtPrice = &was
	_, err := c.AddItem(in)
	require.NoError(t, err)
	minimum := gbp(100)
	require.NoError(t, c.ApplyDiscount(mustDiscount(t, DiscountInput{
		Code: "SAVE", Type: DiscountFixed, Amount: gbp(200), MinimumAmount: &minimum,
	})))
	require.NoError(t, c.UpdateShipping(Shipping{MethodID: "exp", Name: "Express", Cost: gbp(999), EstimatedDays: 1}))
	require.NoError(t, c.UpdateNotes("gift"))
	c.SetVersion(3)

	data, err := json.Marshal(c.Snapshot())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored, err := Restore(snap, DefaultExpiryPolicy(), WithClock(clock.Now))
	require.NoError(t, err)
	assert.Empty(t, restored.UncommittedEvents())
	assert.Equal(t, c.ID(), restored.ID())
	assert.Equal(t, 3, restored.Version())
	assert.Equal(t, c.Total(), restored.Total())
	assert.Equal(t, c.Subtotal(), restored.Subtotal())
	assert.Equal(t, c.ExpiresAt(), restored.ExpiresAt())
	assert.Equal(t, c.Snapshot(), restored.Snapshot())
}

func TestRestore_RejectsBadSnapshot(t *testing.T) {
	_, err := Restore(Snapshot{ID: "c", Currency: "XXX", Status: StatusActive}, DefaultExpiryPolicy())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = Restore(Snapshot{ID: "c", Currency: "GBP", Status: "weird"}, DefaultExpiryPolicy())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = Restore(Snapshot{ID: "c", Currency: "GBP", Status: StatusActive, Items: []ItemSnapshot{
		{ID: "i", ProductID: "p", Quantity: 1, UnitPrice: money.FromMinorUnits(1, money.USD)},
	}}, DefaultExpiryPolicy())
	assert.True(t, apperrors.IsRule(err, money.RuleCurrencyMismatch))
}
