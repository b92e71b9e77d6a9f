package cart

import (
	"fmt"
	"strings"
	"time"

	"github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// Item limits.
const (
	// MaxItemQuantity is the ceiling for a single line's quantity.
	MaxItemQuantity = 999
	// MaxUnitPriceMinor bounds unit prices so line and cart totals cannot overflow.
	MaxUnitPriceMinor = 1_000_000_000_000
)

// ItemInput describes a product variant being put into a cart.
type ItemInput struct {
	ProductID      identity.ProductID
	VariantID      identity.ProductVariantID
	Title          string
	VariantTitle   string
	SKU            string
	ImageURL       string
	Quantity       int
	UnitPrice      money.Money
	CompareAtPrice *money.Money
}

// Item is a cart line. Items are owned by exactly one cart and keep their own
// event queue, which the cart flattens into its own.
type Item struct {
	id             identity.CartItemID
	cartID         identity.CartID
	productID      identity.ProductID
	variantID      identity.ProductVariantID
	title          string
	variantTitle   string
	sku            string
	imageURL       string
	quantity       int
	unitPrice      money.Money
	compareAtPrice *money.Money
	addedAt        time.Time
	updatedAt      time.Time

	event.Recorder
}

func validateItemInput(in ItemInput) error {
	var errs apperrors.ValidationErrorCollection
	if in.ProductID.IsZero() {
		errs.Add("product_id", "", "is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		errs.Add("title", in.Title, "is required")
	}
	if in.Quantity < 1 {
		errs.Add("quantity", in.Quantity, "must be at least 1")
	}
	if in.UnitPrice.Currency().IsZero() {
		errs.Add("unit_price", in.UnitPrice.Amount(), "currency is required")
	}
	if in.UnitPrice.IsNegative() {
		errs.Add("unit_price", in.UnitPrice.Amount(), "must not be negative")
	}
	if in.UnitPrice.Amount() > MaxUnitPriceMinor {
		errs.Add("unit_price", in.UnitPrice.Amount(), fmt.Sprintf("must not exceed %d minor units", int64(MaxUnitPriceMinor)))
	}
	if in.CompareAtPrice != nil && in.CompareAtPrice.Currency() == in.UnitPrice.Currency() {
		if in.CompareAtPrice.Amount() <= in.UnitPrice.Amount() {
			errs.Add("compare_at_price", in.CompareAtPrice.Amount(), "must be greater than unit price")
		}
	}
	if err := errs.Err(); err != nil {
		return err
	}
	if in.CompareAtPrice != nil && in.CompareAtPrice.Currency() != in.UnitPrice.Currency() {
		return apperrors.BusinessRule(money.RuleCurrencyMismatch, "compare-at price currency differs from unit price")
	}
	if in.Quantity > MaxItemQuantity {
		return maxQuantityExceeded(in.Quantity)
	}
	return nil
}

func maxQuantityExceeded(q int) error {
	return apperrors.BusinessRule(RuleMaxQuantityExceeded,
		fmt.Sprintf("quantity %d exceeds the maximum of %d", q, MaxItemQuantity))
}

func newItem(cartID identity.CartID, in ItemInput, now time.Time) Item {
	return Item{
		id:             identity.Generate[identity.CartItemKind](),
		cartID:         cartID,
		productID:      in.ProductID,
		variantID:      in.VariantID,
		title:          strings.TrimSpace(in.Title),
		variantTitle:   strings.TrimSpace(in.VariantTitle),
		sku:            strings.TrimSpace(in.SKU),
		imageURL:       in.ImageURL,
		quantity:       in.Quantity,
		unitPrice:      in.UnitPrice,
		compareAtPrice: in.CompareAtPrice,
		addedAt:        now,
		updatedAt:      now,
	}
}

// withQuantity returns a copy of the item at quantity q and queues the
// item-level change event on the copy.
func (i Item) withQuantity(q int, now time.Time) (Item, error) {
	if q < 1 {
		return Item{}, apperrors.Validation("quantity", q, "must be at least 1")
	}
	if q > MaxItemQuantity {
		return Item{}, maxQuantityExceeded(q)
	}
	next := i.clone()
	next.quantity = q
	next.updatedAt = now
	next.Record(event.New(AggregateTypeItem, i.id.String(), EventItemQuantityChanged, now, event.NewPayload(
		event.F("cart_id", i.cartID.String()),
		event.F("old_quantity", i.quantity),
		event.F("new_quantity", q),
	)))
	return next, nil
}

// withDetails refreshes the display fields and price from a newer input.
func (i Item) withDetails(in ItemInput) Item {
	next := i.clone()
	if t := strings.TrimSpace(in.Title); t != "" {
		next.title = t
	}
	next.variantTitle = strings.TrimSpace(in.VariantTitle)
	if s := strings.TrimSpace(in.SKU); s != "" {
		next.sku = s
	}
	if in.ImageURL != "" {
		next.imageURL = in.ImageURL
	}
	next.unitPrice = in.UnitPrice
	next.compareAtPrice = in.CompareAtPrice
	return next
}

func (i Item) clone() Item {
	next := i
	next.Recorder = i.Recorder.Clone()
	return next
}

func (i Item) ID() identity.CartItemID              { return i.id }
func (i Item) CartID() identity.CartID              { return i.cartID }
func (i Item) ProductID() identity.ProductID        { return i.productID }
func (i Item) VariantID() identity.ProductVariantID { return i.variantID }
func (i Item) Title() string                        { return i.title }
func (i Item) VariantTitle() string                 { return i.variantTitle }
func (i Item) SKU() string                          { return i.sku }
func (i Item) ImageURL() string                     { return i.imageURL }
func (i Item) Quantity() int                        { return i.quantity }
func (i Item) UnitPrice() money.Money               { return i.unitPrice }
func (i Item) AddedAt() time.Time                   { return i.addedAt }
func (i Item) UpdatedAt() time.Time                 { return i.updatedAt }

// CompareAtPrice returns the reference price, if any.
func (i Item) CompareAtPrice() (money.Money, bool) {
	if i.compareAtPrice == nil {
		return money.Money{}, false
	}
	return *i.compareAtPrice, true
}

// Matches reports whether the item is for the given product and variant.
func (i Item) Matches(productID identity.ProductID, variantID identity.ProductVariantID) bool {
	return i.productID.Equal(productID) && i.variantID.Equal(variantID)
}

// TotalPrice is unit price times quantity.
func (i Item) TotalPrice() money.Money {
	return money.FromMinorUnits(i.unitPrice.Amount()*int64(i.quantity), i.unitPrice.Currency())
}

// DiscountAmount is the saving against the compare-at price for the whole line.
func (i Item) DiscountAmount() money.Money {
	if i.compareAtPrice == nil {
		return money.Zero(i.unitPrice.Currency())
	}
	perUnit := i.compareAtPrice.Amount() - i.unitPrice.Amount()
	if perUnit < 0 {
		perUnit = 0
	}
	return money.FromMinorUnits(perUnit*int64(i.quantity), i.unitPrice.Currency())
}
