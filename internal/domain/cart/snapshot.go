package cart

import (
	"fmt"
	"time"

	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// Snapshot is the storage representation of a cart.
type Snapshot struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id,omitempty"`
	SessionID      string             `json:"session_id,omitempty"`
	Currency       string             `json:"currency"`
	Status         Status             `json:"status"`
	Items          []ItemSnapshot     `json:"items"`
	Discounts      []DiscountSnapshot `json:"discounts,omitempty"`
	Shipping       *Shipping          `json:"shipping,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	Version        int                `json:"version"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	ExpiresAt      time.Time          `json:"expires_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
}

// ItemSnapshot is the storage representation of a cart line.
type ItemSnapshot struct {
	ID             string       `json:"id"`
	ProductID      string       `json:"product_id"`
	VariantID      string       `json:"variant_id,omitempty"`
	Title          string       `json:"title"`
	VariantTitle   string       `json:"variant_title,omitempty"`
	SKU            string       `json:"sku,omitempty"`
	ImageURL       string       `json:"image_url,omitempty"`
	Quantity       int          `json:"quantity"`
	UnitPrice      money.Money  `json:"unit_price"`
	CompareAtPrice *money.Money `json:"compare_at_price,omitempty"`
	AddedAt        time.Time    `json:"added_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// DiscountSnapshot is the storage representation of an applied discount.
type DiscountSnapshot struct {
	ID              string        `json:"id"`
	Code            string        `json:"code"`
	Description     string        `json:"description,omitempty"`
	Type            DiscountType  `json:"type"`
	Value           float64       `json:"value,omitempty"`
	Amount          *money.Money  `json:"amount,omitempty"`
	Currency        string        `json:"currency"`
	Scope           DiscountScope `json:"scope"`
	MinimumAmount   *money.Money  `json:"minimum_amount,omitempty"`
	MaximumDiscount *money.Money  `json:"maximum_discount,omitempty"`
}

// Snapshot captures the cart's persisted state. Pending events are not included.
func (c *Cart) Snapshot() Snapshot {
	snap := Snapshot{
		ID:             c.id.String(),
		UserID:         c.userID.String(),
		SessionID:      c.sessionID.String(),
		Currency:       c.currency.Code(),
		Status:         c.status,
		Items:          make([]ItemSnapshot, 0, len(c.items)),
		Notes:          c.notes,
		Version:        c.version,
		CreatedAt:      c.createdAt,
		UpdatedAt:      c.updatedAt,
		LastActivityAt: c.lastActivityAt,
		ExpiresAt:      c.expiresAt,
	}
	if c.completedAt != nil {
		t := *c.completedAt
		snap.CompletedAt = &t
	}
	if c.shipping != nil {
		sh := *c.shipping
		snap.Shipping = &sh
	}
	for _, it := range c.Items() {
		snap.Items = append(snap.Items, ItemSnapshot{
			ID:             it.id.String(),
			ProductID:      it.productID.String(),
			VariantID:      it.variantID.String(),
			Title:          it.title,
			VariantTitle:   it.variantTitle,
			SKU:            it.sku,
			ImageURL:       it.imageURL,
			Quantity:       it.quantity,
			UnitPrice:      it.unitPrice,
			CompareAtPrice: it.compareAtPrice,
			AddedAt:        it.addedAt,
			UpdatedAt:      it.updatedAt,
		})
	}
	for _, d := range c.Discounts() {
		ds := DiscountSnapshot{
			ID:              d.id.String(),
			Code:            d.code,
			Description:     d.description,
			Type:            d.dtype,
			Value:           d.value,
			Currency:        d.currency.Code(),
			Scope:           d.scope,
			MinimumAmount:   d.minimumAmount,
			MaximumDiscount: d.maximumDiscount,
		}
		if d.dtype == DiscountFixed {
			amount := d.amount
			ds.Amount = &amount
		}
		snap.Discounts = append(snap.Discounts, ds)
	}
	return snap
}

// Restore rebuilds a cart from a snapshot without queuing any event.
func Restore(snap Snapshot, policy ExpiryPolicy, opts ...Option) (*Cart, error) {
	id, err := identity.NewCartID(snap.ID)
	if err != nil {
		return nil, err
	}
	currency, err := money.ParseCurrency(snap.Currency)
	if err != nil {
		return nil, err
	}
	if !snap.Status.IsValid() {
		return nil, apperrors.Validation("status", string(snap.Status), "unknown cart status")
	}

	s := state{
		id:             id,
		currency:       currency,
		status:         snap.Status,
		items:          make(map[identity.CartItemID]Item, len(snap.Items)),
		discounts:      make(map[identity.DiscountID]Discount, len(snap.Discounts)),
		notes:          snap.Notes,
		createdAt:      snap.CreatedAt,
		updatedAt:      snap.UpdatedAt,
		lastActivityAt: snap.LastActivityAt,
		expiresAt:      snap.ExpiresAt,
		policy:         policy.withDefaults(),
	}
	if snap.UserID != "" {
		if s.userID, err = identity.NewUserID(snap.UserID); err != nil {
			return nil, err
		}
	}
	if snap.SessionID != "" {
		if s.sessionID, err = identity.NewSessionID(snap.SessionID); err != nil {
			return nil, err
		}
	}
	if snap.CompletedAt != nil {
		t := *snap.CompletedAt
		s.completedAt = &t
	}
	if snap.Shipping != nil {
		sh := *snap.Shipping
		s.shipping = &sh
	}

	for _, is := range snap.Items {
		it, err := restoreItem(id, is)
		if err != nil {
			return nil, fmt.Errorf("restore cart item %s: %w", is.ID, err)
		}
		if it.unitPrice.Currency() != currency {
			return nil, apperrors.BusinessRule(money.RuleCurrencyMismatch,
				fmt.Sprintf("item %s is not in %s", is.ID, currency.Code()))
		}
		s.items[it.id] = it
	}
	for _, ds := range snap.Discounts {
		d, err := restoreDiscount(ds)
		if err != nil {
			return nil, fmt.Errorf("restore discount %s: %w", ds.ID, err)
		}
		s.discounts[d.id] = d
	}

	c := &Cart{state: s, version: snap.Version, clock: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func restoreItem(cartID identity.CartID, is ItemSnapshot) (Item, error) {
	id, err := identity.NewCartItemID(is.ID)
	if err != nil {
		return Item{}, err
	}
	productID, err := identity.NewProductID(is.ProductID)
	if err != nil {
		return Item{}, err
	}
	var variantID identity.ProductVariantID
	if is.VariantID != "" {
		if variantID, err = identity.NewProductVariantID(is.VariantID); err != nil {
			return Item{}, err
		}
	}
	if is.Quantity < 1 || is.Quantity > MaxItemQuantity {
		return Item{}, apperrors.Validation("quantity", is.Quantity, fmt.Sprintf("must be between 1 and %d", MaxItemQuantity))
	}
	return Item{
		id:             id,
		cartID:         cartID,
		productID:      productID,
		variantID:      variantID,
		title:          is.Title,
		variantTitle:   is.VariantTitle,
		sku:            is.SKU,
		imageURL:       is.ImageURL,
		quantity:       is.Quantity,
		unitPrice:      is.UnitPrice,
		compareAtPrice: is.CompareAtPrice,
		addedAt:        is.AddedAt,
		updatedAt:      is.UpdatedAt,
	}, nil
}

func restoreDiscount(ds DiscountSnapshot) (Discount, error) {
	id, err := identity.NewDiscountID(ds.ID)
	if err != nil {
		return Discount{}, err
	}
	currency, err := money.ParseCurrency(ds.Currency)
	if err != nil {
		return Discount{}, err
	}
	in := DiscountInput{
		ID:              id,
		Code:            ds.Code,
		Description:     ds.Description,
		Type:            ds.Type,
		Value:           ds.Value,
		Currency:        currency,
		Scope:           ds.Scope,
		MinimumAmount:   ds.MinimumAmount,
		MaximumDiscount: ds.MaximumDiscount,
	}
	if ds.Amount != nil {
		in.Amount = *ds.Amount
	}
	return NewDiscount(in)
}
