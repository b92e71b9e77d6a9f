package product

import (
	"fmt"
	"maps"
	"math"
	"strings"
	"time"

	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// MaxSKULength bounds variant SKUs.
const MaxSKULength = 100

// Dimensions are a variant's physical measurements in centimetres.
type Dimensions struct {
	LengthCm float64 `json:"length_cm"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
}

// VariantInput describes a new variant.
type VariantInput struct {
	ID                identity.ProductVariantID
	SKU               string
	Title             string
	Price             money.Money
	CompareAtPrice    *money.Money
	InventoryQuantity int
	ManageInventory   bool
	AllowBackorder    bool
	Options           map[string]string
	WeightGrams       *int
	Dimensions        *Dimensions
}

// VariantUpdate carries optional changes to a variant. Nil fields are left as is.
type VariantUpdate struct {
	SKU               *string
	Title             *string
	Price             *money.Money
	CompareAtPrice    *money.Money
	ClearCompareAt    bool
	InventoryQuantity *int
	ManageInventory   *bool
	AllowBackorder    *bool
	Options           map[string]string
	WeightGrams       *int
	Dimensions        *Dimensions
}

// Variant is a purchasable configuration of a product.
type Variant struct {
	id                identity.ProductVariantID
	sku               string
	title             string
	price             money.Money
	compareAtPrice    *money.Money
	inventoryQuantity int
	manageInventory   bool
	allowBackorder    bool
	options           map[string]string
	weightGrams       *int
	dimensions        *Dimensions
	createdAt         time.Time
	updatedAt         time.Time
}

func buildVariant(in VariantInput, currency money.Currency, now time.Time) (Variant, error) {
	v := Variant{
		id:                in.ID,
		sku:               strings.TrimSpace(in.SKU),
		title:             strings.TrimSpace(in.Title),
		price:             in.Price,
		compareAtPrice:    in.CompareAtPrice,
		inventoryQuantity: in.InventoryQuantity,
		manageInventory:   in.ManageInventory,
		allowBackorder:    in.AllowBackorder,
		options:           maps.Clone(in.Options),
		weightGrams:       in.WeightGrams,
		dimensions:        in.Dimensions,
		createdAt:         now,
		updatedAt:         now,
	}
	if v.id.IsZero() {
		v.id = identity.Generate[identity.ProductVariantKind]()
	}
	if err := v.validate(currency); err != nil {
		return Variant{}, err
	}
	return v, nil
}

func (v Variant) validate(currency money.Currency) error {
	var errs apperrors.ValidationErrorCollection
	switch {
	case v.sku == "":
		errs.Add("sku", v.sku, "is required")
	case len(v.sku) > MaxSKULength:
		errs.Add("sku", v.sku, fmt.Sprintf("must not exceed %d characters", MaxSKULength))
	}
	if v.price.IsNegative() {
		errs.Add("price", v.price.Amount(), "must not be negative")
	}
	if v.inventoryQuantity < 0 {
		errs.Add("inventory_quantity", v.inventoryQuantity, "must not be negative")
	}
	if v.weightGrams != nil && *v.weightGrams < 0 {
		errs.Add("weight_grams", *v.weightGrams, "must not be negative")
	}
	if d := v.dimensions; d != nil {
		for name, val := range map[string]float64{"length_cm": d.LengthCm, "width_cm": d.WidthCm, "height_cm": d.HeightCm} {
			if val < 0 || math.IsNaN(val) || math.IsInf(val, 0) {
				errs.Add("dimensions."+name, val, "must be a non-negative number")
			}
		}
	}
	if v.compareAtPrice != nil && v.compareAtPrice.Currency() == v.price.Currency() &&
		v.compareAtPrice.Amount() <= v.price.Amount() {
		errs.Add("compare_at_price", v.compareAtPrice.Amount(), "must be greater than price")
	}
	if err := errs.Err(); err != nil {
		return err
	}

	if v.price.Currency() != currency {
		return apperrors.BusinessRule(money.RuleCurrencyMismatch,
			fmt.Sprintf("variant %s is priced in %s, product currency is %s", v.sku, v.price.Currency().Code(), currency.Code()))
	}
	if v.compareAtPrice != nil && v.compareAtPrice.Currency() != currency {
		return apperrors.BusinessRule(money.RuleCurrencyMismatch,
			fmt.Sprintf("variant %s compare-at price is not in %s", v.sku, currency.Code()))
	}
	return nil
}

func (v Variant) withUpdate(u VariantUpdate, currency money.Currency, now time.Time) (Variant, error) {
	next := v
	next.options = maps.Clone(v.options)
	if u.SKU != nil {
		next.sku = strings.TrimSpace(*u.SKU)
	}
	if u.Title != nil {
		next.title = strings.TrimSpace(*u.Title)
	}
	if u.Price != nil {
		next.price = *u.Price
	}
	if u.ClearCompareAt {
		next.compareAtPrice = nil
	} else if u.CompareAtPrice != nil {
		cmp := *u.CompareAtPrice
		next.compareAtPrice = &cmp
	}
	if u.InventoryQuantity != nil {
		next.inventoryQuantity = *u.InventoryQuantity
	}
	if u.ManageInventory != nil {
		next.manageInventory = *u.ManageInventory
	}
	if u.AllowBackorder != nil {
		next.allowBackorder = *u.AllowBackorder
	}
	if u.Options != nil {
		next.options = maps.Clone(u.Options)
	}
	if u.WeightGrams != nil {
		w := *u.WeightGrams
		next.weightGrams = &w
	}
	if u.Dimensions != nil {
		d := *u.Dimensions
		next.dimensions = &d
	}
	next.updatedAt = now
	if err := next.validate(currency); err != nil {
		return Variant{}, err
	}
	return next, nil
}

func (v Variant) ID() identity.ProductVariantID { return v.id }
func (v Variant) SKU() string                   { return v.sku }
func (v Variant) Title() string                 { return v.title }
func (v Variant) Price() money.Money            { return v.price }
func (v Variant) InventoryQuantity() int        { return v.inventoryQuantity }
func (v Variant) ManageInventory() bool         { return v.manageInventory }
func (v Variant) AllowBackorder() bool          { return v.allowBackorder }
func (v Variant) CreatedAt() time.Time          { return v.createdAt }
func (v Variant) UpdatedAt() time.Time          { return v.updatedAt }

// CompareAtPrice returns the reference price, if any.
func (v Variant) CompareAtPrice() (money.Money, bool) {
	if v.compareAtPrice == nil {
		return money.Money{}, false
	}
	return *v.compareAtPrice, true
}

// Options returns a copy of the option map (e.g. size, color).
func (v Variant) Options() map[string]string { return maps.Clone(v.options) }

// WeightGrams returns the shipping weight, if set.
func (v Variant) WeightGrams() (int, bool) {
	if v.weightGrams == nil {
		return 0, false
	}
	return *v.weightGrams, true
}

// Dimensions returns the physical size, if set.
func (v Variant) Dimensions() (Dimensions, bool) {
	if v.dimensions == nil {
		return Dimensions{}, false
	}
	return *v.dimensions, true
}

// InStock reports availability from stock alone.
func (v Variant) InStock() bool {
	return !v.manageInventory || v.inventoryQuantity > 0
}

// IsAvailable reports whether the variant can be ordered, counting backorders.
func (v Variant) IsAvailable() bool {
	return v.InStock() || v.allowBackorder
}

// AvailableQuantity returns how many units can be sold. unlimited is true when
// stock is not tracked or backorders are allowed.
func (v Variant) AvailableQuantity() (qty int, unlimited bool) {
	if !v.manageInventory || v.allowBackorder {
		return v.inventoryQuantity, true
	}
	return v.inventoryQuantity, false
}
