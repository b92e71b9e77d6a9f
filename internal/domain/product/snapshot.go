package product

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/slug"
)

// Snapshot is the storage representation of a product.
type Snapshot struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Handle      string            `json:"handle"`
	Description string            `json:"description,omitempty"`
	Vendor      string            `json:"vendor,omitempty"`
	ProductType string            `json:"product_type,omitempty"`
	Currency    string            `json:"currency"`
	Status      Status            `json:"status"`
	Variants    []VariantSnapshot `json:"variants"`
	CategoryIDs []string          `json:"category_ids,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Images      []Image           `json:"images,omitempty"`
	SEO         *SEO              `json:"seo,omitempty"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
}

// VariantSnapshot is the storage representation of a variant.
type VariantSnapshot struct {
	ID                string            `json:"id"`
	SKU               string            `json:"sku"`
	Title             string            `json:"title,omitempty"`
	Price             money.Money       `json:"price"`
	CompareAtPrice    *money.Money      `json:"compare_at_price,omitempty"`
	InventoryQuantity int               `json:"inventory_quantity"`
	ManageInventory   bool              `json:"manage_inventory"`
	AllowBackorder    bool              `json:"allow_backorder"`
	Options           map[string]string `json:"options,omitempty"`
	WeightGrams       *int              `json:"weight_grams,omitempty"`
	Dimensions        *Dimensions       `json:"dimensions,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Snapshot captures the persisted state. Pending events are not included.
func (p *Product) Snapshot() Snapshot {
	s := p.state.clone()
	snap := Snapshot{
		ID:          s.id.String(),
		Title:       s.title,
		Handle:      s.handle,
		Description: s.description,
		Vendor:      s.vendor,
		ProductType: s.productType,
		Currency:    s.currency.Code(),
		Status:      s.status,
		Variants:    make([]VariantSnapshot, 0, len(s.variants)),
		Tags:        s.tags,
		Images:      s.images,
		SEO:         s.seo,
		Version:     p.version,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
	if s.publishedAt != nil {
		t := *s.publishedAt
		snap.PublishedAt = &t
	}
	for _, id := range s.categoryIDs {
		snap.CategoryIDs = append(snap.CategoryIDs, id.String())
	}
	for _, v := range p.Variants() {
		vs := VariantSnapshot{
			ID:                v.id.String(),
			SKU:               v.sku,
			Title:             v.title,
			Price:             v.price,
			InventoryQuantity: v.inventoryQuantity,
			ManageInventory:   v.manageInventory,
			AllowBackorder:    v.allowBackorder,
			Options:           v.Options(),
			CreatedAt:         v.createdAt,
			UpdatedAt:         v.updatedAt,
		}
		if cmp, ok := v.CompareAtPrice(); ok {
			vs.CompareAtPrice = &cmp
		}
		if w, ok := v.WeightGrams(); ok {
			vs.WeightGrams = &w
		}
		if d, ok := v.Dimensions(); ok {
			vs.Dimensions = &d
		}
		snap.Variants = append(snap.Variants, vs)
	}
	return snap
}

// Restore rebuilds a product from a snapshot without queuing any event.
func Restore(snap Snapshot, opts ...Option) (*Product, error) {
	id, err := identity.NewProductID(snap.ID)
	if err != nil {
		return nil, err
	}
	currency, err := money.ParseCurrency(snap.Currency)
	if err != nil {
		return nil, err
	}
	if !snap.Status.IsValid() {
		return nil, apperrors.Validation("status", string(snap.Status), "unknown product status")
	}
	if !slug.IsValid(snap.Handle) {
		return nil, apperrors.Validation("handle", snap.Handle, "must be a lowercase URL slug")
	}

	s := state{
		id:          id,
		title:       snap.Title,
		handle:      snap.Handle,
		description: snap.Description,
		vendor:      snap.Vendor,
		productType: snap.ProductType,
		currency:    currency,
		status:      snap.Status,
		variants:    make(map[identity.ProductVariantID]Variant, len(snap.Variants)),
		tags:        slices.Clone(snap.Tags),
		images:      slices.Clone(snap.Images),
		createdAt:   snap.CreatedAt,
		updatedAt:   snap.UpdatedAt,
	}
	sort.Strings(s.tags)
	sort.SliceStable(s.images, func(i, j int) bool { return s.images[i].Position < s.images[j].Position })
	renumber(s.images)
	if snap.SEO != nil {
		seo := snap.SEO.copy()
		s.seo = &seo
	}
	if snap.PublishedAt != nil {
		t := *snap.PublishedAt
		s.publishedAt = &t
	}
	for _, raw := range snap.CategoryIDs {
		cid, err := identity.NewProductCategoryID(raw)
		if err != nil {
			return nil, err
		}
		s.categoryIDs = append(s.categoryIDs, cid)
	}
	for _, vs := range snap.Variants {
		vid, err := identity.NewProductVariantID(vs.ID)
		if err != nil {
			return nil, err
		}
		v, err := buildVariant(VariantInput{
			ID:                vid,
			SKU:               vs.SKU,
			Title:             vs.Title,
			Price:             vs.Price,
			CompareAtPrice:    vs.CompareAtPrice,
			InventoryQuantity: max(vs.InventoryQuantity, 0),
			ManageInventory:   vs.ManageInventory,
			AllowBackorder:    vs.AllowBackorder,
			Options:           vs.Options,
			WeightGrams:       vs.WeightGrams,
			Dimensions:        vs.Dimensions,
		}, currency, vs.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("restore variant %s: %w", vs.ID, err)
		}
		// Backordered stock may legitimately be negative.
		v.inventoryQuantity = vs.InventoryQuantity
		v.updatedAt = vs.UpdatedAt
		s.variants[vid] = v
	}

	p := &Product{state: s, version: snap.Version, clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}
