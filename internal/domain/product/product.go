// Package product implements the catalog product aggregate.
package product

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/slug"
)

// Status is the lifecycle state of a product.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

// Availability summarises whether a product's variants can be ordered.
type Availability string

const (
	InStock          Availability = "in_stock"
	OutOfStock       Availability = "out_of_stock"
	PartiallyInStock Availability = "partially_in_stock"
)

// Clock supplies the current time.
type Clock func() time.Time

// Option configures a Product at construction or restore time.
type Option func(*Product)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(p *Product) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProductInput holds the fields for New. An empty Handle is derived from Title.
type NewProductInput struct {
	Title       string
	Handle      string
	Description string
	Vendor      string
	ProductType string
	Currency    money.Currency
	Tags        []string
}

// DetailsUpdate carries optional changes to descriptive fields.
type DetailsUpdate struct {
	Title       *string
	Description *string
	Vendor      *string
	ProductType *string
}

type state struct {
	id          identity.ProductID
	title       string
	handle      string
	description string
	vendor      string
	productType string
	currency    money.Currency
	status      Status
	variants    map[identity.ProductVariantID]Variant
	categoryIDs []identity.ProductCategoryID
	tags        []string
	images      []Image
	seo         *SEO
	createdAt   time.Time
	updatedAt   time.Time
	publishedAt *time.Time
}

func (s state) clone() state {
	next := s
	next.variants = make(map[identity.ProductVariantID]Variant, len(s.variants))
	for id, v := range s.variants {
		next.variants[id] = v
	}
	next.categoryIDs = slices.Clone(s.categoryIDs)
	next.tags = slices.Clone(s.tags)
	next.images = make([]Image, len(s.images))
	for i, img := range s.images {
		img.VariantIDs = slices.Clone(img.VariantIDs)
		next.images[i] = img
	}
	if s.seo != nil {
		seo := *s.seo
		seo.Keywords = slices.Clone(seo.Keywords)
		next.seo = &seo
	}
	return next
}

// Product is the catalog product aggregate root.
type Product struct {
	state
	event.Recorder

	version int
	clock   Clock
}

// New validates input and creates a Draft product.
func New(in NewProductInput, opts ...Option) (*Product, error) {
	p := &Product{clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	now := p.now()

	var errs apperrors.ValidationErrorCollection
	title := strings.TrimSpace(in.Title)
	validateTitle(&errs, title)

	handle := strings.TrimSpace(in.Handle)
	if handle == "" {
		handle = slug.Generate(title)
	}
	if title != "" && !slug.IsValid(handle) {
		errs.Add("handle", in.Handle, "must be a lowercase URL slug")
	}
	if in.Currency.IsZero() {
		errs.Add("currency", "", "is required")
	}

	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		t = normalizeTag(t)
		if t == "" || slices.Contains(tags, t) {
			continue
		}
		if len(t) > MaxTagLength {
			errs.Add("tags", t, fmt.Sprintf("tags must not exceed %d characters", MaxTagLength))
			continue
		}
		tags = append(tags, t)
	}
	if len(tags) > MaxTags {
		errs.Add("tags", len(tags), fmt.Sprintf("must not contain more than %d tags", MaxTags))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	sort.Strings(tags)

	p.state = state{
		id:          identity.Generate[identity.ProductKind](),
		title:       title,
		handle:      handle,
		description: strings.TrimSpace(in.Description),
		vendor:      strings.TrimSpace(in.Vendor),
		productType: strings.TrimSpace(in.ProductType),
		currency:    in.Currency,
		status:      StatusDraft,
		variants:    make(map[identity.ProductVariantID]Variant),
		tags:        tags,
		createdAt:   now,
		updatedAt:   now,
	}
	p.Record(p.newEvent(EventCreated, now,
		event.F("title", title),
		event.F("handle", handle),
		event.F("currency", in.Currency.Code()),
	))
	return p, nil
}

func validateTitle(errs *apperrors.ValidationErrorCollection, title string) {
	switch {
	case title == "":
		errs.Add("title", title, "is required")
	case len(title) > MaxTitleLength:
		errs.Add("title", len(title), fmt.Sprintf("must not exceed %d characters", MaxTitleLength))
	}
}

func (p *Product) now() time.Time { return p.clock().UTC() }

func (p *Product) ID() identity.ProductID   { return p.id }
func (p *Product) Title() string            { return p.title }
func (p *Product) Handle() string           { return p.handle }
func (p *Product) Description() string      { return p.description }
func (p *Product) Vendor() string           { return p.vendor }
func (p *Product) ProductType() string      { return p.productType }
func (p *Product) Currency() money.Currency { return p.currency }
func (p *Product) Status() Status           { return p.status }
func (p *Product) CreatedAt() time.Time     { return p.createdAt }
func (p *Product) UpdatedAt() time.Time     { return p.updatedAt }
func (p *Product) Version() int             { return p.version }
func (p *Product) SetVersion(v int)         { p.version = v }

// PublishedAt returns when the product was first published.
func (p *Product) PublishedAt() (time.Time, bool) {
	if p.publishedAt == nil {
		return time.Time{}, false
	}
	return *p.publishedAt, true
}

// Variants returns variants ordered by creation time, then SKU.
func (p *Product) Variants() []Variant {
	out := make([]Variant, 0, len(p.variants))
	for _, v := range p.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].sku < out[j].sku
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

// Variant returns the variant with id.
func (p *Product) Variant(id identity.ProductVariantID) (Variant, bool) {
	v, ok := p.variants[id]
	return v, ok
}

// VariantBySKU returns the variant with sku.
func (p *Product) VariantBySKU(sku string) (Variant, bool) {
	for _, v := range p.variants {
		if v.sku == sku {
			return v, true
		}
	}
	return Variant{}, false
}

// CategoryIDs returns assigned categories in assignment order.
func (p *Product) CategoryIDs() []identity.ProductCategoryID { return slices.Clone(p.categoryIDs) }

// InCategory reports whether id is assigned.
func (p *Product) InCategory(id identity.ProductCategoryID) bool {
	return slices.Contains(p.categoryIDs, id)
}

// Tags returns the sorted tags.
func (p *Product) Tags() []string { return slices.Clone(p.tags) }

// HasTag reports whether tag (case-insensitive) is set.
func (p *Product) HasTag(tag string) bool {
	return slices.Contains(p.tags, normalizeTag(tag))
}

// Images returns images ordered by position.
func (p *Product) Images() []Image { return p.state.clone().images }

// SEO returns the search metadata, if set.
func (p *Product) SEO() (SEO, bool) {
	if p.seo == nil {
		return SEO{}, false
	}
	return p.seo.copy(), true
}

func (s SEO) copy() SEO {
	s.Keywords = slices.Clone(s.Keywords)
	return s
}

// PriceRange returns the lowest and highest variant prices; ok is false when
// the product has no variants.
func (p *Product) PriceRange() (r money.Range, ok bool) {
	return p.state.priceRange()
}

func (s state) priceRange() (money.Range, bool) {
	if len(s.variants) == 0 {
		return money.Range{}, false
	}
	var lo, hi int64
	first := true
	for _, v := range s.variants {
		a := v.price.Amount()
		if first || a < lo {
			lo = a
		}
		if first || a > hi {
			hi = a
		}
		first = false
	}
	r, err := money.NewRange(money.FromMinorUnits(lo, s.currency), money.FromMinorUnits(hi, s.currency))
	if err != nil {
		return money.Range{}, false
	}
	return r, true
}

// TotalInventory sums inventory across variants.
func (p *Product) TotalInventory() int { return p.state.totalInventory() }

func (s state) totalInventory() int {
	total := 0
	for _, v := range s.variants {
		total += v.inventoryQuantity
	}
	return total
}

// Availability classifies the product's variants. A variant orderable only
// through backorder counts as available.
func (p *Product) Availability() Availability {
	available := 0
	for _, v := range p.variants {
		if v.IsAvailable() {
			available++
		}
	}
	switch {
	case available == 0:
		return OutOfStock
	case available == len(p.variants):
		return InStock
	default:
		return PartiallyInStock
	}
}

// IsAvailable reports whether the product is Active with at least one orderable variant.
func (p *Product) IsAvailable() bool {
	if p.status != StatusActive {
		return false
	}
	for _, v := range p.variants {
		if v.IsAvailable() {
			return true
		}
	}
	return false
}

func (p *Product) commit(t transition) {
	p.state = t.next
	p.Record(t.events...)
}
