package product

import (
	"strings"
	"time"

	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	spec "github.com/utafrali/commercecore/internal/specification"
)

// Filter fields understood by product repositories.
const (
	FieldStatus      = "status"
	FieldHandle      = "handle"
	FieldTitle       = "title"
	FieldVendor      = "vendor"
	FieldProductType = "product_type"
	FieldCurrency    = "currency"
	FieldCategoryIDs = "category_ids"
	FieldTags        = "tags"
	FieldMinPrice    = "min_price"
	FieldMaxPrice    = "max_price"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
	FieldPublishedAt = "published_at"
)

// HasStatus matches products in status.
func HasStatus(status Status) spec.Spec[*Product] {
	return spec.Leaf("product_status_"+string(status),
		func(p *Product) bool { return p.status == status },
		spec.Eq(FieldStatus, string(status)))
}

// Published matches Active products.
func Published() spec.Spec[*Product] { return HasStatus(StatusActive) }

// WithHandle matches the product with handle.
func WithHandle(handle string) spec.Spec[*Product] {
	return spec.Leaf("product_handle",
		func(p *Product) bool { return p.handle == handle },
		spec.Eq(FieldHandle, handle))
}

// InCategory matches products assigned to id.
func InCategory(id identity.ProductCategoryID) spec.Spec[*Product] {
	return spec.Leaf("product_in_category",
		func(p *Product) bool { return p.InCategory(id) },
		spec.Contains(FieldCategoryIDs, id.String()))
}

// InAnyCategory matches products assigned to at least one of ids.
func InAnyCategory(ids ...identity.ProductCategoryID) spec.Spec[*Product] {
	specs := make([]spec.Spec[*Product], 0, len(ids))
	for _, id := range ids {
		specs = append(specs, InCategory(id))
	}
	return spec.Or(specs...)
}

// Tagged matches products carrying tag.
func Tagged(tag string) spec.Spec[*Product] {
	t := normalizeTag(tag)
	return spec.Leaf("product_tagged",
		func(p *Product) bool { return p.HasTag(t) },
		spec.Contains(FieldTags, t))
}

// ByVendor matches products from vendor, case-insensitively.
func ByVendor(vendor string) spec.Spec[*Product] {
	return spec.Leaf("product_vendor",
		func(p *Product) bool { return strings.EqualFold(p.vendor, vendor) },
		spec.Eq(FieldVendor, vendor))
}

// TitleContains matches products whose title contains term, case-insensitively.
func TitleContains(term string) spec.Spec[*Product] {
	lower := strings.ToLower(term)
	return spec.Leaf("product_title_contains",
		func(p *Product) bool { return strings.Contains(strings.ToLower(p.title), lower) },
		spec.Contains(FieldTitle, term))
}

// PricedFrom matches products with a variant priced at or above minimum.
func PricedFrom(minimum money.Money) spec.Spec[*Product] {
	return spec.Leaf("product_priced_from",
		func(p *Product) bool {
			r, ok := p.PriceRange()
			return ok && p.currency == minimum.Currency() && r.Max().Amount() >= minimum.Amount()
		},
		spec.AndFilter(spec.Eq(FieldCurrency, minimum.Currency().Code()), spec.Gte(FieldMaxPrice, minimum.Amount())))
}

// PricedUpTo matches products with a variant priced at or below maximum.
func PricedUpTo(maximum money.Money) spec.Spec[*Product] {
	return spec.Leaf("product_priced_up_to",
		func(p *Product) bool {
			r, ok := p.PriceRange()
			return ok && p.currency == maximum.Currency() && r.Min().Amount() <= maximum.Amount()
		},
		spec.AndFilter(spec.Eq(FieldCurrency, maximum.Currency().Code()), spec.Lte(FieldMinPrice, maximum.Amount())))
}

// Available matches Active products with an orderable variant. Stock lives in
// variants, so this has no backend translation.
func Available() spec.Spec[*Product] {
	return spec.Leaf("product_available", func(p *Product) bool { return p.IsAvailable() }, spec.Filter{})
}

// Sorters are the sortable product fields.
func Sorters() spec.Sorters[*Product] {
	minPrice := func(p *Product) int64 {
		if r, ok := p.PriceRange(); ok {
			return r.Min().Amount()
		}
		return 0
	}
	return spec.Sorters[*Product]{
		FieldTitle:     spec.By(func(p *Product) string { return strings.ToLower(p.title) }),
		FieldHandle:    spec.By(func(p *Product) string { return p.handle }),
		FieldCreatedAt: spec.ByTime(func(p *Product) time.Time { return p.createdAt }),
		FieldUpdatedAt: spec.ByTime(func(p *Product) time.Time { return p.updatedAt }),
		FieldMinPrice:  spec.By(minPrice),
		"price":        spec.By(minPrice),
	}
}
