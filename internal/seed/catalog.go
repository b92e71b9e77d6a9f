package seed

import (
	"fmt"
	"strings"
)

// Currency is used for every seeded price.
const Currency = "USD"

// VariantKind selects the option axis generated for a product.
type VariantKind int

const (
	// SingleVariant creates one "Standard" variant.
	SingleVariant VariantKind = iota
	// SizedVariants creates S, M, L and XL.
	SizedVariants
	// ColoredVariants creates Black, Silver and White. Silver costs more.
	ColoredVariants
)

// CategoryDef is one node of the seeded category tree.
type CategoryDef struct {
	Name     string
	Products []ProductDef
	Children []CategoryDef
}

// ProductDef describes a product. Price is in cents.
type ProductDef struct {
	Title       string
	Description string
	Vendor      string
	Type        string
	Tags        []string
	Price       int64
	Stock       int
	Variants    VariantKind
	Draft       bool
}

// DefaultCatalog returns the demo catalog.
func DefaultCatalog() []CategoryDef {
	return []CategoryDef{
		{
			Name: "Apparel",
			Children: []CategoryDef{
				{Name: "Tops", Products: []ProductDef{
					{Title: "Merino Crew Tee", Description: "Lightweight merino wool tee.", Vendor: "Northbound", Type: "t-shirt", Tags: []string{"wool", "basics"}, Price: 4500, Stock: 40, Variants: SizedVariants},
					{Title: "Oxford Button Down", Description: "Classic cotton oxford shirt.", Vendor: "Harbor & Co", Type: "shirt", Tags: []string{"cotton"}, Price: 6900, Stock: 25, Variants: SizedVariants},
					{Title: "Fleece Quarter Zip", Description: "Recycled fleece pullover.", Vendor: "Northbound", Type: "sweater", Tags: []string{"outdoor", "recycled"}, Price: 7900, Stock: 18, Variants: SizedVariants},
				}},
				{Name: "Outerwear", Products: []ProductDef{
					{Title: "Packable Rain Shell", Description: "Waterproof shell that folds into its pocket.", Vendor: "Northbound", Type: "jacket", Tags: []string{"outdoor", "waterproof"}, Price: 12900, Stock: 12, Variants: SizedVariants},
					{Title: "Waxed Field Jacket", Description: "Waxed cotton jacket with corduroy collar.", Vendor: "Harbor & Co", Type: "jacket", Tags: []string{"heritage"}, Price: 24900, Stock: 6, Variants: SizedVariants, Draft: true},
				}},
			},
		},
		{
			Name: "Electronics",
			Products: []ProductDef{
				{Title: "Wireless Charging Pad", Description: "15W Qi charging pad.", Vendor: "Voltline", Type: "accessory", Tags: []string{"charging"}, Price: 2900, Stock: 60, Variants: ColoredVariants},
			},
			Children: []CategoryDef{
				{Name: "Audio", Products: []ProductDef{
					{Title: "Studio Headphones", Description: "Closed-back headphones with detachable cable.", Vendor: "Soundfield", Type: "headphones", Tags: []string{"wired", "studio"}, Price: 14900, Stock: 20, Variants: ColoredVariants},
					{Title: "Noise Cancelling Earbuds", Description: "True wireless earbuds with ANC.", Vendor: "Soundfield", Type: "earbuds", Tags: []string{"wireless", "anc"}, Price: 17900, Stock: 35, Variants: ColoredVariants},
					{Title: "Portable Speaker", Description: "Splash-proof bluetooth speaker.", Vendor: "Voltline", Type: "speaker", Tags: []string{"wireless", "outdoor"}, Price: 8900, Stock: 0, Variants: ColoredVariants},
				}},
			},
		},
		{
			Name: "Home & Kitchen",
			Products: []ProductDef{
				{Title: "Cast Iron Skillet", Description: "Pre-seasoned 10 inch skillet.", Vendor: "Hearthware", Type: "cookware", Tags: []string{"cast-iron"}, Price: 3900, Stock: 30},
				{Title: "Pour Over Coffee Set", Description: "Glass dripper, carafe and filters.", Vendor: "Hearthware", Type: "coffee", Tags: []string{"coffee"}, Price: 4900, Stock: 22},
				{Title: "Linen Table Runner", Description: "Stonewashed linen runner.", Vendor: "Harbor & Co", Type: "textile", Tags: []string{"linen"}, Price: 3400, Stock: 15},
			},
		},
		{
			Name: "Books",
			Products: []ProductDef{
				{Title: "The Field Guide to Knots", Description: "Illustrated guide to eighty knots.", Vendor: "Pinecone Press", Type: "book", Tags: []string{"outdoor", "hardcover"}, Price: 2400, Stock: 50},
				{Title: "Everyday Sourdough", Description: "Baking sourdough on a weekday schedule.", Vendor: "Pinecone Press", Type: "book", Tags: []string{"cooking"}, Price: 2900, Stock: 45},
			},
		},
	}
}

// variantsFor builds the variant request bodies for def. Stock is split
// evenly across variants with the remainder on the first one.
func variantsFor(def ProductDef) []map[string]any {
	type option struct {
		name, value string
		extra       int64
	}

	var opts []option
	switch def.Variants {
	case SizedVariants:
		for _, s := range []string{"S", "M", "L", "XL"} {
			opts = append(opts, option{name: "size", value: s})
		}
	case ColoredVariants:
		opts = []option{
			{name: "color", value: "Black"},
			{name: "color", value: "Silver", extra: 500},
			{name: "color", value: "White"},
		}
	default:
		opts = []option{{name: "edition", value: "Standard"}}
	}

	prefix := skuPrefix(def.Title)
	per, rest := def.Stock/len(opts), def.Stock%len(opts)

	out := make([]map[string]any, 0, len(opts))
	for i, o := range opts {
		stock := per
		if i == 0 {
			stock += rest
		}
		out = append(out, map[string]any{
			"sku":                fmt.Sprintf("%s-%s", prefix, strings.ToUpper(o.value)),
			"title":              o.value,
			"price":              map[string]any{"amount": def.Price + o.extra, "currency": Currency},
			"inventory_quantity": stock,
			"manage_inventory":   true,
			"options":            map[string]string{o.name: o.value},
		})
	}
	return out
}

// skuPrefix takes the first three letters of each word, e.g.
// "Studio Headphones" becomes "STU-HEA".
func skuPrefix(title string) string {
	var parts []string
	for _, w := range strings.FieldsFunc(strings.ToUpper(title), func(r rune) bool {
		return (r < 'A' || r > 'Z') && (r < '0' || r > '9')
	}) {
		if len(w) > 3 {
			w = w[:3]
		}
		parts = append(parts, w)
	}
	return strings.Join(parts, "-")
}
