package http

import (
	"github.com/utafrali/commercecore/internal/domain/cart"
	"github.com/utafrali/commercecore/internal/domain/category"
	"github.com/utafrali/commercecore/internal/domain/money"
	"github.com/utafrali/commercecore/internal/domain/product"
)

// CartResponse is a cart with its computed totals.
type CartResponse struct {
	cart.Snapshot
	ItemCount      int         `json:"item_count"`
	Subtotal       money.Money `json:"subtotal"`
	DiscountTotal  money.Money `json:"discount_total"`
	ShippingCost   money.Money `json:"shipping_cost"`
	Total          money.Money `json:"total"`
	CompareSavings money.Money `json:"compare_at_savings"`
}

func renderCart(c *cart.Cart) CartResponse {
	return CartResponse{
		Snapshot:       c.Snapshot(),
		ItemCount:      c.ItemCount(),
		Subtotal:       c.Subtotal(),
		DiscountTotal:  c.TotalDiscounts(),
		ShippingCost:   c.ShippingCost(),
		Total:          c.Total(),
		CompareSavings: c.SavingsFromCompareAt(),
	}
}

// PriceRangeResponse is the cheapest and dearest variant price.
type PriceRangeResponse struct {
	Min money.Money `json:"min"`
	Max money.Money `json:"max"`
}

// ProductResponse is a product with its derived catalog fields.
type ProductResponse struct {
	product.Snapshot
	Availability   product.Availability `json:"availability"`
	TotalInventory int                  `json:"total_inventory"`
	PriceRange     *PriceRangeResponse  `json:"price_range,omitempty"`
}

func renderProduct(p *product.Product) ProductResponse {
	resp := ProductResponse{
		Snapshot:       p.Snapshot(),
		Availability:   p.Availability(),
		TotalInventory: p.TotalInventory(),
	}
	if r, ok := p.PriceRange(); ok {
		resp.PriceRange = &PriceRangeResponse{Min: r.Min(), Max: r.Max()}
	}
	return resp
}

func renderProducts(ps []*product.Product) []ProductResponse {
	out := make([]ProductResponse, len(ps))
	for i, p := range ps {
		out[i] = renderProduct(p)
	}
	return out
}

func renderCategory(c *category.Category) category.Snapshot {
	return c.Snapshot()
}

// CategoryNode is one category in the rendered tree.
type CategoryNode struct {
	category.Snapshot
	Children []CategoryNode `json:"children"`
}

func renderTree(t *category.Tree) []CategoryNode {
	var build func(cs []*category.Category) []CategoryNode
	build = func(cs []*category.Category) []CategoryNode {
		nodes := make([]CategoryNode, len(cs))
		for i, c := range cs {
			nodes[i] = CategoryNode{Snapshot: c.Snapshot(), Children: build(t.Children(c.ID()))}
		}
		return nodes
	}
	return build(t.Roots())
}
