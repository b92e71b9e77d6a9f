package memory

import (
	"context"

	"github.com/utafrali/commercecore/internal/domain/cart"
	"github.com/utafrali/commercecore/internal/domain/category"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/product"
	"github.com/utafrali/commercecore/internal/repository"
	spec "github.com/utafrali/commercecore/internal/specification"
)

var (
	_ repository.CartRepository     = (*CartRepository)(nil)
	_ repository.ProductRepository  = (*ProductRepository)(nil)
	_ repository.CategoryRepository = (*CategoryRepository)(nil)
)

// CartRepository keeps carts in memory.
type CartRepository struct {
	*Store[identity.CartID, *cart.Cart]
}

// NewCartRepository creates an empty cart store. opts are applied to every
// cart handed out, e.g. a shared clock.
func NewCartRepository(opts ...cart.Option) *CartRepository {
	clone := func(c *cart.Cart) (*cart.Cart, error) {
		return cart.Restore(c.Snapshot(), c.Policy(), opts...)
	}
	return &CartRepository{NewStore[identity.CartID, *cart.Cart]("cart", clone, WithSorters(cart.Sorters()))}
}

// ProductRepository keeps products in memory with unique handles.
type ProductRepository struct {
	*Store[identity.ProductID, *product.Product]
}

// NewProductRepository creates an empty product store.
func NewProductRepository(opts ...product.Option) *ProductRepository {
	clone := func(p *product.Product) (*product.Product, error) {
		return product.Restore(p.Snapshot(), opts...)
	}
	return &ProductRepository{NewStore[identity.ProductID, *product.Product]("product", clone,
		WithSorters(product.Sorters()),
		WithUniqueIndex(product.FieldHandle, (*product.Product).Handle),
	)}
}

// FindByHandle returns the product with handle.
func (r *ProductRepository) FindByHandle(ctx context.Context, handle string) (*product.Product, error) {
	return r.FindByKey(ctx, product.FieldHandle, handle)
}

// CategoryRepository keeps categories in memory with unique handles.
type CategoryRepository struct {
	*Store[identity.ProductCategoryID, *category.Category]
}

// NewCategoryRepository creates an empty category store.
func NewCategoryRepository(opts ...category.Option) *CategoryRepository {
	clone := func(c *category.Category) (*category.Category, error) {
		return category.Restore(c.Snapshot(), opts...)
	}
	return &CategoryRepository{NewStore[identity.ProductCategoryID, *category.Category]("product_category", clone,
		WithUniqueIndex("handle", (*category.Category).Handle),
	)}
}

// FindByHandle returns the category with handle.
func (r *CategoryRepository) FindByHandle(ctx context.Context, handle string) (*category.Category, error) {
	return r.FindByKey(ctx, "handle", handle)
}

// FindAll returns every category.
func (r *CategoryRepository) FindAll(ctx context.Context) ([]*category.Category, error) {
	return r.Find(ctx, spec.All[*category.Category]())
}
