// Package repository defines the persistence contracts for aggregates.
// Implementations live in the memory, redis and postgres subpackages.
package repository

import (
	"context"

	"github.com/utafrali/commercecore/internal/domain/cart"
	"github.com/utafrali/commercecore/internal/domain/category"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/product"
	spec "github.com/utafrali/commercecore/internal/specification"
	"github.com/utafrali/commercecore/pkg/pagination"
)

// PaginatedResult is one page of matches. Pages are 1-indexed.
type PaginatedResult[T any] = pagination.Result[T]

// Versioned is implemented by aggregates stored with optimistic locking.
// Version is the value loaded from storage, zero for a new aggregate; a
// successful Save advances it.
type Versioned interface {
	Version() int
	SetVersion(v int)
}

// Repository is the generic aggregate store.
//
// Save fails with a ConcurrencyError when the stored version differs from the
// aggregate's. FindByID fails with an EntityNotFoundError.
type Repository[ID comparable, T any] interface {
	FindByID(ctx context.Context, id ID) (T, error)
	FindByIDs(ctx context.Context, ids []ID) ([]T, error)
	Save(ctx context.Context, entity T) error
	SaveMany(ctx context.Context, entities []T) error
	Delete(ctx context.Context, id ID) error
	DeleteMany(ctx context.Context, ids []ID) (int, error)
	Exists(ctx context.Context, id ID) (bool, error)
	Count(ctx context.Context) (int, error)

	Find(ctx context.Context, s spec.Spec[T]) ([]T, error)
	FindOne(ctx context.Context, s spec.Spec[T]) (T, bool, error)
	FindPaginated(ctx context.Context, s spec.Spec[T], params pagination.Params) (PaginatedResult[T], error)
	FindByQuery(ctx context.Context, q spec.Query[T]) ([]T, error)
	CountMatching(ctx context.Context, s spec.Spec[T]) (int, error)
}

// CartRepository stores carts.
type CartRepository interface {
	Repository[identity.CartID, *cart.Cart]
}

// ProductRepository stores products. Handles are unique across the catalog.
type ProductRepository interface {
	Repository[identity.ProductID, *product.Product]

	FindByHandle(ctx context.Context, handle string) (*product.Product, error)
}

// CategoryRepository stores categories. Handles are unique.
type CategoryRepository interface {
	Repository[identity.ProductCategoryID, *category.Category]

	FindByHandle(ctx context.Context, handle string) (*category.Category, error)
	FindAll(ctx context.Context) ([]*category.Category, error)
}
