package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/product"
	"github.com/utafrali/commercecore/internal/event"
	"github.com/utafrali/commercecore/internal/repository"
	spec "github.com/utafrali/commercecore/internal/specification"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/pagination"
)

// ProductService implements the catalog product use cases.
type ProductService struct {
	repo       repository.ProductRepository
	categories repository.CategoryRepository
	events     dispatcher
	logger     *slog.Logger
	clock      func() time.Time

	// handles collapses concurrent storefront lookups of the same handle.
	handles singleflight.Group
}

// NewProductService creates a new product service.
func NewProductService(repo repository.ProductRepository, categories repository.CategoryRepository, publisher event.Publisher, logger *slog.Logger, opts ...Option) *ProductService {
	o := buildOptions(opts)
	d := newDispatcher(publisher, logger)
	return &ProductService{
		repo:       repo,
		categories: categories,
		events:     d,
		logger:     d.logger,
		clock:      o.clock,
	}
}

// CreateProduct creates a Draft product. The handle must be unused.
func (s *ProductService) CreateProduct(ctx context.Context, in product.NewProductInput) Result[*product.Product] {
	p, err := product.New(in, product.WithClock(product.Clock(s.clock)))
	if err != nil {
		return Fail[*product.Product](fmt.Errorf("create product: %w", err))
	}
	if err := s.ensureHandleFree(ctx, p.Handle(), p.ID()); err != nil {
		return Fail[*product.Product](fmt.Errorf("create product: %w", err))
	}
	res := s.persist(ctx, "create product", p)
	if res.IsOK() {
		s.logger.InfoContext(ctx, "product created",
			slog.String("product_id", p.ID().String()),
			slog.String("handle", p.Handle()),
		)
	}
	return res
}

// GetProduct loads a product by id.
func (s *ProductService) GetProduct(ctx context.Context, id identity.ProductID) Result[*product.Product] {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[*product.Product](fmt.Errorf("get product: %w", err))
	}
	return Ok(p)
}

// GetProductByHandle loads a product by its URL handle. Concurrent lookups of
// the same handle share one repository call; each caller gets its own copy.
func (s *ProductService) GetProductByHandle(ctx context.Context, handle string) Result[*product.Product] {
	if handle == "" {
		return Fail[*product.Product](apperrors.Validation("handle", handle, "is required"))
	}
	v, err, _ := s.handles.Do(handle, func() (any, error) {
		return s.repo.FindByHandle(ctx, handle)
	})
	if err != nil {
		return Fail[*product.Product](fmt.Errorf("get product by handle: %w", err))
	}
	p, err := product.Restore(v.(*product.Product).Snapshot(), product.WithClock(product.Clock(s.clock)))
	if err != nil {
		return Fail[*product.Product](fmt.Errorf("get product by handle: %w", err))
	}
	return Ok(p)
}

// ListProducts returns one page of products matching s, in creation order.
func (s *ProductService) ListProducts(ctx context.Context, filter spec.Spec[*product.Product], params pagination.Params) Result[pagination.Result[*product.Product]] {
	page, err := s.repo.FindPaginated(ctx, filter, params)
	if err != nil {
		return Fail[pagination.Result[*product.Product]](fmt.Errorf("list products: %w", err))
	}
	return Ok(page)
}

// SearchProducts runs a sorted, limited query.
func (s *ProductService) SearchProducts(ctx context.Context, q spec.Query[*product.Product]) Result[[]*product.Product] {
	products, err := s.repo.FindByQuery(ctx, q)
	if err != nil {
		return Fail[[]*product.Product](fmt.Errorf("search products: %w", err))
	}
	return Ok(products)
}

// UpdateDetails changes the descriptive fields.
func (s *ProductService) UpdateDetails(ctx context.Context, id identity.ProductID, u product.DetailsUpdate) Result[*product.Product] {
	return s.mutate(ctx, id, "update product", func(p *product.Product) error {
		return p.UpdateDetails(u)
	})
}

// ChangeHandle moves the product to a new, unused handle.
func (s *ProductService) ChangeHandle(ctx context.Context, id identity.ProductID, handle string) Result[*product.Product] {
	return s.mutate(ctx, id, "change product handle", func(p *product.Product) error {
		if err := p.ChangeHandle(handle); err != nil {
			return err
		}
		return s.ensureHandleFree(ctx, p.Handle(), p.ID())
	})
}

// AddVariant adds a purchasable variant.
func (s *ProductService) AddVariant(ctx context.Context, id identity.ProductID, in product.VariantInput) Result[*product.Product] {
	return s.mutate(ctx, id, "add variant", func(p *product.Product) error {
		_, err := p.AddVariant(in)
		return err
	})
}

// UpdateVariant applies a partial update to a variant.
func (s *ProductService) UpdateVariant(ctx context.Context, id identity.ProductID, variantID identity.ProductVariantID, u product.VariantUpdate) Result[*product.Product] {
	return s.mutate(ctx, id, "update variant", func(p *product.Product) error {
		_, err := p.UpdateVariant(variantID, u)
		return err
	})
}

// RemoveVariant deletes a variant.
func (s *ProductService) RemoveVariant(ctx context.Context, id identity.ProductID, variantID identity.ProductVariantID) Result[*product.Product] {
	return s.mutate(ctx, id, "remove variant", func(p *product.Product) error {
		return p.RemoveVariant(variantID)
	})
}

// AdjustInventory moves a variant's stock by delta.
func (s *ProductService) AdjustInventory(ctx context.Context, id identity.ProductID, variantID identity.ProductVariantID, delta int, reason string) Result[*product.Product] {
	return s.mutate(ctx, id, "adjust inventory", func(p *product.Product) error {
		_, err := p.AdjustInventory(variantID, delta, reason)
		return err
	})
}

// PublishProduct makes a product visible to shoppers.
func (s *ProductService) PublishProduct(ctx context.Context, id identity.ProductID) Result[*product.Product] {
	res := s.mutate(ctx, id, "publish product", func(p *product.Product) error {
		return p.Publish()
	})
	if res.IsOK() {
		s.logger.InfoContext(ctx, "product published", slog.String("product_id", id.String()))
	}
	return res
}

// DeactivateProduct hides an active product.
func (s *ProductService) DeactivateProduct(ctx context.Context, id identity.ProductID) Result[*product.Product] {
	return s.mutate(ctx, id, "deactivate product", func(p *product.Product) error {
		return p.Deactivate()
	})
}

// ReactivateProduct makes an inactive product active again.
func (s *ProductService) ReactivateProduct(ctx context.Context, id identity.ProductID) Result[*product.Product] {
	return s.mutate(ctx, id, "reactivate product", func(p *product.Product) error {
		return p.Reactivate()
	})
}

// ArchiveProduct retires a product. Archived products are read-only.
func (s *ProductService) ArchiveProduct(ctx context.Context, id identity.ProductID) Result[*product.Product] {
	res := s.mutate(ctx, id, "archive product", func(p *product.Product) error {
		return p.Archive()
	})
	if res.IsOK() {
		s.logger.InfoContext(ctx, "product archived", slog.String("product_id", id.String()))
	}
	return res
}

// AssignCategory links the product to an existing category.
func (s *ProductService) AssignCategory(ctx context.Context, id identity.ProductID, categoryID identity.ProductCategoryID) Result[*product.Product] {
	exists, err := s.categories.Exists(ctx, categoryID)
	if err != nil {
		return Fail[*product.Product](fmt.Errorf("assign category: %w", err))
	}
	if !exists {
		return Fail[*product.Product](apperrors.NotFound("product_category", categoryID.String()))
	}
	return s.mutate(ctx, id, "assign category", func(p *product.Product) error {
		return p.AssignCategory(categoryID)
	})
}

// RemoveCategory unlinks the product from a category.
func (s *ProductService) RemoveCategory(ctx context.Context, id identity.ProductID, categoryID identity.ProductCategoryID) Result[*product.Product] {
	return s.mutate(ctx, id, "remove category", func(p *product.Product) error {
		return p.RemoveCategory(categoryID)
	})
}

// AddTag tags the product.
func (s *ProductService) AddTag(ctx context.Context, id identity.ProductID, tag string) Result[*product.Product] {
	return s.mutate(ctx, id, "add tag", func(p *product.Product) error {
		return p.AddTag(tag)
	})
}

// RemoveTag removes a tag.
func (s *ProductService) RemoveTag(ctx context.Context, id identity.ProductID, tag string) Result[*product.Product] {
	return s.mutate(ctx, id, "remove tag", func(p *product.Product) error {
		return p.RemoveTag(tag)
	})
}

// AddImage appends or inserts an image.
func (s *ProductService) AddImage(ctx context.Context, id identity.ProductID, in product.ImageInput) Result[*product.Product] {
	return s.mutate(ctx, id, "add image", func(p *product.Product) error {
		_, err := p.AddImage(in)
		return err
	})
}

// RemoveImage deletes an image and closes the gap in positions.
func (s *ProductService) RemoveImage(ctx context.Context, id identity.ProductID, imageID identity.ProductImageID) Result[*product.Product] {
	return s.mutate(ctx, id, "remove image", func(p *product.Product) error {
		return p.RemoveImage(imageID)
	})
}

// ReorderImages sets the image order. ids must name every image exactly once.
func (s *ProductService) ReorderImages(ctx context.Context, id identity.ProductID, ids []identity.ProductImageID) Result[*product.Product] {
	return s.mutate(ctx, id, "reorder images", func(p *product.Product) error {
		return p.ReorderImages(ids)
	})
}

// UpdateSEO replaces the search metadata.
func (s *ProductService) UpdateSEO(ctx context.Context, id identity.ProductID, seo product.SEO) Result[*product.Product] {
	return s.mutate(ctx, id, "update seo", func(p *product.Product) error {
		return p.UpdateSEO(seo)
	})
}

func (s *ProductService) ensureHandleFree(ctx context.Context, handle string, owner identity.ProductID) error {
	existing, err := s.repo.FindByHandle(ctx, handle)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID().Equal(owner):
		return nil
	}
	return apperrors.AlreadyExists("product", product.FieldHandle, handle)
}

func (s *ProductService) mutate(ctx context.Context, id identity.ProductID, action string, fn func(*product.Product) error) Result[*product.Product] {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[*product.Product](fmt.Errorf("%s: %w", action, err))
	}
	if err := fn(p); err != nil {
		return Fail[*product.Product](fmt.Errorf("%s: %w", action, err))
	}
	return s.persist(ctx, action, p)
}

func (s *ProductService) persist(ctx context.Context, action string, p *product.Product) Result[*product.Product] {
	if err := s.repo.Save(ctx, p); err != nil {
		return Fail[*product.Product](fmt.Errorf("%s: %w", action, err))
	}
	return Ok(p).withDispatchErr(s.events.dispatch(ctx, p))
}
