package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/commercecore/internal/domain/category"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/event"
	"github.com/utafrali/commercecore/internal/repository"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// CategoryService implements the category tree use cases.
type CategoryService struct {
	repo   repository.CategoryRepository
	events dispatcher
	logger *slog.Logger
	clock  func() time.Time
}

// NewCategoryService creates a new category service.
func NewCategoryService(repo repository.CategoryRepository, publisher event.Publisher, logger *slog.Logger, opts ...Option) *CategoryService {
	o := buildOptions(opts)
	d := newDispatcher(publisher, logger)
	return &CategoryService{repo: repo, events: d, logger: d.logger, clock: o.clock}
}

// CreateCategory creates an Active category. The handle must be unused and
// the parent, when given, must exist.
func (s *CategoryService) CreateCategory(ctx context.Context, in category.NewInput) Result[*category.Category] {
	c, err := category.New(in, category.WithClock(category.Clock(s.clock)))
	if err != nil {
		return Fail[*category.Category](fmt.Errorf("create category: %w", err))
	}
	if !in.ParentID.IsZero() {
		exists, err := s.repo.Exists(ctx, in.ParentID)
		if err != nil {
			return Fail[*category.Category](fmt.Errorf("create category: %w", err))
		}
		if !exists {
			return Fail[*category.Category](apperrors.NotFound("product_category", in.ParentID.String()))
		}
	}
	if err := s.ensureHandleFree(ctx, c.Handle(), c.ID()); err != nil {
		return Fail[*category.Category](fmt.Errorf("create category: %w", err))
	}
	res := s.persist(ctx, "create category", c)
	if res.IsOK() {
		s.logger.InfoContext(ctx, "category created",
			slog.String("category_id", c.ID().String()),
			slog.String("handle", c.Handle()),
		)
	}
	return res
}

// GetCategory loads a category by id.
func (s *CategoryService) GetCategory(ctx context.Context, id identity.ProductCategoryID) Result[*category.Category] {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[*category.Category](fmt.Errorf("get category: %w", err))
	}
	return Ok(c)
}

// GetCategoryByHandle loads a category by its URL handle.
func (s *CategoryService) GetCategoryByHandle(ctx context.Context, handle string) Result[*category.Category] {
	c, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		return Fail[*category.Category](fmt.Errorf("get category by handle: %w", err))
	}
	return Ok(c)
}

// RenameCategory changes the display name.
func (s *CategoryService) RenameCategory(ctx context.Context, id identity.ProductCategoryID, name string) Result[*category.Category] {
	return s.mutate(ctx, id, "rename category", func(c *category.Category) error {
		return c.Rename(name)
	})
}

// ChangeHandle moves the category to a new, unused handle.
func (s *CategoryService) ChangeHandle(ctx context.Context, id identity.ProductCategoryID, handle string) Result[*category.Category] {
	return s.mutate(ctx, id, "change category handle", func(c *category.Category) error {
		if err := c.ChangeHandle(handle); err != nil {
			return err
		}
		return s.ensureHandleFree(ctx, c.Handle(), c.ID())
	})
}

// UpdateDescription replaces the description.
func (s *CategoryService) UpdateDescription(ctx context.Context, id identity.ProductCategoryID, description string) Result[*category.Category] {
	return s.mutate(ctx, id, "update category description", func(c *category.Category) error {
		return c.UpdateDescription(description)
	})
}

// MoveCategory re-parents a category. A zero parent makes it a root. Moving a
// category under itself or one of its descendants is rejected.
func (s *CategoryService) MoveCategory(ctx context.Context, id, parent identity.ProductCategoryID, position int) Result[*category.Category] {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return Fail[*category.Category](fmt.Errorf("move category: %w", err))
	}
	tree := category.NewTree(all)
	c, ok := tree.Get(id)
	if !ok {
		return Fail[*category.Category](apperrors.NotFound("product_category", id.String()))
	}
	if err := tree.CheckMove(id, parent); err != nil {
		return Fail[*category.Category](fmt.Errorf("move category: %w", err))
	}
	if err := c.MoveTo(parent, position); err != nil {
		return Fail[*category.Category](fmt.Errorf("move category: %w", err))
	}
	return s.persist(ctx, "move category", c)
}

// RepositionCategory changes the order among siblings.
func (s *CategoryService) RepositionCategory(ctx context.Context, id identity.ProductCategoryID, position int) Result[*category.Category] {
	return s.mutate(ctx, id, "reposition category", func(c *category.Category) error {
		return c.Reposition(position)
	})
}

// SetVisibility shows or hides the category in navigation.
func (s *CategoryService) SetVisibility(ctx context.Context, id identity.ProductCategoryID, visible bool) Result[*category.Category] {
	return s.mutate(ctx, id, "set category visibility", func(c *category.Category) error {
		return c.SetVisibility(visible)
	})
}

// ActivateCategory makes an inactive category active.
func (s *CategoryService) ActivateCategory(ctx context.Context, id identity.ProductCategoryID) Result[*category.Category] {
	return s.mutate(ctx, id, "activate category", func(c *category.Category) error {
		return c.Activate()
	})
}

// DeactivateCategory hides an active category.
func (s *CategoryService) DeactivateCategory(ctx context.Context, id identity.ProductCategoryID) Result[*category.Category] {
	return s.mutate(ctx, id, "deactivate category", func(c *category.Category) error {
		return c.Deactivate()
	})
}

// ArchiveCategory retires a category.
func (s *CategoryService) ArchiveCategory(ctx context.Context, id identity.ProductCategoryID) Result[*category.Category] {
	res := s.mutate(ctx, id, "archive category", func(c *category.Category) error {
		return c.Archive()
	})
	if res.IsOK() {
		s.logger.InfoContext(ctx, "category archived", slog.String("category_id", id.String()))
	}
	return res
}

// GetTree indexes every category as a forest.
func (s *CategoryService) GetTree(ctx context.Context) Result[*category.Tree] {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return Fail[*category.Tree](fmt.Errorf("get category tree: %w", err))
	}
	return Ok(category.NewTree(all))
}

// ValidateHierarchy returns the ids of categories caught in a parent cycle.
// Cycles can only appear through writes that bypass MoveCategory.
func (s *CategoryService) ValidateHierarchy(ctx context.Context) Result[[]identity.ProductCategoryID] {
	tree := s.GetTree(ctx)
	if !tree.IsOK() {
		return Fail[[]identity.ProductCategoryID](tree.Err())
	}
	cyclic := tree.Value().ValidateHierarchy()
	if len(cyclic) > 0 {
		s.logger.WarnContext(ctx, "category hierarchy contains cycles", slog.Int("count", len(cyclic)))
	}
	return Ok(cyclic)
}

func (s *CategoryService) ensureHandleFree(ctx context.Context, handle string, owner identity.ProductCategoryID) error {
	existing, err := s.repo.FindByHandle(ctx, handle)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID().Equal(owner):
		return nil
	}
	return apperrors.AlreadyExists("product_category", "handle", handle)
}

func (s *CategoryService) mutate(ctx context.Context, id identity.ProductCategoryID, action string, fn func(*category.Category) error) Result[*category.Category] {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[*category.Category](fmt.Errorf("%s: %w", action, err))
	}
	if err := fn(c); err != nil {
		return Fail[*category.Category](fmt.Errorf("%s: %w", action, err))
	}
	return s.persist(ctx, action, c)
}

func (s *CategoryService) persist(ctx context.Context, action string, c *category.Category) Result[*category.Category] {
	if err := s.repo.Save(ctx, c); err != nil {
		return Fail[*category.Category](fmt.Errorf("%s: %w", action, err))
	}
	return Ok(c).withDispatchErr(s.events.dispatch(ctx, c))
}
