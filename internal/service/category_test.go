package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commercecore/internal/domain/category"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/event"
	"github.com/utafrali/commercecore/internal/repository/memory"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

func newCategoryService() (*CategoryService, *event.Recording) {
	clock := &fakeClock{now: t0}
	rec := event.NewRecording()
	repo := memory.NewCategoryRepository(category.WithClock(clock.Now))
	return NewCategoryService(repo, rec, newTestLogger(), WithClock(clock.Now)), rec
}

func createCategory(t *testing.T, svc *CategoryService, name string, parent identity.ProductCategoryID) *category.Category {
	t.Helper()
	res := svc.CreateCategory(context.Background(), category.NewInput{Name: name, ParentID: parent, Visible: true})
	require.NoError(t, res.Err())
	return res.Value()
}

func TestCategoryService_CreateCategory(t *testing.T) {
	svc, rec := newCategoryService()

	c := createCategory(t, svc, "Men Shirts", identity.ProductCategoryID{})

	assert.Equal(t, "men-shirts", c.Handle())
	assert.True(t, c.IsRoot())
	assert.Equal(t, []string{category.EventCreated}, rec.Types())
}

func TestCategoryService_CreateCategory_MissingParent(t *testing.T) {
	svc, rec := newCategoryService()

	res := svc.CreateCategory(context.Background(), category.NewInput{
		Name:     "Shirts",
		ParentID: identity.MustNew[identity.ProductCategoryKind]("ghost"),
	})

	assert.True(t, errors.Is(res.Err(), apperrors.ErrNotFound))
	assert.Empty(t, rec.Events())
}

func TestCategoryService_CreateCategory_DuplicateHandle(t *testing.T) {
	svc, _ := newCategoryService()
	createCategory(t, svc, "Shirts", identity.ProductCategoryID{})

	res := svc.CreateCategory(context.Background(), category.NewInput{Name: "Shirts"})

	assert.True(t, errors.Is(res.Err(), apperrors.ErrAlreadyExists))
}

func TestCategoryService_RenameAndLifecycle(t *testing.T) {
	svc, _ := newCategoryService()
	ctx := context.Background()
	c := createCategory(t, svc, "Shirts", identity.ProductCategoryID{})

	res := svc.RenameCategory(ctx, c.ID(), "Tops")
	require.NoError(t, res.Err())
	assert.Equal(t, "Tops", res.Value().Name())
	assert.Equal(t, "shirts", res.Value().Handle(), "renaming keeps the handle")

	res = svc.DeactivateCategory(ctx, c.ID())
	require.NoError(t, res.Err())
	assert.Equal(t, category.StatusInactive, res.Value().Status())

	res = svc.ActivateCategory(ctx, c.ID())
	require.NoError(t, res.Err())

	res = svc.ArchiveCategory(ctx, c.ID())
	require.NoError(t, res.Err())
	res = svc.RenameCategory(ctx, c.ID(), "Again")
	assert.True(t, apperrors.IsRule(res.Err(), category.RuleCategoryArchived))
}

func TestCategoryService_MoveCategory(t *testing.T) {
	svc, _ := newCategoryService()
	ctx := context.Background()
	root := createCategory(t, svc, "Clothing", identity.ProductCategoryID{})
	child := createCategory(t, svc, "Shirts", root.ID())
	grandchild := createCategory(t, svc, "Linen", child.ID())
	other := createCategory(t, svc, "Sale", identity.ProductCategoryID{})

	res := svc.MoveCategory(ctx, root.ID(), grandchild.ID(), 0)
	assert.True(t, apperrors.IsRule(res.Err(), category.RuleCircularParent))

	res = svc.MoveCategory(ctx, root.ID(), root.ID(), 0)
	assert.True(t, apperrors.IsRule(res.Err(), category.RuleSelfParent))

	res = svc.MoveCategory(ctx, child.ID(), other.ID(), 2)
	require.NoError(t, res.Err())
	assert.Equal(t, other.ID(), res.Value().ParentID())

	tree := svc.GetTree(ctx)
	require.NoError(t, tree.Err())
	assert.Equal(t, 4, tree.Value().Len())
	path := tree.Value().Path(grandchild.ID())
	require.Len(t, path, 3)
	assert.Equal(t, other.ID(), path[0].ID())
}

func TestCategoryService_ValidateHierarchy(t *testing.T) {
	svc, _ := newCategoryService()
	ctx := context.Background()
	root := createCategory(t, svc, "Clothing", identity.ProductCategoryID{})
	createCategory(t, svc, "Shirts", root.ID())

	res := svc.ValidateHierarchy(ctx)

	require.NoError(t, res.Err())
	assert.Empty(t, res.Value())
}
