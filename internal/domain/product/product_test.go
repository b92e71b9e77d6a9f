package product

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	spec "github.com/utafrali/commercecore/internal/specification"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func gbp(minor int64) money.Money { return money.FromMinorUnits(minor, money.GBP) }

func newProduct(t *testing.T) (*Product, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	p, err := New(NewProductInput{
		Title:    "Blue Cotton Shirt",
		Currency: money.GBP,
		Vendor:   "Acme",
		Tags:     []string{"Summer", "cotton", " summer "},
	}, WithClock(clock.Now))
	require.NoError(t, err)
	return p, clock
}

func variantInput(sku string, price int64, qty int) VariantInput {
	return VariantInput{SKU: sku, Title: sku, Price: gbp(price), InventoryQuantity: qty, ManageInventory: true}
}

func mustAddVariant(t *testing.T, p *Product, in VariantInput) Variant {
	t.Helper()
	v, err := p.AddVariant(in)
	require.NoError(t, err)
	return v
}

func TestNew(t *testing.T) {
	p, _ := newProduct(t)

	assert.Equal(t, "blue-cotton-shirt", p.Handle())
	assert.Equal(t, StatusDraft, p.Status())
	assert.Equal(t, []string{"cotton", "summer"}, p.Tags())
	assert.Equal(t, t0, p.CreatedAt())
	_, published := p.PublishedAt()
	assert.False(t, published)
	assert.Equal(t, []string{EventCreated}, event.Types(p.UncommittedEvents()))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(NewProductInput{Title: "", Handle: "Not A Slug"})
	require.Error(t, err)

	var coll *apperrors.ValidationErrorCollection
	require.ErrorAs(t, err, &coll)
	_, ok := coll.Field("title")
	assert.True(t, ok)
	_, ok = coll.Field("currency")
	assert.True(t, ok)

	_, err = New(NewProductInput{Title: "Shirt", Handle: "Not A Slug", Currency: money.GBP})
	var ve *apperrors.ValidationErrorCollection
	require.ErrorAs(t, err, &ve)
	_, ok = ve.Field("handle")
	assert.True(t, ok)
}

func TestPublish_WithoutVariantsFails(t *testing.T) {
	p, _ := newProduct(t)
	p.MarkEventsAsCommitted()

	err := p.Publish()
	assert.True(t, apperrors.IsRule(err, RuleNoVariants))
	assert.Equal(t, StatusDraft, p.Status())
	assert.Empty(t, p.UncommittedEvents())
}

func TestPublish_SetsPublishedAt(t *testing.T) {
	p, clock := newProduct(t)
	mustAddVariant(t, p, variantInput("SHIRT-S", 1999, 5))
	clock.Advance(time.Hour)

	require.NoError(t, p.Publish())
	assert.Equal(t, StatusActive, p.Status())
	at, ok := p.PublishedAt()
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour), at)

	err := p.Publish()
	assert.True(t, apperrors.IsRule(err, RuleAlreadyPublished))
}

func TestPublish_KeepsFirstPublishedAt(t *testing.T) {
	p, clock := newProduct(t)
	mustAddVariant(t, p, variantInput("SHIRT-S", 1999, 5))
	require.NoError(t, p.Publish())
	first, _ := p.PublishedAt()

	require.NoError(t, p.Deactivate())
	clock.Advance(24 * time.Hour)
	require.NoError(t, p.Publish())

	again, _ := p.PublishedAt()
	assert.Equal(t, first, again)
}

func TestAddVariant_DuplicateSKURejected(t *testing.T) {
	p, _ := newProduct(t)
	mustAddVariant(t, p, variantInput("SHIRT-S", 1999, 5))

	_, err := p.AddVariant(variantInput("shirt-s", 2499, 1))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDuplicate, apperrors.KindOf(err))
	assert.Len(t, p.Variants(), 1)
}

func TestAddVariant_CurrencyMismatch(t *testing.T) {
	p, _ := newProduct(t)
	in := variantInput("SHIRT-S", 1999, 5)
	in.Price = money.FromMinorUnits(1999, money.USD)

	_, err := p.AddVariant(in)
	assert.True(t, apperrors.IsRule(err, money.RuleCurrencyMismatch))
}

func TestAddVariant_CompareAtMustExceedPrice(t *testing.T) {
	p, _ := newProduct(t)
	in := variantInput("SHIRT-S", 1999, 5)
	cmp := gbp(1999)
	in.CompareAtPrice = &cmp

	_, err := p.AddVariant(in)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestRemoveVariant_LastVariantOfPublishedProduct(t *testing.T) {
	p, _ := newProduct(t)
	v := mustAddVariant(t, p, variantInput("SHIRT-S", 1999, 5))
	require.NoError(t, p.Publish())

	err := p.RemoveVariant(v.ID())
	assert.True(t, apperrors.IsRule(err, RuleLastVariant))
	assert.Len(t, p.Variants(), 1)

	second := mustAddVariant(t, p, variantInput("SHIRT-M", 1999, 5))
	require.NoError(t, p.RemoveVariant(second.ID()))
}

func TestRemoveVariant_LastVariantOfDraftProduct(t *testing.T) {
	p, _ := newProduct(t)
	v := mustAddVariant(t, p, variantInput("SHIRT-S", 1999, 5))
	require.Equal(t, StatusDraft, p.Status())

	err := p.RemoveVariant(v.ID())
	assert.True(t, apperrors.IsRule(err, RuleLastVariant))
	assert.Len(t, p.Variants(), 1)
}

func TestRemoveVariant_Unknown(t *testing.T) {
	p, _ := newProduct(t)
	mustAddVariant(t, p, variantInput("SHIRT-S", 1999, 5))

	err := p.RemoveVariant(identity.MustNew[identity.ProductVariantKind]("missing-variant"))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestUpdateVariant(t *testing.T) {
	p, _ := newProduct(t)
	a := mustAddVariant(t, p, variantInput("SHIRT-S", 1999, 5))
	mustAddVariant(t, p, variantInput("SHIRT-M", 1999, 5))

	price := gbp(2499)
	v, err := p.UpdateVariant(a.ID(), VariantUpdate{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(2499), v.Price().Amount())

	taken := "SHIRT-M"
	_, err = p.UpdateVariant(a.ID(), VariantUpdate{SKU: &taken})
	assert.Equal(t, apperrors.KindDuplicate, apperrors.KindOf(err))
	got, _ := p.Variant(a.ID())
	assert.Equal(t, "SHIRT-S", got.SKU())
}

func TestPriceRange(t *testing.T) {
	p, _ := newProduct(t)
	_, ok := p.PriceRange()
	assert.False(t, ok)

	mustAddVariant(t, p, variantInput("A", 1999, 1))
	mustAddVariant(t, p, variantInput("B", 999, 1))
	mustAddVariant(t, p, variantInput("C", 2999, 1))

	r, ok := p.PriceRange()
	require.True(t, ok)
	assert.Equal(t, int64(999), r.Min().Amount())
	assert.Equal(t, int64(2999), r.Max().Amount())
	assert.Equal(t, "£9.99 - £29.99", r.Format())
	assert.Equal(t, 3, p.TotalInventory())
}

func TestAvailability(t *testing.T) {
	tests := []struct {
		name     string
		variants []VariantInput
		want     Availability
	}{
		{"no variants", nil, OutOfStock},
		{"all stocked", []VariantInput{variantInput("A", 100, 2), variantInput("B", 100, 1)}, InStock},
		{"one sold out", []VariantInput{variantInput("A", 100, 2), variantInput("B", 100, 0)}, PartiallyInStock},
		{"all sold out", []VariantInput{variantInput("A", 100, 0)}, OutOfStock},
		{"backorder only", []VariantInput{{SKU: "A", Price: gbp(100), ManageInventory: true, AllowBackorder: true}}, InStock},
		{"backorder and sold out", []VariantInput{
			{SKU: "A", Price: gbp(100), ManageInventory: true, AllowBackorder: true},
			variantInput("B", 100, 0),
		}, PartiallyInStock},
		{"untracked", []VariantInput{{SKU: "A", Price: gbp(100)}}, InStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newProduct(t)
			for _, in := range tt.variants {
				mustAddVariant(t, p, in)
			}
			assert.Equal(t, tt.want, p.Availability())
		})
	}
}

func TestIsAvailable_RequiresActive(t *testing.T) {
	p, _ := newProduct(t)
	mustAddVariant(t, p, variantInput("A", 100, 1))
	assert.False(t, p.IsAvailable())

	require.NoError(t, p.Publish())
	assert.True(t, p.IsAvailable())
}

func TestAdjustInventory(t *testing.T) {
	p, _ := newProduct(t)
	v := mustAddVariant(t, p, variantInput("A", 100, 3))
	p.MarkEventsAsCommitted()

	got, err := p.AdjustInventory(v.ID(), -2, "sale")
	require.NoError(t, err)
	assert.Equal(t, 1, got.InventoryQuantity())

	_, err = p.AdjustInventory(v.ID(), -5, "sale")
	assert.True(t, apperrors.IsRule(err, RuleInsufficientInventory))

	events := p.UncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventInventoryAdjusted, events[0].Type())
	delta, _ := events[0].Payload().Get("delta")
	assert.Equal(t, -2, delta)
}

func TestAdjustInventory_BackorderMayGoNegative(t *testing.T) {
	p, _ := newProduct(t)
	in := variantInput("A", 100, 1)
	in.AllowBackorder = true
	v := mustAddVariant(t, p, in)

	got, err := p.AdjustInventory(v.ID(), -3, "preorder")
	require.NoError(t, err)
	assert.Equal(t, -2, got.InventoryQuantity())
}

func TestLifecycle(t *testing.T) {
	p, _ := newProduct(t)
	mustAddVariant(t, p, variantInput("A", 100, 1))

	assert.True(t, apperrors.IsRule(p.Deactivate(), RuleNotActive))
	assert.True(t, apperrors.IsRule(p.Reactivate(), RuleNotInactive))

	require.NoError(t, p.Publish())
	require.NoError(t, p.Deactivate())
	assert.Equal(t, StatusInactive, p.Status())
	require.NoError(t, p.Reactivate())
	assert.Equal(t, StatusActive, p.Status())

	require.NoError(t, p.Archive())
	assert.True(t, apperrors.IsRule(p.Publish(), RuleProductArchived))
	assert.True(t, apperrors.IsRule(p.AddTag("x"), RuleProductArchived))
	assert.True(t, apperrors.IsRule(p.Archive(), RuleProductArchived))
}

func TestCategoriesAndTags(t *testing.T) {
	p, _ := newProduct(t)
	cat := identity.MustNew[identity.ProductCategoryKind]("cat-1")

	require.NoError(t, p.AssignCategory(cat))
	require.NoError(t, p.AssignCategory(cat))
	assert.Equal(t, []identity.ProductCategoryID{cat}, p.CategoryIDs())

	require.NoError(t, p.RemoveCategory(cat))
	assert.False(t, p.InCategory(cat))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(p.RemoveCategory(cat)))

	require.NoError(t, p.AddTag("  Linen "))
	assert.True(t, p.HasTag("LINEN"))
	require.NoError(t, p.RemoveTag("linen"))
	assert.False(t, p.HasTag("linen"))
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(p.AddTag("   ")))
}

func TestImages_PositionsStayContiguous(t *testing.T) {
	p, _ := newProduct(t)
	a, err := p.AddImage(ImageInput{URL: "https://cdn.example.com/a.jpg"})
	require.NoError(t, err)
	b, err := p.AddImage(ImageInput{URL: "https://cdn.example.com/b.jpg"})
	require.NoError(t, err)
	zero := 0
	c, err := p.AddImage(ImageInput{URL: "https://cdn.example.com/c.jpg", Position: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Position)

	ids := func() []identity.ProductImageID {
		var out []identity.ProductImageID
		for i, img := range p.Images() {
			assert.Equal(t, i, img.Position)
			out = append(out, img.ID)
		}
		return out
	}
	assert.Equal(t, []identity.ProductImageID{c.ID, a.ID, b.ID}, ids())

	require.NoError(t, p.RemoveImage(a.ID))
	assert.Equal(t, []identity.ProductImageID{c.ID, b.ID}, ids())

	require.NoError(t, p.ReorderImages([]identity.ProductImageID{b.ID, c.ID}))
	assert.Equal(t, []identity.ProductImageID{b.ID, c.ID}, ids())

	err = p.ReorderImages([]identity.ProductImageID{b.ID, b.ID})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = p.AddImage(ImageInput{URL: "not a url"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestUpdateDetailsAndHandle(t *testing.T) {
	p, _ := newProduct(t)
	p.MarkEventsAsCommitted()

	same := "Blue Cotton Shirt"
	require.NoError(t, p.UpdateDetails(DetailsUpdate{Title: &same}))
	assert.Empty(t, p.UncommittedEvents())

	desc := "Breathable."
	require.NoError(t, p.UpdateDetails(DetailsUpdate{Description: &desc}))
	assert.Equal(t, "Breathable.", p.Description())

	require.NoError(t, p.ChangeHandle("blue-shirt"))
	assert.Equal(t, "blue-shirt", p.Handle())
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(p.ChangeHandle("Blue Shirt")))
	assert.Equal(t, []string{EventUpdated, EventHandleChanged}, event.Types(p.UncommittedEvents()))
}

func TestUpdateSEO(t *testing.T) {
	p, _ := newProduct(t)
	require.NoError(t, p.UpdateSEO(SEO{Title: "Shirt", Keywords: []string{"shirt"}}))
	seo, ok := p.SEO()
	require.True(t, ok)
	assert.Equal(t, "Shirt", seo.Title)

	long := make([]byte, MaxSEOTitleLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(p.UpdateSEO(SEO{Title: string(long)})))
}

func TestSnapshotRoundTrip(t *testing.T) {
	p, _ := newProduct(t)
	mustAddVariant(t, p, variantInput("A", 1999, 3))
	_, err := p.AddImage(ImageInput{URL: "https://cdn.example.com/a.jpg", AltText: "front"})
	require.NoError(t, err)
	require.NoError(t, p.AssignCategory(identity.MustNew[identity.ProductCategoryKind]("cat-1")))
	require.NoError(t, p.Publish())
	p.SetVersion(4)

	raw, err := json.Marshal(p.Snapshot())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	restored, err := Restore(snap)
	require.NoError(t, err)
	assert.Equal(t, p.Snapshot(), restored.Snapshot())
	assert.Equal(t, 4, restored.Version())
	assert.Empty(t, restored.UncommittedEvents())
}

func TestSpecs(t *testing.T) {
	cheap, _ := newProduct(t)
	mustAddVariant(t, cheap, variantInput("A", 500, 1))
	require.NoError(t, cheap.Publish())

	dear, _ := newProduct(t)
	mustAddVariant(t, dear, variantInput("B", 5000, 0))
	require.NoError(t, dear.AddTag("premium"))

	all := []*Product{cheap, dear}

	assert.Equal(t, []*Product{cheap}, Published().Filter(all))
	assert.Equal(t, []*Product{dear}, Tagged("Premium").Filter(all))
	assert.Equal(t, []*Product{dear}, PricedFrom(gbp(1000)).Filter(all))
	assert.Equal(t, []*Product{cheap}, PricedUpTo(gbp(1000)).Filter(all))
	assert.Equal(t, []*Product{cheap}, Available().Filter(all))
	assert.False(t, Available().ToQuery().Translatable())
	assert.True(t, Published().And(Tagged("premium")).ToQuery().Translatable())

	q, err := spec.NewQuery[*Product]().Where(ByVendor("acme")).OrderBy("price", spec.Desc).Build()
	require.NoError(t, err)
	sorted, err := q.Apply(all, Sorters())
	require.NoError(t, err)
	assert.Equal(t, []*Product{dear, cheap}, sorted)
}
