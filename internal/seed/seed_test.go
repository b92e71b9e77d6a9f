package seed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commercecore/internal/domain/cart"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/product"
	"github.com/utafrali/commercecore/internal/event"
	handler "github.com/utafrali/commercecore/internal/handler/http"
	"github.com/utafrali/commercecore/internal/repository/memory"
	"github.com/utafrali/commercecore/internal/service"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/httpclient"
	"github.com/utafrali/commercecore/pkg/middleware"
)

type fixture struct {
	url        string
	products   *service.ProductService
	categories *service.CategoryService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := event.NewRecording()
	categoryRepo := memory.NewCategoryRepository()
	f := fixture{
		products:   service.NewProductService(memory.NewProductRepository(), categoryRepo, rec, logger),
		categories: service.NewCategoryService(categoryRepo, rec, logger),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(handler.NewRouter(ctx, handler.RouterConfig{
		Carts:      service.NewCartService(memory.NewCartRepository(), rec, logger, cart.DefaultExpiryPolicy()),
		Products:   f.products,
		Categories: f.categories,
		Gatherer:   prometheus.NewRegistry(),
		Logger:     logger,
		CORS:       middleware.DefaultCORSConfig(),
	}))
	t.Cleanup(srv.Close)
	f.url = srv.URL
	return f
}

func newSeeder(url string) *Seeder {
	return New(httpclient.New(httpclient.DefaultConfig()), url, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSeeder_Run(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := newSeeder(f.url).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Categories: 7, Products: 14, Variants: 37, Published: 13}, report)

	p, err := f.products.GetProductByHandle(ctx, "studio-headphones").Unwrap()
	require.NoError(t, err)
	assert.Equal(t, product.StatusActive, p.Status())
	assert.Equal(t, "Soundfield", p.Vendor())

	variants := p.Variants()
	require.Len(t, variants, 3)
	prices := map[string]int64{}
	stock := 0
	for _, v := range variants {
		prices[v.SKU()] = v.Price().Amount()
		stock += v.InventoryQuantity()
	}
	assert.Equal(t, map[string]int64{"STU-HEA-BLACK": 14900, "STU-HEA-SILVER": 15400, "STU-HEA-WHITE": 14900}, prices)
	assert.Equal(t, 20, stock)

	audio, err := f.categories.GetCategoryByHandle(ctx, "audio").Unwrap()
	require.NoError(t, err)
	electronics, err := f.categories.GetCategoryByHandle(ctx, "electronics").Unwrap()
	require.NoError(t, err)
	assert.Equal(t, electronics.ID(), audio.ParentID())
	assert.Equal(t, []identity.ProductCategoryID{audio.ID()}, p.CategoryIDs())

	draft, err := f.products.GetProductByHandle(ctx, "waxed-field-jacket").Unwrap()
	require.NoError(t, err)
	assert.Equal(t, product.StatusDraft, draft.Status())
}

func TestSeeder_RunTwiceReusesRecords(t *testing.T) {
	f := newFixture(t)
	s := newSeeder(f.url)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}

func TestSeeder_CustomCatalog(t *testing.T) {
	f := newFixture(t)
	catalog := []CategoryDef{{
		Name: "Gifts",
		Products: []ProductDef{
			{Title: "Gift Card", Vendor: "House", Price: 2500, Stock: 3},
		},
	}}

	report, err := newSeeder(f.url+"/").WithCatalog(catalog).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Report{Categories: 1, Products: 1, Variants: 1, Published: 1}, report)
	p, err := f.products.GetProductByHandle(context.Background(), "gift-card").Unwrap()
	require.NoError(t, err)
	require.Len(t, p.Variants(), 1)
	assert.Equal(t, "GIF-CAR-STANDARD", p.Variants()[0].SKU())
}

func TestSeeder_StopsOnRejectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"VALIDATION_ERROR","message":"name is required"}}`)
	}))
	t.Cleanup(srv.Close)

	report, err := newSeeder(srv.URL).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Apparel")
	assert.Equal(t, Report{}, report)

	var respErr *httpclient.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "VALIDATION_ERROR", respErr.Code)
}

func TestVariantsFor(t *testing.T) {
	t.Run("sizes split stock with remainder first", func(t *testing.T) {
		vs := variantsFor(ProductDef{Title: "Rain Shell", Price: 1000, Stock: 10, Variants: SizedVariants})

		require.Len(t, vs, 4)
		var got []int
		for _, v := range vs {
			got = append(got, v["inventory_quantity"].(int))
		}
		assert.Equal(t, []int{4, 2, 2, 2}, got)
		assert.Equal(t, "RAI-SHE-XL", vs[3]["sku"])
		assert.Equal(t, map[string]string{"size": "XL"}, vs[3]["options"])
	})

	t.Run("silver costs more", func(t *testing.T) {
		vs := variantsFor(ProductDef{Title: "Pad", Price: 1000, Variants: ColoredVariants})

		require.Len(t, vs, 3)
		assert.Equal(t, map[string]any{"amount": int64(1500), "currency": Currency}, vs[1]["price"])
	})
}

func TestSkuPrefix(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Studio Headphones", "STU-HEA"},
		{"The Field Guide to Knots", "THE-FIE-GUI-TO-KNO"},
		{"Home & Kitchen 2", "HOM-KIT-2"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, skuPrefix(tt.title))
		})
	}
}
