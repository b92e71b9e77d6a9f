package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	"github.com/utafrali/commercecore/internal/domain/product"
	"github.com/utafrali/commercecore/internal/service"
	spec "github.com/utafrali/commercecore/internal/specification"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/httputil"
	"github.com/utafrali/commercecore/pkg/pagination"
)

// defaultSearchLimit caps search results when no limit is given.
const defaultSearchLimit = 50

// ProductHandler handles HTTP requests for catalog product endpoints.
type ProductHandler struct {
	service *service.ProductService
	errs    httputil.ErrorWriter
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, errs httputil.ErrorWriter) *ProductHandler {
	return &ProductHandler{service: svc, errs: errs}
}

// Routes registers the product endpoints on r.
func (h *ProductHandler) Routes(r chi.Router) {
	r.Get("/", h.ListProducts)
	r.Post("/", h.CreateProduct)
	r.Get("/search", h.SearchProducts)
	r.Get("/handle/{handle}", h.GetProductByHandle)

	r.Route("/{productID}", func(r chi.Router) {
		r.Get("/", h.GetProduct)
		r.Patch("/", h.UpdateDetails)
		r.Put("/handle", h.ChangeHandle)

		r.Post("/publish", h.lifecycle(h.service.PublishProduct))
		r.Post("/deactivate", h.lifecycle(h.service.DeactivateProduct))
		r.Post("/reactivate", h.lifecycle(h.service.ReactivateProduct))
		r.Post("/archive", h.lifecycle(h.service.ArchiveProduct))

		r.Post("/variants", h.AddVariant)
		r.Patch("/variants/{variantID}", h.UpdateVariant)
		r.Delete("/variants/{variantID}", h.RemoveVariant)
		r.Post("/variants/{variantID}/inventory", h.AdjustInventory)

		r.Put("/categories/{categoryID}", h.AssignCategory)
		r.Delete("/categories/{categoryID}", h.RemoveCategory)

		r.Post("/tags", h.AddTag)
		r.Delete("/tags/{tag}", h.RemoveTag)

		r.Post("/images", h.AddImage)
		r.Put("/images/order", h.ReorderImages)
		r.Delete("/images/{imageID}", h.RemoveImage)

		r.Put("/seo", h.UpdateSEO)
	})
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=255"`
	Handle      string   `json:"handle" validate:"omitempty,slug"`
	Description string   `json:"description"`
	Vendor      string   `json:"vendor" validate:"max=255"`
	ProductType string   `json:"product_type" validate:"max=255"`
	Currency    string   `json:"currency" validate:"required,currency"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required,max=64"`
}

// UpdateDetailsRequest is the JSON request body for a partial detail update.
type UpdateDetailsRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Vendor      *string `json:"vendor" validate:"omitempty,max=255"`
	ProductType *string `json:"product_type" validate:"omitempty,max=255"`
}

// HandleRequest is the JSON request body for changing a URL handle.
type HandleRequest struct {
	Handle string `json:"handle" validate:"required,slug"`
}

// VariantRequest is the JSON request body for adding a variant.
type VariantRequest struct {
	SKU               string              `json:"sku" validate:"required,max=100"`
	Title             string              `json:"title" validate:"max=255"`
	Price             MoneyRequest        `json:"price"`
	CompareAtPrice    *MoneyRequest       `json:"compare_at_price,omitempty"`
	InventoryQuantity int                 `json:"inventory_quantity" validate:"gte=0"`
	ManageInventory   bool                `json:"manage_inventory"`
	AllowBackorder    bool                `json:"allow_backorder"`
	Options           map[string]string   `json:"options"`
	WeightGrams       *int                `json:"weight_grams" validate:"omitempty,gte=0"`
	Dimensions        *product.Dimensions `json:"dimensions,omitempty"`
}

// UpdateVariantRequest is the JSON request body for a partial variant update.
type UpdateVariantRequest struct {
	SKU               *string             `json:"sku" validate:"omitempty,max=100"`
	Title             *string             `json:"title" validate:"omitempty,max=255"`
	Price             *MoneyRequest       `json:"price,omitempty"`
	CompareAtPrice    *MoneyRequest       `json:"compare_at_price,omitempty"`
	ClearCompareAt    bool                `json:"clear_compare_at"`
	InventoryQuantity *int                `json:"inventory_quantity" validate:"omitempty,gte=0"`
	ManageInventory   *bool               `json:"manage_inventory"`
	AllowBackorder    *bool               `json:"allow_backorder"`
	Options           map[string]string   `json:"options"`
	WeightGrams       *int                `json:"weight_grams" validate:"omitempty,gte=0"`
	Dimensions        *product.Dimensions `json:"dimensions,omitempty"`
}

// InventoryRequest is the JSON request body for a stock adjustment.
type InventoryRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"max=255"`
}

// TagRequest is the JSON request body for adding a tag.
type TagRequest struct {
	Tag string `json:"tag" validate:"required,max=64"`
}

// ImageRequest is the JSON request body for attaching an image.
type ImageRequest struct {
	URL        string   `json:"url" validate:"required,url"`
	AltText    string   `json:"alt_text" validate:"max=255"`
	Position   *int     `json:"position" validate:"omitempty,gte=0"`
	VariantIDs []string `json:"variant_ids"`
}

// ReorderImagesRequest lists every image id in the desired order.
type ReorderImagesRequest struct {
	ImageIDs []string `json:"image_ids" validate:"required,min=1,dive,required"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products. Supported filters: status,
// category, tag, vendor, q (title substring), available, and min_price /
// max_price in minor units of currency.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := productFilter(r.URL.Query())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	params := pagination.FromRequest(r)
	res := h.service.ListProducts(r.Context(), filter, params)
	if err := res.Err(); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(res.Value(), renderProduct))
}

// SearchProducts handles GET /api/v1/products/search. It takes the same
// filters as ListProducts plus sort, dir, limit and offset.
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := productFilter(q)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	dir, err := spec.ParseDirection(q.Get("dir"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	limit, offset := defaultSearchLimit, 0
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 || limit > pagination.MaxLimit {
			h.errs.Write(w, r, apperrors.Validation("limit", raw, "must be between 0 and "+strconv.Itoa(pagination.MaxLimit)))
			return
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			h.errs.Write(w, r, apperrors.Validation("offset", raw, "must be a non-negative integer"))
			return
		}
	}

	b := spec.NewQuery[*product.Product]().Where(filter).Limit(limit).Offset(offset)
	if sortBy := q.Get("sort"); sortBy != "" {
		b.OrderBy(sortBy, dir)
	}
	query, err := b.Build()
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.SearchProducts(r.Context(), query), renderProducts)
}

// productFilter builds the product spec for the list query parameters.
func productFilter(q url.Values) (spec.Spec[*product.Product], error) {
	var specs []spec.Spec[*product.Product]

	if raw := q.Get("status"); raw != "" {
		status := product.Status(raw)
		if !status.IsValid() {
			return spec.Spec[*product.Product]{}, apperrors.Validation("status", raw, "must be one of: draft, active, inactive, archived")
		}
		specs = append(specs, product.HasStatus(status))
	}
	if raw := q.Get("category"); raw != "" {
		id, err := identity.NewProductCategoryID(raw)
		if err != nil {
			return spec.Spec[*product.Product]{}, err
		}
		specs = append(specs, product.InCategory(id))
	}
	if tag := q.Get("tag"); tag != "" {
		specs = append(specs, product.Tagged(tag))
	}
	if vendor := q.Get("vendor"); vendor != "" {
		specs = append(specs, product.ByVendor(vendor))
	}
	if term := q.Get("q"); term != "" {
		specs = append(specs, product.TitleContains(term))
	}
	if raw := q.Get("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			return spec.Spec[*product.Product]{}, apperrors.Validation("available", raw, "must be true or false")
		}
		if available {
			specs = append(specs, product.Available())
		} else {
			specs = append(specs, product.Available().Not())
		}
	}

	minRaw, maxRaw := q.Get("min_price"), q.Get("max_price")
	if minRaw != "" || maxRaw != "" {
		currency, err := money.ParseCurrency(q.Get("currency"))
		if err != nil {
			return spec.Spec[*product.Product]{}, err
		}
		if minRaw != "" {
			amount, err := strconv.ParseInt(minRaw, 10, 64)
			if err != nil {
				return spec.Spec[*product.Product]{}, apperrors.Validation("min_price", minRaw, "must be an integer amount in minor units")
			}
			specs = append(specs, product.PricedFrom(money.FromMinorUnits(amount, currency)))
		}
		if maxRaw != "" {
			amount, err := strconv.ParseInt(maxRaw, 10, 64)
			if err != nil {
				return spec.Spec[*product.Product]{}, apperrors.Validation("max_price", maxRaw, "must be an integer amount in minor units")
			}
			specs = append(specs, product.PricedUpTo(money.FromMinorUnits(amount, currency)))
		}
	}

	if len(specs) == 0 {
		return spec.All[*product.Product](), nil
	}
	return spec.And(specs...), nil
}

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	in := product.NewProductInput{
		Title:       req.Title,
		Handle:      req.Handle,
		Description: req.Description,
		Vendor:      req.Vendor,
		ProductType: req.ProductType,
		Currency:    currency,
		Tags:        req.Tags,
	}
	respond(w, r, h.errs, http.StatusCreated, h.service.CreateProduct(r.Context(), in), renderProduct)
}

// GetProduct handles GET /api/v1/products/{productID}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.GetProduct(r.Context(), id), renderProduct)
}

// GetProductByHandle handles GET /api/v1/products/handle/{handle}
func (h *ProductHandler) GetProductByHandle(w http.ResponseWriter, r *http.Request) {
	res := h.service.GetProductByHandle(r.Context(), chi.URLParam(r, "handle"))
	respond(w, r, h.errs, http.StatusOK, res, renderProduct)
}

// UpdateDetails handles PATCH /api/v1/products/{productID}
func (h *ProductHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	var req UpdateDetailsRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	u := product.DetailsUpdate{
		Title:       req.Title,
		Description: req.Description,
		Vendor:      req.Vendor,
		ProductType: req.ProductType,
	}
	respond(w, r, h.errs, http.StatusOK, h.service.UpdateDetails(r.Context(), id, u), renderProduct)
}

// ChangeHandle handles PUT /api/v1/products/{productID}/handle
func (h *ProductHandler) ChangeHandle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	var req HandleRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.ChangeHandle(r.Context(), id, req.Handle), renderProduct)
}

// AddVariant handles POST /api/v1/products/{productID}/variants
func (h *ProductHandler) AddVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	var req VariantRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	price, err := req.Price.toMoney()
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	compareAt, err := optionalMoney(req.CompareAtPrice)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	in := product.VariantInput{
		SKU:               req.SKU,
		Title:             req.Title,
		Price:             price,
		CompareAtPrice:    compareAt,
		InventoryQuantity: req.InventoryQuantity,
		ManageInventory:   req.ManageInventory,
		AllowBackorder:    req.AllowBackorder,
		Options:           req.Options,
		WeightGrams:       req.WeightGrams,
		Dimensions:        req.Dimensions,
	}
	respond(w, r, h.errs, http.StatusCreated, h.service.AddVariant(r.Context(), id, in), renderProduct)
}

// UpdateVariant handles PATCH /api/v1/products/{productID}/variants/{variantID}
func (h *ProductHandler) UpdateVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	variantID, ok := pathID[identity.ProductVariantKind](w, r, "variantID")
	if !ok {
		return
	}
	var req UpdateVariantRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	price, err := optionalMoney(req.Price)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	compareAt, err := optionalMoney(req.CompareAtPrice)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	u := product.VariantUpdate{
		SKU:               req.SKU,
		Title:             req.Title,
		Price:             price,
		CompareAtPrice:    compareAt,
		ClearCompareAt:    req.ClearCompareAt,
		InventoryQuantity: req.InventoryQuantity,
		ManageInventory:   req.ManageInventory,
		AllowBackorder:    req.AllowBackorder,
		Options:           req.Options,
		WeightGrams:       req.WeightGrams,
		Dimensions:        req.Dimensions,
	}
	respond(w, r, h.errs, http.StatusOK, h.service.UpdateVariant(r.Context(), id, variantID, u), renderProduct)
}

// RemoveVariant handles DELETE /api/v1/products/{productID}/variants/{variantID}
func (h *ProductHandler) RemoveVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	variantID, ok := pathID[identity.ProductVariantKind](w, r, "variantID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.RemoveVariant(r.Context(), id, variantID), renderProduct)
}

// AdjustInventory handles POST /api/v1/products/{productID}/variants/{variantID}/inventory
func (h *ProductHandler) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	variantID, ok := pathID[identity.ProductVariantKind](w, r, "variantID")
	if !ok {
		return
	}
	var req InventoryRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	res := h.service.AdjustInventory(r.Context(), id, variantID, req.Delta, req.Reason)
	respond(w, r, h.errs, http.StatusOK, res, renderProduct)
}

// AssignCategory handles PUT /api/v1/products/{productID}/categories/{categoryID}
func (h *ProductHandler) AssignCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	categoryID, ok := pathID[identity.ProductCategoryKind](w, r, "categoryID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.AssignCategory(r.Context(), id, categoryID), renderProduct)
}

// RemoveCategory handles DELETE /api/v1/products/{productID}/categories/{categoryID}
func (h *ProductHandler) RemoveCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	categoryID, ok := pathID[identity.ProductCategoryKind](w, r, "categoryID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.RemoveCategory(r.Context(), id, categoryID), renderProduct)
}

// AddTag handles POST /api/v1/products/{productID}/tags
func (h *ProductHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	var req TagRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.AddTag(r.Context(), id, req.Tag), renderProduct)
}

// RemoveTag handles DELETE /api/v1/products/{productID}/tags/{tag}
func (h *ProductHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.RemoveTag(r.Context(), id, chi.URLParam(r, "tag")), renderProduct)
}

// AddImage handles POST /api/v1/products/{productID}/images
func (h *ProductHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	var req ImageRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	variantIDs := make([]identity.ProductVariantID, 0, len(req.VariantIDs))
	for _, raw := range req.VariantIDs {
		vid, err := identity.NewProductVariantID(raw)
		if err != nil {
			h.errs.Write(w, r, err)
			return
		}
		variantIDs = append(variantIDs, vid)
	}
	in := product.ImageInput{
		URL:        req.URL,
		AltText:    req.AltText,
		Position:   req.Position,
		VariantIDs: variantIDs,
	}
	respond(w, r, h.errs, http.StatusCreated, h.service.AddImage(r.Context(), id, in), renderProduct)
}

// ReorderImages handles PUT /api/v1/products/{productID}/images/order
func (h *ProductHandler) ReorderImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	var req ReorderImagesRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	ids := make([]identity.ProductImageID, len(req.ImageIDs))
	for i, raw := range req.ImageIDs {
		imageID, err := identity.NewProductImageID(raw)
		if err != nil {
			h.errs.Write(w, r, err)
			return
		}
		ids[i] = imageID
	}
	respond(w, r, h.errs, http.StatusOK, h.service.ReorderImages(r.Context(), id, ids), renderProduct)
}

// RemoveImage handles DELETE /api/v1/products/{productID}/images/{imageID}
func (h *ProductHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	imageID, ok := pathID[identity.ProductImageKind](w, r, "imageID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.RemoveImage(r.Context(), id, imageID), renderProduct)
}

// UpdateSEO handles PUT /api/v1/products/{productID}/seo
func (h *ProductHandler) UpdateSEO(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductKind](w, r, "productID")
	if !ok {
		return
	}
	var req product.SEO
	if !decode(w, r, h.errs, &req) {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.UpdateSEO(r.Context(), id, req), renderProduct)
}

// lifecycle adapts a status transition to a handler.
func (h *ProductHandler) lifecycle(cmd func(ctx context.Context, id identity.ProductID) service.Result[*product.Product]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID[identity.ProductKind](w, r, "productID")
		if !ok {
			return
		}
		respond(w, r, h.errs, http.StatusOK, cmd(r.Context(), id), renderProduct)
	}
}
