package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/commercecore/internal/domain/cart"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	"github.com/utafrali/commercecore/internal/service"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/httputil"
	"github.com/utafrali/commercecore/pkg/middleware"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	errs    httputil.ErrorWriter
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, errs httputil.ErrorWriter) *CartHandler {
	return &CartHandler{service: svc, errs: errs}
}

// Routes registers the cart endpoints on r.
func (h *CartHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateCart)
	r.Get("/current", h.GetCurrentCart)

	r.Route("/{cartID}", func(r chi.Router) {
		r.Get("/", h.GetCart)

		r.Post("/items", h.AddItem)
		r.Patch("/items/{itemID}", h.UpdateItemQuantity)
		r.Delete("/items/{itemID}", h.RemoveItem)

		r.Post("/discounts", h.ApplyDiscount)
		r.Delete("/discounts/{discountID}", h.RemoveDiscount)

		r.Put("/shipping", h.UpdateShipping)
		r.Put("/notes", h.UpdateNotes)

		r.Post("/clear", h.ClearCart)
		r.Post("/abandon", h.AbandonCart)
		r.Post("/complete", h.CompleteCart)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser())
			r.Post("/assign", h.AssignToUser)
			r.Post("/merge", h.MergeIntoUserCart)
		})
	})
}

// --- Request DTOs ---

// CreateCartRequest is the JSON request body for opening a cart.
type CreateCartRequest struct {
	Currency string `json:"currency" validate:"required,currency"`
}

// AddItemRequest is the JSON request body for adding an item to the cart.
type AddItemRequest struct {
	ProductID      string        `json:"product_id" validate:"required"`
	VariantID      string        `json:"variant_id" validate:"required"`
	Title          string        `json:"title" validate:"required,min=1,max=500"`
	VariantTitle   string        `json:"variant_title" validate:"max=500"`
	SKU            string        `json:"sku" validate:"max=100"`
	ImageURL       string        `json:"image_url" validate:"omitempty,url"`
	Quantity       int           `json:"quantity" validate:"required,gte=1"`
	UnitPrice      MoneyRequest  `json:"unit_price"`
	CompareAtPrice *MoneyRequest `json:"compare_at_price,omitempty"`
}

// UpdateQuantityRequest is the JSON request body for changing a line's
// quantity. Zero removes the line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// ApplyDiscountRequest is the JSON request body for applying a promotion.
type ApplyDiscountRequest struct {
	Code            string        `json:"code" validate:"required,max=64"`
	Description     string        `json:"description" validate:"max=500"`
	Type            string        `json:"type" validate:"required,oneof=percentage fixed shipping"`
	Value           float64       `json:"value" validate:"gte=0"`
	Currency        string        `json:"currency" validate:"omitempty,currency"`
	Amount          *MoneyRequest `json:"amount,omitempty"`
	Scope           string        `json:"scope" validate:"omitempty,oneof=order shipping items"`
	MinimumAmount   *MoneyRequest `json:"minimum_amount,omitempty"`
	MaximumDiscount *MoneyRequest `json:"maximum_discount,omitempty"`
}

// ShippingRequest is the JSON request body for selecting a delivery option.
type ShippingRequest struct {
	MethodID      string       `json:"method_id" validate:"required"`
	Name          string       `json:"name" validate:"required"`
	Carrier       string       `json:"carrier"`
	Cost          MoneyRequest `json:"cost"`
	EstimatedDays int          `json:"estimated_days" validate:"gte=0"`
}

// NotesRequest is the JSON request body for replacing cart notes.
type NotesRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// --- Handlers ---

// CreateCart handles POST /api/v1/carts. Authenticated callers get a user
// cart, anonymous callers a guest cart bound to their session.
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var req CreateCartRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	ctx := r.Context()
	if uid := middleware.UserIDFromContext(ctx); uid != "" {
		userID, err := identity.NewUserID(uid)
		if err != nil {
			h.errs.Write(w, r, err)
			return
		}
		respond(w, r, h.errs, http.StatusCreated, h.service.CreateUserCart(ctx, userID, currency), renderCart)
		return
	}
	sessionID, err := h.sessionID(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond(w, r, h.errs, http.StatusCreated, h.service.CreateGuestCart(ctx, sessionID, currency), renderCart)
}

// GetCurrentCart handles GET /api/v1/carts/current, returning the caller's
// active cart.
func (h *CartHandler) GetCurrentCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if uid := middleware.UserIDFromContext(ctx); uid != "" {
		userID, err := identity.NewUserID(uid)
		if err != nil {
			h.errs.Write(w, r, err)
			return
		}
		respond(w, r, h.errs, http.StatusOK, h.service.GetActiveCartForUser(ctx, userID), renderCart)
		return
	}
	sessionID, err := h.sessionID(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.GetActiveCartForSession(ctx, sessionID), renderCart)
}

// GetCart handles GET /api/v1/carts/{cartID}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.GetCart(r.Context(), id), renderCart)
}

// AddItem handles POST /api/v1/carts/{cartID}/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	var req AddItemRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.AddItem(r.Context(), id, in), renderCart)
}

func (req AddItemRequest) toInput() (cart.ItemInput, error) {
	productID, err := identity.NewProductID(req.ProductID)
	if err != nil {
		return cart.ItemInput{}, err
	}
	variantID, err := identity.NewProductVariantID(req.VariantID)
	if err != nil {
		return cart.ItemInput{}, err
	}
	price, err := req.UnitPrice.toMoney()
	if err != nil {
		return cart.ItemInput{}, err
	}
	compareAt, err := optionalMoney(req.CompareAtPrice)
	if err != nil {
		return cart.ItemInput{}, err
	}
	return cart.ItemInput{
		ProductID:      productID,
		VariantID:      variantID,
		Title:          req.Title,
		VariantTitle:   req.VariantTitle,
		SKU:            req.SKU,
		ImageURL:       req.ImageURL,
		Quantity:       req.Quantity,
		UnitPrice:      price,
		CompareAtPrice: compareAt,
	}, nil
}

// UpdateItemQuantity handles PATCH /api/v1/carts/{cartID}/items/{itemID}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	itemID, ok := pathID[identity.CartItemKind](w, r, "itemID")
	if !ok {
		return
	}
	var req UpdateQuantityRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.UpdateItemQuantity(r.Context(), id, itemID, req.Quantity), renderCart)
}

// RemoveItem handles DELETE /api/v1/carts/{cartID}/items/{itemID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	itemID, ok := pathID[identity.CartItemKind](w, r, "itemID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.RemoveItem(r.Context(), id, itemID), renderCart)
}

// ApplyDiscount handles POST /api/v1/carts/{cartID}/discounts
func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	var req ApplyDiscountRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.ApplyDiscount(r.Context(), id, in), renderCart)
}

func (req ApplyDiscountRequest) toInput() (cart.DiscountInput, error) {
	in := cart.DiscountInput{
		Code:        req.Code,
		Description: req.Description,
		Type:        cart.DiscountType(req.Type),
		Value:       req.Value,
		Scope:       cart.DiscountScope(req.Scope),
	}
	var err error
	if req.Currency != "" {
		if in.Currency, err = money.ParseCurrency(req.Currency); err != nil {
			return cart.DiscountInput{}, err
		}
	}
	if req.Amount != nil {
		if in.Amount, err = req.Amount.toMoney(); err != nil {
			return cart.DiscountInput{}, err
		}
		if in.Currency.IsZero() {
			in.Currency = in.Amount.Currency()
		}
	}
	if in.MinimumAmount, err = optionalMoney(req.MinimumAmount); err != nil {
		return cart.DiscountInput{}, err
	}
	if in.MaximumDiscount, err = optionalMoney(req.MaximumDiscount); err != nil {
		return cart.DiscountInput{}, err
	}
	return in, nil
}

// RemoveDiscount handles DELETE /api/v1/carts/{cartID}/discounts/{discountID}
func (h *CartHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	discountID, ok := pathID[identity.DiscountKind](w, r, "discountID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.RemoveDiscount(r.Context(), id, discountID), renderCart)
}

// UpdateShipping handles PUT /api/v1/carts/{cartID}/shipping
func (h *CartHandler) UpdateShipping(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	var req ShippingRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	cost, err := req.Cost.toMoney()
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	sh := cart.Shipping{
		MethodID:      req.MethodID,
		Name:          req.Name,
		Carrier:       req.Carrier,
		Cost:          cost,
		EstimatedDays: req.EstimatedDays,
	}
	respond(w, r, h.errs, http.StatusOK, h.service.UpdateShipping(r.Context(), id, sh), renderCart)
}

// UpdateNotes handles PUT /api/v1/carts/{cartID}/notes
func (h *CartHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	var req NotesRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.UpdateNotes(r.Context(), id, req.Notes), renderCart)
}

// ClearCart handles POST /api/v1/carts/{cartID}/clear
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ClearCart)
}

// AbandonCart handles POST /api/v1/carts/{cartID}/abandon
func (h *CartHandler) AbandonCart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.AbandonCart)
}

// CompleteCart handles POST /api/v1/carts/{cartID}/complete
func (h *CartHandler) CompleteCart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CompleteCart)
}

// AssignToUser handles POST /api/v1/carts/{cartID}/assign, binding a guest
// cart to the authenticated caller.
func (h *CartHandler) AssignToUser(w http.ResponseWriter, r *http.Request) {
	h.forUser(w, r, h.service.AssignToUser)
}

// MergeIntoUserCart handles POST /api/v1/carts/{cartID}/merge, folding the
// guest cart into the caller's active cart.
func (h *CartHandler) MergeIntoUserCart(w http.ResponseWriter, r *http.Request) {
	h.forUser(w, r, h.service.MergeCarts)
}

// --- Helpers ---

type cartCommand func(ctx context.Context, id identity.CartID) service.Result[*cart.Cart]

func (h *CartHandler) transition(w http.ResponseWriter, r *http.Request, cmd cartCommand) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, cmd(r.Context(), id), renderCart)
}

func (h *CartHandler) forUser(w http.ResponseWriter, r *http.Request, cmd func(ctx context.Context, id identity.CartID, userID identity.UserID) service.Result[*cart.Cart]) {
	id, ok := pathID[identity.CartKind](w, r, "cartID")
	if !ok {
		return
	}
	userID, err := identity.NewUserID(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond(w, r, h.errs, http.StatusOK, cmd(r.Context(), id, userID), renderCart)
}

// sessionID reads the guest session header. Anonymous callers must send one.
func (h *CartHandler) sessionID(r *http.Request) (identity.SessionID, error) {
	raw := middleware.SessionIDFromContext(r.Context())
	if raw == "" {
		return identity.SessionID{}, apperrors.InvalidInput(middleware.HeaderUserID + " or " + middleware.HeaderSessionID + " header is required")
	}
	return identity.NewSessionID(raw)
}
