package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/commercecore/internal/domain/category"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/service"
	"github.com/utafrali/commercecore/pkg/httputil"
)

// CategoryHandler handles HTTP requests for category endpoints.
type CategoryHandler struct {
	service *service.CategoryService
	errs    httputil.ErrorWriter
}

// NewCategoryHandler creates a new category HTTP handler.
func NewCategoryHandler(svc *service.CategoryService, errs httputil.ErrorWriter) *CategoryHandler {
	return &CategoryHandler{service: svc, errs: errs}
}

// Routes registers the category endpoints on r.
func (h *CategoryHandler) Routes(r chi.Router) {
	r.Get("/", h.GetTree)
	r.Post("/", h.CreateCategory)
	r.Get("/hierarchy/problems", h.ValidateHierarchy)
	r.Get("/handle/{handle}", h.GetCategoryByHandle)

	r.Route("/{categoryID}", func(r chi.Router) {
		r.Get("/", h.GetCategory)
		r.Patch("/", h.UpdateCategory)
		r.Post("/move", h.MoveCategory)
		r.Put("/visibility", h.SetVisibility)

		r.Post("/activate", h.lifecycle(h.service.ActivateCategory))
		r.Post("/deactivate", h.lifecycle(h.service.DeactivateCategory))
		r.Post("/archive", h.lifecycle(h.service.ArchiveCategory))
	})
}

// --- Request DTOs ---

// CreateCategoryRequest is the JSON request body for creating a category.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Handle      string `json:"handle" validate:"omitempty,slug"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id"`
	Position    int    `json:"position" validate:"gte=0"`
	Visible     *bool  `json:"visible"`
}

// UpdateCategoryRequest is the JSON request body for a partial update. Each
// present field is applied in turn.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Handle      *string `json:"handle" validate:"omitempty,slug"`
	Description *string `json:"description"`
	Position    *int    `json:"position" validate:"omitempty,gte=0"`
}

// MoveCategoryRequest re-parents a category. An empty parent_id moves it to
// the root.
type MoveCategoryRequest struct {
	ParentID string `json:"parent_id"`
	Position int    `json:"position" validate:"gte=0"`
}

// VisibilityRequest is the JSON request body for showing or hiding a category.
type VisibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

// --- Handlers ---

// GetTree handles GET /api/v1/categories, returning the full forest.
func (h *CategoryHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	respond(w, r, h.errs, http.StatusOK, h.service.GetTree(r.Context()), renderTree)
}

// ValidateHierarchy handles GET /api/v1/categories/hierarchy/problems,
// listing the ids of categories caught in a parent cycle.
func (h *CategoryHandler) ValidateHierarchy(w http.ResponseWriter, r *http.Request) {
	respond(w, r, h.errs, http.StatusOK, h.service.ValidateHierarchy(r.Context()),
		func(ids []identity.ProductCategoryID) map[string]any {
			if ids == nil {
				ids = []identity.ProductCategoryID{}
			}
			return map[string]any{"valid": len(ids) == 0, "cyclic_ids": ids}
		})
}

// CreateCategory handles POST /api/v1/categories
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	parentID, err := optionalCategoryID(req.ParentID)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}
	in := category.NewInput{
		Name:        req.Name,
		Handle:      req.Handle,
		Description: req.Description,
		ParentID:    parentID,
		Position:    req.Position,
		Visible:     visible,
	}
	respond(w, r, h.errs, http.StatusCreated, h.service.CreateCategory(r.Context(), in), renderCategory)
}

// GetCategory handles GET /api/v1/categories/{categoryID}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductCategoryKind](w, r, "categoryID")
	if !ok {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.GetCategory(r.Context(), id), renderCategory)
}

// GetCategoryByHandle handles GET /api/v1/categories/handle/{handle}
func (h *CategoryHandler) GetCategoryByHandle(w http.ResponseWriter, r *http.Request) {
	res := h.service.GetCategoryByHandle(r.Context(), chi.URLParam(r, "handle"))
	respond(w, r, h.errs, http.StatusOK, res, renderCategory)
}

// UpdateCategory handles PATCH /api/v1/categories/{categoryID}. Changes are
// saved one at a time; the first failure stops the update.
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductCategoryKind](w, r, "categoryID")
	if !ok {
		return
	}
	var req UpdateCategoryRequest
	if !decode(w, r, h.errs, &req) {
		return
	}

	ctx := r.Context()
	var steps []func() service.Result[*category.Category]
	if req.Name != nil {
		steps = append(steps, func() service.Result[*category.Category] { return h.service.RenameCategory(ctx, id, *req.Name) })
	}
	if req.Handle != nil {
		steps = append(steps, func() service.Result[*category.Category] { return h.service.ChangeHandle(ctx, id, *req.Handle) })
	}
	if req.Description != nil {
		steps = append(steps, func() service.Result[*category.Category] {
			return h.service.UpdateDescription(ctx, id, *req.Description)
		})
	}
	if req.Position != nil {
		steps = append(steps, func() service.Result[*category.Category] {
			return h.service.RepositionCategory(ctx, id, *req.Position)
		})
	}

	res := h.service.GetCategory(ctx, id)
	for _, step := range steps {
		if res = step(); !res.IsOK() {
			break
		}
	}
	respond(w, r, h.errs, http.StatusOK, res, renderCategory)
}

// MoveCategory handles POST /api/v1/categories/{categoryID}/move
func (h *CategoryHandler) MoveCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductCategoryKind](w, r, "categoryID")
	if !ok {
		return
	}
	var req MoveCategoryRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	parentID, err := optionalCategoryID(req.ParentID)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.MoveCategory(r.Context(), id, parentID, req.Position), renderCategory)
}

// SetVisibility handles PUT /api/v1/categories/{categoryID}/visibility
func (h *CategoryHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[identity.ProductCategoryKind](w, r, "categoryID")
	if !ok {
		return
	}
	var req VisibilityRequest
	if !decode(w, r, h.errs, &req) {
		return
	}
	respond(w, r, h.errs, http.StatusOK, h.service.SetVisibility(r.Context(), id, *req.Visible), renderCategory)
}

func (h *CategoryHandler) lifecycle(cmd func(ctx context.Context, id identity.ProductCategoryID) service.Result[*category.Category]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID[identity.ProductCategoryKind](w, r, "categoryID")
		if !ok {
			return
		}
		respond(w, r, h.errs, http.StatusOK, cmd(r.Context(), id), renderCategory)
	}
}

// optionalCategoryID parses raw, treating the empty string as no category.
func optionalCategoryID(raw string) (identity.ProductCategoryID, error) {
	if raw == "" {
		return identity.ProductCategoryID{}, nil
	}
	return identity.NewProductCategoryID(raw)
}
