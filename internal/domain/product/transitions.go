package product

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/internal/domain/identity"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/slug"
)

// transition is the next state plus the events describing the change.
type transition struct {
	next   state
	events []event.Event
}

type decideFunc func(s state, now time.Time) (transition, error)

func (p *Product) apply(decide decideFunc) error {
	t, err := decide(p.state.clone(), p.now())
	if err != nil {
		return err
	}
	p.commit(t)
	return nil
}

func (s state) newEvent(eventType string, now time.Time, fields ...event.Field) event.Event {
	return event.New(AggregateType, s.id.String(), eventType, now, event.NewPayload(fields...))
}

func (s state) emit(now time.Time, eventType string, fields ...event.Field) transition {
	s.updatedAt = now
	return transition{next: s, events: []event.Event{s.newEvent(eventType, now, fields...)}}
}

func requireNotArchived(s state) error {
	if s.status == StatusArchived {
		return apperrors.BusinessRule(RuleProductArchived, "archived products cannot be modified")
	}
	return nil
}

func (s state) skuTaken(sku string, except identity.ProductVariantID) bool {
	for id, v := range s.variants {
		if id != except && strings.EqualFold(v.sku, sku) {
			return true
		}
	}
	return false
}

// UpdateDetails changes title, description, vendor or product type.
func (p *Product) UpdateDetails(u DetailsUpdate) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		var changed []string
		if u.Title != nil {
			title := strings.TrimSpace(*u.Title)
			var errs apperrors.ValidationErrorCollection
			validateTitle(&errs, title)
			if err := errs.Err(); err != nil {
				return transition{}, err
			}
			if title != s.title {
				s.title = title
				changed = append(changed, "title")
			}
		}
		if u.Description != nil && strings.TrimSpace(*u.Description) != s.description {
			s.description = strings.TrimSpace(*u.Description)
			changed = append(changed, "description")
		}
		if u.Vendor != nil && strings.TrimSpace(*u.Vendor) != s.vendor {
			s.vendor = strings.TrimSpace(*u.Vendor)
			changed = append(changed, "vendor")
		}
		if u.ProductType != nil && strings.TrimSpace(*u.ProductType) != s.productType {
			s.productType = strings.TrimSpace(*u.ProductType)
			changed = append(changed, "product_type")
		}
		if len(changed) == 0 {
			return transition{next: s}, nil
		}
		return s.emit(now, EventUpdated, event.F("changed_fields", changed)), nil
	})
}

// ChangeHandle replaces the URL handle. Uniqueness across products is the
// repository's concern.
func (p *Product) ChangeHandle(handle string) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		handle = strings.TrimSpace(handle)
		if !slug.IsValid(handle) {
			return transition{}, apperrors.Validation("handle", handle, "must be a lowercase URL slug")
		}
		if handle == s.handle {
			return transition{next: s}, nil
		}
		old := s.handle
		s.handle = handle
		return s.emit(now, EventHandleChanged, event.F("old_handle", old), event.F("new_handle", handle)), nil
	})
}

// AddVariant attaches a new variant. SKUs are unique within the product.
func (p *Product) AddVariant(in VariantInput) (Variant, error) {
	var added Variant
	err := p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		if len(s.variants) >= MaxVariantsPerProduct {
			return transition{}, apperrors.BusinessRule(RuleMaxVariantsExceeded,
				fmt.Sprintf("product must not have more than %d variants", MaxVariantsPerProduct))
		}
		v, err := buildVariant(in, s.currency, now)
		if err != nil {
			return transition{}, err
		}
		if _, exists := s.variants[v.id]; exists {
			return transition{}, apperrors.AlreadyExists("product_variant", "id", v.id.String())
		}
		if s.skuTaken(v.sku, identity.ProductVariantID{}) {
			return transition{}, apperrors.AlreadyExists("product_variant", "sku", v.sku)
		}
		s.variants[v.id] = v
		added = v
		return s.emit(now, EventVariantAdded,
			event.F("variant_id", v.id.String()),
			event.F("sku", v.sku),
			event.F("price", v.price.Amount()),
			event.F("currency", v.price.Currency().Code()),
			event.F("inventory_quantity", v.inventoryQuantity),
		), nil
	})
	return added, err
}

// UpdateVariant applies u to the variant with id.
func (p *Product) UpdateVariant(id identity.ProductVariantID, u VariantUpdate) (Variant, error) {
	var updated Variant
	err := p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		v, ok := s.variants[id]
		if !ok {
			return transition{}, apperrors.NotFound("product_variant", id.String())
		}
		next, err := v.withUpdate(u, s.currency, now)
		if err != nil {
			return transition{}, err
		}
		if next.sku != v.sku && s.skuTaken(next.sku, id) {
			return transition{}, apperrors.AlreadyExists("product_variant", "sku", next.sku)
		}
		s.variants[id] = next
		updated = next
		return s.emit(now, EventVariantUpdated,
			event.F("variant_id", id.String()),
			event.F("sku", next.sku),
			event.F("price", next.price.Amount()),
		), nil
	})
	return updated, err
}

// RemoveVariant deletes a variant. The last remaining variant cannot be
// removed.
func (p *Product) RemoveVariant(id identity.ProductVariantID) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		v, ok := s.variants[id]
		if !ok {
			return transition{}, apperrors.NotFound("product_variant", id.String())
		}
		if len(s.variants) == 1 {
			return transition{}, apperrors.BusinessRule(RuleLastVariant, "cannot remove the last variant of a product")
		}
		delete(s.variants, id)
		for i := range s.images {
			s.images[i].VariantIDs = slices.DeleteFunc(s.images[i].VariantIDs,
				func(vid identity.ProductVariantID) bool { return vid == id })
		}
		return s.emit(now, EventVariantRemoved,
			event.F("variant_id", id.String()),
			event.F("sku", v.sku),
		), nil
	})
}

// AdjustInventory changes a variant's stock by delta. Stock may only go
// negative when backorders are allowed.
func (p *Product) AdjustInventory(id identity.ProductVariantID, delta int, reason string) (Variant, error) {
	var adjusted Variant
	err := p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		v, ok := s.variants[id]
		if !ok {
			return transition{}, apperrors.NotFound("product_variant", id.String())
		}
		if delta == 0 {
			adjusted = v
			return transition{next: s}, nil
		}
		qty := v.inventoryQuantity + delta
		if qty < 0 && !v.allowBackorder {
			return transition{}, apperrors.BusinessRule(RuleInsufficientInventory,
				fmt.Sprintf("variant %s has %d units, cannot remove %d", v.sku, v.inventoryQuantity, -delta))
		}
		old := v.inventoryQuantity
		v.inventoryQuantity = qty
		v.updatedAt = now
		s.variants[id] = v
		adjusted = v
		return s.emit(now, EventInventoryAdjusted,
			event.F("variant_id", id.String()),
			event.F("sku", v.sku),
			event.F("old_quantity", old),
			event.F("new_quantity", qty),
			event.F("delta", delta),
			event.F("reason", reason),
		), nil
	})
	return adjusted, err
}

// Publish makes a Draft or Inactive product Active.
func (p *Product) Publish() error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		switch s.status {
		case StatusArchived:
			return transition{}, requireNotArchived(s)
		case StatusActive:
			return transition{}, apperrors.BusinessRule(RuleAlreadyPublished, "product is already published")
		}
		if len(s.variants) == 0 {
			return transition{}, apperrors.BusinessRule(RuleNoVariants, "product must have at least one variant to be published")
		}
		for _, v := range s.variants {
			if err := v.validate(s.currency); err != nil {
				return transition{}, err
			}
		}
		s.status = StatusActive
		if s.publishedAt == nil {
			t := now
			s.publishedAt = &t
		}
		return s.emit(now, EventPublished,
			event.F("handle", s.handle),
			event.F("variant_count", len(s.variants)),
		), nil
	})
}

// Deactivate hides an Active product.
func (p *Product) Deactivate() error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		if s.status != StatusActive {
			return transition{}, apperrors.BusinessRule(RuleNotActive, fmt.Sprintf("product is %s", s.status))
		}
		s.status = StatusInactive
		return s.emit(now, EventDeactivated), nil
	})
}

// Reactivate returns an Inactive product to Active.
func (p *Product) Reactivate() error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		if s.status != StatusInactive {
			return transition{}, apperrors.BusinessRule(RuleNotInactive, fmt.Sprintf("product is %s", s.status))
		}
		if len(s.variants) == 0 {
			return transition{}, apperrors.BusinessRule(RuleNoVariants, "product has no variants")
		}
		s.status = StatusActive
		return s.emit(now, EventReactivated), nil
	})
}

// Archive retires the product permanently.
func (p *Product) Archive() error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		previous := s.status
		s.status = StatusArchived
		return s.emit(now, EventArchived, event.F("previous_status", string(previous))), nil
	})
}

// AssignCategory links the product to a category. Assigning twice is a no-op.
func (p *Product) AssignCategory(id identity.ProductCategoryID) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		if id.IsZero() {
			return transition{}, apperrors.Validation("category_id", "", "is required")
		}
		if slices.Contains(s.categoryIDs, id) {
			return transition{next: s}, nil
		}
		s.categoryIDs = append(s.categoryIDs, id)
		return s.emit(now, EventCategoryAssigned, event.F("category_id", id.String())), nil
	})
}

// RemoveCategory unlinks a category.
func (p *Product) RemoveCategory(id identity.ProductCategoryID) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		i := slices.Index(s.categoryIDs, id)
		if i < 0 {
			return transition{}, apperrors.NotFound("product_category", id.String())
		}
		s.categoryIDs = slices.Delete(s.categoryIDs, i, i+1)
		return s.emit(now, EventCategoryRemoved, event.F("category_id", id.String())), nil
	})
}

// AddTag adds a normalised tag. Existing tags are ignored.
func (p *Product) AddTag(tag string) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		t := normalizeTag(tag)
		switch {
		case t == "":
			return transition{}, apperrors.Validation("tag", tag, "must not be empty")
		case len(t) > MaxTagLength:
			return transition{}, apperrors.Validation("tag", tag, fmt.Sprintf("must not exceed %d characters", MaxTagLength))
		}
		if slices.Contains(s.tags, t) {
			return transition{next: s}, nil
		}
		if len(s.tags) >= MaxTags {
			return transition{}, apperrors.BusinessRule(RuleMaxTagsExceeded,
				fmt.Sprintf("product must not have more than %d tags", MaxTags))
		}
		s.tags = append(s.tags, t)
		sort.Strings(s.tags)
		return s.emit(now, EventTagsChanged, event.F("added", t), event.F("tags", slices.Clone(s.tags))), nil
	})
}

// RemoveTag removes a tag if present.
func (p *Product) RemoveTag(tag string) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		t := normalizeTag(tag)
		i := slices.Index(s.tags, t)
		if i < 0 {
			return transition{next: s}, nil
		}
		s.tags = slices.Delete(s.tags, i, i+1)
		return s.emit(now, EventTagsChanged, event.F("removed", t), event.F("tags", slices.Clone(s.tags))), nil
	})
}

// AddImage inserts an image at in.Position, or appends it.
func (p *Product) AddImage(in ImageInput) (Image, error) {
	var added Image
	err := p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		if err := validateImageInput(in); err != nil {
			return transition{}, err
		}
		if len(s.images) >= MaxImages {
			return transition{}, apperrors.BusinessRule(RuleMaxImagesExceeded,
				fmt.Sprintf("product must not have more than %d images", MaxImages))
		}
		for _, vid := range in.VariantIDs {
			if _, ok := s.variants[vid]; !ok {
				return transition{}, apperrors.NotFound("product_variant", vid.String())
			}
		}
		img := Image{
			ID:         identity.Generate[identity.ProductImageKind](),
			URL:        strings.TrimSpace(in.URL),
			AltText:    strings.TrimSpace(in.AltText),
			VariantIDs: slices.Clone(in.VariantIDs),
		}
		pos := len(s.images)
		if in.Position != nil && *in.Position < pos {
			pos = *in.Position
		}
		s.images = slices.Insert(s.images, pos, img)
		renumber(s.images)
		added = s.images[pos]
		return s.emit(now, EventImageAdded,
			event.F("image_id", img.ID.String()),
			event.F("url", img.URL),
			event.F("position", pos),
		), nil
	})
	return added, err
}

// RemoveImage deletes an image and closes the gap in positions.
func (p *Product) RemoveImage(id identity.ProductImageID) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		i := slices.IndexFunc(s.images, func(img Image) bool { return img.ID == id })
		if i < 0 {
			return transition{}, apperrors.NotFound("product_image", id.String())
		}
		s.images = slices.Delete(s.images, i, i+1)
		renumber(s.images)
		return s.emit(now, EventImageRemoved, event.F("image_id", id.String())), nil
	})
}

// ReorderImages sets the image order. ids must name every image exactly once.
func (p *Product) ReorderImages(ids []identity.ProductImageID) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		if len(ids) != len(s.images) {
			return transition{}, apperrors.Validation("image_ids", len(ids),
				fmt.Sprintf("must list all %d images", len(s.images)))
		}
		byID := make(map[identity.ProductImageID]Image, len(s.images))
		for _, img := range s.images {
			byID[img.ID] = img
		}
		ordered := make([]Image, 0, len(ids))
		for _, id := range ids {
			img, ok := byID[id]
			if !ok {
				return transition{}, apperrors.Validation("image_ids", id.String(), "unknown or repeated image")
			}
			delete(byID, id)
			ordered = append(ordered, img)
		}
		renumber(ordered)
		s.images = ordered
		order := make([]string, len(ids))
		for i, id := range ids {
			order[i] = id.String()
		}
		return s.emit(now, EventImagesReordered, event.F("image_ids", order)), nil
	})
}

func renumber(images []Image) {
	for i := range images {
		images[i].Position = i
	}
}

// UpdateSEO replaces the search metadata.
func (p *Product) UpdateSEO(seo SEO) error {
	return p.apply(func(s state, now time.Time) (transition, error) {
		if err := requireNotArchived(s); err != nil {
			return transition{}, err
		}
		seo.Title = strings.TrimSpace(seo.Title)
		seo.Description = strings.TrimSpace(seo.Description)
		if err := seo.Validate(); err != nil {
			return transition{}, err
		}
		next := seo.copy()
		s.seo = &next
		return s.emit(now, EventSEOUpdated,
			event.F("title", next.Title),
			event.F("description", next.Description),
		), nil
	})
}
