// Package category implements product categories and the read-side tree index
// over them.
package category

import (
	"fmt"
	"strings"
	"time"

	"github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/internal/domain/identity"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/slug"
)

// AggregateType is the aggregate type carried on category events.
const AggregateType = "product_category"

// Category event types.
const (
	EventCreated            = "category.created"
	EventRenamed            = "category.renamed"
	EventHandleChanged      = "category.handle_changed"
	EventDescriptionUpdated = "category.description_updated"
	EventMoved              = "category.moved"
	EventRepositioned       = "category.repositioned"
	EventActivated          = "category.activated"
	EventDeactivated        = "category.deactivated"
	EventArchived           = "category.archived"
	EventVisibilityChanged  = "category.visibility_changed"
)

// Business rules raised by categories.
const (
	RuleSelfParent       = "self_parent"
	RuleCircularParent   = "circular_parent"
	RuleCategoryArchived = "category_archived"
	RuleNotActive        = "category_not_active"
	RuleNotInactive      = "category_not_inactive"
)

// Field limits.
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 5000
)

// Status is the lifecycle state of a category.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusArchived
}

// Clock supplies the current time.
type Clock func() time.Time

// Option configures a Category.
type Option func(*Category)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Category) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewInput holds the fields for New. An empty Handle is derived from Name.
type NewInput struct {
	Name        string
	Handle      string
	Description string
	ParentID    identity.ProductCategoryID
	Position    int
	Visible     bool
}

// Category is a node in the catalog's category forest.
type Category struct {
	event.Recorder

	id          identity.ProductCategoryID
	name        string
	handle      string
	description string
	parentID    identity.ProductCategoryID
	position    int
	status      Status
	visible     bool
	createdAt   time.Time
	updatedAt   time.Time
	version     int
	clock       Clock
}

// New creates an Active category.
func New(in NewInput, opts ...Option) (*Category, error) {
	c := &Category{clock: time.Now, status: StatusActive}
	for _, opt := range opts {
		opt(c)
	}

	var errs apperrors.ValidationErrorCollection
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		errs.Append(err)
	}
	handle := strings.TrimSpace(in.Handle)
	if handle == "" {
		handle = slug.Generate(name)
	}
	if name != "" && !slug.IsValid(handle) {
		errs.Add("handle", in.Handle, "must be a lowercase URL slug")
	}
	if in.Position < 0 {
		errs.Add("position", in.Position, "must not be negative")
	}
	if len(in.Description) > MaxDescriptionLength {
		errs.Add("description", len(in.Description), fmt.Sprintf("must not exceed %d characters", MaxDescriptionLength))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	now := c.now()
	c.id = identity.Generate[identity.ProductCategoryKind]()
	c.name = name
	c.handle = handle
	c.description = strings.TrimSpace(in.Description)
	c.parentID = in.ParentID
	c.position = in.Position
	c.visible = in.Visible
	c.createdAt = now
	c.updatedAt = now
	c.record(EventCreated, now,
		event.F("name", name),
		event.F("handle", handle),
		event.F("parent_id", in.ParentID.String()),
	)
	return c, nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return apperrors.Validation("name", name, "is required")
	case len(name) > MaxNameLength:
		return apperrors.Validation("name", len(name), fmt.Sprintf("must not exceed %d characters", MaxNameLength))
	}
	return nil
}

func (c *Category) now() time.Time { return c.clock().UTC() }

func (c *Category) record(eventType string, now time.Time, fields ...event.Field) {
	c.updatedAt = now
	c.Record(event.New(AggregateType, c.id.String(), eventType, now, event.NewPayload(fields...)))
}

func (c *Category) requireNotArchived() error {
	if c.status == StatusArchived {
		return apperrors.BusinessRule(RuleCategoryArchived, "archived categories cannot be modified")
	}
	return nil
}

func (c *Category) ID() identity.ProductCategoryID       { return c.id }
func (c *Category) Name() string                         { return c.name }
func (c *Category) Handle() string                       { return c.handle }
func (c *Category) Description() string                  { return c.description }
func (c *Category) ParentID() identity.ProductCategoryID { return c.parentID }
func (c *Category) IsRoot() bool                         { return c.parentID.IsZero() }
func (c *Category) Position() int                        { return c.position }
func (c *Category) Status() Status                       { return c.status }
func (c *Category) IsVisible() bool                      { return c.visible }
func (c *Category) CreatedAt() time.Time                 { return c.createdAt }
func (c *Category) UpdatedAt() time.Time                 { return c.updatedAt }
func (c *Category) Version() int                         { return c.version }
func (c *Category) SetVersion(v int)                     { c.version = v }

// IsActive reports whether the category is Active.
func (c *Category) IsActive() bool { return c.status == StatusActive }

// Rename changes the display name.
func (c *Category) Rename(name string) error {
	if err := c.requireNotArchived(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return err
	}
	if name == c.name {
		return nil
	}
	old := c.name
	c.name = name
	c.record(EventRenamed, c.now(), event.F("old_name", old), event.F("new_name", name))
	return nil
}

// ChangeHandle replaces the URL handle.
func (c *Category) ChangeHandle(handle string) error {
	if err := c.requireNotArchived(); err != nil {
		return err
	}
	handle = strings.TrimSpace(handle)
	if !slug.IsValid(handle) {
		return apperrors.Validation("handle", handle, "must be a lowercase URL slug")
	}
	if handle == c.handle {
		return nil
	}
	old := c.handle
	c.handle = handle
	c.record(EventHandleChanged, c.now(), event.F("old_handle", old), event.F("new_handle", handle))
	return nil
}

// UpdateDescription replaces the description.
func (c *Category) UpdateDescription(description string) error {
	if err := c.requireNotArchived(); err != nil {
		return err
	}
	description = strings.TrimSpace(description)
	if len(description) > MaxDescriptionLength {
		return apperrors.Validation("description", len(description),
			fmt.Sprintf("must not exceed %d characters", MaxDescriptionLength))
	}
	if description == c.description {
		return nil
	}
	c.description = description
	c.record(EventDescriptionUpdated, c.now())
	return nil
}

// MoveTo re-parents the category. A zero parent makes it a root. Cycles
// through descendants are checked by the caller against a Tree.
func (c *Category) MoveTo(parent identity.ProductCategoryID, position int) error {
	if err := c.requireNotArchived(); err != nil {
		return err
	}
	if parent == c.id {
		return apperrors.BusinessRule(RuleSelfParent, "a category cannot be its own parent")
	}
	if position < 0 {
		return apperrors.Validation("position", position, "must not be negative")
	}
	if parent == c.parentID && position == c.position {
		return nil
	}
	old := c.parentID
	c.parentID = parent
	c.position = position
	c.record(EventMoved, c.now(),
		event.F("old_parent_id", old.String()),
		event.F("new_parent_id", parent.String()),
		event.F("position", position),
	)
	return nil
}

// Reposition changes the sort order among siblings.
func (c *Category) Reposition(position int) error {
	if err := c.requireNotArchived(); err != nil {
		return err
	}
	if position < 0 {
		return apperrors.Validation("position", position, "must not be negative")
	}
	if position == c.position {
		return nil
	}
	old := c.position
	c.position = position
	c.record(EventRepositioned, c.now(), event.F("old_position", old), event.F("new_position", position))
	return nil
}

// Activate returns an Inactive category to Active.
func (c *Category) Activate() error {
	if err := c.requireNotArchived(); err != nil {
		return err
	}
	if c.status != StatusInactive {
		return apperrors.BusinessRule(RuleNotInactive, fmt.Sprintf("category is %s", c.status))
	}
	c.status = StatusActive
	c.record(EventActivated, c.now())
	return nil
}

// Deactivate hides an Active category.
func (c *Category) Deactivate() error {
	if err := c.requireNotArchived(); err != nil {
		return err
	}
	if c.status != StatusActive {
		return apperrors.BusinessRule(RuleNotActive, fmt.Sprintf("category is %s", c.status))
	}
	c.status = StatusInactive
	c.record(EventDeactivated, c.now())
	return nil
}

// Archive retires the category.
func (c *Category) Archive() error {
	if err := c.requireNotArchived(); err != nil {
		return err
	}
	previous := c.status
	c.status = StatusArchived
	c.visible = false
	c.record(EventArchived, c.now(), event.F("previous_status", string(previous)))
	return nil
}

// SetVisibility shows or hides the category in navigation.
func (c *Category) SetVisibility(visible bool) error {
	if err := c.requireNotArchived(); err != nil {
		return err
	}
	if visible == c.visible {
		return nil
	}
	c.visible = visible
	c.record(EventVisibilityChanged, c.now(), event.F("visible", visible))
	return nil
}

// Snapshot is the storage representation of a category.
type Snapshot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Handle      string    `json:"handle"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	Position    int       `json:"position"`
	Status      Status    `json:"status"`
	Visible     bool      `json:"visible"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot captures the persisted state.
func (c *Category) Snapshot() Snapshot {
	return Snapshot{
		ID:          c.id.String(),
		Name:        c.name,
		Handle:      c.handle,
		Description: c.description,
		ParentID:    c.parentID.String(),
		Position:    c.position,
		Status:      c.status,
		Visible:     c.visible,
		Version:     c.version,
		CreatedAt:   c.createdAt,
		UpdatedAt:   c.updatedAt,
	}
}

// Restore rebuilds a category from a snapshot without queuing events.
func Restore(snap Snapshot, opts ...Option) (*Category, error) {
	id, err := identity.NewProductCategoryID(snap.ID)
	if err != nil {
		return nil, err
	}
	if !snap.Status.IsValid() {
		return nil, apperrors.Validation("status", string(snap.Status), "unknown category status")
	}
	c := &Category{
		id:          id,
		name:        snap.Name,
		handle:      snap.Handle,
		description: snap.Description,
		position:    snap.Position,
		status:      snap.Status,
		visible:     snap.Visible,
		version:     snap.Version,
		createdAt:   snap.CreatedAt,
		updatedAt:   snap.UpdatedAt,
		clock:       time.Now,
	}
	if snap.ParentID != "" {
		if c.parentID, err = identity.NewProductCategoryID(snap.ParentID); err != nil {
			return nil, err
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
