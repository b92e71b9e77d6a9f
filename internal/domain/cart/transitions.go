package cart

import (
	"fmt"
	"strings"
	"time"

	"github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// transition is the outcome of a decision: the next state and the events
// describing the change. Decisions work on a cloned state, so a rejected
// command never touches the cart.
type transition struct {
	next   state
	events []event.Event
}

type decideFunc func(s state, now time.Time) (transition, error)

// apply runs a decision against a clone of the current state and commits it.
// A command rejected only because the expiry has passed demotes the cart to
// Expired before the error is returned.
func (c *Cart) apply(decide decideFunc) error {
	now := c.now()
	t, err := decide(c.state.clone(), now)
	if err != nil {
		if apperrors.IsRule(err, RuleCartExpired) && c.status == StatusActive {
			if demoted, derr := decideExpire(c.state.clone(), now); derr == nil {
				c.commit(demoted)
			}
		}
		return err
	}
	c.commit(t)
	return nil
}

func (s state) newEvent(eventType string, now time.Time, fields ...event.Field) event.Event {
	return event.New(AggregateType, s.id.String(), eventType, now, event.NewPayload(fields...))
}

// touched stamps activity and slides the expiry window forward.
func (s state) touched(now time.Time) state {
	s.updatedAt = now
	s.lastActivityAt = now
	s.expiresAt = s.policy.ExpiresAt(!s.userID.IsZero(), now)
	return s
}

func requireActive(s state, now time.Time) error {
	if s.status != StatusActive {
		return apperrors.BusinessRule(RuleCartNotActive, fmt.Sprintf("cart is %s", s.status))
	}
	if !now.Before(s.expiresAt) {
		return apperrors.BusinessRule(RuleCartExpired, "cart has expired")
	}
	return nil
}

func requireCurrency(s state, c money.Currency, what string) error {
	if c != s.currency {
		return apperrors.BusinessRule(money.RuleCurrencyMismatch,
			fmt.Sprintf("%s currency %s does not match cart currency %s", what, c.Code(), s.currency.Code()))
	}
	return nil
}

func decideCreate(id identity.CartID, userID identity.UserID, sessionID identity.SessionID, currency money.Currency, policy ExpiryPolicy, now time.Time) (transition, error) {
	if userID.IsZero() == sessionID.IsZero() {
		return transition{}, apperrors.BusinessRule(RuleOwnerOrSessionMissing, "a cart needs either an owner or a session, not both")
	}
	if currency.IsZero() {
		return transition{}, apperrors.Validation("currency", "", "is required")
	}

	s := state{
		id:             id,
		userID:         userID,
		sessionID:      sessionID,
		currency:       currency,
		status:         StatusActive,
		items:          make(map[identity.CartItemID]Item),
		discounts:      make(map[identity.DiscountID]Discount),
		createdAt:      now,
		updatedAt:      now,
		lastActivityAt: now,
		policy:         policy,
	}
	s.expiresAt = policy.ExpiresAt(!userID.IsZero(), now)

	return transition{next: s, events: []event.Event{s.newEvent(EventCreated, now,
		event.F("user_id", userID.String()),
		event.F("session_id", sessionID.String()),
		event.F("currency", currency.Code()),
		event.F("expires_at", s.expiresAt),
	)}}, nil
}

func decideAddItem(in ItemInput) decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		if err := validateItemInput(in); err != nil {
			return transition{}, err
		}
		if err := requireCurrency(s, in.UnitPrice.Currency(), "item"); err != nil {
			return transition{}, err
		}

		if existing, ok := s.findItem(in.ProductID, in.VariantID); ok {
			qty := existing.quantity + in.Quantity
			if qty > MaxItemQuantity {
				return transition{}, maxQuantityExceeded(qty)
			}
			updated, err := existing.withDetails(in).withQuantity(qty, now)
			if err != nil {
				return transition{}, err
			}
			s.items[existing.id] = updated
			s = s.touched(now)
			return transition{next: s, events: []event.Event{s.newEvent(EventItemQuantityUpdated, now,
				event.F("item_id", existing.id.String()),
				event.F("product_id", in.ProductID.String()),
				event.F("variant_id", in.VariantID.String()),
				event.F("old_quantity", existing.quantity),
				event.F("new_quantity", qty),
			)}}, nil
		}

		if len(s.items) >= MaxDistinctItems {
			return transition{}, apperrors.BusinessRule(RuleMaxItemsExceeded,
				fmt.Sprintf("cart must not contain more than %d items", MaxDistinctItems))
		}
		it := newItem(s.id, in, now)
		s.items[it.id] = it
		s = s.touched(now)
		return transition{next: s, events: []event.Event{s.newEvent(EventItemAdded, now,
			event.F("item_id", it.id.String()),
			event.F("product_id", it.productID.String()),
			event.F("variant_id", it.variantID.String()),
			event.F("sku", it.sku),
			event.F("quantity", it.quantity),
			event.F("unit_price", it.unitPrice.Amount()),
			event.F("currency", it.unitPrice.Currency().Code()),
		)}}, nil
	}
}

func decideRemoveItem(id identity.CartItemID) decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		it, ok := s.items[id]
		if !ok {
			return transition{}, apperrors.NotFound("cart_item", id.String())
		}
		delete(s.items, id)
		s = s.touched(now)

		// The removed item's own pending events move to the cart queue.
		events := it.UncommittedEvents()
		events = append(events, s.newEvent(EventItemRemoved, now,
			event.F("item_id", it.id.String()),
			event.F("product_id", it.productID.String()),
			event.F("variant_id", it.variantID.String()),
			event.F("quantity", it.quantity),
		))
		return transition{next: s, events: events}, nil
	}
}

func decideUpdateItemQuantity(id identity.CartItemID, quantity int) decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if quantity == 0 {
			return decideRemoveItem(id)(s, now)
		}
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		if quantity < 0 {
			return transition{}, apperrors.Validation("quantity", quantity, "must not be negative")
		}
		it, ok := s.items[id]
		if !ok {
			return transition{}, apperrors.NotFound("cart_item", id.String())
		}
		if it.quantity == quantity {
			return transition{next: s}, nil
		}
		updated, err := it.withQuantity(quantity, now)
		if err != nil {
			return transition{}, err
		}
		s.items[id] = updated
		s = s.touched(now)
		return transition{next: s, events: []event.Event{s.newEvent(EventItemQuantityUpdated, now,
			event.F("item_id", id.String()),
			event.F("product_id", it.productID.String()),
			event.F("variant_id", it.variantID.String()),
			event.F("old_quantity", it.quantity),
			event.F("new_quantity", quantity),
		)}}, nil
	}
}

func decideApplyDiscount(d Discount) decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		if d.id.IsZero() {
			return transition{}, apperrors.Validation("discount_id", "", "is required")
		}
		if err := requireCurrency(s, d.currency, "discount"); err != nil {
			return transition{}, err
		}
		if _, ok := s.discounts[d.id]; ok {
			return transition{}, apperrors.BusinessRule(RuleDiscountApplied,
				fmt.Sprintf("discount %s is already applied", d.id))
		}
		for _, existing := range s.discounts {
			if strings.EqualFold(existing.code, d.code) {
				return transition{}, apperrors.BusinessRule(RuleDiscountApplied,
					fmt.Sprintf("discount code %s is already applied", d.code))
			}
		}
		sub := money.FromMinorUnits(s.subtotalMinor(), s.currency)
		if !d.Qualifies(sub) {
			minimum, _ := d.MinimumAmount()
			return transition{}, apperrors.BusinessRule(RuleMinimumAmountNotMet,
				fmt.Sprintf("subtotal %s is below the minimum %s", sub.Format(), minimum.Format()))
		}

		s.discounts[d.id] = d
		s = s.touched(now)
		return transition{next: s, events: []event.Event{s.newEvent(EventDiscountApplied, now,
			event.F("discount_id", d.id.String()),
			event.F("code", d.code),
			event.F("type", string(d.dtype)),
			event.F("scope", string(d.scope)),
			event.F("total_discounts", s.discountMinor()),
		)}}, nil
	}
}

func decideRemoveDiscount(id identity.DiscountID) decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		d, ok := s.discounts[id]
		if !ok {
			return transition{}, apperrors.NotFound("discount", id.String())
		}
		delete(s.discounts, id)
		s = s.touched(now)
		return transition{next: s, events: []event.Event{s.newEvent(EventDiscountRemoved, now,
			event.F("discount_id", id.String()),
			event.F("code", d.code),
		)}}, nil
	}
}

func decideUpdateShipping(sh Shipping) decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		if err := sh.Validate(); err != nil {
			return transition{}, err
		}
		if err := requireCurrency(s, sh.Cost.Currency(), "shipping"); err != nil {
			return transition{}, err
		}
		sh.MethodID = strings.TrimSpace(sh.MethodID)
		sh.Name = strings.TrimSpace(sh.Name)
		s.shipping = &sh
		s = s.touched(now)
		return transition{next: s, events: []event.Event{s.newEvent(EventShippingUpdated, now,
			event.F("method_id", sh.MethodID),
			event.F("name", sh.Name),
			event.F("cost", sh.Cost.Amount()),
			event.F("shipping_cost", s.shippingMinor()),
		)}}, nil
	}
}

func decideClearShipping() decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		if s.shipping == nil {
			return transition{next: s}, nil
		}
		prev := s.shipping.MethodID
		s.shipping = nil
		s = s.touched(now)
		return transition{next: s, events: []event.Event{s.newEvent(EventShippingUpdated, now,
			event.F("method_id", ""),
			event.F("previous_method_id", prev),
			event.F("cleared", true),
		)}}, nil
	}
}

func decideUpdateNotes(notes string) decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		notes = strings.TrimSpace(notes)
		if len(notes) > MaxNotesLength {
			return transition{}, apperrors.Validation("notes", len(notes),
				fmt.Sprintf("must not exceed %d characters", MaxNotesLength))
		}
		if notes == s.notes {
			return transition{next: s}, nil
		}
		s.notes = notes
		s = s.touched(now)
		return transition{next: s, events: []event.Event{s.newEvent(EventNotesUpdated, now,
			event.F("notes", notes),
		)}}, nil
	}
}

func decideAssignToUser(userID identity.UserID) decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		if userID.IsZero() {
			return transition{}, apperrors.Validation("user_id", "", "is required")
		}
		if !s.userID.IsZero() {
			return transition{}, apperrors.BusinessRule(RuleCartAlreadyOwned,
				fmt.Sprintf("cart already belongs to user %s", s.userID))
		}
		prevSession := s.sessionID
		s.userID = userID
		s.sessionID = identity.SessionID{}
		s = s.touched(now)
		return transition{next: s, events: []event.Event{s.newEvent(EventAssignedToUser, now,
			event.F("user_id", userID.String()),
			event.F("previous_session_id", prevSession.String()),
			event.F("expires_at", s.expiresAt),
		)}}, nil
	}
}

func decideClear() decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		if len(s.items) == 0 {
			return transition{next: s}, nil
		}
		var events []event.Event
		for _, it := range s.items {
			events = append(events, it.UncommittedEvents()...)
		}
		events = event.Merge(events)
		cleared := s.itemCount()
		distinct := len(s.items)
		s.items = make(map[identity.CartItemID]Item)
		s = s.touched(now)
		events = append(events, s.newEvent(EventCleared, now,
			event.F("item_count", cleared),
			event.F("distinct_items", distinct),
		))
		return transition{next: s, events: events}, nil
	}
}

func decideAbandon() decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if s.status != StatusActive {
			return transition{}, apperrors.BusinessRule(RuleCartNotActive,
				fmt.Sprintf("only active carts can be abandoned, cart is %s", s.status))
		}
		s.status = StatusAbandoned
		s.updatedAt = now
		return transition{next: s, events: []event.Event{s.newEvent(EventAbandoned, now,
			event.F("total", s.totalMinor()),
			event.F("currency", s.currency.Code()),
			event.F("item_count", s.itemCount()),
			event.F("user_id", s.userID.String()),
			event.F("last_activity_at", s.lastActivityAt),
		)}}, nil
	}
}

func decideComplete() decideFunc {
	return func(s state, now time.Time) (transition, error) {
		if err := requireActive(s, now); err != nil {
			return transition{}, err
		}
		if len(s.items) == 0 {
			return transition{}, apperrors.BusinessRule(RuleEmptyCart, "cannot complete an empty cart")
		}
		s.status = StatusCompleted
		s.updatedAt = now
		completed := now
		s.completedAt = &completed
		return transition{next: s, events: []event.Event{s.newEvent(EventCompleted, now,
			event.F("total", s.totalMinor()),
			event.F("currency", s.currency.Code()),
			event.F("item_count", s.itemCount()),
			event.F("user_id", s.userID.String()),
		)}}, nil
	}
}

func decideExpire(s state, now time.Time) (transition, error) {
	switch s.status {
	case StatusCompleted:
		return transition{}, apperrors.BusinessRule(RuleCartCompleted, "completed carts cannot expire")
	case StatusExpired:
		return transition{next: s}, nil
	}
	prev := s.status
	s.status = StatusExpired
	s.updatedAt = now
	return transition{next: s, events: []event.Event{s.newEvent(EventExpired, now,
		event.F("previous_status", string(prev)),
		event.F("expires_at", s.expiresAt),
	)}}, nil
}

func decideTouch(s state, now time.Time) (transition, error) {
	if err := requireActive(s, now); err != nil {
		return transition{}, err
	}
	return transition{next: s.touched(now)}, nil
}

// AddItem puts a product variant into the cart. An existing line for the same
// product and variant has its quantity increased instead.
func (c *Cart) AddItem(in ItemInput) (Item, error) {
	if err := c.apply(decideAddItem(in)); err != nil {
		return Item{}, err
	}
	it, _ := c.FindItem(in.ProductID, in.VariantID)
	return it, nil
}

// RemoveItem deletes a line.
func (c *Cart) RemoveItem(id identity.CartItemID) error {
	return c.apply(decideRemoveItem(id))
}

// UpdateItemQuantity sets a line's quantity; zero removes the line.
func (c *Cart) UpdateItemQuantity(id identity.CartItemID, quantity int) error {
	return c.apply(decideUpdateItemQuantity(id, quantity))
}

// ApplyDiscount adds a discount once the subtotal meets its minimum.
func (c *Cart) ApplyDiscount(d Discount) error {
	return c.apply(decideApplyDiscount(d))
}

// RemoveDiscount removes an applied discount.
func (c *Cart) RemoveDiscount(id identity.DiscountID) error {
	return c.apply(decideRemoveDiscount(id))
}

// UpdateShipping selects a shipping option.
func (c *Cart) UpdateShipping(sh Shipping) error {
	return c.apply(decideUpdateShipping(sh))
}

// ClearShipping drops the shipping selection.
func (c *Cart) ClearShipping() error {
	return c.apply(decideClearShipping())
}

// UpdateNotes replaces the order notes.
func (c *Cart) UpdateNotes(notes string) error {
	return c.apply(decideUpdateNotes(notes))
}

// AssignToUser binds a guest cart to an authenticated user and extends its
// expiry to the user window.
func (c *Cart) AssignToUser(userID identity.UserID) error {
	return c.apply(decideAssignToUser(userID))
}

// Clear removes every line.
func (c *Cart) Clear() error {
	return c.apply(decideClear())
}

// Abandon marks an active cart as abandoned.
func (c *Cart) Abandon() error {
	return c.apply(decideAbandon())
}

// Complete closes a non-empty active cart after checkout.
func (c *Cart) Complete() error {
	return c.apply(decideComplete())
}

// Expire moves the cart to Expired. Expiring an expired cart is a no-op.
func (c *Cart) Expire() error {
	return c.apply(decideExpire)
}

// Touch records activity and slides the expiry window.
func (c *Cart) Touch() error {
	return c.apply(decideTouch)
}
