// Package cart implements the shopping cart aggregate.
package cart

import (
	"sort"
	"time"

	"github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
)

// Status is the lifecycle state of a cart.
type Status string

const (
	StatusActive    Status = "active"
	StatusAbandoned Status = "abandoned"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusAbandoned, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

// Limits on cart contents.
const (
	MaxDistinctItems = 100
	MaxNotesLength   = 1000
)

// Clock supplies the current time.
type Clock func() time.Time

// Option configures a Cart at construction or restore time.
type Option func(*Cart)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(c *Cart) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// state is everything a transition may change.
type state struct {
	id             identity.CartID
	userID         identity.UserID
	sessionID      identity.SessionID
	currency       money.Currency
	status         Status
	items          map[identity.CartItemID]Item
	discounts      map[identity.DiscountID]Discount
	shipping       *Shipping
	notes          string
	createdAt      time.Time
	updatedAt      time.Time
	lastActivityAt time.Time
	expiresAt      time.Time
	completedAt    *time.Time
	policy         ExpiryPolicy
}

func (s state) clone() state {
	next := s
	next.items = make(map[identity.CartItemID]Item, len(s.items))
	for id, it := range s.items {
		next.items[id] = it.clone()
	}
	next.discounts = make(map[identity.DiscountID]Discount, len(s.discounts))
	for id, d := range s.discounts {
		next.discounts[id] = d
	}
	if s.shipping != nil {
		sh := *s.shipping
		next.shipping = &sh
	}
	return next
}

// Cart is the shopping cart aggregate root.
type Cart struct {
	state
	event.Recorder

	version int
	clock   Clock
}

// NewGuestCart creates an anonymous cart bound to a session.
func NewGuestCart(sessionID identity.SessionID, currency money.Currency, policy ExpiryPolicy, opts ...Option) (*Cart, error) {
	return newCart(identity.UserID{}, sessionID, currency, policy, opts)
}

// NewUserCart creates a cart owned by an authenticated user.
func NewUserCart(userID identity.UserID, currency money.Currency, policy ExpiryPolicy, opts ...Option) (*Cart, error) {
	return newCart(userID, identity.SessionID{}, currency, policy, opts)
}

func newCart(userID identity.UserID, sessionID identity.SessionID, currency money.Currency, policy ExpiryPolicy, opts []Option) (*Cart, error) {
	c := &Cart{clock: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	t, err := decideCreate(identity.Generate[identity.CartKind](), userID, sessionID, currency, policy.withDefaults(), c.now())
	if err != nil {
		return nil, err
	}
	c.commit(t)
	return c, nil
}

func (c *Cart) now() time.Time { return c.clock().UTC() }

func (c *Cart) ID() identity.CartID           { return c.id }
func (c *Cart) UserID() identity.UserID       { return c.userID }
func (c *Cart) SessionID() identity.SessionID { return c.sessionID }
func (c *Cart) Currency() money.Currency      { return c.currency }
func (c *Cart) Status() Status                { return c.status }
func (c *Cart) Notes() string                 { return c.notes }
func (c *Cart) CreatedAt() time.Time          { return c.createdAt }
func (c *Cart) UpdatedAt() time.Time          { return c.updatedAt }
func (c *Cart) LastActivityAt() time.Time     { return c.lastActivityAt }
func (c *Cart) ExpiresAt() time.Time          { return c.expiresAt }
func (c *Cart) Policy() ExpiryPolicy          { return c.policy }

// HasOwner reports whether the cart belongs to an authenticated user.
func (c *Cart) HasOwner() bool { return !c.userID.IsZero() }

// CompletedAt returns when the cart was completed, if it was.
func (c *Cart) CompletedAt() (time.Time, bool) {
	if c.completedAt == nil {
		return time.Time{}, false
	}
	return *c.completedAt, true
}

// Version is the optimistic-locking version last persisted.
func (c *Cart) Version() int { return c.version }

// SetVersion is called by repositories after a successful save.
func (c *Cart) SetVersion(v int) { c.version = v }

// Items returns the cart lines ordered by when they were added.
func (c *Cart) Items() []Item {
	items := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].addedAt.Equal(items[j].addedAt) {
			return items[i].id.String() < items[j].id.String()
		}
		return items[i].addedAt.Before(items[j].addedAt)
	})
	return items
}

// Item returns the line with the given id.
func (c *Cart) Item(id identity.CartItemID) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// FindItem returns the line for a product variant.
func (c *Cart) FindItem(productID identity.ProductID, variantID identity.ProductVariantID) (Item, bool) {
	return c.state.findItem(productID, variantID)
}

func (s state) findItem(productID identity.ProductID, variantID identity.ProductVariantID) (Item, bool) {
	for _, it := range s.items {
		if it.Matches(productID, variantID) {
			return it, true
		}
	}
	return Item{}, false
}

// Discounts returns applied discounts ordered by code.
func (c *Cart) Discounts() []Discount {
	out := make([]Discount, 0, len(c.discounts))
	for _, d := range c.discounts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}

// Discount returns the applied discount with id.
func (c *Cart) Discount(id identity.DiscountID) (Discount, bool) {
	d, ok := c.discounts[id]
	return d, ok
}

// Shipping returns the selected shipping option.
func (c *Cart) Shipping() (Shipping, bool) {
	if c.shipping == nil {
		return Shipping{}, false
	}
	return *c.shipping, true
}

// UncommittedEvents returns the cart's queued events merged with those queued
// on its items, in emission order.
func (c *Cart) UncommittedEvents() []event.Event {
	queues := [][]event.Event{c.Recorder.UncommittedEvents()}
	for _, it := range c.items {
		queues = append(queues, it.UncommittedEvents())
	}
	return event.Merge(queues...)
}

// MarkEventsAsCommitted clears the cart's and its items' queues.
func (c *Cart) MarkEventsAsCommitted() {
	c.Recorder.MarkEventsAsCommitted()
	for id, it := range c.items {
		it.MarkEventsAsCommitted()
		c.items[id] = it
	}
}

// Subtotal is the sum of line totals.
func (c *Cart) Subtotal() money.Money {
	return money.FromMinorUnits(c.subtotalMinor(), c.currency)
}

func (s state) subtotalMinor() int64 {
	var total int64
	for _, it := range s.items {
		total += it.unitPrice.Amount() * int64(it.quantity)
	}
	return total
}

// TotalDiscounts sums order and item scoped discounts against the subtotal,
// never exceeding it.
func (c *Cart) TotalDiscounts() money.Money {
	return money.FromMinorUnits(c.discountMinor(), c.currency)
}

func (s state) discountMinor() int64 {
	sub := s.subtotalMinor()
	var off int64
	for _, d := range s.discounts {
		if d.scope == ScopeShipping {
			continue
		}
		off += d.reduction(sub, sub)
	}
	if off > sub {
		off = sub
	}
	return off
}

// ShippingCost is the selected shipping cost less shipping discounts, floored at zero.
func (c *Cart) ShippingCost() money.Money {
	return money.FromMinorUnits(c.shippingMinor(), c.currency)
}

func (s state) shippingMinor() int64 {
	if s.shipping == nil {
		return 0
	}
	cost := s.shipping.Cost.Amount()
	sub := s.subtotalMinor()
	for _, d := range s.discounts {
		if d.scope != ScopeShipping {
			continue
		}
		cost -= d.reduction(s.shipping.Cost.Amount(), sub)
	}
	if cost < 0 {
		cost = 0
	}
	return cost
}

// Total is subtotal - total discounts + shipping cost.
func (c *Cart) Total() money.Money {
	return money.FromMinorUnits(c.totalMinor(), c.currency)
}

func (s state) totalMinor() int64 {
	return s.subtotalMinor() - s.discountMinor() + s.shippingMinor()
}

// SavingsFromCompareAt sums the compare-at savings of every line.
func (c *Cart) SavingsFromCompareAt() money.Money {
	var total int64
	for _, it := range c.items {
		total += it.DiscountAmount().Amount()
	}
	return money.FromMinorUnits(total, c.currency)
}

// ItemCount is the total quantity across lines.
func (c *Cart) ItemCount() int { return c.state.itemCount() }

func (s state) itemCount() int {
	n := 0
	for _, it := range s.items {
		n += it.quantity
	}
	return n
}

// DistinctItemCount is the number of lines.
func (c *Cart) DistinctItemCount() int { return len(c.items) }

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

// IsActive reports status Active with an expiry still in the future.
func (c *Cart) IsActive(now time.Time) bool {
	return c.status == StatusActive && now.Before(c.expiresAt)
}

// IsExpired reports whether the cart is Expired or past its expiry.
func (c *Cart) IsExpired(now time.Time) bool {
	return c.status == StatusExpired || !now.Before(c.expiresAt)
}

// CanCheckout reports whether the cart is active and has lines.
func (c *Cart) CanCheckout(now time.Time) bool {
	return c.IsActive(now) && !c.IsEmpty()
}

func (c *Cart) commit(t transition) {
	c.state = t.next
	c.Recorder.Record(t.events...)
}
