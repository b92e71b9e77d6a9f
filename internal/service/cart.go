package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/commercecore/internal/domain/cart"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	"github.com/utafrali/commercecore/internal/event"
	"github.com/utafrali/commercecore/internal/repository"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// CartService implements the cart use cases.
type CartService struct {
	repo   repository.CartRepository
	events dispatcher
	logger *slog.Logger
	policy cart.ExpiryPolicy
	clock  func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, publisher event.Publisher, logger *slog.Logger, policy cart.ExpiryPolicy, opts ...Option) *CartService {
	o := buildOptions(opts)
	d := newDispatcher(publisher, logger)
	return &CartService{
		repo:   repo,
		events: d,
		logger: d.logger,
		policy: policy,
		clock:  o.clock,
	}
}

func (s *CartService) now() time.Time { return s.clock().UTC() }

func (s *CartService) cartOptions() []cart.Option {
	return []cart.Option{cart.WithClock(cart.Clock(s.clock))}
}

// CreateGuestCart opens an empty cart bound to an anonymous session.
func (s *CartService) CreateGuestCart(ctx context.Context, sessionID identity.SessionID, currency money.Currency) Result[*cart.Cart] {
	c, err := cart.NewGuestCart(sessionID, currency, s.policy, s.cartOptions()...)
	if err != nil {
		return Fail[*cart.Cart](fmt.Errorf("create guest cart: %w", err))
	}
	res := s.persist(ctx, "create guest cart", c)
	if res.IsOK() {
		s.logger.InfoContext(ctx, "guest cart created",
			slog.String("cart_id", c.ID().String()),
			slog.String("session_id", sessionID.String()),
		)
	}
	return res
}

// CreateUserCart opens an empty cart owned by an authenticated user.
func (s *CartService) CreateUserCart(ctx context.Context, userID identity.UserID, currency money.Currency) Result[*cart.Cart] {
	c, err := cart.NewUserCart(userID, currency, s.policy, s.cartOptions()...)
	if err != nil {
		return Fail[*cart.Cart](fmt.Errorf("create user cart: %w", err))
	}
	res := s.persist(ctx, "create user cart", c)
	if res.IsOK() {
		s.logger.InfoContext(ctx, "user cart created",
			slog.String("cart_id", c.ID().String()),
			slog.String("user_id", userID.String()),
		)
	}
	return res
}

// GetCart loads a cart by id.
func (s *CartService) GetCart(ctx context.Context, id identity.CartID) Result[*cart.Cart] {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[*cart.Cart](fmt.Errorf("get cart: %w", err))
	}
	return Ok(c)
}

// GetActiveCartForUser returns the user's active, unexpired cart.
func (s *CartService) GetActiveCartForUser(ctx context.Context, userID identity.UserID) Result[*cart.Cart] {
	c, found, err := s.repo.FindOne(ctx, cart.OwnedBy(userID).And(cart.ActiveAt(s.now())))
	if err != nil {
		return Fail[*cart.Cart](fmt.Errorf("get active cart for user: %w", err))
	}
	if !found {
		return Fail[*cart.Cart](apperrors.NotFound("cart", "user:"+userID.String()))
	}
	return Ok(c)
}

// GetActiveCartForSession returns the session's active, unexpired guest cart.
func (s *CartService) GetActiveCartForSession(ctx context.Context, sessionID identity.SessionID) Result[*cart.Cart] {
	c, found, err := s.repo.FindOne(ctx, cart.ForSession(sessionID).And(cart.ActiveAt(s.now())))
	if err != nil {
		return Fail[*cart.Cart](fmt.Errorf("get active cart for session: %w", err))
	}
	if !found {
		return Fail[*cart.Cart](apperrors.NotFound("cart", "session:"+sessionID.String()))
	}
	return Ok(c)
}

// AddItem adds a line, or raises the quantity of an existing line for the
// same product and variant.
func (s *CartService) AddItem(ctx context.Context, id identity.CartID, in cart.ItemInput) Result[*cart.Cart] {
	return s.mutate(ctx, id, "add item", func(c *cart.Cart) error {
		_, err := c.AddItem(in)
		return err
	})
}

// RemoveItem deletes a line.
func (s *CartService) RemoveItem(ctx context.Context, id identity.CartID, itemID identity.CartItemID) Result[*cart.Cart] {
	return s.mutate(ctx, id, "remove item", func(c *cart.Cart) error {
		return c.RemoveItem(itemID)
	})
}

// UpdateItemQuantity sets a line's quantity. Zero removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, id identity.CartID, itemID identity.CartItemID, quantity int) Result[*cart.Cart] {
	return s.mutate(ctx, id, "update item quantity", func(c *cart.Cart) error {
		return c.UpdateItemQuantity(itemID, quantity)
	})
}

// ApplyDiscount validates the discount and applies it to the cart.
func (s *CartService) ApplyDiscount(ctx context.Context, id identity.CartID, in cart.DiscountInput) Result[*cart.Cart] {
	d, err := cart.NewDiscount(in)
	if err != nil {
		return Fail[*cart.Cart](fmt.Errorf("apply discount: %w", err))
	}
	return s.mutate(ctx, id, "apply discount", func(c *cart.Cart) error {
		return c.ApplyDiscount(d)
	})
}

// RemoveDiscount removes an applied discount.
func (s *CartService) RemoveDiscount(ctx context.Context, id identity.CartID, discountID identity.DiscountID) Result[*cart.Cart] {
	return s.mutate(ctx, id, "remove discount", func(c *cart.Cart) error {
		return c.RemoveDiscount(discountID)
	})
}

// UpdateShipping sets the shipping selection.
func (s *CartService) UpdateShipping(ctx context.Context, id identity.CartID, sh cart.Shipping) Result[*cart.Cart] {
	return s.mutate(ctx, id, "update shipping", func(c *cart.Cart) error {
		return c.UpdateShipping(sh)
	})
}

// UpdateNotes replaces the customer notes.
func (s *CartService) UpdateNotes(ctx context.Context, id identity.CartID, notes string) Result[*cart.Cart] {
	return s.mutate(ctx, id, "update notes", func(c *cart.Cart) error {
		return c.UpdateNotes(notes)
	})
}

// AssignToUser hands a guest cart to an authenticated user.
func (s *CartService) AssignToUser(ctx context.Context, id identity.CartID, userID identity.UserID) Result[*cart.Cart] {
	return s.mutate(ctx, id, "assign cart", func(c *cart.Cart) error {
		return c.AssignToUser(userID)
	})
}

// ClearCart removes every line.
func (s *CartService) ClearCart(ctx context.Context, id identity.CartID) Result[*cart.Cart] {
	return s.mutate(ctx, id, "clear cart", func(c *cart.Cart) error {
		return c.Clear()
	})
}

// AbandonCart marks an active cart as abandoned.
func (s *CartService) AbandonCart(ctx context.Context, id identity.CartID) Result[*cart.Cart] {
	return s.mutate(ctx, id, "abandon cart", func(c *cart.Cart) error {
		return c.Abandon()
	})
}

// CompleteCart closes the cart after checkout.
func (s *CartService) CompleteCart(ctx context.Context, id identity.CartID) Result[*cart.Cart] {
	res := s.mutate(ctx, id, "complete cart", func(c *cart.Cart) error {
		return c.Complete()
	})
	if res.IsOK() {
		c := res.Value()
		s.logger.InfoContext(ctx, "cart completed",
			slog.String("cart_id", c.ID().String()),
			slog.String("total", c.Total().String()),
		)
	}
	return res
}

// MergeCarts folds a guest cart into the user's active cart on login.
//
// Without an active user cart the guest cart is simply assigned to the user.
// Otherwise every guest line is added to the user cart, with quantities
// summed and capped at cart.MaxItemQuantity, guest discounts are carried over
// where they still apply, and the guest cart is closed: Completed when it had
// lines, Abandoned when it was empty. Both carts are saved together.
func (s *CartService) MergeCarts(ctx context.Context, guestID identity.CartID, userID identity.UserID) Result[*cart.Cart] {
	guest, err := s.repo.FindByID(ctx, guestID)
	if err != nil {
		return Fail[*cart.Cart](fmt.Errorf("merge carts: %w", err))
	}
	if guest.HasOwner() && !guest.UserID().Equal(userID) {
		return Fail[*cart.Cart](apperrors.BusinessRule(cart.RuleCartAlreadyOwned,
			"cart belongs to another user"))
	}

	now := s.now()
	target, found, err := s.repo.FindOne(ctx, cart.OwnedBy(userID).And(cart.ActiveAt(now)))
	if err != nil {
		return Fail[*cart.Cart](fmt.Errorf("merge carts: %w", err))
	}
	if !found || target.ID().Equal(guest.ID()) {
		if guest.HasOwner() {
			return Ok(guest)
		}
		return s.mutateLoaded(ctx, guest, "merge carts", func(c *cart.Cart) error {
			return c.AssignToUser(userID)
		})
	}

	if !guest.IsActive(now) {
		return Fail[*cart.Cart](apperrors.BusinessRule(cart.RuleCartNotActive,
			fmt.Sprintf("guest cart is %s", guest.Status())))
	}
	if guest.Currency() != target.Currency() {
		return Fail[*cart.Cart](apperrors.BusinessRule(money.RuleCurrencyMismatch,
			fmt.Sprintf("guest cart currency %s does not match user cart currency %s",
				guest.Currency().Code(), target.Currency().Code())))
	}

	for _, it := range guest.Items() {
		qty := it.Quantity()
		if existing, ok := target.FindItem(it.ProductID(), it.VariantID()); ok {
			qty = min(qty, cart.MaxItemQuantity-existing.Quantity())
		}
		if qty <= 0 {
			continue
		}
		in := cart.ItemInput{
			ProductID:    it.ProductID(),
			VariantID:    it.VariantID(),
			Title:        it.Title(),
			VariantTitle: it.VariantTitle(),
			SKU:          it.SKU(),
			ImageURL:     it.ImageURL(),
			Quantity:     qty,
			UnitPrice:    it.UnitPrice(),
		}
		if cmp, ok := it.CompareAtPrice(); ok {
			in.CompareAtPrice = &cmp
		}
		if _, err := target.AddItem(in); err != nil {
			return Fail[*cart.Cart](fmt.Errorf("merge carts: %w", err))
		}
	}
	for _, d := range guest.Discounts() {
		if err := target.ApplyDiscount(d); err != nil {
			if !errors.Is(err, apperrors.ErrBusinessRule) {
				return Fail[*cart.Cart](fmt.Errorf("merge carts: %w", err))
			}
			s.logger.WarnContext(ctx, "guest discount not carried over",
				slog.String("cart_id", target.ID().String()),
				slog.String("code", d.Code()),
				slog.String("error", err.Error()),
			)
		}
	}

	closeGuest := guest.Complete
	if guest.IsEmpty() {
		closeGuest = guest.Abandon
	}
	if err := closeGuest(); err != nil {
		return Fail[*cart.Cart](fmt.Errorf("merge carts: %w", err))
	}

	if err := s.repo.SaveMany(ctx, []*cart.Cart{target, guest}); err != nil {
		return Fail[*cart.Cart](fmt.Errorf("merge carts: %w", err))
	}
	s.logger.InfoContext(ctx, "carts merged",
		slog.String("guest_cart_id", guest.ID().String()),
		slog.String("cart_id", target.ID().String()),
		slog.String("user_id", userID.String()),
	)
	return Ok(target).withDispatchErr(s.events.dispatch(ctx, target, guest))
}

// AbandonStaleCarts abandons active carts idle for longer than idleFor and
// returns how many were abandoned. Carts changed concurrently are skipped and
// picked up by a later run.
func (s *CartService) AbandonStaleCarts(ctx context.Context, idleFor time.Duration) Result[int] {
	carts, err := s.repo.Find(ctx, cart.IdleSince(s.now().Add(-idleFor)))
	if err != nil {
		return Fail[int](fmt.Errorf("find stale carts: %w", err))
	}
	n, dispatchErr := s.sweep(ctx, carts, "abandon", (*cart.Cart).Abandon)
	return Ok(n).withDispatchErr(dispatchErr)
}

// ExpireCarts moves every cart past its expiry to Expired.
func (s *CartService) ExpireCarts(ctx context.Context) Result[int] {
	carts, err := s.repo.Find(ctx, cart.PastExpiry(s.now()))
	if err != nil {
		return Fail[int](fmt.Errorf("find expired carts: %w", err))
	}
	n, dispatchErr := s.sweep(ctx, carts, "expire", (*cart.Cart).Expire)
	return Ok(n).withDispatchErr(dispatchErr)
}

// PurgeExpiredCarts deletes carts that have been Expired for longer than
// retention.
func (s *CartService) PurgeExpiredCarts(ctx context.Context, retention time.Duration) Result[int] {
	carts, err := s.repo.Find(ctx, cart.ExpiredBefore(s.now().Add(-retention)))
	if err != nil {
		return Fail[int](fmt.Errorf("find purgeable carts: %w", err))
	}
	if len(carts) == 0 {
		return Ok(0)
	}
	ids := make([]identity.CartID, len(carts))
	for i, c := range carts {
		ids[i] = c.ID()
	}
	n, err := s.repo.DeleteMany(ctx, ids)
	if err != nil {
		return Fail[int](fmt.Errorf("purge carts: %w", err))
	}
	s.logger.InfoContext(ctx, "expired carts purged", slog.Int("count", n))
	return Ok(n)
}

// sweep applies fn to each cart and saves it. Conflicts are skipped, other
// save errors are logged; both leave the cart for the next run.
func (s *CartService) sweep(ctx context.Context, carts []*cart.Cart, action string, fn func(*cart.Cart) error) (int, error) {
	var (
		n    int
		errs []error
	)
	for _, c := range carts {
		if err := ctx.Err(); err != nil {
			return n, errors.Join(append(errs, err)...)
		}
		if err := fn(c); err != nil {
			s.logger.WarnContext(ctx, "cart skipped by maintenance",
				slog.String("action", action),
				slog.String("cart_id", c.ID().String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.repo.Save(ctx, c); err != nil {
			level := slog.LevelError
			if errors.Is(err, apperrors.ErrConflict) {
				level = slog.LevelDebug
			}
			s.logger.Log(ctx, level, "failed to save cart during maintenance",
				slog.String("action", action),
				slog.String("cart_id", c.ID().String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.events.dispatch(ctx, c); err != nil {
			errs = append(errs, err)
		}
		n++
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "cart maintenance completed",
			slog.String("action", action),
			slog.Int("count", n),
		)
	}
	return n, errors.Join(errs...)
}

// mutate loads the cart, runs fn and persists the outcome.
func (s *CartService) mutate(ctx context.Context, id identity.CartID, action string, fn func(*cart.Cart) error) Result[*cart.Cart] {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[*cart.Cart](fmt.Errorf("%s: %w", action, err))
	}
	return s.mutateLoaded(ctx, c, action, fn)
}

func (s *CartService) mutateLoaded(ctx context.Context, c *cart.Cart, action string, fn func(*cart.Cart) error) Result[*cart.Cart] {
	if err := fn(c); err != nil {
		// A command rejected for expiry demotes the cart; keep that.
		if len(c.UncommittedEvents()) > 0 {
			if res := s.persist(ctx, action, c); !res.IsOK() {
				s.logger.WarnContext(ctx, "failed to persist cart expiry",
					slog.String("cart_id", c.ID().String()),
					slog.String("error", res.Err().Error()),
				)
			}
		}
		return Fail[*cart.Cart](fmt.Errorf("%s: %w", action, err))
	}
	return s.persist(ctx, action, c)
}

func (s *CartService) persist(ctx context.Context, action string, c *cart.Cart) Result[*cart.Cart] {
	if err := s.repo.Save(ctx, c); err != nil {
		return Fail[*cart.Cart](fmt.Errorf("%s: %w", action, err))
	}
	return Ok(c).withDispatchErr(s.events.dispatch(ctx, c))
}
