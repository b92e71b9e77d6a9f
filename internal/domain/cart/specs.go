package cart

import (
	"time"

	"github.com/utafrali/commercecore/internal/domain/identity"
	spec "github.com/utafrali/commercecore/internal/specification"
)

// Filter fields understood by cart repositories.
const (
	FieldStatus         = "status"
	FieldUserID         = "user_id"
	FieldSessionID      = "session_id"
	FieldCurrency       = "currency"
	FieldExpiresAt      = "expires_at"
	FieldLastActivityAt = "last_activity_at"
	FieldUpdatedAt      = "updated_at"
	FieldCreatedAt      = "created_at"
)

// HasStatus matches carts in status.
func HasStatus(status Status) spec.Spec[*Cart] {
	return spec.Leaf("cart_status_"+string(status),
		func(c *Cart) bool { return c.status == status },
		spec.Eq(FieldStatus, string(status)))
}

// OwnedBy matches carts belonging to userID.
func OwnedBy(userID identity.UserID) spec.Spec[*Cart] {
	return spec.Leaf("cart_owned_by",
		func(c *Cart) bool { return c.userID.Equal(userID) },
		spec.Eq(FieldUserID, userID.String()))
}

// ForSession matches guest carts bound to sessionID.
func ForSession(sessionID identity.SessionID) spec.Spec[*Cart] {
	return spec.Leaf("cart_for_session",
		func(c *Cart) bool { return c.sessionID.Equal(sessionID) },
		spec.Eq(FieldSessionID, sessionID.String()))
}

// ActiveAt matches carts that are Active and not yet past their expiry at now.
func ActiveAt(now time.Time) spec.Spec[*Cart] {
	return HasStatus(StatusActive).And(spec.Leaf("cart_not_expired",
		func(c *Cart) bool { return now.Before(c.expiresAt) },
		spec.Gt(FieldExpiresAt, now)))
}

// PastExpiry matches carts not yet Expired or Completed whose expiry is at or before now.
func PastExpiry(now time.Time) spec.Spec[*Cart] {
	return spec.And(
		spec.Or(HasStatus(StatusActive), HasStatus(StatusAbandoned)),
		spec.Leaf("cart_past_expiry",
			func(c *Cart) bool { return !now.Before(c.expiresAt) },
			spec.Lte(FieldExpiresAt, now)),
	)
}

// IdleSince matches Active carts with no activity after cutoff.
func IdleSince(cutoff time.Time) spec.Spec[*Cart] {
	return HasStatus(StatusActive).And(spec.Leaf("cart_idle_since",
		func(c *Cart) bool { return c.lastActivityAt.Before(cutoff) },
		spec.Lt(FieldLastActivityAt, cutoff)))
}

// ExpiredBefore matches Expired carts last updated before cutoff.
func ExpiredBefore(cutoff time.Time) spec.Spec[*Cart] {
	return HasStatus(StatusExpired).And(spec.Leaf("cart_expired_before",
		func(c *Cart) bool { return c.updatedAt.Before(cutoff) },
		spec.Lt(FieldUpdatedAt, cutoff)))
}

// NonEmpty matches carts with at least one line. It has no backend translation.
func NonEmpty() spec.Spec[*Cart] {
	return spec.Leaf("cart_non_empty", func(c *Cart) bool { return len(c.items) > 0 }, spec.Filter{})
}

// Sorters are the sortable cart fields.
func Sorters() spec.Sorters[*Cart] {
	return spec.Sorters[*Cart]{
		FieldCreatedAt:      spec.ByTime(func(c *Cart) time.Time { return c.createdAt }),
		FieldUpdatedAt:      spec.ByTime(func(c *Cart) time.Time { return c.updatedAt }),
		FieldLastActivityAt: spec.ByTime(func(c *Cart) time.Time { return c.lastActivityAt }),
		FieldExpiresAt:      spec.ByTime(func(c *Cart) time.Time { return c.expiresAt }),
		"total":             spec.By(func(c *Cart) int64 { return c.totalMinor() }),
	}
}
