package cart

import "time"

// Default cart lifetimes.
const (
	DefaultGuestTTL = 7 * 24 * time.Hour
	DefaultUserTTL  = 30 * 24 * time.Hour
)

// ExpiryPolicy decides how long a cart lives after its last activity.
type ExpiryPolicy struct {
	GuestTTL time.Duration
	UserTTL  time.Duration
}

// DefaultExpiryPolicy returns the standard guest and user windows.
func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{GuestTTL: DefaultGuestTTL, UserTTL: DefaultUserTTL}
}

// withDefaults fills in any unset window.
func (p ExpiryPolicy) withDefaults() ExpiryPolicy {
	if p.GuestTTL <= 0 {
		p.GuestTTL = DefaultGuestTTL
	}
	if p.UserTTL <= 0 {
		p.UserTTL = DefaultUserTTL
	}
	return p
}

// TTL returns the window for an owned (authenticated) or guest cart.
func (p ExpiryPolicy) TTL(owned bool) time.Duration {
	p = p.withDefaults()
	if owned {
		return p.UserTTL
	}
	return p.GuestTTL
}

// ExpiresAt returns the expiry for a cart last active at from.
func (p ExpiryPolicy) ExpiresAt(owned bool, from time.Time) time.Time {
	return from.Add(p.TTL(owned))
}
