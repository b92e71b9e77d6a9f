package cart

import (
	"strings"

	"github.com/utafrali/commercecore/internal/domain/money"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// Shipping is the delivery option selected for a cart.
type Shipping struct {
	MethodID      string      `json:"method_id"`
	Name          string      `json:"name"`
	Carrier       string      `json:"carrier,omitempty"`
	Cost          money.Money `json:"cost"`
	EstimatedDays int         `json:"estimated_days,omitempty"`
}

// Validate checks the selection's own fields.
func (s Shipping) Validate() error {
	var errs apperrors.ValidationErrorCollection
	if strings.TrimSpace(s.MethodID) == "" {
		errs.Add("method_id", s.MethodID, "is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		errs.Add("name", s.Name, "is required")
	}
	if s.Cost.Currency().IsZero() {
		errs.Add("cost", s.Cost.Amount(), "currency is required")
	}
	if s.Cost.IsNegative() {
		errs.Add("cost", s.Cost.Amount(), "must not be negative")
	}
	if s.EstimatedDays < 0 {
		errs.Add("estimated_days", s.EstimatedDays, "must not be negative")
	}
	return errs.Err()
}
