package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/money"
	"github.com/utafrali/commercecore/internal/service"
	"github.com/utafrali/commercecore/pkg/httputil"
	"github.com/utafrali/commercecore/pkg/logger"
	"github.com/utafrali/commercecore/pkg/validator"
)

// respond writes a service result. Failures go through ew; successes are
// rendered and wrapped in the data envelope. A dispatch failure does not
// change the response since the state change was already saved.
func respond[T, V any](w http.ResponseWriter, r *http.Request, ew httputil.ErrorWriter, status int, res service.Result[T], render func(T) V) {
	if err := res.Err(); err != nil {
		ew.Write(w, r, err)
		return
	}
	if err := res.DispatchErr(); err != nil {
		logger.FromContext(r.Context()).WarnContext(r.Context(), "domain events not fully dispatched",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	httputil.WriteData(w, status, render(res.Value()))
}

// pathID parses the chi URL parameter name as a typed identifier, writing a
// 400 when it is malformed.
func pathID[K identity.Kind](w http.ResponseWriter, r *http.Request, name string) (identity.ID[K], bool) {
	return httputil.ParseParam(w, name, chi.URLParam(r, name), identity.New[K])
}

// decode reads and validates a JSON body, writing the error response itself.
func decode(w http.ResponseWriter, r *http.Request, ew httputil.ErrorWriter, dst any) bool {
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		ew.Write(w, r, err)
		return false
	}
	return true
}

// MoneyRequest is an amount in minor units with its ISO 4217 currency.
type MoneyRequest struct {
	Amount   int64  `json:"amount" validate:"gte=0"`
	Currency string `json:"currency" validate:"required,currency"`
}

func (m MoneyRequest) toMoney() (money.Money, error) {
	c, err := money.ParseCurrency(m.Currency)
	if err != nil {
		return money.Money{}, err
	}
	return money.FromMinorUnits(m.Amount, c), nil
}

// optionalMoney converts m when present.
func optionalMoney(m *MoneyRequest) (*money.Money, error) {
	if m == nil {
		return nil, nil
	}
	v, err := m.toMoney()
	if err != nil {
		return nil, err
	}
	return &v, nil
}
