package pagination

import (
	"math"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// Default and maximum page sizes.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds 1-indexed page parameters.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return Params{Page: 1, Limit: DefaultLimit}
}

// NewParams validates page and limit.
func NewParams(page, limit int) (Params, error) {
	var errs apperrors.ValidationErrorCollection
	if page < 1 {
		errs.Add("page", page, "must be at least 1")
	}
	if limit < 1 || limit > MaxLimit {
		errs.Add("limit", limit, "must be between 1 and "+strconv.Itoa(MaxLimit))
	}
	if err := errs.Err(); err != nil {
		return Params{}, err
	}
	return Params{Page: page, Limit: limit}, nil
}

// Offset is the number of items skipped before this page. It saturates at
// math.MaxInt instead of overflowing for very large pages.
func (p Params) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// FromRequest extracts pagination parameters from an HTTP request. Invalid
// values fall back to the defaults. "per_page" is accepted as an alias of "limit".
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if page := q.Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	limit := q.Get("limit")
	if limit == "" {
		limit = q.Get("per_page")
	}
	if limit != "" {
		if v, err := strconv.Atoi(limit); err == nil && v > 0 && v <= MaxLimit {
			p.Limit = v
		}
	}
	return p
}

// Result wraps one page of items with totals.
type Result[T any] struct {
	Items       []T  `json:"items"`
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewResult creates a paginated result for one page out of total matches.
func NewResult[T any](items []T, total int, params Params) Result[T] {
	totalPages := 0
	if params.Limit > 0 {
		totalPages = total / params.Limit
		if total%params.Limit > 0 {
			totalPages++
		}
	}
	if items == nil {
		items = []T{}
	}

	return Result[T]{
		Items:       items,
		Total:       total,
		Page:        params.Page,
		Limit:       params.Limit,
		TotalPages:  totalPages,
		HasNext:     params.Page < totalPages,
		HasPrevious: params.Page > 1,
	}
}

// Paginate slices one page out of all matches. A page beyond the end yields
// no items but accurate totals.
func Paginate[T any](all []T, params Params) Result[T] {
	if params.Limit <= 0 || params.Page-1 > len(all)/params.Limit {
		return NewResult([]T{}, len(all), params)
	}
	start := min(params.Offset(), len(all))
	end := min(start+params.Limit, len(all))
	page := make([]T, end-start)
	copy(page, all[start:end])
	return NewResult(page, len(all), params)
}

// Map converts the items of a result, keeping its totals.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	items := make([]U, len(r.Items))
	for i, it := range r.Items {
		items[i] = fn(it)
	}
	return Result[U]{
		Items:       items,
		Total:       r.Total,
		Page:        r.Page,
		Limit:       r.Limit,
		TotalPages:  r.TotalPages,
		HasNext:     r.HasNext,
		HasPrevious: r.HasPrevious,
	}
}
