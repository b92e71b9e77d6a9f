package specification

import (
	"cmp"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" or "desc", case-insensitively. Empty means Asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return "", apperrors.Validation("direction", s, "must be asc or desc")
}

// SortClause orders by one field.
type SortClause struct {
	Field     string
	Direction Direction
}

// Comparator orders two values by one field, returning <0, 0 or >0.
type Comparator[T any] func(a, b T) int

// Sorters maps sortable field names to comparators.
type Sorters[T any] map[string]Comparator[T]

// By builds a comparator from a key extractor.
func By[T any, K cmp.Ordered](key func(T) K) Comparator[T] {
	return func(a, b T) int { return cmp.Compare(key(a), key(b)) }
}

// ByTime builds a comparator from a time extractor.
func ByTime[T any](key func(T) time.Time) Comparator[T] {
	return func(a, b T) int { return key(a).Compare(key(b)) }
}

// QueryBuilder accumulates specs, sort clauses and a window.
type QueryBuilder[T any] struct {
	specs  []Spec[T]
	sorts  []SortClause
	limit  int
	offset int
}

// NewQuery starts an empty builder.
func NewQuery[T any]() *QueryBuilder[T] {
	return &QueryBuilder[T]{}
}

// Where adds a spec; multiple specs are combined with AND.
func (b *QueryBuilder[T]) Where(s Spec[T]) *QueryBuilder[T] {
	b.specs = append(b.specs, s)
	return b
}

// OrderBy appends a sort clause. Earlier clauses take precedence.
func (b *QueryBuilder[T]) OrderBy(field string, dir Direction) *QueryBuilder[T] {
	b.sorts = append(b.sorts, SortClause{Field: field, Direction: dir})
	return b
}

// Limit caps the number of results; zero means no limit.
func (b *QueryBuilder[T]) Limit(n int) *QueryBuilder[T] {
	b.limit = n
	return b
}

// Offset skips the first n results.
func (b *QueryBuilder[T]) Offset(n int) *QueryBuilder[T] {
	b.offset = n
	return b
}

// Build validates the builder and returns an immutable Query.
func (b *QueryBuilder[T]) Build() (Query[T], error) {
	var errs apperrors.ValidationErrorCollection
	if len(b.specs) == 0 {
		errs.Add("specifications", 0, "at least one specification is required")
	}
	if b.limit < 0 {
		errs.Add("limit", b.limit, "must not be negative")
	}
	if b.offset < 0 {
		errs.Add("offset", b.offset, "must not be negative")
	}
	for _, s := range b.sorts {
		if strings.TrimSpace(s.Field) == "" {
			errs.Add("order_by", s.Field, "sort field is required")
		}
		if s.Direction != Asc && s.Direction != Desc {
			errs.Add("order_by", string(s.Direction), "direction must be asc or desc")
		}
	}
	if err := errs.Err(); err != nil {
		return Query[T]{}, err
	}

	sorts := make([]SortClause, len(b.sorts))
	copy(sorts, b.sorts)
	return Query[T]{spec: And(b.specs...), sorts: sorts, limit: b.limit, offset: b.offset}, nil
}

// Query is a built, immutable query.
type Query[T any] struct {
	spec   Spec[T]
	sorts  []SortClause
	limit  int
	offset int
}

func (q Query[T]) Spec() Spec[T]  { return q.spec }
func (q Query[T]) Filter() Filter { return q.spec.ToQuery() }
func (q Query[T]) Limit() int     { return q.limit }
func (q Query[T]) Offset() int    { return q.offset }

// Sorts returns the sort clauses in precedence order.
func (q Query[T]) Sorts() []SortClause {
	out := make([]SortClause, len(q.sorts))
	copy(out, q.sorts)
	return out
}

// Apply evaluates the query in memory: filter, stable sort, then window.
func (q Query[T]) Apply(items []T, sorters Sorters[T]) ([]T, error) {
	matched := q.spec.Filter(items)
	if err := SortStable(matched, q.sorts, sorters); err != nil {
		return nil, err
	}
	return Window(matched, q.offset, q.limit), nil
}

// SortStable sorts items in place by clauses, keeping the input order of ties.
func SortStable[T any](items []T, clauses []SortClause, sorters Sorters[T]) error {
	if len(clauses) == 0 {
		return nil
	}
	cmps := make([]Comparator[T], len(clauses))
	for i, c := range clauses {
		fn, ok := sorters[c.Field]
		if !ok {
			return apperrors.Validation("order_by", c.Field, fmt.Sprintf("cannot sort by %q", c.Field))
		}
		if c.Direction == Desc {
			asc := fn
			fn = func(a, b T) int { return -asc(a, b) }
		}
		cmps[i] = fn
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, fn := range cmps {
			if r := fn(items[i], items[j]); r != 0 {
				return r < 0
			}
		}
		return false
	})
	return nil
}

// Window applies offset and limit (zero limit means unbounded).
func Window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
