// Package memory provides in-process repositories. They back development
// deployments and service tests.
package memory

import (
	"context"
	"sync"

	spec "github.com/utafrali/commercecore/internal/specification"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/pagination"
)

// Key is an identifier usable as a store key.
type Key interface {
	comparable
	String() string
}

// Entity is a versioned aggregate with an identifier.
type Entity[ID Key] interface {
	ID() ID
	Version() int
	SetVersion(v int)
}

// CloneFunc returns an independent copy of an aggregate. Stores never hand
// out the instance they hold.
type CloneFunc[T any] func(T) (T, error)

type uniqueIndex[T any] struct {
	field string
	key   func(T) string
}

// Option configures a Store.
type Option[T any] func(*options[T])

type options[T any] struct {
	sorters spec.Sorters[T]
	unique  []uniqueIndex[T]
}

// WithSorters sets the comparators used by FindByQuery.
func WithSorters[T any](sorters spec.Sorters[T]) Option[T] {
	return func(o *options[T]) { o.sorters = sorters }
}

// WithUniqueIndex rejects saves where key collides with another entity.
// Empty keys are not indexed.
func WithUniqueIndex[T any](field string, key func(T) string) Option[T] {
	return func(o *options[T]) { o.unique = append(o.unique, uniqueIndex[T]{field: field, key: key}) }
}

// Store is a generic, concurrency-safe reference repository. Matching
// evaluates specifications in memory, then paginates.
type Store[ID Key, T Entity[ID]] struct {
	mu     sync.RWMutex
	entity string
	items  map[ID]T
	order  []ID
	clone  CloneFunc[T]
	opts   options[T]
}

// NewStore creates an empty store. entity names the aggregate in errors.
func NewStore[ID Key, T Entity[ID]](entity string, clone CloneFunc[T], opts ...Option[T]) *Store[ID, T] {
	s := &Store[ID, T]{
		entity: entity,
		items:  make(map[ID]T),
		clone:  clone,
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

// FindByID returns a copy of the entity with id.
func (s *Store[ID, T]) FindByID(ctx context.Context, id ID) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.items[id]
	if !ok {
		return zero, apperrors.NotFound(s.entity, id.String())
	}
	return s.clone(stored)
}

// FindByIDs returns copies of the entities found, in the order of ids.
// Missing ids are skipped.
func (s *Store[ID, T]) FindByIDs(ctx context.Context, ids []ID) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		stored, ok := s.items[id]
		if !ok {
			continue
		}
		c, err := s.clone(stored)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// FindByKey looks an entity up through a unique index.
func (s *Store[ID, T]) FindByKey(ctx context.Context, field, key string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, idx := range s.opts.unique {
		if idx.field != field {
			continue
		}
		for _, id := range s.order {
			if stored := s.items[id]; idx.key(stored) == key {
				return s.clone(stored)
			}
		}
	}
	return zero, apperrors.NotFound(s.entity, key)
}

// Save stores a copy of entity and advances its version.
func (s *Store[ID, T]) Save(ctx context.Context, entity T) error {
	return s.SaveMany(ctx, []T{entity})
}

// SaveMany stores all entities or none.
func (s *Store[ID, T]) SaveMany(ctx context.Context, entities []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[ID]T, len(entities))
	for _, e := range entities {
		if err := s.check(e, pending); err != nil {
			return err
		}
		stored, err := s.clone(e)
		if err != nil {
			return err
		}
		stored.SetVersion(e.Version() + 1)
		pending[e.ID()] = stored
	}

	for _, e := range entities {
		id := e.ID()
		if _, exists := s.items[id]; !exists {
			s.order = append(s.order, id)
		}
		s.items[id] = pending[id]
		e.SetVersion(e.Version() + 1)
	}
	return nil
}

func (s *Store[ID, T]) check(e T, pending map[ID]T) error {
	id := e.ID()
	if _, dup := pending[id]; dup {
		return apperrors.AlreadyExists(s.entity, "id", id.String())
	}
	actual := 0
	if current, ok := s.items[id]; ok {
		actual = current.Version()
	}
	if actual != e.Version() {
		return apperrors.Concurrency(s.entity, id.String(), e.Version(), actual)
	}

	for _, idx := range s.opts.unique {
		key := idx.key(e)
		if key == "" {
			continue
		}
		for otherID, other := range s.items {
			if otherID != id && idx.key(other) == key {
				if _, replaced := pending[otherID]; !replaced {
					return apperrors.AlreadyExists(s.entity, idx.field, key)
				}
			}
		}
		for otherID, other := range pending {
			if otherID != id && idx.key(other) == key {
				return apperrors.AlreadyExists(s.entity, idx.field, key)
			}
		}
	}
	return nil
}

// Delete removes the entity with id.
func (s *Store[ID, T]) Delete(ctx context.Context, id ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return apperrors.NotFound(s.entity, id.String())
	}
	s.remove(id)
	return nil
}

// DeleteMany removes the entities that exist and reports how many were removed.
func (s *Store[ID, T]) DeleteMany(ctx context.Context, ids []ID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			s.remove(id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store[ID, T]) remove(id ID) {
	delete(s.items, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Exists reports whether id is stored.
func (s *Store[ID, T]) Exists(ctx context.Context, id ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok, nil
}

// Count returns the number of stored entities.
func (s *Store[ID, T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// matching returns stored instances satisfying sp in insertion order. Callers
// hold the read lock and must clone before returning them.
func (s *Store[ID, T]) matching(sp spec.Spec[T]) []T {
	var out []T
	for _, id := range s.order {
		if e := s.items[id]; sp.IsSatisfiedBy(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store[ID, T]) cloneAll(items []T) ([]T, error) {
	out := make([]T, len(items))
	for i, it := range items {
		c, err := s.clone(it)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Find returns copies of every entity satisfying sp.
func (s *Store[ID, T]) Find(ctx context.Context, sp spec.Spec[T]) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneAll(s.matching(sp))
}

// FindOne returns the first entity satisfying sp.
func (s *Store[ID, T]) FindOne(ctx context.Context, sp spec.Spec[T]) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if e := s.items[id]; sp.IsSatisfiedBy(e) {
			c, err := s.clone(e)
			return c, err == nil, err
		}
	}
	return zero, false, nil
}

// FindPaginated returns one page of entities satisfying sp.
func (s *Store[ID, T]) FindPaginated(ctx context.Context, sp spec.Spec[T], params pagination.Params) (pagination.Result[T], error) {
	if _, err := pagination.NewParams(params.Page, params.Limit); err != nil {
		return pagination.Result[T]{}, err
	}
	if err := ctx.Err(); err != nil {
		return pagination.Result[T]{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	page := pagination.Paginate(s.matching(sp), params)
	items, err := s.cloneAll(page.Items)
	if err != nil {
		return pagination.Result[T]{}, err
	}
	page.Items = items
	return page, nil
}

// FindByQuery evaluates q: filter, stable sort, then offset and limit.
func (s *Store[ID, T]) FindByQuery(ctx context.Context, q spec.Query[T]) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]T, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.items[id])
	}
	matched, err := q.Apply(all, s.opts.sorters)
	if err != nil {
		return nil, err
	}
	return s.cloneAll(matched)
}

// CountMatching returns how many entities satisfy sp.
func (s *Store[ID, T]) CountMatching(ctx context.Context, sp spec.Spec[T]) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(sp)), nil
}
