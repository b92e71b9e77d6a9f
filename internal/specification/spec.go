// Package specification provides composable predicates over domain objects.
//
// A Spec is a small tree of leaves and logical combinators. Every node can be
// evaluated in memory with IsSatisfiedBy and translated with ToQuery into a
// Filter that storage backends push down when they can.
package specification

import "strings"

// Kind tags the node type of a Spec.
type Kind int

const (
	KindAll Kind = iota
	KindLeaf
	KindAnd
	KindOr
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	default:
		return "all"
	}
}

// Spec is a predicate over T. The zero value matches everything.
type Spec[T any] struct {
	kind     Kind
	name     string
	pred     func(T) bool
	filter   Filter
	children []Spec[T]
}

// Leaf builds a named predicate. filter is its backend translation; pass the
// zero Filter when the predicate cannot be translated.
func Leaf[T any](name string, pred func(T) bool, filter Filter) Spec[T] {
	if pred == nil {
		panic("specification: nil predicate for " + name)
	}
	if filter.Op == "" {
		filter = Opaque(name)
	}
	return Spec[T]{kind: KindLeaf, name: name, pred: pred, filter: filter}
}

// All matches every value.
func All[T any]() Spec[T] {
	return Spec[T]{kind: KindAll, name: "all"}
}

// And matches when every spec matches. And of nothing matches everything.
func And[T any](specs ...Spec[T]) Spec[T] {
	return combine(KindAnd, specs)
}

// Or matches when any spec matches. Or of nothing matches nothing.
func Or[T any](specs ...Spec[T]) Spec[T] {
	return combine(KindOr, specs)
}

// Not inverts s.
func Not[T any](s Spec[T]) Spec[T] {
	return Spec[T]{kind: KindNot, name: "not(" + s.Name() + ")", children: []Spec[T]{s}}
}

func combine[T any](kind Kind, specs []Spec[T]) Spec[T] {
	if kind == KindAnd && len(specs) == 1 {
		return specs[0]
	}
	if kind == KindOr && len(specs) == 1 {
		return specs[0]
	}
	children := make([]Spec[T], len(specs))
	copy(children, specs)
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name()
	}
	return Spec[T]{kind: kind, name: kind.String() + "(" + strings.Join(names, ",") + ")", children: children}
}

// And returns s AND others.
func (s Spec[T]) And(others ...Spec[T]) Spec[T] {
	return And(append([]Spec[T]{s}, others...)...)
}

// Or returns s OR others.
func (s Spec[T]) Or(others ...Spec[T]) Spec[T] {
	return Or(append([]Spec[T]{s}, others...)...)
}

// Not returns NOT s.
func (s Spec[T]) Not() Spec[T] { return Not(s) }

// Kind returns the node type.
func (s Spec[T]) Kind() Kind { return s.kind }

// Name returns a readable name for the node.
func (s Spec[T]) Name() string {
	if s.name == "" {
		return "all"
	}
	return s.name
}

// Children returns the operands of a logical node.
func (s Spec[T]) Children() []Spec[T] {
	out := make([]Spec[T], len(s.children))
	copy(out, s.children)
	return out
}

// IsSatisfiedBy evaluates s against v in memory. And and Or short-circuit.
func (s Spec[T]) IsSatisfiedBy(v T) bool {
	switch s.kind {
	case KindLeaf:
		return s.pred(v)
	case KindAnd:
		for _, c := range s.children {
			if !c.IsSatisfiedBy(v) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range s.children {
			if c.IsSatisfiedBy(v) {
				return true
			}
		}
		return false
	case KindNot:
		return !s.children[0].IsSatisfiedBy(v)
	default:
		return true
	}
}

// ToQuery translates s into a Filter.
func (s Spec[T]) ToQuery() Filter {
	switch s.kind {
	case KindLeaf:
		return s.filter
	case KindAnd, KindOr:
		filters := make([]Filter, len(s.children))
		for i, c := range s.children {
			filters[i] = c.ToQuery()
		}
		if s.kind == KindAnd {
			return AndFilter(filters...)
		}
		return OrFilter(filters...)
	case KindNot:
		return NotFilter(s.children[0].ToQuery())
	default:
		return True()
	}
}

// Filter returns the values in items that satisfy s, preserving order.
func (s Spec[T]) Filter(items []T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if s.IsSatisfiedBy(it) {
			out = append(out, it)
		}
	}
	return out
}
