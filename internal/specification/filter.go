package specification

import (
	"fmt"
	"strings"
)

// Op is a filter operator.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpIn       Op = "in"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains"
	OpAnd      Op = "and"
	OpOr       Op = "or"
	OpNot      Op = "not"
	OpTrue     Op = "true"
	// OpOpaque marks a predicate with no backend translation.
	OpOpaque Op = "opaque"
)

// Filter is a backend-neutral query tree. Comparison nodes carry Field and
// Value; logical nodes carry Children.
type Filter struct {
	Op       Op
	Field    string
	Value    any
	Children []Filter
}

func Eq(field string, value any) Filter  { return Filter{Op: OpEq, Field: field, Value: value} }
func Ne(field string, value any) Filter  { return Filter{Op: OpNe, Field: field, Value: value} }
func Gt(field string, value any) Filter  { return Filter{Op: OpGt, Field: field, Value: value} }
func Gte(field string, value any) Filter { return Filter{Op: OpGte, Field: field, Value: value} }
func Lt(field string, value any) Filter  { return Filter{Op: OpLt, Field: field, Value: value} }
func Lte(field string, value any) Filter { return Filter{Op: OpLte, Field: field, Value: value} }

// In matches when the field equals any of values.
func In(field string, values ...any) Filter {
	return Filter{Op: OpIn, Field: field, Value: values}
}

// Contains matches when the field (string or collection) contains value.
func Contains(field string, value any) Filter {
	return Filter{Op: OpContains, Field: field, Value: value}
}

// True matches everything.
func True() Filter { return Filter{Op: OpTrue} }

// Opaque marks a named predicate that only runs in memory.
func Opaque(name string) Filter { return Filter{Op: OpOpaque, Field: name} }

// AndFilter conjoins filters, dropping match-all children.
func AndFilter(filters ...Filter) Filter {
	return logical(OpAnd, filters)
}

// OrFilter disjoins filters.
func OrFilter(filters ...Filter) Filter {
	return logical(OpOr, filters)
}

// NotFilter negates f.
func NotFilter(f Filter) Filter {
	return Filter{Op: OpNot, Children: []Filter{f}}
}

func logical(op Op, filters []Filter) Filter {
	children := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.Op == OpTrue {
			if op == OpOr {
				return True()
			}
			continue
		}
		if f.Op == op {
			children = append(children, f.Children...)
			continue
		}
		children = append(children, f)
	}
	switch len(children) {
	case 0:
		if op == OpOr {
			// An empty disjunction matches nothing.
			return NotFilter(True())
		}
		return True()
	case 1:
		return children[0]
	}
	return Filter{Op: op, Children: children}
}

// IsTrue reports whether the filter matches everything.
func (f Filter) IsTrue() bool { return f.Op == OpTrue }

// Translatable reports whether no part of the tree is opaque.
func (f Filter) Translatable() bool {
	if f.Op == OpOpaque || f.Op == "" {
		return false
	}
	for _, c := range f.Children {
		if !c.Translatable() {
			return false
		}
	}
	return true
}

// Fields returns every field referenced by comparison nodes, in tree order.
func (f Filter) Fields() []string {
	var out []string
	var walk func(Filter)
	walk = func(n Filter) {
		switch n.Op {
		case OpAnd, OpOr, OpNot:
			for _, c := range n.Children {
				walk(c)
			}
		case OpTrue, OpOpaque, "":
		default:
			out = append(out, n.Field)
		}
	}
	walk(f)
	return out
}

func (f Filter) String() string {
	switch f.Op {
	case OpTrue:
		return "TRUE"
	case OpOpaque, "":
		return fmt.Sprintf("<%s>", f.Field)
	case OpNot:
		return "NOT (" + f.Children[0].String() + ")"
	case OpAnd, OpOr:
		parts := make([]string, len(f.Children))
		for i, c := range f.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(string(f.Op))+" ") + ")"
	default:
		return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
	}
}
