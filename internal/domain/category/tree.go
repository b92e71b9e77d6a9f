package category

import (
	"sort"

	"github.com/utafrali/commercecore/internal/domain/identity"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// Tree indexes a flat set of categories as a forest. It does not own the
// categories; rebuild it after mutating them.
//
// A category whose parent is not in the set is treated as a root.
type Tree struct {
	nodes    map[identity.ProductCategoryID]*Category
	children map[identity.ProductCategoryID][]*Category
	roots    []*Category
}

// NewTree builds the index. Siblings are ordered by position, then name.
func NewTree(categories []*Category) *Tree {
	t := &Tree{
		nodes:    make(map[identity.ProductCategoryID]*Category, len(categories)),
		children: make(map[identity.ProductCategoryID][]*Category),
	}
	for _, c := range categories {
		t.nodes[c.id] = c
	}
	for _, c := range categories {
		if _, ok := t.nodes[c.parentID]; ok && !c.parentID.IsZero() {
			t.children[c.parentID] = append(t.children[c.parentID], c)
			continue
		}
		t.roots = append(t.roots, c)
	}
	sortSiblings(t.roots)
	for id := range t.children {
		sortSiblings(t.children[id])
	}
	return t
}

func sortSiblings(cs []*Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].position != cs[j].position {
			return cs[i].position < cs[j].position
		}
		return cs[i].name < cs[j].name
	})
}

// Len returns the number of indexed categories.
func (t *Tree) Len() int { return len(t.nodes) }

// Get returns the category with id.
func (t *Tree) Get(id identity.ProductCategoryID) (*Category, bool) {
	c, ok := t.nodes[id]
	return c, ok
}

// Roots returns the top-level categories.
func (t *Tree) Roots() []*Category { return append([]*Category(nil), t.roots...) }

// Children returns the direct children of id.
func (t *Tree) Children(id identity.ProductCategoryID) []*Category {
	return append([]*Category(nil), t.children[id]...)
}

// Parent returns the indexed parent of id.
func (t *Tree) Parent(id identity.ProductCategoryID) (*Category, bool) {
	c, ok := t.nodes[id]
	if !ok || c.parentID.IsZero() {
		return nil, false
	}
	p, ok := t.nodes[c.parentID]
	return p, ok
}

// Ancestors returns the chain from the parent of id up to its root. The walk
// stops if the chain cycles.
func (t *Tree) Ancestors(id identity.ProductCategoryID) []*Category {
	var out []*Category
	seen := map[identity.ProductCategoryID]bool{id: true}
	for p, ok := t.Parent(id); ok; p, ok = t.Parent(p.id) {
		if seen[p.id] {
			break
		}
		seen[p.id] = true
		out = append(out, p)
	}
	return out
}

// Descendants returns every category below id in depth-first order.
func (t *Tree) Descendants(id identity.ProductCategoryID) []*Category {
	var out []*Category
	seen := map[identity.ProductCategoryID]bool{id: true}
	var visit func(identity.ProductCategoryID)
	visit = func(parent identity.ProductCategoryID) {
		for _, c := range t.children[parent] {
			if seen[c.id] {
				continue
			}
			seen[c.id] = true
			out = append(out, c)
			visit(c.id)
		}
	}
	visit(id)
	return out
}

// Depth is the number of ancestors of id; roots have depth 0.
func (t *Tree) Depth(id identity.ProductCategoryID) int { return len(t.Ancestors(id)) }

// Path returns the categories from the root down to and including id.
func (t *Tree) Path(id identity.ProductCategoryID) []*Category {
	c, ok := t.nodes[id]
	if !ok {
		return nil
	}
	ancestors := t.Ancestors(id)
	path := make([]*Category, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		path = append(path, ancestors[i])
	}
	return append(path, c)
}

// IsDescendant reports whether id sits somewhere below ancestor.
func (t *Tree) IsDescendant(id, ancestor identity.ProductCategoryID) bool {
	for _, a := range t.Ancestors(id) {
		if a.id == ancestor {
			return true
		}
	}
	return false
}

// CheckMove reports whether id may be placed under newParent.
func (t *Tree) CheckMove(id, newParent identity.ProductCategoryID) error {
	if newParent.IsZero() {
		return nil
	}
	if id == newParent {
		return apperrors.BusinessRule(RuleSelfParent, "a category cannot be its own parent")
	}
	if _, ok := t.nodes[newParent]; !ok {
		return apperrors.NotFound("product_category", newParent.String())
	}
	if t.IsDescendant(newParent, id) {
		return apperrors.BusinessRule(RuleCircularParent, "a category cannot be moved under its own descendant")
	}
	return nil
}

// ValidateHierarchy returns the ids of categories whose parent chain revisits
// a category before reaching a root, sorted.
func (t *Tree) ValidateHierarchy() []identity.ProductCategoryID {
	var cyclic []identity.ProductCategoryID
	for id, c := range t.nodes {
		seen := map[identity.ProductCategoryID]bool{id: true}
		for parent := c.parentID; !parent.IsZero(); {
			if seen[parent] {
				cyclic = append(cyclic, id)
				break
			}
			seen[parent] = true
			p, ok := t.nodes[parent]
			if !ok {
				break
			}
			parent = p.parentID
		}
	}
	sort.Slice(cyclic, func(i, j int) bool { return cyclic[i].String() < cyclic[j].String() })
	return cyclic
}

// Walk visits the forest depth-first in sibling order. Returning false from fn
// skips that category's subtree.
func (t *Tree) Walk(fn func(c *Category, depth int) bool) {
	var visit func(cs []*Category, depth int)
	visit = func(cs []*Category, depth int) {
		for _, c := range cs {
			if fn(c, depth) {
				visit(t.children[c.id], depth+1)
			}
		}
	}
	visit(t.roots, 0)
}
