package postgres

import (
	"errors"
	"fmt"
	"strings"

	spec "github.com/utafrali/commercecore/internal/specification"
)

// errUntranslatable reports a filter the whitelist cannot express in SQL.
// Callers fall back to evaluating the specification in memory.
var errUntranslatable = errors.New("filter has no SQL translation")

type columnKind int

const (
	colText columnKind = iota
	colFoldedText
	colNumber
	colTime
	colArray
)

type column struct {
	expr string
	kind columnKind
}

// columns maps filter fields to SQL. Anything not listed is untranslatable.
type columns map[string]column

// whereBuilder renders a spec.Filter as a parameterised WHERE clause.
type whereBuilder struct {
	cols columns
	args []any
}

func translate(cols columns, f spec.Filter) (string, []any, error) {
	b := &whereBuilder{cols: cols}
	clause, err := b.build(f)
	if err != nil {
		return "", nil, err
	}
	return clause, b.args, nil
}

func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) build(f spec.Filter) (string, error) {
	switch f.Op {
	case spec.OpTrue:
		return "TRUE", nil
	case spec.OpOpaque, "":
		return "", fmt.Errorf("%w: opaque predicate %q", errUntranslatable, f.Field)
	case spec.OpAnd, spec.OpOr:
		parts := make([]string, 0, len(f.Children))
		for _, child := range f.Children {
			p, err := b.build(child)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			return "", fmt.Errorf("%w: empty %s", errUntranslatable, f.Op)
		}
		sep := " AND "
		if f.Op == spec.OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	case spec.OpNot:
		if len(f.Children) != 1 {
			return "", fmt.Errorf("%w: not needs one child", errUntranslatable)
		}
		p, err := b.build(f.Children[0])
		if err != nil {
			return "", err
		}
		return "NOT " + p, nil
	}

	col, ok := b.cols[f.Field]
	if !ok {
		return "", fmt.Errorf("%w: field %q", errUntranslatable, f.Field)
	}

	switch f.Op {
	case spec.OpEq, spec.OpNe:
		op := "="
		if f.Op == spec.OpNe {
			op = "<>"
		}
		switch col.kind {
		case colArray:
			if f.Op == spec.OpNe {
				return fmt.Sprintf("NOT (%s = ANY(%s))", b.arg(f.Value), col.expr), nil
			}
			return fmt.Sprintf("%s = ANY(%s)", b.arg(f.Value), col.expr), nil
		case colFoldedText:
			return fmt.Sprintf("lower(%s) %s lower(%s)", col.expr, op, b.arg(f.Value)), nil
		}
		return fmt.Sprintf("%s %s %s", col.expr, op, b.arg(f.Value)), nil

	case spec.OpGt, spec.OpGte, spec.OpLt, spec.OpLte:
		if col.kind == colArray {
			return "", fmt.Errorf("%w: ordering on %q", errUntranslatable, f.Field)
		}
		ops := map[spec.Op]string{spec.OpGt: ">", spec.OpGte: ">=", spec.OpLt: "<", spec.OpLte: "<="}
		return fmt.Sprintf("%s %s %s", col.expr, ops[f.Op], b.arg(f.Value)), nil

	case spec.OpIn:
		values, ok := f.Value.([]any)
		if !ok || len(values) == 0 {
			return "FALSE", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = b.arg(v)
		}
		if col.kind == colArray {
			return fmt.Sprintf("%s && ARRAY[%s]", col.expr, strings.Join(placeholders, ", ")), nil
		}
		return fmt.Sprintf("%s IN (%s)", col.expr, strings.Join(placeholders, ", ")), nil

	case spec.OpContains:
		if col.kind == colArray {
			return fmt.Sprintf("%s = ANY(%s)", b.arg(f.Value), col.expr), nil
		}
		if col.kind != colText && col.kind != colFoldedText {
			return "", fmt.Errorf("%w: contains on %q", errUntranslatable, f.Field)
		}
		return fmt.Sprintf("%s ILIKE %s", col.expr, b.arg("%"+escapeLike(fmt.Sprint(f.Value))+"%")), nil
	}

	return "", fmt.Errorf("%w: operator %q", errUntranslatable, f.Op)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// orderBy renders sort clauses using the sortable columns. ok is false when a
// field has no column.
func orderBy(sortable map[string]string, clauses []spec.SortClause) (string, bool) {
	parts := make([]string, 0, len(clauses)+2)
	for _, c := range clauses {
		expr, found := sortable[c.Field]
		if !found {
			return "", false
		}
		dir := "ASC"
		if c.Direction == spec.Desc {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
	}
	parts = append(parts, "created_at ASC", "id ASC")
	return strings.Join(parts, ", "), true
}
