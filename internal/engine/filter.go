package engine

import (
	"fmt"
	"strings"
	"time"
)

// Op represents a filter operation on a document attribute.
type Op int

const (
	// OpRegex matches a string attribute against a case-insensitive
	// regular expression.
	OpRegex Op = iota
	// OpIn matches when the attribute's value (or any element of an array
	// attribute) equals one of the given values.
	OpIn
	// OpRange matches a date attribute inside an inclusive interval.
	OpRange
	// OpEqual matches the attribute's value exactly.
	OpEqual
)

// Condition is a single attribute constraint.
type Condition struct {
	Attr  string
	Op    Op
	Value interface{}
	// Many marks the attribute as array-valued, which changes how OpIn is
	// compiled.
	Many bool
}

// Filter is a conjunction of conditions, optionally widened by a disjunction:
// a document matches when every condition in All holds and, if Any is
// non-empty, at least one condition in Any holds.
type Filter struct {
	All []Condition
	Any []Condition
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

// Where appends a condition to the conjunction.
func (f *Filter) Where(cond Condition) *Filter {
	f.All = append(f.All, cond)
	return f
}

// Or appends a condition to the disjunction group.
func (f *Filter) Or(cond Condition) *Filter {
	f.Any = append(f.Any, cond)
	return f
}

// ToSQL compiles the filter into a WHERE expression over the doc column,
// appending parameter values to args. An empty filter compiles to "".
func (f *Filter) ToSQL(paramCounter *int, args *[]interface{}) (string, error) {
	if f == nil || (len(f.All) == 0 && len(f.Any) == 0) {
		return "", nil
	}

	parts := make([]string, 0, len(f.All)+1)
	for i := range f.All {
		expr, err := conditionToSQL(&f.All[i], paramCounter, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}

	if len(f.Any) > 0 {
		anyParts := make([]string, 0, len(f.Any))
		for i := range f.Any {
			expr, err := conditionToSQL(&f.Any[i], paramCounter, args)
			if err != nil {
				return "", err
			}
			anyParts = append(anyParts, expr)
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(anyParts, " OR ")))
	}

	return strings.Join(parts, " AND "), nil
}

// conditionToSQL compiles one condition with parameterized values.
func conditionToSQL(cond *Condition, paramCounter *int, args *[]interface{}) (string, error) {
	attr, err := quoteAttr(cond.Attr)
	if err != nil {
		return "", err
	}

	switch cond.Op {
	case OpRegex:
		pattern, ok := cond.Value.(string)
		if !ok {
			return "", fmt.Errorf("regex condition on %s requires a string pattern", cond.Attr)
		}
		*args = append(*args, pattern)
		expr := fmt.Sprintf("doc->>%s ~* $%d", attr, *paramCounter)
		*paramCounter++
		return expr, nil

	case OpIn:
		values, ok := cond.Value.([]string)
		if !ok {
			return "", fmt.Errorf("in condition on %s requires []string values", cond.Attr)
		}
		if len(values) == 0 {
			// Matching against an empty set can never hold.
			return "FALSE", nil
		}
		*args = append(*args, values)
		var expr string
		if cond.Many {
			expr = fmt.Sprintf(
				"EXISTS (SELECT 1 FROM jsonb_array_elements_text(doc->%s) AS elem(v) WHERE elem.v = ANY($%d))",
				attr, *paramCounter)
		} else {
			expr = fmt.Sprintf("doc->>%s = ANY($%d)", attr, *paramCounter)
		}
		*paramCounter++
		return expr, nil

	case OpRange:
		bounds, ok := cond.Value.([2]time.Time)
		if !ok {
			return "", fmt.Errorf("range condition on %s requires [2]time.Time bounds", cond.Attr)
		}
		*args = append(*args, bounds[0], bounds[1])
		expr := fmt.Sprintf("(doc->>%s)::timestamptz BETWEEN $%d AND $%d",
			attr, *paramCounter, *paramCounter+1)
		*paramCounter += 2
		return expr, nil

	case OpEqual:
		switch v := cond.Value.(type) {
		case bool:
			// Documents written before the attribute existed have no key at
			// all; absent counts as false.
			*args = append(*args, v)
			expr := fmt.Sprintf("COALESCE((doc->>%s)::boolean, FALSE) = $%d", attr, *paramCounter)
			*paramCounter++
			return expr, nil
		default:
			*args = append(*args, fmt.Sprintf("%v", cond.Value))
			expr := fmt.Sprintf("doc->>%s = $%d", attr, *paramCounter)
			*paramCounter++
			return expr, nil
		}

	default:
		return "", fmt.Errorf("unsupported filter op: %d", cond.Op)
	}
}

// Order is one sort key.
type Order struct {
	Attr      string
	Direction string
}

// Sort is an ordered list of sort keys.
type Sort []Order

// ToSQL compiles the sort into an ORDER BY expression list, or "" when the
// sort is empty.
func (s Sort) ToSQL() (string, error) {
	if len(s) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(s))
	for _, o := range s {
		attr, err := quoteAttr(o.Attr)
		if err != nil {
			return "", err
		}
		dir := strings.ToUpper(o.Direction)
		if dir != "ASC" && dir != "DESC" {
			dir = "ASC"
		}
		parts = append(parts, fmt.Sprintf("doc->>%s %s", attr, dir))
	}

	return strings.Join(parts, ", "), nil
}

// quoteAttr validates an attribute name and returns it as a SQL string
// literal. Attribute names come from derived slugs plus the camelCase
// housekeeping attributes, so letters, digits and hyphens cover them all.
func quoteAttr(attr string) (string, error) {
	if attr == "" {
		return "", fmt.Errorf("%w: empty attribute", ErrInvalidIdentifier)
	}
	for _, r := range attr {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, attr)
		}
	}
	return "'" + attr + "'", nil
}
