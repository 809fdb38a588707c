package query

import (
	"strings"
	"time"

	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/field"
	"github.com/trellisdata/trellis/internal/schema"
)

// Request carries the raw filter/sort parameters of one read, keyed by field
// slug (plus the reserved search, trash, and order-* parameters).
type Request map[string]string

// Reserved request parameter names.
const (
	ParamSearch   = "search"
	ParamTrash    = "trash"
	orderPrefix   = "order-"
	dateLayout    = "2006-01-02"
	listSeparator = ","
)

// BuildFilter translates a request into a storage filter. For each field
// whose slug appears in the request, a clause is chosen by the field's type;
// a free-text search term widens the filter with a regex clause over every
// text field. Trash filtering is always explicit: only the exact string
// "true" selects trashed rows.
func BuildFilter(req Request, fields []field.Field) *engine.Filter {
	filter := engine.NewFilter()

	for i := range fields {
		f := &fields[i]
		raw, ok := req[f.Slug]
		if !ok || raw == "" {
			continue
		}

		switch f.Type {
		case field.TypeShortText, field.TypeLongText:
			filter.Where(engine.Condition{
				Attr:  f.Slug,
				Op:    engine.OpRegex,
				Value: Normalize(raw),
			})

		case field.TypeRelationship, field.TypeDropdown, field.TypeCategory:
			filter.Where(engine.Condition{
				Attr:  f.Slug,
				Op:    engine.OpIn,
				Value: strings.Split(raw, listSeparator),
				Many:  true,
			})

		case field.TypeDate:
			if cond, ok := dateCondition(f.Slug, raw); ok {
				filter.Where(cond)
			}
		}
	}

	if term := req[ParamSearch]; term != "" {
		pattern := Normalize(term)
		for i := range fields {
			f := &fields[i]
			if f.Type == field.TypeShortText || f.Type == field.TypeLongText {
				filter.Or(engine.Condition{Attr: f.Slug, Op: engine.OpRegex, Value: pattern})
			}
		}
	}

	filter.Where(engine.Condition{
		Attr:  schema.AttrTrashed,
		Op:    engine.OpEqual,
		Value: req[ParamTrash] == "true",
	})

	return filter
}

// dateCondition builds an inclusive range clause from a date parameter: a
// single value covers that whole UTC calendar day, a comma-separated pair
// covers start-of-day(first) through end-of-day(second). Unparseable values
// contribute no clause.
func dateCondition(slug, raw string) (engine.Condition, bool) {
	first, second := raw, raw
	if i := strings.Index(raw, listSeparator); i >= 0 {
		first, second = raw[:i], raw[i+1:]
	}

	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(first), time.UTC)
	if err != nil {
		return engine.Condition{}, false
	}
	endDay, err := time.ParseInLocation(dateLayout, strings.TrimSpace(second), time.UTC)
	if err != nil {
		return engine.Condition{}, false
	}

	end := endDay.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	return engine.Condition{
		Attr:  slug,
		Op:    engine.OpRange,
		Value: [2]time.Time{start, end},
	}, true
}

// BuildSort translates order-<slug> request parameters into a storage sort,
// preserving field list order. A request without order parameters yields an
// empty, unsorted result.
func BuildSort(req Request, fields []field.Field) engine.Sort {
	var sort engine.Sort

	for i := range fields {
		f := &fields[i]
		if direction, ok := req[orderPrefix+f.Slug]; ok && direction != "" {
			sort = append(sort, engine.Order{Attr: f.Slug, Direction: direction})
		}
	}

	return sort
}
