package query

import (
	"maps"
	"math"
	"strings"
)

// Direction is a sort direction: 1 ascending, -1 descending.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// String returns "asc" or "desc".
func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// SortTypeBasic is the sort type used unless options override it.
const SortTypeBasic = "basic"

// Sort is one sort spec.
type Sort struct {
	Column    string
	Direction Direction
	Type      string
	Options   Options
}

func (s Sort) clone() Sort {
	s.Options = maps.Clone(s.Options)
	return s
}

// ParseDirection normalizes a direction. Negative numbers are descending and
// other numbers ascending; strings are ascending only for a case-insensitive
// "asc".
func ParseDirection(v any) (Direction, bool) {
	switch d := v.(type) {
	case Direction:
		return sign(int64(d)), true
	case int:
		return sign(int64(d)), true
	case int8:
		return sign(int64(d)), true
	case int16:
		return sign(int64(d)), true
	case int32:
		return sign(int64(d)), true
	case int64:
		return sign(d), true
	case float32:
		return signFloat(float64(d))
	case float64:
		return signFloat(d)
	case string:
		if strings.EqualFold(strings.TrimSpace(d), "asc") {
			return Ascending, true
		}
		return Descending, true
	}
	return 0, false
}

func signFloat(f float64) (Direction, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	if f < 0 {
		return Descending, true
	}
	return Ascending, true
}

func sign(n int64) Direction {
	if n < 0 {
		return Descending
	}
	return Ascending
}

// OrderBy appends a sort spec. options["type"] replaces the default "basic"
// sort type; the remaining options are kept for the compiler.
func (q *QuerySpec) OrderBy(column string, direction any, options Options) *QuerySpec {
	if column == "" {
		return q.fail(invalidArgument("orderBy: column is required"))
	}
	dir, ok := ParseDirection(direction)
	if !ok {
		return q.fail(invalidArgument("orderBy: unsupported direction %v (%T)", direction, direction))
	}
	s := Sort{
		Column:    column,
		Direction: dir,
		Type:      SortTypeBasic,
		Options:   maps.Clone(options),
	}
	if t, ok := options["type"].(string); ok && t != "" {
		s.Type = t
	}
	q.orders = append(q.orders, s)
	return q
}
