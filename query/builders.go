package query

import (
	"maps"
	"regexp"
	"time"

	"github.com/paulmach/orb"
)

var distancePattern = regexp.MustCompile(`^\d+(\.\d+)?\s*(mi|miles|yd|yards|ft|feet|in|inch|km|kilometers|m|meters|cm|centimeters|mm|millimeters|NM|nmi|nauticalmiles)?$`)

func (q *QuerySpec) push(c Clause) *QuerySpec {
	q.wheres = append(q.wheres, c)
	return q
}

// Where adds a comparison joined with AND.
func (q *QuerySpec) Where(column string, op Operator, value any) *QuerySpec {
	return q.basic(And, false, column, op, value)
}

// OrWhere adds a comparison joined with OR.
func (q *QuerySpec) OrWhere(column string, op Operator, value any) *QuerySpec {
	return q.basic(Or, false, column, op, value)
}

// WhereNot adds a negated comparison joined with AND.
func (q *QuerySpec) WhereNot(column string, op Operator, value any) *QuerySpec {
	return q.basic(And, true, column, op, value)
}

// OrWhereNot adds a negated comparison joined with OR.
func (q *QuerySpec) OrWhereNot(column string, op Operator, value any) *QuerySpec {
	return q.basic(Or, true, column, op, value)
}

// WhereExists matches documents that have a value for column.
func (q *QuerySpec) WhereExists(column string) *QuerySpec {
	return q.basic(And, false, column, OpExists, nil)
}

func (q *QuerySpec) basic(b Boolean, not bool, column string, op Operator, value any) *QuerySpec {
	if column == "" {
		return q.fail(invalidArgument("where: column is required"))
	}
	if !op.Valid() {
		return q.fail(invalidArgument("where: unsupported operator %q", op))
	}
	return q.push(&Basic{
		Common:   Common{Boolean: b, Not: not},
		Column:   column,
		Operator: op,
		Value:    value,
	})
}

// WhereBetween constrains column to the inclusive range [low, high].
func (q *QuerySpec) WhereBetween(column string, low, high any) *QuerySpec {
	return q.between(false, column, low, high)
}

// WhereNotBetween excludes the inclusive range [low, high].
func (q *QuerySpec) WhereNotBetween(column string, low, high any) *QuerySpec {
	return q.between(true, column, low, high)
}

func (q *QuerySpec) between(not bool, column string, low, high any) *QuerySpec {
	if column == "" {
		return q.fail(invalidArgument("whereBetween: column is required"))
	}
	if low == nil || high == nil {
		return q.fail(invalidArgument("whereBetween: %q needs two bounds", column))
	}
	return q.push(&Between{
		Common: Common{Boolean: And, Not: not},
		Column: column,
		Values: [2]any{low, high},
	})
}

// WhereGeoDistance matches geo points within distance of location.
func (q *QuerySpec) WhereGeoDistance(column string, location orb.Geometry, distance string) *QuerySpec {
	if column == "" {
		return q.fail(invalidArgument("whereGeoDistance: column is required"))
	}
	if location == nil || emptyGeometry(location) {
		return q.fail(invalidArgument("whereGeoDistance: %q needs a location", column))
	}
	if !distancePattern.MatchString(distance) {
		return q.fail(invalidArgument("whereGeoDistance: malformed distance %q", distance))
	}
	return q.push(&GeoDistance{
		Common:   Common{Boolean: And},
		Column:   column,
		Location: location,
		Distance: distance,
	})
}

func emptyGeometry(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.MultiPoint:
		return len(g) == 0
	case orb.LineString:
		return len(g) == 0
	case orb.Ring:
		return len(g) == 0
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) == 0
	case orb.MultiLineString:
		for _, ls := range g {
			if len(ls) > 0 {
				return false
			}
		}
		return true
	case orb.MultiPolygon:
		for _, p := range g {
			if !emptyGeometry(p) {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, c := range g {
			if !emptyGeometry(c) {
				return false
			}
		}
		return true
	}
	return false
}

// WhereGeoBoundsIn matches geo points inside bounds. Min is the south-west
// corner; Min.Lon() > Max.Lon() is allowed for boxes crossing the antimeridian.
func (q *QuerySpec) WhereGeoBoundsIn(column string, bounds orb.Bound) *QuerySpec {
	if column == "" {
		return q.fail(invalidArgument("whereGeoBoundsIn: column is required"))
	}
	if bounds.Min.Lat() > bounds.Max.Lat() || bounds.Min.Lat() < -90 || bounds.Max.Lat() > 90 {
		return q.fail(invalidArgument("whereGeoBoundsIn: latitude range %v..%v is invalid", bounds.Min.Lat(), bounds.Max.Lat()))
	}
	return q.push(&GeoBoundsIn{
		Common: Common{Boolean: And, Not: false},
		Column: column,
		Bounds: bounds,
	})
}

// WhereDate compares a date column against a time.Time, a date-math string
// such as "now-1d/d", or epoch milliseconds.
func (q *QuerySpec) WhereDate(column string, op Operator, value any) *QuerySpec {
	if column == "" {
		return q.fail(invalidArgument("whereDate: column is required"))
	}
	if !op.Valid() || op == OpExists {
		return q.fail(invalidArgument("whereDate: unsupported operator %q", op))
	}
	switch value.(type) {
	case time.Time, string, int, int64:
	default:
		return q.fail(invalidArgument("whereDate: %q cannot compare against %T", column, value))
	}
	return q.push(&Date{
		Common:   Common{Boolean: And},
		Column:   column,
		Operator: op,
		Value:    value,
	})
}

// WherePrefix matches string columns starting with value.
func (q *QuerySpec) WherePrefix(column, value string) *QuerySpec {
	if column == "" {
		return q.fail(invalidArgument("wherePrefix: column is required"))
	}
	return q.push(&Prefix{
		Common: Common{Boolean: And},
		Column: column,
		Value:  value,
	})
}

// Search adds a full-text query over the whole document.
func (q *QuerySpec) Search(value string, options Options) *QuerySpec {
	if value == "" {
		return q.fail(invalidArgument("search: empty query text"))
	}
	return q.push(&Search{
		Common: Common{Boolean: And, Options: maps.Clone(options)},
		Value:  value,
	})
}

// WhereType restricts matches to a document type.
func (q *QuerySpec) WhereType(value string) *QuerySpec {
	if value == "" {
		return q.fail(invalidArgument("whereType: empty type"))
	}
	return q.push(&Type{
		Common: Common{Boolean: And, Not: false},
		Value:  value,
	})
}

// FunctionScore adds a scoring function. params are merged flat into the
// clause rather than nested under its options.
func (q *QuerySpec) FunctionScore(functionType string, params map[string]any) *QuerySpec {
	if functionType == "" {
		return q.fail(invalidArgument("functionScore: function type is required"))
	}
	c := &FunctionScore{
		Common:       Common{Boolean: And},
		FunctionType: functionType,
		Params:       make(map[string]any, len(params)),
	}
	maps.Copy(c.Params, params)
	return q.push(c)
}

// WhereNestedDoc queries the nested documents stored under path.
func (q *QuerySpec) WhereNestedDoc(path string, sub SubQuery) *QuerySpec {
	if path == "" {
		return q.fail(invalidArgument("whereNestedDoc: path is required"))
	}
	child := q.resolve(sub)
	if child == nil {
		return q.fail(invalidArgument("whereNestedDoc: %q needs a sub-query", path))
	}
	return q.push(&NestedDoc{
		Common: Common{Boolean: And},
		Path:   path,
		Query:  child,
	})
}

// WhereParent matches children whose parent of documentType satisfies build.
func (q *QuerySpec) WhereParent(documentType string, build func(*QuerySpec), options Options) *QuerySpec {
	return q.relationship(KindParent, documentType, build, options)
}

// WhereChild matches parents having a child of documentType satisfying build.
func (q *QuerySpec) WhereChild(documentType string, build func(*QuerySpec), options Options) *QuerySpec {
	return q.relationship(KindChild, documentType, build, options)
}

func (q *QuerySpec) relationship(kind Kind, documentType string, build func(*QuerySpec), options Options) *QuerySpec {
	if documentType == "" {
		return q.fail(invalidArgument("where%s: document type is required", kind))
	}
	if build == nil {
		return q.fail(invalidArgument("where%s: %q needs a construction routine", kind, documentType))
	}
	return q.push(&Relationship{
		Common:       Common{Boolean: And, Options: maps.Clone(options)},
		Relation:     kind,
		DocumentType: documentType,
		Query:        q.resolve(Scope(build)),
	})
}
