package compiler

import (
	"fmt"
	"maps"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/robert-malhotra/go-es-query/query"
)

// rangeOps maps comparison operators to range query keys.
var rangeOps = map[query.Operator]string{
	query.OpLt:  "lt",
	query.OpGt:  "gt",
	query.OpLte: "lte",
	query.OpGte: "gte",
}

// clause compiles one clause. negated reports that the node belongs under
// must_not.
func (c *Compiler) clause(cl query.Clause, innerHits bool) (node map[string]any, negated bool, err error) {
	meta := cl.Meta()
	negated = meta.Not

	switch v := cl.(type) {
	case *query.Basic:
		if v.Operator == query.OpNeq {
			negated = !negated
		}
		node, err = c.basic(v)
	case *query.Between:
		node, err = c.between(v)
	case *query.GeoDistance:
		node, err = c.geoDistance(v)
	case *query.GeoBoundsIn:
		node, err = c.geoBounds(v)
	case *query.Date:
		if v.Operator == query.OpNeq {
			negated = !negated
		}
		node, err = c.date(v)
	case *query.Prefix:
		var opts map[string]any
		if opts, err = checked("prefix", v.Options, &leafOptions{}); err == nil {
			opts["value"] = v.Value
			node = map[string]any{"prefix": map[string]any{v.Column: opts}}
		}
	case *query.Search:
		var opts map[string]any
		if opts, err = checked("search", v.Options, &searchOptions{}); err == nil {
			opts["query"] = v.Value
			node = map[string]any{"multi_match": opts}
		}
	case *query.Type:
		if _, err = checked("type", v.Options, &leafOptions{}); err == nil {
			node = c.typeTerm(v.Value, v.Options)
		}
	case *query.FunctionScore:
		node, err = c.functionScore(v)
	case *query.NestedDoc:
		node, err = c.join("nested", map[string]any{"path": v.Path}, v.Query, v.Options, innerHits)
	case *query.Relationship:
		if v.Relation == query.KindParent {
			node, err = c.join("has_parent", map[string]any{"parent_type": v.DocumentType}, v.Query, v.Options, innerHits)
		} else {
			node, err = c.join("has_child", map[string]any{"type": v.DocumentType}, v.Query, v.Options, innerHits)
		}
	case *query.Nested:
		node, err = c.nested(v, innerHits)
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupportedClause, cl)
	}
	if err != nil {
		return nil, false, err
	}
	return node, negated, nil
}

func (c *Compiler) basic(v *query.Basic) (map[string]any, error) {
	opts, err := checked("where "+v.Column, v.Options, &leafOptions{})
	if err != nil {
		return nil, err
	}
	switch v.Operator {
	case query.OpExists:
		opts["field"] = v.Column
		return map[string]any{"exists": opts}, nil
	case query.OpEq, query.OpNeq:
		opts["value"] = v.Value
		return map[string]any{"term": map[string]any{v.Column: opts}}, nil
	}
	opts[rangeOps[v.Operator]] = v.Value
	return map[string]any{"range": map[string]any{v.Column: opts}}, nil
}

func (c *Compiler) between(v *query.Between) (map[string]any, error) {
	opts, err := checked("between "+v.Column, v.Options, &leafOptions{})
	if err != nil {
		return nil, err
	}
	opts["gte"] = v.Values[0]
	opts["lte"] = v.Values[1]
	return map[string]any{"range": map[string]any{v.Column: opts}}, nil
}

func (c *Compiler) date(v *query.Date) (map[string]any, error) {
	opts, err := checked("date "+v.Column, v.Options, &dateOptions{})
	if err != nil {
		return nil, err
	}
	value := v.Value
	if t, ok := value.(time.Time); ok {
		value = t.UTC().Format(time.RFC3339)
	}
	switch v.Operator {
	case query.OpEq, query.OpNeq:
		opts["gte"] = value
		opts["lte"] = value
	default:
		opts[rangeOps[v.Operator]] = value
	}
	return map[string]any{"range": map[string]any{v.Column: opts}}, nil
}

func (c *Compiler) geoDistance(v *query.GeoDistance) (map[string]any, error) {
	opts, err := checked("geo distance "+v.Column, v.Options, &leafOptions{})
	if err != nil {
		return nil, err
	}
	p, ok := v.Location.(orb.Point)
	if !ok {
		p, _ = planar.CentroidArea(v.Location)
	}
	opts["distance"] = v.Distance
	opts[v.Column] = latLon(p)
	return map[string]any{"geo_distance": opts}, nil
}

func (c *Compiler) geoBounds(v *query.GeoBoundsIn) (map[string]any, error) {
	opts, err := checked("geo bounds "+v.Column, v.Options, &leafOptions{})
	if err != nil {
		return nil, err
	}
	opts[v.Column] = map[string]any{
		"top_left":     latLon(orb.Point{v.Bounds.Min.Lon(), v.Bounds.Max.Lat()}),
		"bottom_right": latLon(orb.Point{v.Bounds.Max.Lon(), v.Bounds.Min.Lat()}),
	}
	return map[string]any{"geo_bounding_box": opts}, nil
}

func latLon(p orb.Point) map[string]any {
	return map[string]any{"lat": p.Lat(), "lon": p.Lon()}
}

func (c *Compiler) typeTerm(value string, options map[string]any) map[string]any {
	field := maps.Clone(options)
	if field == nil {
		field = make(map[string]any, 1)
	}
	field["value"] = value
	return map[string]any{"term": map[string]any{c.typeField: field}}
}

// scoreQueryKeys sit on the function_score query itself rather than inside
// the score function. weight goes on the function entry.
var scoreQueryKeys = []string{"boost_mode", "score_mode", "max_boost", "min_score", "boost"}

func (c *Compiler) functionScore(v *query.FunctionScore) (map[string]any, error) {
	var top functionScoreOptions
	params, err := decodeOptions("function score "+v.FunctionType, v.Params, &top)
	if err != nil {
		return nil, err
	}

	fn := map[string]any{v.FunctionType: params}
	if top.Weight != nil {
		fn["weight"] = *top.Weight
	}
	body := map[string]any{
		"query":     matchAll(),
		"functions": []any{fn},
	}
	for _, k := range scoreQueryKeys {
		if val, ok := v.Params[k]; ok {
			body[k] = val
		}
	}
	return map[string]any{"function_score": body}, nil
}

// join compiles nested, has_parent and has_child. Inner hits are requested
// when the embedded spec or any enclosing spec asked for them.
func (c *Compiler) join(kind string, head map[string]any, sub *query.QuerySpec, options map[string]any, innerHits bool) (map[string]any, error) {
	var jo joinOptions
	opts, err := checked(kind, options, &jo, "inner_hits")
	if err != nil {
		return nil, err
	}
	maps.Copy(opts, head)

	innerHits = innerHits || (sub != nil && sub.IncludeInnerHits())
	inner, err := c.subQuery(sub, innerHits)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	opts["query"] = inner
	if innerHits || jo.InnerHits != nil {
		hits := jo.InnerHits
		if hits == nil {
			hits = map[string]any{}
		}
		opts["inner_hits"] = hits
	}
	return map[string]any{kind: opts}, nil
}

// subQuery compiles an embedded spec's wheres and filters. The embedded
// spec's own type restriction applies inside the join.
func (c *Compiler) subQuery(sub *query.QuerySpec, innerHits bool) (map[string]any, error) {
	if sub == nil {
		return matchAll(), nil
	}
	if err := sub.Err(); err != nil {
		return nil, err
	}
	f := sub.Fields()
	return c.root(f.Wheres, f.Filters, f.DocumentType, innerHits)
}

// nested compiles the one list of the embedded spec that the clause wraps.
func (c *Compiler) nested(v *query.Nested, innerHits bool) (map[string]any, error) {
	if v.Query == nil {
		return nil, fmt.Errorf("%w: nested clause without a query", ErrUnsupportedClause)
	}
	innerHits = innerHits || v.Query.IncludeInnerHits()
	var (
		b   map[string]any
		err error
	)
	switch v.Source {
	case query.SourceFilters:
		b, err = c.boolBody(nil, v.Query.Filters(), nil, innerHits)
	default:
		b, err = c.boolBody(v.Query.Wheres(), nil, nil, innerHits)
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return matchAll(), nil
	}
	if len(v.Options) > 0 {
		if _, err := checked("nested", v.Options, &leafOptions{}); err != nil {
			return nil, err
		}
		maps.Copy(b, v.Options)
	}
	return map[string]any{"bool": b}, nil
}
