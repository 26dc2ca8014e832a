package compiler

import (
	"fmt"
	"maps"

	"github.com/paulmach/orb"

	"github.com/robert-malhotra/go-es-query/query"
)

// aggregations compiles one level of the aggregation forest. A key used twice
// among siblings keeps the later definition.
func (c *Compiler) aggregations(list []*query.Aggregation, innerHits bool) (map[string]any, error) {
	out := make(map[string]any, len(list))
	for _, a := range list {
		if _, dup := out[a.Key]; dup {
			c.logger.Warn("duplicate aggregation key, keeping the last definition", "key", a.Key)
		}

		var params any
		if a.Query != nil {
			q, err := c.subQuery(a.Query, innerHits)
			if err != nil {
				return nil, fmt.Errorf("aggregation %q: %w", a.Key, err)
			}
			params = q
		} else {
			args := maps.Clone(a.Args)
			if args == nil {
				args = map[string]any{}
			}
			params = args
		}

		node := map[string]any{a.Type: params}
		if len(a.Children) > 0 {
			children, err := c.aggregations(a.Children, innerHits)
			if err != nil {
				return nil, err
			}
			node["aggs"] = children
		}
		out[a.Key] = node
	}
	return out, nil
}

func (c *Compiler) sorts(orders []query.Sort) ([]any, error) {
	out := make([]any, 0, len(orders))
	for _, s := range orders {
		var so sortOptions
		opts, err := checked("sort "+s.Column, s.Options, &so, "type", "origin")
		if err != nil {
			return nil, err
		}
		opts["order"] = s.Direction.String()

		switch s.Type {
		case query.SortTypeBasic:
			out = append(out, map[string]any{s.Column: opts})
		case "geo_distance":
			if so.Origin == nil {
				return nil, fmt.Errorf("%w: geo_distance sort on %q needs an origin", ErrInvalidOptions, s.Column)
			}
			origin := so.Origin
			if p, ok := origin.(orb.Point); ok {
				origin = latLon(p)
			}
			opts[s.Column] = origin
			out = append(out, map[string]any{"_geo_distance": opts})
		default:
			out = append(out, map[string]any{"_" + s.Type: opts})
		}
	}
	return out, nil
}
