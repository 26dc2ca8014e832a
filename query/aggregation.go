package query

import (
	"maps"
)

// Aggregation is one node of the aggregation forest.
type Aggregation struct {
	Key  string
	Type string
	// Args holds literal type-specific parameters.
	Args map[string]any
	// Query is set instead of Args when the arguments were produced by a
	// construction routine, e.g. for "filter" aggregations.
	Query    *QuerySpec
	Children []*Aggregation
}

// Arguments is either a literal parameter map or a construction routine.
type Arguments struct {
	values map[string]any
	build  func(*QuerySpec)
}

// Args wraps literal aggregation parameters.
func Args(values map[string]any) Arguments {
	return Arguments{values: values}
}

// ArgsFrom builds the aggregation parameters as a query in a fresh scope.
func ArgsFrom(build func(*QuerySpec)) Arguments {
	return Arguments{build: build}
}

// Descriptor is a reusable aggregation definition.
type Descriptor interface {
	Key() string
	Type() string
	Arguments() map[string]any
	// Aggregate adds the descriptor's sub-aggregations to a fresh scope.
	Aggregate(sub *QuerySpec)
}

// Aggregate appends an aggregation. children, when set, contributes the
// aggregations of its resolved spec as sub-aggregations.
func (q *QuerySpec) Aggregate(key, typ string, args Arguments, children SubQuery) *QuerySpec {
	if key == "" || typ == "" {
		return q.fail(invalidArgument("aggregation: key and type are required"))
	}
	node := &Aggregation{Key: key, Type: typ}
	if args.build != nil {
		node.Query = q.resolve(Scope(args.build))
	} else {
		node.Args = maps.Clone(args.values)
	}
	if sub := q.resolve(children); sub != nil {
		node.Children = sub.aggregations
	}
	q.aggregations = append(q.aggregations, node)
	return q
}

// AggregateFrom appends the aggregation described by d.
func (q *QuerySpec) AggregateFrom(d Descriptor) *QuerySpec {
	if d == nil {
		return q.fail(invalidArgument("aggregation: nil descriptor"))
	}
	return q.Aggregate(d.Key(), d.Type(), Args(d.Arguments()), Scope(d.Aggregate))
}

// DuplicateAggregationKeys lists keys used more than once among siblings,
// anywhere in the forest. Duplicates are accepted but most compilers keep
// only the last one.
func DuplicateAggregationKeys(aggs []*Aggregation) []string {
	var dups []string
	var walk func(level []*Aggregation)
	walk = func(level []*Aggregation) {
		seen := make(map[string]int, len(level))
		for _, a := range level {
			seen[a.Key]++
			if seen[a.Key] == 2 {
				dups = append(dups, a.Key)
			}
			walk(a.Children)
		}
	}
	walk(aggs)
	return dups
}
