package compiler

import (
	"github.com/robert-malhotra/go-es-query/query"
)

// boolBody compiles scoring and non-scoring clause lists into the body of a
// bool query. extra entries are prepended to the filter context.
//
// Clauses are joined left to right: each clause whose boolean is "or" starts a
// new group, and several groups become should branches. So a AND b OR c turns
// into should[bool{a, b}, bool{c}].
func (c *Compiler) boolBody(wheres, filters []query.Clause, extra []any, innerHits bool) (map[string]any, error) {
	b := make(map[string]any)

	switch groups := splitOr(wheres); len(groups) {
	case 0:
	case 1:
		if err := c.occurrences(b, groups[0], "must", innerHits); err != nil {
			return nil, err
		}
	default:
		should, err := c.branches(groups, "must", innerHits)
		if err != nil {
			return nil, err
		}
		b["should"] = should
		b["minimum_should_match"] = 1
	}

	filter := extra
	switch groups := splitOr(filters); len(groups) {
	case 0:
	case 1:
		if err := c.occurrences(b, groups[0], "filter", innerHits); err != nil {
			return nil, err
		}
		if f, ok := b["filter"].([]any); ok {
			filter = append(filter, f...)
		}
	default:
		should, err := c.branches(groups, "filter", innerHits)
		if err != nil {
			return nil, err
		}
		filter = append(filter, map[string]any{"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		}})
	}
	delete(b, "filter")
	if len(filter) > 0 {
		b["filter"] = filter
	}
	return b, nil
}

// filterQuery compiles clauses as a standalone non-scoring bool query.
func (c *Compiler) filterQuery(clauses []query.Clause, innerHits bool) (map[string]any, error) {
	b, err := c.boolBody(nil, clauses, nil, innerHits)
	if err != nil {
		return nil, err
	}
	return map[string]any{"bool": b}, nil
}

func (c *Compiler) branches(groups [][]query.Clause, occur string, innerHits bool) ([]any, error) {
	out := make([]any, 0, len(groups))
	for _, g := range groups {
		b := make(map[string]any)
		if err := c.occurrences(b, g, occur, innerHits); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{"bool": b})
	}
	return out, nil
}

// occurrences compiles each clause and appends it under occur, or under
// must_not when the clause is negated.
func (c *Compiler) occurrences(b map[string]any, clauses []query.Clause, occur string, innerHits bool) error {
	for _, cl := range clauses {
		node, negated, err := c.clause(cl, innerHits)
		if err != nil {
			return err
		}
		key := occur
		if negated {
			key = "must_not"
		}
		list, _ := b[key].([]any)
		b[key] = append(list, node)
	}
	return nil
}

func splitOr(clauses []query.Clause) [][]query.Clause {
	var groups [][]query.Clause
	for i, cl := range clauses {
		if i == 0 || cl.Meta().Boolean == query.Or {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], cl)
	}
	return groups
}
