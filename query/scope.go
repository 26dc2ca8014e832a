package query

// SubQuery is either a construction routine or a prebuilt QuerySpec. The zero
// value stands for "no sub-query".
type SubQuery struct {
	build func(*QuerySpec)
	spec  *QuerySpec
}

// Scope wraps a construction routine. It runs against a fresh, empty
// QuerySpec every time the sub-query is resolved.
func Scope(build func(*QuerySpec)) SubQuery {
	return SubQuery{build: build}
}

// Prebuilt wraps an existing QuerySpec to be embedded as-is.
func Prebuilt(spec *QuerySpec) SubQuery {
	return SubQuery{spec: spec}
}

// IsZero reports whether s holds neither a routine nor a spec.
func (s SubQuery) IsZero() bool {
	return s.build == nil && s.spec == nil
}

// resolve turns s into a QuerySpec. A construction error inside the scope is
// carried over to the parent.
func (q *QuerySpec) resolve(s SubQuery) *QuerySpec {
	var child *QuerySpec
	switch {
	case s.build != nil:
		child = New()
		s.build(child)
	case s.spec == q:
		q.fail(invalidArgument("sub-query: a spec cannot embed itself"))
		return nil
	case s.spec != nil:
		child = s.spec
	default:
		return nil
	}
	if child.err != nil {
		q.fail(child.err)
	}
	return child
}

// AddNestedWhereQuery merges a separately built spec. Its wheres are wrapped
// into one parent where-clause and its filters into one parent filter; an
// empty list contributes nothing.
func (q *QuerySpec) AddNestedWhereQuery(child *QuerySpec, boolean Boolean) *QuerySpec {
	if child == nil {
		return q
	}
	if child == q {
		return q.fail(invalidArgument("addNestedWhereQuery: a spec cannot embed itself"))
	}
	if boolean != And && boolean != Or {
		return q.fail(invalidArgument("addNestedWhereQuery: unsupported boolean %q", boolean))
	}
	if child.err != nil {
		q.fail(child.err)
	}
	if len(child.wheres) > 0 {
		q.wheres = append(q.wheres, &Nested{
			Common: Common{Boolean: boolean},
			Query:  child,
			Source: SourceWheres,
		})
	}
	if len(child.filters) > 0 {
		q.filters = append(q.filters, &Nested{
			Common: Common{Boolean: boolean},
			Query:  child,
			Source: SourceFilters,
		})
	}
	return q
}

// WhereNested groups the clauses added by build into a single nested clause.
func (q *QuerySpec) WhereNested(build func(*QuerySpec), boolean Boolean) *QuerySpec {
	if build == nil {
		return q.fail(invalidArgument("whereNested: construction routine is required"))
	}
	return q.AddNestedWhereQuery(q.resolve(Scope(build)), boolean)
}
