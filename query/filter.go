package query

import "slices"

// PostFilterSentinel, passed as the last argument to FilterBy, routes the
// promoted clause to the post-filter list.
const PostFilterSentinel = "postFilter"

// Filter runs build against q and moves the single where-clause it adds into
// the non-scoring filter list. If build adds no clause, or more than one,
// the where-list is left as it is.
func (q *QuerySpec) Filter(build func(*QuerySpec)) *QuerySpec {
	return q.promote(&q.filters, build)
}

// PostFilter is like Filter but targets the post-filter list, which is applied
// after aggregations are computed.
func (q *QuerySpec) PostFilter(build func(*QuerySpec)) *QuerySpec {
	return q.promote(&q.postFilters, build)
}

// FilterBy is the registry form of Filter: it invokes the builder registered
// under op with args and promotes the result. A trailing PostFilterSentinel
// argument selects the post-filter list instead.
//
// The sentinel is recognized by value, so a final argument that is literally
// "postFilter" is always taken as the sentinel: FilterBy(OpWherePrefix,
// "slug", "postFilter") fails with an arity error. Use PostFilterBy, or pass
// such values through Filter, when the last argument may be that string.
func (q *QuerySpec) FilterBy(op Op, args ...any) *QuerySpec {
	dst := &q.filters
	if n := len(args); n > 0 {
		if s, ok := args[n-1].(string); ok && s == PostFilterSentinel {
			dst = &q.postFilters
			args = args[:n-1]
		}
	}
	fn, err := Lookup(op)
	if err != nil {
		return q.fail(err)
	}
	return q.promote(dst, func(q *QuerySpec) {
		q.fail(fn(q, args...))
	})
}

// PostFilterBy is FilterBy targeting the post-filter list.
func (q *QuerySpec) PostFilterBy(op Op, args ...any) *QuerySpec {
	return q.FilterBy(op, append(slices.Clip(args), PostFilterSentinel)...)
}

func (q *QuerySpec) promote(dst *[]Clause, build func(*QuerySpec)) *QuerySpec {
	if build == nil {
		return q.fail(invalidArgument("filter: construction routine is required"))
	}
	before := len(q.wheres)
	build(q)
	if len(q.wheres) != before+1 {
		return q
	}
	c := q.wheres[before]
	q.wheres[before] = nil
	q.wheres = q.wheres[:before]
	*dst = append(*dst, c)
	return q
}

// WithOptions attaches options to the most recently added where-clause.
// FunctionScore clauses take them flat into their parameters; every other
// variant keeps them under Options.
func (q *QuerySpec) WithOptions(options Options) *QuerySpec {
	if len(q.wheres) == 0 {
		return q.fail(ErrNoTarget)
	}
	attachOptions(q.wheres[len(q.wheres)-1], options)
	return q
}

// WhereWithOptions invokes the builder registered under op with args and
// decorates the clause it adds. OpBasic names the plain comparison builder.
func (q *QuerySpec) WhereWithOptions(op Op, options Options, args ...any) *QuerySpec {
	fn, err := Lookup(op)
	if err != nil {
		return q.fail(err)
	}
	before := len(q.wheres)
	if err := fn(q, args...); err != nil {
		return q.fail(err)
	}
	if len(q.wheres) != before+1 {
		return q.fail(ErrNoTarget)
	}
	return q.WithOptions(options)
}
