// Package query builds the intermediate representation of a document search.
//
// A QuerySpec is mutated in place by chained builder calls and handed once to a
// compiler. Nested constructs (relationship, nested-document and generic
// nested clauses, sub-aggregations) are built against a fresh QuerySpec and
// embedded whole; they never inherit the parent's accumulated state.
//
//	q := query.New().
//	    Where("status", query.OpEq, "published").
//	    WhereParent("event", func(p *query.QuerySpec) {
//	        p.WhereDate("starts_at", query.OpGte, "now")
//	    }, nil).
//	    Filter(func(q *query.QuerySpec) { q.WherePrefix("slug", "summer-") }).
//	    OrderBy("starts_at", "desc", nil)
//
// A QuerySpec is not safe for concurrent mutation.
package query

import (
	"slices"
)

// QuerySpec accumulates clauses, aggregations and sort specs for one query.
type QuerySpec struct {
	documentType     string
	routingParentID  string
	wheres           []Clause
	filters          []Clause
	postFilters      []Clause
	aggregations     []*Aggregation
	orders           []Sort
	columns          []string
	limit            int
	offset           int
	includeInnerHits bool
	err              error
}

// New returns an empty QuerySpec.
func New() *QuerySpec {
	return &QuerySpec{}
}

// Type scopes the query to a document type.
func (q *QuerySpec) Type(name string) *QuerySpec {
	q.documentType = name
	return q
}

// ParentID sets the parent id used to route the query to a shard.
func (q *QuerySpec) ParentID(id string) *QuerySpec {
	q.routingParentID = id
	return q
}

// WithInnerHits asks relationship and nested clauses to return matched
// sub-documents.
func (q *QuerySpec) WithInnerHits() *QuerySpec {
	q.includeInnerHits = true
	return q
}

// Select restricts the returned source fields.
func (q *QuerySpec) Select(columns ...string) *QuerySpec {
	q.columns = append(q.columns, columns...)
	return q
}

// Limit caps the number of returned documents. Zero means no limit.
func (q *QuerySpec) Limit(n int) *QuerySpec {
	if n < 0 {
		return q.fail(invalidArgument("limit must not be negative, got %d", n))
	}
	q.limit = n
	return q
}

// Offset skips the first n documents.
func (q *QuerySpec) Offset(n int) *QuerySpec {
	if n < 0 {
		return q.fail(invalidArgument("offset must not be negative, got %d", n))
	}
	q.offset = n
	return q
}

// Wheres returns the scoring clauses in insertion order.
func (q *QuerySpec) Wheres() []Clause { return slices.Clone(q.wheres) }

// Filters returns the non-scoring clauses in insertion order.
func (q *QuerySpec) Filters() []Clause { return slices.Clone(q.filters) }

// PostFilters returns the clauses applied after aggregation.
func (q *QuerySpec) PostFilters() []Clause { return slices.Clone(q.postFilters) }

// Aggregations returns the top-level aggregation forest.
func (q *QuerySpec) Aggregations() []*Aggregation { return slices.Clone(q.aggregations) }

// Orders returns the sort specs in insertion order.
func (q *QuerySpec) Orders() []Sort { return slices.Clone(q.orders) }

// DocumentType returns the document type set by Type.
func (q *QuerySpec) DocumentType() string { return q.documentType }

// RoutingParentID returns the parent id set by ParentID.
func (q *QuerySpec) RoutingParentID() string { return q.routingParentID }

// IncludeInnerHits reports whether WithInnerHits was called.
func (q *QuerySpec) IncludeInnerHits() bool { return q.includeInnerHits }

// Fields is the complete field set a compiler consumes.
type Fields struct {
	DocumentType     string
	RoutingParentID  string
	Wheres           []Clause
	Filters          []Clause
	PostFilters      []Clause
	Aggregations     []*Aggregation
	Orders           []Sort
	Columns          []string
	Limit            int
	Offset           int
	IncludeInnerHits bool
}

// Fields exports the spec's state. Slices are copies; clauses are shared.
func (q *QuerySpec) Fields() Fields {
	return Fields{
		DocumentType:     q.documentType,
		RoutingParentID:  q.routingParentID,
		Wheres:           slices.Clone(q.wheres),
		Filters:          slices.Clone(q.filters),
		PostFilters:      slices.Clone(q.postFilters),
		Aggregations:     slices.Clone(q.aggregations),
		Orders:           slices.Clone(q.orders),
		Columns:          slices.Clone(q.columns),
		Limit:            q.limit,
		Offset:           q.offset,
		IncludeInnerHits: q.includeInnerHits,
	}
}

// FromFields rebuilds a QuerySpec from an exported field set.
func FromFields(f Fields) *QuerySpec {
	return &QuerySpec{
		documentType:     f.DocumentType,
		routingParentID:  f.RoutingParentID,
		wheres:           slices.Clone(f.Wheres),
		filters:          slices.Clone(f.Filters),
		postFilters:      slices.Clone(f.PostFilters),
		aggregations:     slices.Clone(f.Aggregations),
		orders:           slices.Clone(f.Orders),
		columns:          slices.Clone(f.Columns),
		limit:            f.Limit,
		offset:           f.Offset,
		includeInnerHits: f.IncludeInnerHits,
	}
}

// Clone returns an independent copy. Clause values are copied so decorating
// the clone never reaches the original; embedded sub-queries are shared.
func (q *QuerySpec) Clone() *QuerySpec {
	cp := &QuerySpec{
		documentType:     q.documentType,
		routingParentID:  q.routingParentID,
		wheres:           cloneClauses(q.wheres),
		filters:          cloneClauses(q.filters),
		postFilters:      cloneClauses(q.postFilters),
		aggregations:     slices.Clone(q.aggregations),
		orders:           make([]Sort, 0, len(q.orders)),
		columns:          slices.Clone(q.columns),
		limit:            q.limit,
		offset:           q.offset,
		includeInnerHits: q.includeInnerHits,
		err:              q.err,
	}
	for _, o := range q.orders {
		cp.orders = append(cp.orders, o.clone())
	}
	return cp
}

// CountQuery derives a count-only variant: clauses, type, routing and the
// inner-hits flag survive; sorting, columns, paging and aggregations do not.
func (q *QuerySpec) CountQuery() *QuerySpec {
	return &QuerySpec{
		documentType:     q.documentType,
		routingParentID:  q.routingParentID,
		wheres:           cloneClauses(q.wheres),
		filters:          cloneClauses(q.filters),
		postFilters:      cloneClauses(q.postFilters),
		includeInnerHits: q.includeInnerHits,
		err:              q.err,
	}
}

func cloneClauses(in []Clause) []Clause {
	if in == nil {
		return nil
	}
	out := make([]Clause, len(in))
	for i, c := range in {
		out[i] = c.clone()
	}
	return out
}

// Columns returns the selected source fields.
func (q *QuerySpec) Columns() []string { return slices.Clone(q.columns) }

// Paging returns the limit and offset.
func (q *QuerySpec) Paging() (limit, offset int) { return q.limit, q.offset }
