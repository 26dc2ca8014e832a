// Package compiler turns a query.QuerySpec into an Elasticsearch request body
// and translates insert/delete calls into bulk and document mutations.
//
// Output is deterministic for a given spec: clause lists keep their insertion
// order and JSON encoding sorts object keys.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-es-query/query"
)

var (
	ErrNilQuery          = errors.New("compiler: nil query")
	ErrEmptyIndex        = errors.New("compiler: index is required")
	ErrUnsupportedClause = errors.New("compiler: unsupported clause")
	ErrInvalidOptions    = errors.New("compiler: invalid options")
	ErrNoDocuments       = errors.New("compiler: no documents to insert")
)

const defaultTypeField = "type"

// Compiler translates query specs into Elasticsearch requests.
type Compiler struct {
	typeField string
	logger    *slog.Logger
	newID     func() string
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithTypeField sets the document field that Type and WhereType match on.
func WithTypeField(field string) Option {
	return func(c *Compiler) {
		if field != "" {
			c.typeField = field
		}
	}
}

// WithLogger sets the logger used for compile-time warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIDGenerator replaces the UUID generator used for documents inserted
// without an _id.
func WithIDGenerator(fn func() string) Option {
	return func(c *Compiler) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New returns a Compiler with the given options applied.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		typeField: defaultTypeField,
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is a compiled search.
type Request struct {
	Index   string
	Routing string
	Body    map[string]any
}

// Compile builds the _search request for q against index.
func (c *Compiler) Compile(index string, q *query.QuerySpec) (*Request, error) {
	f, err := c.fields(index, q)
	if err != nil {
		return nil, err
	}

	body := make(map[string]any)
	root, err := c.root(f.Wheres, f.Filters, f.DocumentType, f.IncludeInnerHits)
	if err != nil {
		return nil, err
	}
	body["query"] = root

	if len(f.PostFilters) > 0 {
		post, err := c.filterQuery(f.PostFilters, f.IncludeInnerHits)
		if err != nil {
			return nil, fmt.Errorf("post_filter: %w", err)
		}
		body["post_filter"] = post
	}
	if len(f.Aggregations) > 0 {
		aggs, err := c.aggregations(f.Aggregations, f.IncludeInnerHits)
		if err != nil {
			return nil, err
		}
		body["aggs"] = aggs
	}
	if len(f.Orders) > 0 {
		sorts, err := c.sorts(f.Orders)
		if err != nil {
			return nil, err
		}
		body["sort"] = sorts
	}
	if len(f.Columns) > 0 {
		body["_source"] = f.Columns
	}
	if f.Limit > 0 {
		body["size"] = f.Limit
	}
	if f.Offset > 0 {
		body["from"] = f.Offset
	}

	return &Request{Index: index, Routing: f.RoutingParentID, Body: body}, nil
}

// CompileCount builds the _count request for q. Post filters are folded into
// the filter context because _count has no post_filter.
func (c *Compiler) CompileCount(index string, q *query.QuerySpec) (*Request, error) {
	if q == nil {
		return nil, ErrNilQuery
	}
	f, err := c.fields(index, q.CountQuery())
	if err != nil {
		return nil, err
	}

	root, err := c.root(f.Wheres, f.Filters, f.DocumentType, f.IncludeInnerHits)
	if err != nil {
		return nil, err
	}
	if len(f.PostFilters) > 0 {
		post, err := c.filterQuery(f.PostFilters, f.IncludeInnerHits)
		if err != nil {
			return nil, fmt.Errorf("post_filter: %w", err)
		}
		root = map[string]any{"bool": map[string]any{
			"must":   []any{root},
			"filter": []any{post},
		}}
	}

	return &Request{
		Index:   index,
		Routing: f.RoutingParentID,
		Body:    map[string]any{"query": root},
	}, nil
}

func (c *Compiler) fields(index string, q *query.QuerySpec) (query.Fields, error) {
	if index == "" {
		return query.Fields{}, ErrEmptyIndex
	}
	if q == nil {
		return query.Fields{}, ErrNilQuery
	}
	if err := q.Err(); err != nil {
		return query.Fields{}, fmt.Errorf("compile: %w", err)
	}
	return q.Fields(), nil
}

// root compiles the top-level query, falling back to match_all.
func (c *Compiler) root(wheres, filters []query.Clause, docType string, innerHits bool) (map[string]any, error) {
	extra := []any(nil)
	if docType != "" {
		extra = append(extra, c.typeTerm(docType, nil))
	}
	b, err := c.boolBody(wheres, filters, extra, innerHits)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return matchAll(), nil
	}
	return map[string]any{"bool": b}, nil
}

func matchAll() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}
