// Package search executes query specs: it compiles them, sends them over a
// connection and processes the responses.
package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	esclient "github.com/robert-malhotra/go-es-query/client"
	"github.com/robert-malhotra/go-es-query/pkg/compiler"
	"github.com/robert-malhotra/go-es-query/pkg/processor"
	"github.com/robert-malhotra/go-es-query/query"
)

var ErrInvalidPage = errors.New("search: page and per-page must be positive")

// Connection sends compiled requests. *esclient.Client implements it.
type Connection interface {
	Select(ctx context.Context, req *compiler.Request, opts ...esclient.RequestOption) (*esclient.SearchResponse, error)
	Count(ctx context.Context, req *compiler.Request, opts ...esclient.RequestOption) (int64, error)
	Scroll(ctx context.Context, req *compiler.Request, keepAlive time.Duration, opts ...esclient.RequestOption) iter.Seq2[esclient.Hit, error]
	Insert(ctx context.Context, m *compiler.Mutation, opts ...esclient.RequestOption) (*esclient.BulkResponse, error)
	Delete(ctx context.Context, m *compiler.Mutation, opts ...esclient.RequestOption) (*esclient.DeleteResponse, error)
}

// Executor ties a connection to a compiler and a processor.
type Executor struct {
	conn      Connection
	compiler  *compiler.Compiler
	processor *processor.Processor
	logger    *slog.Logger
	keepAlive time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithCompiler replaces the default compiler.
func WithCompiler(c *compiler.Compiler) Option {
	return func(e *Executor) {
		if c != nil {
			e.compiler = c
		}
	}
}

// WithProcessor replaces the default processor.
func WithProcessor(p *processor.Processor) Option {
	return func(e *Executor) {
		if p != nil {
			e.processor = p
		}
	}
}

// WithLogger sets the logger for execution events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithKeepAlive sets the scroll lifetime used by cursors.
func WithKeepAlive(d time.Duration) Option {
	return func(e *Executor) {
		e.keepAlive = d
	}
}

// New returns an Executor over conn.
func New(conn Connection, opts ...Option) *Executor {
	e := &Executor{
		conn:      conn,
		compiler:  compiler.New(),
		processor: processor.New(),
		logger:    slog.Default(),
		keepAlive: esclient.DefaultKeepAlive,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Processor exposes the processor for last-response and timing metadata.
func (e *Executor) Processor() *processor.Processor {
	return e.processor
}

// Query is a spec bound to an index. Its result is fetched at most once.
type Query struct {
	exec  *Executor
	index string
	spec  *query.QuerySpec

	once   sync.Once
	result *processor.Result
	err    error
}

// Bind attaches spec to index. Later changes to spec are not seen by Get
// once it has run.
func (e *Executor) Bind(index string, spec *query.QuerySpec) *Query {
	return &Query{exec: e, index: index, spec: spec}
}

// Get compiles and runs the query on first use and returns the cached
// outcome, error included, on every later call.
func (q *Query) Get(ctx context.Context) (*processor.Result, error) {
	q.once.Do(func() {
		q.result, q.err = q.exec.run(ctx, q.index, q.spec)
	})
	return q.result, q.err
}

func (e *Executor) run(ctx context.Context, index string, spec *query.QuerySpec) (*processor.Result, error) {
	req, err := e.compiler.Compile(index, spec)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := e.conn.Select(ctx, req)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("search executed", "index", index, "took_ms", resp.Took, "elapsed", time.Since(start))
	return e.processor.Process(resp)
}

// Count returns the number of matching documents. Sorting, paging, columns
// and aggregations are dropped for the count.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.spec == nil {
		return 0, compiler.ErrNilQuery
	}
	req, err := q.exec.compiler.CompileCount(q.index, q.spec)
	if err != nil {
		return 0, err
	}
	return q.exec.conn.Count(ctx, req)
}

// Page is one page of results.
type Page struct {
	*processor.Result
	Page     int
	PerPage  int
	Total    int64
	LastPage int
}

// Paginate fetches page (1-based) of perPage documents along with the total
// count. The bound spec is not modified.
func (q *Query) Paginate(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 1 || perPage < 1 {
		return nil, ErrInvalidPage
	}
	if q.spec == nil {
		return nil, compiler.ErrNilQuery
	}
	total, err := q.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	spec := q.spec.Clone().Limit(perPage).Offset((page - 1) * perPage)
	res, err := q.exec.run(ctx, q.index, spec)
	if err != nil {
		return nil, err
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	return &Page{Result: res, Page: page, PerPage: perPage, Total: total, LastPage: max(last, 1)}, nil
}

// Cursor streams every matching document. The sequence is single-pass.
func (q *Query) Cursor(ctx context.Context) iter.Seq2[processor.Document, error] {
	return func(yield func(processor.Document, error) bool) {
		req, err := q.exec.compiler.Compile(q.index, q.spec)
		if err != nil {
			yield(processor.Document{}, err)
			return
		}
		for hit, err := range q.exec.conn.Scroll(ctx, req, q.exec.keepAlive) {
			if err != nil {
				yield(processor.Document{}, err)
				return
			}
			doc, err := q.exec.processor.Document(hit)
			if !yield(doc, err) || err != nil {
				return
			}
		}
	}
}

// Insert indexes docs into index.
func (e *Executor) Insert(ctx context.Context, index string, docs []map[string]any, routing string) (*esclient.BulkResponse, error) {
	m, err := e.compiler.CompileInsert(index, docs, routing)
	if err != nil {
		return nil, err
	}
	resp, err := e.conn.Insert(ctx, m)
	if err != nil {
		return nil, err
	}
	if failed := resp.Failed(); len(failed) > 0 {
		e.logger.Warn("bulk insert had failures", "index", index, "failed", len(failed), "total", len(m.IDs))
	}
	return resp, nil
}

// Delete removes the document id from index.
func (e *Executor) Delete(ctx context.Context, index, id, routing string) (*esclient.DeleteResponse, error) {
	m, err := e.compiler.CompileDelete(index, id, routing)
	if err != nil {
		return nil, err
	}
	return e.conn.Delete(ctx, m)
}
