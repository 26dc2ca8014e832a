package esclient

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/robert-malhotra/go-es-query/pkg/compiler"
)

// DefaultKeepAlive is the scroll context lifetime used when none is given.
const DefaultKeepAlive = time.Minute

// Select runs a compiled search: POST /{index}/_search.
func (c *Client) Select(ctx context.Context, req *compiler.Request, opts ...RequestOption) (*SearchResponse, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	var out SearchResponse
	endpoint := "/" + url.PathEscape(req.Index) + "/_search"
	if err := c.doJSON(ctx, http.MethodPost, endpoint, routingQuery(req.Routing), req.Body, &out, opts); err != nil {
		return nil, err
	}
	return &out, nil
}

// Count runs a compiled count: POST /{index}/_count.
func (c *Client) Count(ctx context.Context, req *compiler.Request, opts ...RequestOption) (int64, error) {
	if req == nil {
		return 0, ErrNilRequest
	}
	var out CountResponse
	endpoint := "/" + url.PathEscape(req.Index) + "/_count"
	if err := c.doJSON(ctx, http.MethodPost, endpoint, routingQuery(req.Routing), req.Body, &out, opts); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Cursor streams every hit of a search through the scroll API.
type Cursor struct {
	client    *Client
	req       *compiler.Request
	keepAlive time.Duration
	opts      []RequestOption
	used      atomic.Bool
}

// Cursor prepares a scroll over req. Nothing is sent until the cursor is
// ranged over.
func (c *Client) Cursor(req *compiler.Request, keepAlive time.Duration, opts ...RequestOption) *Cursor {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &Cursor{client: c, req: req, keepAlive: keepAlive, opts: opts}
}

// Hits yields each hit in order. The sequence can be consumed once; ranging
// over it again yields ErrCursorConsumed. The scroll context is cleared when
// the sequence ends or the caller stops early.
func (cur *Cursor) Hits(ctx context.Context) iter.Seq2[Hit, error] {
	return func(yield func(Hit, error) bool) {
		if !cur.used.CompareAndSwap(false, true) {
			yield(Hit{}, ErrCursorConsumed)
			return
		}
		if cur.req == nil {
			yield(Hit{}, ErrNilRequest)
			return
		}

		keepAlive := strconv.FormatInt(cur.keepAlive.Milliseconds(), 10) + "ms"
		query := url.Values{"scroll": {keepAlive}}
		if cur.req.Routing != "" {
			query.Set("routing", cur.req.Routing)
		}
		var page SearchResponse
		endpoint := "/" + url.PathEscape(cur.req.Index) + "/_search"
		if err := cur.client.doJSON(ctx, http.MethodPost, endpoint, query, cur.req.Body, &page, cur.opts); err != nil {
			yield(Hit{}, err)
			return
		}

		scrollID := page.ScrollID
		defer func() { cur.client.clearScroll(scrollID) }()

		for len(page.Hits.Hits) > 0 {
			for _, hit := range page.Hits.Hits {
				if !yield(hit, nil) {
					return
				}
			}
			if scrollID == "" {
				return
			}
			next := SearchResponse{}
			body := map[string]any{"scroll": keepAlive, "scroll_id": scrollID}
			if err := cur.client.doJSON(ctx, http.MethodPost, "/_search/scroll", nil, body, &next, cur.opts); err != nil {
				yield(Hit{}, err)
				return
			}
			page = next
			if page.ScrollID != "" {
				scrollID = page.ScrollID
			}
		}
	}
}

// Scroll is shorthand for Cursor(req, keepAlive, opts...).Hits(ctx).
func (c *Client) Scroll(ctx context.Context, req *compiler.Request, keepAlive time.Duration, opts ...RequestOption) iter.Seq2[Hit, error] {
	return c.Cursor(req, keepAlive, opts...).Hits(ctx)
}

// clearScroll releases a scroll context. It runs after the caller's context
// may already be done, so it uses its own short deadline.
func (c *Client) clearScroll(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	body := map[string]any{"scroll_id": []string{id}}
	if err := c.doJSON(ctx, http.MethodDelete, "/_search/scroll", nil, body, nil, nil); err != nil && c.logger != nil {
		c.logger.Errorf("esclient: clear scroll: %v", err)
	}
}
