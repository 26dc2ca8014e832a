package esclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/robert-malhotra/go-es-query/pkg/compiler"
)

// Insert sends a compiled bulk insert. Per-item failures are reported in the
// response, not as an error.
func (c *Client) Insert(ctx context.Context, m *compiler.Mutation, opts ...RequestOption) (*BulkResponse, error) {
	if m == nil {
		return nil, ErrNilRequest
	}
	if m.Method != http.MethodPost {
		return nil, fmt.Errorf("esclient: insert expects a POST mutation, got %s", m.Method)
	}
	var out BulkResponse
	body := rawBody{contentType: m.ContentType, data: m.Body}
	if err := c.doJSON(ctx, m.Method, m.Path, m.Query, body, &out, opts); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete sends a compiled single-document delete.
func (c *Client) Delete(ctx context.Context, m *compiler.Mutation, opts ...RequestOption) (*DeleteResponse, error) {
	if m == nil {
		return nil, ErrNilRequest
	}
	if m.Method != http.MethodDelete {
		return nil, fmt.Errorf("esclient: delete expects a DELETE mutation, got %s", m.Method)
	}
	var out DeleteResponse
	if err := c.doJSON(ctx, m.Method, m.Path, m.Query, nil, &out, opts); err != nil {
		return nil, err
	}
	return &out, nil
}
