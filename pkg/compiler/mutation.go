package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
)

// NDJSON is the content type of bulk request bodies.
const NDJSON = "application/x-ndjson"

// Mutation is a compiled write request.
type Mutation struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Body        []byte
	// IDs lists the document ids in request order.
	IDs []string
}

// CompileInsert builds a _bulk request indexing docs into index. A document's
// "_id" key, when it is a non-empty string, becomes its id and is stripped
// from the source; other documents get a generated id.
func (c *Compiler) CompileInsert(index string, docs []map[string]any, routing string) (*Mutation, error) {
	if index == "" {
		return nil, ErrEmptyIndex
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	ids := make([]string, 0, len(docs))

	for i, doc := range docs {
		source := maps.Clone(doc)
		id, _ := source["_id"].(string)
		delete(source, "_id")
		if id == "" {
			id = c.newID()
		}

		meta := map[string]any{"_index": index, "_id": id}
		if routing != "" {
			meta["routing"] = routing
		}
		if err := enc.Encode(map[string]any{"index": meta}); err != nil {
			return nil, fmt.Errorf("encode action %d: %w", i, err)
		}
		if source == nil {
			source = map[string]any{}
		}
		if err := enc.Encode(source); err != nil {
			return nil, fmt.Errorf("encode document %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	return &Mutation{
		Method:      http.MethodPost,
		Path:        "/_bulk",
		ContentType: NDJSON,
		Body:        buf.Bytes(),
		IDs:         ids,
	}, nil
}

// CompileDelete builds a single-document delete.
func (c *Compiler) CompileDelete(index, id, routing string) (*Mutation, error) {
	if index == "" {
		return nil, ErrEmptyIndex
	}
	if id == "" {
		return nil, fmt.Errorf("compiler: document id is required")
	}
	m := &Mutation{
		Method: http.MethodDelete,
		Path:   "/" + url.PathEscape(index) + "/_doc/" + url.PathEscape(id),
		IDs:    []string{id},
	}
	if routing != "" {
		m.Query = url.Values{"routing": {routing}}
	}
	return m, nil
}
