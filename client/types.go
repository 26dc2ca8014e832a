package esclient

import (
	"bytes"
	"encoding/json"
)

// SearchResponse is the body of a _search or scroll response.
type SearchResponse struct {
	Took         int64                      `json:"took"`
	TimedOut     bool                       `json:"timed_out"`
	Shards       Shards                     `json:"_shards"`
	Hits         Hits                       `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
	ScrollID     string                     `json:"_scroll_id,omitempty"`
}

// Shards reports shard-level execution of a request.
type Shards struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Hits is the hits envelope of a search response.
type Hits struct {
	Total    Total    `json:"total"`
	MaxScore *float64 `json:"max_score"`
	Hits     []Hit    `json:"hits"`
}

// Total is the hit count. Older clusters send a bare number instead of the
// {"value", "relation"} object; both decode.
type Total struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

func (t *Total) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		if bytes.Equal(data, []byte("null")) {
			return nil
		}
		t.Relation = "eq"
		return json.Unmarshal(data, &t.Value)
	}
	type plain Total
	return json.Unmarshal(data, (*plain)(t))
}

// Hit is one matched document.
type Hit struct {
	Index     string               `json:"_index"`
	ID        string               `json:"_id"`
	Score     *float64             `json:"_score"`
	Routing   string               `json:"_routing,omitempty"`
	Source    json.RawMessage      `json:"_source,omitempty"`
	Sort      []any                `json:"sort,omitempty"`
	InnerHits map[string]InnerHits `json:"inner_hits,omitempty"`
}

// InnerHits holds the sub-documents matched by a join or nested clause.
type InnerHits struct {
	Hits Hits `json:"hits"`
}

// CountResponse is the body of a _count response.
type CountResponse struct {
	Count  int64  `json:"count"`
	Shards Shards `json:"_shards"`
}

// BulkResponse is the body of a _bulk response.
type BulkResponse struct {
	Took   int64                 `json:"took"`
	Errors bool                  `json:"errors"`
	Items  []map[string]BulkItem `json:"items"`
}

// BulkItem is the outcome of one bulk action.
type BulkItem struct {
	Index  string      `json:"_index"`
	ID     string      `json:"_id"`
	Status int         `json:"status"`
	Result string      `json:"result,omitempty"`
	Error  *ErrorCause `json:"error,omitempty"`
}

// Failed returns the items that did not succeed, keyed by action.
func (r *BulkResponse) Failed() []BulkItem {
	if r == nil || !r.Errors {
		return nil
	}
	var out []BulkItem
	for _, entry := range r.Items {
		for _, item := range entry {
			if item.Error != nil {
				out = append(out, item)
			}
		}
	}
	return out
}

// DeleteResponse is the body of a document delete.
type DeleteResponse struct {
	Index   string `json:"_index"`
	ID      string `json:"_id"`
	Version int64  `json:"_version"`
	Result  string `json:"result"`
}
