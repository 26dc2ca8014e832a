// Package processor turns raw search responses into documents and
// aggregation summaries.
package processor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	esclient "github.com/robert-malhotra/go-es-query/client"
)

var ErrNilResponse = errors.New("processor: nil response")

// Document is one hit's source with its metadata fields.
type Document struct {
	ID        string                `json:"_id"`
	Index     string                `json:"_index,omitempty"`
	Score     *float64              `json:"_score,omitempty"`
	Source    map[string]any        `json:"_source,omitempty"`
	Sort      []any                 `json:"sort,omitempty"`
	InnerHits map[string][]Document `json:"inner_hits,omitempty"`
}

// Result is a processed search response.
type Result struct {
	Documents    []Document
	Total        int64
	TotalIsExact bool
	Aggregations map[string]Summary
}

// Summary is a processed aggregation. Bucket aggregations fill Buckets;
// single-value metrics fill Value and multi-value metrics fill Values.
type Summary struct {
	Buckets []Bucket       `json:"buckets,omitempty"`
	Value   *float64       `json:"value,omitempty"`
	Values  map[string]any `json:"values,omitempty"`
	// Docs holds top_hits documents.
	Docs []Document `json:"docs,omitempty"`
}

// Bucket is one bucket of a bucket aggregation.
type Bucket struct {
	Key          any                `json:"key"`
	KeyAsString  string             `json:"key_as_string,omitempty"`
	DocCount     int64              `json:"doc_count"`
	Aggregations map[string]Summary `json:"aggregations,omitempty"`
}

// Processor remembers the last response it handled.
type Processor struct {
	mu   sync.Mutex
	last *esclient.SearchResponse
}

// New returns an empty Processor.
func New() *Processor {
	return &Processor{}
}

// Process converts resp and records it as the last response.
func (p *Processor) Process(resp *esclient.SearchResponse) (*Result, error) {
	if resp == nil {
		return nil, ErrNilResponse
	}
	p.mu.Lock()
	p.last = resp
	p.mu.Unlock()

	docs, err := documents(resp.Hits.Hits)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Documents:    docs,
		Total:        resp.Hits.Total.Value,
		TotalIsExact: resp.Hits.Total.Relation != "gte",
	}
	if len(resp.Aggregations) > 0 {
		res.Aggregations = make(map[string]Summary, len(resp.Aggregations))
		for name, raw := range resp.Aggregations {
			s, err := summarize(raw)
			if err != nil {
				return nil, fmt.Errorf("aggregation %q: %w", name, err)
			}
			res.Aggregations[name] = s
		}
	}
	return res, nil
}

// Document converts a single hit, e.g. one yielded by a cursor.
func (p *Processor) Document(hit esclient.Hit) (Document, error) {
	return document(hit)
}

// LastResponse returns the most recently processed response, or nil.
func (p *Processor) LastResponse() *esclient.SearchResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Took returns the server-side time of the last response.
func (p *Processor) Took() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return 0
	}
	return time.Duration(p.last.Took) * time.Millisecond
}

func documents(hits []esclient.Hit) ([]Document, error) {
	out := make([]Document, 0, len(hits))
	for _, h := range hits {
		d, err := document(h)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func document(h esclient.Hit) (Document, error) {
	d := Document{ID: h.ID, Index: h.Index, Score: h.Score, Sort: h.Sort}
	if len(h.Source) > 0 {
		if err := decode(h.Source, &d.Source); err != nil {
			return Document{}, fmt.Errorf("document %q: %w", h.ID, err)
		}
	}
	if len(h.InnerHits) > 0 {
		d.InnerHits = make(map[string][]Document, len(h.InnerHits))
		for name, inner := range h.InnerHits {
			docs, err := documents(inner.Hits.Hits)
			if err != nil {
				return Document{}, err
			}
			d.InnerHits[name] = docs
		}
	}
	return d, nil
}

// rawAggregation holds the fields shared by the aggregation response shapes.
// Everything else is a metric field or a sub-aggregation.
type rawAggregation struct {
	Buckets  json.RawMessage `json:"buckets"`
	Value    *float64        `json:"value"`
	Hits     *esclient.Hits  `json:"hits"`
	DocCount *int64          `json:"doc_count"`
}

var bucketFields = map[string]bool{
	"key": true, "key_as_string": true, "doc_count": true,
	"from": true, "to": true, "from_as_string": true, "to_as_string": true,
}

func summarize(raw json.RawMessage) (Summary, error) {
	var ra rawAggregation
	if err := json.Unmarshal(raw, &ra); err != nil {
		return Summary{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Summary{}, err
	}

	var s Summary
	switch {
	case len(ra.Buckets) > 0:
		buckets, err := parseBuckets(ra.Buckets)
		if err != nil {
			return Summary{}, err
		}
		s.Buckets = buckets
	case ra.Hits != nil:
		docs, err := documents(ra.Hits.Hits)
		if err != nil {
			return Summary{}, err
		}
		s.Docs = docs
	case ra.DocCount != nil:
		// single-bucket aggregations such as filter, nested or global
		b := Bucket{DocCount: *ra.DocCount}
		subs, err := subAggregations(fields)
		if err != nil {
			return Summary{}, err
		}
		b.Aggregations = subs
		s.Buckets = []Bucket{b}
	case ra.Value != nil:
		s.Value = ra.Value
	default:
		if err := decode(raw, &s.Values); err != nil {
			return Summary{}, err
		}
		delete(s.Values, "meta")
	}
	return s, nil
}

// parseBuckets accepts both the array form and the keyed object form.
func parseBuckets(raw json.RawMessage) ([]Bucket, error) {
	var list []map[string]json.RawMessage
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var keyed map[string]map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			entry := keyed[k]
			if _, ok := entry["key"]; !ok {
				entry["key"], _ = json.Marshal(k)
			}
			list = append(list, entry)
		}
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}

	out := make([]Bucket, 0, len(list))
	for _, fields := range list {
		var b Bucket
		if err := decode(fields["key"], &b.Key); err != nil {
			return nil, err
		}
		if v, ok := fields["key_as_string"]; ok {
			_ = json.Unmarshal(v, &b.KeyAsString)
		}
		if v, ok := fields["doc_count"]; ok {
			if err := json.Unmarshal(v, &b.DocCount); err != nil {
				return nil, err
			}
		}
		subs, err := subAggregations(fields)
		if err != nil {
			return nil, err
		}
		b.Aggregations = subs
		out = append(out, b)
	}
	return out, nil
}

// subAggregations summarizes every object-valued field that is not a known
// bucket field.
func subAggregations(fields map[string]json.RawMessage) (map[string]Summary, error) {
	var subs map[string]Summary
	for name, v := range fields {
		if bucketFields[name] || name == "meta" || !bytes.HasPrefix(bytes.TrimSpace(v), []byte("{")) {
			continue
		}
		s, err := summarize(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if subs == nil {
			subs = make(map[string]Summary)
		}
		subs[name] = s
	}
	return subs, nil
}

// decode keeps numbers as json.Number so large ids and counts survive.
func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}
