package processor

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	esclient "github.com/robert-malhotra/go-es-query/client"
)

const searchBody = `{
  "took": 12,
  "hits": {
    "total": {"value": 1200, "relation": "gte"},
    "hits": [
      {
        "_index": "events", "_id": "e1", "_score": 1.5,
        "_source": {"title": "Jazz night", "seats": 120},
        "inner_hits": {
          "review": {"hits": {"total": {"value": 1, "relation": "eq"}, "hits": [
            {"_index": "events", "_id": "r1", "_score": 1, "_source": {"stars": 5}}
          ]}}
        }
      }
    ]
  },
  "aggregations": {
    "by_city": {
      "doc_count_error_upper_bound": 0,
      "buckets": [
        {"key": "London", "doc_count": 7, "avg_price": {"value": 21.5}},
        {"key": "Paris", "doc_count": 3, "avg_price": {"value": null}}
      ]
    },
    "recent": {"doc_count": 4, "max_seats": {"value": 300}},
    "price_stats": {"count": 10, "min": 5, "max": 80, "avg": 30, "sum": 300},
    "ranges": {"buckets": {"cheap": {"to": 20, "doc_count": 2}, "dear": {"from": 20, "doc_count": 8}}},
    "top": {"hits": {"total": {"value": 1, "relation": "eq"}, "hits": [{"_index": "events", "_id": "e9", "_source": {}}]}}
  }
}`

func decodeResponse(t *testing.T, body string) *esclient.SearchResponse {
	t.Helper()
	var resp esclient.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return &resp
}

func TestProcess_Documents(t *testing.T) {
	p := New()
	res, err := p.Process(decodeResponse(t, searchBody))
	require.NoError(t, err)

	assert.Equal(t, int64(1200), res.Total)
	assert.False(t, res.TotalIsExact)
	require.Len(t, res.Documents, 1)

	doc := res.Documents[0]
	assert.Equal(t, "e1", doc.ID)
	assert.Equal(t, "Jazz night", doc.Source["title"])
	assert.Equal(t, json.Number("120"), doc.Source["seats"])
	require.NotNil(t, doc.Score)
	assert.InDelta(t, 1.5, *doc.Score, 1e-9)
	require.Len(t, doc.InnerHits["review"], 1)
	assert.Equal(t, "r1", doc.InnerHits["review"][0].ID)
}

func TestProcess_Aggregations(t *testing.T) {
	res, err := New().Process(decodeResponse(t, searchBody))
	require.NoError(t, err)

	byCity := res.Aggregations["by_city"]
	require.Len(t, byCity.Buckets, 2)
	assert.Equal(t, "London", byCity.Buckets[0].Key)
	assert.Equal(t, int64(7), byCity.Buckets[0].DocCount)
	require.NotNil(t, byCity.Buckets[0].Aggregations["avg_price"].Value)
	assert.InDelta(t, 21.5, *byCity.Buckets[0].Aggregations["avg_price"].Value, 1e-9)
	assert.Nil(t, byCity.Buckets[1].Aggregations["avg_price"].Value)

	recent := res.Aggregations["recent"]
	require.Len(t, recent.Buckets, 1)
	assert.Equal(t, int64(4), recent.Buckets[0].DocCount)
	assert.InDelta(t, 300, *recent.Buckets[0].Aggregations["max_seats"].Value, 1e-9)

	stats := res.Aggregations["price_stats"]
	assert.Equal(t, json.Number("80"), stats.Values["max"])

	ranges := res.Aggregations["ranges"]
	require.Len(t, ranges.Buckets, 2)
	assert.Equal(t, "cheap", ranges.Buckets[0].Key)
	assert.Equal(t, int64(8), ranges.Buckets[1].DocCount)

	top := res.Aggregations["top"]
	require.Len(t, top.Docs, 1)
	assert.Equal(t, "e9", top.Docs[0].ID)
}

func TestProcess_LastResponseAndTook(t *testing.T) {
	p := New()
	assert.Nil(t, p.LastResponse())
	assert.Zero(t, p.Took())

	resp := decodeResponse(t, searchBody)
	_, err := p.Process(resp)
	require.NoError(t, err)

	assert.Same(t, resp, p.LastResponse())
	assert.Equal(t, 12*time.Millisecond, p.Took())

	_, err = p.Process(nil)
	require.ErrorIs(t, err, ErrNilResponse)
}

func TestProcess_Concurrent(t *testing.T) {
	p := New()
	resp := decodeResponse(t, searchBody)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Process(resp)
			assert.NoError(t, err)
			_ = p.Took()
		}()
	}
	wg.Wait()
	assert.Same(t, resp, p.LastResponse())
}

func TestDocument_BadSource(t *testing.T) {
	_, err := New().Document(esclient.Hit{ID: "x", Source: json.RawMessage(`[1,2]`)})
	require.Error(t, err)
}
