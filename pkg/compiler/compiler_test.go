package compiler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-es-query/query"
)

func assertGolden(t *testing.T, name string, body map[string]any) {
	t.Helper()

	data, err := json.MarshalIndent(body, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func TestCompile_Golden(t *testing.T) {
	tests := []struct {
		name string
		spec func() *query.QuerySpec
	}{
		{
			name: "basic_bool",
			spec: func() *query.QuerySpec {
				return query.New().
					Where("status", query.OpEq, "published").
					WhereNot("age", query.OpLt, 18).
					Where("title", query.OpNeq, "draft").
					WhereExists("email").
					WhereBetween("price", 10, 20).
					WherePrefix("slug", "summer-").WithOptions(query.Options{"boost": 2})
			},
		},
		{
			name: "or_groups_and_filters",
			spec: func() *query.QuerySpec {
				return query.New().
					Type("event").
					Where("city", query.OpEq, "London").
					Where("genre", query.OpEq, "jazz").
					OrWhere("featured", query.OpEq, true).
					Filter(func(q *query.QuerySpec) {
						q.WhereDate("starts_at", query.OpGte, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
					}).
					PostFilter(func(q *query.QuerySpec) { q.WhereType("concert") }).
					Select("title", "starts_at").
					Limit(10).
					Offset(20)
			},
		},
		{
			name: "geo_and_search",
			spec: func() *query.QuerySpec {
				return query.New().
					WhereGeoDistance("location", orb.Point{-0.12, 51.5}, "10km").
					WhereGeoBoundsIn("location", orb.Bound{Min: orb.Point{-1, 50}, Max: orb.Point{1, 52}}).
					Search("jazz festival", query.Options{"fields": []string{"title", "body"}, "operator": "and"}).
					OrderBy("starts_at", "desc", nil).
					OrderBy("location", "asc", query.Options{
						"type":   "geo_distance",
						"origin": orb.Point{-0.12, 51.5},
						"unit":   "km",
					})
			},
		},
		{
			name: "joins_inner_hits",
			spec: func() *query.QuerySpec {
				return query.New().
					WhereParent("venue", func(p *query.QuerySpec) {
						p.Where("city", query.OpEq, "London")
					}, query.Options{"score": true}).
					WhereChild("review", func(c *query.QuerySpec) {
						c.WithInnerHits().Where("stars", query.OpGte, 4)
					}, query.Options{"score_mode": "max"}).
					WhereNestedDoc("tickets", query.Scope(func(s *query.QuerySpec) {
						s.Where("tickets.price", query.OpLt, 50)
					}))
			},
		},
		{
			name: "nested_merge",
			spec: func() *query.QuerySpec {
				child := query.New().
					Where("a", query.OpEq, 1).
					OrWhere("b", query.OpEq, 2).
					Filter(func(q *query.QuerySpec) { q.WhereExists("c") })
				return query.New().
					Where("x", query.OpEq, "y").
					AddNestedWhereQuery(child, query.Or)
			},
		},
		{
			name: "function_score",
			spec: func() *query.QuerySpec {
				return query.New().
					FunctionScore("field_value_factor", map[string]any{"field": "likes"}).
					WithOptions(query.Options{"factor": 1.2, "boost_mode": "sum", "weight": 3})
			},
		},
		{
			name: "aggregations",
			spec: func() *query.QuerySpec {
				return query.New().
					Aggregate("by_city", "terms",
						query.Args(map[string]any{"field": "city", "size": 5}),
						query.Scope(func(s *query.QuerySpec) {
							s.Aggregate("avg_price", "avg", query.Args(map[string]any{"field": "price"}), query.SubQuery{})
						})).
					Aggregate("recent", "filter",
						query.ArgsFrom(func(s *query.QuerySpec) {
							s.WhereDate("starts_at", query.OpGte, "now-7d/d")
						}), query.SubQuery{})
			},
		},
	}

	c := New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := c.Compile("events", tc.spec())
			require.NoError(t, err)
			assert.Equal(t, "events", req.Index)
			assertGolden(t, tc.name, req.Body)
		})
	}
}

func TestCompile_EmptySpecMatchesAll(t *testing.T) {
	req, err := New().Compile("events", query.New())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"query": matchAll()}, req.Body)
	assert.Empty(t, req.Routing)
}

func TestCompile_RoutingAndTypeField(t *testing.T) {
	c := New(WithTypeField("doc_kind"))

	req, err := c.Compile("events", query.New().Type("event").ParentID("venue-7"))
	require.NoError(t, err)

	assert.Equal(t, "venue-7", req.Routing)
	assert.Equal(t, map[string]any{
		"bool": map[string]any{
			"filter": []any{
				map[string]any{"term": map[string]any{"doc_kind": map[string]any{"value": "event"}}},
			},
		},
	}, req.Body["query"])
}

func TestCompile_InnerHitsInheritedFromRoot(t *testing.T) {
	q := query.New().
		WithInnerHits().
		WhereParent("venue", func(p *query.QuerySpec) { p.WhereExists("name") }, nil)

	req, err := New().Compile("events", q)
	require.NoError(t, err)

	must := req.Body["query"].(map[string]any)["bool"].(map[string]any)["must"].([]any)
	parent := must[0].(map[string]any)["has_parent"].(map[string]any)
	assert.Equal(t, map[string]any{}, parent["inner_hits"])
}

func TestCompile_ShapeLocationUsesCentroid(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	q := query.New().WhereGeoDistance("location", square, "5km")

	req, err := New().Compile("events", q)
	require.NoError(t, err)

	must := req.Body["query"].(map[string]any)["bool"].(map[string]any)["must"].([]any)
	geo := must[0].(map[string]any)["geo_distance"].(map[string]any)
	assert.Equal(t, map[string]any{"lat": 1.0, "lon": 1.0}, geo["location"])
}

func TestCompile_DuplicateAggregationKeyKeepsLast(t *testing.T) {
	var logs bytes.Buffer
	c := New(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	q := query.New().
		Aggregate("k", "terms", query.Args(map[string]any{"field": "a"}), query.SubQuery{}).
		Aggregate("k", "terms", query.Args(map[string]any{"field": "b"}), query.SubQuery{})

	req, err := c.Compile("events", q)
	require.NoError(t, err)

	aggs := req.Body["aggs"].(map[string]any)
	assert.Equal(t, map[string]any{"terms": map[string]any{"field": "b"}}, aggs["k"])
	assert.Contains(t, logs.String(), "duplicate aggregation key")
	assert.Equal(t, []string{"k"}, query.DuplicateAggregationKeys(q.Aggregations()))
}

func TestCompile_Errors(t *testing.T) {
	c := New()

	_, err := c.Compile("", query.New())
	require.ErrorIs(t, err, ErrEmptyIndex)

	_, err = c.Compile("events", nil)
	require.ErrorIs(t, err, ErrNilQuery)

	_, err = c.Compile("events", query.New().WithOptions(query.Options{"boost": 1}))
	require.ErrorIs(t, err, query.ErrNoTarget)

	_, err = c.Compile("events", query.New().Where("a", query.OpEq, 1).WithOptions(query.Options{"boost": "high"}))
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = c.Compile("events", query.New().OrderBy("location", "asc", query.Options{"type": "geo_distance"}))
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestCompileCount(t *testing.T) {
	q := query.New().
		Type("event").
		ParentID("venue-7").
		Where("city", query.OpEq, "London").
		PostFilter(func(q *query.QuerySpec) { q.WherePrefix("slug", "s") }).
		OrderBy("starts_at", "desc", nil).
		Limit(10).
		Aggregate("by_city", "terms", query.Args(map[string]any{"field": "city"}), query.SubQuery{})

	req, err := New().CompileCount("events", q)
	require.NoError(t, err)

	assert.Equal(t, "venue-7", req.Routing)
	assert.Equal(t, []string{"query"}, keys(req.Body))
	outer := req.Body["query"].(map[string]any)["bool"].(map[string]any)
	assert.Len(t, outer["must"], 1)
	assert.Len(t, outer["filter"], 1)

	_, err = New().CompileCount("events", nil)
	require.ErrorIs(t, err, ErrNilQuery)
}

func TestCompileInsert(t *testing.T) {
	n := 0
	c := New(WithIDGenerator(func() string {
		n++
		return "gen-" + string(rune('0'+n))
	}))

	docs := []map[string]any{
		{"_id": "e1", "title": "Jazz night"},
		{"title": "Blues"},
	}
	m, err := c.CompileInsert("events", docs, "venue-7")
	require.NoError(t, err)

	assert.Equal(t, "POST", m.Method)
	assert.Equal(t, "/_bulk", m.Path)
	assert.Equal(t, NDJSON, m.ContentType)
	assert.Equal(t, []string{"e1", "gen-1"}, m.IDs)

	lines := strings.Split(strings.TrimSuffix(string(m.Body), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_index":"events","_id":"e1","routing":"venue-7"}}`, lines[0])
	assert.JSONEq(t, `{"title":"Jazz night"}`, lines[1])
	assert.JSONEq(t, `{"index":{"_index":"events","_id":"gen-1","routing":"venue-7"}}`, lines[2])
	assert.JSONEq(t, `{"title":"Blues"}`, lines[3])
	assert.Equal(t, "e1", docs[0]["_id"], "caller's document must not be modified")

	_, err = c.CompileInsert("events", nil, "")
	require.ErrorIs(t, err, ErrNoDocuments)
}

func TestCompileDelete(t *testing.T) {
	m, err := New().CompileDelete("events", "a/b", "venue-7")
	require.NoError(t, err)

	assert.Equal(t, "DELETE", m.Method)
	assert.Equal(t, "/events/_doc/a%2Fb", m.Path)
	assert.Equal(t, "venue-7", m.Query.Get("routing"))

	_, err = New().CompileDelete("", "1", "")
	require.ErrorIs(t, err, ErrEmptyIndex)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
