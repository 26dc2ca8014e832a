package main

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-es-query/pkg/expr"
	"github.com/robert-malhotra/go-es-query/query"
)

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "index", Aliases: []string{"i"}, Usage: "index to query", Required: true},
		&cli.StringFlag{Name: "type", Usage: "restrict to a document type"},
		&cli.StringFlag{Name: "parent-id", Usage: "route the query by parent id"},
		&cli.StringSliceFlag{Name: "q", Usage: "scoring `EXPRESSION`, e.g. 'seats >= 100 AND (city = \"Paris\" OR city = \"Lyon\")'"},
		&cli.StringSliceFlag{Name: "fq", Usage: "non-scoring `EXPRESSION`"},
		&cli.StringSliceFlag{Name: "where", Aliases: []string{"w"}, Usage: "scoring condition `FIELD<op>VALUE`, op one of = != < <= > >="},
		&cli.StringSliceFlag{Name: "or-where", Usage: "like --where, OR-ed with the previous condition"},
		&cli.StringSliceFlag{Name: "not", Usage: "negated condition FIELD<op>VALUE"},
		&cli.StringSliceFlag{Name: "filter", Aliases: []string{"f"}, Usage: "non-scoring condition FIELD<op>VALUE"},
		&cli.StringSliceFlag{Name: "post-filter", Usage: "condition applied after aggregation"},
		&cli.StringSliceFlag{Name: "exists", Usage: "FIELD must have a value"},
		&cli.StringSliceFlag{Name: "between", Usage: "`FIELD:LOW:HIGH` inclusive range"},
		&cli.StringSliceFlag{Name: "date", Usage: "date condition FIELD<op>DATE"},
		&cli.StringSliceFlag{Name: "prefix", Usage: "`FIELD:PREFIX`"},
		&cli.StringFlag{Name: "match", Aliases: []string{"m"}, Usage: "full-text search"},
		&cli.StringSliceFlag{Name: "match-field", Usage: "field searched by --match, repeatable"},
		&cli.StringSliceFlag{Name: "near", Usage: "`FIELD:DISTANCE:LOCATION`, location LON,LAT or a GeoJSON geometry"},
		&cli.StringSliceFlag{Name: "bbox", Usage: "`FIELD:MINLON,MINLAT,MAXLON,MAXLAT`"},
		&cli.StringSliceFlag{Name: "agg", Usage: "`NAME:TYPE:FIELD` aggregation"},
		&cli.StringSliceFlag{Name: "sort", Aliases: []string{"s"}, Usage: "`FIELD[:asc|desc]`"},
		&cli.StringSliceFlag{Name: "select", Usage: "source field to return, repeatable"},
		&cli.BoolFlag{Name: "inner-hits", Usage: "return matched nested and related documents"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "maximum documents to return"},
		&cli.IntFlag{Name: "offset", Usage: "documents to skip"},
	}
}

// specFromCommand assembles a QuerySpec from the query flags. Conditions are
// added in flag-group order.
func specFromCommand(cmd *cli.Command) (*query.QuerySpec, error) {
	q := query.New()
	if v := cmd.String("type"); v != "" {
		q.Type(v)
	}
	if v := cmd.String("parent-id"); v != "" {
		q.ParentID(v)
	}

	for _, input := range cmd.StringSlice("q") {
		e, err := expr.Parse(input)
		if err != nil {
			return nil, err
		}
		e.Apply(q)
	}
	for _, input := range cmd.StringSlice("fq") {
		e, err := expr.Parse(input)
		if err != nil {
			return nil, err
		}
		e.Filter(q)
	}
	for _, arg := range cmd.StringSlice("where") {
		col, op, v, err := parseComparison(arg)
		if err != nil {
			return nil, err
		}
		q.Where(col, op, v)
	}
	for _, arg := range cmd.StringSlice("or-where") {
		col, op, v, err := parseComparison(arg)
		if err != nil {
			return nil, err
		}
		q.OrWhere(col, op, v)
	}
	for _, arg := range cmd.StringSlice("not") {
		col, op, v, err := parseComparison(arg)
		if err != nil {
			return nil, err
		}
		q.WhereNot(col, op, v)
	}
	for _, col := range cmd.StringSlice("exists") {
		q.WhereExists(col)
	}
	for _, arg := range cmd.StringSlice("between") {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("--between %q: want FIELD:LOW:HIGH", arg)
		}
		q.WhereBetween(parts[0], parseValue(parts[1]), parseValue(parts[2]))
	}
	for _, arg := range cmd.StringSlice("date") {
		col, op, raw, err := splitComparison(arg)
		if err != nil {
			return nil, err
		}
		q.WhereDate(col, op, dateValue(raw))
	}
	for _, arg := range cmd.StringSlice("prefix") {
		col, value, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("--prefix %q: want FIELD:PREFIX", arg)
		}
		q.WherePrefix(col, value)
	}
	if text := cmd.String("match"); text != "" {
		var opts query.Options
		if fields := cmd.StringSlice("match-field"); len(fields) > 0 {
			opts = query.Options{"fields": fields}
		}
		q.Search(text, opts)
	}
	for _, arg := range cmd.StringSlice("near") {
		col, distance, location, err := parseNear(arg)
		if err != nil {
			return nil, err
		}
		q.WhereGeoDistance(col, location, distance)
	}
	for _, arg := range cmd.StringSlice("bbox") {
		col, bound, err := parseBBox(arg)
		if err != nil {
			return nil, err
		}
		q.WhereGeoBoundsIn(col, bound)
	}

	if err := addConditions(q, cmd.StringSlice("filter"), q.Filter); err != nil {
		return nil, err
	}
	if err := addConditions(q, cmd.StringSlice("post-filter"), q.PostFilter); err != nil {
		return nil, err
	}

	for _, arg := range cmd.StringSlice("agg") {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("--agg %q: want NAME:TYPE:FIELD", arg)
		}
		q.Aggregate(parts[0], parts[1], query.Args(map[string]any{"field": parts[2]}), query.SubQuery{})
	}
	for _, arg := range cmd.StringSlice("sort") {
		col, dir, _ := strings.Cut(arg, ":")
		if dir == "" {
			dir = "asc"
		}
		q.OrderBy(col, dir, nil)
	}
	if cols := cmd.StringSlice("select"); len(cols) > 0 {
		q.Select(cols...)
	}
	if cmd.Bool("inner-hits") {
		q.WithInnerHits()
	}
	if n := cmd.Int("limit"); n != 0 {
		q.Limit(n)
	}
	if n := cmd.Int("offset"); n != 0 {
		q.Offset(n)
	}
	return q, q.Err()
}

func addConditions(q *query.QuerySpec, exprs []string, promote func(func(*query.QuerySpec)) *query.QuerySpec) error {
	for _, arg := range exprs {
		col, op, v, err := parseComparison(arg)
		if err != nil {
			return err
		}
		promote(func(sub *query.QuerySpec) { sub.Where(col, op, v) })
	}
	return nil
}

var comparisonPattern = regexp.MustCompile(`^([^<>!=]+?)\s*(>=|<=|!=|=|<|>)\s*(.*)$`)

func parseComparison(arg string) (string, query.Operator, any, error) {
	col, op, raw, err := splitComparison(arg)
	if err != nil {
		return "", "", nil, err
	}
	return col, op, parseValue(raw), nil
}

// dateValue keeps epoch milliseconds integral and passes anything else
// through as a date or date-math string.
func dateValue(raw string) any {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms
	}
	return strings.Trim(raw, `"`)
}

// splitComparison is parseComparison without value conversion.
func splitComparison(arg string) (string, query.Operator, string, error) {
	m := comparisonPattern.FindStringSubmatch(strings.TrimSpace(arg))
	if m == nil {
		return "", "", "", fmt.Errorf("condition %q: want FIELD<op>VALUE", arg)
	}
	return m[1], query.Operator(m[2]), m[3], nil
}

// parseValue reads numbers, booleans and null as JSON and anything else as a
// string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case float64, bool, nil, string:
			return v
		}
	}
	return s
}

func parseNear(arg string) (string, string, orb.Geometry, error) {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", nil, fmt.Errorf("--near %q: want FIELD:DISTANCE:LOCATION", arg)
	}
	location, err := parseGeometry(parts[2])
	if err != nil {
		return "", "", nil, fmt.Errorf("--near %q: %w", arg, err)
	}
	return parts[0], parts[1], location, nil
}

func parseGeometry(s string) (orb.Geometry, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		g, err := geojson.UnmarshalGeometry([]byte(s))
		if err != nil {
			return nil, err
		}
		return g.Geometry(), nil
	}
	coords, err := parseFloats(s, 2)
	if err != nil {
		return nil, err
	}
	return orb.Point{coords[0], coords[1]}, nil
}

func parseBBox(arg string) (string, orb.Bound, error) {
	col, rest, ok := strings.Cut(arg, ":")
	if !ok {
		return "", orb.Bound{}, fmt.Errorf("--bbox %q: want FIELD:MINLON,MINLAT,MAXLON,MAXLAT", arg)
	}
	c, err := parseFloats(rest, 4)
	if err != nil {
		return "", orb.Bound{}, fmt.Errorf("--bbox %q: %w", arg, err)
	}
	return col, orb.Bound{Min: orb.Point{c[0], c[1]}, Max: orb.Point{c[2], c[3]}}, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, fmt.Errorf("want %d comma-separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
