package compiler

import (
	"fmt"
	"maps"

	"github.com/mitchellh/mapstructure"
)

// leafOptions are understood by every leaf query.
type leafOptions struct {
	Boost *float64 `es:"boost"`
	Name  string   `es:"_name"`
}

type dateOptions struct {
	leafOptions `es:",squash"`
	Format      string `es:"format"`
	TimeZone    string `es:"time_zone"`
}

type searchOptions struct {
	leafOptions `es:",squash"`
	Fields      []string `es:"fields"`
	Type        string   `es:"type"`
	Operator    string   `es:"operator"`
}

// joinOptions cover nested, has_parent and has_child queries.
type joinOptions struct {
	leafOptions    `es:",squash"`
	Score          *bool          `es:"score"`
	ScoreMode      string         `es:"score_mode"`
	MinChildren    *int           `es:"min_children"`
	MaxChildren    *int           `es:"max_children"`
	IgnoreUnmapped *bool          `es:"ignore_unmapped"`
	InnerHits      map[string]any `es:"inner_hits"`
}

// functionScoreOptions are the keys lifted out of a FunctionScore clause's
// flat parameters. Whatever is left belongs to the score function itself.
type functionScoreOptions struct {
	BoostMode string   `es:"boost_mode"`
	ScoreMode string   `es:"score_mode"`
	MaxBoost  *float64 `es:"max_boost"`
	MinScore  *float64 `es:"min_score"`
	Boost     *float64 `es:"boost"`
	Weight    *float64 `es:"weight"`
}

type sortOptions struct {
	Type         string `es:"type"`
	Mode         string `es:"mode"`
	Missing      any    `es:"missing"`
	Unit         string `es:"unit"`
	Origin       any    `es:"origin"`
	DistanceType string `es:"distance_type"`
}

// decodeOptions type-checks opts against target and returns the keys target
// does not declare.
func decodeOptions(what string, opts map[string]any, target any) (map[string]any, error) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "es",
		Result:   target,
		Metadata: &md,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(opts); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidOptions, what, err)
	}
	rest := make(map[string]any, len(md.Unused))
	for _, k := range md.Unused {
		rest[k] = opts[k]
	}
	return rest, nil
}

// checked validates opts against target and returns a copy of opts without
// the keys the compiler consumes itself.
func checked(what string, opts map[string]any, target any, consumed ...string) (map[string]any, error) {
	if _, err := decodeOptions(what, opts, target); err != nil {
		return nil, err
	}
	out := maps.Clone(opts)
	if out == nil {
		out = make(map[string]any)
	}
	for _, k := range consumed {
		delete(out, k)
	}
	return out, nil
}
