package query

import (
	"maps"

	"github.com/paulmach/orb"
)

// Kind discriminates clause variants.
type Kind string

const (
	KindBasic         Kind = "Basic"
	KindBetween       Kind = "Between"
	KindGeoDistance   Kind = "GeoDistance"
	KindGeoBoundsIn   Kind = "GeoBoundsIn"
	KindDate          Kind = "Date"
	KindPrefix        Kind = "Prefix"
	KindSearch        Kind = "Search"
	KindType          Kind = "Type"
	KindFunctionScore Kind = "FunctionScore"
	KindNestedDoc     Kind = "NestedDoc"
	KindParent        Kind = "Parent"
	KindChild         Kind = "Child"
	KindNested        Kind = "Nested"
)

// Boolean joins a clause to the clauses before it.
type Boolean string

const (
	And Boolean = "and"
	Or  Boolean = "or"
)

// Operator is a comparison used by Basic and Date clauses.
type Operator string

const (
	OpEq     Operator = "="
	OpLt     Operator = "<"
	OpGt     Operator = ">"
	OpLte    Operator = "<="
	OpGte    Operator = ">="
	OpNeq    Operator = "!="
	OpExists Operator = "exists"
)

// Valid reports whether o is one of the supported comparison operators.
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpLt, OpGt, OpLte, OpGte, OpNeq, OpExists:
		return true
	}
	return false
}

// Options is a free-form option bag attached to clauses and sorts.
type Options map[string]any

// Clause is one query condition. Only types in this package implement it.
type Clause interface {
	Kind() Kind
	Meta() *Common
	clone() Clause
}

// Common holds the fields shared by every clause variant.
type Common struct {
	Boolean Boolean
	Not     bool
	Options Options
}

// Meta returns the shared clause fields.
func (c *Common) Meta() *Common { return c }

func (c Common) copied() Common {
	c.Options = maps.Clone(c.Options)
	return c
}

// Basic is a column comparison.
type Basic struct {
	Common
	Column   string
	Operator Operator
	Value    any
}

func (*Basic) Kind() Kind { return KindBasic }

func (c *Basic) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// Between constrains a column to an inclusive [low, high] range.
type Between struct {
	Common
	Column string
	Values [2]any
}

func (*Between) Kind() Kind { return KindBetween }

func (c *Between) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// GeoDistance matches documents within Distance of Location. Location is an
// orb.Point for a coordinate pair or any other orb.Geometry for a shape.
type GeoDistance struct {
	Common
	Column   string
	Location orb.Geometry
	Distance string
}

func (*GeoDistance) Kind() Kind { return KindGeoDistance }

func (c *GeoDistance) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// GeoBoundsIn matches documents whose geo point falls inside Bounds.
type GeoBoundsIn struct {
	Common
	Column string
	Bounds orb.Bound
}

func (*GeoBoundsIn) Kind() Kind { return KindGeoBoundsIn }

func (c *GeoBoundsIn) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// Date compares a date column. Value is a time.Time or a date-math string.
type Date struct {
	Common
	Column   string
	Operator Operator
	Value    any
}

func (*Date) Kind() Kind { return KindDate }

func (c *Date) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// Prefix matches string columns starting with Value.
type Prefix struct {
	Common
	Column string
	Value  string
}

func (*Prefix) Kind() Kind { return KindPrefix }

func (c *Prefix) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// Search is a full-text query across the whole document.
type Search struct {
	Common
	Value string
}

func (*Search) Kind() Kind { return KindSearch }

func (c *Search) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// Type restricts matches to one document type.
type Type struct {
	Common
	Value string
}

func (*Type) Kind() Kind { return KindType }

func (c *Type) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// FunctionScore rescales scores. Its options live flat in Params rather than
// under Common.Options.
type FunctionScore struct {
	Common
	FunctionType string
	Params       map[string]any
}

func (*FunctionScore) Kind() Kind { return KindFunctionScore }

func (c *FunctionScore) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	cp.Params = maps.Clone(c.Params)
	return &cp
}

// NestedDoc queries a nested-document path with its own sub-query.
type NestedDoc struct {
	Common
	Path  string
	Query *QuerySpec
}

func (*NestedDoc) Kind() Kind { return KindNestedDoc }

func (c *NestedDoc) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// Relationship matches documents through a parent or child document type.
type Relationship struct {
	Common
	Relation     Kind
	DocumentType string
	Query        *QuerySpec
}

func (c *Relationship) Kind() Kind { return c.Relation }

func (c *Relationship) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// Source names which list of an embedded spec a Nested clause stands for.
type Source string

const (
	SourceWheres  Source = "wheres"
	SourceFilters Source = "filters"
)

// Nested wraps a sub-query built in its own scope.
type Nested struct {
	Common
	Query  *QuerySpec
	Source Source
}

func (*Nested) Kind() Kind { return KindNested }

func (c *Nested) clone() Clause {
	cp := *c
	cp.Common = c.copied()
	return &cp
}

// optionPolicy says how WithOptions lands on a clause.
type optionPolicy int

const (
	nestOptions optionPolicy = iota
	mergeFlat
)

var optionPolicies = map[Kind]optionPolicy{
	KindFunctionScore: mergeFlat,
}

func attachOptions(c Clause, opts Options) {
	if optionPolicies[c.Kind()] == mergeFlat {
		if fs, ok := c.(*FunctionScore); ok {
			if fs.Params == nil {
				fs.Params = make(map[string]any, len(opts))
			}
			maps.Copy(fs.Params, opts)
			return
		}
	}
	meta := c.Meta()
	if meta.Options == nil {
		meta.Options = make(Options, len(opts))
	}
	maps.Copy(meta.Options, opts)
}
