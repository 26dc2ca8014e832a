// Package expr parses boolean filter expressions such as
//
//	status = "published" AND (seats >= 100 OR NOT city LIKE "Par%")
//
// and applies them to a QuerySpec as where-clauses.
//
// Supported conditions: comparisons (= != <> < <= > >=), BETWEEN low AND
// high, LIKE with a single trailing % (a prefix match), IS NULL and
// IS NOT NULL. AND binds tighter than OR; NOT applies to the term after it.
package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/robert-malhotra/go-es-query/query"
)

var ErrUnsupportedPattern = errors.New("expr: LIKE supports only a trailing % wildcard")

var (
	exprLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Keyword", Pattern: `(?i)\b(AND|OR|NOT|LIKE|BETWEEN|IS|NULL)\b`},
		{Name: "Boolean", Pattern: `(?i)\b(true|false)\b`},
		{Name: "Ident", Pattern: `[a-zA-Z_@][a-zA-Z0-9_.@]*`},
		{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
		{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
		{Name: "Operator", Pattern: `<>|!=|<=|>=|=|<|>`},
		{Name: "Paren", Pattern: `[()]`},
		{Name: "whitespace", Pattern: `\s+`},
	})

	parser = participle.MustBuild[orExpr](
		participle.Lexer(exprLexer),
		participle.Unquote("String"),
		participle.CaseInsensitive("Keyword"),
	)
)

type orExpr struct {
	And []*andExpr `parser:"@@ ( 'OR' @@ )*"`
}

type andExpr struct {
	Terms []*term `parser:"@@ ( 'AND' @@ )*"`
}

type term struct {
	Not   *term      `parser:"  'NOT' @@"`
	Group *orExpr    `parser:"| '(' @@ ')'"`
	Cond  *condition `parser:"| @@"`
}

type condition struct {
	Field   string   `parser:"@Ident"`
	Between *between `parser:"( 'BETWEEN' @@"`
	Like    *string  `parser:"| 'LIKE' @String"`
	Null    *null    `parser:"| 'IS' @@"`
	Op      string   `parser:"| @Operator"`
	Value   *value   `parser:"  @@ )"`
}

type between struct {
	Low  *value `parser:"@@ 'AND'"`
	High *value `parser:"@@"`
}

type null struct {
	Not bool `parser:"@'NOT'? 'NULL'"`
}

type value struct {
	Number *float64 `parser:"  @Number"`
	Str    *string  `parser:"| @String"`
	Bool   *string  `parser:"| @Boolean"`
}

func (v *value) get() any {
	switch {
	case v.Number != nil:
		return *v.Number
	case v.Str != nil:
		return *v.Str
	case v.Bool != nil:
		return strings.EqualFold(*v.Bool, "true")
	}
	return nil
}

func (v *value) String() string {
	switch x := v.get().(type) {
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprint(x)
	}
}

// Expr is a parsed expression.
type Expr struct {
	root *orExpr
}

// Parse parses input. Syntax errors carry the offending position.
func Parse(input string) (*Expr, error) {
	root, err := parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("expr: %w", err)
	}
	if err := root.validate(); err != nil {
		return nil, err
	}
	return &Expr{root: root}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(input string) *Expr {
	e, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return e
}

// String renders the expression in canonical form with explicit grouping.
func (e *Expr) String() string {
	return e.root.String()
}

// Apply ANDs the expression onto q's where-clauses.
func (e *Expr) Apply(q *query.QuerySpec) *query.QuerySpec {
	e.root.apply(q, query.And, false)
	return q
}

// Filter ANDs the expression onto q's filter context. A multi-term AND chain
// is grouped so it is promoted as one clause.
func (e *Expr) Filter(q *query.QuerySpec) *query.QuerySpec {
	return q.Filter(func(f *query.QuerySpec) {
		if e.root.single() {
			e.Apply(f)
			return
		}
		f.WhereNested(func(sub *query.QuerySpec) { e.Apply(sub) }, query.And)
	})
}

// single reports whether apply adds exactly one where-clause.
func (o *orExpr) single() bool {
	return len(o.And) > 1 || len(o.And[0].Terms) == 1
}

func (o *orExpr) validate() error {
	for _, a := range o.And {
		for _, t := range a.Terms {
			if err := t.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *term) validate() error {
	switch {
	case t.Not != nil:
		return t.Not.validate()
	case t.Group != nil:
		return t.Group.validate()
	case t.Cond.Like != nil:
		if _, ok := likePrefix(*t.Cond.Like); !ok {
			return fmt.Errorf("%w: %q", ErrUnsupportedPattern, *t.Cond.Like)
		}
	}
	return nil
}

func likePrefix(pattern string) (string, bool) {
	prefix, ok := strings.CutSuffix(pattern, "%")
	if !ok || strings.ContainsAny(prefix, "%_") {
		return "", false
	}
	return prefix, true
}

// add runs build and, when it appended exactly one where-clause, sets that
// clause's boolean and flips its negation if not is set.
func add(q *query.QuerySpec, b query.Boolean, not bool, build func()) {
	before := len(q.Wheres())
	build()
	wheres := q.Wheres()
	if len(wheres) != before+1 {
		return
	}
	meta := wheres[before].Meta()
	meta.Boolean = b
	meta.Not = meta.Not != not
}

func (o *orExpr) apply(q *query.QuerySpec, b query.Boolean, not bool) {
	if len(o.And) == 1 {
		o.And[0].apply(q, b, not)
		return
	}
	add(q, b, not, func() {
		q.WhereNested(func(sub *query.QuerySpec) {
			for i, a := range o.And {
				join := query.Or
				if i == 0 {
					join = query.And
				}
				a.apply(sub, join, false)
			}
		}, query.And)
	})
}

func (a *andExpr) apply(q *query.QuerySpec, b query.Boolean, not bool) {
	if len(a.Terms) == 1 {
		a.Terms[0].apply(q, b, not)
		return
	}
	if b == query.And && !not {
		for _, t := range a.Terms {
			t.apply(q, query.And, false)
		}
		return
	}
	add(q, b, not, func() {
		q.WhereNested(func(sub *query.QuerySpec) {
			for _, t := range a.Terms {
				t.apply(sub, query.And, false)
			}
		}, query.And)
	})
}

func (t *term) apply(q *query.QuerySpec, b query.Boolean, not bool) {
	switch {
	case t.Not != nil:
		t.Not.apply(q, b, !not)
	case t.Group != nil:
		t.Group.apply(q, b, not)
	default:
		t.Cond.apply(q, b, not)
	}
}

func (c *condition) apply(q *query.QuerySpec, b query.Boolean, not bool) {
	switch {
	case c.Between != nil:
		add(q, b, not, func() { q.WhereBetween(c.Field, c.Between.Low.get(), c.Between.High.get()) })
	case c.Like != nil:
		prefix, _ := likePrefix(*c.Like)
		add(q, b, not, func() { q.WherePrefix(c.Field, prefix) })
	case c.Null != nil:
		add(q, b, not != !c.Null.Not, func() { q.WhereExists(c.Field) })
	default:
		op := query.Operator(c.Op)
		if c.Op == "<>" {
			op = query.OpNeq
		}
		add(q, b, not, func() { q.Where(c.Field, op, c.Value.get()) })
	}
}

func (o *orExpr) String() string {
	parts := make([]string, len(o.And))
	for i, a := range o.And {
		parts[i] = a.String()
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (a *andExpr) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " AND ")
}

func (t *term) String() string {
	switch {
	case t.Not != nil:
		return "NOT " + t.Not.String()
	case t.Group != nil:
		return t.Group.String()
	}
	c := t.Cond
	switch {
	case c.Between != nil:
		return fmt.Sprintf("%s BETWEEN %s AND %s", c.Field, c.Between.Low, c.Between.High)
	case c.Like != nil:
		return fmt.Sprintf("%s LIKE %q", c.Field, *c.Like)
	case c.Null != nil && c.Null.Not:
		return c.Field + " IS NOT NULL"
	case c.Null != nil:
		return c.Field + " IS NULL"
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, c.Value)
}
