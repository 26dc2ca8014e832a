package query

import (
	"fmt"
	"reflect"

	"github.com/paulmach/orb"
)

// Op names a clause builder in the registry.
type Op string

const (
	OpWhere            Op = "where"
	OpOrWhere          Op = "orWhere"
	OpWhereNot         Op = "whereNot"
	OpWhereExists      Op = "whereExists"
	OpWhereBetween     Op = "whereBetween"
	OpWhereNotBetween  Op = "whereNotBetween"
	OpWhereGeoDistance Op = "whereGeoDistance"
	OpWhereGeoBoundsIn Op = "whereGeoBoundsIn"
	OpWhereDate        Op = "whereDate"
	OpWherePrefix      Op = "wherePrefix"
	OpSearch           Op = "search"
	OpWhereType        Op = "whereType"
	OpFunctionScore    Op = "functionScore"
	OpWhereNestedDoc   Op = "whereNestedDoc"
	OpWhereParent      Op = "whereParent"
	OpWhereChild       Op = "whereChild"
	OpWhereNested      Op = "whereNested"

	// OpBasic aliases OpWhere for WhereWithOptions.
	OpBasic Op = "Basic"
)

// BuilderFunc applies a clause builder to q using loosely typed arguments.
type BuilderFunc func(q *QuerySpec, args ...any) error

var registry = map[Op]BuilderFunc{
	OpWhere:    comparison((*QuerySpec).Where),
	OpBasic:    comparison((*QuerySpec).Where),
	OpOrWhere:  comparison((*QuerySpec).OrWhere),
	OpWhereNot: comparison((*QuerySpec).WhereNot),
	OpWhereExists: func(q *QuerySpec, args ...any) error {
		column, err := argAt[string](OpWhereExists, args, 0, 1)
		if err != nil {
			return err
		}
		q.WhereExists(column)
		return nil
	},
	OpWhereBetween:    between((*QuerySpec).WhereBetween),
	OpWhereNotBetween: between((*QuerySpec).WhereNotBetween),
	OpWhereGeoDistance: func(q *QuerySpec, args ...any) error {
		column, err := argAt[string](OpWhereGeoDistance, args, 0, 3)
		if err != nil {
			return err
		}
		location, err := argAt[orb.Geometry](OpWhereGeoDistance, args, 1, 3)
		if err != nil {
			return err
		}
		distance, err := argAt[string](OpWhereGeoDistance, args, 2, 3)
		if err != nil {
			return err
		}
		q.WhereGeoDistance(column, location, distance)
		return nil
	},
	OpWhereGeoBoundsIn: func(q *QuerySpec, args ...any) error {
		column, err := argAt[string](OpWhereGeoBoundsIn, args, 0, 2)
		if err != nil {
			return err
		}
		bounds, err := argAt[orb.Bound](OpWhereGeoBoundsIn, args, 1, 2)
		if err != nil {
			return err
		}
		q.WhereGeoBoundsIn(column, bounds)
		return nil
	},
	OpWhereDate: func(q *QuerySpec, args ...any) error {
		column, err := argAt[string](OpWhereDate, args, 0, 3)
		if err != nil {
			return err
		}
		op, err := operatorAt(OpWhereDate, args, 1)
		if err != nil {
			return err
		}
		q.WhereDate(column, op, args[2])
		return nil
	},
	OpWherePrefix: func(q *QuerySpec, args ...any) error {
		column, err := argAt[string](OpWherePrefix, args, 0, 2)
		if err != nil {
			return err
		}
		value, err := argAt[string](OpWherePrefix, args, 1, 2)
		if err != nil {
			return err
		}
		q.WherePrefix(column, value)
		return nil
	},
	OpSearch: func(q *QuerySpec, args ...any) error {
		if len(args) == 0 || len(args) > 2 {
			return invalidArgument("%s: expected 1 or 2 arguments, got %d", OpSearch, len(args))
		}
		value, err := argAt[string](OpSearch, args, 0, len(args))
		if err != nil {
			return err
		}
		var opts Options
		if len(args) == 2 {
			if opts, err = optionsAt(OpSearch, args, 1); err != nil {
				return err
			}
		}
		q.Search(value, opts)
		return nil
	},
	OpWhereType: func(q *QuerySpec, args ...any) error {
		value, err := argAt[string](OpWhereType, args, 0, 1)
		if err != nil {
			return err
		}
		q.WhereType(value)
		return nil
	},
	OpFunctionScore: func(q *QuerySpec, args ...any) error {
		functionType, err := argAt[string](OpFunctionScore, args, 0, 2)
		if err != nil {
			return err
		}
		params, err := optionsAt(OpFunctionScore, args, 1)
		if err != nil {
			return err
		}
		q.FunctionScore(functionType, params)
		return nil
	},
	OpWhereNestedDoc: func(q *QuerySpec, args ...any) error {
		path, err := argAt[string](OpWhereNestedDoc, args, 0, 2)
		if err != nil {
			return err
		}
		var sub SubQuery
		switch v := args[1].(type) {
		case SubQuery:
			sub = v
		case func(*QuerySpec):
			sub = Scope(v)
		case *QuerySpec:
			sub = Prebuilt(v)
		default:
			return invalidArgument("%s: argument 2 must be a sub-query, got %T", OpWhereNestedDoc, args[1])
		}
		q.WhereNestedDoc(path, sub)
		return nil
	},
	OpWhereParent: relation((*QuerySpec).WhereParent, OpWhereParent),
	OpWhereChild:  relation((*QuerySpec).WhereChild, OpWhereChild),
	OpWhereNested: func(q *QuerySpec, args ...any) error {
		if len(args) == 0 || len(args) > 2 {
			return invalidArgument("%s: expected 1 or 2 arguments, got %d", OpWhereNested, len(args))
		}
		build, err := argAt[func(*QuerySpec)](OpWhereNested, args, 0, len(args))
		if err != nil {
			return err
		}
		boolean := And
		if len(args) == 2 {
			if boolean, err = booleanAt(OpWhereNested, args, 1); err != nil {
				return err
			}
		}
		q.WhereNested(build, boolean)
		return nil
	},
}

// Lookup returns the builder registered under op.
func Lookup(op Op) (BuilderFunc, error) {
	fn, ok := registry[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	return fn, nil
}

// Apply runs the builder registered under op against q.
func (q *QuerySpec) Apply(op Op, args ...any) *QuerySpec {
	fn, err := Lookup(op)
	if err != nil {
		return q.fail(err)
	}
	return q.fail(fn(q, args...))
}

// comparison adapts (column, value) and (column, operator, value) calls.
func comparison(method func(*QuerySpec, string, Operator, any) *QuerySpec) BuilderFunc {
	return func(q *QuerySpec, args ...any) error {
		if len(args) != 2 && len(args) != 3 {
			return invalidArgument("where: expected 2 or 3 arguments, got %d", len(args))
		}
		column, ok := args[0].(string)
		if !ok {
			return invalidArgument("where: argument 1 must be string, got %T", args[0])
		}
		if len(args) == 2 {
			method(q, column, OpEq, args[1])
			return nil
		}
		op, err := operatorAt("where", args, 1)
		if err != nil {
			return err
		}
		method(q, column, op, args[2])
		return nil
	}
}

func between(method func(*QuerySpec, string, any, any) *QuerySpec) BuilderFunc {
	return func(q *QuerySpec, args ...any) error {
		column, err := argAt[string](OpWhereBetween, args, 0, 3)
		if err != nil {
			return err
		}
		method(q, column, args[1], args[2])
		return nil
	}
}

func relation(method func(*QuerySpec, string, func(*QuerySpec), Options) *QuerySpec, op Op) BuilderFunc {
	return func(q *QuerySpec, args ...any) error {
		if len(args) != 2 && len(args) != 3 {
			return invalidArgument("%s: expected 2 or 3 arguments, got %d", op, len(args))
		}
		documentType, err := argAt[string](op, args, 0, len(args))
		if err != nil {
			return err
		}
		build, err := argAt[func(*QuerySpec)](op, args, 1, len(args))
		if err != nil {
			return err
		}
		var opts Options
		if len(args) == 3 {
			if opts, err = optionsAt(op, args, 2); err != nil {
				return err
			}
		}
		method(q, documentType, build, opts)
		return nil
	}
}

func arity(op Op, args []any, want int) error {
	if len(args) != want {
		return invalidArgument("%s: expected %d arguments, got %d", op, want, len(args))
	}
	return nil
}

// argAt checks the argument count and converts args[i] to T.
func argAt[T any](op Op, args []any, i, want int) (T, error) {
	var zero T
	if err := arity(op, args, want); err != nil {
		return zero, err
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, invalidArgument("%s: argument %d must be %s, got %T", op, i+1, reflect.TypeFor[T](), args[i])
	}
	return v, nil
}

func operatorAt(op Op, args []any, i int) (Operator, error) {
	switch v := args[i].(type) {
	case Operator:
		return v, nil
	case string:
		return Operator(v), nil
	}
	return "", invalidArgument("%s: argument %d must be an operator, got %T", op, i+1, args[i])
}

func optionsAt(op Op, args []any, i int) (Options, error) {
	switch v := args[i].(type) {
	case nil:
		return nil, nil
	case Options:
		return v, nil
	case map[string]any:
		return Options(v), nil
	}
	return nil, invalidArgument("%s: argument %d must be an options map, got %T", op, i+1, args[i])
}

func booleanAt(op Op, args []any, i int) (Boolean, error) {
	switch v := args[i].(type) {
	case Boolean:
		return v, nil
	case string:
		return Boolean(v), nil
	}
	return "", invalidArgument("%s: argument %d must be a boolean, got %T", op, i+1, args[i])
}
