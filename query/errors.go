package query

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a clause built with the wrong shape or type.
	ErrInvalidArgument = errors.New("query: invalid argument")
	// ErrUnknownOperation is returned when a registry lookup names no builder.
	ErrUnknownOperation = errors.New("query: unknown operation")
	// ErrNoTarget indicates options were attached while the where-list was empty.
	ErrNoTarget = errors.New("query: no clause to decorate")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// fail records the first construction error. Later errors are dropped so the
// caller sees the call that broke the chain.
func (q *QuerySpec) fail(err error) *QuerySpec {
	if q.err == nil && err != nil {
		q.err = err
	}
	return q
}

// Err returns the first construction error recorded on the spec, if any.
func (q *QuerySpec) Err() error {
	return q.err
}
