// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package query

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when an expression is well typed but not
	// acceptable to its clause, e.g. an unknown option or an empty required
	// list.
	ErrValidation = errors.New("invalid expression")

	// ErrType is returned when an expression cannot be coerced to the type
	// of its clause, or a clause is given the wrong number of arguments.
	ErrType = errors.New("wrong expression type")

	// ErrUnknownClause is returned when a clause name does not resolve to a
	// clause that is legal in the statement.
	ErrUnknownClause = errors.New("unknown clause")
)

func validationError(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s clause %s", ErrValidation, kind.Keyword(), fmt.Sprintf(format, args...))
}

func typeError(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s clause %s", ErrType, kind.Keyword(), fmt.Sprintf(format, args...))
}

func arityError(kind Kind, n int) error {
	return typeError(kind, "takes at most 1 expression, got %d", n)
}
