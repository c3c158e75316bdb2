// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package query

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Clause is a single named fragment of a statement, such as a projection
// list, a filter or a limit. Each clause belongs to at most one statement.
type Clause interface {
	// Kind returns the clause kind.
	Kind() Kind

	// SetExpression replaces the clause expression. The accepted arguments
	// depend on the kind. Calling it without arguments resets the clause to
	// the default of its kind.
	SetExpression(args ...any) error

	// Render returns the clause text, or an empty string if the clause is
	// to be omitted from the statement.
	Render() (string, error)

	// Statement returns the statement the clause belongs to, or nil.
	Statement() *Statement

	// Set calls SetExpression and returns the owning statement so that
	// clause calls can be chained. Errors are recorded on the statement.
	// Set returns nil for a clause that has no statement.
	Set(args ...any) *Statement

	// copyFor returns an independent clone of the clause owned by s.
	copyFor(s *Statement) Clause
}

// Renderer is implemented by values which render to query text, such as
// statements. A Renderer used as an expression is treated as a nested
// statement.
type Renderer interface {
	Render() (string, error)
}

// NewClause returns a clause of the given kind, not attached to any
// statement, with its expression set from args.
func NewClause(kind Kind, args ...any) (Clause, error) {
	c, err := newClause(kind, nil)
	if err != nil {
		return nil, err
	}
	if err := c.SetExpression(args...); err != nil {
		return nil, err
	}
	return c, nil
}

// newClause returns a clause of the kind in its default state.
func newClause(kind Kind, owner *Statement) (Clause, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownClause, int(kind))
	}
	base := clauseBase{kind: kind, owner: owner}
	switch spec.shape {
	case stringShape, integerShape:
		return &ScalarClause{clauseBase: base, integer: spec.shape == integerShape}, nil
	case optionShape:
		return &OptionClause{clauseBase: base, options: spec.options, value: spec.options[0]}, nil
	case flagShape:
		return &FlagClause{clauseBase: base, on: true}, nil
	default:
		return &ListClause{clauseBase: base, required: spec.required, exprs: []any{}}, nil
	}
}

type clauseBase struct {
	kind  Kind
	owner *Statement
}

func (c *clauseBase) Kind() Kind {
	return c.kind
}

func (c *clauseBase) Statement() *Statement {
	return c.owner
}

// chain sets the expression of c and hands back its statement.
func chain(c Clause, args []any) *Statement {
	err := c.SetExpression(args...)
	s := c.Statement()
	if s != nil {
		s.record(c.Kind(), err)
	}
	return s
}

// ScalarClause holds a single string or integer expression.
type ScalarClause struct {
	clauseBase
	integer bool
	value   string
	set     bool
}

// SetExpression sets the value of the clause. No argument or a nil argument
// clears it. Integer clauses accept integers, booleans, integral floats and
// decimal strings.
func (c *ScalarClause) SetExpression(args ...any) error {
	if len(args) > 1 {
		return arityError(c.kind, len(args))
	}
	if len(args) == 0 || args[0] == nil {
		c.value, c.set = "", false
		return nil
	}
	if c.integer {
		n, err := toInteger(args[0])
		if err != nil {
			return typeError(c.kind, "needs an integer: %s", err)
		}
		c.value, c.set = strconv.FormatInt(n, 10), true
		return nil
	}
	if err := checkExpr(c.kind, args[0]); err != nil {
		return err
	}
	text, _, err := exprText(args[0])
	if err != nil {
		return err
	}
	c.value, c.set = text, true
	return nil
}

func (c *ScalarClause) Set(args ...any) *Statement {
	return chain(c, args)
}

func (c *ScalarClause) Render() (string, error) {
	if !c.set {
		return "", nil
	}
	return c.kind.Keyword() + " " + c.value, nil
}

func (c *ScalarClause) copyFor(s *Statement) Clause {
	dup := *c
	dup.owner = s
	return &dup
}

// OptionClause holds one value out of a fixed list of options.
type OptionClause struct {
	clauseBase
	options []string
	value   string
}

// SetExpression selects an option, matched without regard to case. With no
// argument the first option is selected and a nil argument clears the
// clause.
func (c *OptionClause) SetExpression(args ...any) error {
	if len(args) > 1 {
		return arityError(c.kind, len(args))
	}
	if len(args) == 0 {
		c.value = c.options[0]
		return nil
	}
	if args[0] == nil {
		c.value = ""
		return nil
	}
	want := fmt.Sprint(args[0])
	for _, option := range c.options {
		if strings.EqualFold(option, want) {
			c.value = option
			return nil
		}
	}
	return validationError(c.kind, "option %q is not one of %s", want, strings.Join(c.options, ", "))
}

func (c *OptionClause) Set(args ...any) *Statement {
	return chain(c, args)
}

func (c *OptionClause) Render() (string, error) {
	if c.value == "" {
		return "", nil
	}
	return c.kind.Keyword() + " " + c.value, nil
}

func (c *OptionClause) copyFor(s *Statement) Clause {
	dup := *c
	dup.owner = s
	return &dup
}

// FlagClause is rendered as its bare keyword when on.
type FlagClause struct {
	clauseBase
	on bool
}

// SetExpression turns the flag on or off according to the truth of the
// argument. With no argument the flag is turned on.
func (c *FlagClause) SetExpression(args ...any) error {
	if len(args) > 1 {
		return arityError(c.kind, len(args))
	}
	if len(args) == 0 {
		c.on = true
		return nil
	}
	c.on = truthy(args[0])
	return nil
}

func (c *FlagClause) Set(args ...any) *Statement {
	return chain(c, args)
}

func (c *FlagClause) Render() (string, error) {
	if !c.on {
		return "", nil
	}
	return c.kind.Keyword(), nil
}

func (c *FlagClause) copyFor(s *Statement) Clause {
	dup := *c
	dup.owner = s
	return &dup
}

// toInteger coerces v to an integer.
func toInteger(v any) (int64, error) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0, fmt.Errorf("%d is out of range", rv.Uint())
		}
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != float64(int64(f)) {
			return 0, fmt.Errorf("%v is not integral", f)
		}
		return int64(f), nil
	case reflect.String:
		n, err := strconv.ParseInt(strings.TrimSpace(rv.String()), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q", rv.String())
		}
		return n, nil
	}
	return 0, fmt.Errorf("got %T", v)
}

// truthy reports whether v counts as true: nil, false, zero numbers and empty
// strings and collections are false.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	}
	return true
}

// checkExpr rejects expressions that cannot be rendered.
func checkExpr(kind Kind, e any) error {
	if e == nil {
		return validationError(kind, "expressions must not be nil")
	}
	if _, ok := e.(Renderer); ok {
		rv := reflect.ValueOf(e)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return validationError(kind, "got a nil %T", e)
		}
	}
	return nil
}

// exprText returns the text of an expression and whether it is a nested
// statement.
func exprText(e any) (text string, nested bool, err error) {
	switch v := e.(type) {
	case Renderer:
		text, err = v.Render()
		return text, true, err
	case string:
		return v, isStatementText(v), nil
	}
	return fmt.Sprint(e), false, nil
}

// isStatementText reports whether the text is a rendered statement, that is
// its first word is SELECT or TRAVERSE.
func isStatementText(text string) bool {
	head := strings.TrimLeft(text, " \t\n")
	if end := strings.IndexAny(head, " \t\n"); end >= 0 {
		head = head[:end]
	}
	return strings.EqualFold(head, SelectKind.Keyword()) || strings.EqualFold(head, TraverseKind.Keyword())
}
