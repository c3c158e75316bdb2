// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package query

import (
	"bytes"
	"strings"
)

// Binding is a named, query scoped value of a LET clause. It is referenced
// elsewhere in the statement as $Name.
type Binding struct {
	Name  string
	Value any
}

// Bind returns a binding of value to name. A leading $ on the name is
// optional.
func Bind(name string, value any) Binding {
	return Binding{Name: name, Value: value}
}

// ListClause holds an ordered list of expressions. Expressions may be
// strings, nested statements or any other printable value. The expressions
// of a LET clause are bindings.
type ListClause struct {
	clauseBase
	// required is set if the clause cannot be rendered without
	// expressions.
	required bool
	// absent is set when the expression list has been cleared with nil.
	absent bool
	exprs  []any
}

// SetExpression replaces the expressions of the clause with args. A nil
// first argument clears the clause so that it is not rendered.
func (c *ListClause) SetExpression(args ...any) error {
	if len(args) > 0 && args[0] == nil {
		c.exprs, c.absent = nil, true
		return nil
	}
	exprs, err := c.merge([]any{}, args)
	if err != nil {
		return err
	}
	c.exprs, c.absent = exprs, false
	return nil
}

// Append adds an expression to the end of the list. Appending to a cleared
// clause starts a new list.
func (c *ListClause) Append(expr any) error {
	return c.Extend(expr)
}

// Extend adds the expressions to the end of the list. No expression is
// added if any of them is invalid.
func (c *ListClause) Extend(exprs ...any) error {
	if c.absent {
		return c.SetExpression(exprs...)
	}
	merged, err := c.merge(append([]any(nil), c.exprs...), exprs)
	if err != nil {
		return err
	}
	c.exprs = merged
	return nil
}

// merge returns exprs with add appended. Bindings replace earlier bindings
// of the same name.
func (c *ListClause) merge(exprs []any, add []any) ([]any, error) {
	if c.kind != LetKind {
		for _, e := range add {
			if err := checkExpr(c.kind, e); err != nil {
				return nil, err
			}
		}
		return append(exprs, add...), nil
	}
	for _, e := range add {
		b, err := toBinding(e)
		if err != nil {
			return nil, err
		}
		if b.Value == nil {
			return nil, validationError(LetKind, "binding %s needs a value", b.Name)
		}
		if err := checkExpr(LetKind, b.Value); err != nil {
			return nil, err
		}
		replaced := false
		for i, existing := range exprs {
			if existing.(Binding).Name == b.Name {
				exprs[i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			exprs = append(exprs, b)
		}
	}
	return exprs, nil
}

// Len returns the number of expressions in the clause.
func (c *ListClause) Len() int {
	return len(c.exprs)
}

func (c *ListClause) Set(args ...any) *Statement {
	return chain(c, args)
}

func (c *ListClause) Render() (string, error) {
	if c.absent {
		return "", nil
	}
	if len(c.exprs) == 0 {
		if c.required {
			return "", validationError(c.kind, "requires at least 1 expression, set it to nil to exclude it")
		}
		return c.kind.Keyword(), nil
	}
	switch c.kind {
	case FromKind:
		return c.renderFrom()
	case LetKind:
		return c.renderLet()
	}
	var b textBuilder
	b.write(c.kind.Keyword() + " ")
	if err := b.writeCommaSeparatedList(c.exprs, ", ", plainText); err != nil {
		return "", err
	}
	return b.text(), nil
}

func plainText(text string, _ bool) string {
	return text
}

// renderFrom renders several expressions as a list of record locators, and a
// single nested statement as a subquery.
func (c *ListClause) renderFrom() (string, error) {
	var b textBuilder
	b.write(c.kind.Keyword() + " ")
	if len(c.exprs) > 1 {
		b.write("[")
		if err := b.writeCommaSeparatedList(c.exprs, ", ", plainText); err != nil {
			return "", err
		}
		b.write("]")
		return b.text(), nil
	}
	err := b.writeCommaSeparatedList(c.exprs, "", func(text string, nested bool) string {
		if nested {
			return "(\n" + text + "\n)"
		}
		return text
	})
	if err != nil {
		return "", err
	}
	return b.text(), nil
}

func (c *ListClause) renderLet() (string, error) {
	var b textBuilder
	b.write(c.kind.Keyword() + " ")
	for i, e := range c.exprs {
		if i != 0 {
			b.write(",\n")
		}
		binding := e.(Binding)
		text, nested, err := exprText(binding.Value)
		if err != nil {
			return "", err
		}
		if nested {
			text = "(" + text + ")"
		}
		b.write(binding.Name + " = " + text)
	}
	return b.text(), nil
}

func (c *ListClause) copyFor(s *Statement) Clause {
	dup := *c
	dup.owner = s
	if c.exprs != nil {
		dup.exprs = append(make([]any, 0, len(c.exprs)), c.exprs...)
	}
	return &dup
}

// toBinding checks that e is a (name, value) pair and returns it as a
// Binding with a $ prefixed name.
func toBinding(e any) (Binding, error) {
	var b Binding
	switch v := e.(type) {
	case Binding:
		b = v
	case [2]any:
		name, ok := v[0].(string)
		if !ok {
			return Binding{}, bindingError(e)
		}
		b = Binding{Name: name, Value: v[1]}
	case []any:
		if len(v) != 2 {
			return Binding{}, bindingError(e)
		}
		name, ok := v[0].(string)
		if !ok {
			return Binding{}, bindingError(e)
		}
		b = Binding{Name: name, Value: v[1]}
	case [2]string:
		b = Binding{Name: v[0], Value: v[1]}
	case []string:
		if len(v) != 2 {
			return Binding{}, bindingError(e)
		}
		b = Binding{Name: v[0], Value: v[1]}
	default:
		return Binding{}, bindingError(e)
	}
	name := strings.TrimLeft(b.Name, "$")
	if name == "" {
		return Binding{}, validationError(LetKind, "binding needs a name")
	}
	b.Name = "$" + name
	return b, nil
}

func bindingError(e any) error {
	return validationError(LetKind, "expressions must be (name, expression) pairs, got %T; use query.Bind", e)
}

// textBuilder accumulates query text.
type textBuilder struct {
	buf bytes.Buffer
}

func (b *textBuilder) write(s string) {
	b.buf.WriteString(s)
}

// writeCommaSeparatedList writes out the rendered expressions separated by
// sep, passing each through the formatter.
func (b *textBuilder) writeCommaSeparatedList(exprs []any, sep string, formatter func(text string, nested bool) string) error {
	for i, e := range exprs {
		if i != 0 {
			b.buf.WriteString(sep)
		}
		text, nested, err := exprText(e)
		if err != nil {
			return err
		}
		b.buf.WriteString(formatter(text, nested))
	}
	return nil
}

func (b *textBuilder) text() string {
	return b.buf.String()
}
