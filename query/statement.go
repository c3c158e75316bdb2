// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package query

import (
	"fmt"
	"strings"
)

// syntax is the ordered list of clause kinds legal in a statement flavor.
type syntax struct {
	name  string
	kinds []Kind
}

var selectSyntax = &syntax{
	name: "SELECT",
	kinds: []Kind{
		SelectKind,
		FromKind,
		LetKind,
		WhereKind,
		GroupByKind,
		OrderByKind,
		UnwindKind,
		SkipKind,
		LimitKind,
		FetchPlanKind,
		TimeoutKind,
		LockKind,
		ParallelKind,
		NoCacheKind,
	},
}

var traverseSyntax = &syntax{
	name: "TRAVERSE",
	kinds: []Kind{
		TraverseKind,
		FromKind,
		MaxDepthKind,
		WhileKind,
		LimitKind,
		StrategyKind,
	},
}

func (syn *syntax) legal(k Kind) bool {
	for _, legal := range syn.kinds {
		if legal == k {
			return true
		}
	}
	return false
}

// Statement is an ordered composition of clauses. Whatever order clauses are
// set in, they are always rendered in the fixed order of the statement
// flavor.
//
// Errors met while building are kept on the statement and returned by Err
// and Render. An error setting a clause is cleared by setting that clause
// again successfully, while an unknown clause name or an illegal Attach
// stays for the life of the statement.
//
// A Statement is a builder. It must not be modified concurrently.
type Statement struct {
	syntax  *syntax
	clauses map[Kind]Clause
	// errs holds the outstanding build errors in the order they occurred.
	errs []buildError
}

// buildError is an error met while building a statement. Errors of a
// clause have its kind, others are permanent.
type buildError struct {
	kind      Kind
	permanent bool
	err       error
}

func (s *Statement) init(syn *syntax, args []any) {
	s.syntax = syn
	s.clauses = make(map[Kind]Clause, len(syn.kinds))
	s.set(syn.kinds[0], args)
}

// Clause returns the clause with the given name, creating it if needed.
// Names are matched ignoring case, spaces, underscores and hyphens, so
// "ORDER BY", "orderby" and "order_by" are the same clause.
func (s *Statement) Clause(name string) (Clause, error) {
	k, ok := LookupKind(name)
	if !ok || !s.syntax.legal(k) {
		return nil, fmt.Errorf("%w: %q is not a clause of %s statements", ErrUnknownClause, name, s.syntax.name)
	}
	return s.clause(k), nil
}

// clause returns the clause of kind k, which must be legal in s, creating it
// in its default state if it is not yet set.
func (s *Statement) clause(k Kind) Clause {
	c, ok := s.clauses[k]
	if !ok {
		// Kinds in a syntax always exist in kindSpecs.
		c, _ = newClause(k, s)
		s.clauses[k] = c
	}
	return c
}

// Set sets the expression of the named clause and returns the statement.
// An unknown clause name or an invalid expression is recorded as the
// statement error.
func (s *Statement) Set(name string, args ...any) *Statement {
	c, err := s.Clause(name)
	if err != nil {
		s.latch(err)
		return s
	}
	return c.Set(args...)
}

// Attach puts c into the slot of its kind. A clause that belongs to another
// statement, or to none, is copied first so that the two statements never
// share expressions.
func (s *Statement) Attach(c Clause) *Statement {
	if !s.syntax.legal(c.Kind()) {
		s.latch(fmt.Errorf("%w: %s is not a clause of %s statements", ErrUnknownClause, c.Kind(), s.syntax.name))
		return s
	}
	if c.Statement() != s {
		c = c.copyFor(s)
	}
	s.clauses[c.Kind()] = c
	s.record(c.Kind(), nil)
	return s
}

func (s *Statement) set(k Kind, args []any) {
	s.record(k, s.clause(k).SetExpression(args...))
}

// latch records an error that no later call can clear.
func (s *Statement) latch(err error) {
	if err != nil {
		s.errs = append(s.errs, buildError{permanent: true, err: err})
	}
}

// record sets the outcome of the last change to the clause of kind k. A
// nil err clears an earlier error of the clause.
func (s *Statement) record(k Kind, err error) {
	for i, e := range s.errs {
		if e.permanent || e.kind != k {
			continue
		}
		if err == nil {
			s.errs = append(s.errs[:i], s.errs[i+1:]...)
		} else {
			s.errs[i].err = err
		}
		return
	}
	if err != nil {
		s.errs = append(s.errs, buildError{kind: k, err: err})
	}
}

// Err returns the earliest outstanding error met while building the
// statement.
func (s *Statement) Err() error {
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[0].err
}

// Render returns the statement text. Each clause is rendered on its own line
// in the order of the statement flavor, and omitted clauses leave no blank
// lines. No text is returned if any clause is in error.
func (s *Statement) Render() (string, error) {
	if err := s.Err(); err != nil {
		return "", err
	}
	var lines []string
	for _, k := range s.syntax.kinds {
		c, ok := s.clauses[k]
		if !ok {
			continue
		}
		text, err := c.Render()
		if err != nil {
			return "", err
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// MustRender is the same as [Statement.Render] except that it panics on
// error.
func (s *Statement) MustRender() string {
	text, err := s.Render()
	if err != nil {
		panic(err)
	}
	return text
}

// String returns the statement text, or an empty string if it cannot be
// rendered. Use [Statement.Render] to get the error.
func (s *Statement) String() string {
	text, _ := s.Render()
	return text
}

// Format renders the statement and replaces each {name} placeholder with
// values[name]. Placeholders without a value are left as they are.
func (s *Statement) Format(values map[string]string) (string, error) {
	text, err := s.Render()
	if err != nil {
		return "", err
	}
	return Substitute(text, values), nil
}

// Substitute replaces each {name} placeholder in text with values[name].
func Substitute(text string, values map[string]string) string {
	if len(values) == 0 {
		return text
	}
	oldnew := make([]string, 0, 2*len(values))
	for name, value := range values {
		oldnew = append(oldnew, "{"+name+"}", value)
	}
	return strings.NewReplacer(oldnew...).Replace(text)
}

// SelectStatement is a SELECT statement.
type SelectStatement struct {
	Statement
}

// Select returns a SELECT statement with the projection set to exprs.
func Select(exprs ...any) *SelectStatement {
	s := &SelectStatement{}
	s.init(selectSyntax, exprs)
	return s
}

// Select replaces the projection.
func (s *SelectStatement) Select(exprs ...any) *SelectStatement {
	s.set(SelectKind, exprs)
	return s
}

// From sets the target of the query: a class, a record locator, a list of
// record locators or a nested statement.
func (s *SelectStatement) From(exprs ...any) *SelectStatement {
	s.set(FromKind, exprs)
	return s
}

// Let sets the bindings of the statement. Each binding is a [Binding] or a
// two element (name, value) pair.
func (s *SelectStatement) Let(bindings ...any) *SelectStatement {
	s.set(LetKind, bindings)
	return s
}

func (s *SelectStatement) Where(exprs ...any) *SelectStatement {
	s.set(WhereKind, exprs)
	return s
}

func (s *SelectStatement) GroupBy(expr ...any) *SelectStatement {
	s.set(GroupByKind, expr)
	return s
}

func (s *SelectStatement) OrderBy(exprs ...any) *SelectStatement {
	s.set(OrderByKind, exprs)
	return s
}

func (s *SelectStatement) Unwind(expr ...any) *SelectStatement {
	s.set(UnwindKind, expr)
	return s
}

func (s *SelectStatement) Skip(n ...any) *SelectStatement {
	s.set(SkipKind, n)
	return s
}

func (s *SelectStatement) Limit(n ...any) *SelectStatement {
	s.set(LimitKind, n)
	return s
}

func (s *SelectStatement) FetchPlan(plan ...any) *SelectStatement {
	s.set(FetchPlanKind, plan)
	return s
}

// Timeout is passed through to the database as is.
func (s *SelectStatement) Timeout(timeout ...any) *SelectStatement {
	s.set(TimeoutKind, timeout)
	return s
}

// Lock sets the lock mode, "default" or "record".
func (s *SelectStatement) Lock(mode ...any) *SelectStatement {
	s.set(LockKind, mode)
	return s
}

func (s *SelectStatement) Parallel(on ...any) *SelectStatement {
	s.set(ParallelKind, on)
	return s
}

func (s *SelectStatement) NoCache(on ...any) *SelectStatement {
	s.set(NoCacheKind, on)
	return s
}

// TraverseStatement is a TRAVERSE statement.
type TraverseStatement struct {
	Statement
}

// Traverse returns a TRAVERSE statement with the traversal targets set to
// exprs.
func Traverse(exprs ...any) *TraverseStatement {
	s := &TraverseStatement{}
	s.init(traverseSyntax, exprs)
	return s
}

// Traverse replaces the traversal targets.
func (s *TraverseStatement) Traverse(exprs ...any) *TraverseStatement {
	s.set(TraverseKind, exprs)
	return s
}

func (s *TraverseStatement) From(exprs ...any) *TraverseStatement {
	s.set(FromKind, exprs)
	return s
}

func (s *TraverseStatement) MaxDepth(n ...any) *TraverseStatement {
	s.set(MaxDepthKind, n)
	return s
}

func (s *TraverseStatement) While(exprs ...any) *TraverseStatement {
	s.set(WhileKind, exprs)
	return s
}

func (s *TraverseStatement) Limit(n ...any) *TraverseStatement {
	s.set(LimitKind, n)
	return s
}

// Strategy sets the traversal strategy, "DEPTH_FIRST" or "BREADTH_FIRST".
func (s *TraverseStatement) Strategy(strategy ...any) *TraverseStatement {
	s.set(StrategyKind, strategy)
	return s
}
