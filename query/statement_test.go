// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package query_test

import (
	"errors"
	"math"

	. "gopkg.in/check.v1"

	"github.com/canonical/graphair/query"
)

type StatementSuite struct{}

var _ = Suite(&StatementSuite{})

func (s *StatementSuite) TestRender(c *C) {
	var tests = []struct {
		summary  string
		stmt     query.Renderer
		expected string
	}{{
		summary:  "select with filter",
		stmt:     query.Select("*").From("V").Where("type = 'Person'"),
		expected: "SELECT *\nFROM V\nWHERE type = 'Person'",
	}, {
		summary:  "nested statement in from",
		stmt:     query.Select("*").From(query.Select("*").From("V")),
		expected: "SELECT *\nFROM (\nSELECT *\nFROM V\n)",
	}, {
		summary:  "nested statement text in from",
		stmt:     query.Select("*").From("select * from V"),
		expected: "SELECT *\nFROM (\nselect * from V\n)",
	}, {
		summary:  "class name starting with a keyword is not nested",
		stmt:     query.Select("*").From("Selection"),
		expected: "SELECT *\nFROM Selection",
	}, {
		summary:  "record locator list",
		stmt:     query.Select().From("#9:1", "#9:2"),
		expected: "SELECT\nFROM [#9:1, #9:2]",
	}, {
		summary:  "nested statement in let",
		stmt:     query.Select("*", "$friends").From("V").Let(query.Bind("friends", query.Select().From("$parent.$current.out()"))),
		expected: "SELECT *, $friends\nFROM V\nLET $friends = (SELECT\nFROM $parent.$current.out())",
	}, {
		summary:  "let bindings overwrite by name",
		stmt:     query.Select("*").From("V").Let([2]any{"a", "1"}, query.Bind("$b", 2), []any{"$a", "3"}),
		expected: "SELECT *\nFROM V\nLET $a = 3,\n$b = 2",
	}, {
		summary: "every select clause",
		stmt: query.Select("name", "age").
			From("Person").
			Let(query.Bind("x", 1)).
			Where("age > 18").
			GroupBy("city").
			OrderBy("name DESC", "age").
			Unwind("tags").
			Skip(10).
			Limit("20").
			FetchPlan("*:-1").
			Timeout(5000).
			Lock("RECORD").
			Parallel().
			NoCache(true),
		expected: "SELECT name, age\nFROM Person\nLET $x = 1\nWHERE age > 18\nGROUP BY city\nORDER BY name DESC, age\nUNWIND tags\nSKIP 10\nLIMIT 20\nFETCHPLAN *:-1\nTIMEOUT 5000\nLOCK record\nPARALLEL\nNOCACHE",
	}, {
		summary:  "cleared clauses leave no lines",
		stmt:     query.Select("*").From("V").Where(nil).Limit(nil).Parallel(false).Lock(nil),
		expected: "SELECT *\nFROM V",
	}, {
		summary:  "integer coercion",
		stmt:     query.Select().From("V").Skip(true).Limit(2.0),
		expected: "SELECT\nFROM V\nSKIP 1\nLIMIT 2",
	}, {
		summary:  "traverse",
		stmt:     query.Traverse("out()").Strategy("breadth_first").Limit(5).While("$depth < 3").MaxDepth(" 3 ").From("#9:1"),
		expected: "TRAVERSE out()\nFROM #9:1\nMAXDEPTH 3\nWHILE $depth < 3\nLIMIT 5\nSTRATEGY BREADTH_FIRST",
	}, {
		summary:  "traverse nested in select",
		stmt:     query.Select().From(query.Traverse("*").From("#9:1").Strategy()),
		expected: "SELECT\nFROM (\nTRAVERSE *\nFROM #9:1\nSTRATEGY DEPTH_FIRST\n)",
	}}

	for i, test := range tests {
		text, err := test.stmt.Render()
		if err != nil {
			c.Errorf("test %d failed (Render):\nsummary: %s\nexpected: %s\nerr: %s\n", i, test.summary, test.expected, err)
		} else if text != test.expected {
			c.Errorf("test %d failed (Render):\nsummary: %s\nexpected: %s\nactual:   %s\n", i, test.summary, test.expected, text)
		}
	}
}

func (s *StatementSuite) TestRenderIsOrderFixed(c *C) {
	first := query.Select("*").
		From("Person").
		Let(query.Bind("n", "name")).
		Where("age > 18").
		GroupBy("city").
		OrderBy("name").
		Unwind("tags").
		Skip(1).
		Limit(2).
		FetchPlan("*:0").
		Timeout(100).
		Lock("record").
		Parallel().
		NoCache()
	second := query.Select("*").
		NoCache().
		Parallel().
		Lock("record").
		Timeout(100).
		FetchPlan("*:0").
		Limit(2).
		Skip(1).
		Unwind("tags").
		OrderBy("name").
		GroupBy("city").
		Where("age > 18").
		Let(query.Bind("n", "name")).
		From("Person")

	c.Assert(second.MustRender(), Equals, first.MustRender())

	third := query.Traverse("out()").Limit(3).From("V")
	fourth := query.Traverse("out()").From("V").Limit(3)
	c.Assert(third.String(), Equals, fourth.String())
}

func (s *StatementSuite) TestRenderErrors(c *C) {
	var tests = []struct {
		summary string
		stmt    query.Renderer
		err     string
	}{{
		summary: "integer clause given a word",
		stmt:    query.Select("*").From("V").Limit("Foo"),
		err:     `wrong expression type: LIMIT clause needs an integer: cannot parse "Foo"`,
	}, {
		summary: "integer clause given a list",
		stmt:    query.Select("*").From("V").Skip([]int{1}),
		err:     `wrong expression type: SKIP clause needs an integer: got \[\]int`,
	}, {
		summary: "integer clause given a fraction",
		stmt:    query.Traverse("*").From("V").MaxDepth(2.5),
		err:     `wrong expression type: MAXDEPTH clause needs an integer: 2.5 is not integral`,
	}, {
		summary: "integer clause given an unsigned value out of range",
		stmt:    query.Select("*").From("V").Limit(uint64(math.MaxUint64)),
		err:     `wrong expression type: LIMIT clause needs an integer: 18446744073709551615 is out of range`,
	}, {
		summary: "too many arguments",
		stmt:    query.Select("*").From("V").Limit(1, 2),
		err:     `wrong expression type: LIMIT clause takes at most 1 expression, got 2`,
	}, {
		summary: "unknown option",
		stmt:    query.Select("*").From("V").Lock("table"),
		err:     `invalid expression: LOCK clause option "table" is not one of default, record`,
	}, {
		summary: "binding without a name",
		stmt:    query.Select("*").From("V").Let("foo"),
		err:     `invalid expression: LET clause expressions must be \(name, expression\) pairs, got string; use query.Bind`,
	}, {
		summary: "binding without a value",
		stmt:    query.Select("*").From("V").Let(query.Bind("a", nil)),
		err:     `invalid expression: LET clause binding \$a needs a value`,
	}, {
		summary: "nil nested statement",
		stmt:    query.Select("*").From((*query.SelectStatement)(nil)),
		err:     `invalid expression: FROM clause got a nil \*query.SelectStatement`,
	}, {
		summary: "nil nested statement in a binding",
		stmt:    query.Select("*").From("V").Let(query.Bind("a", (*query.TraverseStatement)(nil))),
		err:     `invalid expression: LET clause got a nil \*query.TraverseStatement`,
	}, {
		summary: "nil among list expressions",
		stmt:    query.Select("*").From("V").Where("a = 1", nil),
		err:     `invalid expression: WHERE clause expressions must not be nil`,
	}, {
		summary: "required list left empty",
		stmt:    query.Select("*").From("V").Where(),
		err:     `invalid expression: WHERE clause requires at least 1 expression, set it to nil to exclude it`,
	}, {
		summary: "traverse without targets",
		stmt:    query.Traverse().From("V"),
		err:     `invalid expression: TRAVERSE clause requires at least 1 expression, set it to nil to exclude it`,
	}, {
		summary: "error in nested statement",
		stmt:    query.Select("*").From(query.Select("*").From()),
		err:     `invalid expression: FROM clause requires at least 1 expression, set it to nil to exclude it`,
	}, {
		summary: "first error wins",
		stmt:    query.Select("*").From("V").Limit("Foo").Lock("table"),
		err:     `wrong expression type: LIMIT clause needs an integer: cannot parse "Foo"`,
	}}

	for _, test := range tests {
		text, err := test.stmt.Render()
		c.Check(err, ErrorMatches, test.err, Commentf("summary: %s", test.summary))
		c.Check(text, Equals, "", Commentf("summary: %s", test.summary))
	}
}

func (s *StatementSuite) TestErrorKinds(c *C) {
	q := query.Select("*").From("V").Limit("Foo")
	c.Assert(errors.Is(q.Err(), query.ErrType), Equals, true)
	c.Assert(q.String(), Equals, "")

	q = query.Select("*").From("V").Lock("table")
	c.Assert(errors.Is(q.Err(), query.ErrValidation), Equals, true)

	// Emptiness is only detected at render time.
	q = query.Select("*").From("V").Where()
	c.Assert(q.Err(), IsNil)
	_, err := q.Render()
	c.Assert(errors.Is(err, query.ErrValidation), Equals, true)

	c.Assert(func() { q.MustRender() }, PanicMatches, `invalid expression: WHERE clause .*`)
}

func (s *StatementSuite) TestErrorClearedBySettingClauseAgain(c *C) {
	q := query.Select("*").From("V").Limit("x")
	c.Assert(errors.Is(q.Err(), query.ErrType), Equals, true)

	q.Limit(5)
	c.Assert(q.Err(), IsNil)
	c.Assert(q.MustRender(), Equals, "SELECT *\nFROM V\nLIMIT 5")

	// Only the failed clause clears its own error.
	q = query.Select("*").From("V").Limit("x").Lock("table")
	q.Lock("record")
	c.Assert(q.Err(), ErrorMatches, `wrong expression type: LIMIT clause .*`)
	q.Limit(nil)
	c.Assert(q.Err(), IsNil)

	// A failed reset replaces the error of the clause.
	q = query.Select("*").From("V").Limit("x").Limit("y")
	c.Assert(q.Err(), ErrorMatches, `wrong expression type: LIMIT clause needs an integer: cannot parse "y"`)

	// Unknown clauses are never cleared.
	t := query.Traverse("*").From("V")
	t.Set("where", "x = 1")
	t.Limit(3)
	c.Assert(t.Err(), ErrorMatches, `unknown clause: .*`)
}

func (s *StatementSuite) TestClauseByName(c *C) {
	q := query.Select("*").From("V")
	first, err := q.Clause("ORDER BY")
	c.Assert(err, IsNil)
	c.Assert(first.Kind(), Equals, query.OrderByKind)
	c.Assert(first.Statement(), Equals, &q.Statement)

	for _, name := range []string{"orderby", "order_by", "Order-By", "order by"} {
		cl, err := q.Clause(name)
		c.Assert(err, IsNil)
		c.Assert(cl, Equals, first, Commentf("name: %s", name))
	}

	from, err := q.Clause("from_")
	c.Assert(err, IsNil)
	c.Assert(from.Kind(), Equals, query.FromKind)
}

func (s *StatementSuite) TestClauseByNameUnknown(c *C) {
	q := query.Select("*")
	_, err := q.Clause("frobnicate")
	c.Assert(err, ErrorMatches, `unknown clause: "frobnicate" is not a clause of SELECT statements`)
	c.Assert(errors.Is(err, query.ErrUnknownClause), Equals, true)

	_, err = q.Clause("max_depth")
	c.Assert(err, ErrorMatches, `unknown clause: "max_depth" is not a clause of SELECT statements`)

	t := query.Traverse("*").From("V")
	t.Set("where", "x = 1")
	c.Assert(t.Err(), ErrorMatches, `unknown clause: "where" is not a clause of TRAVERSE statements`)
}

func (s *StatementSuite) TestChainThroughClauses(c *C) {
	q := query.Select("*").From("V")
	limit, err := q.Clause("limit")
	c.Assert(err, IsNil)

	stmt := limit.Set(5).Set("skip", 2).Set("order_by", "name")
	c.Assert(stmt, Equals, &q.Statement)
	c.Assert(q.MustRender(), Equals, "SELECT *\nFROM V\nORDER BY name\nSKIP 2\nLIMIT 5")

	// Setting again replaces the expression.
	limit.Set(7)
	c.Assert(q.MustRender(), Equals, "SELECT *\nFROM V\nORDER BY name\nSKIP 2\nLIMIT 7")
}

func (s *StatementSuite) TestAttachCopiesForeignClause(c *C) {
	a := query.Select("*").From("V").Where("x = 1")
	where, err := a.Clause("where")
	c.Assert(err, IsNil)

	b := query.Select("*").From("E")
	b.Attach(where)
	attached, err := b.Clause("where")
	c.Assert(err, IsNil)
	c.Assert(attached, Not(Equals), where)
	c.Assert(attached.Statement(), Equals, &b.Statement)

	c.Assert(attached.(*query.ListClause).Append("y = 2"), IsNil)
	c.Assert(a.MustRender(), Equals, "SELECT *\nFROM V\nWHERE x = 1")
	c.Assert(b.MustRender(), Equals, "SELECT *\nFROM E\nWHERE x = 1, y = 2")
}

func (s *StatementSuite) TestAttachOwnClause(c *C) {
	q := query.Select("*").From("V").Limit(3)
	limit, err := q.Clause("limit")
	c.Assert(err, IsNil)
	q.Attach(limit)
	again, err := q.Clause("limit")
	c.Assert(err, IsNil)
	c.Assert(again, Equals, limit)
}

func (s *StatementSuite) TestAttachUnownedClause(c *C) {
	limit, err := query.NewClause(query.LimitKind, 3)
	c.Assert(err, IsNil)
	c.Assert(limit.Statement(), IsNil)

	a := query.Select("*").From("V")
	a.Attach(limit)
	b := query.Traverse("out()").From("V")
	b.Attach(limit)

	c.Assert(limit.SetExpression(9), IsNil)
	c.Assert(a.MustRender(), Equals, "SELECT *\nFROM V\nLIMIT 3")
	c.Assert(b.MustRender(), Equals, "TRAVERSE out()\nFROM V\nLIMIT 3")
}

func (s *StatementSuite) TestAttachIllegalKind(c *C) {
	skip, err := query.NewClause(query.SkipKind, 1)
	c.Assert(err, IsNil)
	q := query.Traverse("out()").From("V").Attach(skip)
	c.Assert(q.Err(), ErrorMatches, `unknown clause: SKIP is not a clause of TRAVERSE statements`)
}

func (s *StatementSuite) TestFormat(c *C) {
	q := query.Select("*").From("{target}")
	text, err := q.Format(map[string]string{"target": "#9:1"})
	c.Assert(err, IsNil)
	c.Assert(text, Equals, "SELECT *\nFROM #9:1")

	text, err = q.Format(nil)
	c.Assert(err, IsNil)
	c.Assert(text, Equals, "SELECT *\nFROM {target}")

	c.Assert(query.Substitute("{a} {b} {a}", map[string]string{"a": "1"}), Equals, "1 {b} 1")
}
