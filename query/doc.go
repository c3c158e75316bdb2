// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package query builds statements of the graph database's SQL dialect.

A statement is an ordered composition of clauses. Each clause has a kind, such
as SELECT, FROM or LIMIT, and holds an expression whose shape depends on the
kind: a single string or integer, one of a fixed set of options, a flag, or a
list of fragments.

# Statements

Two statement flavors exist, each with its own fixed clause order. SELECT
statements have the clauses

	SELECT, FROM, LET, WHERE, GROUP BY, ORDER BY, UNWIND, SKIP, LIMIT,
	FETCHPLAN, TIMEOUT, LOCK, PARALLEL, NOCACHE

and TRAVERSE statements have

	TRAVERSE, FROM, MAXDEPTH, WHILE, LIMIT, STRATEGY

Clauses may be set in any order and are always rendered in the order of the
flavor, one clause per line:

	q := query.Select("*").Where("type = 'Person'").From("V")
	text, err := q.Render()

Clauses can also be reached by name. Names are matched ignoring case and the
separators space, underscore and hyphen:

	q.Set("order_by", "name")

A statement used as the expression of a FROM or LET clause is nested in
parentheses.

# Errors

Errors in a builder call do not interrupt the chain. They are kept on the
statement and the earliest one is returned by Render, so no partial query text
is ever produced. Setting the failed clause again with a valid expression
clears its error.
*/
package query
