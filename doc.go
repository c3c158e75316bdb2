// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Graphair maps the records of a multi-model graph database to documents whose
types are described by a schema.

A schema declares document types with two kinds of fields. Properties are
plain stored values. Subquery fields are the results of a query run from the
record, such as the out edges of a vertex. Subquery fields can be eager: they
are then fetched in the same round trip as the record.

# Basics

An [Engine] binds a schema registry to a database through an [Executor]. A
[Connection] made from the engine loads documents by class and position, or
by RID:

	engine, err := graphair.NewEngine(cfg, registry, graphair.NewSQLExecutor(db))
	conn := engine.Connect()
	fred, err := conn.Get(ctx, "Person", 1)
	friends, err := fred.Get(ctx, "friends")

Loading a record runs one composed query, which returns the record together
with the records of its eager subquery fields. Each record is represented by
a single document per connection.

# Queries

Queries are built with the query package and run with [Connection.Query]:

	q := query.Select().From("Person").Where("age > 30").Limit(10)
	results, err := conn.Query(ctx, q.MustRender())

Results are documents, except for the records of projections which are
returned unchanged as [Record] values.

# Schemas

Schemas are declared in YAML and loaded with schema.Load:

	classes:
	  - name: Person
	    superclass: V
	    properties:
	      name: {type: STRING, mandatory: true}
	    subqueries:
	      friends: {query: "{}.out('Friend')", eager: load}

The {} placeholder of a subquery stands for the record the field belongs to.
*/
package graphair
