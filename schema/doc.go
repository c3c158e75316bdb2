// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package schema describes the classes of a graph database and the documents
that represent their records.

A DocumentType holds the fields of a class. Properties are stored on the
record itself. Subqueries are computed by a query against the record, and may
be loaded eagerly along with it: on record load, on prefetching queries, or
both. A subquery may prefetch through a related type, in which case the eager
query fields of that type are loaded with its results.

Types are kept in a Registry, which also owns the cache of composed loading
queries. A registry can be declared in YAML and read with Load or LoadFile.
*/
package schema
