// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package graphair

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/canonical/graphair/schema"
)

// Record is a record as returned by an Executor.
type Record = schema.Record

// RIDColumn is the column holding the RID of each record.
const RIDColumn = "@rid"

// Executor runs query text against a database. The text is sent unchanged
// and the query itself is responsible for limiting the results.
type Executor interface {
	Query(ctx context.Context, text string) ([]Record, error)
}

// SQLExecutor is an Executor running queries through database/sql. Every
// query must return a RIDColumn column. Text columns holding a JSON array
// are decoded into []any.
//
// Queries are prepared on the database once and the prepared statements
// are kept for reuse until the executor is closed.
type SQLExecutor struct {
	db    *sql.DB
	stmts *statementCache
}

// NewSQLExecutor returns an executor running queries on db.
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	if db == nil {
		return nil
	}
	return &SQLExecutor{db: db, stmts: newStatementCache(defaultStatementCapacity)}
}

// Close closes the prepared statements of the executor. The database is
// left open.
func (e *SQLExecutor) Close() error {
	return e.stmts.closeAll()
}

// Query runs text and returns all the records it produces.
func (e *SQLExecutor) Query(ctx context.Context, text string) (records []Record, err error) {
	iter := e.Iter(ctx, text)
	defer func() {
		if cerr := iter.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			records = nil
		}
	}()
	for iter.Next() {
		var rec Record
		if err := iter.Get(&rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Iter runs text and returns an Iterator over its records. [Iterator.Close]
// must be called once iteration is finished.
func (e *SQLExecutor) Iter(ctx context.Context, text string) *Iterator {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := e.stmts.query(ctx, e.db, text)
	if err != nil {
		return &Iterator{err: err}
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return &Iterator{err: err}
	}
	ridCol := -1
	for i, col := range cols {
		if col == RIDColumn {
			ridCol = i
			break
		}
	}
	if ridCol == -1 {
		rows.Close()
		return &Iterator{err: fmt.Errorf("query returned no %s column", RIDColumn)}
	}
	return &Iterator{rows: rows, cols: cols, ridCol: ridCol}
}

// Iterator is used to iterate over the records of a query.
type Iterator struct {
	rows    *sql.Rows
	cols    []string
	ridCol  int
	err     error
	started bool
}

// Next prepares the next record for [Iterator.Get]. If an error occurs during
// iteration it will be returned with [Iterator.Close].
func (iter *Iterator) Next() bool {
	iter.started = true
	if iter.err != nil || iter.rows == nil {
		return false
	}
	return iter.rows.Next()
}

// Get decodes the record from the previous [Iterator.Next] call into rec.
func (iter *Iterator) Get(rec *Record) (err error) {
	if iter.err != nil {
		return iter.err
	}
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot get record: %s", err)
		}
	}()
	if !iter.started {
		return fmt.Errorf("cannot call Get before Next")
	}
	if iter.rows == nil {
		return fmt.Errorf("iteration ended")
	}

	values := make([]any, len(iter.cols))
	ptrs := make([]any, len(iter.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := iter.rows.Scan(ptrs...); err != nil {
		return err
	}

	rid, ok := decodeValue(values[iter.ridCol]).(string)
	if !ok {
		return fmt.Errorf("%s column holds %T, not a string", RIDColumn, values[iter.ridCol])
	}
	rec.RID = rid
	rec.Fields = make(map[string]any, len(iter.cols)-1)
	for i, col := range iter.cols {
		if i == iter.ridCol {
			continue
		}
		rec.Fields[col] = decodeValue(values[i])
	}
	return nil
}

// Close finishes the iteration and returns any errors encountered. Close can
// be called multiple times and the same error will be returned.
func (iter *Iterator) Close() error {
	iter.started = true
	if iter.rows == nil {
		return iter.err
	}
	err := iter.rows.Close()
	if err == nil {
		err = iter.rows.Err()
	}
	iter.rows = nil
	if iter.err == nil {
		iter.err = err
	}
	return iter.err
}

// decodeValue converts driver values to the values held by documents.
func decodeValue(v any) any {
	switch v := v.(type) {
	case []byte:
		return decodeValue(string(v))
	case string:
		if !strings.HasPrefix(v, "[") {
			return v
		}
		var list []any
		if err := json.Unmarshal([]byte(v), &list); err != nil {
			return v
		}
		return list
	}
	return v
}
