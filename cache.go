// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package graphair

import (
	"context"
	"database/sql"
	"sync"
)

// defaultStatementCapacity bounds the prepared statements kept by an
// executor. Composed record loads embed their RID, so most texts are seen a
// few times at most.
const defaultStatementCapacity = 256

// statementCache keeps the sql.Stmt prepared for each query text. When full,
// the statement prepared first is closed and evicted.
//
// The mutex must be locked when accessing stmts or order.
type statementCache struct {
	capacity int
	stmts    map[string]*sql.Stmt
	order    []string
	mutex    sync.RWMutex
}

func newStatementCache(capacity int) *statementCache {
	return &statementCache{
		capacity: capacity,
		stmts:    map[string]*sql.Stmt{},
	}
}

// prepareSubstrate is an object that queries can be prepared on, e.g. a sql.DB
// or sql.Conn.
type prepareSubstrate interface {
	PrepareContext(context.Context, string) (*sql.Stmt, error)
}

// query runs the statement for text, preparing it on ps if it is not
// cached. Statements are only closed with the lock held for writing, so a
// statement is never closed between lookup and use. Rows keep a closed
// statement alive until they are closed.
func (sc *statementCache) query(ctx context.Context, ps prepareSubstrate, text string) (*sql.Rows, error) {
	sc.mutex.RLock()
	if stmt, ok := sc.stmts[text]; ok {
		defer sc.mutex.RUnlock()
		return stmt.QueryContext(ctx)
	}
	sc.mutex.RUnlock()

	stmt, err := ps.PrepareContext(ctx, text)
	if err != nil {
		return nil, err
	}

	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	// Check if a statement has been inserted by someone else since we last
	// checked.
	if alt, ok := sc.stmts[text]; ok {
		stmt.Close()
		stmt = alt
	} else {
		if sc.capacity > 0 && len(sc.order) >= sc.capacity {
			oldest := sc.order[0]
			sc.order = sc.order[1:]
			sc.stmts[oldest].Close()
			delete(sc.stmts, oldest)
		}
		sc.stmts[text] = stmt
		sc.order = append(sc.order, text)
	}
	return stmt.QueryContext(ctx)
}

// len returns the number of cached statements.
func (sc *statementCache) len() int {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return len(sc.stmts)
}

// closeAll closes and forgets every cached statement, returning the first
// error.
func (sc *statementCache) closeAll() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	var first error
	for _, text := range sc.order {
		if err := sc.stmts[text].Close(); err != nil && first == nil {
			first = err
		}
	}
	sc.stmts = map[string]*sql.Stmt{}
	sc.order = nil
	return first
}
