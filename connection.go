// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package graphair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/canonical/graphair/internal/compose"
	"github.com/canonical/graphair/schema"
)

// ErrNoRecord is returned when a record load finds nothing.
var ErrNoRecord = errors.New("no record")

// Connection runs queries for an application, e.g. during a web request, and
// turns the records it receives into documents. Each record is represented
// by a single document per connection.
//
// A Connection must not be used concurrently.
type Connection struct {
	engine  *Engine
	records map[string]*schema.Document
	logger  *slog.Logger
}

var _ schema.Loader = (*Connection)(nil)

// Get returns the document at position in a cluster. The key is either a
// class name, selecting the default cluster of the class, or a cluster name
// of the form "cluster:<name>".
func (c *Connection) Get(ctx context.Context, key string, position int64) (doc *schema.Document, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot get %s at %d: %w", key, position, err)
		}
	}()

	name, ok := strings.CutPrefix(key, "cluster:")
	if !ok {
		class, err := c.engine.registry.Class(key)
		if err != nil {
			return nil, err
		}
		name = class.DefaultCluster()
	}
	cluster, ok := c.engine.Cluster(name)
	if !ok {
		return nil, fmt.Errorf("unknown cluster %q", name)
	}
	return c.getRecord(ctx, cluster, position)
}

// RecordLoad returns the document of the record with the given RID.
func (c *Connection) RecordLoad(ctx context.Context, rid string) (doc *schema.Document, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot load record %s: %w", rid, err)
		}
	}()

	id, position, err := schema.ParseRID(rid)
	if err != nil {
		return nil, err
	}
	cluster, ok := c.engine.ClusterByID(id)
	if !ok {
		return nil, fmt.Errorf("unknown cluster id %d", id)
	}
	return c.getRecord(ctx, cluster, position)
}

// getRecord returns the document from the identity map, or runs the record
// load query of its document type, which adds the document to the map.
func (c *Connection) getRecord(ctx context.Context, cluster Cluster, position int64) (*schema.Document, error) {
	rid := cluster.RID(position)
	if doc, ok := c.records[rid]; ok {
		return doc, nil
	}

	t, err := c.engine.registry.Lookup(cluster.key())
	if err != nil {
		return nil, err
	}
	text, err := c.engine.registry.Composer().Query(t, compose.RecordLoad, rid)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("loading record", "rid", rid, "class", t.Name())
	if _, err := c.Query(ctx, text); err != nil {
		return nil, err
	}

	doc, ok := c.records[rid]
	if !ok {
		return nil, ErrNoRecord
	}
	return doc, nil
}

// Query runs text and returns its results. Persistent records are merged
// into their documents, which are returned as *schema.Document. Records of
// projections, which have a negative cluster id, are returned unchanged as
// Record values.
func (c *Connection) Query(ctx context.Context, text string) (results []any, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot run query: %w", err)
		}
	}()

	records, err := c.engine.exec.Query(ctx, text)
	if err != nil {
		return nil, err
	}
	results = make([]any, 0, len(records))
	for _, rec := range records {
		result, err := c.process(ctx, rec)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (c *Connection) process(ctx context.Context, rec Record) (any, error) {
	id, position, err := schema.ParseRID(rec.RID)
	if err != nil {
		return nil, err
	}
	if id < 0 {
		return rec, nil
	}
	cluster, ok := c.engine.ClusterByID(id)
	if !ok {
		return nil, fmt.Errorf("record %s: unknown cluster id %d", rec.RID, id)
	}
	rec.RID = cluster.RID(position)

	doc, ok := c.records[rec.RID]
	if !ok {
		t, err := c.engine.registry.Lookup(cluster.key())
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.RID, err)
		}
		doc = schema.NewDocument(t, rec.RID, c)
		c.records[rec.RID] = doc
	}
	if err := doc.AppendRecord(ctx, rec); err != nil {
		return nil, err
	}
	return doc, nil
}

// Cached reports whether the document of rid is in the identity map.
func (c *Connection) Cached(rid string) bool {
	_, ok := c.records[rid]
	return ok
}

// Close forgets the documents of the connection.
func (c *Connection) Close() {
	c.records = map[string]*schema.Document{}
}
