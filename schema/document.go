// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/canonical/graphair/internal/compose"
)

// Record is a record as returned by the database: its RID and its fields.
// Records of projections have a negative cluster id.
type Record struct {
	RID    string
	Fields map[string]any
}

// Loader loads records for documents. Connections are loaders.
type Loader interface {
	// RecordLoad returns the document of the record with the given RID.
	RecordLoad(ctx context.Context, rid string) (*Document, error)

	// Query runs a query, merging the returned records into their
	// documents. Each result is a *Document or, for projections, a Record.
	Query(ctx context.Context, text string) ([]any, error)
}

// FormatRID returns the RID of the record at position in the cluster.
func FormatRID(cluster, position int64) string {
	return "#" + strconv.FormatInt(cluster, 10) + ":" + strconv.FormatInt(position, 10)
}

// ParseRID splits a RID of the form #<cluster>:<position>. The leading # is
// optional.
func ParseRID(rid string) (cluster, position int64, err error) {
	c, p, ok := strings.Cut(strings.TrimPrefix(rid, "#"), ":")
	if !ok {
		return 0, 0, errors.Errorf("invalid RID %q", rid)
	}
	cluster, err = strconv.ParseInt(c, 10, 64)
	if err != nil {
		return 0, 0, errors.Errorf("invalid RID %q", rid)
	}
	position, err = strconv.ParseInt(p, 10, 64)
	if err != nil {
		return 0, 0, errors.Errorf("invalid RID %q", rid)
	}
	return cluster, position, nil
}

// Document is a persistent record of a document type. Field access is
// dispatched through the fields of the type.
//
// A Document belongs to the connection that loaded it and must not be used
// concurrently.
type Document struct {
	typ    *DocumentType
	rid    string
	loader Loader
	values map[string]any
}

// NewDocument returns an empty document of type t for the record rid.
func NewDocument(t *DocumentType, rid string, loader Loader) *Document {
	return &Document{
		typ:    t,
		rid:    rid,
		loader: loader,
		values: map[string]any{},
	}
}

func (d *Document) Type() *DocumentType {
	return d.typ
}

func (d *Document) RID() string {
	return d.rid
}

// Get returns the value of the named field. Subquery fields that were not
// loaded with the record are queried for.
func (d *Document) Get(ctx context.Context, name string) (any, error) {
	field, f, ok := d.typ.Field(name)
	if !ok {
		return nil, errors.Errorf("%s has no field %q", d.typ.name, name)
	}
	return f.Read(ctx, d, field)
}

// Set writes the value of the named field.
func (d *Document) Set(name string, value any) error {
	field, f, ok := d.typ.Field(name)
	if !ok {
		return errors.Errorf("%s has no field %q", d.typ.name, name)
	}
	return f.Write(d, field, value)
}

// Loaded reports whether the named field has a value on the document.
func (d *Document) Loaded(name string) bool {
	field, _, ok := d.typ.Field(name)
	if !ok {
		return false
	}
	_, ok = d.values[field]
	return ok
}

// AppendRecord merges the fields of a record of the document. Keys may carry
// the key prefix of the type. Fields that already have a value keep it and
// keys that name no field are ignored.
func (d *Document) AppendRecord(ctx context.Context, rec Record) error {
	if rec.RID != d.rid {
		return errors.Errorf("record %s does not match document %s", rec.RID, d.rid)
	}
	for key, value := range rec.Fields {
		name, f, ok := d.typ.Field(key)
		if !ok {
			continue
		}
		if _, ok := d.values[name]; ok {
			continue
		}
		d.values[name] = f.Decode(ctx, d, value)
	}
	return nil
}

// loadField runs the single field query of a subquery field, which merges
// the field into the document.
func (d *Document) loadField(ctx context.Context, name string) error {
	if d.loader == nil || d.typ.registry == nil {
		return errors.Errorf("cannot load %q of %s %s: document is detached", name, d.typ.name, d.rid)
	}
	text, err := d.typ.registry.Composer().Query(d.typ, compose.Field(name), d.rid)
	if err != nil {
		return errors.Wrapf(err, "cannot load %q of %s %s", name, d.typ.name, d.rid)
	}
	if _, err := d.loader.Query(ctx, text); err != nil {
		return errors.Wrapf(err, "cannot load %q of %s %s", name, d.typ.name, d.rid)
	}
	return nil
}

// follow turns a subquery result into a document if it links to a record.
func (d *Document) follow(ctx context.Context, result any) (any, error) {
	rid, ok := result.(string)
	if !ok {
		return result, nil
	}
	if _, _, err := ParseRID(rid); err != nil || !strings.HasPrefix(rid, "#") {
		return result, nil
	}
	if d.loader == nil {
		return result, nil
	}
	return d.loader.RecordLoad(ctx, rid)
}

func (d *Document) String() string {
	return fmt.Sprintf("<%s %s>", d.typ.name, d.rid)
}
