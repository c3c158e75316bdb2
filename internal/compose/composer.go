// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package compose

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/canonical/graphair/query"
)

// Target is the placeholder for the record locator in a composed template.
const Target = "{target}"

// current is substituted for the {} placeholder of a field query.
const current = "$current"

// ErrPrefetchCycle is returned when composing a document type requires its
// own eager query composition, e.g. A prefetches B and B prefetches A.
var ErrPrefetchCycle = errors.New("prefetch cycle")

// Subquery is a field whose value is the result of a query.
type Subquery interface {
	// Template returns the field query. Its single {} placeholder stands for
	// the record the field belongs to.
	Template() string

	// PrefetchTarget returns the name of the document type whose eager
	// query is nested inside the field query, or "".
	PrefetchTarget() string
}

// Document is a document type as seen by the composer.
type Document interface {
	Name() string
	// Subquery returns the subquery field with the given name.
	Subquery(field string) (Subquery, bool)
	// EagerOnLoad returns the names of the fields loaded with the record.
	EagerOnLoad() []string
	// EagerOnQuery returns the names of the fields loaded with the record
	// when it is the result of a query.
	EagerOnQuery() []string
}

// Resolver resolves document types by name.
type Resolver interface {
	ResolveDocument(name string) (Document, error)
}

// Prefix returns the prefix of the keys under which the fields of the named
// document type are bound in a composed query.
func Prefix(document string) string {
	return strings.ToLower(document) + "_"
}

// Composer composes the queries that load a record together with its eager
// subquery fields in a single round trip.
type Composer struct {
	resolver Resolver
	cache    *Cache
	metrics  *Metrics
	logger   *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger used to report cache misses.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics that count cache lookups.
func WithMetrics(m *Metrics) Option {
	return func(c *Composer) {
		c.metrics = m
	}
}

// New returns a Composer that resolves prefetch targets with resolver and
// keeps templates in cache. A nil cache gives the composer its own.
func New(resolver Resolver, cache *Cache, opts ...Option) *Composer {
	if cache == nil {
		cache = NewCache()
	}
	c := &Composer{
		resolver: resolver,
		cache:    cache,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Template returns the composed query template of the document type for the
// purpose. The template has a single Target placeholder.
func (c *Composer) Template(doc Document, p Purpose) (string, error) {
	return c.template(doc, p, nil)
}

// Query returns the composed query of the document type for the purpose,
// applied to the record locator target.
func (c *Composer) Query(doc Document, p Purpose, target string) (string, error) {
	text, err := c.Template(doc, p)
	if err != nil {
		return "", err
	}
	return applyTarget(text, target), nil
}

// Warm composes the record load and eager query templates of the document
// types concurrently.
func (c *Composer) Warm(ctx context.Context, docs ...Document) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		g.Go(func() error {
			for _, p := range []Purpose{RecordLoad, EagerQuery} {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := c.Template(doc, p); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// template looks the template up in the cache, composing it on a miss.
// composing holds the keys whose composition is in progress further up the
// call stack.
func (c *Composer) template(doc Document, p Purpose, composing []cacheKey) (string, error) {
	if text, ok := c.cache.lookup(doc.Name(), p); ok {
		c.metrics.hit()
		return text, nil
	}
	c.metrics.miss()

	key := cacheKey{document: doc.Name(), purpose: p}
	for i, k := range composing {
		if k == key {
			return "", errors.Wrapf(ErrPrefetchCycle, "cannot compose %s for %s", p, cyclePath(composing[i:], key))
		}
	}
	c.logger.Debug("composing query template", "document", doc.Name(), "purpose", p.String())

	text, err := c.build(doc, p, append(composing[:len(composing):len(composing)], key))
	if err != nil {
		return "", err
	}
	return c.cache.store(doc.Name(), p, text), nil
}

// build composes a query returning the target record followed by the
// results of each relevant field:
//
//	SELECT expand(unionall($record, $k_records, ...))
//	LET $record = (SELECT *, $k AS k FROM {target} LET $k = <field query>),
//	$k_records = (<records of $record.k>)
func (c *Composer) build(doc Document, p Purpose, composing []cacheKey) (string, error) {
	fields, err := relevantFields(doc, p)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return query.Select("*").From(Target).Render()
	}

	prefix := Prefix(doc.Name())
	projection := []any{"*"}
	values := make([]any, 0, len(fields))
	// The record binding goes first; it is filled in once the projection is
	// complete.
	bindings := []any{nil}
	union := []string{"$record"}
	for _, field := range fields {
		sq, _ := doc.Subquery(field)
		key := prefix + field
		projection = append(projection, "$"+key+" AS "+key)
		values = append(values, query.Bind(key, strings.ReplaceAll(sq.Template(), "{}", current)))

		records, err := c.fieldRecords(sq, "$record."+key, composing)
		if err != nil {
			return "", errors.Wrapf(err, "cannot compose field %q of %s", field, doc.Name())
		}
		bindings = append(bindings, query.Bind(key+"_records", records))
		union = append(union, "$"+key+"_records")
	}
	record := query.Select(projection...).From(Target).Let(values...)
	bindings[0] = query.Bind("record", record)

	return query.Select("expand(unionall(" + strings.Join(union, ", ") + "))").Let(bindings...).Render()
}

// fieldRecords returns the statement selecting the records of a field bound
// at target. A field with a prefetch target nests the eager query of the
// related document type.
func (c *Composer) fieldRecords(sq Subquery, target string, composing []cacheKey) (any, error) {
	name := sq.PrefetchTarget()
	if name == "" {
		return query.Select().From(target), nil
	}
	related, err := c.resolver.ResolveDocument(name)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve prefetch target %q", name)
	}
	text, err := c.template(related, EagerQuery, composing)
	if err != nil {
		return nil, err
	}
	return applyTarget(text, target), nil
}

// relevantFields returns the sorted names of the fields composed for the
// purpose.
func relevantFields(doc Document, p Purpose) ([]string, error) {
	var names []string
	switch p.kind {
	case recordLoadPurpose:
		names = doc.EagerOnLoad()
	case eagerQueryPurpose:
		names = doc.EagerOnQuery()
	default:
		names = []string{p.field}
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		if _, ok := doc.Subquery(name); !ok {
			return nil, errors.Errorf("%s has no subquery field %q", doc.Name(), name)
		}
	}
	return sorted, nil
}

func applyTarget(text, target string) string {
	return query.Substitute(text, map[string]string{"target": target})
}

func cyclePath(keys []cacheKey, last cacheKey) string {
	names := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		names = append(names, k.document)
	}
	return strings.Join(append(names, last.document), " -> ")
}
