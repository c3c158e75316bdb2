// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/canonical/graphair/internal/compose"
)

// ErrNotFound is returned when a class or cluster is not in the registry.
var ErrNotFound = errors.New("not found")

// clusterPrefix marks a registry key as a cluster name rather than a class
// name.
const clusterPrefix = "cluster:"

// Registry holds the document types of a database. It always contains the
// vertex class V and the edge class E. The registry owns the cache of
// composed query templates of its types.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mutex    sync.RWMutex
	classes  map[string]*DocumentType
	order    []string
	clusters map[string]*DocumentType

	cache    *compose.Cache
	composer *compose.Composer
}

var _ compose.Resolver = (*Registry)(nil)

// NewRegistry returns a registry holding the default classes. The options
// configure the composer of the registry.
func NewRegistry(opts ...compose.Option) *Registry {
	r := &Registry{
		classes:  map[string]*DocumentType{},
		clusters: map[string]*DocumentType{},
		cache:    compose.NewCache(),
	}
	r.composer = compose.New(r, r.cache, opts...)
	for _, name := range []string{"V", "E"} {
		if err := r.Add(NewDocumentType(name, "")); err != nil {
			panic(err)
		}
	}
	return r
}

// Add registers t. Its class name and clusters must be new to the registry,
// and its superclass, if any, must already be registered. Fields of the
// superclass that t does not declare are inherited.
func (r *Registry) Add(t *DocumentType) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if t.registry != nil {
		return errors.Errorf("class %q is already registered", t.name)
	}
	if _, ok := r.classes[t.name]; ok {
		return errors.Errorf("class %q has already been defined", t.name)
	}
	for _, cluster := range t.clusters {
		if owner, ok := r.clusters[cluster]; ok {
			return errors.Errorf("cluster %q has already been defined for class %q", cluster, owner.name)
		}
	}
	if t.superclass != "" {
		super, ok := r.classes[t.superclass]
		if !ok {
			return errors.Wrapf(ErrNotFound, "superclass %q of %q", t.superclass, t.name)
		}
		t.inherit(super)
	}

	t.registry = r
	r.classes[t.name] = t
	r.order = append(r.order, t.name)
	for _, cluster := range t.clusters {
		r.clusters[cluster] = t
	}
	return nil
}

// Lookup returns a document type by class name, or by cluster name when the
// key has the form "cluster:<name>".
func (r *Registry) Lookup(key string) (*DocumentType, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if t, ok := r.classes[key]; ok {
		return t, nil
	}
	if name, ok := strings.CutPrefix(key, clusterPrefix); ok {
		if t, ok := r.clusters[name]; ok {
			return t, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "document type %q", key)
}

// Class returns the document type of the class, ignoring cluster keys.
func (r *Registry) Class(name string) (*DocumentType, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if t, ok := r.classes[name]; ok {
		return t, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "class %q", name)
}

// ResolveDocument resolves a prefetch target for the composer.
func (r *Registry) ResolveDocument(name string) (compose.Document, error) {
	t, err := r.Class(name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Classes returns the registered document types in registration order, so
// that superclasses come before their subclasses.
func (r *Registry) Classes() []*DocumentType {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	types := make([]*DocumentType, len(r.order))
	for i, name := range r.order {
		types[i] = r.classes[name]
	}
	return types
}

// Composer returns the query composer of the registry.
func (r *Registry) Composer() *compose.Composer {
	return r.composer
}

// Warm composes the record load and eager query templates of every
// registered type, so that composition errors such as a missing prefetch
// target are found before the first record is loaded.
func (r *Registry) Warm(ctx context.Context) error {
	classes := r.Classes()
	docs := make([]compose.Document, len(classes))
	for i, t := range classes {
		docs[i] = t
	}
	return r.composer.Warm(ctx, docs...)
}

// TemplateCount returns the number of composed query templates cached for
// the types of the registry.
func (r *Registry) TemplateCount() int {
	return r.cache.Len()
}
