// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/canonical/graphair/internal/compose"
)

// DocumentType describes a database class: its clusters and the fields of
// its documents.
type DocumentType struct {
	name           string
	superclass     string
	clusters       []string
	defaultCluster string

	fields       map[string]Field
	eagerOnLoad  []string
	eagerOnQuery []string

	registry *Registry
}

var _ compose.Document = (*DocumentType)(nil)

// NewDocumentType returns a document type for the named class. Without
// clusters the type gets a single cluster named after the class in lower
// case. The first cluster is the default one.
func NewDocumentType(name, superclass string, clusters ...string) *DocumentType {
	if len(clusters) == 0 {
		clusters = []string{strings.ToLower(name)}
	}
	return &DocumentType{
		name:           name,
		superclass:     superclass,
		clusters:       append([]string(nil), clusters...),
		defaultCluster: clusters[0],
		fields:         map[string]Field{},
	}
}

func (t *DocumentType) Name() string {
	return t.name
}

// Superclass returns the name of the class t extends, or "".
func (t *DocumentType) Superclass() string {
	return t.superclass
}

func (t *DocumentType) Clusters() []string {
	return append([]string(nil), t.clusters...)
}

func (t *DocumentType) DefaultCluster() string {
	return t.defaultCluster
}

// SetDefaultCluster makes one of the clusters of t its default.
func (t *DocumentType) SetDefaultCluster(cluster string) error {
	for _, c := range t.clusters {
		if c == cluster {
			t.defaultCluster = cluster
			return nil
		}
	}
	return errors.Errorf("%s has no cluster %q", t.name, cluster)
}

// AddField registers f under name. Fields must be added before the type is
// added to a registry.
func (t *DocumentType) AddField(name string, f Field) error {
	if t.registry != nil {
		return errors.Errorf("cannot add field %q to %s: type is registered", name, t.name)
	}
	if name == "" {
		return errors.Errorf("cannot add field to %s: empty name", t.name)
	}
	if _, ok := t.fields[name]; ok {
		return errors.Errorf("%s already has a field %q", t.name, name)
	}
	t.fields[name] = f
	if sq, ok := f.(*Subquery); ok {
		if sq.Eager.OnLoad() {
			t.eagerOnLoad = append(t.eagerOnLoad, name)
		}
		if sq.Eager.OnQuery() {
			t.eagerOnQuery = append(t.eagerOnQuery, name)
		}
	}
	return nil
}

// Field returns the field with the given name, which may carry the key prefix
// of the type, e.g. "person_friends" for the field "friends" of Person. The
// unprefixed name is returned along with the field.
func (t *DocumentType) Field(name string) (string, Field, bool) {
	if f, ok := t.fields[name]; ok {
		return name, f, true
	}
	prefix := compose.Prefix(t.name)
	if len(name) > len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
		name = name[len(prefix):]
		if f, ok := t.fields[name]; ok {
			return name, f, true
		}
	}
	return "", nil, false
}

// FieldNames returns the sorted names of the fields of t.
func (t *DocumentType) FieldNames() []string {
	names := make([]string, 0, len(t.fields))
	for name := range t.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subquery returns the subquery field with exactly the given name.
func (t *DocumentType) Subquery(name string) (compose.Subquery, bool) {
	sq, ok := t.fields[name].(*Subquery)
	return sq, ok
}

func (t *DocumentType) EagerOnLoad() []string {
	return append([]string(nil), t.eagerOnLoad...)
}

func (t *DocumentType) EagerOnQuery() []string {
	return append([]string(nil), t.eagerOnQuery...)
}

// inherit adds the fields of super that t does not override.
func (t *DocumentType) inherit(super *DocumentType) {
	for _, name := range super.FieldNames() {
		if _, ok := t.fields[name]; !ok {
			// Names are unique and the type is not registered yet.
			_ = t.AddField(name, super.fields[name])
		}
	}
}
