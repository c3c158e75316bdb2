// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/graphair/internal/compose"
)

// File is the YAML declaration of a schema.
//
//	classes:
//	  - name: Person
//	    superclass: V
//	    properties:
//	      name: {type: STRING, mandatory: true}
//	    subqueries:
//	      friends: {query: "SELECT expand(out('Friend')) FROM {}", eager: load}
type File struct {
	Classes []ClassDecl `yaml:"classes"`
}

// ClassDecl declares one document type.
type ClassDecl struct {
	Name           string               `yaml:"name"`
	Superclass     string               `yaml:"superclass"`
	Clusters       []string             `yaml:"clusters"`
	DefaultCluster string               `yaml:"default_cluster"`
	Properties     map[string]*Property `yaml:"properties"`
	Subqueries     map[string]*Subquery `yaml:"subqueries"`
}

// Load reads a YAML schema declaration and returns a registry holding its
// classes, in declaration order, after the default classes.
func Load(r io.Reader, opts ...compose.Option) (*Registry, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "cannot parse schema")
	}

	registry := NewRegistry(opts...)
	for i, decl := range file.Classes {
		if decl.Name == "" {
			return nil, errors.Errorf("cannot declare class %d: class needs a name", i)
		}
		t, err := decl.documentType()
		if err == nil {
			err = registry.Add(t)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "cannot declare class %q", decl.Name)
		}
	}
	return registry, nil
}

// LoadFile reads a YAML schema declaration from path.
func LoadFile(path string, opts ...compose.Option) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read schema")
	}
	defer f.Close()
	return Load(f, opts...)
}

func (decl ClassDecl) documentType() (*DocumentType, error) {
	t := NewDocumentType(decl.Name, decl.Superclass, decl.Clusters...)
	if decl.DefaultCluster != "" {
		if err := t.SetDefaultCluster(decl.DefaultCluster); err != nil {
			return nil, err
		}
	}
	for name, p := range decl.Properties {
		if p == nil {
			p = &Property{}
		}
		if p.Type != "" && !p.Type.Valid() {
			return nil, errors.Errorf("property %q of %s has unknown type %q", name, decl.Name, p.Type)
		}
		if err := t.AddField(name, p); err != nil {
			return nil, err
		}
	}
	for name, sq := range decl.Subqueries {
		if sq == nil || sq.Query == "" {
			return nil, errors.Errorf("subquery %q of %s needs a query", name, decl.Name)
		}
		if err := t.AddField(name, sq); err != nil {
			return nil, err
		}
	}
	return t, nil
}
