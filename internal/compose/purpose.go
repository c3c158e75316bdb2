// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package compose

import (
	"strings"

	"github.com/pkg/errors"
)

type purposeKind int

const (
	fieldPurpose purposeKind = iota
	recordLoadPurpose
	eagerQueryPurpose
)

// Purpose is the reason a query is composed for a document type. It is half
// of the cache key of a composed template.
type Purpose struct {
	kind  purposeKind
	field string
}

var (
	// RecordLoad composes every field that is eager on record load.
	RecordLoad = Purpose{kind: recordLoadPurpose}

	// EagerQuery composes every field that is eager on explicit query. It
	// is also the purpose used when another type prefetches through this
	// one.
	EagerQuery = Purpose{kind: eagerQueryPurpose}
)

// Field composes the single named field.
func Field(name string) Purpose {
	return Purpose{kind: fieldPurpose, field: name}
}

func (p Purpose) String() string {
	switch p.kind {
	case recordLoadPurpose:
		return "eager_on_load"
	case eagerQueryPurpose:
		return "eager_on_query"
	}
	return "field:" + p.field
}

// ParsePurpose parses "load", "query" or "field:<name>".
func ParsePurpose(s string) (Purpose, error) {
	switch strings.ToLower(s) {
	case "load", "eager_on_load":
		return RecordLoad, nil
	case "query", "eager_on_query":
		return EagerQuery, nil
	}
	if name, ok := strings.CutPrefix(s, "field:"); ok && name != "" {
		return Field(name), nil
	}
	return Purpose{}, errors.Errorf("unknown purpose %q, expected load, query or field:<name>", s)
}
