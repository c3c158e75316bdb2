// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EagerMode selects when a subquery field is loaded along with its record.
// The zero value loads the field on first access only.
type EagerMode uint8

const (
	// EagerOnLoad loads the field when the record is loaded by its RID.
	EagerOnLoad EagerMode = 1 << iota
	// EagerOnQuery loads the field when the record is the result of a
	// prefetching query.
	EagerOnQuery

	EagerAlways = EagerOnLoad | EagerOnQuery
)

// OnLoad reports whether the field is loaded with record loads.
func (m EagerMode) OnLoad() bool {
	return m&EagerOnLoad != 0
}

// OnQuery reports whether the field is loaded with prefetching queries.
func (m EagerMode) OnQuery() bool {
	return m&EagerOnQuery != 0
}

func (m EagerMode) String() string {
	switch m {
	case 0:
		return "never"
	case EagerOnLoad:
		return "load"
	case EagerOnQuery:
		return "query"
	case EagerAlways:
		return "always"
	}
	return "invalid"
}

// ParseEager converts an eager selector to an EagerMode. true selects both
// modes and false, nil or "" neither. The strings "load" and "query" are
// matched without regard to case. Anything else is an error.
func ParseEager(v any) (EagerMode, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case EagerMode:
		if v&^EagerAlways != 0 {
			return 0, errors.Errorf("invalid eager mode %d", uint8(v))
		}
		return v, nil
	case bool:
		if v {
			return EagerAlways, nil
		}
		return 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "":
			return 0, nil
		case "load":
			return EagerOnLoad, nil
		case "query":
			return EagerOnQuery, nil
		}
		return 0, errors.Errorf("invalid eager selector %q, expected true, false, %q or %q", v, "load", "query")
	}
	return 0, errors.Errorf("invalid eager selector of type %T", v)
}

// UnmarshalYAML accepts the selectors of ParseEager.
func (m *EagerMode) UnmarshalYAML(value *yaml.Node) error {
	var v any
	if err := value.Decode(&v); err != nil {
		return err
	}
	parsed, err := ParseEager(v)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
