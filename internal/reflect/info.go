// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package reflect

import (
	"reflect"
)

// TagName is the struct tag naming the document field a struct field is
// filled from.
const TagName = "graphair"

// Field is a struct field that is filled from a document field.
type Field struct {
	// Name is the name of the struct field.
	Name string

	// Index is the index sequence of the field for reflect.Value.FieldByIndex.
	Index []int

	// Type is the type of the struct field.
	Type reflect.Type

	// Loaded is true when the tag has the "loaded" option. Such fields are
	// only filled when the document already holds a value for them.
	Loaded bool
}

// Struct describes the tagged fields of a struct type.
type Struct struct {
	Type reflect.Type

	// Fields maps document field names to struct fields. Struct fields
	// without a tag are not filled.
	Fields map[string]Field

	// Order lists the document field names in struct field order.
	Order []string
}

// Name returns the name of the struct type.
func (s Struct) Name() string {
	return s.Type.Name()
}
