// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	greflect "github.com/canonical/graphair/internal/reflect"
)

// Unmarshal fills the fields of the struct v points to from the document.
// Struct fields are matched to document fields by their "graphair" tag:
//
//	type Person struct {
//		Name    string    `graphair:"name"`
//		Friends []*Person `graphair:"friends"`
//		Pets    []Pet     `graphair:"pets,loaded"`
//	}
//
// Subquery fields are loaded as needed, except for fields tagged with the
// "loaded" option, which are left untouched when the document holds no
// value for them. Linked documents are unmarshaled into struct or pointer to
// struct fields.
func (d *Document) Unmarshal(ctx context.Context, v any) error {
	ptr := reflect.ValueOf(v)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
		return errors.Errorf("cannot unmarshal %s: need a non-nil pointer to a struct, got %T", d, v)
	}
	u := &unmarshaler{
		ctx:    ctx,
		ptrs:   map[ptrKey]reflect.Value{ptrKey{d, ptr.Type()}: ptr},
		active: map[*Document]bool{},
	}
	if err := u.document(d, ptr.Elem()); err != nil {
		return errors.Wrapf(err, "cannot unmarshal %s", d)
	}
	return nil
}

// unmarshaler fills structs from documents. Documents reached again through
// pointer fields share one struct, which allows cyclic links. Cycles through
// struct values cannot be represented and are errors.
type unmarshaler struct {
	ctx    context.Context
	ptrs   map[ptrKey]reflect.Value
	active map[*Document]bool
}

type ptrKey struct {
	doc *Document
	typ reflect.Type
}

func (u *unmarshaler) document(d *Document, dst reflect.Value) error {
	if u.active[d] {
		return errors.Errorf("%s links back to itself", d)
	}
	u.active[d] = true
	defer delete(u.active, d)

	info, err := greflect.Cache().Reflect(dst.Type())
	if err != nil {
		return err
	}
	for _, name := range info.Order {
		field := info.Fields[name]
		if field.Loaded && !d.Loaded(name) {
			continue
		}
		value, err := d.Get(u.ctx, name)
		if err != nil {
			return err
		}
		if err := u.assign(dst.FieldByIndex(field.Index), value); err != nil {
			return errors.Wrapf(err, "field %s", field.Name)
		}
	}
	return nil
}

// assign sets dst to value, converting between numeric types, unmarshaling
// documents into structs and lists into slices.
func (u *unmarshaler) assign(dst reflect.Value, value any) error {
	if value == nil {
		dst.SetZero()
		return nil
	}
	if doc, ok := value.(*Document); ok {
		switch {
		case dst.Kind() == reflect.Struct:
			return u.document(doc, dst)
		case dst.Kind() == reflect.Pointer && dst.Type().Elem().Kind() == reflect.Struct:
			key := ptrKey{doc, dst.Type()}
			if ptr, ok := u.ptrs[key]; ok {
				dst.Set(ptr)
				return nil
			}
			ptr := reflect.New(dst.Type().Elem())
			u.ptrs[key] = ptr
			if err := u.document(doc, ptr.Elem()); err != nil {
				return err
			}
			dst.Set(ptr)
			return nil
		}
	}
	if list, ok := value.([]any); ok && dst.Kind() == reflect.Slice {
		out := reflect.MakeSlice(dst.Type(), len(list), len(list))
		for i, item := range list {
			if err := u.assign(out.Index(i), item); err != nil {
				return errors.Wrapf(err, "item %d", i)
			}
		}
		dst.Set(out)
		return nil
	}

	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(dst.Type()):
		dst.Set(v)
	case isNumber(v.Kind()) && isNumber(dst.Kind()):
		dst.Set(v.Convert(dst.Type()))
	default:
		return errors.Errorf("cannot assign %T to %s", value, dst.Type())
	}
	return nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
