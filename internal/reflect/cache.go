// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package reflect describes the struct types documents are unmarshaled into.
package reflect

import (
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// cache holds the Struct of each reflected type.
type cache struct {
	mutex sync.RWMutex
	cache map[reflect.Type]Struct
}

var (
	singleCache *cache
	once        sync.Once
)

// Cache returns the single instance of the reflection cache.
func Cache() *cache {
	once.Do(func() {
		singleCache = &cache{
			cache: make(map[reflect.Type]Struct),
		}
	})
	return singleCache
}

// Reflect returns the Struct of the struct type t, or of the struct t points
// to, generating and caching it as required.
func (r *cache) Reflect(t reflect.Type) (Struct, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Struct{}, errors.Errorf("need a struct, got %s", t.Kind())
	}

	r.mutex.RLock()
	info, ok := r.cache[t]
	r.mutex.RUnlock()
	if ok {
		return info, nil
	}

	info, err := generate(t)
	if err != nil {
		return Struct{}, err
	}
	r.mutex.Lock()
	r.cache[t] = info
	r.mutex.Unlock()
	return info, nil
}

// generate produces the Struct of the struct type t.
func generate(t reflect.Type) (Struct, error) {
	info := Struct{
		Type:   t,
		Fields: make(map[string]Field),
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag, ok := field.Tag.Lookup(TagName)
		if !ok || tag == "-" {
			continue
		}
		if !field.IsExported() {
			return Struct{}, errors.Errorf("field %s of %s is tagged but not exported", field.Name, t.Name())
		}
		name, loaded, err := parseTag(tag)
		if err != nil {
			return Struct{}, errors.Wrapf(err, "field %s of %s", field.Name, t.Name())
		}
		if name == "" {
			name = field.Name
		}
		if other, ok := info.Fields[name]; ok {
			return Struct{}, errors.Errorf("fields %s and %s of %s are both tagged %q", other.Name, field.Name, t.Name(), name)
		}
		info.Fields[name] = Field{
			Name:   field.Name,
			Index:  field.Index,
			Type:   field.Type,
			Loaded: loaded,
		}
		info.Order = append(info.Order, name)
	}
	return info, nil
}

// parseTag parses the input tag string and returns its name and whether it
// has the "loaded" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var loaded bool
	for _, option := range options[1:] {
		if strings.ToLower(option) != "loaded" {
			return "", false, errors.Errorf("unexpected tag value %q", option)
		}
		loaded = true
	}
	return options[0], loaded, nil
}
