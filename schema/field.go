// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"context"
	"reflect"
	"regexp"
	"time"

	"github.com/pkg/errors"

	"github.com/canonical/graphair/internal/compose"
	"github.com/canonical/graphair/internal/lazy"
)

// Field reads and writes one named value of a document. Documents dispatch
// every access through the Field registered under the name on their type.
type Field interface {
	// Read returns the value of the field on the document, loading it if
	// the field supports that.
	Read(ctx context.Context, doc *Document, name string) (any, error)

	// Write sets the value of the field on the document.
	Write(doc *Document, name string, value any) error

	// Decode converts a value received from the database into the value
	// kept on the document.
	Decode(ctx context.Context, doc *Document, value any) any
}

// PropertyType is the database type of a property.
type PropertyType string

const (
	Boolean      PropertyType = "BOOLEAN"
	Integer      PropertyType = "INTEGER"
	Short        PropertyType = "SHORT"
	Long         PropertyType = "LONG"
	Float        PropertyType = "FLOAT"
	Double       PropertyType = "DOUBLE"
	Datetime     PropertyType = "DATETIME"
	String       PropertyType = "STRING"
	Binary       PropertyType = "BINARY"
	Embedded     PropertyType = "EMBEDDED"
	EmbeddedList PropertyType = "EMBEDDEDLIST"
	EmbeddedSet  PropertyType = "EMBEDDEDSET"
	EmbeddedMap  PropertyType = "EMBEDDEDMAP"
	Link         PropertyType = "LINK"
	LinkList     PropertyType = "LINKLIST"
	LinkSet      PropertyType = "LINKSET"
	LinkMap      PropertyType = "LINKMAP"
	Byte         PropertyType = "BYTE"
	Transient    PropertyType = "TRANSIENT"
	Date         PropertyType = "DATE"
	Custom       PropertyType = "CUSTOM"
	Decimal      PropertyType = "DECIMAL"
	LinkBag      PropertyType = "LINKBAG"
	Any          PropertyType = "ANY"
)

// kindsOf lists the reflect kinds a property type accepts. Types that are
// missing accept any value.
var kindsOf = map[PropertyType][]reflect.Kind{
	Boolean:      {reflect.Bool},
	Integer:      intKinds,
	Short:        intKinds,
	Long:         intKinds,
	Byte:         intKinds,
	Float:        numberKinds,
	Double:       numberKinds,
	Decimal:      numberKinds,
	String:       {reflect.String},
	Binary:       {reflect.Slice},
	EmbeddedList: {reflect.Slice, reflect.Array},
	EmbeddedSet:  {reflect.Slice, reflect.Array, reflect.Map},
	EmbeddedMap:  {reflect.Map},
	Link:         {reflect.String, reflect.Pointer},
	LinkList:     {reflect.Slice, reflect.Array},
	LinkSet:      {reflect.Slice, reflect.Array, reflect.Map},
	LinkMap:      {reflect.Map},
}

var intKinds = []reflect.Kind{
	reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
	reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
}

var numberKinds = append([]reflect.Kind{reflect.Float32, reflect.Float64}, intKinds...)

var propertyTypes = map[PropertyType]bool{
	Boolean: true, Integer: true, Short: true, Long: true, Float: true,
	Double: true, Datetime: true, String: true, Binary: true, Embedded: true,
	EmbeddedList: true, EmbeddedSet: true, EmbeddedMap: true, Link: true,
	LinkList: true, LinkSet: true, LinkMap: true, Byte: true, Transient: true,
	Date: true, Custom: true, Decimal: true, LinkBag: true, Any: true,
}

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	return propertyTypes[t]
}

// accepts reports whether value is of a Go type that can hold t.
func (t PropertyType) accepts(value any) bool {
	switch t {
	case Datetime, Date:
		_, ok := value.(time.Time)
		return ok
	case Binary:
		_, ok := value.([]byte)
		return ok
	}
	kinds, ok := kindsOf[t]
	if !ok {
		return true
	}
	k := reflect.ValueOf(value).Kind()
	for _, kind := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Property is a field stored on the record itself. Its value arrives with
// the record and is never loaded separately.
type Property struct {
	Type      PropertyType `yaml:"type"`
	Mandatory bool         `yaml:"mandatory"`
	NotNull   bool         `yaml:"notnull"`
	ReadOnly  bool         `yaml:"readonly"`
	// Min and Max bound numbers by value and strings and collections by
	// length.
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	Regexp  string   `yaml:"regexp"`
	Collate string   `yaml:"collate"`
	Default any      `yaml:"default"`
}

// Read returns the loaded value, or the default if the record did not carry
// the property.
func (p *Property) Read(ctx context.Context, doc *Document, name string) (any, error) {
	if v, ok := doc.values[name]; ok {
		return v, nil
	}
	return p.Default, nil
}

// Write validates the value against the constraints of the property and sets
// it on the document.
func (p *Property) Write(doc *Document, name string, value any) error {
	if p.ReadOnly {
		if _, ok := doc.values[name]; ok {
			return errors.Errorf("property %q of %s is read only", name, doc.typ.name)
		}
	}
	if err := p.Validate(value); err != nil {
		return errors.Wrapf(err, "cannot set property %q of %s", name, doc.typ.name)
	}
	doc.values[name] = value
	return nil
}

func (p *Property) Decode(ctx context.Context, doc *Document, value any) any {
	return value
}

// Validate checks value against the type and constraints of the property.
func (p *Property) Validate(value any) error {
	if value == nil {
		if p.NotNull || p.Mandatory {
			return errors.New("value must not be null")
		}
		return nil
	}
	if p.Type != "" && !p.Type.accepts(value) {
		return errors.Errorf("%T is not a valid %s", value, p.Type)
	}
	if p.Min != nil || p.Max != nil {
		size, ok := measure(value)
		if ok && p.Min != nil && size < *p.Min {
			return errors.Errorf("%v is less than the minimum %v", value, *p.Min)
		}
		if ok && p.Max != nil && size > *p.Max {
			return errors.Errorf("%v is more than the maximum %v", value, *p.Max)
		}
	}
	if p.Regexp != "" {
		s, ok := value.(string)
		if !ok {
			return errors.Errorf("%T cannot match %q", value, p.Regexp)
		}
		re, err := regexp.Compile(p.Regexp)
		if err != nil {
			return errors.Wrapf(err, "invalid regexp %q", p.Regexp)
		}
		if !re.MatchString(s) {
			return errors.Errorf("%q does not match %q", s, p.Regexp)
		}
	}
	return nil
}

// measure returns the quantity bounded by Min and Max.
func measure(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return float64(v.Len()), true
	}
	return 0, false
}

// Subquery is a field whose value is the result of a query run against its
// record. Query has a single {} placeholder for the record.
type Subquery struct {
	Query string `yaml:"query"`
	// Eager selects when the field is loaded along with its record.
	Eager EagerMode `yaml:"eager"`
	// Singular fields hold the first result, or nil, instead of a list.
	Singular bool `yaml:"singular"`
	// Prefetch names a document type whose eager query fields are loaded
	// along with the results.
	Prefetch string `yaml:"prefetch"`
}

var _ compose.Subquery = (*Subquery)(nil)

func (s *Subquery) Template() string {
	return s.Query
}

func (s *Subquery) PrefetchTarget() string {
	return s.Prefetch
}

// Read returns the results of the subquery. If they were not loaded with the
// record, the single field query is run through the document loader first.
func (s *Subquery) Read(ctx context.Context, doc *Document, name string) (any, error) {
	v, ok := doc.values[name]
	if !ok {
		if err := doc.loadField(ctx, name); err != nil {
			return nil, err
		}
		if v, ok = doc.values[name]; !ok {
			return nil, errors.Errorf("%s %s has no value for %q", doc.typ.name, doc.rid, name)
		}
	}
	if results, ok := v.(*lazy.Value[any]); ok {
		return results.Resolve()
	}
	return v, nil
}

func (s *Subquery) Write(doc *Document, name string, value any) error {
	return errors.Errorf("subquery %q of %s cannot be written", name, doc.typ.name)
}

// Decode defers turning the results into documents until the field is read,
// since linked records of the same result set may not be loaded yet.
func (s *Subquery) Decode(ctx context.Context, doc *Document, value any) any {
	results := asList(value)
	ctx = context.WithoutCancel(ctx)
	if s.Singular {
		return lazy.New(func() (any, error) {
			if len(results) == 0 {
				return nil, nil
			}
			return doc.follow(ctx, results[0])
		})
	}
	return lazy.New(func() (any, error) {
		docs := make([]any, 0, len(results))
		for _, r := range results {
			d, err := doc.follow(ctx, r)
			if err != nil {
				return nil, err
			}
			docs = append(docs, d)
		}
		return docs, nil
	})
}

// asList returns the results of a subquery as a list.
func asList(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		list := make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
		return list
	}
	return []any{value}
}
