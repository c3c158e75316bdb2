// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema_test

import (
	"context"
	"strings"
	"time"

	. "gopkg.in/check.v1"

	"github.com/canonical/graphair/schema"
)

type DocumentSuite struct{}

var _ = Suite(&DocumentSuite{})

func (s *DocumentSuite) TestAppendRecord(c *C) {
	reg := loadPeople(c)
	person, err := reg.Class("Person")
	c.Assert(err, IsNil)
	ctx := context.Background()

	doc := schema.NewDocument(person, "#9:1", nil)
	err = doc.AppendRecord(ctx, schema.Record{
		RID: "#9:1",
		Fields: map[string]any{
			"name":        "Fred",
			"person_age":  30,
			"@class":      "Person",
			"unknown_key": true,
		},
	})
	c.Assert(err, IsNil)

	name, err := doc.Get(ctx, "name")
	c.Assert(err, IsNil)
	c.Assert(name, Equals, "Fred")
	age, err := doc.Get(ctx, "age")
	c.Assert(err, IsNil)
	c.Assert(age, Equals, 30)

	// Values already present are kept.
	err = doc.AppendRecord(ctx, schema.Record{RID: "#9:1", Fields: map[string]any{"name": "Mark"}})
	c.Assert(err, IsNil)
	name, err = doc.Get(ctx, "name")
	c.Assert(err, IsNil)
	c.Assert(name, Equals, "Fred")

	err = doc.AppendRecord(ctx, schema.Record{RID: "#9:2"})
	c.Assert(err, ErrorMatches, `record #9:2 does not match document #9:1`)

	_, err = doc.Get(ctx, "unknown_key")
	c.Assert(err, ErrorMatches, `Person has no field "unknown_key"`)
}

func (s *DocumentSuite) TestEagerSubqueryResults(c *C) {
	reg := loadPeople(c)
	person, err := reg.Class("Person")
	c.Assert(err, IsNil)
	ctx := context.Background()

	loader := &fakeLoader{docs: map[string]*schema.Document{}}
	fred := schema.NewDocument(person, "#9:1", loader)
	mark := schema.NewDocument(person, "#9:2", loader)
	mary := schema.NewDocument(person, "#9:3", loader)
	for _, doc := range []*schema.Document{fred, mark, mary} {
		loader.docs[doc.RID()] = doc
	}

	err = fred.AppendRecord(ctx, schema.Record{
		RID: "#9:1",
		Fields: map[string]any{
			"person_friends":  []any{"#9:2", "#9:3"},
			"person_employer": []any{},
		},
	})
	c.Assert(err, IsNil)
	c.Assert(fred.Loaded("friends"), Equals, true)

	friends, err := fred.Get(ctx, "friends")
	c.Assert(err, IsNil)
	c.Assert(friends, DeepEquals, []any{mark, mary})

	employer, err := fred.Get(ctx, "employer")
	c.Assert(err, IsNil)
	c.Assert(employer, IsNil)
	c.Assert(loader.queries, HasLen, 0)

	err = fred.Set("friends", nil)
	c.Assert(err, ErrorMatches, `subquery "friends" of Person cannot be written`)
}

func (s *DocumentSuite) TestSubqueryLoadedOnRead(c *C) {
	reg := loadPeople(c)
	person, err := reg.Class("Person")
	c.Assert(err, IsNil)
	ctx := context.Background()

	loader := &fakeLoader{docs: map[string]*schema.Document{}}
	fred := schema.NewDocument(person, "#9:1", loader)
	acme := schema.Record{RID: "#-2:0", Fields: map[string]any{"name": "Acme"}}
	loader.docs["#9:1"] = fred
	loader.results = []schema.Record{
		{RID: "#9:1", Fields: map[string]any{"person_employer": []any{"Acme"}}},
		acme,
	}

	c.Assert(fred.Loaded("employer"), Equals, false)
	employer, err := fred.Get(ctx, "employer")
	c.Assert(err, IsNil)
	c.Assert(employer, Equals, "Acme")
	c.Assert(loader.queries, HasLen, 1)
	c.Assert(strings.HasPrefix(loader.queries[0], "SELECT expand(unionall($record, $person_employer_records))"), Equals, true)
	c.Assert(strings.Contains(loader.queries[0], "FROM #9:1\n"), Equals, true)

	// The value is kept for later reads.
	_, err = fred.Get(ctx, "employer")
	c.Assert(err, IsNil)
	c.Assert(loader.queries, HasLen, 1)
}

func (s *DocumentSuite) TestDetachedDocument(c *C) {
	person := schema.NewDocumentType("Person", "V")
	c.Assert(person.AddField("friends", &schema.Subquery{Query: "{}.out()"}), IsNil)
	doc := schema.NewDocument(person, "#9:1", nil)
	_, err := doc.Get(context.Background(), "friends")
	c.Assert(err, ErrorMatches, `cannot load "friends" of Person #9:1: document is detached`)
}

func (s *DocumentSuite) TestPropertyValidation(c *C) {
	reg := loadPeople(c)
	person, err := reg.Class("Person")
	c.Assert(err, IsNil)
	doc := schema.NewDocument(person, "#9:1", nil)

	c.Assert(doc.Set("age", 40), IsNil)
	c.Assert(doc.Set("age", -1), ErrorMatches, `cannot set property "age" of Person: -1 is less than the minimum 0`)
	c.Assert(doc.Set("age", 151), ErrorMatches, `cannot set property "age" of Person: 151 is more than the maximum 150`)
	c.Assert(doc.Set("age", "old"), ErrorMatches, `cannot set property "age" of Person: string is not a valid INTEGER`)
	c.Assert(doc.Set("name", nil), ErrorMatches, `cannot set property "name" of Person: value must not be null`)
	c.Assert(doc.Set("person_name", "Fred"), IsNil)

	v, err := doc.Get(context.Background(), "name")
	c.Assert(err, IsNil)
	c.Assert(v, Equals, "Fred")
}

func (s *DocumentSuite) TestPropertyConstraints(c *C) {
	var tests = []struct {
		summary  string
		property schema.Property
		value    any
		err      string
	}{{
		summary:  "regexp match",
		property: schema.Property{Type: schema.String, Regexp: "^[a-z]+$"},
		value:    "fred",
	}, {
		summary:  "regexp mismatch",
		property: schema.Property{Type: schema.String, Regexp: "^[a-z]+$"},
		value:    "Fred",
		err:      `"Fred" does not match "\^\[a-z\]\+\$"`,
	}, {
		summary:  "string length",
		property: schema.Property{Type: schema.String, Max: ptr(3)},
		value:    "Fred",
		err:      `Fred is more than the maximum 3`,
	}, {
		summary:  "datetime",
		property: schema.Property{Type: schema.Datetime},
		value:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}, {
		summary:  "datetime given a string",
		property: schema.Property{Type: schema.Datetime},
		value:    "2024-01-02",
		err:      `string is not a valid DATETIME`,
	}, {
		summary:  "double accepts integers",
		property: schema.Property{Type: schema.Double},
		value:    3,
	}, {
		summary:  "embedded list",
		property: schema.Property{Type: schema.EmbeddedList, Min: ptr(1)},
		value:    []string{},
		err:      `\[\] is less than the minimum 1`,
	}, {
		summary:  "any type",
		property: schema.Property{Type: schema.Any},
		value:    struct{}{},
	}, {
		summary:  "optional null",
		property: schema.Property{Type: schema.Link},
		value:    nil,
	}}

	for _, test := range tests {
		err := test.property.Validate(test.value)
		if test.err == "" {
			c.Check(err, IsNil, Commentf("summary: %s", test.summary))
		} else {
			c.Check(err, ErrorMatches, test.err, Commentf("summary: %s", test.summary))
		}
	}
}

func (s *DocumentSuite) TestReadOnlyProperty(c *C) {
	t := schema.NewDocumentType("Thing", "")
	c.Assert(t.AddField("serial", &schema.Property{Type: schema.Long, ReadOnly: true, Default: int64(0)}), IsNil)
	doc := schema.NewDocument(t, "#3:1", nil)

	v, err := doc.Get(context.Background(), "serial")
	c.Assert(err, IsNil)
	c.Assert(v, Equals, int64(0))

	c.Assert(doc.Set("serial", int64(7)), IsNil)
	c.Assert(doc.Set("serial", int64(8)), ErrorMatches, `property "serial" of Thing is read only`)
}

func (s *DocumentSuite) TestRID(c *C) {
	c.Assert(schema.FormatRID(9, 1), Equals, "#9:1")
	c.Assert(schema.FormatRID(-2, 0), Equals, "#-2:0")

	cluster, position, err := schema.ParseRID("#12:40")
	c.Assert(err, IsNil)
	c.Assert(cluster, Equals, int64(12))
	c.Assert(position, Equals, int64(40))

	cluster, _, err = schema.ParseRID("-2:0")
	c.Assert(err, IsNil)
	c.Assert(cluster, Equals, int64(-2))

	for _, bad := range []string{"", "#9", "#a:1", "#9:b"} {
		_, _, err := schema.ParseRID(bad)
		c.Check(err, ErrorMatches, `invalid RID ".*"`)
	}
}

func ptr(f float64) *float64 {
	return &f
}
