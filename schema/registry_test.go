// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema_test

import (
	"context"
	"errors"
	"sort"
	"strings"

	. "gopkg.in/check.v1"

	"github.com/canonical/graphair/internal/compose"
	"github.com/canonical/graphair/schema"
)

type RegistrySuite struct{}

var _ = Suite(&RegistrySuite{})

func (s *RegistrySuite) TestDefaultClasses(c *C) {
	reg := schema.NewRegistry()
	classes := reg.Classes()
	c.Assert(classes, HasLen, 2)
	c.Assert(classes[0].Name(), Equals, "V")
	c.Assert(classes[1].Name(), Equals, "E")

	v, err := reg.Lookup("cluster:v")
	c.Assert(err, IsNil)
	c.Assert(v, Equals, classes[0])
	c.Assert(v.DefaultCluster(), Equals, "v")
}

func (s *RegistrySuite) TestLookup(c *C) {
	reg := loadPeople(c)

	person, err := reg.Lookup("Person")
	c.Assert(err, IsNil)
	c.Assert(person.Clusters(), DeepEquals, []string{"person", "person_archive"})
	c.Assert(person.DefaultCluster(), Equals, "person")
	c.Assert(person.Superclass(), Equals, "V")

	archived, err := reg.Lookup("cluster:person_archive")
	c.Assert(err, IsNil)
	c.Assert(archived, Equals, person)

	_, err = reg.Lookup("person_archive")
	c.Assert(err, ErrorMatches, `document type "person_archive": not found`)
	c.Assert(errors.Is(err, schema.ErrNotFound), Equals, true)

	_, err = reg.Lookup("cluster:nowhere")
	c.Assert(err, ErrorMatches, `document type "cluster:nowhere": not found`)

	_, err = reg.Class("cluster:person")
	c.Assert(err, ErrorMatches, `class "cluster:person": not found`)
}

func (s *RegistrySuite) TestDuplicates(c *C) {
	reg := schema.NewRegistry()
	c.Assert(reg.Add(schema.NewDocumentType("Person", "V")), IsNil)

	err := reg.Add(schema.NewDocumentType("Person", "V", "people"))
	c.Assert(err, ErrorMatches, `class "Person" has already been defined`)

	err = reg.Add(schema.NewDocumentType("Human", "V", "people", "person"))
	c.Assert(err, ErrorMatches, `cluster "person" has already been defined for class "Person"`)

	// A failed add leaves no trace.
	_, err = reg.Lookup("cluster:people")
	c.Assert(err, NotNil)
}

func (s *RegistrySuite) TestSuperclass(c *C) {
	reg := loadPeople(c)
	dog, err := reg.Class("Dog")
	c.Assert(err, IsNil)
	c.Assert(dog.FieldNames(), DeepEquals, []string{"name", "toys"})
	c.Assert(dog.EagerOnQuery(), DeepEquals, []string{"toys"})
	c.Assert(dog.EagerOnLoad(), HasLen, 0)

	err = schema.NewRegistry().Add(schema.NewDocumentType("Cat", "Pet"))
	c.Assert(err, ErrorMatches, `superclass "Pet" of "Cat": not found`)
}

func (s *RegistrySuite) TestAddFieldAfterRegistration(c *C) {
	reg := schema.NewRegistry()
	t := schema.NewDocumentType("Person", "V")
	c.Assert(t.AddField("name", &schema.Property{Type: schema.String}), IsNil)
	c.Assert(t.AddField("name", &schema.Property{}), ErrorMatches, `Person already has a field "name"`)
	c.Assert(reg.Add(t), IsNil)
	c.Assert(t.AddField("age", &schema.Property{}), ErrorMatches, `cannot add field "age" to Person: type is registered`)
	c.Assert(reg.Add(t), ErrorMatches, `class "Person" is already registered`)
}

func (s *RegistrySuite) TestFieldPrefix(c *C) {
	reg := loadPeople(c)
	person, err := reg.Class("Person")
	c.Assert(err, IsNil)

	name, f, ok := person.Field("person_friends")
	c.Assert(ok, Equals, true)
	c.Assert(name, Equals, "friends")
	c.Assert(f, FitsTypeOf, &schema.Subquery{})

	name, _, ok = person.Field("PERSON_age")
	c.Assert(ok, Equals, true)
	c.Assert(name, Equals, "age")

	_, _, ok = person.Field("pet_toys")
	c.Assert(ok, Equals, false)

	_, ok = person.Subquery("person_friends")
	c.Assert(ok, Equals, false)
	_, ok = person.Subquery("name")
	c.Assert(ok, Equals, false)
}

func (s *RegistrySuite) TestEagerLists(c *C) {
	reg := loadPeople(c)
	person, err := reg.Class("Person")
	c.Assert(err, IsNil)

	load := person.EagerOnLoad()
	c.Assert(load, HasLen, 2)
	c.Assert(strings.Join(sorted(load), ","), Equals, "friends,pets")
	c.Assert(person.EagerOnQuery(), DeepEquals, []string{"pets"})
}

func (s *RegistrySuite) TestComposerResolvesThroughRegistry(c *C) {
	reg := loadPeople(c)
	person, err := reg.Class("Person")
	c.Assert(err, IsNil)

	text, err := reg.Composer().Query(person, compose.EagerQuery, "#9:1")
	c.Assert(err, IsNil)
	c.Assert(text, Equals, `SELECT expand(unionall($record, $person_pets_records))
LET $record = (SELECT *, $person_pets AS person_pets
FROM #9:1
LET $person_pets = $current.out('Owns')),
$person_pets_records = (SELECT expand(unionall($record, $pet_toys_records))
LET $record = (SELECT *, $pet_toys AS pet_toys
FROM $record.person_pets
LET $pet_toys = $current.out('Has')),
$pet_toys_records = (SELECT
FROM $record.pet_toys))`)
	c.Assert(reg.TemplateCount(), Equals, 2)

	bad := schema.NewRegistry()
	orphan := schema.NewDocumentType("Orphan", "V")
	c.Assert(orphan.AddField("parent", &schema.Subquery{Query: "{}.in()", Eager: schema.EagerOnLoad, Prefetch: "Parent"}), IsNil)
	c.Assert(bad.Add(orphan), IsNil)
	_, err = bad.Composer().Template(orphan, compose.RecordLoad)
	c.Assert(err, ErrorMatches, `cannot compose field "parent" of Orphan: cannot resolve prefetch target "Parent": class "Parent": not found`)
}

func (s *RegistrySuite) TestWarm(c *C) {
	reg := loadPeople(c)
	c.Assert(reg.TemplateCount(), Equals, 0)

	c.Assert(reg.Warm(context.Background()), IsNil)
	count := reg.TemplateCount()
	c.Assert(count, Equals, 2*len(reg.Classes()))

	person, err := reg.Class("Person")
	c.Assert(err, IsNil)
	_, err = reg.Composer().Query(person, compose.RecordLoad, "#9:1")
	c.Assert(err, IsNil)
	c.Assert(reg.TemplateCount(), Equals, count)

	bad := schema.NewRegistry()
	orphan := schema.NewDocumentType("Orphan", "V")
	c.Assert(orphan.AddField("parent", &schema.Subquery{Query: "{}.in()", Eager: schema.EagerOnQuery, Prefetch: "Parent"}), IsNil)
	c.Assert(bad.Add(orphan), IsNil)
	err = bad.Warm(context.Background())
	c.Assert(err, ErrorMatches, `cannot compose field "parent" of Orphan: cannot resolve prefetch target "Parent": class "Parent": not found`)
}

func sorted(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
