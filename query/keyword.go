// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package query

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind identifies a clause of the query language.
type Kind int

const (
	SelectKind Kind = iota
	FromKind
	LetKind
	WhereKind
	GroupByKind
	OrderByKind
	UnwindKind
	SkipKind
	LimitKind
	FetchPlanKind
	TimeoutKind
	LockKind
	ParallelKind
	NoCacheKind
	TraverseKind
	MaxDepthKind
	WhileKind
	StrategyKind
)

// shape is the form an expression of a clause kind takes.
type shape int

const (
	listShape shape = iota
	stringShape
	integerShape
	optionShape
	flagShape
)

// kindSpec describes how a clause kind validates and renders its expression.
type kindSpec struct {
	keyword string
	shape   shape
	// required is set on list kinds that fail to render without
	// expressions.
	required bool
	// options are the legal values of an option kind. The first one is the
	// default.
	options []string
}

var kindSpecs = map[Kind]kindSpec{
	SelectKind:    {keyword: "SELECT", shape: listShape},
	FromKind:      {keyword: "FROM", shape: listShape, required: true},
	LetKind:       {keyword: "LET", shape: listShape, required: true},
	WhereKind:     {keyword: "WHERE", shape: listShape, required: true},
	GroupByKind:   {keyword: "GROUP BY", shape: stringShape},
	OrderByKind:   {keyword: "ORDER BY", shape: listShape, required: true},
	UnwindKind:    {keyword: "UNWIND", shape: stringShape},
	SkipKind:      {keyword: "SKIP", shape: integerShape},
	LimitKind:     {keyword: "LIMIT", shape: integerShape},
	FetchPlanKind: {keyword: "FETCHPLAN", shape: stringShape},
	TimeoutKind:   {keyword: "TIMEOUT", shape: stringShape},
	LockKind:      {keyword: "LOCK", shape: optionShape, options: []string{"default", "record"}},
	ParallelKind:  {keyword: "PARALLEL", shape: flagShape},
	NoCacheKind:   {keyword: "NOCACHE", shape: flagShape},
	TraverseKind:  {keyword: "TRAVERSE", shape: listShape, required: true},
	MaxDepthKind:  {keyword: "MAXDEPTH", shape: integerShape},
	WhileKind:     {keyword: "WHILE", shape: listShape, required: true},
	StrategyKind:  {keyword: "STRATEGY", shape: optionShape, options: []string{"DEPTH_FIRST", "BREADTH_FIRST"}},
}

// Keyword returns the query language keyword of the clause kind.
func (k Kind) Keyword() string {
	return kindSpecs[k].keyword
}

// Options returns the legal values of an option clause kind, or nil for
// other kinds.
func (k Kind) Options() []string {
	opts := kindSpecs[k].options
	if opts == nil {
		return nil
	}
	return append([]string(nil), opts...)
}

func (k Kind) String() string {
	if kw := k.Keyword(); kw != "" {
		return kw
	}
	return "UNKNOWN"
}

// normalizeName folds a clause name so that "ORDER BY", "orderby", "order_by"
// and "Order-By" compare equal.
func normalizeName(name string) string {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t', '\n':
			return -1
		}
		return r
	}, name)
	return cases.Upper(language.Und).String(stripped)
}

// kindByName maps the normalized keyword of every kind to the kind.
var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindSpecs))
	for k, spec := range kindSpecs {
		m[normalizeName(spec.keyword)] = k
	}
	return m
}()

// LookupKind resolves a clause name to its kind. Case and the separators
// space, underscore and hyphen are ignored.
func LookupKind(name string) (Kind, bool) {
	k, ok := kindByName[normalizeName(name)]
	return k, ok
}
