// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canonical/graphair"
	"github.com/canonical/graphair/schema"
)

// QueryResult is the JSON output of the query command for one result.
type QueryResult struct {
	RID    string         `json:"rid"`
	Class  string         `json:"class,omitempty"`
	Fields map[string]any `json:"fields"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a query on the configured database",
		Long: `Run a query on the database of the config file and print the results.
The query must return a @rid column. Documents show the fields loaded by the
query, projections show their columns.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runQuery(ctx context.Context, rootOpts *RootOptions, text string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	engine, closer, err := graphair.Open(ctx, rootOpts.Config(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer()

	results, err := engine.Connect().Query(ctx, text)
	if err != nil {
		return err
	}
	out := make([]QueryResult, 0, len(results))
	for _, result := range results {
		r, err := describe(ctx, result)
		if err != nil {
			return err
		}
		out = append(out, r)
	}

	if rootOpts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	for _, r := range out {
		keys := make([]string, 0, len(r.Fields))
		for k := range r.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, r.Fields[k])
		}
		label := r.RID
		if r.Class != "" {
			label = r.Class + " " + r.RID
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", label, strings.Join(parts, " "))
	}
	return nil
}

// describe returns the loaded fields of a document, or the columns of a
// projection. Linked documents are shown by RID.
func describe(ctx context.Context, result any) (QueryResult, error) {
	switch r := result.(type) {
	case graphair.Record:
		return QueryResult{RID: r.RID, Fields: r.Fields}, nil
	case *schema.Document:
		fields := map[string]any{}
		for _, name := range r.Type().FieldNames() {
			if !r.Loaded(name) {
				continue
			}
			v, err := r.Get(ctx, name)
			if err != nil {
				return QueryResult{}, err
			}
			fields[name] = linked(v)
		}
		return QueryResult{RID: r.RID(), Class: r.Type().Name(), Fields: fields}, nil
	}
	return QueryResult{}, fmt.Errorf("unexpected result %T", result)
}

func linked(v any) any {
	switch v := v.(type) {
	case *schema.Document:
		return v.RID()
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = linked(item)
		}
		return out
	}
	return v
}
