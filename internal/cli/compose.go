// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/graphair/internal/compose"
)

type composeOptions struct {
	schema  string
	class   string
	purpose string
	target  string
}

// ComposeResult is the JSON output of the compose command.
type ComposeResult struct {
	Class   string `json:"class"`
	Purpose string `json:"purpose"`
	Query   string `json:"query"`
}

// NewComposeCommand creates the compose command.
func NewComposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &composeOptions{}
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Print the composed query of a class",
		Long: `Print the query that loads a record of a class together with its eager
subquery fields. The purpose selects the query:

  load           a record loaded by its RID
  query          records returned by a prefetching query
  field:<name>   a single subquery field`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.schema, "schema", "", "schema file")
	cmd.Flags().StringVar(&opts.class, "class", "", "class to compose the query of")
	cmd.Flags().StringVar(&opts.purpose, "purpose", "load", "load, query or field:<name>")
	cmd.Flags().StringVar(&opts.target, "target", compose.Target, "record locator substituted into the query")
	cmd.MarkFlagRequired("class")
	return cmd
}

func runCompose(rootOpts *RootOptions, opts *composeOptions, cmd *cobra.Command) error {
	purpose, err := compose.ParsePurpose(opts.purpose)
	if err != nil {
		return err
	}
	registry, err := rootOpts.loadSchema(opts.schema, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	class, err := registry.Class(opts.class)
	if err != nil {
		return err
	}
	text, err := registry.Composer().Query(class, purpose, opts.target)
	if err != nil {
		return err
	}

	if rootOpts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), ComposeResult{
			Class:   class.Name(),
			Purpose: purpose.String(),
			Query:   text,
		})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}
