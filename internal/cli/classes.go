// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ClassInfo is the JSON output of the classes command for one class.
type ClassInfo struct {
	Name           string   `json:"name"`
	Superclass     string   `json:"superclass,omitempty"`
	Clusters       []string `json:"clusters"`
	DefaultCluster string   `json:"default_cluster"`
	Fields         []string `json:"fields"`
	EagerOnLoad    []string `json:"eager_on_load"`
	EagerOnQuery   []string `json:"eager_on_query"`
}

// NewClassesCommand creates the classes command.
func NewClassesCommand(rootOpts *RootOptions) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the classes of a schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := rootOpts.loadSchema(schemaPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			var infos []ClassInfo
			for _, t := range registry.Classes() {
				infos = append(infos, ClassInfo{
					Name:           t.Name(),
					Superclass:     t.Superclass(),
					Clusters:       t.Clusters(),
					DefaultCluster: t.DefaultCluster(),
					Fields:         t.FieldNames(),
					EagerOnLoad:    sortedCopy(t.EagerOnLoad()),
					EagerOnQuery:   sortedCopy(t.EagerOnQuery()),
				})
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			return writeClasses(cmd, infos)
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file")
	return cmd
}

func writeClasses(cmd *cobra.Command, infos []ClassInfo) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tSUPERCLASS\tCLUSTERS\tFIELDS\tEAGER")
	for _, info := range infos {
		var eager []string
		for _, f := range info.EagerOnLoad {
			eager = append(eager, f+"(load)")
		}
		for _, f := range info.EagerOnQuery {
			eager = append(eager, f+"(query)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.Name,
			dash(info.Superclass),
			strings.Join(info.Clusters, ","),
			dash(strings.Join(info.Fields, ",")),
			dash(strings.Join(eager, ",")),
		)
	}
	return w.Flush()
}

func sortedCopy(names []string) []string {
	out := append([]string{}, names...)
	sort.Strings(out)
	return out
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
