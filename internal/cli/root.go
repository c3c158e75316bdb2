// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package cli implements the graphair command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/canonical/graphair/config"
	"github.com/canonical/graphair/internal/compose"
	"github.com/canonical/graphair/schema"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Verbose    bool

	config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the graphair CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "graphair",
		Short: "Compose and run graph database queries",
		Long: `graphair loads document schemas and composes the queries that fetch
records together with their eager subquery fields.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $"+config.EnvVar+" or ./graphair.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(NewComposeCommand(opts))
	cmd.AddCommand(NewClassesCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

func (opts *RootOptions) loadConfig() error {
	var err error
	if opts.ConfigPath != "" {
		opts.config, _, err = config.LoadFromPath(opts.ConfigPath)
	} else {
		opts.config, _, err = config.Load()
	}
	if err != nil {
		return err
	}
	if opts.Verbose {
		opts.config.Log.Level = "debug"
	}
	return nil
}

// Config returns the loaded configuration, or the defaults before the
// command has run.
func (opts *RootOptions) Config() *config.Config {
	if opts.config == nil {
		return config.DefaultConfig()
	}
	return opts.config
}

// loadSchema loads the schema at path, falling back to the schema file of
// the configuration.
func (opts *RootOptions) loadSchema(path string, stderr io.Writer) (*schema.Registry, error) {
	cfg := opts.Config()
	if path == "" {
		path = cfg.Schema
	}
	if path == "" {
		return nil, fmt.Errorf("no schema given: use --schema or set schema in the config file")
	}
	logger, err := cfg.Log.Logger(stderr)
	if err != nil {
		return nil, err
	}
	return schema.LoadFile(path, compose.WithLogger(logger))
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
