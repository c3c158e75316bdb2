// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package config holds the settings of a graphair engine.
//
// Config file locations, in priority order:
//  1. $GRAPHAIR_CONFIG
//  2. ./graphair.yaml
package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "GRAPHAIR_CONFIG"

// DefaultPrefix is the key prefix FromMap uses when none is given.
const DefaultPrefix = "graphair."

// CurrentVersion is the only configuration format version understood.
const CurrentVersion = 1

// Config is the configuration of an engine.
type Config struct {
	Version  int             `yaml:"version"`
	Database DatabaseConfig  `yaml:"database"`
	Schema   string          `yaml:"schema"`
	Clusters []ClusterConfig `yaml:"clusters"`
	Log      LogConfig       `yaml:"log"`
}

// DatabaseConfig locates the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ClusterConfig maps a cluster name to its id.
type ClusterConfig struct {
	Name string `yaml:"name"`
	ID   int64  `yaml:"id"`
}

// LogConfig selects the level and format of the engine logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// FindConfigPath returns the first config file that exists, or "".
func FindConfigPath() string {
	if path := os.Getenv(EnvVar); path != "" {
		return path
	}
	if _, err := os.Stat("graphair.yaml"); err == nil {
		return "graphair.yaml"
	}
	return ""
}

// Load finds and loads the config file, or returns defaults if none is found.
// The path of the loaded file is returned along with the config.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads the config file at path.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, errors.Wrap(err, "cannot read config")
	}
	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// FromMap builds a config from flat dotted keys such as
// "graphair.database.dsn". Only keys starting with prefix are used, with the
// prefix stripped. An empty prefix selects DefaultPrefix.
func FromMap(values map[string]any, prefix string) (*Config, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	tree := map[string]any{}
	for key, value := range values {
		key, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		if err := insert(tree, strings.Split(key, "."), value); err != nil {
			return nil, errors.Wrapf(err, "cannot use key %q", prefix+key)
		}
	}
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode config")
	}
	return decode(bytes.NewReader(data))
}

// insert sets value at path in tree, creating intermediate maps.
func insert(tree map[string]any, path []string, value any) error {
	for _, part := range path[:len(path)-1] {
		if part == "" {
			return errors.New("empty key segment")
		}
		next, ok := tree[part]
		if !ok {
			sub := map[string]any{}
			tree[part] = sub
			tree = sub
			continue
		}
		sub, ok := next.(map[string]any)
		if !ok {
			return errors.Errorf("%q already holds a value", part)
		}
		tree = sub
	}
	last := path[len(path)-1]
	if last == "" {
		return errors.New("empty key segment")
	}
	if _, ok := tree[last]; ok {
		return errors.Errorf("%q is set twice", last)
	}
	tree[last] = value
	return nil
}

func decode(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks that cluster names and ids are unique and that the
// version and log settings are understood.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return errors.Errorf("unsupported config version %d", c.Version)
	}
	names := map[string]bool{}
	ids := map[int64]string{}
	for _, cluster := range c.Clusters {
		if cluster.Name == "" {
			return errors.Errorf("cluster %d needs a name", cluster.ID)
		}
		if names[cluster.Name] {
			return errors.Errorf("cluster %q is configured twice", cluster.Name)
		}
		if other, ok := ids[cluster.ID]; ok {
			return errors.Errorf("clusters %q and %q share the id %d", other, cluster.Name, cluster.ID)
		}
		names[cluster.Name] = true
		ids[cluster.ID] = cluster.Name
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format %q, expected text or json", c.Log.Format)
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, errors.Errorf("unknown log level %q", l.Level)
	}
	return level, nil
}

// Logger returns a logger writing to w with the configured level and format.
func (l LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch l.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, errors.Errorf("unknown log format %q, expected text or json", l.Format)
	}
	return slog.New(handler), nil
}
