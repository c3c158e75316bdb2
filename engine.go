// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package graphair

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/canonical/graphair/config"
	"github.com/canonical/graphair/internal/compose"
	"github.com/canonical/graphair/schema"
)

// Cluster is a physical partition of the database holding records of one
// document type.
type Cluster struct {
	Name string
	ID   int64
}

// RID returns the RID of the record at position in the cluster.
func (c Cluster) RID(position int64) string {
	return schema.FormatRID(c.ID, position)
}

// key returns the registry key of the document type of the cluster.
func (c Cluster) key() string {
	return "cluster:" + c.Name
}

// Engine binds a schema registry to a database. Connections are made from
// the engine.
type Engine struct {
	registry *schema.Registry
	exec     Executor
	logger   *slog.Logger

	byName map[string]Cluster
	byID   map[int64]Cluster
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger of the engine and its connections.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine returns an engine running queries through exec. The clusters
// of cfg map the cluster ids found in RIDs to the document types of
// registry.
func NewEngine(cfg *config.Config, registry *schema.Registry, exec Executor, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "cannot create engine")
	}
	if registry == nil {
		return nil, errors.New("cannot create engine: no schema registry")
	}
	if exec == nil {
		return nil, errors.New("cannot create engine: no executor")
	}
	e := &Engine{
		registry: registry,
		exec:     exec,
		logger:   slog.Default(),
		byName:   map[string]Cluster{},
		byID:     map[int64]Cluster{},
	}
	for _, cc := range cfg.Clusters {
		cluster := Cluster{Name: cc.Name, ID: cc.ID}
		e.byName[cluster.Name] = cluster
		e.byID[cluster.ID] = cluster
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Open creates an engine from cfg alone: the database is opened with its
// driver and DSN, the schema is loaded from the schema file and the logger
// writes to logOutput. The query templates of the schema are composed before
// Open returns. The returned close function closes the executor and the
// database.
func Open(ctx context.Context, cfg *config.Config, logOutput io.Writer) (*Engine, func() error, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger, err := cfg.Log.Logger(logOutput)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot open engine")
	}
	var registry *schema.Registry
	if cfg.Schema == "" {
		registry = schema.NewRegistry(compose.WithLogger(logger))
	} else {
		registry, err = schema.LoadFile(cfg.Schema, compose.WithLogger(logger))
		if err != nil {
			return nil, nil, errors.Wrap(err, "cannot open engine")
		}
	}
	if err := registry.Warm(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "cannot open engine")
	}
	logger.Debug("composed query templates", "count", registry.TemplateCount())
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot open engine")
	}
	exec := NewSQLExecutor(db)
	engine, err := NewEngine(cfg, registry, exec, WithLogger(logger))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	closer := func() error {
		err := exec.Close()
		if dberr := db.Close(); err == nil {
			err = dberr
		}
		return err
	}
	return engine, closer, nil
}

// Registry returns the schema registry of the engine.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// Cluster returns the cluster with the given name.
func (e *Engine) Cluster(name string) (Cluster, bool) {
	c, ok := e.byName[name]
	return c, ok
}

// ClusterByID returns the cluster with the given id.
func (e *Engine) ClusterByID(id int64) (Cluster, bool) {
	c, ok := e.byID[id]
	return c, ok
}

// Connect returns a new connection with an empty identity map.
func (e *Engine) Connect() *Connection {
	return &Connection{
		engine:  e,
		records: map[string]*schema.Document{},
		logger:  e.logger,
	}
}
