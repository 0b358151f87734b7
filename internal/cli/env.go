package cli

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/salesmachine/internal/catalog"
	"github.com/roach88/salesmachine/internal/config"
	"github.com/roach88/salesmachine/internal/edge"
	"github.com/roach88/salesmachine/internal/pipeline"
	"github.com/roach88/salesmachine/internal/store"
)

// env is what a command needs: configuration, the catalog and an open store.
type env struct {
	cfg     config.Config
	catalog *catalog.Catalog
	store   *store.Store
	out     *OutputFormatter
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// loadConfig reads --config and applies --db over it.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	return cfg, nil
}

// loadCatalog returns the configured catalog without opening the database.
func (o *RootOptions) loadCatalog(out *OutputFormatter) (config.Config, *catalog.Catalog, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return config.Config{}, nil, out.FailWith(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		return config.Config{}, nil, out.FailWith(ExitCommandError, ErrCodeCatalog, "failed to load catalog", err)
	}
	return cfg, cat, nil
}

// open loads config and catalog and opens the database. The caller must
// Close the env.
func (o *RootOptions) open(cmd *cobra.Command) (*env, error) {
	out := o.formatter(cmd)
	cfg, cat, err := o.loadCatalog(out)
	if err != nil {
		return nil, err
	}

	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, out.FailWith(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	return &env{cfg: cfg, catalog: cat, store: st, out: out}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// edgeClient builds the edge function client from the config.
func (e *env) edgeClient() (*edge.Client, error) {
	var opts []edge.Option
	if e.cfg.Edge.Timeout > 0 {
		opts = append(opts, edge.WithHTTPClient(&http.Client{Timeout: e.cfg.Edge.Timeout}))
	}
	return edge.New(e.cfg.Edge.BaseURL, e.cfg.EdgeKey(), opts...)
}

// pipeline wires the edge functions in as every collaborator.
func (e *env) pipeline(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	client, err := e.edgeClient()
	if err != nil {
		return nil, e.out.FailWith(ExitCommandError, ErrCodeEdge, "edge functions are not configured", err)
	}
	base := []pipeline.Option{
		pipeline.WithValidator(client),
		pipeline.WithICPScorer(client),
		pipeline.WithDealHealthScorer(client),
		pipeline.WithProposalGenerator(client),
		pipeline.WithMaxSteps(e.cfg.Pipeline.MaxSteps),
		pipeline.WithConcurrency(e.cfg.Pipeline.Concurrency),
	}
	return pipeline.New(e.store, e.catalog, append(base, opts...)...), nil
}
