package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/salesmachine/internal/model"
)

// MigrateResult is the output of migrate.
type MigrateResult struct {
	Database      string                `json:"database"`
	SchemaVersion int                   `json:"schema_version"`
	Stages        []model.PipelineStage `json:"stages"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database and sync pipeline stages",
		Long: `Create the SQLite database if it does not exist, apply pending schema
migrations and sync the pipeline stages from the catalog.

Stages removed from the catalog are parked rather than deleted, so deals that
reference them keep their history.

Example:
  salesmachine migrate --db ./salesmachine.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if err := e.store.SyncStages(ctx, e.catalog.Stages); err != nil {
		return e.out.Fail("failed to sync stages", err)
	}
	version, err := e.store.SchemaVersion(ctx)
	if err != nil {
		return e.out.Fail("failed to read schema version", err)
	}
	stages, err := e.store.ListStages(ctx)
	if err != nil {
		return e.out.Fail("failed to list stages", err)
	}
	slog.Info("database migrated", "db", e.cfg.Database, "version", version, "stages", len(stages))

	res := MigrateResult{Database: e.cfg.Database, SchemaVersion: version, Stages: stages}
	return e.out.Render(res, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Database %s at schema version %d\n\n", res.Database, res.SchemaVersion)
		fmt.Fprintln(w, "Stages:")
		for _, s := range res.Stages {
			closes := ""
			if s.Closes != "" {
				closes = " (closes " + string(s.Closes) + ")"
			}
			fmt.Fprintf(w, "  %d. %s %s %d%%%s\n", s.Position, s.Key, s.Name, s.Probability, closes)
		}
	})
}
