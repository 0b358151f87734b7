package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/salesmachine/internal/pipeline"
)

// RecalculateResult is the output of recalculate.
type RecalculateResult struct {
	Rows   []pipeline.RecalcRow `json:"rows"`
	Scored int                  `json:"scored"`
	Failed int                  `json:"failed"`
}

// NewRecalculateCommand creates the recalculate command.
func NewRecalculateCommand(rootOpts *RootOptions) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Rescore every approved and qualified lead",
		Long: `Rescore every approved and qualified lead with the ICP scoring edge
function and record a new analysis version for each. Lead statuses do not
change. Scoring within a batch runs concurrently, bounded by
pipeline.concurrency in the config file.

Exit codes:
  0 - Every lead was rescored
  1 - At least one lead failed
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := e.pipeline()
			if err != nil {
				return err
			}
			size := batchSize
			if size <= 0 {
				size = e.cfg.Pipeline.BatchSize
			}
			rows, err := p.Recalculate(ctx, size)
			if err != nil {
				return e.out.Fail("recalculation failed", err)
			}

			res := RecalculateResult{Rows: rows}
			for _, r := range rows {
				if r.Error != "" {
					res.Failed++
				} else {
					res.Scored++
				}
			}
			if err := e.out.Render(res, func(w io.Writer) {
				for _, r := range rows {
					if r.Error != "" {
						fmt.Fprintf(w, "✗ %s  %s\n", r.LeadID, r.Error)
						continue
					}
					fmt.Fprintf(w, "✓ %s  %3d %-4s  v%d\n", r.LeadID, r.Score, r.Temperature, r.Version)
				}
				fmt.Fprintf(w, "\n%d rescored, %d failed\n", res.Scored, res.Failed)
			}); err != nil {
				return err
			}
			if res.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d lead(s) failed to rescore", res.Failed))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "leads per batch (default from config)")
	return cmd
}
