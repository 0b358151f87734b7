package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete deals whose company no longer exists",
		Long: `Delete orphaned deals, those whose company row is gone. Orphaned deals
that hold a sent quote or a sent proposal are kept and reported as skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.store.CleanupOrphanedDeals(cmd.Context())
			if err != nil {
				return e.out.Fail("cleanup failed", err)
			}
			slog.Info("orphaned deals cleaned up", "deleted", len(res.Deleted), "skipped", len(res.Skipped))
			return e.out.Render(res, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Deleted %d orphaned deal(s)\n", len(res.Deleted))
				for _, id := range res.Deleted {
					fmt.Fprintf(w, "  - %s\n", id)
				}
				if len(res.Skipped) > 0 {
					fmt.Fprintf(w, "Kept %d with a sent quote or sent proposal:\n", len(res.Skipped))
					for _, id := range res.Skipped {
						fmt.Fprintf(w, "  - %s\n", id)
					}
				}
			})
		},
	}
}
