package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/store"
)

// NewHotLeadsCommand creates the hot-leads command.
func NewHotLeadsCommand(rootOpts *RootOptions) *cobra.Command {
	var minIntent int
	cmd := &cobra.Command{
		Use:   "hot-leads",
		Short: "List companies with high buying intent",
		Long: `List companies whose buying intent score is at least --min-intent, highest
first, with their current ICP score and open deal count.

Example:
  salesmachine hot-leads --min-intent 80 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			threshold := model.Score(minIntent)
			if !threshold.IsValid() {
				return out.FailWith(ExitCommandError, ErrCodeInvalidInput,
					fmt.Sprintf("--min-intent must be between 0 and 100, got %d", minIntent), nil)
			}

			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			leads, err := e.store.HotLeads(cmd.Context(), threshold)
			if err != nil {
				return e.out.Fail("failed to query hot leads", err)
			}
			if leads == nil {
				leads = []store.HotLead{}
			}
			return e.out.Render(leads, func(w io.Writer) {
				if len(leads) == 0 {
					fmt.Fprintf(w, "No companies with buying intent >= %d\n", minIntent)
					return
				}
				for _, l := range leads {
					icp := "-"
					if l.ICPScore != nil {
						icp = fmt.Sprintf("%d %s", *l.ICPScore, l.Temperature)
					}
					fmt.Fprintf(w, "%s  intent %3d  ICP %-9s  %d open deal(s)  %s\n",
						l.CompanyID, l.BuyingIntentScore, icp, l.OpenDeals, l.Name)
				}
			})
		},
	}
	cmd.Flags().IntVar(&minIntent, "min-intent", 70, "minimum buying intent score")
	return cmd
}
