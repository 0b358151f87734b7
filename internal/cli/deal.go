package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/salesmachine/internal/costs"
	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/store"
)

// NewDealCommand creates the deal command group.
func NewDealCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deal",
		Short: "Manage deals in the sales pipeline",
	}
	cmd.AddCommand(
		newDealCreateCommand(rootOpts),
		newDealListCommand(rootOpts),
		newDealMoveCommand(rootOpts),
		newDealCloseCommand(rootOpts),
		newDealHealthCommand(rootOpts),
		newDealProposeCommand(rootOpts),
	)
	return cmd
}

func printDeal(w io.Writer, d model.Deal) {
	fmt.Fprintf(w, "Deal %s: %s\n", d.ID, d.Title)
	fmt.Fprintf(w, "  Company: %s\n", d.CompanyID)
	fmt.Fprintf(w, "  Stage:   %s (%d%%)\n", d.StageKey, d.Probability)
	fmt.Fprintf(w, "  Value:   %s\n", costs.FormatBRL(d.Value))
	fmt.Fprintf(w, "  Status:  %s\n", d.Status)
	if d.HealthScore != nil {
		fmt.Fprintf(w, "  Health:  %d\n", *d.HealthScore)
	}
	if d.Owner != "" {
		fmt.Fprintf(w, "  Owner:   %s\n", d.Owner)
	}
}

func newDealCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var company, title, value, stage, owner string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a deal for a company",
		Long: `Open a deal for a promoted company. Without --stage the deal starts in the
first open pipeline stage. Run "salesmachine migrate" first so the stages
exist.

Examples:
  salesmachine deal create --company <company-id> --title "ERP rollout" --value 50000
  salesmachine deal create --company <company-id> --title Expansion --value "1.200,50" --stage discovery`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			in := store.DealInput{CompanyID: company, Title: title, StageKey: stage, Owner: owner}
			if value != "" {
				v, err := model.ParseCents(value)
				if err != nil {
					return out.FailWith(ExitCommandError, ErrCodeInvalidInput, "invalid --value", err)
				}
				in.Value = v
			}

			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			deal, err := e.store.CreateDeal(cmd.Context(), in)
			if err != nil {
				return e.out.Fail("failed to create deal", err)
			}
			slog.Info("deal created", "deal", deal.ID, "company", deal.CompanyID, "stage", deal.StageKey)
			return e.out.Render(deal, func(w io.Writer) {
				fmt.Fprintln(w, "✓ Deal created")
				printDeal(w, deal)
			})
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "deal title (required)")
	cmd.Flags().StringVar(&value, "value", "", "deal value in BRL, e.g. 50000 or 1.200,50")
	cmd.Flags().StringVar(&stage, "stage", "", "initial pipeline stage")
	cmd.Flags().StringVar(&owner, "owner", "", "deal owner")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newDealListCommand(rootOpts *RootOptions) *cobra.Command {
	var company, status, stage string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			filter := store.DealFilter{CompanyID: company, StageKey: stage, Limit: limit}
			if status != "" {
				st, err := model.ParseDealStatus(status)
				if err != nil {
					return out.FailWith(ExitCommandError, ErrCodeInvalidInput, "invalid --status", err)
				}
				filter.Status = st
			}

			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			deals, err := e.store.ListDeals(cmd.Context(), filter)
			if err != nil {
				return e.out.Fail("failed to list deals", err)
			}
			return e.out.Render(deals, func(w io.Writer) {
				if len(deals) == 0 {
					fmt.Fprintln(w, "No deals")
					return
				}
				for _, d := range deals {
					fmt.Fprintf(w, "%s  %-13s  %-6s  %14s  %s\n", d.ID, d.StageKey, d.Status, costs.FormatBRL(d.Value), d.Title)
				}
			})
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "only deals of this company")
	cmd.Flags().StringVar(&status, "status", "", "only deals with this status (open, won, lost)")
	cmd.Flags().StringVar(&stage, "stage", "", "only deals in this stage")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum deals to list")
	return cmd
}

func newDealMoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <deal-id> <stage>",
		Short: "Move a deal to another pipeline stage",
		Long: `Move an open deal to another stage. Moving into a closing stage (won or
lost) closes the deal.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			deal, err := e.store.MoveDeal(cmd.Context(), args[0], args[1])
			if err != nil {
				return e.out.Fail("failed to move deal", err)
			}
			slog.Info("deal moved", "deal", deal.ID, "stage", deal.StageKey)
			return e.out.Render(deal, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Deal moved to %s\n", deal.StageKey)
				printDeal(w, deal)
			})
		},
	}
}

func newDealCloseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close <deal-id> <won|lost>",
		Short: "Close a deal as won or lost",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			outcome, err := model.ParseDealStatus(args[1])
			if err != nil || outcome == model.DealOpen {
				return out.FailWith(ExitCommandError, ErrCodeInvalidInput,
					fmt.Sprintf("outcome must be won or lost, got %q", args[1]), nil)
			}

			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			deal, err := e.store.CloseDeal(cmd.Context(), args[0], outcome)
			if err != nil {
				return e.out.Fail("failed to close deal", err)
			}
			slog.Info("deal closed", "deal", deal.ID, "status", deal.Status)
			return e.out.Render(deal, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Deal closed as %s\n", deal.Status)
				printDeal(w, deal)
			})
		},
	}
}

// HealthResult is the output of deal health.
type HealthResult struct {
	DealID string      `json:"deal_id"`
	Score  model.Score `json:"score"`
}

func newDealHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health <deal-id>",
		Short: "Score an open deal's health with the edge function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.pipeline()
			if err != nil {
				return err
			}
			score, err := p.DealHealth(cmd.Context(), args[0])
			if err != nil {
				return e.out.Fail("failed to score deal health", err)
			}
			res := HealthResult{DealID: args[0], Score: score}
			return e.out.Render(res, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Deal %s health: %d\n", res.DealID, res.Score)
			})
		},
	}
}

func newDealProposeCommand(rootOpts *RootOptions) *cobra.Command {
	var selection string
	cmd := &cobra.Command{
		Use:   "propose <deal-id>",
		Short: "Draft a proposal for a deal from a cost selection",
		Long: `Generate proposal content with the edge function, store it as the deal's
next proposal version and attach the cost items from the selection file.

Example:
  salesmachine deal propose <deal-id> --selection costs.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			sel, err := costs.LoadSelection(selection)
			if err != nil {
				return out.FailWith(ExitCommandError, ErrCodeInvalidInput, "failed to load selection", err)
			}

			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.pipeline()
			if err != nil {
				return err
			}
			prop, err := p.DraftProposal(cmd.Context(), args[0], sel.Items)
			if err != nil {
				return e.out.Fail("failed to draft proposal", err)
			}
			slog.Info("proposal drafted", "proposal", prop.ID, "deal", prop.DealID, "version", prop.Version)
			sum := costs.Summarize(e.catalog, sel.Items)
			return e.out.Render(prop, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Proposal %s v%d: %s\n", prop.ID, prop.Version, prop.Title)
				fmt.Fprintf(w, "  %d cost items, total %s\n", len(sel.Items), costs.FormatBRL(sum.Total))
			})
		},
	}
	cmd.Flags().StringVar(&selection, "selection", "", "cost selection YAML file (required)")
	_ = cmd.MarkFlagRequired("selection")
	return cmd
}
