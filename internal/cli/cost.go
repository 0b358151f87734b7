package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/salesmachine/internal/catalog"
	"github.com/roach88/salesmachine/internal/costs"
	"github.com/roach88/salesmachine/internal/model"
)

// NewCostCommand creates the cost command group.
func NewCostCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Edit and total cost selection files",
		Long: `Edit a YAML cost selection the way the proposal cost selector does and
print its totals per category.

Additions (toggle on, add) save the file, and with --proposal also the
proposal's stored cost items, before the success notice is printed to
stderr. Cost changes and removals are saved afterwards.`,
	}
	cmd.AddCommand(
		newCostSummarizeCommand(rootOpts),
		newCostToggleCommand(rootOpts),
		newCostAddCommand(rootOpts),
		newCostSetCommand(rootOpts),
		newCostRemoveCommand(rootOpts),
	)
	return cmd
}

// CostSummary is the output of the cost commands.
type CostSummary struct {
	Proposal string           `json:"proposal,omitempty"`
	Items    []model.CostItem `json:"items"`
	costs.Summary
}

func printCostSummary(w io.Writer, s CostSummary) {
	for _, row := range s.Categories {
		fmt.Fprintf(w, "%s (%d)  %s\n", row.Name, row.Items, costs.FormatBRL(row.Total))
		for _, it := range s.Items {
			if it.Category != row.Category {
				continue
			}
			custom := ""
			if it.IsCustom {
				custom = " *"
			}
			fmt.Fprintf(w, "  %-32s  %-36s  %14s\n", it.ID, it.Name+custom, costs.FormatBRL(it.Cost))
		}
	}
	fmt.Fprintf(w, "\nTotal: %s\n", costs.FormatBRL(s.Total))
}

func newCostSummarizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <selection.yaml>",
		Short: "Print category subtotals and the grand total of a selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			_, cat, err := rootOpts.loadCatalog(out)
			if err != nil {
				return err
			}
			sel, err := costs.LoadSelection(args[0])
			if err != nil {
				return out.FailWith(ExitCommandError, ErrCodeInvalidInput, "failed to load selection", err)
			}
			s := CostSummary{Proposal: sel.Proposal, Items: sel.Items, Summary: costs.Summarize(cat, sel.Items)}
			return out.Render(s, func(w io.Writer) { printCostSummary(w, s) })
		},
	}
}

// noticeWriter prints selector notifications.
type noticeWriter struct{ w io.Writer }

func (n noticeWriter) Success(msg string) { fmt.Fprintf(n.w, "✓ %s\n", msg) }
func (n noticeWriter) Error(msg string)   { fmt.Fprintf(n.w, "✗ %s\n", msg) }

// costSession is a selector bound to a selection file and, optionally, to a
// proposal's stored cost items.
type costSession struct {
	cmd      *cobra.Command
	out      *OutputFormatter
	path     string
	proposal string
	catalog  *catalog.Catalog
	selector *costs.Selector
	env      *env
}

func (o *RootOptions) costSession(cmd *cobra.Command, path, proposal string) (*costSession, error) {
	out := o.formatter(cmd)
	_, cat, err := o.loadCatalog(out)
	if err != nil {
		return nil, err
	}

	sel, err := costs.LoadSelection(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		sel = &costs.Selection{Items: []model.CostItem{}}
	case err != nil:
		return nil, out.FailWith(ExitCommandError, ErrCodeInvalidInput, "failed to load selection", err)
	}
	if proposal == "" {
		proposal = sel.Proposal
	}

	s := &costSession{cmd: cmd, out: out, path: path, proposal: proposal, catalog: cat}
	if proposal != "" {
		if s.env, err = o.open(cmd); err != nil {
			return nil, err
		}
		s.out = s.env.out
	}
	s.selector = costs.NewSelector(cat, sel.Items,
		costs.WithPersister(costs.PersistFunc(s.persist)),
		costs.WithNotifier(noticeWriter{w: out.GetErrWriter()}))
	return s, nil
}

// persist saves the proposal's cost items, then writes the selection file.
// A refused store write leaves the file untouched.
func (s *costSession) persist(ctx context.Context, items []model.CostItem) error {
	if s.env != nil {
		if err := s.env.store.SaveProposalCosts(ctx, s.proposal, items); err != nil {
			return err
		}
	}
	return (costs.FilePersister{Path: s.path, Proposal: s.proposal}).Persist(ctx, items)
}

func (s *costSession) Close() {
	if s.env != nil {
		s.env.Close()
	}
}

// finish saves a change that does not go through the selector's hook and
// renders the result.
func (s *costSession) finish(save bool) error {
	if save {
		if err := s.persist(s.cmd.Context(), s.selector.Items()); err != nil {
			return s.out.Fail("failed to save selection", err)
		}
	}
	items := s.selector.Items()
	sum := CostSummary{Proposal: s.proposal, Items: items, Summary: costs.Summarize(s.catalog, items)}
	return s.out.Render(sum, func(w io.Writer) { printCostSummary(w, sum) })
}

func newCostToggleCommand(rootOpts *RootOptions) *cobra.Command {
	var proposal string
	cmd := &cobra.Command{
		Use:   "toggle <selection.yaml> <item-id>",
		Short: "Select or deselect a catalog cost item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.costSession(cmd, args[0], proposal)
			if err != nil {
				return err
			}
			defer s.Close()

			wasSelected := s.selector.Selected(args[1])
			if err := s.selector.Toggle(cmd.Context(), args[1]); err != nil {
				return s.out.Fail("failed to toggle item", err)
			}
			return s.finish(wasSelected)
		},
	}
	cmd.Flags().StringVar(&proposal, "proposal", "", "also store the items on this proposal")
	return cmd
}

func newCostAddCommand(rootOpts *RootOptions) *cobra.Command {
	var proposal string
	cmd := &cobra.Command{
		Use:   "add <selection.yaml> <category> <name>",
		Short: "Add a custom cost item to a category",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			category := model.Category(args[1])
			if !category.IsValid() {
				return out.FailWith(ExitCommandError, ErrCodeInvalidInput,
					fmt.Sprintf("unknown cost category %q", args[1]), nil)
			}
			s, err := rootOpts.costSession(cmd, args[0], proposal)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.selector.AddCustom(cmd.Context(), category, args[2]); err != nil {
				return s.out.Fail("failed to add custom item", err)
			}
			return s.finish(false)
		},
	}
	cmd.Flags().StringVar(&proposal, "proposal", "", "also store the items on this proposal")
	return cmd
}

func newCostSetCommand(rootOpts *RootOptions) *cobra.Command {
	var proposal string
	cmd := &cobra.Command{
		Use:   "set <selection.yaml> <item-id> <amount>",
		Short: "Set the cost of a selected item",
		Long: `Set the cost of a selected item. The amount is in BRL and accepts
"5000", "1200.50" or "1.200,50".`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			amount, err := model.ParseCents(args[2])
			if err != nil {
				return out.FailWith(ExitCommandError, ErrCodeInvalidInput, "invalid amount", err)
			}
			s, err := rootOpts.costSession(cmd, args[0], proposal)
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.selector.SetCost(args[1], amount) {
				return s.out.FailWith(ExitCommandError, ErrCodeNotFound,
					fmt.Sprintf("item %q is not selected", args[1]), nil)
			}
			return s.finish(true)
		},
	}
	cmd.Flags().StringVar(&proposal, "proposal", "", "also store the items on this proposal")
	return cmd
}

func newCostRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	var proposal string
	cmd := &cobra.Command{
		Use:   "remove <selection.yaml> <item-id>",
		Short: "Remove an item from a selection",
		Long:  `Remove an item from a selection. Removing an item that is not selected changes nothing.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.costSession(cmd, args[0], proposal)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.finish(s.selector.Remove(args[1]))
		},
	}
	cmd.Flags().StringVar(&proposal, "proposal", "", "also store the items on this proposal")
	return cmd
}
