package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/salesmachine/internal/costs"
	"github.com/roach88/salesmachine/internal/model"
)

// NewQuoteCommand creates the quote command group.
func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Create and send versioned quotes",
	}
	cmd.AddCommand(
		newQuoteCreateCommand(rootOpts),
		newQuoteSendCommand(rootOpts),
		newQuoteDecideCommand(rootOpts),
		newQuoteListCommand(rootOpts),
	)
	return cmd
}

func printQuote(w io.Writer, q model.Quote) {
	fmt.Fprintf(w, "Quote %s v%d (%s)\n", q.ID, q.Version, q.Status)
	for _, it := range q.Items {
		fmt.Fprintf(w, "  %-14s  %-40s  %14s\n", it.Category, it.Name, costs.FormatBRL(it.Cost))
	}
	fmt.Fprintf(w, "  Total: %s\n", costs.FormatBRL(q.Total))
}

func newQuoteCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var selection string
	cmd := &cobra.Command{
		Use:   "create <deal-id>",
		Short: "Create the next quote version for a deal from a cost selection",
		Args:  cobra.ExactArgs(1),
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

			q, err := e.store.CreateQuote(cmd.Context(), args[0], sel.Items)
			if err != nil {
				return e.out.Fail("failed to create quote", err)
			}
			slog.Info("quote created", "quote", q.ID, "deal", q.DealID, "version", q.Version, "total", q.Total)
			return e.out.Render(q, func(w io.Writer) {
				fmt.Fprintln(w, "✓ Quote created")
				printQuote(w, q)
			})
		},
	}
	cmd.Flags().StringVar(&selection, "selection", "", "cost selection YAML file (required)")
	_ = cmd.MarkFlagRequired("selection")
	return cmd
}

func newQuoteSendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <quote-id>",
		Short: "Mark a draft quote as sent",
		Long:  `Mark a draft quote as sent. A sent quote can no longer be edited.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			q, err := e.store.SendQuote(cmd.Context(), args[0])
			if err != nil {
				return e.out.Fail("failed to send quote", err)
			}
			return e.out.Render(q, func(w io.Writer) {
				fmt.Fprintln(w, "✓ Quote sent")
				printQuote(w, q)
			})
		},
	}
}

func newQuoteDecideCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decide <quote-id> <accepted|rejected>",
		Short: "Record the customer's decision on a sent quote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			var accepted bool
			switch args[1] {
			case string(model.QuoteAccepted):
				accepted = true
			case string(model.QuoteRejected):
			default:
				return out.FailWith(ExitCommandError, ErrCodeInvalidInput,
					fmt.Sprintf("decision must be accepted or rejected, got %q", args[1]), nil)
			}

			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			q, err := e.store.DecideQuote(cmd.Context(), args[0], accepted)
			if err != nil {
				return e.out.Fail("failed to record decision", err)
			}
			return e.out.Render(q, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Quote %s\n", q.Status)
				printQuote(w, q)
			})
		},
	}
}

func newQuoteListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <deal-id>",
		Short: "List a deal's quote versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			quotes, err := e.store.ListQuotes(cmd.Context(), args[0])
			if err != nil {
				return e.out.Fail("failed to list quotes", err)
			}
			return e.out.Render(quotes, func(w io.Writer) {
				if len(quotes) == 0 {
					fmt.Fprintln(w, "No quotes")
					return
				}
				for _, q := range quotes {
					fmt.Fprintf(w, "%s  v%d  %-8s  %s\n", q.ID, q.Version, q.Status, costs.FormatBRL(q.Total))
				}
			})
		},
	}
}
