package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/pipeline"
	"github.com/roach88/salesmachine/internal/store"
)

// NewLeadCommand creates the lead command group.
func NewLeadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Capture, inspect and process leads",
	}
	cmd.AddCommand(
		newLeadCaptureCommand(rootOpts),
		newLeadListCommand(rootOpts),
		newLeadShowCommand(rootOpts),
		newLeadProcessCommand(rootOpts),
		newLeadVerifyCommand(rootOpts),
	)
	return cmd
}

type leadCaptureOptions struct {
	company  string
	cnpj     string
	email    string
	website  string
	linkedin string
	source   string
	kind     string
}

func newLeadCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &leadCaptureOptions{}
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a lead into quarantine",
		Long: `Capture a raw lead. The lead starts in quarantine with status pending and
waits for "lead process" to validate it.

Examples:
  salesmachine lead capture --company "Acme Ltda" --cnpj 11.222.333/0001-81
  salesmachine lead capture --company Beta --email contato@beta.com.br --source site --kind form`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeadCapture(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.company, "company", "", "company name (required)")
	cmd.Flags().StringVar(&opts.cnpj, "cnpj", "", "company CNPJ, with or without punctuation")
	cmd.Flags().StringVar(&opts.email, "email", "", "contact email")
	cmd.Flags().StringVar(&opts.website, "website", "", "company website")
	cmd.Flags().StringVar(&opts.linkedin, "linkedin", "", "LinkedIn URL")
	cmd.Flags().StringVar(&opts.source, "source", "cli", "lead source name")
	cmd.Flags().StringVar(&opts.kind, "kind", string(model.SourceManual), "lead source kind")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func runLeadCapture(rootOpts *RootOptions, opts *leadCaptureOptions, cmd *cobra.Command) error {
	out := rootOpts.formatter(cmd)
	kind, err := model.ParseSourceKind(opts.kind)
	if err != nil {
		return out.FailWith(ExitCommandError, ErrCodeInvalidInput, "invalid --kind", err)
	}

	e, err := rootOpts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	src, err := e.store.EnsureSource(ctx, opts.source, kind)
	if err != nil {
		return e.out.Fail("failed to register source", err)
	}
	lead, err := e.store.CaptureLead(ctx, model.LeadCapture{
		SourceID:    src.ID,
		CNPJ:        opts.cnpj,
		CompanyName: opts.company,
		Email:       opts.email,
		Website:     opts.website,
		LinkedInURL: opts.linkedin,
	})
	if err != nil {
		return e.out.Fail("failed to capture lead", err)
	}
	slog.Info("lead captured", "lead", lead.ID, "source", src.Name)

	return e.out.Render(lead, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Captured lead %s (%s)\n", lead.ID, lead.CompanyName)
		fmt.Fprintf(w, "  Status: %s\n", lead.Status)
	})
}

func newLeadListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		statuses []string
		limit    int
		offset   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quarantined leads",
		Long: `List leads in capture order, optionally filtered by status.

Examples:
  salesmachine lead list
  salesmachine lead list --status pending --status validating --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			filter := store.LeadFilter{Limit: limit, Offset: offset}
			for _, s := range statuses {
				st, err := model.ParseLeadStatus(s)
				if err != nil {
					return out.FailWith(ExitCommandError, ErrCodeInvalidInput, "invalid --status", err)
				}
				filter.Statuses = append(filter.Statuses, st)
			}

			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			leads, err := e.store.ListLeads(cmd.Context(), filter)
			if err != nil {
				return e.out.Fail("failed to list leads", err)
			}
			return e.out.Render(leads, func(w io.Writer) {
				if len(leads) == 0 {
					fmt.Fprintln(w, "No leads")
					return
				}
				for _, l := range leads {
					fmt.Fprintf(w, "%s  %-10s  %s", l.ID, l.Status, l.CompanyName)
					if l.CNPJ != "" {
						fmt.Fprintf(w, "  %s", l.CNPJ)
					}
					fmt.Fprintln(w)
				}
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only leads with this status (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum leads to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "leads to skip")
	return cmd
}

// LeadDetail is the output of lead show.
type LeadDetail struct {
	Lead        model.QuarantinedLead  `json:"lead"`
	Transitions []model.LeadTransition `json:"transitions"`
	Analysis    *model.ICPAnalysis     `json:"analysis,omitempty"`
}

func newLeadShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <lead-id>",
		Short: "Show a lead with its status history and ICP analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			lead, err := e.store.GetLead(ctx, args[0])
			if err != nil {
				return e.out.Fail("failed to load lead", err)
			}
			transitions, err := e.store.LeadTransitions(ctx, lead.ID)
			if err != nil {
				return e.out.Fail("failed to load transitions", err)
			}
			detail := LeadDetail{Lead: lead, Transitions: transitions}
			analysis, err := e.store.GetICPAnalysis(ctx, store.SubjectKey(lead))
			switch {
			case err == nil:
				detail.Analysis = &analysis
			case !errors.Is(err, store.ErrNotFound):
				return e.out.Fail("failed to load ICP analysis", err)
			}

			return e.out.Render(detail, func(w io.Writer) {
				fmt.Fprintf(w, "Lead %s\n", lead.ID)
				fmt.Fprintf(w, "  Company: %s\n", lead.CompanyName)
				if lead.CNPJ != "" {
					fmt.Fprintf(w, "  CNPJ:    %s\n", lead.CNPJ)
				}
				fmt.Fprintf(w, "  Status:  %s\n", lead.Status)
				if lead.RejectionReason != "" {
					fmt.Fprintf(w, "  Reason:  %s\n", lead.RejectionReason)
				}
				if lead.CompanyID != "" {
					fmt.Fprintf(w, "  Company ID: %s\n", lead.CompanyID)
				}
				if a := detail.Analysis; a != nil {
					fmt.Fprintf(w, "  ICP:     %d %s (v%d, %s)\n", a.Score, a.Temperature, a.AnalysisVersion, a.LogicVersion)
				}
				fmt.Fprintln(w, "\nHistory:")
				for _, t := range transitions {
					fmt.Fprintf(w, "  [%d] %s -> %s", t.Seq, t.From, t.To)
					if t.Reason != "" {
						fmt.Fprintf(w, " (%s)", t.Reason)
					}
					fmt.Fprintln(w)
				}
			})
		},
	}
}

// ProcessResult is the output of lead process.
type ProcessResult struct {
	Results []ProcessedLead `json:"results"`
	Failed  int             `json:"failed"`
}

// ProcessedLead is one flow's outcome.
type ProcessedLead struct {
	pipeline.Result
	Error string `json:"error,omitempty"`
}

func newLeadProcessCommand(rootOpts *RootOptions) *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:   "process [lead-id...]",
		Short: "Run leads through validation, scoring and qualification",
		Long: `Run each lead through the pipeline: validate, pool, score, qualify and
promote. Leads resume from their current status. Edge functions must be
configured (edge.base_url in the config file).

Exit codes:
  0 - Every flow finished cleanly
  1 - At least one flow failed
  2 - Command error

Examples:
  salesmachine lead process 0193a6c4-...
  salesmachine lead process --pending --config salesmachine.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeadProcess(rootOpts, args, pending, cmd)
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "process every pending, validating or approved lead")
	return cmd
}

func runLeadProcess(opts *RootOptions, ids []string, pending bool, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if len(ids) == 0 && !pending {
		return out.FailWith(ExitCommandError, ErrCodeInvalidInput, "no leads to process",
			errors.New("pass lead IDs or --pending"))
	}

	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if pending {
		leads, err := e.store.ListLeads(ctx, store.LeadFilter{
			Statuses: []model.LeadStatus{model.LeadPending, model.LeadValidating, model.LeadApproved},
		})
		if err != nil {
			return e.out.Fail("failed to list pending leads", err)
		}
		for _, l := range leads {
			ids = append(ids, l.ID)
		}
	}

	p, err := e.pipeline()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := p.Submit(ctx, id); err != nil {
			return e.out.Fail("failed to submit lead "+id, err)
		}
	}
	p.Stop()
	if err := p.Run(ctx); err != nil {
		return e.out.Fail("pipeline interrupted", err)
	}

	res := ProcessResult{}
	for _, r := range p.Results() {
		pl := ProcessedLead{Result: r}
		if r.Err != nil {
			pl.Error = r.Err.Error()
			res.Failed++
		}
		res.Results = append(res.Results, pl)
	}

	if err := e.out.Render(res, func(w io.Writer) {
		if len(res.Results) == 0 {
			fmt.Fprintln(w, "No leads to process")
			return
		}
		for _, r := range res.Results {
			mark := "✓"
			if r.Error != "" {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %s  %-10s  %d steps", mark, r.LeadID, r.Status, r.Steps)
			if r.Analysis != nil {
				fmt.Fprintf(w, "  ICP %d %s", r.Analysis.Score, r.Analysis.Temperature)
			}
			if r.CompanyID != "" {
				fmt.Fprintf(w, "  company %s", r.CompanyID)
			}
			if r.Error != "" {
				fmt.Fprintf(w, "\n    %s", r.Error)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "\n%d processed, %d failed\n", len(res.Results), res.Failed)
	}); err != nil {
		return err
	}
	if res.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d flows failed", res.Failed, len(res.Results)))
	}
	return nil
}

func newLeadVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay the transition log and compare it with stored lead statuses",
		Long: `Replay every lead's status transitions from the append-only log and report
leads whose stored status disagrees with the replayed one, or whose log
contains a transition the lifecycle does not allow.

Exit codes:
  0 - Every lead matches its log
  1 - Mismatches found
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			mismatches, err := e.store.VerifyLeadStatuses(cmd.Context())
			if err != nil {
				return e.out.Fail("failed to verify lead statuses", err)
			}
			if mismatches == nil {
				mismatches = []store.StatusMismatch{}
			}
			if err := e.out.Render(mismatches, func(w io.Writer) {
				if len(mismatches) == 0 {
					fmt.Fprintln(w, "✓ Every lead status matches its transition log")
					return
				}
				for _, m := range mismatches {
					line := fmt.Sprintf("✗ %s stored=%s replayed=%s", m.LeadID, m.Stored, m.Replayed)
					if m.Problem != "" {
						line += ": " + m.Problem
					}
					fmt.Fprintln(w, strings.TrimSpace(line))
				}
			}); err != nil {
				return err
			}
			if len(mismatches) > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d lead(s) disagree with their log", len(mismatches)))
			}
			return nil
		},
	}
}
