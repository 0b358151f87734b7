package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/salesmachine/internal/catalog"
	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/store"
)

// DefaultMaxSteps is the per-flow step quota.
const DefaultMaxSteps = 1000

// DefaultConcurrency bounds concurrent scorer calls during Recalculate.
const DefaultConcurrency = 4

// Pipeline moves leads through their lifecycle.
//
// Submit and Process may be called from any goroutine; events are handled
// one at a time by whichever of Run or Drain is consuming the queue. Do not
// run Drain (or Process) while Run is active.
type Pipeline struct {
	store   *store.Store
	catalog *catalog.Catalog

	validator Validator
	scorer    ICPScorer
	health    DealHealthScorer
	proposals ProposalGenerator

	flowGen     FlowTokenGenerator
	clock       *Clock
	queue       *eventQueue
	maxSteps    int
	concurrency int

	mu     sync.Mutex
	flows  map[string]*flow // by flow token
	active map[string]string
	order  []string
}

// flow is the bookkeeping of one submitted lead.
type flow struct {
	quota  *QuotaEnforcer
	result Result
}

// Result is the outcome of one flow.
type Result struct {
	FlowToken string           `json:"flow_token"`
	LeadID    string           `json:"lead_id"`
	Status    model.LeadStatus `json:"status"`
	Steps     int              `json:"steps"`
	Done      bool             `json:"done"`
	// Analysis is the ICP analysis recorded by this flow, if any.
	Analysis  *model.ICPAnalysis `json:"analysis,omitempty"`
	CompanyID string             `json:"company_id,omitempty"`
	Err       error              `json:"-"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithValidator sets the lead validator.
func WithValidator(v Validator) Option {
	return func(p *Pipeline) { p.validator = v }
}

// WithICPScorer sets the ICP scorer.
func WithICPScorer(s ICPScorer) Option {
	return func(p *Pipeline) { p.scorer = s }
}

// WithDealHealthScorer sets the deal health scorer.
func WithDealHealthScorer(s DealHealthScorer) Option {
	return func(p *Pipeline) { p.health = s }
}

// WithProposalGenerator sets the proposal generator.
func WithProposalGenerator(g ProposalGenerator) Option {
	return func(p *Pipeline) { p.proposals = g }
}

// WithFlowGenerator replaces the UUIDv7 flow token generator.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(p *Pipeline) { p.flowGen = g }
}

// WithMaxSteps sets the per-flow step quota. Values below 1 are ignored.
func WithMaxSteps(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxSteps = n
		}
	}
}

// WithConcurrency bounds concurrent scorer calls in Recalculate. Values
// below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New creates a pipeline over an open store and a compiled catalog.
func New(st *store.Store, cat *catalog.Catalog, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       st,
		catalog:     cat,
		flowGen:     UUIDv7Generator{},
		clock:       NewClock(),
		queue:       newEventQueue(),
		maxSteps:    DefaultMaxSteps,
		concurrency: DefaultConcurrency,
		flows:       make(map[string]*flow),
		active:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit starts a flow for a lead and returns its flow token.
//
// The first step follows the lead's current status, so a lead left half way
// by a failed flow resumes where it stopped. Submitting a lead that already
// has an unfinished flow returns that flow's token. Leads in a terminal
// status other than qualified complete immediately.
func (p *Pipeline) Submit(ctx context.Context, leadID string) (string, error) {
	lead, err := p.store.GetLead(ctx, leadID)
	if err != nil {
		return "", fmt.Errorf("submit lead: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if token, ok := p.active[leadID]; ok {
		return token, nil
	}

	token := p.flowGen.Generate()
	f := &flow{
		quota:  NewQuotaEnforcer(p.maxSteps),
		result: Result{FlowToken: token, LeadID: leadID, Status: lead.Status, CompanyID: lead.CompanyID},
	}
	p.flows[token] = f
	p.order = append(p.order, token)

	step, ok := firstStep(lead)
	if !ok {
		f.result.Done = true
		slog.Debug("lead needs no processing", "lead", leadID, "status", lead.Status, "flow", token)
		return token, nil
	}
	if !p.queue.Enqueue(p.event(token, leadID, step)) {
		f.result.Done = true
		f.result.Err = ErrStopped
		return "", fmt.Errorf("submit lead %s: %w", leadID, ErrStopped)
	}
	p.active[leadID] = token
	slog.Debug("lead submitted", "lead", leadID, "status", lead.Status, "step", step, "flow", token)
	return token, nil
}

func firstStep(lead model.QuarantinedLead) (Step, bool) {
	switch lead.Status {
	case model.LeadPending, model.LeadValidating:
		return StepValidate, true
	case model.LeadApproved:
		return StepPool, true
	case model.LeadQualified:
		if lead.CompanyID == "" {
			return StepPromote, true
		}
	}
	return 0, false
}

func (p *Pipeline) event(token, leadID string, step Step) Event {
	return Event{
		Step:      step,
		LeadID:    leadID,
		FlowToken: token,
		Seq:       p.clock.Next(),
	}
}

// Run processes events until ctx is cancelled or Stop is called and the
// queue is empty. Step failures are logged and recorded on the flow's
// Result; the loop continues.
func (p *Pipeline) Run(ctx context.Context) error {
	slog.Info("pipeline starting", "max_steps", p.maxSteps)

	for {
		ev, ok := p.queue.TryDequeue()
		if !ok {
			select {
			case <-ctx.Done():
				slog.Info("pipeline stopping", "reason", ctx.Err())
				return ctx.Err()
			case _, open := <-p.queue.Wait():
				if !open && p.queue.Len() == 0 {
					slog.Info("pipeline stopped")
					return nil
				}
				continue
			}
		}
		p.process(ctx, ev)
	}
}

// Stop rejects further submissions. Run returns once the flows already
// submitted have finished.
func (p *Pipeline) Stop() {
	p.queue.Close()
}

// Drain handles queued events in the calling goroutine until the queue is
// empty, including steps enqueued along the way.
func (p *Pipeline) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, ok := p.queue.TryDequeue()
		if !ok {
			return nil
		}
		p.process(ctx, ev)
	}
}

// Process submits one lead and drains the queue synchronously.
func (p *Pipeline) Process(ctx context.Context, leadID string) (Result, error) {
	token, err := p.Submit(ctx, leadID)
	if err != nil {
		return Result{}, err
	}
	if err := p.Drain(ctx); err != nil {
		return Result{}, err
	}
	res, _ := p.Result(token)
	return res, res.Err
}

// Result returns the current outcome of a flow.
func (p *Pipeline) Result(flowToken string) (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.flows[flowToken]
	if !ok {
		return Result{}, false
	}
	return f.result, true
}

// Results returns every flow's outcome in submission order.
func (p *Pipeline) Results() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, 0, len(p.order))
	for _, token := range p.order {
		out = append(out, p.flows[token].result)
	}
	return out
}

// process handles one event and records its outcome.
func (p *Pipeline) process(ctx context.Context, ev Event) {
	p.mu.Lock()
	f, ok := p.flows[ev.FlowToken]
	p.mu.Unlock()
	if !ok {
		slog.Error("event for unknown flow", "flow", ev.FlowToken, "lead", ev.LeadID, "seq", ev.Seq)
		return
	}

	// Only the consuming goroutine touches the quota.
	if err := f.quota.Check(ev.FlowToken); err != nil {
		var se *StepsExceededError
		errors.As(err, &se)
		p.fail(ctx, ev, NewQuotaError(ev, se))
		return
	}

	slog.Debug("processing step", "step", ev.Step, "lead", ev.LeadID, "flow", ev.FlowToken, "seq", ev.Seq)

	next, err := p.handle(ctx, ev, f)
	if err != nil {
		p.fail(ctx, ev, err)
		return
	}

	p.mu.Lock()
	f.result.Steps = f.quota.Current()
	p.mu.Unlock()

	if next != 0 {
		p.queue.Continue(p.event(ev.FlowToken, ev.LeadID, next))
		return
	}
	p.finish(ctx, ev, nil)
}

func (p *Pipeline) fail(ctx context.Context, ev Event, err error) {
	slog.Error("pipeline step failed",
		"step", ev.Step,
		"lead", ev.LeadID,
		"flow", ev.FlowToken,
		"seq", ev.Seq,
		"error", err)
	p.finish(ctx, ev, err)
}

// finish closes a flow and refreshes the lead status on its Result.
func (p *Pipeline) finish(ctx context.Context, ev Event, err error) {
	lead, lerr := p.store.GetLead(ctx, ev.LeadID)

	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.flows[ev.FlowToken]
	if lerr == nil {
		f.result.Status = lead.Status
		f.result.CompanyID = lead.CompanyID
	}
	f.result.Steps = f.quota.Current()
	f.result.Done = true
	f.result.Err = err
	delete(p.active, ev.LeadID)
}

// handle performs one step and returns the follow-on step, or 0 when the
// flow is complete.
func (p *Pipeline) handle(ctx context.Context, ev Event, f *flow) (Step, error) {
	switch ev.Step {
	case StepValidate:
		return p.validate(ctx, ev)
	case StepPool:
		if _, err := p.store.PoolLead(ctx, ev.LeadID, "approved"); err != nil {
			return 0, storeError(ev, "pool lead", err)
		}
		return StepScore, nil
	case StepScore:
		return p.score(ctx, ev, f)
	case StepQualify:
		return p.qualify(ctx, ev)
	case StepPromote:
		c, err := p.store.PromoteLead(ctx, ev.LeadID)
		if err != nil {
			return 0, storeError(ev, "promote lead", err)
		}
		slog.Info("lead promoted", "lead", ev.LeadID, "company", c.ID, "flow", ev.FlowToken)
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown step %d", ev.Step)
	}
}

func (p *Pipeline) validate(ctx context.Context, ev Event) (Step, error) {
	lead, err := p.store.GetLead(ctx, ev.LeadID)
	if err != nil {
		return 0, storeError(ev, "get lead", err)
	}
	if lead.Status == model.LeadPending {
		_, err := p.store.TransitionLead(ctx, lead.ID, model.LeadValidating, store.TransitionMeta{
			Reason:    "validation started",
			FlowToken: ev.FlowToken,
		})
		if err != nil {
			return 0, storeError(ev, "start validation", err)
		}
	}
	if p.validator == nil {
		return 0, newStepError(ErrCodeCollaboratorFailed, ev, "validate lead", ErrNotConfigured)
	}

	verdict, err := p.validator.ValidateLead(ctx, lead)
	if err != nil {
		return 0, newStepError(ErrCodeCollaboratorFailed, ev, "validate lead", err)
	}

	validation := verdict.Payload
	if validation.Data == nil {
		validation = model.EmptyPayload()
	}
	meta := store.TransitionMeta{
		Reason:     verdict.Reason,
		FlowToken:  ev.FlowToken,
		Validation: &validation,
	}

	to := model.LeadRejected
	switch {
	case verdict.Duplicate:
		to = model.LeadDuplicate
		dup, err := p.duplicateTarget(ctx, lead.ID, verdict.DuplicateOf)
		if err != nil {
			return 0, storeError(ev, "resolve duplicate", err)
		}
		meta.DuplicateOf = dup
	case verdict.Valid:
		to = model.LeadApproved
	}
	if meta.Reason == "" {
		meta.Reason = "validator: " + string(to)
	}
	if _, err := p.store.TransitionLead(ctx, lead.ID, to, meta); err != nil {
		return 0, storeError(ev, "record validation", err)
	}
	slog.Info("lead validated", "lead", lead.ID, "status", to, "flow", ev.FlowToken)

	if to == model.LeadApproved {
		return StepPool, nil
	}
	return 0, nil
}

// duplicateTarget returns the lead ID a duplicate points at. It is "" when
// the validator named no stored lead other than this one; the validator's
// payload is still recorded.
func (p *Pipeline) duplicateTarget(ctx context.Context, leadID, dupID string) (string, error) {
	if dupID == "" || dupID == leadID {
		return "", nil
	}
	if _, err := p.store.GetLead(ctx, dupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("validator named unknown duplicate", "lead", leadID, "duplicate_of", dupID)
			return "", nil
		}
		return "", err
	}
	return dupID, nil
}

func (p *Pipeline) score(ctx context.Context, ev Event, f *flow) (Step, error) {
	lead, err := p.store.GetLead(ctx, ev.LeadID)
	if err != nil {
		return 0, storeError(ev, "get lead", err)
	}
	analysis, err := p.scoreAndRecord(ctx, lead)
	if err != nil {
		if errors.Is(err, errScorer) {
			return 0, newStepError(ErrCodeCollaboratorFailed, ev, "score lead", err)
		}
		return 0, storeError(ev, "record icp analysis", err)
	}

	p.mu.Lock()
	f.result.Analysis = &analysis
	p.mu.Unlock()

	slog.Info("lead scored",
		"lead", lead.ID,
		"score", analysis.Score,
		"temperature", analysis.Temperature,
		"version", analysis.AnalysisVersion,
		"flow", ev.FlowToken)

	if lead.Status == model.LeadApproved && p.catalog.Qualifies(analysis.Temperature) {
		return StepQualify, nil
	}
	return 0, nil
}

var errScorer = errors.New("icp scorer")

// scoreAndRecord calls the scorer and stores a new analysis version.
// Scorer failures wrap errScorer.
func (p *Pipeline) scoreAndRecord(ctx context.Context, lead model.QuarantinedLead) (model.ICPAnalysis, error) {
	outcome, err := p.scoreLead(ctx, lead)
	if err != nil {
		return model.ICPAnalysis{}, err
	}
	return p.record(ctx, lead, outcome)
}

func (p *Pipeline) scoreLead(ctx context.Context, lead model.QuarantinedLead) (model.ICPOutcome, error) {
	if p.scorer == nil {
		return model.ICPOutcome{}, fmt.Errorf("%w: %w", errScorer, ErrNotConfigured)
	}
	outcome, err := p.scorer.ScoreLead(ctx, lead)
	if err != nil {
		return model.ICPOutcome{}, fmt.Errorf("%w: %w", errScorer, err)
	}
	return outcome, nil
}

func (p *Pipeline) record(ctx context.Context, lead model.QuarantinedLead, outcome model.ICPOutcome) (model.ICPAnalysis, error) {
	outcome.Score = model.Clamp(int(outcome.Score))
	return p.store.RecordICPAnalysis(ctx, store.ICPRecord{
		SubjectKey:   store.SubjectKey(lead),
		QuarantineID: lead.ID,
		CompanyID:    lead.CompanyID,
		Outcome:      outcome,
		Temperature:  p.catalog.Classify(outcome.Score),
	})
}

func (p *Pipeline) qualify(ctx context.Context, ev Event) (Step, error) {
	lead, err := p.store.GetLead(ctx, ev.LeadID)
	if err != nil {
		return 0, storeError(ev, "get lead", err)
	}
	analysis, err := p.store.GetICPAnalysis(ctx, store.SubjectKey(lead))
	if err != nil {
		return 0, storeError(ev, "get icp analysis", err)
	}
	if _, err := p.store.QualifyLead(ctx, lead.ID, analysis, ev.FlowToken); err != nil {
		return 0, storeError(ev, "qualify lead", err)
	}
	slog.Info("lead qualified", "lead", lead.ID, "temperature", analysis.Temperature, "flow", ev.FlowToken)
	return StepPromote, nil
}

func storeError(ev Event, msg string, err error) *RuntimeError {
	code := ErrCodeStoreFailed
	if errors.Is(err, store.ErrInvalidTransition) {
		code = ErrCodeInvalidTransition
	}
	return newStepError(code, ev, msg, err)
}

// DealHealth scores an open deal and stores the score on it.
func (p *Pipeline) DealHealth(ctx context.Context, dealID string) (model.Score, error) {
	if p.health == nil {
		return 0, fmt.Errorf("deal health: %w", ErrNotConfigured)
	}
	deal, err := p.store.GetDeal(ctx, dealID)
	if err != nil {
		return 0, fmt.Errorf("deal health: %w", err)
	}
	if deal.Status != model.DealOpen {
		return 0, fmt.Errorf("deal health: deal %s is %s", dealID, deal.Status)
	}
	score, err := p.health.ScoreDeal(ctx, deal)
	if err != nil {
		return 0, &RuntimeError{
			Code:    ErrCodeCollaboratorFailed,
			Message: "score deal " + dealID,
			Err:     err,
		}
	}
	score = model.Clamp(int(score))
	if err := p.store.SetDealHealth(ctx, dealID, score); err != nil {
		return 0, fmt.Errorf("deal health: %w", err)
	}
	slog.Info("deal health scored", "deal", dealID, "score", score)
	return score, nil
}

// DraftProposal generates proposal content for a deal, stores it as a new
// proposal version and saves the cost items with it.
func (p *Pipeline) DraftProposal(ctx context.Context, dealID string, items []model.CostItem) (model.Proposal, error) {
	if p.proposals == nil {
		return model.Proposal{}, fmt.Errorf("draft proposal: %w", ErrNotConfigured)
	}
	deal, err := p.store.GetDeal(ctx, dealID)
	if err != nil {
		return model.Proposal{}, fmt.Errorf("draft proposal: %w", err)
	}
	draft, err := p.proposals.GenerateProposal(ctx, deal, items)
	if err != nil {
		return model.Proposal{}, &RuntimeError{
			Code:    ErrCodeCollaboratorFailed,
			Message: "generate proposal for deal " + dealID,
			Err:     err,
		}
	}
	title := draft.Title
	if title == "" {
		title = deal.Title
	}
	prop, err := p.store.CreateProposalWithCosts(ctx, dealID, title, draft.Content, items)
	if err != nil {
		return model.Proposal{}, fmt.Errorf("draft proposal: %w", err)
	}
	return prop, nil
}
