package model

import "time"

// Company is the aggregation root. Nearly every other entity carries its ID.
type Company struct {
	ID                   string    `json:"id"`
	CNPJ                 string    `json:"cnpj,omitempty"`
	Name                 string    `json:"name"`
	Domain               string    `json:"domain,omitempty"`
	Website              string    `json:"website,omitempty"`
	Industry             string    `json:"industry,omitempty"`
	EmployeeCount        int64     `json:"employee_count"`
	Revenue              Cents     `json:"revenue_cents"`
	DealStage            string    `json:"deal_stage,omitempty"`
	PipelineStatus       string    `json:"pipeline_status,omitempty"`
	JourneyStage         string    `json:"journey_stage,omitempty"`
	ICPScore             *Score    `json:"icp_score,omitempty"`
	AccountScore         Score     `json:"account_score"`
	BuyingIntentScore    Score     `json:"buying_intent_score"`
	DigitalMaturityScore Score     `json:"digital_maturity_score"`
	RawData              Payload   `json:"raw_data"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Contact is a person at a company.
type Contact struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DecisionMaker is a contact flagged with buying authority.
type DecisionMaker struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	Name        string    `json:"name"`
	Title       string    `json:"title,omitempty"`
	LinkedInURL string    `json:"linkedin_url,omitempty"`
	Seniority   string    `json:"seniority,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Activity is a timestamped interaction logged against a company.
type Activity struct {
	ID         string       `json:"id"`
	CompanyID  string       `json:"company_id"`
	DealID     string       `json:"deal_id,omitempty"`
	Kind       ActivityKind `json:"kind"`
	Summary    string       `json:"summary"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// LeadSource is where quarantined leads come from.
type LeadSource struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Kind      SourceKind `json:"kind"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

// QuarantinedLead is a captured lead pending validation.
type QuarantinedLead struct {
	ID              string     `json:"id"`
	SourceID        string     `json:"source_id"`
	CNPJ            string     `json:"cnpj,omitempty"`
	CompanyName     string     `json:"company_name"`
	Email           string     `json:"email,omitempty"`
	Website         string     `json:"website,omitempty"`
	LinkedInURL     string     `json:"linkedin_url,omitempty"`
	Status          LeadStatus `json:"status"`
	Fingerprint     string     `json:"fingerprint"`
	DuplicateOf     string     `json:"duplicate_of,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Validation      Payload    `json:"validation"`
	CompanyID       string     `json:"company_id,omitempty"`
	CapturedAt      time.Time  `json:"captured_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LeadCapture is the input of a lead capture.
type LeadCapture struct {
	SourceID    string  `json:"source_id" yaml:"source_id"`
	CNPJ        string  `json:"cnpj,omitempty" yaml:"cnpj"`
	CompanyName string  `json:"company_name" yaml:"company_name"`
	Email       string  `json:"email,omitempty" yaml:"email"`
	Website     string  `json:"website,omitempty" yaml:"website"`
	LinkedInURL string  `json:"linkedin_url,omitempty" yaml:"linkedin_url"`
	RawData     Payload `json:"raw_data" yaml:"-"`
}

// LeadTransition is one entry of the append-only lead status log.
type LeadTransition struct {
	Seq        int64      `json:"seq"`
	LeadID     string     `json:"lead_id"`
	From       LeadStatus `json:"from_status"`
	To         LeadStatus `json:"to_status"`
	Reason     string     `json:"reason,omitempty"`
	FlowToken  string     `json:"flow_token,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// PooledLead is an approved lead waiting for qualification.
type PooledLead struct {
	ID           string    `json:"id"`
	QuarantineID string    `json:"quarantine_id"`
	Reason       string    `json:"reason,omitempty"`
	PooledAt     time.Time `json:"pooled_at"`
}

// QualifiedLead is a lead that passed qualification.
type QualifiedLead struct {
	ID           string      `json:"id"`
	QuarantineID string      `json:"quarantine_id"`
	AnalysisID   string      `json:"analysis_id"`
	ICPScore     Score       `json:"icp_score"`
	Temperature  Temperature `json:"temperature"`
	CompanyID    string      `json:"company_id,omitempty"`
	QualifiedAt  time.Time   `json:"qualified_at"`
}

// CriterionScore is one weighted criterion of an ICP analysis.
type CriterionScore struct {
	Criterion string `json:"criterion"`
	Weight    int    `json:"weight"`
	Score     Score  `json:"score"`
}

// Evidence supports a criterion with a source URL.
type Evidence struct {
	ID        string `json:"id"`
	Criterion string `json:"criterion"`
	SourceURL string `json:"source_url"`
	Excerpt   string `json:"excerpt,omitempty"`
}

// ICPOutcome is what an external scorer returns for one subject.
type ICPOutcome struct {
	Score        Score            `json:"score"`
	LogicVersion string           `json:"logic_version"`
	Criteria     []CriterionScore `json:"criteria"`
	Evidence     []Evidence       `json:"evidence"`
	Methodology  Payload          `json:"methodology"`
}

// ICPAnalysis is a recorded ICP run for a CNPJ or lead.
type ICPAnalysis struct {
	ID              string           `json:"id"`
	SubjectKey      string           `json:"subject_key"`
	QuarantineID    string           `json:"quarantine_id,omitempty"`
	CompanyID       string           `json:"company_id,omitempty"`
	Score           Score            `json:"score"`
	Temperature     Temperature      `json:"temperature"`
	AnalysisVersion int64            `json:"analysis_version"`
	LogicVersion    string           `json:"logic_version"`
	Criteria        []CriterionScore `json:"criteria,omitempty"`
	Evidence        []Evidence       `json:"evidence,omitempty"`
	Methodology     Payload          `json:"methodology"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}

// PipelineStage is an ordered deal stage.
type PipelineStage struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	Probability int    `json:"probability"`
	// Closes is DealWon or DealLost for closing stages, empty otherwise.
	Closes DealStatus `json:"closes,omitempty"`
}

// Deal is a tracked pursuit against a company.
type Deal struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	Title       string     `json:"title"`
	StageKey    string     `json:"stage"`
	Probability int        `json:"probability"`
	Value       Cents      `json:"value_cents"`
	Status      DealStatus `json:"status"`
	HealthScore *Score     `json:"health_score,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// Opportunity is an early-stage pursuit that may become a deal.
type Opportunity struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	DealID    string    `json:"deal_id,omitempty"`
	Title     string    `json:"title"`
	Value     Cents     `json:"value_cents"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Quote is one version of a priced offer on a deal.
type Quote struct {
	ID        string      `json:"id"`
	DealID    string      `json:"deal_id"`
	CompanyID string      `json:"company_id"`
	Version   int64       `json:"version"`
	Items     []CostItem  `json:"items"`
	Total     Cents       `json:"total_cents"`
	Status    QuoteStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	SentAt    *time.Time  `json:"sent_at,omitempty"`
}

// Proposal is one version of a visual proposal document.
type Proposal struct {
	ID        string         `json:"id"`
	DealID    string         `json:"deal_id"`
	CompanyID string         `json:"company_id"`
	Version   int64          `json:"version"`
	Title     string         `json:"title"`
	Content   Payload        `json:"content"`
	Status    ProposalStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	SentAt    *time.Time     `json:"sent_at,omitempty"`
	SignedAt  *time.Time     `json:"signed_at,omitempty"`
}

// CostItem is a selected cost line item.
type CostItem struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Category Category `json:"category" yaml:"category"`
	Cost     Cents    `json:"cost" yaml:"cost"`
	IsCustom bool     `json:"is_custom,omitempty" yaml:"is_custom,omitempty"`
}

// Signal is a time-stamped detection about a company.
type Signal struct {
	ID         string         `json:"id"`
	Kind       SignalKind     `json:"kind"`
	CompanyID  string         `json:"company_id"`
	SignalType string         `json:"signal_type"`
	Confidence Score          `json:"confidence"`
	Priority   SignalPriority `json:"priority"`
	SourceURL  string         `json:"source_url,omitempty"`
	Metadata   Payload        `json:"metadata"`
	DetectedAt time.Time      `json:"detected_at"`
}

// Monitoring configures periodic checks for a company.
type Monitoring struct {
	CompanyID     string     `json:"company_id"`
	Enabled       bool       `json:"enabled"`
	FrequencyDays int        `json:"frequency_days"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// Canvas is a block-based collaborative document.
type Canvas struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CanvasBlock is one ordered block of a canvas.
type CanvasBlock struct {
	ID       string    `json:"id"`
	CanvasID string    `json:"canvas_id"`
	Position int       `json:"position"`
	Kind     BlockKind `json:"kind"`
	Content  string    `json:"content"`
}

// CanvasVersion is an append-only snapshot of a canvas.
type CanvasVersion struct {
	ID        string    `json:"id"`
	CanvasID  string    `json:"canvas_id"`
	Version   int64     `json:"version"`
	Snapshot  string    `json:"snapshot"`
	Hash      string    `json:"hash"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CanvasComment is a comment on a canvas or one of its blocks.
type CanvasComment struct {
	ID        string    `json:"id"`
	CanvasID  string    `json:"canvas_id"`
	BlockID   string    `json:"block_id,omitempty"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CanvasPermission grants a role on a canvas to a user.
type CanvasPermission struct {
	CanvasID string     `json:"canvas_id"`
	UserID   string     `json:"user_id"`
	Role     CanvasRole `json:"role"`
}
