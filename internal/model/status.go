package model

import "fmt"

// LeadStatus is the lifecycle state of a quarantined lead.
type LeadStatus string

// Lead status constants.
const (
	LeadPending    LeadStatus = "pending"
	LeadValidating LeadStatus = "validating"
	LeadApproved   LeadStatus = "approved"
	LeadRejected   LeadStatus = "rejected"
	LeadDuplicate  LeadStatus = "duplicate"
	LeadQualified  LeadStatus = "qualified"
)

// IsValid checks if the lead status is one of the known values.
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadPending, LeadValidating, LeadApproved, LeadRejected, LeadDuplicate, LeadQualified:
		return true
	}
	return false
}

// ParseLeadStatus validates a raw status column value.
func ParseLeadStatus(s string) (LeadStatus, error) {
	v := LeadStatus(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "lead status", Value: s}
	}
	return v, nil
}

// SourceKind identifies how a lead source captures leads.
type SourceKind string

// Source kind constants.
const (
	SourceManual  SourceKind = "manual"
	SourceForm    SourceKind = "form"
	SourceScraper SourceKind = "scraper"
	SourceImport  SourceKind = "import"
	SourceAPI     SourceKind = "api"
)

// IsValid checks if the source kind is one of the known values.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceManual, SourceForm, SourceScraper, SourceImport, SourceAPI:
		return true
	}
	return false
}

// ParseSourceKind validates a raw source kind.
func ParseSourceKind(s string) (SourceKind, error) {
	v := SourceKind(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "source kind", Value: s}
	}
	return v, nil
}

// DealStatus is the open/closed state of a deal.
type DealStatus string

// Deal status constants.
const (
	DealOpen DealStatus = "open"
	DealWon  DealStatus = "won"
	DealLost DealStatus = "lost"
)

// IsValid checks if the deal status is one of the known values.
func (s DealStatus) IsValid() bool {
	switch s {
	case DealOpen, DealWon, DealLost:
		return true
	}
	return false
}

// ParseDealStatus validates a raw deal status.
func ParseDealStatus(s string) (DealStatus, error) {
	v := DealStatus(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "deal status", Value: s}
	}
	return v, nil
}

// QuoteStatus is the state of a quote version.
type QuoteStatus string

// Quote status constants.
const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
)

// IsValid checks if the quote status is one of the known values.
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected:
		return true
	}
	return false
}

// ParseQuoteStatus validates a raw quote status.
func ParseQuoteStatus(s string) (QuoteStatus, error) {
	v := QuoteStatus(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "quote status", Value: s}
	}
	return v, nil
}

// ProposalStatus is the state of a visual proposal version.
type ProposalStatus string

// Proposal status constants.
const (
	ProposalDraft    ProposalStatus = "draft"
	ProposalSent     ProposalStatus = "sent"
	ProposalSigned   ProposalStatus = "signed"
	ProposalRejected ProposalStatus = "rejected"
)

// IsValid checks if the proposal status is one of the known values.
func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalDraft, ProposalSent, ProposalSigned, ProposalRejected:
		return true
	}
	return false
}

// ParseProposalStatus validates a raw proposal status.
func ParseProposalStatus(s string) (ProposalStatus, error) {
	v := ProposalStatus(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "proposal status", Value: s}
	}
	return v, nil
}

// SignalKind selects which signal table a detection belongs to.
type SignalKind string

// Signal kind constants.
const (
	SignalIntent     SignalKind = "intent"
	SignalBuying     SignalKind = "buying"
	SignalGovernance SignalKind = "governance"
)

// IsValid checks if the signal kind is one of the known values.
func (k SignalKind) IsValid() bool {
	switch k {
	case SignalIntent, SignalBuying, SignalGovernance:
		return true
	}
	return false
}

// ParseSignalKind validates a raw signal kind.
func ParseSignalKind(s string) (SignalKind, error) {
	v := SignalKind(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "signal kind", Value: s}
	}
	return v, nil
}

// SignalPriority ranks a detected signal.
type SignalPriority string

// Signal priority constants.
const (
	PriorityLow      SignalPriority = "low"
	PriorityMedium   SignalPriority = "medium"
	PriorityHigh     SignalPriority = "high"
	PriorityCritical SignalPriority = "critical"
)

// IsValid checks if the priority is one of the known values.
func (p SignalPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ParseSignalPriority validates a raw priority.
func ParseSignalPriority(s string) (SignalPriority, error) {
	v := SignalPriority(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "signal priority", Value: s}
	}
	return v, nil
}

// ActivityKind categorizes a company activity record.
type ActivityKind string

// Activity kind constants.
const (
	ActivityNote    ActivityKind = "note"
	ActivityCall    ActivityKind = "call"
	ActivityEmail   ActivityKind = "email"
	ActivityMeeting ActivityKind = "meeting"
	ActivityStage   ActivityKind = "stage_change"
)

// IsValid checks if the activity kind is one of the known values.
func (k ActivityKind) IsValid() bool {
	switch k {
	case ActivityNote, ActivityCall, ActivityEmail, ActivityMeeting, ActivityStage:
		return true
	}
	return false
}

// ParseActivityKind validates a raw activity kind.
func ParseActivityKind(s string) (ActivityKind, error) {
	v := ActivityKind(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "activity kind", Value: s}
	}
	return v, nil
}

// BlockKind is the content type of a canvas block.
type BlockKind string

// Block kind constants.
const (
	BlockText      BlockKind = "text"
	BlockHeading   BlockKind = "heading"
	BlockChecklist BlockKind = "checklist"
	BlockTable     BlockKind = "table"
	BlockEmbed     BlockKind = "embed"
)

// IsValid checks if the block kind is one of the known values.
func (k BlockKind) IsValid() bool {
	switch k {
	case BlockText, BlockHeading, BlockChecklist, BlockTable, BlockEmbed:
		return true
	}
	return false
}

// ParseBlockKind validates a raw block kind.
func ParseBlockKind(s string) (BlockKind, error) {
	v := BlockKind(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "block kind", Value: s}
	}
	return v, nil
}

// EnumError reports a column value outside its closed set.
type EnumError struct {
	Type  string
	Value string
}

func (e *EnumError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Type, e.Value)
}
