package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/salesmachine/internal/model"
)

// Scenario is one harness run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collaborators scripts the validator and ICP scorer.
	Collaborators Collaborators `yaml:"collaborators,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Collaborators scripts the external functions, keyed by company name.
// Leads not listed are approved and scored 0.
type Collaborators struct {
	Scores     map[string]int    `yaml:"scores,omitempty"`
	Rejections map[string]string `yaml:"rejections,omitempty"`
	Failures   []string          `yaml:"failures,omitempty"`
	DealHealth int               `yaml:"deal_health,omitempty"`
}

// Step is one action. Only the fields the action uses may be set.
type Step struct {
	Action string `yaml:"action"`

	// Cost selector fields.
	Item     string         `yaml:"item,omitempty"`
	Category model.Category `yaml:"category,omitempty"`
	Name     string         `yaml:"name,omitempty"`
	Cost     *model.Cents   `yaml:"cost,omitempty"`

	// Lead and deal fields.
	As          string      `yaml:"as,omitempty"`
	CompanyName string      `yaml:"company_name,omitempty"`
	CNPJ        string      `yaml:"cnpj,omitempty"`
	Email       string      `yaml:"email,omitempty"`
	Lead        string      `yaml:"lead,omitempty"`
	Deal        string      `yaml:"deal,omitempty"`
	Title       string      `yaml:"title,omitempty"`
	Value       model.Cents `yaml:"value,omitempty"`
	Stage       string      `yaml:"stage,omitempty"`
	Outcome     string      `yaml:"outcome,omitempty"`

	// ExpectError marks a step that must fail.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// Step actions.
const (
	ActionToggle      = "toggle"
	ActionAddCustom   = "add_custom"
	ActionSetCost     = "set_cost"
	ActionRemove      = "remove"
	ActionCapture     = "capture"
	ActionProcess     = "process"
	ActionRecalculate = "recalculate"
	ActionDealCreate  = "deal_create"
	ActionDealMove    = "deal_move"
	ActionDealClose   = "deal_close"
	ActionDealHealth  = "deal_health"
)

// Assertion validates the trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// trace_contains, trace_count
	Action string            `yaml:"action,omitempty"`
	Args   map[string]string `yaml:"args,omitempty"`
	Count  int               `yaml:"count,omitempty"`

	// trace_order
	Actions []string `yaml:"actions,omitempty"`

	// final_state
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// lead_status
	Lead   string           `yaml:"lead,omitempty"`
	Status model.LeadStatus `yaml:"status,omitempty"`

	// total; an empty category means the grand total.
	Category model.Category `yaml:"category,omitempty"`
	Amount   *model.Cents   `yaml:"amount,omitempty"`

	// notifications
	Messages []string `yaml:"messages,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertLeadStatus    = "lead_status"
	AssertTotal         = "total"
	AssertNotifications = "notifications"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	missing := func(field string) error {
		return fmt.Errorf("steps[%d]: %s is required for %s", index, field, st.Action)
	}

	switch st.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionToggle, ActionRemove:
		if st.Item == "" {
			return missing("item")
		}
	case ActionSetCost:
		if st.Item == "" {
			return missing("item")
		}
		if st.Cost == nil {
			return missing("cost")
		}
	case ActionAddCustom:
		if st.Category == "" {
			return missing("category")
		}
	case ActionCapture:
		if st.As == "" {
			return missing("as")
		}
	case ActionProcess:
		if st.Lead == "" {
			return missing("lead")
		}
	case ActionRecalculate:
	case ActionDealCreate:
		if st.As == "" {
			return missing("as")
		}
		if st.Lead == "" {
			return missing("lead")
		}
	case ActionDealMove:
		if st.Deal == "" {
			return missing("deal")
		}
		if st.Stage == "" {
			return missing("stage")
		}
	case ActionDealClose:
		if st.Deal == "" {
			return missing("deal")
		}
		if st.Outcome != string(model.DealWon) && st.Outcome != string(model.DealLost) {
			return fmt.Errorf("steps[%d]: outcome must be won or lost, got %q", index, st.Outcome)
		}
	case ActionDealHealth:
		if st.Deal == "" {
			return missing("deal")
		}
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertLeadStatus:
		if a.Lead == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: lead and status are required for lead_status", index)
		}
	case AssertTotal:
		if a.Amount == nil {
			return fmt.Errorf("assertions[%d]: amount is required for total", index)
		}
	case AssertNotifications:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
