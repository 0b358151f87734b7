package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/salesmachine/internal/model"
)

func cents(v int64) *model.Cents {
	c := model.Cents(v)
	return &c
}

func TestRun_CostSelection(t *testing.T) {
	scenario := &Scenario{
		Name:        "cost_selection",
		Description: "Catalog and custom items add up",
		Steps: []Step{
			{Action: ActionToggle, Item: "imp_testes"},
			{Action: ActionSetCost, Item: "imp_testes", Cost: cents(500000)},
			{Action: ActionAddCustom, Category: model.CategorySupport, Name: "Viagem"},
			{Action: ActionSetCost, Item: lastItem, Cost: cents(120000)},
		},
		Assertions: []Assertion{
			{Type: AssertTotal, Amount: cents(620000)},
			{Type: AssertTotal, Category: model.CategoryImplementation, Amount: cents(500000)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "added", result.Trace[0].Outcome)
	assert.Equal(t, "ok", result.Trace[3].Outcome)

	require.NotNil(t, result.Snapshot)
	require.Len(t, result.Snapshot.Selection, 2)
	assert.Equal(t, "support_custom_1768478400000", result.Snapshot.Selection[1].ID)
	assert.True(t, result.Snapshot.Selection[1].IsCustom)
	assert.Equal(t, 2, result.Snapshot.Persisted)
	assert.Equal(t, model.Cents(620000), result.Snapshot.Totals["grand"])
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_total",
		Description: "Total assertion fails",
		Steps:       []Step{{Action: ActionToggle, Item: "imp_testes"}},
		Assertions:  []Assertion{{Type: AssertTotal, Amount: cents(100)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "grand total = 1.00")
}

func TestRun_UnexpectedStepError(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_item",
		Description: "Toggling an item outside the catalog fails",
		Steps:       []Step{{Action: ActionToggle, Item: "imp_nope"}},
		Assertions:  []Assertion{{Type: AssertNotifications}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 0 (toggle)")
	assert.Contains(t, result.Errors[0], "unknown catalog item")
	assert.Equal(t, "error", result.Trace[0].Outcome)
}

func TestRun_ExpectedErrorThatSucceeds(t *testing.T) {
	scenario := &Scenario{
		Name:        "no_error",
		Description: "A step marked as failing succeeds",
		Steps:       []Step{{Action: ActionToggle, Item: "imp_testes", ExpectError: true}},
		Assertions:  []Assertion{{Type: AssertTraceCount, Action: ActionToggle, Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected an error")
}

func TestRun_LeadLifecycle(t *testing.T) {
	scenario := &Scenario{
		Name:        "lead_lifecycle",
		Description: "Hot, cold, rejected and failing leads",
		Collaborators: Collaborators{
			Scores:     map[string]int{"Acme": 90, "Cold Co": 20},
			Rejections: map[string]string{"Shell": "empresa inativa"},
			Failures:   []string{"Broken"},
			DealHealth: 150,
		},
		Steps: []Step{
			{Action: ActionCapture, As: "acme", CNPJ: "11222333000181", CompanyName: "Acme"},
			{Action: ActionCapture, As: "cold", CompanyName: "Cold Co", Email: "vendas@cold.example"},
			{Action: ActionCapture, As: "shell", CompanyName: "Shell"},
			{Action: ActionCapture, As: "broken", CompanyName: "Broken"},
			{Action: ActionProcess, Lead: "acme"},
			{Action: ActionProcess, Lead: "cold"},
			{Action: ActionProcess, Lead: "shell"},
			{Action: ActionProcess, Lead: "broken", ExpectError: true},
			{Action: ActionRecalculate},
			{Action: ActionDealCreate, As: "d1", Lead: "acme", Value: model.FromUnits(1000)},
			{Action: ActionDealHealth, Deal: "d1"},
			{Action: ActionDealClose, Deal: "d1", Outcome: "won"},
			{Action: ActionDealCreate, As: "d2", Lead: "cold", ExpectError: true},
		},
		Assertions: []Assertion{
			{Type: AssertLeadStatus, Lead: "acme", Status: model.LeadQualified},
			{Type: AssertLeadStatus, Lead: "cold", Status: model.LeadApproved},
			{Type: AssertLeadStatus, Lead: "shell", Status: model.LeadRejected},
			{Type: AssertLeadStatus, Lead: "broken", Status: model.LeadValidating},
			{Type: AssertFinalState, Table: "sdr_deals", Where: map[string]any{"id": "@d1"},
				Expect: map[string]any{"status": "won", "health_score": 100, "title": "Acme"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	outcomes := make([]string, len(result.Trace))
	for i, ev := range result.Trace {
		outcomes[i] = ev.Outcome
	}
	assert.Equal(t, []string{
		"pending", "pending", "pending", "pending",
		"qualified", "approved", "rejected", "error",
		"2 rescored",
		"prospecting", "health 100", "won", "error",
	}, outcomes)

	leads := result.Snapshot.Leads
	require.Len(t, leads, 4)
	assert.Equal(t, "acme", leads[0].Alias)
	assert.True(t, leads[0].Promoted)
	require.NotNil(t, leads[0].Score)
	assert.Equal(t, model.Score(90), *leads[0].Score)
	assert.Equal(t, model.TemperatureHot, leads[0].Temperature)
	assert.Equal(t, model.TemperatureCold, leads[1].Temperature)
	assert.False(t, leads[1].Promoted)
	assert.Nil(t, leads[2].Score)
	assert.Nil(t, leads[3].Score)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/lead_qualification.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := first.Snapshot.MarshalCanonical()
	require.NoError(t, err)
	b, err := second.Snapshot.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FreshDatabasePerRun(t *testing.T) {
	scenario := &Scenario{
		Name:        "capture_once",
		Description: "Each run starts from an empty store",
		Steps:       []Step{{Action: ActionCapture, As: "acme", CNPJ: "11222333000181"}},
		Assertions:  []Assertion{{Type: AssertLeadStatus, Lead: "acme", Status: model.LeadPending}},
	}

	for range 2 {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
	}
}

func TestRun_DuplicateAlias(t *testing.T) {
	scenario := &Scenario{
		Name:        "duplicate_alias",
		Description: "Aliases are unique",
		Steps: []Step{
			{Action: ActionCapture, As: "acme"},
			{Action: ActionCapture, As: "acme", ExpectError: true},
			{Action: ActionProcess, Lead: "ghost", ExpectError: true},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Action: ActionCapture, Count: 2}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
