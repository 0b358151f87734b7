package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/store"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Action: ActionToggle, Args: map[string]string{"item": "imp_testes"}, Outcome: "added"},
		{Seq: 2, Action: ActionSetCost, Args: map[string]string{"item": "imp_testes", "cost": "5000.00"}, Outcome: "ok"},
		{Seq: 3, Action: ActionAddCustom, Args: map[string]string{"category": "support", "name": "Viagem"}, Outcome: "added"},
		{Seq: 4, Action: ActionSetCost, Args: map[string]string{"item": "@last", "cost": "1200.00"}, Outcome: "ok"},
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Action: ActionSetCost,
		Args:   map[string]string{"item": "@last"},
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, Action: ActionCapture})
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, "trace_contains", assertErr.Type)
	assert.Contains(t, assertErr.Expected, "capture")
	assert.Equal(t, "not found in trace", assertErr.Actual)
}

func TestAssertTraceContains_WrongArgs(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Action: ActionToggle,
		Args:   map[string]string{"item": "sup_sla"},
	})
	assert.Error(t, err)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionToggle, ActionAddCustom}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionSetCost, ActionAddCustom}}),
		"first occurrences decide the order")

	err := assertTraceOrder(trace, Assertion{Actions: []string{ActionAddCustom, ActionToggle}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Actions: []string{ActionToggle, ActionRemove}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing action: remove")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionSetCost, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionRemove, Count: 0}))

	err := assertTraceCount(trace, Assertion{Action: ActionSetCost, Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 occurrences of set_cost")
	assert.Contains(t, err.Error(), "Actual: 2 occurrences")
}

func TestMatchArgs_SubsetSemantics(t *testing.T) {
	actual := map[string]string{"item": "imp_testes", "cost": "5000.00"}

	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]string{"item": "imp_testes"}))
	assert.False(t, matchArgs(actual, map[string]string{"item": "imp_testes", "name": "x"}))
	assert.False(t, matchArgs(nil, map[string]string{"item": "imp_testes"}))
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     "trace_count",
		Expected: "1 occurrences of toggle",
		Actual:   "2 occurrences",
		Trace:    sampleTrace()[:1],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 1 occurrences of toggle")
	assert.Contains(t, msg, "Actual: 2 occurrences")
	assert.Contains(t, msg, "[1] toggle")
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)

	sql, args, err = buildWhereClause(map[string]any{"status": "open", "company_id": "row-0001", "closed_at": nil})
	require.NoError(t, err)
	assert.Equal(t, "closed_at IS NULL AND company_id = ? AND status = ?", sql)
	assert.Equal(t, []any{"row-0001", "open"}, args)

	_, _, err = buildWhereClause(map[string]any{"id; DROP TABLE sdr_deals": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")
}

func TestToSQLValue(t *testing.T) {
	assert.Equal(t, "x", toSQLValue("x"))
	assert.Equal(t, 3, toSQLValue(3))
	assert.Equal(t, true, toSQLValue(true))
	assert.Equal(t, int64(1200), toSQLValue(model.Cents(1200)))
	assert.Equal(t, "[a]", toSQLValue([]string{"a"}))
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual("open", "open"))
	assert.True(t, stateValuesEqual("open", []byte("open")))
	assert.False(t, stateValuesEqual("open", "won"))
	assert.True(t, stateValuesEqual(70, int64(70)))
	assert.False(t, stateValuesEqual(70, "70"))
	assert.True(t, stateValuesEqual(true, int64(1)))
	assert.True(t, stateValuesEqual(false, int64(0)))
	assert.True(t, stateValuesEqual(nil, nil))
	assert.False(t, stateValuesEqual(nil, int64(0)))
	assert.False(t, stateValuesEqual("x", nil))
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "a=1 AND b=x", formatWhereClause(map[string]any{"b": "x", "a": 1}))
}

// newAssertionContext runs a scenario that leaves a lead and a deal behind
// and returns the harness state for direct assertion calls.
func newAssertionContext(t *testing.T) (*AssertionContext, func()) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(":memory:")
	require.NoError(t, err)

	src, err := st.EnsureSource(ctx, "test", model.SourceManual)
	require.NoError(t, err)
	lead, err := st.CaptureLead(ctx, model.LeadCapture{SourceID: src.ID, CompanyName: "Acme"})
	require.NoError(t, err)

	h := &Harness{
		store: st,
		leads: map[string]string{"acme": lead.ID},
		deals: map[string]string{},
	}
	return &AssertionContext{Ctx: ctx, Store: st, Harness: h}, func() { st.Close() }
}

func TestAssertFinalState(t *testing.T) {
	actx, done := newAssertionContext(t)
	defer done()

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{
			name: "row found",
			a: Assertion{Table: "leads_quarantine", Where: map[string]any{"id": "@acme"},
				Expect: map[string]any{"status": "pending", "company_name": "Acme"}},
		},
		{
			name: "row not found",
			a: Assertion{Table: "leads_quarantine", Where: map[string]any{"company_name": "Beta"},
				Expect: map[string]any{"status": "pending"}},
			wantErr: "row not found",
		},
		{
			name: "value mismatch",
			a: Assertion{Table: "leads_quarantine", Where: map[string]any{"id": "@acme"},
				Expect: map[string]any{"status": "approved"}},
			wantErr: `field "status" = approved`,
		},
		{
			name: "missing column",
			a: Assertion{Table: "leads_quarantine", Where: map[string]any{"id": "@acme"},
				Expect: map[string]any{"score": 10}},
			wantErr: `field "score" to exist`,
		},
		{
			name: "unknown alias",
			a: Assertion{Table: "leads_quarantine", Where: map[string]any{"id": "@nobody"},
				Expect: map[string]any{"status": "pending"}},
			wantErr: `unknown alias "nobody"`,
		},
		{
			name:    "table not found",
			a:       Assertion{Table: "nonexistent", Expect: map[string]any{"a": 1}},
			wantErr: "query error",
		},
		{
			name:    "invalid table name",
			a:       Assertion{Table: "leads; DROP TABLE leads", Expect: map[string]any{"a": 1}},
			wantErr: "invalid table name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(actx, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertLeadStatus(t *testing.T) {
	actx, done := newAssertionContext(t)
	defer done()

	assert.NoError(t, assertLeadStatus(actx, Assertion{Lead: "acme", Status: model.LeadPending}))

	err := assertLeadStatus(actx, Assertion{Lead: "acme", Status: model.LeadQualified})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: pending")

	err = assertLeadStatus(actx, Assertion{Lead: "beta", Status: model.LeadPending})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown lead alias "beta"`)
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Action: ActionToggle},
		{Type: AssertTraceCount, Action: ActionToggle, Count: 5},
		{Type: "eventually"},
		{Type: AssertFinalState, Table: "sdr_deals", Expect: map[string]any{"a": 1}},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "5 occurrences of toggle")
	assert.Contains(t, errs[1], `unknown assertion type "eventually"`)
	assert.Contains(t, errs[2], "final_state requires a run context")
}
