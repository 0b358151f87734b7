package costs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/salesmachine/internal/catalog"
	"github.com/roach88/salesmachine/internal/model"
)

type recordingNotifier struct {
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) { n.successes = append(n.successes, msg) }
func (n *recordingNotifier) Error(msg string)   { n.errors = append(n.errors, msg) }

func fixedNow() time.Time { return time.UnixMilli(1700000000000) }

func newTestSelector(t *testing.T, opts ...Option) *Selector {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	opts = append([]Option{WithClock(fixedNow)}, opts...)
	return NewSelector(cat, nil, opts...)
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestSelector(t)

	require.NoError(t, s.Toggle(ctx, "imp_testes"))
	assert.Equal(t, []model.CostItem{{
		ID:       "imp_testes",
		Name:     "Testes e Validação",
		Category: model.CategoryImplementation,
	}}, s.Items())
	assert.Equal(t, model.Cents(0), s.CategoryTotal(model.CategoryImplementation))

	require.True(t, s.SetCost("imp_testes", model.FromUnits(5000)))
	assert.Equal(t, model.FromUnits(5000), s.CategoryTotal(model.CategoryImplementation))
	assert.Equal(t, model.FromUnits(5000), s.GrandTotal())

	require.NoError(t, s.AddCustom(ctx, model.CategorySupport, "Viagem"))
	items := s.Items()
	require.Len(t, items, 2)
	viagem := items[1]
	assert.Equal(t, "support_custom_1700000000000", viagem.ID)
	assert.True(t, viagem.IsCustom)
	assert.Equal(t, model.Cents(0), viagem.Cost)
	assert.Equal(t, model.FromUnits(5000), s.GrandTotal())

	require.True(t, s.SetCost(viagem.ID, model.FromUnits(1200)))
	assert.Equal(t, model.FromUnits(6200), s.GrandTotal())
	assert.Equal(t, "6200.00", s.GrandTotal().String())
}

func TestToggleAddsThenRemoves(t *testing.T) {
	ctx := context.Background()
	s := newTestSelector(t)
	require.NoError(t, s.Toggle(ctx, "lic_usuarios"))
	require.NoError(t, s.Toggle(ctx, "inf_cloud"))
	before := s.Items()

	require.NoError(t, s.Toggle(ctx, "imp_testes"))
	after := s.Items()
	require.Len(t, after, len(before)+1)
	added := after[len(after)-1]
	assert.Equal(t, model.Cents(0), added.Cost)
	assert.False(t, added.IsCustom)
	assert.True(t, s.Expanded(model.CategoryImplementation))

	require.NoError(t, s.Toggle(ctx, "imp_testes"))
	assert.Equal(t, before, s.Items())
}

func TestToggleUnknownItem(t *testing.T) {
	s := newTestSelector(t)
	err := s.Toggle(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownItem)
	assert.Empty(t, s.Items())
}

func TestBlankCustomNameNeverMutates(t *testing.T) {
	notifier := &recordingNotifier{}
	changes := 0
	s := newTestSelector(t,
		WithNotifier(notifier),
		WithOnChange(func([]model.CostItem) { changes++ }),
	)
	require.NoError(t, s.Toggle(context.Background(), "sup_mensal"))
	before := s.Items()
	changes = 0

	for _, name := range []string{"", "   ", "\t\n"} {
		err := s.AddCustom(context.Background(), model.CategorySupport, name)
		require.ErrorIs(t, err, ErrBlankName)
	}

	assert.Equal(t, before, s.Items())
	assert.Zero(t, changes)
	assert.Len(t, notifier.errors, 3)
	assert.Empty(t, notifier.successes)
}

func TestCustomIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestSelector(t)

	require.NoError(t, s.AddCustom(ctx, model.CategoryTraining, "Workshop"))
	require.NoError(t, s.AddCustom(ctx, model.CategoryTraining, "Workshop"))
	require.NoError(t, s.AddCustom(ctx, model.CategoryTraining, "Workshop"))

	seen := map[string]bool{}
	for _, it := range s.Items() {
		assert.False(t, seen[it.ID], "duplicate id %s", it.ID)
		seen[it.ID] = true
		assert.True(t, it.IsCustom)
	}
	assert.True(t, seen["training_custom_1700000000001"])
}

func TestAddCustomClearsInput(t *testing.T) {
	s := newTestSelector(t)
	s.SetInput(model.CategoryInfrastructure, "  Servidor dedicado ")

	require.NoError(t, s.AddCustomFromInput(context.Background(), model.CategoryInfrastructure))
	assert.Empty(t, s.Input(model.CategoryInfrastructure))
	assert.True(t, s.Expanded(model.CategoryInfrastructure))
	assert.Equal(t, "Servidor dedicado", s.Items()[0].Name)
}

func TestSetCostPreservesOrderAndFields(t *testing.T) {
	ctx := context.Background()
	s := newTestSelector(t)
	for _, id := range []string{"imp_levantamento", "lic_modulos", "trn_admin"} {
		require.NoError(t, s.Toggle(ctx, id))
	}
	before := s.Items()

	require.True(t, s.SetCost("lic_modulos", 12345))
	after := s.Items()
	require.Len(t, after, 3)
	for i := range before {
		if before[i].ID == "lic_modulos" {
			want := before[i]
			want.Cost = 12345
			assert.Equal(t, want, after[i])
			continue
		}
		assert.Equal(t, before[i], after[i])
	}

	assert.False(t, s.SetCost("missing", 1))
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	s := newTestSelector(t)
	require.NoError(t, s.Toggle(context.Background(), "inf_backup"))
	before := s.Items()

	assert.False(t, s.Remove("does-not-exist"))
	assert.Equal(t, before, s.Items())

	assert.True(t, s.Remove("inf_backup"))
	assert.Empty(t, s.Items())
}

func TestGrandTotalEqualsSumOfCategories(t *testing.T) {
	ctx := context.Background()
	s := newTestSelector(t)
	ops := []func(){
		func() { _ = s.Toggle(ctx, "imp_migracao") },
		func() { s.SetCost("imp_migracao", 99999) },
		func() { _ = s.AddCustom(ctx, model.CategoryLicensing, "Extra") },
		func() { _ = s.Toggle(ctx, "sup_sla") },
		func() { s.SetCost("sup_sla", 101) },
		func() { _ = s.Toggle(ctx, "imp_migracao") },
		func() { s.Remove("sup_sla") },
		func() { _ = s.Toggle(ctx, "inf_seguranca") },
		func() { s.SetCost("inf_seguranca", 7) },
	}

	for _, op := range ops {
		op()
		var sum model.Cents
		for _, c := range model.Categories {
			sum += s.CategoryTotal(c)
		}
		assert.Equal(t, sum, s.GrandTotal())
	}
}

func TestPersistBeforeSuccessNotification(t *testing.T) {
	var order []string
	notifier := &recordingNotifier{}
	persister := PersistFunc(func(_ context.Context, items []model.CostItem) error {
		order = append(order, "persist")
		assert.Empty(t, notifier.successes)
		assert.Len(t, items, 1)
		return nil
	})
	s := newTestSelector(t, WithPersister(persister), WithNotifier(notifier))

	require.NoError(t, s.Toggle(context.Background(), "imp_testes"))
	assert.Equal(t, []string{"persist"}, order)
	assert.Equal(t, []string{"Testes e Validação adicionado"}, notifier.successes)
}

func TestPersistFailureSkipsSuccess(t *testing.T) {
	notifier := &recordingNotifier{}
	boom := errors.New("boom")
	s := newTestSelector(t,
		WithPersister(PersistFunc(func(context.Context, []model.CostItem) error { return boom })),
		WithNotifier(notifier),
	)

	err := s.AddCustom(context.Background(), model.CategorySupport, "Viagem")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, notifier.successes)
	assert.Len(t, s.Items(), 1)
}

func TestNoNotificationWithoutPersister(t *testing.T) {
	notifier := &recordingNotifier{}
	s := newTestSelector(t, WithNotifier(notifier))
	require.NoError(t, s.Toggle(context.Background(), "imp_testes"))
	assert.Empty(t, notifier.successes)
}

func TestOnChangeReceivesCopies(t *testing.T) {
	var got []model.CostItem
	s := newTestSelector(t, WithOnChange(func(items []model.CostItem) { got = items }))
	require.NoError(t, s.Toggle(context.Background(), "imp_testes"))

	require.Len(t, got, 1)
	got[0].Cost = 42
	assert.Equal(t, model.Cents(0), s.Items()[0].Cost)
}

func TestFilePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selection.yaml")
	s := newTestSelector(t, WithPersister(FilePersister{Path: path, Proposal: "p-1"}))
	require.NoError(t, s.Toggle(context.Background(), "imp_testes"))
	s.SetCost("imp_testes", model.FromUnits(5000))
	require.NoError(t, s.AddCustom(context.Background(), model.CategorySupport, "Viagem"))

	sel, err := LoadSelection(path)
	require.NoError(t, err)
	assert.Equal(t, "p-1", sel.Proposal)
	assert.Equal(t, s.Items(), sel.Items)
}
