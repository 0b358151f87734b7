package costs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/salesmachine/internal/catalog"
	"github.com/roach88/salesmachine/internal/model"
)

// customInfix separates the category from the timestamp in custom item IDs.
const customInfix = "_custom_"

// Notifier receives user-facing feedback.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Persister stores the current selection. It is awaited before the success
// notification of an addition.
type Persister interface {
	Persist(ctx context.Context, items []model.CostItem) error
}

// PersistFunc adapts a function to Persister.
type PersistFunc func(ctx context.Context, items []model.CostItem) error

// Persist calls f.
func (f PersistFunc) Persist(ctx context.Context, items []model.CostItem) error {
	return f(ctx, items)
}

// Option configures a Selector.
type Option func(*Selector)

// WithPersister sets the persistence hook.
func WithPersister(p Persister) Option {
	return func(s *Selector) { s.persist = p }
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(s *Selector) { s.notify = n }
}

// WithOnChange sets the callback that receives every replaced list.
func WithOnChange(fn func([]model.CostItem)) Option {
	return func(s *Selector) { s.onChange = fn }
}

// WithClock sets the time source used for custom item IDs.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// Selector is the cost selection state for one proposal.
type Selector struct {
	catalog  *catalog.Catalog
	items    []model.CostItem
	expanded map[model.Category]bool
	inputs   map[model.Category]string

	persist  Persister
	notify   Notifier
	onChange func([]model.CostItem)
	now      func() time.Time
}

// NewSelector creates a selector over the given catalog, starting from a copy
// of initial.
func NewSelector(cat *catalog.Catalog, initial []model.CostItem, opts ...Option) *Selector {
	s := &Selector{
		catalog:  cat,
		items:    cloneItems(initial),
		expanded: make(map[model.Category]bool),
		inputs:   make(map[model.Category]string),
		notify:   discardNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Items returns a copy of the current selection.
func (s *Selector) Items() []model.CostItem {
	return cloneItems(s.items)
}

// Selected reports whether an item with the given ID is in the selection.
func (s *Selector) Selected(id string) bool {
	return s.indexOf(id) >= 0
}

// Expanded reports whether a category's panel is open.
func (s *Selector) Expanded(c model.Category) bool {
	return s.expanded[c]
}

// SetExpanded opens or closes a category's panel.
func (s *Selector) SetExpanded(c model.Category, open bool) {
	s.expanded[c] = open
}

// Input returns the pending custom item name for a category.
func (s *Selector) Input(c model.Category) string {
	return s.inputs[c]
}

// SetInput records the pending custom item name for a category.
func (s *Selector) SetInput(c model.Category, name string) {
	s.inputs[c] = name
}

// Toggle removes a selected item, or appends the catalog item with a zero
// cost. An addition opens the item's category, runs the persistence hook and
// then notifies success.
func (s *Selector) Toggle(ctx context.Context, itemID string) error {
	if i := s.indexOf(itemID); i >= 0 {
		next := make([]model.CostItem, 0, len(s.items)-1)
		next = append(next, s.items[:i]...)
		next = append(next, s.items[i+1:]...)
		s.replace(next)
		return nil
	}

	item, ok := s.catalog.Item(itemID)
	if !ok {
		return fmt.Errorf("toggle %s: %w", itemID, ErrUnknownItem)
	}

	next := append(cloneItems(s.items), model.CostItem{
		ID:       item.ID,
		Name:     item.Name,
		Category: item.Category,
	})
	s.replace(next)
	s.expanded[item.Category] = true

	return s.persistAndNotify(ctx, item.Name)
}

// AddCustom appends a custom item named name to category c. A blank name
// sends an error notification and leaves the selection untouched.
func (s *Selector) AddCustom(ctx context.Context, c model.Category, name string) error {
	if !c.IsValid() {
		return fmt.Errorf("add custom item: %w", &model.EnumError{Type: "cost category", Value: string(c)})
	}
	name = strings.TrimSpace(name)
	if name == "" {
		s.notify.Error("Informe o nome do custo")
		return ErrBlankName
	}

	item := model.CostItem{
		ID:       s.customID(c),
		Name:     name,
		Category: c,
		IsCustom: true,
	}
	s.replace(append(cloneItems(s.items), item))
	s.inputs[c] = ""
	s.expanded[c] = true

	return s.persistAndNotify(ctx, name)
}

// AddCustomFromInput adds the pending input of category c as a custom item.
func (s *Selector) AddCustomFromInput(ctx context.Context, c model.Category) error {
	return s.AddCustom(ctx, c, s.inputs[c])
}

// SetCost updates the cost of the item with the given ID in place.
// It reports whether the item was found.
func (s *Selector) SetCost(id string, cost model.Cents) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	next := cloneItems(s.items)
	next[i].Cost = cost
	s.replace(next)
	return true
}

// Remove deletes the item with the given ID. Unknown IDs are a no-op.
func (s *Selector) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	next := make([]model.CostItem, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	s.replace(next)
	return true
}

// CategoryTotal sums the costs of items in one category.
func (s *Selector) CategoryTotal(c model.Category) model.Cents {
	return CategoryTotal(s.items, c)
}

// GrandTotal sums the costs of every selected item.
func (s *Selector) GrandTotal() model.Cents {
	return GrandTotal(s.items)
}

// Totals returns the category subtotals in catalog order.
func (s *Selector) Totals() []CategoryTotalRow {
	return Summarize(s.catalog, s.items).Categories
}

func (s *Selector) persistAndNotify(ctx context.Context, name string) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.Persist(ctx, cloneItems(s.items)); err != nil {
		return fmt.Errorf("persist selection: %w", err)
	}
	s.notify.Success(fmt.Sprintf("%s adicionado", name))
	return nil
}

func (s *Selector) replace(next []model.CostItem) {
	s.items = next
	if s.onChange != nil {
		s.onChange(cloneItems(next))
	}
}

func (s *Selector) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// customID builds "<category>_custom_<unix millis>", moving forward one
// millisecond while the ID is taken.
func (s *Selector) customID(c model.Category) string {
	ms := s.now().UnixMilli()
	for {
		id := fmt.Sprintf("%s%s%d", c, customInfix, ms)
		if s.indexOf(id) < 0 {
			return id
		}
		ms++
	}
}

func cloneItems(items []model.CostItem) []model.CostItem {
	out := make([]model.CostItem, len(items))
	copy(out, items)
	return out
}

type discardNotifier struct{}

func (discardNotifier) Success(string) {}
func (discardNotifier) Error(string)   {}
