package costs

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/salesmachine/internal/catalog"
	"github.com/roach88/salesmachine/internal/model"
)

// CategoryTotalRow is the subtotal of one cost category.
type CategoryTotalRow struct {
	Category model.Category `json:"category"`
	Name     string         `json:"name"`
	Items    int            `json:"items"`
	Total    model.Cents    `json:"total"`
}

// Summary holds subtotals in catalog order and the grand total.
type Summary struct {
	Categories []CategoryTotalRow `json:"categories"`
	Total      model.Cents        `json:"total"`
}

// CategoryTotal sums the costs of items whose category is c.
func CategoryTotal(items []model.CostItem, c model.Category) model.Cents {
	var sum model.Cents
	for _, it := range items {
		if it.Category == c {
			sum += it.Cost
		}
	}
	return sum
}

// GrandTotal sums the costs of all items.
func GrandTotal(items []model.CostItem) model.Cents {
	var sum model.Cents
	for _, it := range items {
		sum += it.Cost
	}
	return sum
}

// Summarize computes per-category subtotals for every catalog category.
func Summarize(cat *catalog.Catalog, items []model.CostItem) Summary {
	rows := make([]CategoryTotalRow, 0, len(cat.Categories))
	for _, ci := range cat.Categories {
		row := CategoryTotalRow{Category: ci.Key, Name: ci.Name}
		for _, it := range items {
			if it.Category == ci.Key {
				row.Items++
				row.Total += it.Cost
			}
		}
		rows = append(rows, row)
	}
	return Summary{Categories: rows, Total: GrandTotal(items)}
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount for display, e.g. "R$ 1.200,50".
func FormatBRL(c model.Cents) string {
	return brl.Sprintf("R$ %.2f", c.Units())
}
