package catalog

import (
	"github.com/roach88/salesmachine/internal/model"
)

// CategoryInfo is the display data of a cost category.
type CategoryInfo struct {
	Key      model.Category `json:"key"`
	Name     string         `json:"name"`
	Position int            `json:"position"`
}

// Item is a predefined cost line item.
type Item struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category model.Category `json:"category"`
}

// Catalog is the compiled business catalog.
type Catalog struct {
	Categories []CategoryInfo        `json:"categories"`
	Items      []Item                `json:"items"`
	Stages     []model.PipelineStage `json:"stages"`
	Bands      model.Bands           `json:"temperature"`
	QualifyMin model.Temperature     `json:"qualify_min"`
}

// Item returns the predefined item with the given ID.
func (c *Catalog) Item(id string) (Item, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// ItemsIn returns the predefined items of one category in declaration order.
func (c *Catalog) ItemsIn(cat model.Category) []Item {
	var out []Item
	for _, it := range c.Items {
		if it.Category == cat {
			out = append(out, it)
		}
	}
	return out
}

// CategoryName returns the display name of a category, or its key.
func (c *Catalog) CategoryName(cat model.Category) string {
	for _, ci := range c.Categories {
		if ci.Key == cat {
			return ci.Name
		}
	}
	return string(cat)
}

// Stage returns the pipeline stage with the given key.
func (c *Catalog) Stage(key string) (model.PipelineStage, bool) {
	for _, st := range c.Stages {
		if st.Key == key {
			return st, true
		}
	}
	return model.PipelineStage{}, false
}

// FirstStage returns the lowest-positioned open stage.
func (c *Catalog) FirstStage() model.PipelineStage {
	for _, st := range c.Stages {
		if st.Closes == "" {
			return st
		}
	}
	return model.PipelineStage{}
}

// Classify buckets an ICP score with the catalog bands.
func (c *Catalog) Classify(s model.Score) model.Temperature {
	return c.Bands.Classify(s)
}

// Qualifies reports whether a temperature meets the qualification band.
func (c *Catalog) Qualifies(t model.Temperature) bool {
	return t.AtLeast(c.QualifyMin)
}
