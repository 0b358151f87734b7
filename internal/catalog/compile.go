package catalog

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"

	"github.com/roach88/salesmachine/internal/model"
)

// Compile turns a CUE value holding the catalog fields into a Catalog.
// The result is fully validated.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{}
	var err error

	if c.Categories, err = compileCategories(v); err != nil {
		return nil, err
	}
	if c.Items, err = compileItems(v); err != nil {
		return nil, err
	}
	if c.Stages, err = compileStages(v); err != nil {
		return nil, err
	}
	if c.Bands, err = compileBands(v); err != nil {
		return nil, err
	}

	qualify := "WARM"
	if qv := v.LookupPath(cue.ParsePath("qualify_min")); qv.Exists() {
		if qualify, err = qv.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if c.QualifyMin, err = model.ParseTemperature(qualify); err != nil {
		return nil, &CompileError{Field: "qualify_min", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("qualify_min")).Pos()}
	}

	return c, nil
}

func compileCategories(v cue.Value) ([]CategoryInfo, error) {
	catsVal := v.LookupPath(cue.ParsePath("cost_category"))
	if !catsVal.Exists() {
		return nil, &CompileError{Field: "cost_category", Message: "cost categories are required", Pos: v.Pos()}
	}
	iter, err := catsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	seen := make(map[model.Category]bool)
	positions := make(map[int]string)
	var cats []CategoryInfo
	for iter.Next() {
		label := iter.Selector().String()
		cat, perr := model.ParseCategory(label)
		if perr != nil {
			return nil, &CompileError{Field: "cost_category." + label, Message: "unknown category (allowed: implementation, licensing, infrastructure, training, support)", Pos: iter.Value().Pos()}
		}
		name, err := requiredString(iter.Value(), "cost_category."+label, "name")
		if err != nil {
			return nil, err
		}
		pos, err := requiredInt(iter.Value(), "cost_category."+label, "position")
		if err != nil {
			return nil, err
		}
		if other, dup := positions[pos]; dup {
			return nil, &CompileError{Field: "cost_category." + label + ".position", Message: fmt.Sprintf("position %d already used by %s", pos, other), Pos: iter.Value().Pos()}
		}
		positions[pos] = label
		seen[cat] = true
		cats = append(cats, CategoryInfo{Key: cat, Name: name, Position: pos})
	}

	for _, want := range model.Categories {
		if !seen[want] {
			return nil, &CompileError{Field: "cost_category", Message: fmt.Sprintf("category %q is missing", want), Pos: catsVal.Pos()}
		}
	}

	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Position < cats[j].Position })
	return cats, nil
}

func compileItems(v cue.Value) ([]Item, error) {
	itemsVal := v.LookupPath(cue.ParsePath("cost_item"))
	if !itemsVal.Exists() {
		return nil, nil
	}
	iter, err := itemsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var items []Item
	for iter.Next() {
		id := iter.Selector().String()
		field := "cost_item." + id
		name, err := requiredString(iter.Value(), field, "name")
		if err != nil {
			return nil, err
		}
		rawCat, err := requiredString(iter.Value(), field, "category")
		if err != nil {
			return nil, err
		}
		cat, perr := model.ParseCategory(rawCat)
		if perr != nil {
			return nil, &CompileError{Field: field + ".category", Message: perr.Error(), Pos: iter.Value().LookupPath(cue.ParsePath("category")).Pos()}
		}
		items = append(items, Item{ID: id, Name: name, Category: cat})
	}
	return items, nil
}

func compileStages(v cue.Value) ([]model.PipelineStage, error) {
	stagesVal := v.LookupPath(cue.ParsePath("pipeline_stage"))
	if !stagesVal.Exists() {
		return nil, &CompileError{Field: "pipeline_stage", Message: "at least one pipeline stage is required", Pos: v.Pos()}
	}
	iter, err := stagesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	positions := make(map[int]string)
	var stages []model.PipelineStage
	openStages := 0
	for iter.Next() {
		key := iter.Selector().String()
		field := "pipeline_stage." + key
		name, err := requiredString(iter.Value(), field, "name")
		if err != nil {
			return nil, err
		}
		pos, err := requiredInt(iter.Value(), field, "position")
		if err != nil {
			return nil, err
		}
		if other, dup := positions[pos]; dup {
			return nil, &CompileError{Field: field + ".position", Message: fmt.Sprintf("position %d already used by %s", pos, other), Pos: iter.Value().Pos()}
		}
		positions[pos] = key
		prob, err := requiredInt(iter.Value(), field, "probability")
		if err != nil {
			return nil, err
		}
		if prob < 0 || prob > 100 {
			return nil, &CompileError{Field: field + ".probability", Message: fmt.Sprintf("probability %d out of range 0..100", prob), Pos: iter.Value().Pos()}
		}

		st := model.PipelineStage{Key: key, Name: name, Position: pos, Probability: prob}
		if cv := iter.Value().LookupPath(cue.ParsePath("closes")); cv.Exists() {
			raw, err := cv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			closes, perr := model.ParseDealStatus(raw)
			if perr != nil || closes == model.DealOpen {
				return nil, &CompileError{Field: field + ".closes", Message: "closes must be \"won\" or \"lost\"", Pos: cv.Pos()}
			}
			st.Closes = closes
		} else {
			openStages++
		}
		stages = append(stages, st)
	}

	if openStages == 0 {
		return nil, &CompileError{Field: "pipeline_stage", Message: "at least one open (non-closing) stage is required", Pos: stagesVal.Pos()}
	}

	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Position < stages[j].Position })
	return stages, nil
}

func compileBands(v cue.Value) (model.Bands, error) {
	tv := v.LookupPath(cue.ParsePath("temperature"))
	if !tv.Exists() {
		return model.Bands{HotMin: 75, WarmMin: 50}, nil
	}
	hot, err := requiredInt(tv, "temperature", "hot_min")
	if err != nil {
		return model.Bands{}, err
	}
	warm, err := requiredInt(tv, "temperature", "warm_min")
	if err != nil {
		return model.Bands{}, err
	}
	b := model.Bands{HotMin: model.Score(hot), WarmMin: model.Score(warm)}
	if err := b.Validate(); err != nil {
		return model.Bands{}, &CompileError{Field: "temperature", Message: err.Error(), Pos: tv.Pos()}
	}
	return b, nil
}

func requiredString(v cue.Value, field, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if s == "" {
		return "", &CompileError{Field: field + "." + name, Message: name + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

func requiredInt(v cue.Value, field, name string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return 0, &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}
