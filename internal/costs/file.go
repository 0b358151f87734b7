package costs

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/salesmachine/internal/model"
)

// Selection is the on-disk form of a cost selection.
type Selection struct {
	Proposal string           `yaml:"proposal,omitempty"`
	Items    []model.CostItem `yaml:"items"`
}

// LoadSelection reads a YAML selection file. Unknown fields are rejected.
func LoadSelection(path string) (*Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	return ParseSelection(data)
}

// ParseSelection decodes and validates a YAML selection.
func ParseSelection(data []byte) (*Selection, error) {
	var sel Selection
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sel); err != nil {
		return nil, fmt.Errorf("parse selection: %w", err)
	}

	seen := make(map[string]bool, len(sel.Items))
	for i, it := range sel.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("items[%d]: id is required", i)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("items[%d]: duplicate id %q", i, it.ID)
		}
		seen[it.ID] = true
		if !it.Category.IsValid() {
			return nil, fmt.Errorf("items[%d]: %w", i, &model.EnumError{Type: "cost category", Value: string(it.Category)})
		}
	}
	if sel.Items == nil {
		sel.Items = []model.CostItem{}
	}
	return &sel, nil
}

// SaveSelection writes a selection as YAML.
func SaveSelection(path string, sel *Selection) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(sel); err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write selection: %w", err)
	}
	return nil
}

// FilePersister saves every persisted selection to a YAML file.
type FilePersister struct {
	Path     string
	Proposal string
}

// Persist implements Persister.
func (p FilePersister) Persist(_ context.Context, items []model.CostItem) error {
	return SaveSelection(p.Path, &Selection{Proposal: p.Proposal, Items: items})
}
