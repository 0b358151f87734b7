package query

// Predicate is a filter condition. Only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Equals matches rows where Field = Value.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// AtLeast matches rows where Field >= Value.
type AtLeast struct {
	Field string
	Value any
}

func (AtLeast) predicateNode() {}

// In matches rows where Field is one of Values. An empty In matches nothing.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// And matches rows satisfying every predicate. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Order is one sort key.
type Order struct {
	Field string
	Desc  bool
}

// Select reads Columns from From.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
	OrderBy []Order
	// Key is the unique tiebreaker column. Defaults to "id".
	Key    string
	Limit  int
	Offset int
}

// Where builds an And from the non-nil predicates, or returns nil when none
// remain.
func Where(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}
