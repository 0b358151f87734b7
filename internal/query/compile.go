package query

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// Compile converts a Select into SQL and its parameters.
func Compile(q Select) (string, []any, error) {
	if err := checkIdent(q.From); err != nil {
		return "", nil, fmt.Errorf("from: %w", err)
	}
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("select %s: columns are required", q.From)
	}
	for _, col := range q.Columns {
		if err := checkIdent(col); err != nil {
			return "", nil, fmt.Errorf("column: %w", err)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.From)

	var params []any
	if q.Filter != nil {
		where, p, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = p
	}

	order, err := orderClause(q)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(order)

	if q.Limit < 0 || q.Offset < 0 {
		return "", nil, fmt.Errorf("limit and offset must not be negative")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
		if q.Offset > 0 {
			b.WriteString(" OFFSET ?")
			params = append(params, q.Offset)
		}
	} else if q.Offset > 0 {
		b.WriteString(" LIMIT -1 OFFSET ?")
		params = append(params, q.Offset)
	}

	return b.String(), params, nil
}

// orderClause always ends with the key column so ties are broken the same way
// on every run.
func orderClause(q Select) (string, error) {
	key := q.Key
	if key == "" {
		key = "id"
	}
	if err := checkIdent(key); err != nil {
		return "", fmt.Errorf("key: %w", err)
	}

	parts := make([]string, 0, len(q.OrderBy)+1)
	for _, o := range q.OrderBy {
		if err := checkIdent(o.Field); err != nil {
			return "", fmt.Errorf("order: %w", err)
		}
		if o.Field == key {
			continue
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, o.Field+" "+dir)
	}
	parts = append(parts, key+" COLLATE BINARY ASC")
	return strings.Join(parts, ", "), nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		return compareOp(pred.Field, "=", pred.Value)
	case *Equals:
		return compareOp(pred.Field, "=", pred.Value)
	case AtLeast:
		return compareOp(pred.Field, ">=", pred.Value)
	case *AtLeast:
		return compareOp(pred.Field, ">=", pred.Value)
	case In:
		return compileIn(pred)
	case *In:
		return compileIn(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compareOp(field, op string, value any) (string, []any, error) {
	if err := checkIdent(field); err != nil {
		return "", nil, err
	}
	param, err := toParam(value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", field, err)
	}
	return fmt.Sprintf("%s %s ?", field, op), []any{param}, nil
}

func compileIn(in In) (string, []any, error) {
	if err := checkIdent(in.Field); err != nil {
		return "", nil, err
	}
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	params := make([]any, 0, len(in.Values))
	for _, v := range in.Values {
		param, err := toParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", in.Field, err)
		}
		params = append(params, param)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return fmt.Sprintf("%s IN (%s)", in.Field, placeholders), params, nil
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, p := range and.Predicates {
		sql, ps, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		if _, nested := p.(And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// toParam reduces named string, integer and bool types to their driver
// representation.
func toParam(v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("nil value (NULL never compares equal)")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), nil
	case reflect.Bool:
		if rv.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case reflect.Float32, reflect.Float64:
		return nil, fmt.Errorf("float values are not allowed")
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}
