package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the target type of a column coercion.
type Kind string

const (
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
	KindString Kind = "string"
)

// Coercion converts one column to a kind.
type Coercion struct {
	Column string
	To     Kind
}

// Coerce converts every cell of a column in place. Nil cells stay nil, so a
// column that already holds the target type is left untouched.
func (t *Table) Coerce(column string, to Kind) error {
	idx, err := t.Index(column)
	if err != nil {
		return err
	}
	for i, row := range t.Rows {
		if row[idx] == nil {
			continue
		}
		var v any
		switch to {
		case KindFloat:
			v, err = toFloat(row[idx])
		case KindInt:
			v, err = toInt(row[idx])
		case KindString:
			v = toString(row[idx])
		default:
			return fmt.Errorf("unknown coercion %q", to)
		}
		if err != nil {
			return fmt.Errorf("coerce %q row %d to %s: %w", column, i, to, err)
		}
		row[idx] = v
	}
	return nil
}

// Apply runs a list of coercions in order.
func (t *Table) Apply(coercions []Coercion) error {
	for _, c := range coercions {
		if err := t.Coerce(c.Column, c.To); err != nil {
			return err
		}
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	case fmt.Stringer:
		// decimal types from warehouse drivers
		return strconv.ParseFloat(strings.TrimSpace(x.String()), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case []byte, string:
		s := toString(x)
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("cannot convert %v to int", f)
	}
	return int64(f), nil
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
