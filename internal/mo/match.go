package mo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrIncomparable: значения разных видов нельзя упорядочить
var ErrIncomparable = errors.New("values are not comparable")

// Record: запись, над которой вычисляется фильтр.
// Lookup возвращает все значения по пути «a.b.c»: путь через списки и словари
// даёт несколько значений, отсутствующее значение: пустой срез.
// Ссылки на сущности отдаются их идентификаторами.
type Record interface {
	Lookup(path string) []any
}

// Match вычисляет дерево условий над записью.
// Сравнения по пути с несколькими значениями экзистенциальные (хотя бы одно подходит);
// отрицания (!=, not_in, is_not_null) инвертируют соответствующее положительное условие.
func (m *MO) Match(r Record) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.mode == Or {
		if len(m.conds) == 0 && len(m.subs) == 0 {
			return true, nil
		}
		for _, c := range m.conds {
			ok, err := c.match(r)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		for _, s := range m.subs {
			ok, err := s.Match(r)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	for _, c := range m.conds {
		ok, err := c.match(r)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, s := range m.subs {
		ok, err := s.Match(r)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c Condition) match(r Record) (bool, error) {
	vals := nonNil(r.Lookup(c.Attr))
	switch c.Op {
	case OpIsNull:
		return len(vals) == 0, nil
	case OpIsNotNull:
		return len(vals) > 0, nil
	case OpEqual:
		return anyOf(vals, func(v any) (bool, error) { return Equal(v, c.Value), nil })
	case OpNotEqual:
		ok, err := anyOf(vals, func(v any) (bool, error) { return Equal(v, c.Value), nil })
		return !ok, err
	case OpIn:
		return anyOf(vals, func(v any) (bool, error) { return inSet(v, c.Values), nil })
	case OpNotIn:
		ok, err := anyOf(vals, func(v any) (bool, error) { return inSet(v, c.Values), nil })
		return !ok, err
	case OpLike:
		pattern, ok := c.Value.(string)
		if !ok {
			return false, fmt.Errorf("like %s: pattern must be string", c.Attr)
		}
		re, err := likeRegexp(pattern)
		if err != nil {
			return false, err
		}
		return anyOf(vals, func(v any) (bool, error) {
			s, ok := v.(string)
			return ok && re.MatchString(s), nil
		})
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		if c.Value == nil {
			// сравнение с NULL неизвестно, как в SQL
			return false, nil
		}
		return anyOf(vals, func(v any) (bool, error) {
			cmp, err := Compare(v, c.Value)
			if err != nil {
				return false, fmt.Errorf("%s %s: %w", c.Attr, c.Op, err)
			}
			switch c.Op {
			case OpGreater:
				return cmp > 0, nil
			case OpGreaterEqual:
				return cmp >= 0, nil
			case OpLess:
				return cmp < 0, nil
			default:
				return cmp <= 0, nil
			}
		})
	}
	return false, fmt.Errorf("unknown operator %q", c.Op)
}

func nonNil(vals []any) []any {
	out := vals[:0:0]
	for _, v := range vals {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func anyOf(vals []any, pred func(any) (bool, error)) (bool, error) {
	for _, v := range vals {
		ok, err := pred(v)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func inSet(v any, set []any) bool {
	for _, s := range set {
		if Equal(v, s) {
			return true
		}
	}
	return false
}

func likeRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Equal: равенство значений с приведением чисел; nil ничему не равен
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	cmp, err := Compare(a, b)
	return err == nil && cmp == 0
}

// Compare упорядочивает два значения одного вида: -1, 0, 1.
// Числа всех типов сравниваются точно через decimal, время: по моменту.
func Compare(a, b any) (int, error) {
	if da, ok := asDecimal(a); ok {
		if db, ok := asDecimal(b); ok {
			return da.Cmp(db), nil
		}
		return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !x:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
	}
	return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, false
		}
		return *t, true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	}
	return decimal.Zero, false
}
