// Package mo описывает модель фильтра запросов: дерево условий, которое валидатор
// отправляет хранилищу (существование, уникальность, зависимости).
package mo

import (
	"errors"
	"fmt"
	"strings"
)

// AppendMode: как условия узла объединяются между собой
type AppendMode string

const (
	And AppendMode = "AND"
	Or  AppendMode = "OR"
)

// Op: вид предиката
type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpIsNull       Op = "is_null"
	OpIsNotNull    Op = "is_not_null"
	OpLike         Op = "like"
	OpIn           Op = "in"
	OpNotIn        Op = "not_in"
)

// Ошибки построения фильтра: ошибки вызывающего кода, а не пустой результат
var (
	ErrEmptyOperandSet = errors.New("in/not_in requires a non-empty operand set")
	ErrEmptyAttribute  = errors.New("attribute name is empty")
	ErrNilOperand      = errors.New("operand must not be nil")
)

// Condition: один типизированный предикат над атрибутом
type Condition struct {
	Attr   string
	Op     Op
	Value  any   // для сравнений и like
	Values []any // для in / not_in
}

// MO: узел дерева условий. Условия и поддеревья узла объединяются по mode.
// Построение цепочкой; первая ошибка вызывающего запоминается в Err (как в gorm).
type MO struct {
	mode  AppendMode
	conds []Condition
	subs  []*MO
	err   error
}

// New: пустой узел в режиме AND (пустой фильтр означает «все записи»)
func New() *MO {
	return &MO{mode: And}
}

// AppendMode переключает режим объединения узла
func (m *MO) AppendMode(mode AppendMode) *MO {
	if mode != And && mode != Or {
		m.setErr(fmt.Errorf("unknown append mode %q", mode))
		return m
	}
	m.mode = mode
	return m
}

// Mode: текущий режим объединения
func (m *MO) Mode() AppendMode { return m.mode }

// Err: первая ошибка построения (nil, если фильтр корректен)
func (m *MO) Err() error { return m.err }

func (m *MO) setErr(err error) {
	if m.err == nil {
		m.err = err
	}
}

func (m *MO) add(c Condition) *MO {
	if strings.TrimSpace(c.Attr) == "" {
		m.setErr(ErrEmptyAttribute)
		return m
	}
	m.conds = append(m.conds, c)
	return m
}

func (m *MO) Equal(attr string, v any) *MO {
	return m.add(Condition{Attr: attr, Op: OpEqual, Value: v})
}

func (m *MO) NotEqual(attr string, v any) *MO {
	return m.add(Condition{Attr: attr, Op: OpNotEqual, Value: v})
}

func (m *MO) GreaterThan(attr string, v any) *MO {
	return m.add(Condition{Attr: attr, Op: OpGreater, Value: v})
}

func (m *MO) GreaterOrEqual(attr string, v any) *MO {
	return m.add(Condition{Attr: attr, Op: OpGreaterEqual, Value: v})
}

func (m *MO) LessThan(attr string, v any) *MO {
	return m.add(Condition{Attr: attr, Op: OpLess, Value: v})
}

func (m *MO) LessOrEqual(attr string, v any) *MO {
	return m.add(Condition{Attr: attr, Op: OpLessEqual, Value: v})
}

func (m *MO) IsNull(attr string) *MO {
	return m.add(Condition{Attr: attr, Op: OpIsNull})
}

func (m *MO) IsNotNull(attr string) *MO {
	return m.add(Condition{Attr: attr, Op: OpIsNotNull})
}

// Like: шаблон в стиле SQL, % любая подстрока, _ один символ
func (m *MO) Like(attr string, pattern string) *MO {
	return m.add(Condition{Attr: attr, Op: OpLike, Value: pattern})
}

// In требует непустой набор значений
func (m *MO) In(attr string, values ...any) *MO {
	if len(values) == 0 {
		m.setErr(fmt.Errorf("%s: %w", attr, ErrEmptyOperandSet))
		return m
	}
	return m.add(Condition{Attr: attr, Op: OpIn, Values: append([]any(nil), values...)})
}

// NotIn требует непустой набор значений
func (m *MO) NotIn(attr string, values ...any) *MO {
	if len(values) == 0 {
		m.setErr(fmt.Errorf("%s: %w", attr, ErrEmptyOperandSet))
		return m
	}
	return m.add(Condition{Attr: attr, Op: OpNotIn, Values: append([]any(nil), values...)})
}

// Sub добавляет поддерево (скобки). Поддерево копируется: его смысл после
// включения в группу уже не меняется, даже если вызывающий продолжит его строить.
func (m *MO) Sub(sub *MO) *MO {
	if sub == nil {
		return m
	}
	if sub.err != nil {
		m.setErr(sub.err)
	}
	m.subs = append(m.subs, sub.Clone())
	return m
}

// Clone: глубокая копия узла
func (m *MO) Clone() *MO {
	c := &MO{mode: m.mode, err: m.err}
	c.conds = make([]Condition, len(m.conds))
	for i, cond := range m.conds {
		cond.Values = append([]any(nil), cond.Values...)
		c.conds[i] = cond
	}
	for _, s := range m.subs {
		c.subs = append(c.subs, s.Clone())
	}
	return c
}

// Conditions: копия предикатов узла
func (m *MO) Conditions() []Condition {
	return append([]Condition(nil), m.conds...)
}

// Subs: поддеревья узла
func (m *MO) Subs() []*MO {
	return append([]*MO(nil), m.subs...)
}

// IsEmpty: ни одного предиката во всём дереве
func (m *MO) IsEmpty() bool {
	if len(m.conds) > 0 {
		return false
	}
	for _, s := range m.subs {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}

// String: читаемая форма для логов
func (m *MO) String() string {
	parts := make([]string, 0, len(m.conds)+len(m.subs))
	for _, c := range m.conds {
		parts = append(parts, c.String())
	}
	for _, s := range m.subs {
		parts = append(parts, "("+s.String()+")")
	}
	if len(parts) == 0 {
		return "TRUE"
	}
	return strings.Join(parts, " "+string(m.mode)+" ")
}

func (c Condition) String() string {
	switch c.Op {
	case OpIsNull:
		return c.Attr + " IS NULL"
	case OpIsNotNull:
		return c.Attr + " IS NOT NULL"
	case OpIn, OpNotIn:
		vals := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			vals = append(vals, fmt.Sprintf("%v", v))
		}
		return fmt.Sprintf("%s %s [%s]", c.Attr, c.Op, strings.Join(vals, ", "))
	default:
		return fmt.Sprintf("%s %s %v", c.Attr, c.Op, c.Value)
	}
}

// Order: порядок сортировки результата
type Order struct {
	Attr string
	Desc bool
}
