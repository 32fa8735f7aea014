package mo

// Интервальные комбинаторы. Пустой (nil) конец интервала: бесконечность,
// и для атрибутов записи (IS NULL), и для переданных значений.
//
// Каждая ветка: OR-поддерево «граница выполняется ИЛИ граница не задана».
// Ветки объединяются по AND; если сам узел в режиме OR, ветки заворачиваются
// во вложенный AND, чтобы не смешаться с соседними условиями.

// Overlap: отрезок записи [startAttr, endAttr] пересекается с [start, end] (концы включены)
func (m *MO) Overlap(startAttr, endAttr string, start, end any) *MO {
	return m.period(startAttr, endAttr, start, end, OpLessEqual, OpGreaterEqual)
}

// PeriodIntersects работает как Overlap, но конец периода не включается: [start, end)
func (m *MO) PeriodIntersects(startAttr, endAttr string, start, end any) *MO {
	return m.period(startAttr, endAttr, start, end, OpLess, OpGreater)
}

// PeriodContains: точка point попадает в период записи [startAttr, endAttr]
func (m *MO) PeriodContains(startAttr, endAttr string, point any) *MO {
	if point == nil {
		m.setErr(ErrNilOperand)
		return m
	}
	return m.period(startAttr, endAttr, point, point, OpLessEqual, OpGreaterEqual)
}

func (m *MO) period(startAttr, endAttr string, start, end any, startOp, endOp Op) *MO {
	if startAttr == "" || endAttr == "" {
		m.setErr(ErrEmptyAttribute)
		return m
	}
	group := New()
	if end != nil {
		group.Sub(New().AppendMode(Or).
			add(Condition{Attr: startAttr, Op: startOp, Value: end}).
			IsNull(startAttr))
	}
	if start != nil {
		group.Sub(New().AppendMode(Or).
			add(Condition{Attr: endAttr, Op: endOp, Value: start}).
			IsNull(endAttr))
	}
	if m.mode == Or {
		return m.Sub(group)
	}
	m.subs = append(m.subs, group.subs...)
	return m
}
