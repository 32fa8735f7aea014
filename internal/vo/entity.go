// Package vo — экземпляры сущностей (value objects), которые проверяет валидатор.
package vo

import "sort"

// Entity — экземпляр сущности прикладного типа.
// ID пустой, пока запись не сохранена. InsertWithID включает миграционный режим:
// непустой ID при вставке не означает «уже в хранилище».
//
// Значения атрибутов: string, int64, decimal.Decimal, float64, bool, time.Time, []byte,
// []any / map[string]any для collection, *Entity / []*Entity / map[string]*Entity для связей.
type Entity struct {
	Type         string
	ID           string
	InsertWithID bool
	Values       map[string]any
}

// New создаёт пустую сущность типа typ (FQN)
func New(typ string) *Entity {
	return &Entity{Type: typ, Values: map[string]any{}}
}

// Ref — ссылка на сохранённую запись (только тип и id)
func Ref(typ, id string) *Entity {
	return &Entity{Type: typ, ID: id, Values: map[string]any{}}
}

// WithID задаёт идентификатор
func (e *Entity) WithID(id string) *Entity {
	e.ID = id
	return e
}

// With задаёт атрибут и возвращает ту же сущность
func (e *Entity) With(name string, v any) *Entity {
	e.Set(name, v)
	return e
}

// Set задаёт значение атрибута
func (e *Entity) Set(name string, v any) {
	if e.Values == nil {
		e.Values = map[string]any{}
	}
	e.Values[name] = v
}

// Get возвращает значение атрибута; ok=false: атрибут не задан
func (e *Entity) Get(name string) (any, bool) {
	if e == nil || e.Values == nil {
		return nil, false
	}
	v, ok := e.Values[name]
	return v, ok
}

// HasID — у записи есть идентификатор
func (e *Entity) HasID() bool {
	return e != nil && e.ID != ""
}

// Names — имена заданных атрибутов по алфавиту
func (e *Entity) Names() []string {
	out := make([]string, 0, len(e.Values))
	for k := range e.Values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsEmpty — значение считается отсутствующим: nil, "", пустой список/map, nil-ссылка
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case *Entity:
		return t == nil
	case []*Entity:
		return len(t) == 0
	case map[string]*Entity:
		return len(t) == 0
	}
	return false
}
