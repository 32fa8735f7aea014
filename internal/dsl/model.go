package dsl

import "strings"

// Kind — вид атрибута, по нему движок выбирает стратегию проверки
type Kind string

const (
	KindString       Kind = "string"
	KindInt          Kind = "int"
	KindLong         Kind = "long"
	KindDecimal      Kind = "decimal"
	KindDouble       Kind = "double"
	KindFloat        Kind = "float"
	KindBoolean      Kind = "boolean"
	KindDate         Kind = "date"
	KindBytes        Kind = "bytes"
	KindEnum         Kind = "enum"
	KindRelationship Kind = "relationship"
	KindCollection   Kind = "collection"
	KindGeneric      Kind = "generic"
)

// Variant — вариант связи (замкнутое множество)
type Variant string

const (
	Association       Variant = "association"
	WeakAssociation   Variant = "weak_association"
	Composition       Variant = "composition"
	CompositionTree   Variant = "composition_tree"
	ParentAssociation Variant = "parent_association"
	InnerAssociation  Variant = "inner_association"
	ManyToMany        Variant = "many_to_many"
)

// IsComposition — дочерние объекты валидируются рекурсивно
func (v Variant) IsComposition() bool {
	return v == Composition || v == CompositionTree
}

// Valid проверяет, что вариант из известного набора
func (v Variant) Valid() bool {
	switch v {
	case Association, WeakAssociation, Composition, CompositionTree,
		ParentAssociation, InnerAssociation, ManyToMany:
		return true
	}
	return false
}

// Container — форма значения: одиночное, список или map по ключу
type Container string

const (
	Single Container = "single"
	List   Container = "list"
	Map    Container = "map"
)

// Entity описывает структуру сущности из DSL
type Entity struct {
	Module      string
	Name        string
	Caption     string
	Fields      []Field
	Constraints Constraints
}

// FQN — "<module>.<name>"
func (e *Entity) FQN() string {
	return e.Module + "." + e.Name
}

// Label — подпись для сообщений; если caption не задан: имя сущности
func (e *Entity) Label() string {
	if e.Caption != "" {
		return e.Caption
	}
	return e.Name
}

// Field ищет атрибут по имени
func (e *Entity) Field(name string) (*Field, bool) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// Constraints — ограничения уровня сущности (между несколькими атрибутами)
type Constraints struct {
	Unique    [][]string
	Relations []Relation
	UsedBy    []UsedBy
}

// RelationOp — оператор сравнения двух атрибутов одной сущности
type RelationOp string

const (
	OpEqual        RelationOp = "=="
	OpNotEqual     RelationOp = "!="
	OpLess         RelationOp = "<"
	OpLessEqual    RelationOp = "<="
	OpGreater      RelationOp = ">"
	OpGreaterEqual RelationOp = ">="
)

// Relation — relation(left op right)
type Relation struct {
	Left  string
	Op    RelationOp
	Right string
}

// UsedBy — used_by(Entity.field): на запись ссылается атрибут другой сущности,
// удаление запрещено, пока такие ссылки есть
type UsedBy struct {
	Entity string // как объявлено
	Field  string
	Target string // FQN после резолва реестром
}

// Field описывает поле сущности
type Field struct {
	Name        string
	Caption     string
	Type        string // тип как в DSL: string, int, date, enum[...], ref[...], array[...] и т.д.
	Kind        Kind
	ElemKind    Kind              // для collection: вид элемента
	Enum        []string          // значения enum, если поле типа enum
	EnumCatalog string            // имя справочника из reference/enums
	RefTarget   string            // цель связи как объявлено
	Target      string            // FQN цели после резолва
	Variant     Variant           // для relationship
	Container   Container         // single | list | map
	Required    bool
	Unique      bool
	DependsOn   bool              // ответная декларация для used_by
	Options     map[string]string // сырые опции: min, max, min_length, max_length, scale, pattern, min_size...
}

// Label — подпись атрибута для сообщений
func (f *Field) Label() string {
	if f.Caption != "" {
		return f.Caption
	}
	return f.Name
}

// Bound возвращает сырое значение ограничения (min, max, scale, ...).
// Разбор, на стороне валидатора: кривое значение это ошибка конфигурации.
func (f *Field) Bound(name string) (string, bool) {
	if f.Options == nil {
		return "", false
	}
	v, ok := f.Options[name]
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// IsRelationship — поле-связь на другую сущность
func (f *Field) IsRelationship() bool {
	return f.Kind == KindRelationship
}
