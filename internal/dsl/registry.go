package dsl

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Registry — материализованная таблица схем: FQN → Entity.
// Создаётся один раз после загрузки DSL, дальше только читается.
type Registry struct {
	entities map[string]*Entity
}

// NewRegistry строит реестр и резолвит цели связей и used_by в FQN.
// Неразрешимые цели остаются пустыми: их ловит Lint, а валидатор считает критической ошибкой.
func NewRegistry(entities map[string]*Entity) *Registry {
	r := &Registry{entities: make(map[string]*Entity, len(entities))}
	for fqn, e := range entities {
		r.entities[fqn] = e
	}
	for _, e := range r.entities {
		for i := range e.Fields {
			f := &e.Fields[i]
			if f.RefTarget == "" {
				continue
			}
			if t, ok := r.resolveFrom(e.Module, f.RefTarget); ok {
				f.Target = t
			}
		}
		for i := range e.Constraints.UsedBy {
			ub := &e.Constraints.UsedBy[i]
			if t, ok := r.resolveFrom(e.Module, ub.Entity); ok {
				ub.Target = t
			}
		}
	}
	return r
}

// Lookup — по FQN или по уникальному короткому имени
func (r *Registry) Lookup(name string) (*Entity, bool) {
	if e, ok := r.entities[name]; ok {
		return e, true
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		fqn, ok := r.NormalizeEntityName(name[:i], name[i+1:])
		if !ok {
			return nil, false
		}
		return r.entities[fqn], true
	}
	fqn, ok := r.NormalizeEntityName("", name)
	if !ok {
		return nil, false
	}
	return r.entities[fqn], true
}

// FQNs — отсортированный список всех сущностей
func (r *Registry) FQNs() []string {
	out := make([]string, 0, len(r.entities))
	for k := range r.entities {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len — количество сущностей
func (r *Registry) Len() int { return len(r.entities) }

// цель без модуля сначала ищем в модуле объявления, потом по уникальному имени
func (r *Registry) resolveFrom(module, target string) (string, bool) {
	target = strings.TrimSpace(target)
	if strings.Contains(target, ".") {
		i := strings.IndexByte(target, '.')
		return r.NormalizeEntityName(target[:i], target[i+1:])
	}
	if fqn, ok := r.NormalizeEntityName(module, target); ok {
		return fqn, true
	}
	return r.NormalizeEntityName("", target)
}

// NormalizeEntityName возвращает FQN ("module.name") по паре {module, entity}.
// Если module пустой, пытается найти уникальную сущность с таким именем среди всех модулей.
func (r *Registry) NormalizeEntityName(module, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	ml := strings.ToLower(strings.TrimSpace(module))
	nl := strings.ToLower(strings.TrimSpace(name))

	// 1) есть модуль: ищем точное/регистронезависимое совпадение FQN
	if ml != "" {
		if _, ok := r.entities[module+"."+name]; ok {
			return module + "." + name, true
		}
		for fqn := range r.entities {
			fm, fn := SplitFQN(fqn)
			if strings.ToLower(fm) == ml && strings.ToLower(fn) == nl {
				return fqn, true
			}
		}
		return "", false
	}

	// 2) модуля нет: ищем ИМЕННО ОДНО уникальное имя среди всех
	var found string
	for fqn := range r.entities {
		_, fn := SplitFQN(fqn)
		if strings.ToLower(fn) == nl {
			if found != "" { // неуникально
				return "", false
			}
			found = fqn
		}
	}
	return found, found != ""
}

// SplitFQN("module.entity") -> ("module","entity")
func SplitFQN(fqn string) (string, string) {
	i := strings.IndexByte(fqn, '.')
	if i <= 0 || i >= len(fqn)-1 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}

// ParseRegistry — разбор DSL из одного источника сразу в реестр
func ParseRegistry(src io.Reader) (*Registry, error) {
	ents, err := ParseEntities(src)
	if err != nil {
		return nil, err
	}
	m := make(map[string]*Entity, len(ents))
	for _, e := range ents {
		if e.Module == "" {
			return nil, fmt.Errorf("entity %q has no module", e.Name)
		}
		if _, dup := m[e.FQN()]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e.FQN())
		}
		m[e.FQN()] = e
	}
	return NewRegistry(m), nil
}
