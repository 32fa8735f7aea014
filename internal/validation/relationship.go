package validation

import (
	"fmt"

	"graphguard/internal/dsl"
	"graphguard/internal/vo"
)

// validateRelationship — ветка по варианту связи:
//
//	weak_association               ничего не проверяем
//	composition, composition_tree  рекурсивная проверка дочерних сущностей
//	association, many_to_many      ссылка на сохранённую запись (или новую из этого графа), дубликаты в коллекции, unique
//	parent_association             как association, но только одиночное значение
//	inner_association              id может отсутствовать; если есть, запись должна существовать
func (v *Validator) validateRelationship(w *walk, schema *dsl.Entity, f *dsl.Field, val any, path string) error {
	fqn := schema.FQN()
	if !f.Variant.Valid() {
		return critical(ErrUnsupportedKind, fqn, path, "relationship variant %q", f.Variant)
	}
	if f.Variant == dsl.ParentAssociation && f.Container != dsl.Single {
		return critical(ErrValueMismatch, fqn, path, "parent_association must reference a single entity")
	}
	target, ok := v.reg.Lookup(f.Target)
	if !ok {
		return critical(ErrUnknownEntity, fqn, path, "relationship target %q", f.RefTarget)
	}
	if f.Variant == dsl.WeakAssociation {
		return nil
	}

	elems, keys, err := relationElems(f, val)
	if err != nil {
		return critical(ErrValueMismatch, fqn, path, "%v", err)
	}
	single := f.Container == dsl.Single
	if !single {
		if ok, err := v.checkSize(w, schema, f, len(elems), path); err != nil || !ok {
			return err
		}
	}

	elemPath := func(i int) string {
		if single {
			return path
		}
		return IndexPath(path, keys[i])
	}

	if f.Variant.IsComposition() {
		for i, el := range elems {
			p := elemPath(i)
			if el == nil {
				if !single && w.forced.has(p) {
					w.fail(ErrRequired, fqn, p, v.caption(w, p))
				}
				continue
			}
			if err := v.validateEntity(w, target, el, p); err != nil {
				return err
			}
		}
		return nil
	}

	before := len(w.failures)
	persisted := make([]bool, len(elems))
	for i, el := range elems {
		p := elemPath(i)
		if el == nil {
			if !single && w.forced.has(p) {
				w.fail(ErrRequired, fqn, p, v.caption(w, p))
			}
			continue
		}
		var err error
		if f.Variant == dsl.InnerAssociation {
			persisted[i], err = v.checkInner(w, schema, target, el, p)
		} else {
			persisted[i], err = v.checkAssociated(w, schema, target, el, p)
		}
		if err != nil {
			return err
		}
	}

	if !single {
		v.checkDuplicates(w, fqn, elems, path)
	}
	if !f.Unique || len(w.failures) > before {
		return nil
	}
	for i, el := range elems {
		if el == nil || !persisted[i] {
			continue
		}
		if err := v.checkUnique(w, schema, elemPath(i), el.ID); err != nil {
			return err
		}
	}
	return nil
}

// relationElems раскладывает значение связи по элементам; ключи: индексы или ключи map
func relationElems(f *dsl.Field, val any) ([]*vo.Entity, []any, error) {
	switch f.Container {
	case dsl.List:
		list, ok := val.([]*vo.Entity)
		if !ok {
			return nil, nil, fmt.Errorf("list relationship value of type %T", val)
		}
		keys := make([]any, len(list))
		for i := range list {
			keys[i] = i
		}
		return list, keys, nil
	case dsl.Map:
		m, ok := val.(map[string]*vo.Entity)
		if !ok {
			return nil, nil, fmt.Errorf("map relationship value of type %T", val)
		}
		elems := make([]*vo.Entity, 0, len(m))
		keys := make([]any, 0, len(m))
		for _, k := range sortedKeys(m) {
			elems = append(elems, m[k])
			keys = append(keys, k)
		}
		return elems, keys, nil
	default:
		e, ok := val.(*vo.Entity)
		if !ok {
			return nil, nil, fmt.Errorf("relationship value of type %T", val)
		}
		return []*vo.Entity{e}, []any{nil}, nil
	}
}

func (v *Validator) checkElemType(schema, target *dsl.Entity, el *vo.Entity, path string) error {
	if el.Type == "" {
		return nil
	}
	if actual, ok := v.reg.Lookup(el.Type); !ok || actual.FQN() != target.FQN() {
		return critical(ErrValueMismatch, schema.FQN(), path, "reference to %q where %s expected", el.Type, target.FQN())
	}
	return nil
}

// checkAssociated — ссылка должна указывать на сохранённую запись или на новую сущность этого графа.
// true — ссылка на запись в хранилище (имеет смысл проверять unique).
func (v *Validator) checkAssociated(w *walk, schema, target *dsl.Entity, el *vo.Entity, path string) (bool, error) {
	if err := v.checkElemType(schema, target, el, path); err != nil {
		return false, err
	}
	if w.isNew(el) {
		return false, nil
	}
	if !el.HasID() {
		w.fail(ErrRefNotPersisted, schema.FQN(), path, v.caption(w, path), target.Label())
		return false, nil
	}
	return v.checkExists(w, schema, target, el, path)
}

// checkInner — inner_association: без id дочерняя запись сохраняется вместе с владельцем
func (v *Validator) checkInner(w *walk, schema, target *dsl.Entity, el *vo.Entity, path string) (bool, error) {
	if err := v.checkElemType(schema, target, el, path); err != nil {
		return false, err
	}
	if !el.HasID() || w.isNew(el) {
		return false, nil
	}
	return v.checkExists(w, schema, target, el, path)
}

// checkDuplicates — один и тот же элемент дважды в коллекции: по id, а для новых по указателю.
// Одна ошибка на каждый повторяющийся элемент, путь: сам атрибут.
func (v *Validator) checkDuplicates(w *walk, fqn string, elems []*vo.Entity, path string) {
	seenID := map[string]int{}
	seenPtr := map[*vo.Entity]int{}
	for _, el := range elems {
		if el == nil {
			continue
		}
		if el.HasID() {
			seenID[el.ID]++
			if seenID[el.ID] == 2 {
				w.fail(ErrDuplicateRelation, fqn, path, v.caption(w, path), el.ID)
			}
			continue
		}
		seenPtr[el]++
		if seenPtr[el] == 2 {
			w.fail(ErrDuplicateRelation, fqn, path, v.caption(w, path), "new")
		}
	}
}
