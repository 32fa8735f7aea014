package validation

import (
	"cmp"
	"slices"
	"strings"

	"graphguard/internal/dsl"
	"graphguard/internal/mo"
	"graphguard/internal/storage"
	"graphguard/internal/vo"
)

// checkUnique — значение атрибута не встречается у другой записи корневого типа.
// Путь относительно корня, поэтому ищем по корневому типу, а не по типу вложенной сущности.
func (v *Validator) checkUnique(w *walk, schema *dsl.Entity, path string, val any) error {
	if v.finder == nil {
		return nil
	}
	if ref, ok := val.(*vo.Entity); ok {
		val = ref.ID
	}
	filter := w.excludeRoot(mo.New().Equal(CleanPath(path), val))
	ids, err := v.findIDs(w, w.rootSchema.FQN(), filter, 1)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		w.fail(ErrUniqueViolation, schema.FQN(), path, v.caption(w, path))
	}
	return nil
}

// checkUniqueSets — unique(a, b, ...): комбинация значений уникальна.
// Пустое значение ищется как IS NULL. Набор со ссылкой на несохранённую сущность пропускается.
// Во вложенной сущности весь набор сверяется с каждым сохранённым элементом по отдельности:
// условия на разные атрибуты не должны выполняться на разных элементах.
func (v *Validator) checkUniqueSets(w *walk, schema *dsl.Entity, e *vo.Entity, path string) error {
	if v.finder == nil || len(schema.Constraints.Unique) == 0 {
		return nil
	}
	fqn := schema.FQN()
	prefix := CleanPath(path)

sets:
	for _, set := range schema.Constraints.Unique {
		if len(set) == 0 {
			continue
		}
		// root: условия по путям от корня; elem: те же условия над одним элементом
		root, elem := mo.New(), mo.New()
		captions := make([]string, 0, len(set))
		for _, name := range set {
			f, ok := schema.Field(name)
			if !ok {
				return critical(ErrUnknownField, fqn, JoinPath(path, name), "unique(%s)", strings.Join(set, ", "))
			}
			attr := JoinPath(prefix, name)
			captions = append(captions, v.caption(w, JoinPath(path, name)))
			val, _ := e.Get(name)
			if vo.IsEmpty(val) {
				elem.IsNull(name)
				if prefix == "" {
					root.IsNull(attr)
				}
				continue
			}
			if f.IsRelationship() {
				ref, ok := val.(*vo.Entity)
				if !ok {
					return critical(ErrUnsupportedKind, fqn, JoinPath(path, name), "unique(%s) over %s relationship", strings.Join(set, ", "), f.Container)
				}
				if !ref.HasID() || w.isNew(ref) {
					continue sets
				}
				val = ref.ID
			}
			elem.Equal(name, val)
			root.Equal(attr, val)
		}

		var (
			taken bool
			err   error
		)
		if prefix == "" {
			var ids []string
			ids, err = v.findIDs(w, w.rootSchema.FQN(), w.excludeRoot(root), 1)
			taken = len(ids) > 0
		} else {
			taken, err = v.nestedSetTaken(w, w.excludeRoot(root), elem, prefix)
		}
		if err != nil {
			return err
		}
		if taken {
			w.fail(ErrUniqueViolation, fqn, JoinPath(path, set[0]), strings.Join(captions, ", "))
		}
	}
	return nil
}

// nestedSetTaken: root отбирает кандидатов среди корневых записей (IS NULL туда не входит,
// его нельзя проверить по всем элементам сразу), elem проверяется на каждом элементе по пути prefix
func (v *Validator) nestedSetTaken(w *walk, root, elem *mo.MO, prefix string) (bool, error) {
	typ := w.rootSchema.FQN()
	if v.obs != nil {
		v.obs.ObserveLookup("FindList")
	}
	list, err := v.finder.FindList(w.ctx, typ, root, nil, nil, 0, 0)
	if err != nil {
		return false, storageErr(err, typ, prefix, "FindList")
	}
	segs := strings.Split(prefix, ".")
	for _, rec := range list {
		for _, el := range entitiesAt(rec, segs) {
			ok, err := storage.Match(elem, el)
			if err != nil {
				return false, critical(ErrValueMismatch, typ, prefix, "%v", err)
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// entitiesAt — вложенные сущности записи по пути без индексов
func entitiesAt(e *vo.Entity, segs []string) []*vo.Entity {
	if e == nil {
		return nil
	}
	if len(segs) == 0 {
		return []*vo.Entity{e}
	}
	val, _ := e.Get(segs[0])
	var out []*vo.Entity
	switch t := val.(type) {
	case *vo.Entity:
		out = entitiesAt(t, segs[1:])
	case []*vo.Entity:
		for _, el := range t {
			out = append(out, entitiesAt(el, segs[1:])...)
		}
	case map[string]*vo.Entity:
		for _, k := range sortedKeys(t) {
			out = append(out, entitiesAt(t[k], segs[1:])...)
		}
	}
	return out
}

// checkUsedBy — на удаляемую запись не должны ссылаться зависимые сущности.
// Декларации проверяются до обращения к хранилищу, даже без finder.
func (v *Validator) checkUsedBy(w *walk, schema *dsl.Entity, id string) error {
	fqn := schema.FQN()
	for _, ub := range schema.Constraints.UsedBy {
		if err := v.reg.CheckUsedBy(schema, ub); err != nil {
			return critical(ErrMissingDependsOn, fqn, "", "%v", err)
		}
	}
	if v.finder == nil {
		return nil
	}
	for _, ub := range schema.Constraints.UsedBy {
		ids, err := v.findIDs(w, ub.Target, mo.New().Equal(ub.Field, id), usedByLimit)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		dep := ub.Target
		if d, ok := v.reg.Lookup(ub.Target); ok {
			dep = d.Label()
		}
		w.fail(ErrUsedBy, fqn, "", schema.Label(), dep, ub.Field, ids)
	}
	return nil
}

// сколько зависимых id показывать в сообщении used_by
const usedByLimit = 5

// checkExists — запись, на которую ссылаются, есть в хранилище. Без finder считаем, что есть.
func (v *Validator) checkExists(w *walk, schema, target *dsl.Entity, el *vo.Entity, path string) (bool, error) {
	if v.finder == nil {
		return true, nil
	}
	if v.obs != nil {
		v.obs.ObserveLookup("FindByID")
	}
	found, err := v.finder.FindByID(w.ctx, target.FQN(), el.ID, []string{})
	if err != nil {
		return false, storageErr(err, schema.FQN(), path, "FindByID")
	}
	if found == nil {
		w.fail(ErrRefNotFound, schema.FQN(), path, v.caption(w, path), target.Label(), el.ID)
		return false, nil
	}
	return true, nil
}

func (v *Validator) findIDs(w *walk, typ string, filter *mo.MO, limit int) ([]string, error) {
	if v.obs != nil {
		v.obs.ObserveLookup("FindIDs")
	}
	ids, err := v.finder.FindIDs(w.ctx, typ, filter, nil, 0, limit)
	if err != nil {
		return nil, storageErr(err, typ, "", "FindIDs")
	}
	return ids, nil
}

// sortedKeys — обход map в детерминированном порядке
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
