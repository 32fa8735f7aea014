package storage

import (
	"fmt"
	"sort"
	"strings"

	"graphguard/internal/mo"
	"graphguard/internal/vo"
)

// Row: сущность как запись для вычисления фильтра
type Row struct {
	Entity *vo.Entity
}

// Lookup проходит путь «a.b.c» по значениям сущности.
// Списки и словари раскрываются (все элементы), ссылки отдают свой id.
func (r Row) Lookup(path string) []any {
	if r.Entity == nil || path == "" {
		return nil
	}
	return lookup(r.Entity, strings.Split(path, "."))
}

func lookup(e *vo.Entity, segs []string) []any {
	if e == nil {
		return nil
	}
	head, rest := segs[0], segs[1:]
	if head == vo.KeyID && len(rest) == 0 {
		if e.ID == "" {
			return nil
		}
		return []any{e.ID}
	}
	v, ok := e.Get(head)
	if !ok {
		return nil
	}
	return descend(v, rest)
}

func descend(v any, rest []string) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case *vo.Entity:
		if t == nil {
			return nil
		}
		if len(rest) == 0 {
			if t.HasID() {
				return []any{t.ID}
			}
			return nil
		}
		return lookup(t, rest)
	case []*vo.Entity:
		var out []any
		for _, el := range t {
			out = append(out, descend(el, rest)...)
		}
		return out
	case map[string]*vo.Entity:
		var out []any
		for _, el := range t {
			out = append(out, descend(el, rest)...)
		}
		return out
	case []any:
		if len(rest) > 0 {
			return nil
		}
		return t
	case map[string]any:
		if len(rest) > 0 {
			return nil
		}
		out := make([]any, 0, len(t))
		for _, el := range t {
			out = append(out, el)
		}
		return out
	default:
		if len(rest) > 0 {
			return nil
		}
		return []any{v}
	}
}

// Match: фильтр nil или пустой пропускает всё
func Match(filter *mo.MO, e *vo.Entity) (bool, error) {
	if filter == nil {
		return true, nil
	}
	return filter.Match(Row{Entity: e})
}

// Project оставляет только перечисленные атрибуты (по первому сегменту пути).
// Исходная сущность не меняется.
func Project(e *vo.Entity, attributes []string) *vo.Entity {
	if e == nil {
		return nil
	}
	out := &vo.Entity{Type: e.Type, ID: e.ID, Values: make(map[string]any)}
	if attributes == nil {
		for k, v := range e.Values {
			out.Values[k] = v
		}
		return out
	}
	for _, a := range attributes {
		name, _, _ := strings.Cut(a, ".")
		if v, ok := e.Values[name]; ok {
			out.Values[name] = v
		}
	}
	return out
}

// Sort: устойчивая мультисортировка, null всегда в конце (и при desc тоже)
func Sort(list []*vo.Entity, orderBy []mo.Order) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		for _, o := range orderBy {
			if c := cmpByKey(list[i], list[j], o.Attr, o.Desc); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func first(e *vo.Entity, key string) any {
	vals := Row{Entity: e}.Lookup(key)
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func cmpByKey(a, b *vo.Entity, key string, desc bool) int {
	va, vb := first(a, key), first(b, key)
	na, nb := va == nil, vb == nil
	if na && nb {
		return 0
	}
	if na != nb {
		if na {
			return +1
		}
		return -1
	}
	rel, err := mo.Compare(va, vb)
	if err != nil {
		// разнотипные значения: сравним строково
		rel = strings.Compare(fmt.Sprint(va), fmt.Sprint(vb))
	}
	if desc {
		rel = -rel
	}
	return rel
}

// Page: срез [offset, offset+limit); при limit <= 0 до конца
func Page[T any](list []T, offset, limit int) []T {
	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(list) {
		start = len(list)
	}
	end := len(list)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return list[start:end]
}
