package validation

import (
	"fmt"
	"regexp"
	"strings"

	"graphguard/internal/dsl"
)

var indexRe = regexp.MustCompile(`\[[^\]]*\]`)

// JoinPath: "parent" + "attr" -> "parent.attr"
func JoinPath(base, attr string) string {
	if base == "" {
		return attr
	}
	return base + "." + attr
}

// IndexPath: "items" + 2 -> "items[2]"; ключ словаря, "items[key]"
func IndexPath(base string, key any) string {
	return fmt.Sprintf("%s[%v]", base, key)
}

// CleanPath убирает индексы и ключи: "lines[0].tags[x]" -> "lines.tags"
func CleanPath(path string) string {
	return indexRe.ReplaceAllString(path, "")
}

// есть конкретный индекс (не [*] и не [])
func hasConcreteIndex(path string) bool {
	for _, m := range indexRe.FindAllString(path, -1) {
		if m != "[*]" && m != "[]" {
			return true
		}
	}
	return false
}

// forcedSet — пути, обязательные в этом вызове.
// Путь с конкретным индексом действует только на свой элемент,
// путь без индексов (или с [*]): на все элементы коллекций.
type forcedSet struct {
	exact map[string]struct{}
	clean map[string]struct{}
}

func newForcedSet(paths []string) forcedSet {
	fs := forcedSet{exact: map[string]struct{}{}, clean: map[string]struct{}{}}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if hasConcreteIndex(p) {
			fs.exact[p] = struct{}{}
			continue
		}
		fs.clean[CleanPath(p)] = struct{}{}
	}
	return fs
}

func (fs forcedSet) has(path string) bool {
	if _, ok := fs.exact[path]; ok {
		return true
	}
	_, ok := fs.clean[CleanPath(path)]
	return ok
}

// CaptionPath — цепочка подписей атрибутов по пути от сущности schema:
// "lines[0].qty" -> "Lines / Qty"
func CaptionPath(reg *dsl.Registry, schema *dsl.Entity, path string) string {
	clean := CleanPath(path)
	if clean == "" {
		if schema != nil {
			return schema.Label()
		}
		return ""
	}
	segs := strings.Split(clean, ".")
	labels := make([]string, 0, len(segs))
	cur := schema
	for _, seg := range segs {
		if cur == nil {
			labels = append(labels, seg)
			continue
		}
		f, ok := cur.Field(seg)
		if !ok {
			labels = append(labels, seg)
			cur = nil
			continue
		}
		labels = append(labels, f.Label())
		cur = nil
		if f.IsRelationship() && reg != nil {
			if t, ok := reg.Lookup(f.Target); ok {
				cur = t
			}
		}
	}
	return strings.Join(labels, " / ")
}
