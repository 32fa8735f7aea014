package dsl

import (
	"fmt"
	"sort"
)

type SchemaIssue struct {
	Entity  string `json:"entity"` // FQN: module.Entity
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint проверяет противоречия в DSL до того, как они всплывут критическими ошибками валидации.
// knownCatalog может быть nil: тогда ссылки на справочники не проверяются.
func (r *Registry) Lint(knownCatalog func(name string) bool) []SchemaIssue {
	var issues []SchemaIssue
	add := func(entity, field, code, msg string) {
		issues = append(issues, SchemaIssue{Entity: entity, Field: field, Code: code, Message: msg})
	}

	for _, fqn := range r.FQNs() {
		e := r.entities[fqn]
		for i := range e.Fields {
			f := &e.Fields[i]

			if !KnownKind(f.Kind) {
				add(fqn, f.Name, "kind_unknown", fmt.Sprintf("unsupported attribute type %q", f.Type))
				continue
			}
			if f.Kind == KindCollection && !KnownKind(f.ElemKind) {
				add(fqn, f.Name, "kind_unknown", fmt.Sprintf("unsupported element type in %q", f.Type))
			}
			if err := f.CheckBounds(); err != nil {
				add(fqn, f.Name, "bound_malformed", err.Error())
			}
			if f.EnumCatalog != "" && knownCatalog != nil && !knownCatalog(f.EnumCatalog) {
				add(fqn, f.Name, "enum_catalog_unknown", fmt.Sprintf("enum catalog %q not found", f.EnumCatalog))
			}

			if !f.IsRelationship() {
				continue
			}
			if f.RefTarget == "" {
				add(fqn, f.Name, "ref_target_empty", "ref field has empty RefTarget")
			} else if f.Target == "" {
				add(fqn, f.Name, "ref_target_unknown", fmt.Sprintf("ref target %q not found", f.RefTarget))
			}
			if !f.Variant.Valid() {
				add(fqn, f.Name, "rel_unknown",
					fmt.Sprintf("unknown relationship variant %q", f.Variant))
			}
			if f.Variant == ParentAssociation && f.Container != Single {
				add(fqn, f.Name, "parent_collection", "parent_association must reference a single entity")
			}
		}

		for _, set := range e.Constraints.Unique {
			for _, name := range set {
				if _, ok := e.Field(name); !ok {
					add(fqn, name, "unique_field_unknown", fmt.Sprintf("unique(%v) names unknown field %q", set, name))
				}
			}
		}
		for _, rel := range e.Constraints.Relations {
			for _, name := range []string{rel.Left, rel.Right} {
				if _, ok := e.Field(name); !ok {
					add(fqn, name, "relation_field_unknown", fmt.Sprintf("relation names unknown field %q", name))
				}
			}
		}
		for _, ub := range e.Constraints.UsedBy {
			if err := r.CheckUsedBy(e, ub); err != nil {
				add(fqn, ub.Entity+"."+ub.Field, "used_by_unmatched", err.Error())
			}
		}
	}

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Entity < issues[j].Entity })
	return issues
}

// CheckUsedBy проверяет ответную декларацию: у зависимой сущности должен быть
// атрибут-связь на owner с флагом depends_on.
func (r *Registry) CheckUsedBy(owner *Entity, ub UsedBy) error {
	if ub.Target == "" {
		return fmt.Errorf("used_by: entity %q not found", ub.Entity)
	}
	dep := r.entities[ub.Target]
	f, ok := dep.Field(ub.Field)
	if !ok {
		return fmt.Errorf("used_by: %s has no field %q", ub.Target, ub.Field)
	}
	if !f.IsRelationship() || f.Target != owner.FQN() {
		return fmt.Errorf("used_by: %s.%s does not reference %s", ub.Target, ub.Field, owner.FQN())
	}
	if !f.DependsOn {
		return fmt.Errorf("used_by: %s.%s lacks depends_on declaration", ub.Target, ub.Field)
	}
	return nil
}

// KnownKind — вид из поддерживаемого набора
func KnownKind(k Kind) bool {
	switch k {
	case KindString, KindInt, KindLong, KindDecimal, KindDouble, KindFloat, KindBoolean,
		KindDate, KindBytes, KindEnum, KindRelationship, KindCollection, KindGeneric:
		return true
	}
	return false
}
