package sqlstore

import (
	"fmt"
	"strings"

	"graphguard/internal/dsl"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// элементарная плюрализация (достаточно для invoices, customers, ...)
func plural(s string) string {
	s = strings.ToLower(s)
	if strings.HasSuffix(s, "s") {
		return s
	}
	return s + "s"
}

// schema = module (lower), table = plural(entity) с защитой keyword'ов
func safeSchema(module string) string { return strings.ToLower(module) }

func safeTable(entity string) string {
	t := plural(entity)
	if isReserved(t) {
		t = "e_" + t
	}
	return t
}

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// Table возвращает полное имя таблицы сущности: "module"."entities" в Postgres,
// "module__entities" в SQLite (схем там нет)
func (d Dialect) Table(e *dsl.Entity) string {
	if d == Postgres {
		return sqlIdent(safeSchema(e.Module)) + "." + sqlIdent(safeTable(e.Name))
	}
	return sqlIdent(safeSchema(e.Module) + "__" + safeTable(e.Name))
}

func (d Dialect) jsonField(field string) string {
	if d == Postgres {
		return fmt.Sprintf("(doc->>'%s')", field)
	}
	return fmt.Sprintf("json_extract(doc, '$.%s')", field)
}

// GenerateDDL возвращает карту ключ -> SQL DDL. Ключи задают порядок применения:
// сначала схемы, потом таблицы и индексы по уникальным атрибутам.
func GenerateDDL(reg *dsl.Registry, d Dialect) (map[string]string, error) {
	out := make(map[string]string, reg.Len()+1)

	var schemas strings.Builder
	seenSchemas := map[string]struct{}{}

	for _, fqn := range reg.FQNs() {
		e, _ := reg.Lookup(fqn)
		if e.Module == "" {
			return nil, fmt.Errorf("%s: entity has no module", fqn)
		}
		if d == Postgres {
			mod := safeSchema(e.Module)
			if _, ok := seenSchemas[mod]; !ok {
				fmt.Fprintf(&schemas, "create schema if not exists %s;\n", sqlIdent(mod))
				seenSchemas[mod] = struct{}{}
			}
		}

		var sb strings.Builder
		cols := []string{
			`"id" text primary key`,
			`"version" bigint not null`,
			fmt.Sprintf(`"created_at" %s not null`, d.timeType()),
			fmt.Sprintf(`"updated_at" %s not null`, d.timeType()),
			fmt.Sprintf(`"doc" %s not null`, d.docType()),
		}
		table := d.Table(e)
		fmt.Fprintf(&sb, "create table if not exists %s (\n  %s\n);\n", table, strings.Join(cols, ",\n  "))

		// индексы под проверки уникальности; саму уникальность проверяет валидатор
		indexed := map[string]struct{}{}
		addIndex := func(field string) {
			if _, ok := indexed[field]; ok {
				return
			}
			indexed[field] = struct{}{}
			idx := strings.ToLower(e.Module + "_" + e.Name + "_" + field + "_idx")
			fmt.Fprintf(&sb, "create index if not exists %s on %s (%s);\n", sqlIdent(idx), table, d.jsonField(field))
		}
		for _, f := range e.Fields {
			if f.Unique && f.Container == dsl.Single && f.Kind != dsl.KindCollection {
				addIndex(f.Name)
			}
		}
		for _, set := range e.Constraints.Unique {
			for _, name := range set {
				if _, ok := e.Field(name); ok {
					addIndex(name)
				}
			}
		}
		out["100_"+fqn] = sb.String()
	}

	if schemas.Len() > 0 {
		out["000_schemas"] = schemas.String()
	}
	return out, nil
}
