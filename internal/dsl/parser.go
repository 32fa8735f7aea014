package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	entityRe           = regexp.MustCompile(`^entity\s+(\w+):`)
	captionRe          = regexp.MustCompile(`^caption\s*:\s*(.+)$`)
	fieldRe            = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	enumRe             = regexp.MustCompile(`^enum\[(.*)\]$`)
	refRe              = regexp.MustCompile(`^ref\[([A-Za-z0-9_.]+)\]$`)
	arrayRe            = regexp.MustCompile(`^array\[(.+)\]$`)
	mapRe              = regexp.MustCompile(`^map\[(.+)\]$`)
	moduleRe           = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
	reConstraintsStart = regexp.MustCompile(`^\s*constraints\s*:\s*$`)
	reUniqueLine       = regexp.MustCompile(`^\s*unique\s*\(\s*([^)]+)\s*\)\s*$`)
	reRelationLine     = regexp.MustCompile(`^\s*relation\s*\(\s*([\w_]+)\s*(==|!=|<=|>=|<|>)\s*([\w_]+)\s*\)\s*$`)
	reUsedByLine       = regexp.MustCompile(`^\s*used_by\s*\(\s*([A-Za-z0-9_.]+)\.([\w_]+)\s*\)\s*$`)
)

// parse: options tokenizer делит "k=v k2='v 2' pattern=^[A-Z0-9 _-]+$" на токены, не рвёт по пробелам внутри кавычек/скобок
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0 // внутри [ ... ] у регэкспа

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			// разделитель: пробел И ТОЛЬКО если мы не в кавычках и не внутри [...]
			if (r == ' ' || r == '\t') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// LoadEntities читает один .dsl файл и возвращает список Entity
func LoadEntities(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseEntities(file)
}

// ParseEntities разбирает DSL из reader'а
func ParseEntities(r io.Reader) ([]*Entity, error) {
	var entities []*Entity
	var current *Entity
	currentModule := ""
	inConstraints := false

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// module ...
		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		// entity <Name>:
		if m := entityRe.FindStringSubmatch(line); m != nil {
			// закрыть предыдущую сущность
			if current != nil {
				entities = append(entities, current)
			}
			current = &Entity{Name: m[1], Module: currentModule}
			inConstraints = false
			continue
		}
		if current == nil {
			// игнорируем всё вне сущности
			continue
		}

		// ----- БЛОК CONSTRAINTS -----
		if reConstraintsStart.MatchString(line) {
			inConstraints = true
			continue
		}

		if inConstraints {
			if m := reUniqueLine.FindStringSubmatch(line); m != nil {
				parts := strings.Split(m[1], ",")
				set := make([]string, 0, len(parts))
				for _, p := range parts {
					p = strings.TrimSpace(p)
					if p != "" {
						set = append(set, p)
					}
				}
				if len(set) > 0 {
					current.Constraints.Unique = append(current.Constraints.Unique, set)
				}
				continue
			}
			if m := reRelationLine.FindStringSubmatch(line); m != nil {
				current.Constraints.Relations = append(current.Constraints.Relations, Relation{
					Left:  m[1],
					Op:    RelationOp(m[2]),
					Right: m[3],
				})
				continue
			}
			if m := reUsedByLine.FindStringSubmatch(line); m != nil {
				current.Constraints.UsedBy = append(current.Constraints.UsedBy, UsedBy{
					Entity: m[1],
					Field:  m[2],
				})
				continue
			}
			if strings.HasPrefix(line, "unique") || strings.HasPrefix(line, "relation") || strings.HasPrefix(line, "used_by") {
				return nil, fmt.Errorf("line %d: malformed constraint %q", lineNo, line)
			}
			// любая другая строка: выходим из constraints и разбираем её как обычно
			inConstraints = false
		}
		// ----- КОНЕЦ БЛОКА CONSTRAINTS -----

		if m := captionRe.FindStringSubmatch(line); m != nil {
			current.Caption = unquote(strings.TrimSpace(m[1]))
			continue
		}

		if m := fieldRe.FindStringSubmatch(line); m != nil {
			f := parseField(m[1], m[2], m[3])
			current.Fields = append(current.Fields, f)
			continue
		}
	}

	if current != nil {
		entities = append(entities, current)
	}
	return entities, scanner.Err()
}

func parseField(name, rawType, tail string) Field {
	// склейка оборванных типов со скобками: enum[a, b], array[enum[a, b]]
	for _, prefix := range []string{"enum[", "array[", "map["} {
		if strings.HasPrefix(rawType, prefix) {
			for strings.Count(rawType, "[") > strings.Count(rawType, "]") {
				idx := strings.Index(tail, "]")
				if idx < 0 {
					break
				}
				rawType = rawType + tail[:idx+1]
				tail = tail[idx+1:]
			}
		}
	}
	rawType = strings.ReplaceAll(rawType, " ", "")

	// --- нормализация опций ПОСЛЕ типа ---
	optsRaw := strings.TrimSpace(tail)
	if i := strings.IndexByte(optsRaw, '#'); i >= 0 {
		optsRaw = strings.TrimSpace(optsRaw[:i])
	}
	if strings.HasPrefix(strings.ToLower(optsRaw), "options:") {
		optsRaw = strings.TrimSpace(optsRaw[len("options:"):])
	}

	f := Field{
		Name:    name,
		Type:    rawType,
		Options: map[string]string{},
	}
	applyType(&f, rawType)

	for _, tok := range splitOptionTokens(optsRaw) {
		tok = strings.Trim(strings.TrimSpace(tok), ",")
		if tok == "" {
			continue
		}
		// флаг без значения → "true"
		if !strings.Contains(tok, "=") {
			f.Options[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		if k != "" {
			f.Options[k] = unquote(strings.TrimSpace(kv[1]))
		}
	}

	f.Required = isTrue(f.Options["required"])
	f.Unique = isTrue(f.Options["unique"])
	f.DependsOn = isTrue(f.Options["depends_on"])
	f.Caption = f.Options["caption"]
	if c := f.Options["catalog"]; c != "" {
		f.EnumCatalog = c
	}
	if f.Kind == KindRelationship {
		f.Variant = Association
		if v := strings.ToLower(f.Options["rel"]); v != "" {
			f.Variant = Variant(v)
		}
	}
	return f
}

// applyType распознаёт тип поля и заполняет Kind/ElemKind/Container/Enum/RefTarget
func applyType(f *Field, rawType string) {
	if mm := arrayRe.FindStringSubmatch(rawType); mm != nil {
		applyContainerType(f, mm[1], List)
		return
	}
	if mm := mapRe.FindStringSubmatch(rawType); mm != nil {
		applyContainerType(f, mm[1], Map)
		return
	}
	if mm := enumRe.FindStringSubmatch(rawType); mm != nil {
		f.Kind = KindEnum
		f.Enum = splitEnum(mm[1])
		f.Container = Single
		return
	}
	if mm := refRe.FindStringSubmatch(rawType); mm != nil {
		f.Kind = KindRelationship
		f.RefTarget = mm[1]
		f.Container = Single
		return
	}
	f.Kind = scalarKind(rawType)
	f.Container = Single
}

func applyContainerType(f *Field, elem string, c Container) {
	f.Container = c
	// array[ref[...]] / map[ref[...]]: связь-коллекция
	if rm := refRe.FindStringSubmatch(elem); rm != nil {
		f.Kind = KindRelationship
		f.RefTarget = rm[1]
		return
	}
	f.Kind = KindCollection
	// array[enum[...]]
	if em := enumRe.FindStringSubmatch(elem); em != nil {
		f.ElemKind = KindEnum
		f.Enum = splitEnum(em[1])
		return
	}
	f.ElemKind = scalarKind(elem)
}

// примитивы; неизвестный тип сохраняем как есть: движок отвергнет его как ошибку схемы
func scalarKind(t string) Kind {
	switch strings.ToLower(t) {
	case "string", "text":
		return KindString
	case "int":
		return KindInt
	case "long", "bigint":
		return KindLong
	case "decimal", "money":
		return KindDecimal
	case "double":
		return KindDouble
	case "float":
		return KindFloat
	case "bool", "boolean":
		return KindBoolean
	case "date", "datetime":
		return KindDate
	case "bytes", "blob":
		return KindBytes
	case "enum":
		return KindEnum
	case "generic", "any":
		return KindGeneric
	default:
		return Kind(strings.ToLower(t))
	}
}

func splitEnum(inside string) []string {
	var out []string
	for _, p := range strings.Split(strings.TrimSpace(inside), ",") {
		s := strings.Trim(strings.TrimSpace(p), `"'`)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// LoadAllEntities обходит каталог и собирает все сущности по FQN
func LoadAllEntities(root string) (map[string]*Entity, error) {
	result := make(map[string]*Entity)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		ents, err := LoadEntities(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, e := range ents {
			if e == nil || e.Name == "" {
				return fmt.Errorf("empty entity name in %s", path)
			}
			if e.Module == "" {
				return fmt.Errorf("entity %q in %s has no module — add `module <name>` at the top", e.Name, path)
			}
			fqn := e.FQN()
			if _, exists := result[fqn]; exists {
				return fmt.Errorf("duplicate entity %q in module %q (file: %s)", e.Name, e.Module, path)
			}
			result[fqn] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
