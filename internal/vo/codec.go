package vo

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"graphguard/internal/dsl"

	"github.com/shopspring/decimal"
)

// Зарезервированные ключи JSON-документа
const (
	KeyID           = "id"
	KeyInsertWithID = "_insertWithId"
)

// DecodeError — значение из документа не приводится к виду атрибута
type DecodeError struct {
	Path    string
	Message string
}

// DecodeErrors — все ошибки разбора одного документа
type DecodeErrors []DecodeError

func (e DecodeErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, d := range e {
		parts = append(parts, d.Path+": "+d.Message)
	}
	return "decode: " + strings.Join(parts, "; ")
}

// Decode строит граф сущностей из JSON-документа по схеме.
// Неизвестные поля игнорируются. Возвращает DecodeErrors, если хоть одно значение не подошло.
func Decode(reg *dsl.Registry, typ string, doc map[string]any) (*Entity, error) {
	d := decoder{reg: reg}
	e := d.entity(typ, doc, "")
	if len(d.errs) > 0 {
		return e, d.errs
	}
	return e, nil
}

type decoder struct {
	reg  *dsl.Registry
	errs DecodeErrors
}

func (d *decoder) fail(path, format string, args ...any) {
	d.errs = append(d.errs, DecodeError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func join(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func (d *decoder) entity(typ string, doc map[string]any, path string) *Entity {
	schema, ok := d.reg.Lookup(typ)
	if !ok {
		d.fail(path, "unknown entity %q", typ)
		return nil
	}
	e := New(schema.FQN())
	if raw, ok := doc[KeyID]; ok && raw != nil {
		id, err := toID(raw)
		if err != nil {
			d.fail(join(path, KeyID), "%v", err)
		}
		e.ID = id
	}
	if raw, ok := doc[KeyInsertWithID]; ok {
		b, err := toBoolStrict(raw)
		if err != nil {
			d.fail(join(path, KeyInsertWithID), "%v", err)
		}
		e.InsertWithID = b
	}
	for i := range schema.Fields {
		f := &schema.Fields[i]
		raw, ok := doc[f.Name]
		if !ok {
			continue
		}
		p := join(path, f.Name)
		if raw == nil {
			e.Set(f.Name, nil)
			continue
		}
		if v, ok := d.field(f, raw, p); ok {
			e.Set(f.Name, v)
		}
	}
	return e
}

func (d *decoder) field(f *dsl.Field, raw any, path string) (any, bool) {
	switch f.Kind {
	case dsl.KindRelationship:
		return d.relationship(f, raw, path)
	case dsl.KindCollection:
		return d.collection(f, raw, path)
	}
	v, err := coerceScalar(f.Kind, raw)
	if err != nil {
		d.fail(path, "%v", err)
		return nil, false
	}
	return v, true
}

func (d *decoder) collection(f *dsl.Field, raw any, path string) (any, bool) {
	switch f.Container {
	case dsl.Map:
		m, ok := raw.(map[string]any)
		if !ok {
			d.fail(path, "must be object")
			return nil, false
		}
		out := make(map[string]any, len(m))
		for k, ev := range m {
			v, err := coerceScalar(f.ElemKind, ev)
			if err != nil {
				d.fail(fmt.Sprintf("%s[%s]", path, k), "%v", err)
				continue
			}
			out[k] = v
		}
		return out, true
	default:
		arr, ok := raw.([]any)
		if !ok {
			d.fail(path, "must be array")
			return nil, false
		}
		out := make([]any, 0, len(arr))
		for i, ev := range arr {
			v, err := coerceScalar(f.ElemKind, ev)
			if err != nil {
				d.fail(fmt.Sprintf("%s[%d]", path, i), "%v", err)
				continue
			}
			out = append(out, v)
		}
		return out, true
	}
}

func (d *decoder) relationship(f *dsl.Field, raw any, path string) (any, bool) {
	target := f.Target
	if target == "" {
		target = f.RefTarget
	}
	switch f.Container {
	case dsl.List:
		arr, ok := raw.([]any)
		if !ok {
			d.fail(path, "must be array")
			return nil, false
		}
		out := make([]*Entity, 0, len(arr))
		for i, ev := range arr {
			out = append(out, d.ref(target, ev, fmt.Sprintf("%s[%d]", path, i)))
		}
		return out, true
	case dsl.Map:
		m, ok := raw.(map[string]any)
		if !ok {
			d.fail(path, "must be object")
			return nil, false
		}
		out := make(map[string]*Entity, len(m))
		for k, ev := range m {
			out[k] = d.ref(target, ev, fmt.Sprintf("%s[%s]", path, k))
		}
		return out, true
	default:
		return d.ref(target, raw, path), true
	}
}

// ссылка: строка или число означает id сохранённой записи, объект означает вложенную сущность
func (d *decoder) ref(target string, raw any, path string) *Entity {
	switch t := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		return d.entity(target, t, path)
	default:
		id, err := toID(raw)
		if err != nil {
			d.fail(path, "must be id or object")
			return nil
		}
		if e, ok := d.reg.Lookup(target); ok {
			target = e.FQN()
		}
		return Ref(target, id)
	}
}

func coerceScalar(kind dsl.Kind, v any) (any, error) {
	switch kind {
	case dsl.KindString, dsl.KindEnum:
		return toStringStrict(v)
	case dsl.KindInt, dsl.KindLong:
		return toIntStrict(v)
	case dsl.KindDecimal:
		return toDecimalStrict(v)
	case dsl.KindDouble, dsl.KindFloat:
		return toFloatStrict(v)
	case dsl.KindBoolean:
		return toBoolStrict(v)
	case dsl.KindDate:
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		t, err := dsl.ParseDate(s)
		if err != nil {
			return nil, err
		}
		return t, nil
	case dsl.KindBytes:
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("must be base64")
		}
		return b, nil
	default:
		// generic и неизвестные виды: как есть, вид проверит валидатор
		return v, nil
	}
}

func toID(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		if t != math.Trunc(t) {
			return "", fmt.Errorf("id must be string or integer")
		}
		return strconv.FormatInt(int64(t), 10), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", fmt.Errorf("id must be string or integer")
	}
}

func toStringStrict(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	// не будем автоматически форматировать числа как строки: лучше отдать ошибку
	return "", fmt.Errorf("must be string")
}

func toIntStrict(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		// JSON числа приходят как float64: проверяем целостность
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("must be integer")
		}
		return int64(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be integer")
		}
		return n, nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("must be integer")
		}
		return n, nil
	default:
		return 0, fmt.Errorf("must be integer")
	}
}

func toFloatStrict(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be float")
		}
		return f, nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("must be float")
		}
		return f, nil
	default:
		return 0, fmt.Errorf("must be float")
	}
}

func toDecimalStrict(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, fmt.Errorf("must be decimal")
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("must be decimal")
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	default:
		return decimal.Zero, fmt.Errorf("must be decimal")
	}
}

func toBoolStrict(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		}
	}
	return false, fmt.Errorf("must be boolean")
}

// Encode — обратное преобразование в JSON-совместимый документ.
// Ассоциации с id пишутся как id, композиции и несохранённые объекты: вложенными документами.
func Encode(reg *dsl.Registry, e *Entity) map[string]any {
	if e == nil {
		return nil
	}
	doc := map[string]any{}
	if e.ID != "" {
		doc[KeyID] = e.ID
	}
	if e.InsertWithID {
		doc[KeyInsertWithID] = true
	}
	var schema *dsl.Entity
	if reg != nil {
		schema, _ = reg.Lookup(e.Type)
	}
	for _, name := range e.Names() {
		var f *dsl.Field
		if schema != nil {
			f, _ = schema.Field(name)
		}
		doc[name] = encodeValue(reg, f, e.Values[name])
	}
	return doc
}

func encodeValue(reg *dsl.Registry, f *dsl.Field, v any) any {
	embed := f == nil || f.Variant.IsComposition()
	switch t := v.(type) {
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case *Entity:
		return encodeRef(reg, t, embed)
	case []*Entity:
		out := make([]any, 0, len(t))
		for _, el := range t {
			out = append(out, encodeRef(reg, el, embed))
		}
		return out
	case map[string]*Entity:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = encodeRef(reg, el, embed)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, el := range t {
			out = append(out, encodeValue(reg, nil, el))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = encodeValue(reg, nil, el)
		}
		return out
	default:
		return v
	}
}

func encodeRef(reg *dsl.Registry, e *Entity, embed bool) any {
	if e == nil {
		return nil
	}
	if !embed && e.HasID() {
		return e.ID
	}
	return Encode(reg, e)
}
