package validation

import (
	"math"
	"regexp"
	"time"
	"unicode/utf8"

	"graphguard/internal/dsl"
	"graphguard/internal/mo"

	"github.com/shopspring/decimal"
)

// validateValue — атрибуты-значения: скаляры и коллекции скаляров
func (v *Validator) validateValue(w *walk, schema *dsl.Entity, f *dsl.Field, val any, path string) error {
	before := len(w.failures)
	var err error
	if f.Kind == dsl.KindCollection {
		err = v.validateCollection(w, schema, f, val, path)
	} else {
		err = v.validateScalar(w, schema, f, f.Kind, val, path)
	}
	if err != nil {
		return err
	}
	if f.Unique && f.Kind != dsl.KindCollection && len(w.failures) == before {
		return v.checkUnique(w, schema, path, val)
	}
	return nil
}

func (v *Validator) validateCollection(w *walk, schema *dsl.Entity, f *dsl.Field, val any, path string) error {
	fqn := schema.FQN()
	var (
		elems []any
		keys  []any
	)
	switch t := val.(type) {
	case []any:
		elems = t
		for i := range t {
			keys = append(keys, i)
		}
	case map[string]any:
		for _, k := range sortedKeys(t) {
			elems = append(elems, t[k])
			keys = append(keys, k)
		}
	default:
		return critical(ErrValueMismatch, fqn, path, "collection value of type %T", val)
	}

	if ok, err := v.checkSize(w, schema, f, len(elems), path); err != nil || !ok {
		return err
	}
	for i, el := range elems {
		p := IndexPath(path, keys[i])
		if el == nil {
			if w.forced.has(p) {
				w.fail(ErrRequired, fqn, p, v.caption(w, p))
			}
			continue
		}
		if err := v.validateScalar(w, schema, f, f.ElemKind, el, p); err != nil {
			return err
		}
	}
	return nil
}

// checkSize — min_size/max_size до обхода элементов; false: размер не подошёл
func (v *Validator) checkSize(w *walk, schema *dsl.Entity, f *dsl.Field, n int, path string) (bool, error) {
	fqn := schema.FQN()
	minSize, ok, err := f.IntBound("min_size")
	if err != nil {
		return false, critical(ErrMalformedBound, fqn, path, "%v", err)
	}
	if ok && int64(n) < minSize {
		w.fail(ErrMinSize, fqn, path, v.caption(w, path), minSize)
		return false, nil
	}
	maxSize, ok, err := f.IntBound("max_size")
	if err != nil {
		return false, critical(ErrMalformedBound, fqn, path, "%v", err)
	}
	if ok && int64(n) > maxSize {
		w.fail(ErrMaxSize, fqn, path, v.caption(w, path), maxSize)
		return false, nil
	}
	return true, nil
}

// validateScalar — стратегия по виду значения
func (v *Validator) validateScalar(w *walk, schema *dsl.Entity, f *dsl.Field, kind dsl.Kind, val any, path string) error {
	fqn := schema.FQN()
	mismatch := func() error {
		return critical(ErrValueMismatch, fqn, path, "%s value of type %T", kind, val)
	}
	bound := func(err error) error {
		return critical(ErrMalformedBound, fqn, path, "%v", err)
	}

	switch kind {
	case dsl.KindString:
		s, ok := val.(string)
		if !ok {
			return mismatch()
		}
		if err := v.checkLength(w, fqn, f, utf8.RuneCountInString(s), path); err != nil {
			return err
		}
		if p, ok := f.Bound("pattern"); ok {
			re, err := regexp.Compile(p)
			if err != nil {
				return bound(err)
			}
			if !re.MatchString(s) {
				w.fail(ErrPattern, fqn, path, v.caption(w, path), p)
			}
		}

	case dsl.KindInt, dsl.KindLong:
		n, ok := asInt64(val)
		if !ok {
			return mismatch()
		}
		if kind == dsl.KindInt && (n < math.MinInt32 || n > math.MaxInt32) {
			w.fail(ErrOutOfRange, fqn, path, v.caption(w, path), n)
			return nil
		}
		lo, hasLo, err := f.IntBound("min")
		if err != nil {
			return bound(err)
		}
		hi, hasHi, err := f.IntBound("max")
		if err != nil {
			return bound(err)
		}
		if (hasLo && n < lo) || (hasHi && n > hi) {
			w.fail(ErrOutOfRange, fqn, path, v.caption(w, path), n)
		}

	case dsl.KindDecimal:
		d, ok := val.(decimal.Decimal)
		if !ok {
			return mismatch()
		}
		lo, hasLo, err := f.DecimalBound("min")
		if err != nil {
			return bound(err)
		}
		hi, hasHi, err := f.DecimalBound("max")
		if err != nil {
			return bound(err)
		}
		if (hasLo && d.LessThan(lo)) || (hasHi && d.GreaterThan(hi)) {
			w.fail(ErrOutOfRange, fqn, path, v.caption(w, path), d.String())
			return nil
		}
		scale, hasScale, err := f.IntBound("scale")
		if err != nil {
			return bound(err)
		}
		if hasScale && !d.Equal(d.Truncate(int32(scale))) {
			w.fail(ErrScale, fqn, path, v.caption(w, path), scale)
		}

	case dsl.KindDouble, dsl.KindFloat:
		x, ok := asFloat64(val)
		if !ok {
			return mismatch()
		}
		if math.IsNaN(x) || math.IsInf(x, 0) || (kind == dsl.KindFloat && math.Abs(x) > math.MaxFloat32) {
			w.fail(ErrOutOfRange, fqn, path, v.caption(w, path), x)
			return nil
		}
		lo, hasLo, err := f.FloatBound("min")
		if err != nil {
			return bound(err)
		}
		hi, hasHi, err := f.FloatBound("max")
		if err != nil {
			return bound(err)
		}
		if (hasLo && x < lo) || (hasHi && x > hi) {
			w.fail(ErrOutOfRange, fqn, path, v.caption(w, path), x)
		}

	case dsl.KindBoolean:
		if _, ok := val.(bool); !ok {
			return mismatch()
		}

	case dsl.KindDate:
		t, ok := val.(time.Time)
		if !ok {
			return mismatch()
		}
		lo, hasLo, err := f.DateBound("min")
		if err != nil {
			return bound(err)
		}
		hi, hasHi, err := f.DateBound("max")
		if err != nil {
			return bound(err)
		}
		if (hasLo && t.Before(lo)) || (hasHi && t.After(hi)) {
			w.fail(ErrOutOfRange, fqn, path, v.caption(w, path), t.Format(time.RFC3339))
		}

	case dsl.KindBytes:
		b, ok := val.([]byte)
		if !ok {
			return mismatch()
		}
		return v.checkLength(w, fqn, f, len(b), path)

	case dsl.KindEnum:
		s, ok := val.(string)
		if !ok {
			return mismatch()
		}
		return v.validateEnum(w, fqn, f, s, path)

	case dsl.KindGeneric:
		// без ограничений

	default:
		return critical(ErrUnsupportedKind, fqn, path, "kind %q", kind)
	}
	return nil
}

func (v *Validator) checkLength(w *walk, fqn string, f *dsl.Field, n int, path string) error {
	lo, hasLo, err := f.IntBound("min_length")
	if err != nil {
		return critical(ErrMalformedBound, fqn, path, "%v", err)
	}
	hi, hasHi, err := f.IntBound("max_length")
	if err != nil {
		return critical(ErrMalformedBound, fqn, path, "%v", err)
	}
	if (hasLo && int64(n) < lo) || (hasHi && int64(n) > hi) {
		w.fail(ErrLength, fqn, path, v.caption(w, path), n)
	}
	return nil
}

// validateEnum — встроенный список значений или справочник с учётом сроков действия
func (v *Validator) validateEnum(w *walk, fqn string, f *dsl.Field, s, path string) error {
	if len(f.Enum) > 0 {
		for _, ev := range f.Enum {
			if s == ev {
				return nil
			}
		}
		w.fail(ErrEnumInvalid, fqn, path, v.caption(w, path), s)
		return nil
	}
	if f.EnumCatalog == "" {
		return critical(ErrMalformedBound, fqn, path, "enum without values or catalog")
	}
	dir, ok := v.enums[f.EnumCatalog]
	if !ok {
		return critical(ErrUnknownCatalog, fqn, path, "%q", f.EnumCatalog)
	}
	if !dir.Allows(s, v.now()) {
		w.fail(ErrEnumInvalid, fqn, path, v.caption(w, path), s)
	}
	return nil
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	}
	return 0, false
}

func compareValues(a, b any) (int, error) {
	return mo.Compare(a, b)
}
