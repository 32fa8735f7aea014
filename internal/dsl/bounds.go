package dsl

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`) // YYYY-MM-DD
	datetimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T`)
)

// IntBound — целочисленное ограничение (min/max для int/long, *_length, scale, min_size)
func (f *Field) IntBound(name string) (int64, bool, error) {
	raw, ok := f.Bound(name)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%s=%q is not an integer", name, raw)
	}
	return n, true, nil
}

// FloatBound — ограничение для double/float
func (f *Field) FloatBound(name string) (float64, bool, error) {
	raw, ok := f.Bound(name)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%s=%q is not a number", name, raw)
	}
	return n, true, nil
}

// DecimalBound — ограничение для decimal
func (f *Field) DecimalBound(name string) (decimal.Decimal, bool, error) {
	raw, ok := f.Bound(name)
	if !ok {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("%s=%q is not a decimal", name, raw)
	}
	return d, true, nil
}

// DateBound — ограничение для date: YYYY-MM-DD или RFC3339
func (f *Field) DateBound(name string) (time.Time, bool, error) {
	raw, ok := f.Bound(name)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, true, fmt.Errorf("%s=%q: %v", name, raw, err)
	}
	return t, true, nil
}

// ParseDate принимает YYYY-MM-DD (UTC) или RFC3339
func ParseDate(s string) (time.Time, error) {
	switch {
	case dateRe.MatchString(s):
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date")
		}
		return t, nil
	case datetimeRe.MatchString(s):
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("must be RFC3339 datetime")
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("must match YYYY-MM-DD or RFC3339")
}

// CheckBounds разбирает все объявленные ограничения поля согласно его виду.
// Возвращает первую ошибку разбора.
func (f *Field) CheckBounds() error {
	for _, name := range []string{"min_length", "max_length", "scale", "min_size", "max_size"} {
		if _, _, err := f.IntBound(name); err != nil {
			return err
		}
	}
	kind := f.Kind
	if kind == KindCollection {
		kind = f.ElemKind
	}
	for _, name := range []string{"min", "max"} {
		var err error
		switch kind {
		case KindInt, KindLong:
			_, _, err = f.IntBound(name)
		case KindDouble, KindFloat:
			_, _, err = f.FloatBound(name)
		case KindDecimal:
			_, _, err = f.DecimalBound(name)
		case KindDate:
			_, _, err = f.DateBound(name)
		}
		if err != nil {
			return err
		}
	}
	if p, ok := f.Bound("pattern"); ok {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("pattern %q: %v", p, err)
		}
	}
	return nil
}
