package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Коды бизнес-ошибок
const (
	ErrRequired          = "required"
	ErrTypeMismatch      = "type_mismatch"
	ErrEnumInvalid       = "enum_invalid"
	ErrUniqueViolation   = "unique_violation"
	ErrRefNotFound       = "ref_not_found"
	ErrRefNotPersisted   = "ref_not_persisted"
	ErrMinSize           = "min_size"
	ErrMaxSize           = "max_size"
	ErrDuplicateRelation = "duplicated_relationship"
	ErrUsedBy            = "used_by"
	ErrOutOfRange        = "out_of_range"
	ErrLength            = "length"
	ErrPattern           = "pattern"
	ErrScale             = "scale"
	ErrRelation          = "relation_violation"
)

// шаблоны сообщений; первый аргумент всегда подпись атрибута
var templates = map[string]string{
	ErrRequired:          "%s is required",
	ErrTypeMismatch:      "%s has wrong type: %v",
	ErrEnumInvalid:       "%s: value %q is not allowed",
	ErrUniqueViolation:   "%s must be unique",
	ErrRefNotFound:       "%s: referenced %s %q not found",
	ErrRefNotPersisted:   "%s: referenced %s is not saved",
	ErrMinSize:           "%s must contain at least %d element(s)",
	ErrMaxSize:           "%s must contain at most %d element(s)",
	ErrDuplicateRelation: "%s: duplicated relationship %q",
	ErrUsedBy:            "%s is used by %s.%s %v",
	ErrOutOfRange:        "%s: value %v is out of range",
	ErrLength:            "%s: length %d is out of range",
	ErrPattern:           "%s does not match pattern %s",
	ErrScale:             "%s: more than %d fractional digit(s)",
	ErrRelation:          "%s must be %s %s",
}

// Failure — одно нарушение бизнес-правила
type Failure struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Entity  string `json:"entity"`
	Caption string `json:"caption,omitempty"`
	Args    []any  `json:"args,omitempty"`
	Message string `json:"message"`
}

func newFailure(code, entity, field, caption string, args ...any) Failure {
	tpl, ok := templates[code]
	if !ok {
		tpl = "%s: " + code
	}
	return Failure{
		Code:    code,
		Field:   field,
		Entity:  entity,
		Caption: caption,
		Args:    args,
		Message: fmt.Sprintf(tpl, append([]any{caption}, args...)...),
	}
}

func (f Failure) String() string {
	if f.Field == "" {
		return f.Entity + ": " + f.Message
	}
	return f.Entity + "." + f.Field + ": " + f.Message
}

// Failures — все нарушения одного вызова
type Failures []Failure

func (fs Failures) Error() string {
	parts := make([]string, 0, len(fs))
	for _, f := range fs {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("validation failed (%d): %s", len(fs), strings.Join(parts, "; "))
}

// HasCode — есть ли нарушение с кодом
func (fs Failures) HasCode(code string) bool {
	for _, f := range fs {
		if f.Code == code {
			return true
		}
	}
	return false
}

// ByField — нарушения по пути атрибута
func (fs Failures) ByField(path string) Failures {
	var out Failures
	for _, f := range fs {
		if f.Field == path {
			out = append(out, f)
		}
	}
	return out
}

// Критические ошибки: конфигурация схемы или ошибка вызывающего. Прерывают вызов целиком.
var (
	ErrUnknownEntity    = errors.New("unknown entity type")
	ErrUnsupportedKind  = errors.New("unsupported attribute kind")
	ErrIdentityOnInsert = errors.New("identity present on insert")
	ErrMissingIdentity  = errors.New("identity missing")
	ErrMissingDependsOn = errors.New("used_by without reciprocal depends_on")
	ErrMalformedBound   = errors.New("malformed bound")
	ErrUnknownCatalog   = errors.New("unknown enum catalog")
	ErrUnknownField     = errors.New("constraint names unknown attribute")
	ErrValueMismatch    = errors.New("value does not match declared kind")
	ErrCycle            = errors.New("cyclic entity graph")
	ErrStorage          = errors.New("storage lookup failed")
)

// CriticalError — не бизнес-ошибка, а поломка конфигурации или данных вызова
type CriticalError struct {
	Entity string
	Field  string
	Reason string
	Err    error
}

func (e *CriticalError) Error() string {
	var b strings.Builder
	b.WriteString("critical: ")
	b.WriteString(e.Entity)
	if e.Field != "" {
		b.WriteString(".")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *CriticalError) Unwrap() error { return e.Err }

func critical(err error, entity, field, format string, args ...any) *CriticalError {
	return &CriticalError{Entity: entity, Field: field, Reason: fmt.Sprintf(format, args...), Err: err}
}

// IsCritical — ошибка вызова критическая (а не отмена контекста и т.п.)
func IsCritical(err error) bool {
	var ce *CriticalError
	return errors.As(err, &ce)
}
