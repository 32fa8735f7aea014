// Package validation — движок проверки графа сущностей перед вставкой,
// обновлением и удалением. Хранилище используется только на чтение через storage.Finder.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"graphguard/internal/dsl"
	"graphguard/internal/reference"
	"graphguard/internal/storage"
	"graphguard/internal/vo"
)

// Operation — вид проверки верхнего уровня
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Observer получает итоги проверок (метрики). Реализация: internal/metrics.
type Observer interface {
	ObserveValidation(op, outcome string, d time.Duration)
	ObserveFailure(code string)
	ObserveLookup(method string)
}

// Validator не хранит состояния между вызовами и безопасен для конкурентного использования
type Validator struct {
	reg    *dsl.Registry
	finder storage.Finder
	enums  reference.Catalog
	log    *slog.Logger
	obs    Observer
	now    func() time.Time
}

type Option func(*Validator)

func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// WithEnums — справочники для enum catalog=...
func WithEnums(c reference.Catalog) Option {
	return func(v *Validator) { v.enums = c }
}

func WithObserver(o Observer) Option {
	return func(v *Validator) { v.obs = o }
}

// WithClock — момент, на который проверяются сроки действия значений справочников
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// New — finder может быть nil: тогда проверки через хранилище пропускаются
func New(reg *dsl.Registry, finder storage.Finder, opts ...Option) *Validator {
	v := &Validator{
		reg:    reg,
		finder: finder,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Registry — схема, по которой работает валидатор
func (v *Validator) Registry() *dsl.Registry { return v.reg }

// ValidateForInsert — ни сама сущность, ни её композиции не должны иметь id
// (кроме режима InsertWithID)
func (v *Validator) ValidateForInsert(ctx context.Context, e *vo.Entity) (Failures, error) {
	return v.validateRoot(ctx, OpInsert, e, nil)
}

// ValidateForUpdate — у корня должен быть id; forced делает перечисленные пути обязательными
func (v *Validator) ValidateForUpdate(ctx context.Context, e *vo.Entity, forced ...string) (Failures, error) {
	return v.validateRoot(ctx, OpUpdate, e, forced)
}

// ValidateForDelete — запись нельзя удалить, пока на неё ссылаются зависимые сущности (used_by)
func (v *Validator) ValidateForDelete(ctx context.Context, typ, id string) (Failures, error) {
	start := time.Now()
	schema, ok := v.reg.Lookup(typ)
	if !ok {
		return v.finish(OpDelete, typ, start, nil, critical(ErrUnknownEntity, typ, "", "not in registry"))
	}
	if id == "" {
		return v.finish(OpDelete, schema.FQN(), start, nil, critical(ErrMissingIdentity, schema.FQN(), "", "delete requires id"))
	}
	w := &walk{ctx: ctx, op: OpDelete, rootSchema: schema}
	err := v.checkUsedBy(w, schema, id)
	return v.finish(OpDelete, schema.FQN(), start, w.failures, err)
}

func (v *Validator) validateRoot(ctx context.Context, op Operation, e *vo.Entity, forced []string) (Failures, error) {
	start := time.Now()
	if e == nil {
		return v.finish(op, "", start, nil, critical(ErrValueMismatch, "", "", "nil entity"))
	}
	schema, ok := v.reg.Lookup(e.Type)
	if !ok {
		return v.finish(op, e.Type, start, nil, critical(ErrUnknownEntity, e.Type, "", "not in registry"))
	}
	if op == OpUpdate && !e.HasID() {
		return v.finish(op, schema.FQN(), start, nil, critical(ErrMissingIdentity, schema.FQN(), "", "update requires id"))
	}
	w := newWalk(ctx, op, e, schema, forced)
	err := v.validateEntity(w, schema, e, "")
	return v.finish(op, schema.FQN(), start, w.failures, err)
}

// finish — метрики и лог по итогам вызова
func (v *Validator) finish(op Operation, typ string, start time.Time, fs Failures, err error) (Failures, error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "critical"
		fs = nil
		if IsCritical(err) {
			v.log.Error("validation aborted", "op", op, "entity", typ, "err", err)
		} else {
			v.log.Warn("validation interrupted", "op", op, "entity", typ, "err", err)
		}
	case len(fs) > 0:
		outcome = "failed"
	}
	elapsed := time.Since(start)
	if v.obs != nil {
		v.obs.ObserveValidation(string(op), outcome, elapsed)
		for _, f := range fs {
			v.obs.ObserveFailure(f.Code)
		}
	}
	v.log.Debug("validation done", "op", op, "entity", typ, "outcome", outcome, "failures", len(fs), "duration", elapsed)
	if len(fs) == 0 {
		fs = nil
	}
	return fs, err
}

// validateEntity проверяет одну сущность графа и рекурсивно её композиции
func (v *Validator) validateEntity(w *walk, schema *dsl.Entity, e *vo.Entity, path string) error {
	fqn := schema.FQN()
	if e.Type != "" {
		if actual, ok := v.reg.Lookup(e.Type); !ok || actual.FQN() != fqn {
			return critical(ErrValueMismatch, fqn, path, "entity of type %q where %s expected", e.Type, fqn)
		}
	}
	if _, seen := w.visiting[e]; seen {
		return critical(ErrCycle, fqn, path, "entity visited twice on one path")
	}
	w.visiting[e] = struct{}{}
	defer delete(w.visiting, e)

	switch w.op {
	case OpInsert:
		if e.HasID() && !e.InsertWithID {
			return critical(ErrIdentityOnInsert, fqn, path, "id %q", e.ID)
		}
		w.markNew(e)
	case OpUpdate:
		if !e.HasID() || e.InsertWithID {
			w.markNew(e)
		}
	}

	before := len(w.failures)
	for i := range schema.Fields {
		f := &schema.Fields[i]
		p := JoinPath(path, f.Name)
		val, _ := e.Get(f.Name)

		if vo.IsEmpty(val) {
			if f.Required || w.forced.has(p) {
				w.fail(ErrRequired, fqn, p, v.caption(w, p))
				continue
			}
			// пустая, но заданная коллекция всё равно проходит min_size
			if sized(f) && presentEmpty(val) {
				if _, err := v.checkSize(w, schema, f, 0, p); err != nil {
					return err
				}
			}
			continue
		}

		var err error
		if f.IsRelationship() {
			err = v.validateRelationship(w, schema, f, val, p)
		} else {
			err = v.validateValue(w, schema, f, val, p)
		}
		if err != nil {
			return err
		}
	}

	if len(w.failures) > before {
		return nil
	}
	if err := v.checkUniqueSets(w, schema, e, path); err != nil {
		return err
	}
	return v.checkRelations(w, schema, e, path)
}

// checkRelations — relation(a op b) между атрибутами одной сущности.
// == и != считают два null равными; сравнения порядка с null выполняются.
func (v *Validator) checkRelations(w *walk, schema *dsl.Entity, e *vo.Entity, path string) error {
	fqn := schema.FQN()
	for _, rel := range schema.Constraints.Relations {
		left, lok := schema.Field(rel.Left)
		right, rok := schema.Field(rel.Right)
		if !lok || !rok {
			return critical(ErrUnknownField, fqn, rel.Left, "relation(%s %s %s)", rel.Left, rel.Op, rel.Right)
		}
		lv, _ := e.Get(left.Name)
		rv, _ := e.Get(right.Name)
		lv, rv = relationOperand(lv), relationOperand(rv)

		var ok bool
		switch rel.Op {
		case dsl.OpEqual, dsl.OpNotEqual:
			eq, err := equalNullable(lv, rv)
			if err != nil {
				return critical(ErrValueMismatch, fqn, JoinPath(path, left.Name), "relation %s %s %s: %v", rel.Left, rel.Op, rel.Right, err)
			}
			ok = eq == (rel.Op == dsl.OpEqual)
		default:
			if lv == nil || rv == nil {
				continue
			}
			cmp, err := compareValues(lv, rv)
			if err != nil {
				return critical(ErrValueMismatch, fqn, JoinPath(path, left.Name), "relation %s %s %s: %v", rel.Left, rel.Op, rel.Right, err)
			}
			switch rel.Op {
			case dsl.OpLess:
				ok = cmp < 0
			case dsl.OpLessEqual:
				ok = cmp <= 0
			case dsl.OpGreater:
				ok = cmp > 0
			case dsl.OpGreaterEqual:
				ok = cmp >= 0
			default:
				return critical(ErrUnsupportedKind, fqn, rel.Left, "relation operator %q", rel.Op)
			}
		}
		if !ok {
			p := JoinPath(path, left.Name)
			w.fail(ErrRelation, fqn, p, v.caption(w, p), string(rel.Op), v.caption(w, JoinPath(path, right.Name)))
		}
	}
	return nil
}

// sized: у атрибута может быть min_size/max_size
func sized(f *dsl.Field) bool {
	if f.IsRelationship() {
		return f.Container != dsl.Single
	}
	return f.Kind == dsl.KindCollection
}

// presentEmpty: [] или {}, а не отсутствующее значение
func presentEmpty(val any) bool {
	switch t := val.(type) {
	case []any:
		return t != nil
	case map[string]any:
		return t != nil
	case []*vo.Entity:
		return t != nil
	case map[string]*vo.Entity:
		return t != nil
	}
	return false
}

// ссылки сравниваются по id
func relationOperand(v any) any {
	switch t := v.(type) {
	case *vo.Entity:
		if t == nil || !t.HasID() {
			return nil
		}
		return t.ID
	case string:
		if t == "" {
			return nil
		}
	}
	return v
}

func equalNullable(a, b any) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	cmp, err := compareValues(a, b)
	if err != nil {
		return false, err
	}
	return cmp == 0, nil
}

// storageErr — ошибка хранилища прерывает весь вызов
func storageErr(err error, entity, field, method string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &CriticalError{Entity: entity, Field: field, Reason: method, Err: fmt.Errorf("%w: %w", ErrStorage, err)}
}
