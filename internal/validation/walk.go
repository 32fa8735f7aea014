package validation

import (
	"context"

	"graphguard/internal/dsl"
	"graphguard/internal/mo"
	"graphguard/internal/vo"
)

// walk — контекст одного вызова верхнего уровня. Не разделяется между вызовами.
type walk struct {
	ctx        context.Context
	op         Operation
	root       *vo.Entity
	rootSchema *dsl.Entity
	forced     forcedSet

	// сущности этого графа, которых ещё нет в хранилище (по указателю: у новых нет id)
	newEntities map[*vo.Entity]struct{}
	// сущности на текущем пути рекурсии
	visiting map[*vo.Entity]struct{}

	failures Failures
}

func newWalk(ctx context.Context, op Operation, root *vo.Entity, schema *dsl.Entity, forced []string) *walk {
	return &walk{
		ctx:         ctx,
		op:          op,
		root:        root,
		rootSchema:  schema,
		forced:      newForcedSet(forced),
		newEntities: map[*vo.Entity]struct{}{},
		visiting:    map[*vo.Entity]struct{}{},
	}
}

func (w *walk) markNew(e *vo.Entity) { w.newEntities[e] = struct{}{} }

func (w *walk) isNew(e *vo.Entity) bool {
	_, ok := w.newEntities[e]
	return ok
}

func (w *walk) fail(code, entity, path, caption string, args ...any) {
	w.failures = append(w.failures, newFailure(code, entity, path, caption, args...))
}

// excludeRoot — исключить сам корень из поиска конфликтов при обновлении
func (w *walk) excludeRoot(filter *mo.MO) *mo.MO {
	if w.root != nil && w.root.HasID() {
		filter.NotEqual(vo.KeyID, w.root.ID)
	}
	return filter
}

// caption — подпись атрибута по пути от корня
func (v *Validator) caption(w *walk, path string) string {
	return CaptionPath(v.reg, w.rootSchema, path)
}
