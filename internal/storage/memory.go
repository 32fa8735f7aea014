package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"graphguard/internal/dsl"
	"graphguard/internal/mo"
	"graphguard/internal/vo"
)

// Record: сохранённая запись с метаданными версии
type Record struct {
	ID        string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Entity    *vo.Entity
}

// Memory хранит записи в памяти: FQN -> id -> запись
type Memory struct {
	mu   sync.RWMutex
	reg  *dsl.Registry
	data map[string]map[string]*Record
	ids  *IDs
}

// NewMemory готовит пустое хранилище для всех типов реестра
func NewMemory(reg *dsl.Registry) *Memory {
	s := &Memory{
		reg:  reg,
		data: make(map[string]map[string]*Record),
		ids:  NewIDs(),
	}
	for _, fqn := range reg.FQNs() {
		s.data[fqn] = make(map[string]*Record)
	}
	return s
}

func (s *Memory) resolve(typ string) (string, error) {
	e, ok := s.reg.Lookup(typ)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	return e.FQN(), nil
}

// Put сохраняет сущность; без id назначается новый ULID. Повторный Put по id: новая версия.
func (s *Memory) Put(_ context.Context, e *vo.Entity) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil entity")
	}
	fqn, err := s.resolve(e.Type)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.ids.Next()
	}
	e.Type = fqn
	e.InsertWithID = false
	now := time.Now().UTC()
	if rec, ok := s.data[fqn][e.ID]; ok {
		rec.Version++
		rec.UpdatedAt = now
		rec.Entity = e
		return e.ID, nil
	}
	s.data[fqn][e.ID] = &Record{ID: e.ID, Version: 1, CreatedAt: now, UpdatedAt: now, Entity: e}
	return e.ID, nil
}

// Delete удаляет запись; отсутствие записи не ошибка
func (s *Memory) Delete(_ context.Context, typ, id string) error {
	fqn, err := s.resolve(typ)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[fqn], id)
	return nil
}

// Count: число записей типа
func (s *Memory) Count(typ string) int {
	fqn, err := s.resolve(typ)
	if err != nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[fqn])
}

// Record: запись с метаданными (для админки и тестов)
func (s *Memory) Record(typ, id string) (*Record, bool) {
	fqn, err := s.resolve(typ)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[fqn][id]
	return rec, ok
}

// selectEntities отбирает записи типа по фильтру в порядке orderBy (по умолчанию по id)
func (s *Memory) selectEntities(ctx context.Context, typ string, filter *mo.MO, orderBy []mo.Order) ([]*vo.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filter != nil && filter.Err() != nil {
		return nil, filter.Err()
	}
	fqn, err := s.resolve(typ)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]*vo.Entity, 0, len(s.data[fqn]))
	for _, rec := range s.data[fqn] {
		all = append(all, rec.Entity)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	out := make([]*vo.Entity, 0, len(all))
	for _, e := range all {
		ok, err := Match(filter, e)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", fqn, err)
		}
		if ok {
			out = append(out, e)
		}
	}
	Sort(out, orderBy)
	return out, nil
}

func (s *Memory) FindIDs(ctx context.Context, typ string, filter *mo.MO, orderBy []mo.Order, offset, limit int) ([]string, error) {
	list, err := s.selectEntities(ctx, typ, filter, orderBy)
	if err != nil {
		return nil, err
	}
	page := Page(list, offset, limit)
	ids := make([]string, 0, len(page))
	for _, e := range page {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (s *Memory) FindList(ctx context.Context, typ string, filter *mo.MO, orderBy []mo.Order, attributes []string, offset, limit int) ([]*vo.Entity, error) {
	list, err := s.selectEntities(ctx, typ, filter, orderBy)
	if err != nil {
		return nil, err
	}
	page := Page(list, offset, limit)
	out := make([]*vo.Entity, 0, len(page))
	for _, e := range page {
		out = append(out, Project(e, attributes))
	}
	return out, nil
}

func (s *Memory) FindByID(ctx context.Context, typ, id string, attributes []string) (*vo.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fqn, err := s.resolve(typ)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	s.mu.RLock()
	rec, ok := s.data[fqn][id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return Project(rec.Entity, attributes), nil
}

func (s *Memory) FindUniqueMatch(ctx context.Context, typ string, filter *mo.MO, attributes []string) (*vo.Entity, error) {
	list, err := s.selectEntities(ctx, typ, filter, nil)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return Project(list[0], attributes), nil
	default:
		return nil, fmt.Errorf("%s: %w (%d)", typ, ErrNotUnique, len(list))
	}
}
