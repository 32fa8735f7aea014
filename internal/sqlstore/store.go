// Package sqlstore хранит записи в Postgres или SQLite.
// Каждая сущность хранится в таблице с id и JSON-документом; фильтр по id уходит в SQL,
// остальное дерево условий вычисляется над декодированными документами.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"graphguard/internal/dsl"
	"graphguard/internal/mo"
	"graphguard/internal/storage"
	"graphguard/internal/vo"
)

// Store реализует storage.Finder поверх database/sql
type Store struct {
	db  *sql.DB
	d   Dialect
	reg *dsl.Registry
	ids *storage.IDs
	log *slog.Logger
}

func New(db *sql.DB, d Dialect, reg *dsl.Registry, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, d: d, reg: reg, ids: storage.NewIDs(), log: log}
}

// Migrate создаёт таблицы для всех сущностей реестра
func (s *Store) Migrate(ctx context.Context) error {
	ddl, err := GenerateDDL(s.reg, s.d)
	if err != nil {
		return err
	}
	return ApplyDDL(ctx, s.db, ddl, s.log)
}

func (s *Store) schema(typ string) (*dsl.Entity, error) {
	e, ok := s.reg.Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrUnknownType, typ)
	}
	return e, nil
}

// Put: upsert документа; без id назначается ULID, повторная запись повышает версию
func (s *Store) Put(ctx context.Context, e *vo.Entity) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil entity")
	}
	schema, err := s.schema(e.Type)
	if err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = s.ids.Next()
	}
	e.Type = schema.FQN()
	e.InsertWithID = false

	doc, err := json.Marshal(vo.Encode(s.reg, e))
	if err != nil {
		return "", fmt.Errorf("encode %s/%s: %w", e.Type, e.ID, err)
	}
	now := time.Now().UTC()
	p := s.d.Placeholder
	q := fmt.Sprintf(`insert into %[1]s ("id", "version", "created_at", "updated_at", "doc")
values (%[2]s, 1, %[3]s, %[4]s, %[5]s)
on conflict ("id") do update set "version" = %[1]s."version" + 1, "updated_at" = excluded."updated_at", "doc" = excluded."doc"`,
		s.d.Table(schema), p(1), p(2), p(3), p(4))
	if _, err := s.db.ExecContext(ctx, q, e.ID, now, now, string(doc)); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", e.Type, e.ID, err)
	}
	return e.ID, nil
}

// Delete удаляет запись; отсутствие записи не ошибка
func (s *Store) Delete(ctx context.Context, typ, id string) error {
	schema, err := s.schema(typ)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`delete from %s where "id" = %s`, s.d.Table(schema), s.d.Placeholder(1))
	_, err = s.db.ExecContext(ctx, q, id)
	return err
}

// idPushdown: условия на id верхнего AND-уровня, которые можно отдать в SQL.
// Отбор только сужается: всё дерево потом всё равно вычисляется целиком.
func (s *Store) idPushdown(filter *mo.MO) (string, []any) {
	if filter == nil || (filter.Mode() != mo.And && len(filter.Conditions())+len(filter.Subs()) > 1) {
		return "", nil
	}
	var (
		parts []string
		args  []any
	)
	for _, c := range filter.Conditions() {
		if c.Attr != vo.KeyID {
			continue
		}
		switch c.Op {
		case mo.OpEqual, mo.OpNotEqual:
			id, ok := c.Value.(string)
			if !ok {
				continue
			}
			args = append(args, id)
			op := "="
			if c.Op == mo.OpNotEqual {
				op = "<>"
			}
			parts = append(parts, fmt.Sprintf(`"id" %s %s`, op, s.d.Placeholder(len(args))))
		case mo.OpIn:
			ids := make([]any, 0, len(c.Values))
			for _, v := range c.Values {
				if id, ok := v.(string); ok {
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 || len(ids) != len(c.Values) {
				continue
			}
			ph := make([]string, 0, len(ids))
			for _, id := range ids {
				args = append(args, id)
				ph = append(ph, s.d.Placeholder(len(args)))
			}
			parts = append(parts, fmt.Sprintf(`"id" in (%s)`, strings.Join(ph, ", ")))
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " where " + strings.Join(parts, " and "), args
}

func (s *Store) selectEntities(ctx context.Context, typ string, filter *mo.MO, orderBy []mo.Order) ([]*vo.Entity, error) {
	if filter != nil && filter.Err() != nil {
		return nil, filter.Err()
	}
	schema, err := s.schema(typ)
	if err != nil {
		return nil, err
	}
	where, args := s.idPushdown(filter)
	q := fmt.Sprintf(`select "id", "doc" from %s%s order by "id"`, s.d.Table(schema), where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", schema.FQN(), err)
	}
	defer rows.Close()

	var out []*vo.Entity
	for rows.Next() {
		e, err := s.scan(schema, rows)
		if err != nil {
			return nil, err
		}
		ok, err := storage.Match(filter, e)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", schema.FQN(), err)
		}
		if ok {
			out = append(out, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	storage.Sort(out, orderBy)
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(schema *dsl.Entity, row scanner) (*vo.Entity, error) {
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", schema.FQN(), id, err)
	}
	e, err := vo.Decode(s.reg, schema.FQN(), doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", schema.FQN(), id, err)
	}
	e.ID = id
	return e, nil
}

func (s *Store) FindIDs(ctx context.Context, typ string, filter *mo.MO, orderBy []mo.Order, offset, limit int) ([]string, error) {
	list, err := s.selectEntities(ctx, typ, filter, orderBy)
	if err != nil {
		return nil, err
	}
	page := storage.Page(list, offset, limit)
	ids := make([]string, 0, len(page))
	for _, e := range page {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (s *Store) FindList(ctx context.Context, typ string, filter *mo.MO, orderBy []mo.Order, attributes []string, offset, limit int) ([]*vo.Entity, error) {
	list, err := s.selectEntities(ctx, typ, filter, orderBy)
	if err != nil {
		return nil, err
	}
	page := storage.Page(list, offset, limit)
	out := make([]*vo.Entity, 0, len(page))
	for _, e := range page {
		out = append(out, storage.Project(e, attributes))
	}
	return out, nil
}

func (s *Store) FindByID(ctx context.Context, typ, id string, attributes []string) (*vo.Entity, error) {
	schema, err := s.schema(typ)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	q := fmt.Sprintf(`select "id", "doc" from %s where "id" = %s`, s.d.Table(schema), s.d.Placeholder(1))
	e, err := s.scan(schema, s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return storage.Project(e, attributes), nil
}

func (s *Store) FindUniqueMatch(ctx context.Context, typ string, filter *mo.MO, attributes []string) (*vo.Entity, error) {
	list, err := s.selectEntities(ctx, typ, filter, nil)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return storage.Project(list[0], attributes), nil
	default:
		return nil, fmt.Errorf("%s: %w (%d)", typ, storage.ErrNotUnique, len(list))
	}
}
