// Package storage описывает порт чтения, которым валидатор задаёт вопросы хранилищу,
// и хранилище в памяти для сидов, тестов и локального запуска.
package storage

import (
	"context"
	"errors"

	"graphguard/internal/mo"
	"graphguard/internal/vo"
)

var (
	// ErrNotUnique: FindUniqueMatch нашёл больше одной записи
	ErrNotUnique = errors.New("more than one record matches")
	// ErrUnknownType: тип сущности не зарегистрирован в хранилище
	ErrUnknownType = errors.New("unknown entity type")
)

// Finder: только чтение. Тип задаётся FQN сущности ("module.Entity").
// attributes == nil означает «все атрибуты»; limit <= 0: без ограничения.
type Finder interface {
	FindIDs(ctx context.Context, typ string, filter *mo.MO, orderBy []mo.Order, offset, limit int) ([]string, error)
	FindList(ctx context.Context, typ string, filter *mo.MO, orderBy []mo.Order, attributes []string, offset, limit int) ([]*vo.Entity, error)
	// FindByID возвращает nil, nil, если записи нет
	FindByID(ctx context.Context, typ, id string, attributes []string) (*vo.Entity, error)
	// FindUniqueMatch возвращает nil, nil, если ничего не подошло, и ErrNotUnique, если подошло несколько
	FindUniqueMatch(ctx context.Context, typ string, filter *mo.MO, attributes []string) (*vo.Entity, error)
}

// Putter: запись в хранилище; нужна только сидам и тестам, валидатор её не вызывает
type Putter interface {
	Put(ctx context.Context, e *vo.Entity) (string, error)
}
