package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Dialect: различия Postgres и SQLite, которые видны хранилищу
type Dialect struct {
	Name   string
	Driver string
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx"}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite"}
)

// DialectFor: диалект по имени из конфига
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "pg", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unknown sql dialect %q", name)
	}
}

// Placeholder: n-й параметр запроса (с 1)
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) docType() string {
	if d == Postgres {
		return "jsonb"
	}
	return "text"
}

func (d Dialect) timeType() string {
	if d == Postgres {
		return "timestamp with time zone"
	}
	return "timestamp"
}

// Open открывает пул и проверяет соединение
func Open(d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if d == SQLite {
		// у SQLite один писатель
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
