// Package app собирает процесс: логгер, схема, хранилище и валидатор по конфигу.
// Общая для HTTP-сервера и CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"graphguard/internal/api"
	"graphguard/internal/config"
	"graphguard/internal/dsl"
	"graphguard/internal/reference"
	"graphguard/internal/sqlstore"
	"graphguard/internal/storage"
	"graphguard/internal/validation"
)

// NewLogger: slog по уровню и формату из конфига
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LoadSchema читает DSL и справочники и прогоняет линтер
func LoadSchema(dslDir, enumsDir string) (*dsl.Registry, reference.Catalog, []dsl.SchemaIssue, error) {
	entities, err := dsl.LoadAllEntities(dslDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load DSL: %w", err)
	}
	enums, err := reference.LoadEnumCatalog(enumsDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load enums: %w", err)
	}
	reg := dsl.NewRegistry(entities)
	return reg, enums, reg.Lint(enums.Has), nil
}

// Backend держит SQL-соединение на всё время жизни процесса.
// Хранилище и валидатор пересобираются на каждую схему (Build), соединение: нет.
type Backend struct {
	cfg     config.Config
	log     *slog.Logger
	obs     validation.Observer
	db      *sql.DB
	dialect sqlstore.Dialect
}

// Open: obs может быть nil
func Open(cfg config.Config, log *slog.Logger, obs validation.Observer) (*Backend, error) {
	b := &Backend{cfg: cfg, log: log, obs: obs}
	var dsn string
	switch cfg.Store {
	case "memory", "":
		return b, nil
	case "postgres":
		b.dialect, dsn = sqlstore.Postgres, cfg.DBURL
	case "sqlite":
		b.dialect, dsn = sqlstore.SQLite, cfg.SQLitePath
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	db, err := sqlstore.Open(b.dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b.dialect.Name, err)
	}
	b.db = db
	log.Info("store connected", "store", b.dialect.Name)
	return b, nil
}

// Build собирает Engine для схемы; подходит как api.Builder для reload
func (b *Backend) Build(ctx context.Context, reg *dsl.Registry, enums reference.Catalog) (*api.Engine, error) {
	var (
		finder storage.Finder
		putter storage.Putter
	)
	if b.db == nil {
		mem := storage.NewMemory(reg)
		finder, putter = mem, mem
	} else {
		st := sqlstore.New(b.db, b.dialect, reg, b.log)
		if b.cfg.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		finder, putter = st, st
	}

	if b.cfg.SeedDir != "" {
		n, err := storage.LoadSeed(ctx, reg, b.cfg.SeedDir, putter)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		b.log.Info("seed loaded", "dir", b.cfg.SeedDir, "records", n)
	}

	opts := []validation.Option{validation.WithLogger(b.log), validation.WithEnums(enums)}
	if b.obs != nil {
		opts = append(opts, validation.WithObserver(b.obs))
	}
	return &api.Engine{
		Registry:  reg,
		Enums:     enums,
		Finder:    finder,
		Validator: validation.New(reg, finder, opts...),
	}, nil
}

func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
