package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port     string `json:"port"`
	DSLDir   string `json:"dslDir"`
	EnumsDir string `json:"enumsDir"`
	SeedDir  string `json:"seedDir"`

	// Хранилище для проверок через Finder: memory | postgres | sqlite
	Store       string `json:"store"`
	DBURL       string `json:"dbUrl"`
	SQLitePath  string `json:"sqlitePath"`
	AutoMigrate bool   `json:"autoMigrate"`

	LogLevel       string `json:"logLevel"`  // debug | info | warn | error
	LogFormat      string `json:"logFormat"` // text | json
	MetricsEnabled bool   `json:"metricsEnabled"`
}

const envPrefix = "GRAPHGUARD_"

func def() Config {
	return Config{
		Port:     "8080",
		DSLDir:   "dsl",
		EnumsDir: "reference/enums",
		SeedDir:  "",

		Store:       "memory",
		DBURL:       "",
		SQLitePath:  "graphguard.db",
		AutoMigrate: false,

		LogLevel:       "info",
		LogFormat:      "text",
		MetricsEnabled: true,
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(envPrefix + k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func parseBool(v string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги командной строки.
func LoadWithPath(jsonPath string) (Config, error) {
	return Load(jsonPath, os.Args[1:])
}

// Load — то же, но с явными аргументами (для тестов и встраивания)
func Load(jsonPath string, args []string) (Config, error) {
	// -config может переопределить путь к файлу: ищем его до разбора остальных флагов
	pre := flag.NewFlagSet("config", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	configPath := pre.String("config", jsonPath, "")
	_ = pre.Parse(filterConfigFlag(args))

	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(*configPath); err == nil && !st.IsDir() {
		c2, err := loadJSON(*configPath)
		if err != nil {
			return cfg, fmt.Errorf("config %s: %w", *configPath, err)
		}
		cfg = c2
	}

	// ENV overrides
	cfg.Port = getenv("PORT", cfg.Port)
	cfg.DSLDir = getenv("DSL_DIR", cfg.DSLDir)
	cfg.EnumsDir = getenv("ENUMS_DIR", cfg.EnumsDir)
	cfg.SeedDir = getenv("SEED_DIR", cfg.SeedDir)
	cfg.Store = getenv("STORE", cfg.Store)
	cfg.DBURL = getenv("DB_URL", cfg.DBURL)
	cfg.SQLitePath = getenv("SQLITE_PATH", cfg.SQLitePath)
	cfg.AutoMigrate = getenvBool("AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsEnabled = getenvBool("METRICS_ENABLED", cfg.MetricsEnabled)

	// Flags overrides
	fs := flag.NewFlagSet("graphguard", flag.ContinueOnError)
	fs.String("config", *configPath, "Path to config JSON")
	port := fs.String("port", cfg.Port, "HTTP port")
	dsl := fs.String("dsl", cfg.DSLDir, "Path to DSL directory")
	enums := fs.String("enums", cfg.EnumsDir, "Path to enums directory")
	seed := fs.String("seed", cfg.SeedDir, "Path to seed directory (empty = no seed)")
	store := fs.String("store", cfg.Store, "Store: memory | postgres | sqlite")
	db := fs.String("db", cfg.DBURL, "Postgres URL (store=postgres)")
	sqlitePath := fs.String("sqlite", cfg.SQLitePath, "SQLite file (store=sqlite)")
	auto := fs.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Create missing tables on start (true/false)")
	logLevel := fs.String("log-level", cfg.LogLevel, "Log level: debug | info | warn | error")
	logFormat := fs.String("log-format", cfg.LogFormat, "Log format: text | json")
	metrics := fs.String("metrics", strconv.FormatBool(cfg.MetricsEnabled), "Expose /metrics (true/false)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DSLDir = strings.TrimSpace(*dsl)
	cfg.EnumsDir = strings.TrimSpace(*enums)
	cfg.SeedDir = strings.TrimSpace(*seed)
	cfg.Store = strings.ToLower(strings.TrimSpace(*store))
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.SQLitePath = strings.TrimSpace(*sqlitePath)
	if b, ok := parseBool(*auto); ok {
		cfg.AutoMigrate = b
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(*logLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(*logFormat))
	if b, ok := parseBool(*metrics); ok {
		cfg.MetricsEnabled = b
	}

	return cfg, cfg.Validate()
}

// Validate — согласованность ключей
func (c Config) Validate() error {
	switch c.Store {
	case "memory", "sqlite":
	case "postgres":
		if c.DBURL == "" {
			return fmt.Errorf("store=postgres requires dbUrl")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// filterConfigFlag оставляет только -config/--config, чтобы предварительный разбор
// не спотыкался о флаги, которые он не знает
func filterConfigFlag(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := strings.TrimLeft(a, "-")
		switch {
		case name == "config" && strings.HasPrefix(a, "-") && i+1 < len(args):
			out = append(out, a, args[i+1])
			i++
		case strings.HasPrefix(name, "config=") && strings.HasPrefix(a, "-"):
			out = append(out, a)
		}
	}
	return out
}
