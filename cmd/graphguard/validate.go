package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"graphguard/internal/app"
	"graphguard/internal/config"
	"graphguard/internal/dsl"
	"graphguard/internal/validation"
	"graphguard/internal/vo"

	"github.com/spf13/cobra"
)

var validateFlags struct {
	seed       string
	store      string
	db         string
	sqlitePath string
	mode       string
	entity     string
	id         string
	force      []string
	format     string
}

// errInvalid: документ не прошёл проверку; вывод уже напечатан
var errInvalid = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate [FILE]",
	Short: "Validate a JSON document or a delete",
	Long: `Validate one entity graph the same way the HTTP endpoint does.

The document is read from FILE or stdin. Storage-backed checks (unique,
reference existence, used_by) run against the selected store, which for
the default in-memory store holds only the --seed records.

Examples:
  # Insert check against seed data
  graphguard validate --entity billing.Invoice --seed seed/ invoice.json

  # Update check forcing required on a nested path
  graphguard validate --mode update --entity billing.Invoice --force 'lines[*].qty' invoice.json

  # Delete check against a live database
  graphguard validate --mode delete --entity billing.Invoice --id I-1 \
      --store postgres --db postgres://localhost/app`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateDocument,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	f := validateCmd.Flags()
	f.StringVar(&validateFlags.seed, "seed", "", "seed directory loaded into the store")
	f.StringVar(&validateFlags.store, "store", "memory", "store: memory, sqlite, postgres")
	f.StringVar(&validateFlags.db, "db", "", "Postgres URL (store=postgres)")
	f.StringVar(&validateFlags.sqlitePath, "sqlite", "graphguard.db", "SQLite file (store=sqlite)")
	f.StringVarP(&validateFlags.mode, "mode", "m", "insert", "operation: insert, update, delete")
	f.StringVarP(&validateFlags.entity, "entity", "e", "", "entity type (module.Entity)")
	f.StringVar(&validateFlags.id, "id", "", "record id (mode=delete)")
	f.StringSliceVar(&validateFlags.force, "force", nil, "forced required paths (mode=update)")
	f.StringVar(&validateFlags.format, "format", "text", "output format: text, json")
	_ = validateCmd.MarkFlagRequired("entity")
}

func validateDocument(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	level := "error"
	if verbose {
		level = "debug"
	}
	log := app.NewLogger(cmd.ErrOrStderr(), level, "text")

	reg, enums, issues, err := app.LoadSchema(dslDir, enumsDir)
	if err != nil {
		return err
	}
	for _, is := range issues {
		log.Warn("schema issue", "entity", is.Entity, "field", is.Field, "code", is.Code, "msg", is.Message)
	}
	schema, ok := reg.Lookup(validateFlags.entity)
	if !ok {
		return fmt.Errorf("unknown entity %q", validateFlags.entity)
	}

	cfg := config.Config{
		Store:       validateFlags.store,
		DBURL:       validateFlags.db,
		SQLitePath:  validateFlags.sqlitePath,
		SeedDir:     validateFlags.seed,
		AutoMigrate: validateFlags.store == "sqlite",
		LogFormat:   "text",
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	backend, err := app.Open(cfg, log, nil)
	if err != nil {
		return err
	}
	defer backend.Close()

	eng, err := backend.Build(ctx, reg, enums)
	if err != nil {
		return err
	}

	var fs validation.Failures
	switch validateFlags.mode {
	case "delete":
		if validateFlags.id == "" {
			return fmt.Errorf("--id is required for mode=delete")
		}
		fs, err = eng.Validator.ValidateForDelete(ctx, schema.FQN(), validateFlags.id)
	case "insert", "update":
		e, derr := readEntity(cmd, args, reg, schema.FQN())
		if derr != nil {
			return derr
		}
		if validateFlags.mode == "update" {
			fs, err = eng.Validator.ValidateForUpdate(ctx, e, validateFlags.force...)
		} else {
			fs, err = eng.Validator.ValidateForInsert(ctx, e)
		}
	default:
		return fmt.Errorf("unknown mode %q", validateFlags.mode)
	}
	if err != nil {
		return err
	}
	if err := printFailures(cmd.OutOrStdout(), fs); err != nil {
		return err
	}
	if len(fs) > 0 {
		return errInvalid
	}
	return nil
}

// readEntity читает JSON из файла или stdin и декодирует его по схеме
func readEntity(cmd *cobra.Command, args []string, reg *dsl.Registry, typ string) (*vo.Entity, error) {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	var doc map[string]any
	dec := json.NewDecoder(in)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("invalid JSON: expected an object")
	}
	return vo.Decode(reg, typ, doc)
}

func printFailures(out io.Writer, fs validation.Failures) error {
	if validateFlags.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if fs == nil {
			fs = validation.Failures{}
		}
		return enc.Encode(map[string]any{"valid": len(fs) == 0, "errors": fs})
	}
	if len(fs) == 0 {
		fmt.Fprintln(out, "✓ valid")
		return nil
	}
	for _, f := range fs {
		fmt.Fprintln(out, f.String())
	}
	return nil
}
