package main

import (
	"encoding/json"
	"fmt"

	"graphguard/internal/app"

	"github.com/spf13/cobra"
)

var lintFlags struct {
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the DSL schema for contradictions",
	Long: `Load every *.dsl file and enum catalog and report schema issues that
would otherwise surface as critical validation errors: unknown relationship
targets, used_by without depends_on, malformed bounds, missing catalogs.

Examples:
  # Lint the default directories
  graphguard lint

  # JSON output for CI/CD
  graphguard lint --dsl schema/ --format json`,
	RunE: lintSchema,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

func lintSchema(cmd *cobra.Command, args []string) error {
	reg, _, issues, err := app.LoadSchema(dslDir, enumsDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch lintFlags.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"issues": issues, "count": len(issues)}); err != nil {
			return err
		}
	case "text":
		for _, is := range issues {
			fmt.Fprintf(out, "%s.%s [%s] %s\n", is.Entity, is.Field, is.Code, is.Message)
		}
		if len(issues) == 0 {
			fmt.Fprintf(out, "✓ %d entities, no issues\n", reg.Len())
		}
	default:
		return fmt.Errorf("unknown format %q", lintFlags.format)
	}

	if len(issues) > 0 {
		return fmt.Errorf("schema has %d issue(s)", len(issues))
	}
	return nil
}
