package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"graphguard/internal/config"
	"graphguard/internal/vo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const crmDSL = `
module crm

entity Lead:
  email: string required unique
  stage: enum catalog=stage
`

const stageYAML = `
name: stage
items:
  - code: new
  - code: won
`

func writeFiles(t *testing.T) (dslDir, enumsDir, seedDir string) {
	t.Helper()
	root := t.TempDir()
	dslDir = filepath.Join(root, "dsl")
	enumsDir = filepath.Join(root, "enums")
	seedDir = filepath.Join(root, "seed")
	for _, d := range []string{dslDir, enumsDir, seedDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dslDir, "crm.dsl"), []byte(crmDSL), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(enumsDir, "stage.yaml"), []byte(stageYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "crm.Lead.json"), []byte(`[{"id":"L1","email":"a@x.io","stage":"new"}]`), 0o644))
	return dslDir, enumsDir, seedDir
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	NewLogger(&buf, "bogus", "text").Info("fallback")
	assert.Contains(t, buf.String(), "msg=fallback")
}

func TestBuildBackends(t *testing.T) {
	ctx := context.Background()
	dslDir, enumsDir, seedDir := writeFiles(t)

	reg, enums, issues, err := LoadSchema(dslDir, enumsDir)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.True(t, enums.Has("stage"))

	stores := map[string]config.Config{
		"memory": {Store: "memory", SeedDir: seedDir},
		"sqlite": {Store: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "gg.db"), AutoMigrate: true, SeedDir: seedDir},
	}
	for name, cfg := range stores {
		t.Run(name, func(t *testing.T) {
			b, err := Open(cfg, NewLogger(&bytes.Buffer{}, "error", "text"), nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })

			eng, err := b.Build(ctx, reg, enums)
			require.NoError(t, err)

			found, err := eng.Finder.FindByID(ctx, "crm.Lead", "L1", nil)
			require.NoError(t, err)
			require.NotNil(t, found)

			fs, err := eng.Validator.ValidateForInsert(ctx, vo.New("Lead").With("email", "a@x.io").With("stage", "lost"))
			require.NoError(t, err)
			require.Len(t, fs, 2)
			assert.True(t, fs.HasCode("unique_violation"))
			assert.True(t, fs.HasCode("enum_invalid"))
		})
	}
}

func TestOpenUnknownStore(t *testing.T) {
	_, err := Open(config.Config{Store: "redis"}, NewLogger(&bytes.Buffer{}, "info", "text"), nil)
	assert.ErrorContains(t, err, "unknown store")
}
