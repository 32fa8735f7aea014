package reference

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const currencyYAML = `
name: currency
items:
  - code: EUR
    name: Euro
    order: 2
  - code: USD
    name: US Dollar
    order: 1
  - code: DEM
    name: Deutsche Mark
    order: 3
    valid_to: "2001-12-31"
`

func TestLoadEnumCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "currency.yaml"), []byte(currencyYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "country.yml"), []byte("items:\n  - code: LT\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("skip"), 0o644))

	cat, err := LoadEnumCatalog(dir)
	require.NoError(t, err)
	assert.Len(t, cat, 2)
	assert.True(t, cat.Has("country"), "name falls back to file name")
	assert.Equal(t, []string{"USD", "EUR", "DEM"}, cat["currency"].Codes())
}

func TestLoadEnumCatalogMissingDir(t *testing.T) {
	cat, err := LoadEnumCatalog(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, cat)
}

func TestEnumDirectoryAllows(t *testing.T) {
	d := EnumDirectory{Items: []EnumItem{
		{Code: "EUR"},
		{Code: "DEM", ValidTo: "2001-12-31"},
		{Code: "XYZ", ValidFrom: "2030-01-01"},
	}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, d.Allows("EUR", now))
	assert.False(t, d.Allows("DEM", now))
	assert.True(t, d.Allows("DEM", time.Date(2001, 12, 31, 15, 0, 0, 0, time.UTC)))
	assert.False(t, d.Allows("XYZ", now))
	assert.False(t, d.Allows("GBP", now))
}
