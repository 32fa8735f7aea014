package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopDSL = `
module shop

entity Product:
  sku: string required unique caption="SKU"
  price: decimal required min=0
  kind: enum catalog=kind
  constraints:
    used_by(OrderLine.product)

entity OrderLine:
  product: ref[Product] depends_on
  qty: int required min=1
`

const kindYAML = `
name: kind
items:
  - code: goods
  - code: service
`

type workspace struct {
	dsl, enums, seed, dir string
}

func newWorkspace(t *testing.T, schema string) workspace {
	t.Helper()
	root := t.TempDir()
	ws := workspace{
		dsl:   filepath.Join(root, "dsl"),
		enums: filepath.Join(root, "enums"),
		seed:  filepath.Join(root, "seed"),
		dir:   root,
	}
	for _, d := range []string{ws.dsl, ws.enums, ws.seed} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	ws.write(t, filepath.Join("dsl", "shop.dsl"), schema)
	ws.write(t, filepath.Join("enums", "kind.yaml"), kindYAML)
	ws.write(t, filepath.Join("seed", "shop.Product.json"), `[{"id":"P1","sku":"A-1","price":"10.00","kind":"goods"}]`)
	ws.write(t, filepath.Join("seed", "shop.OrderLine.json"), `[{"id":"L1","product":"P1","qty":2}]`)
	return ws
}

func (ws workspace) write(t *testing.T, rel, body string) string {
	t.Helper()
	p := filepath.Join(ws.dir, rel)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// run выполняет команду с чистыми флагами и возвращает stdout
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	lintFlags.format = "text"
	validateFlags.seed, validateFlags.store, validateFlags.mode = "", "memory", "insert"
	validateFlags.id, validateFlags.format, validateFlags.force = "", "text", nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "GraphGuard "+Version)
	assert.Contains(t, out, "Go Version:")
}

func TestLint(t *testing.T) {
	ws := newWorkspace(t, shopDSL)

	out, err := run(t, "", "lint", "--dsl", ws.dsl, "--enums", ws.enums)
	require.NoError(t, err)
	assert.Contains(t, out, "2 entities, no issues")

	broken := newWorkspace(t, strings.Replace(shopDSL, "ref[Product] depends_on", "ref[Product]", 1))
	out, err = run(t, "", "lint", "--dsl", broken.dsl, "--enums", broken.enums, "--format", "json")
	require.Error(t, err)

	var res struct {
		Count  int `json:"count"`
		Issues []struct {
			Entity string `json:"entity"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, len(res.Issues), res.Count)
	assert.NotZero(t, res.Count)
}

func TestLintMissingDSL(t *testing.T) {
	_, err := run(t, "", "lint", "--dsl", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	ws := newWorkspace(t, shopDSL)
	doc := ws.write(t, "dup.json", `{"sku":"A-1","price":"-1","kind":"goods"}`)
	base := []string{"validate", "--dsl", ws.dsl, "--enums", ws.enums, "--seed", ws.seed, "--entity", "shop.Product"}

	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr bool
		want    []string
	}{
		{
			name:  "valid insert from stdin",
			stdin: `{"sku":"B-2","price":"5.50","kind":"service"}`,
			args:  nil,
			want:  []string{"✓ valid"},
		},
		{
			name:    "unique and range from file",
			args:    []string{doc},
			wantErr: true,
			want:    []string{"shop.Product.sku", "shop.Product.price"},
		},
		{
			name:    "bad enum code",
			stdin:   `{"sku":"C-3","price":"1","kind":"barter"}`,
			wantErr: true,
			want:    []string{"shop.Product.kind"},
		},
		{
			name:    "delete blocked by order line",
			args:    []string{"--mode", "delete", "--id", "P1"},
			wantErr: true,
			want:    []string{"L1"},
		},
		{
			name: "delete of unreferenced record",
			args: []string{"--mode", "delete", "--id", "P9"},
			want: []string{"✓ valid"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.stdin, append(append([]string{}, base...), tt.args...)...)
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvalid)
			} else {
				require.NoError(t, err)
			}
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestValidateJSONOutput(t *testing.T) {
	ws := newWorkspace(t, shopDSL)
	out, err := run(t, `{"sku":"A-1","price":"3"}`,
		"validate", "--dsl", ws.dsl, "--enums", ws.enums, "--seed", ws.seed,
		"--entity", "shop.Product", "--format", "json")
	require.ErrorIs(t, err, errInvalid)

	var res struct {
		Valid  bool `json:"valid"`
		Errors []struct {
			Code  string `json:"code"`
			Field string `json:"field"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "unique_violation", res.Errors[0].Code)
	assert.Equal(t, "sku", res.Errors[0].Field)
}

func TestValidateUsageErrors(t *testing.T) {
	ws := newWorkspace(t, shopDSL)
	base := []string{"validate", "--dsl", ws.dsl, "--enums", ws.enums, "--entity"}

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"unknown entity", "{}", []string{"shop.Ghost"}, "unknown entity"},
		{"unknown mode", "{}", []string{"shop.Product", "--mode", "upsert"}, "unknown mode"},
		{"delete without id", "", []string{"shop.Product", "--mode", "delete"}, "--id is required"},
		{"broken json", "{", []string{"shop.Product"}, "invalid JSON"},
		{"type mismatch", `{"sku":1}`, []string{"shop.Product"}, "sku"},
		{"unknown store", "{}", []string{"shop.Product", "--store", "mongo"}, "unknown store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.stdin, append(append([]string{}, base...), tt.args...)...)
			require.Error(t, err)
			assert.NotErrorIs(t, err, errInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
