package sqlstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"graphguard/internal/dsl"
	"graphguard/internal/mo"
	"graphguard/internal/storage"
	"graphguard/internal/vo"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopDSL = `
module shop

entity Customer:
  name: string required unique
  rank: int

entity Order:
  number: string
  total: decimal
  customer: ref[Customer]
  lines: array[ref[Line]] rel=composition
  constraints:
    unique(number, customer)

entity Line:
  sku: string
`

func testRegistry(t *testing.T) *dsl.Registry {
	t.Helper()
	reg, err := dsl.ParseRegistry(strings.NewReader(shopDSL))
	require.NoError(t, err)
	return reg
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	reg := testRegistry(t)
	db, err := Open(SQLite, filepath.Join(t.TempDir(), "graphguard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, SQLite, reg, nil)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestGenerateDDL(t *testing.T) {
	reg := testRegistry(t)

	pg, err := GenerateDDL(reg, Postgres)
	require.NoError(t, err)
	assert.Contains(t, pg["000_schemas"], `create schema if not exists "shop";`)
	assert.Contains(t, pg["100_shop.Customer"], `create table if not exists "shop"."customers"`)
	assert.Contains(t, pg["100_shop.Customer"], `"doc" jsonb not null`)
	assert.Contains(t, pg["100_shop.Customer"], `(doc->>'name')`)
	assert.Contains(t, pg["100_shop.Order"], `(doc->>'number')`)
	assert.Contains(t, pg["100_shop.Order"], `(doc->>'customer')`)

	lite, err := GenerateDDL(reg, SQLite)
	require.NoError(t, err)
	_, hasSchemas := lite["000_schemas"]
	assert.False(t, hasSchemas)
	assert.Contains(t, lite["100_shop.Customer"], `"shop__customers"`)
	assert.Contains(t, lite["100_shop.Customer"], `json_extract(doc, '$.name')`)
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("PG")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	assert.Equal(t, "$2", d.Placeholder(2))
	assert.Equal(t, "?", SQLite.Placeholder(2))
	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestIDPushdown(t *testing.T) {
	s := &Store{d: Postgres}
	where, args := s.idPushdown(mo.New().Equal("id", "a").In("id", "b", "c").Equal("name", "x"))
	assert.Equal(t, ` where "id" = $1 and "id" in ($2, $3)`, where)
	assert.Equal(t, []any{"a", "b", "c"}, args)

	where, _ = s.idPushdown(mo.New().AppendMode(mo.Or).Equal("id", "a").Equal("name", "x"))
	assert.Empty(t, where)

	where, args = s.idPushdown(mo.New().In("id", "a", 1))
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("create a;\ncreate b (\n  x\n);\n")
	assert.Equal(t, []string{"create a", "create b (\n  x\n)"}, got)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	// повторная миграция не падает
	require.NoError(t, s.Migrate(ctx))

	cid, err := s.Put(ctx, vo.New("Customer").With("name", "Ann").With("rank", int64(2)))
	require.NoError(t, err)
	_, err = s.Put(ctx, vo.New("shop.Customer").WithID("c2").With("name", "Bob"))
	require.NoError(t, err)
	_, err = s.Put(ctx, vo.New("shop.Order").WithID("o1").
		With("number", "A-1").
		With("total", decimal.RequireFromString("10.25")).
		With("customer", vo.Ref("shop.Customer", cid)).
		With("lines", []*vo.Entity{vo.New("shop.Line").With("sku", "X")}))
	require.NoError(t, err)

	got, err := s.FindByID(ctx, "shop.Customer", cid, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	name, _ := got.Get("name")
	assert.Equal(t, "Ann", name)

	missing, err := s.FindByID(ctx, "shop.Customer", "nope", nil)
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := s.FindIDs(ctx, "shop.Order", mo.New().Equal("customer", cid).Equal("lines.sku", "X"), nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, ids)

	ids, err = s.FindIDs(ctx, "shop.Order", mo.New().GreaterThan("total", 10), nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, ids)

	ids, err = s.FindIDs(ctx, "shop.Customer", nil, []mo.Order{{Attr: "rank"}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{cid, "c2"}, ids)

	ids, err = s.FindIDs(ctx, "shop.Customer", mo.New().NotEqual("id", "c2"), nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{cid}, ids)

	list, err := s.FindList(ctx, "shop.Customer", mo.New().In("id", "c2"), nil, []string{"name"}, 0, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"name"}, list[0].Names())

	// upsert повышает версию и меняет документ
	_, err = s.Put(ctx, vo.New("shop.Customer").WithID("c2").With("name", "Ann"))
	require.NoError(t, err)
	_, err = s.FindUniqueMatch(ctx, "shop.Customer", mo.New().Equal("name", "Ann"), nil)
	assert.ErrorIs(t, err, storage.ErrNotUnique)

	require.NoError(t, s.Delete(ctx, "shop.Customer", "c2"))
	one, err := s.FindUniqueMatch(ctx, "shop.Customer", mo.New().Equal("name", "Ann"), nil)
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, cid, one.ID)

	_, err = s.FindIDs(ctx, "shop.Ghost", nil, nil, 0, 0)
	assert.ErrorIs(t, err, storage.ErrUnknownType)
}

func TestSQLiteStoreLoadsSeed(t *testing.T) {
	s := openSQLite(t)
	dir := t.TempDir()
	writeSeed(t, dir, "shop.Customer.json", `[{"id":"c1","name":"Ann"}]`)

	n, err := storage.LoadSeed(context.Background(), s.reg, dir, s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var _ storage.Finder = s
}
