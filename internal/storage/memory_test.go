package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"graphguard/internal/dsl"
	"graphguard/internal/mo"
	"graphguard/internal/vo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopDSL = `
module shop

entity Customer:
  name: string required
  rank: int

entity Order:
  number: string
  customer: ref[Customer]
  lines: array[ref[Line]] rel=composition

entity Line:
  sku: string
`

func newStore(t *testing.T) (*Memory, *dsl.Registry) {
	t.Helper()
	reg, err := dsl.ParseRegistry(strings.NewReader(shopDSL))
	require.NoError(t, err)
	return NewMemory(reg), reg
}

func put(t *testing.T, s *Memory, e *vo.Entity) string {
	t.Helper()
	id, err := s.Put(context.Background(), e)
	require.NoError(t, err)
	return id
}

func TestMemoryPutAssignsULID(t *testing.T) {
	s, _ := newStore(t)
	e := vo.New("Customer").With("name", "Ann")
	id := put(t, s, e)
	assert.Len(t, id, 26)
	assert.Equal(t, "shop.Customer", e.Type)

	put(t, s, e)
	rec, ok := s.Record("shop.Customer", id)
	require.True(t, ok)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, 1, s.Count("Customer"))

	_, err := s.Put(context.Background(), vo.New("shop.Nope"))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestMemoryFind(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	put(t, s, vo.New("shop.Customer").WithID("c1").With("name", "Ann").With("rank", int64(2)))
	put(t, s, vo.New("shop.Customer").WithID("c2").With("name", "Bob"))
	put(t, s, vo.New("shop.Customer").WithID("c3").With("name", "Cid").With("rank", int64(1)))
	put(t, s, vo.New("shop.Order").WithID("o1").
		With("customer", vo.Ref("shop.Customer", "c1")).
		With("lines", []*vo.Entity{vo.New("shop.Line").With("sku", "A"), vo.New("shop.Line").With("sku", "B")}))

	ids, err := s.FindIDs(ctx, "shop.Customer", nil, []mo.Order{{Attr: "rank"}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c1", "c2"}, ids, "null rank goes last")

	ids, err = s.FindIDs(ctx, "shop.Customer", nil, []mo.Order{{Attr: "rank", Desc: true}}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, ids)

	ids, err = s.FindIDs(ctx, "shop.Order", mo.New().Equal("lines.sku", "B"), nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, ids)

	ids, err = s.FindIDs(ctx, "shop.Order", mo.New().Equal("customer", "c1"), nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, ids)

	list, err := s.FindList(ctx, "shop.Customer", mo.New().Like("name", "%o%"), nil, []string{"name"}, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c2", list[0].ID)
	assert.Equal(t, []string{"name"}, list[0].Names())

	got, err := s.FindByID(ctx, "shop.Customer", "c1", []string{"rank"})
	require.NoError(t, err)
	rank, _ := got.Get("rank")
	assert.Equal(t, int64(2), rank)
	_, hasName := got.Get("name")
	assert.False(t, hasName)

	got, err = s.FindByID(ctx, "shop.Customer", "zzz", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryFindUniqueMatch(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	put(t, s, vo.New("shop.Customer").WithID("c1").With("name", "Ann"))
	put(t, s, vo.New("shop.Customer").WithID("c2").With("name", "Ann"))

	_, err := s.FindUniqueMatch(ctx, "shop.Customer", mo.New().Equal("name", "Ann"), nil)
	assert.ErrorIs(t, err, ErrNotUnique)

	e, err := s.FindUniqueMatch(ctx, "shop.Customer", mo.New().Equal("name", "Ann").NotEqual("id", "c1"), nil)
	require.NoError(t, err)
	assert.Equal(t, "c2", e.ID)

	e, err = s.FindUniqueMatch(ctx, "shop.Customer", mo.New().Equal("name", "Zed"), nil)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestMemoryFilterErrors(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.FindIDs(context.Background(), "shop.Customer", mo.New().In("name"), nil, 0, 0)
	assert.ErrorIs(t, err, mo.ErrEmptyOperandSet)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.FindIDs(ctx, "shop.Customer", nil, nil, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.FindIDs(context.Background(), "nope.X", nil, nil, 0, 0)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestLoadSeed(t *testing.T) {
	s, reg := newStore(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.Customer.json"),
		[]byte(`[{"id":"c1","name":"Ann"},{"name":"Bob"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.Order.json"),
		[]byte(`[{"id":"o1","customer":"c1","lines":[{"sku":"A"}]}]`), 0o644))

	n, err := LoadSeed(context.Background(), reg, dir, s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, s.Count("shop.Customer"))

	n, err = LoadSeed(context.Background(), reg, filepath.Join(dir, "missing"), s)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.Ghost.json"), []byte(`[]`), 0o644))
	_, err = LoadSeed(context.Background(), reg, dir, s)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestPage(t *testing.T) {
	list := []int{1, 2, 3, 4}
	assert.Equal(t, []int{2, 3}, Page(list, 1, 2))
	assert.Equal(t, []int{3, 4}, Page(list, 2, 0))
	assert.Empty(t, Page(list, 10, 1))
}
