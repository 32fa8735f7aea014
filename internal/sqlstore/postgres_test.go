package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"graphguard/internal/mo"
	"graphguard/internal/vo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func writeSeed(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("graphguard"),
		postgres.WithUsername("graphguard"),
		postgres.WithPassword("graphguard"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(Postgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, Postgres, testRegistry(t), nil)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	_, err = s.Put(ctx, vo.New("shop.Customer").WithID("c1").With("name", "Ann"))
	require.NoError(t, err)
	_, err = s.Put(ctx, vo.New("shop.Order").WithID("o1").With("number", "A-1").
		With("customer", vo.Ref("shop.Customer", "c1")))
	require.NoError(t, err)

	ids, err := s.FindIDs(ctx, "shop.Order", mo.New().Equal("customer", "c1"), nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, ids)

	e, err := s.FindByID(ctx, "shop.Customer", "c1", nil)
	require.NoError(t, err)
	require.NotNil(t, e)
	name, _ := e.Get("name")
	assert.Equal(t, "Ann", name)
}
