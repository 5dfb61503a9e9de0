package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/ariefcatur/go-realtime-shop/internal/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileBackend(t *testing.T) (*FileBackend, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	return &FileBackend{Path: filepath.Join(t.TempDir(), "data", "products.json"), Log: log}, hook
}

func TestFileBackendMissingFileIsEmpty(t *testing.T) {
	b, _ := newFileBackend(t)

	doc, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orders.NewDocument(), doc)

	_, err = os.Stat(b.Path)
	assert.True(t, os.IsNotExist(err), "load must not write")

	require.NoError(t, New(b).Init(context.Background()))
	_, err = os.Stat(b.Path)
	require.NoError(t, err, "init creates the file")
}

func TestFileBackendCorruptFallsBackToEmpty(t *testing.T) {
	b, hook := newFileBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(b.Path), 0o755))
	require.NoError(t, os.WriteFile(b.Path, []byte("{not json"), 0o644))

	doc, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orders.NewDocument(), doc)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestFileBackendFillsMissingFields(t *testing.T) {
	b, _ := newFileBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(b.Path), 0o755))
	require.NoError(t, os.WriteFile(b.Path, []byte(`{"products":[{"id":3,"name":"Old","price":5,"stock":1}]}`), 0o644))

	doc, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), doc.NextProductID)
	assert.Equal(t, int64(1), doc.NextOrderID)
	assert.NotNil(t, doc.Orders)
}

func TestUpdatePersistsAndSkipsSaveOnError(t *testing.T) {
	b, _ := newFileBackend(t)
	s := New(b)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(doc *orders.Document) error {
		doc.AddProduct(orders.Product{Name: "Widget", Price: 10000, Stock: 2})
		return nil
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, func(doc *orders.Document) error {
		doc.Product(1).Stock = 0
		return boom
	})
	require.ErrorIs(t, err, boom)

	doc, err := s.View(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Products, 1)
	assert.Equal(t, 2, doc.Products[0].Stock)
}

func TestUpdateSerializesConcurrentWriters(t *testing.T) {
	b, _ := newFileBackend(t)
	s := New(b)
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, func(doc *orders.Document) error {
				doc.AddOrder(orders.Order{Qty: 1})
				return nil
			}))
		}()
	}
	wg.Wait()

	doc, err := s.View(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Orders, n)
	assert.Equal(t, int64(n+1), doc.NextOrderID)
	seen := map[int64]bool{}
	for _, o := range doc.Orders {
		assert.False(t, seen[o.ID], "duplicate order id %d", o.ID)
		seen[o.ID] = true
	}
}

func TestRedisBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	log, hook := logtest.NewNullLogger()
	b := &RedisBackend{Client: client, Log: log}
	s := New(b)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(doc *orders.Document) error {
		doc.AddProduct(orders.Product{Name: "Widget", Price: 10000, Stock: 2})
		return nil
	}))
	assert.True(t, mr.Exists("shop:document"))

	doc, err := s.View(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Products, 1)
	assert.Equal(t, "Widget", doc.Products[0].Name)

	require.NoError(t, mr.Set("shop:document", "garbage"))
	doc, err = s.View(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Products)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	log, _ := logtest.NewNullLogger()
	b := &PostgresBackend{DB: pool, Log: log}
	require.NoError(t, b.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, `DELETE FROM shop_document`)
	require.NoError(t, err)

	s := New(b)
	require.NoError(t, s.Update(ctx, func(doc *orders.Document) error {
		doc.AddProduct(orders.Product{Name: "Widget", Price: 10000, Stock: 2})
		return nil
	}))
	doc, err := s.View(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Products, 1)
	assert.Equal(t, int64(2), doc.NextProductID)
}

func TestUpdateNoChangeSkipsSave(t *testing.T) {
	b, _ := newFileBackend(t)
	s := New(b)
	ctx := context.Background()

	err := s.Update(ctx, func(doc *orders.Document) error {
		doc.AddProduct(orders.Product{Name: "Draft", Price: 1, Stock: 1})
		return ErrNoChange
	})
	require.NoError(t, err)

	doc, err := s.View(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Products)
	assert.Equal(t, int64(1), doc.NextProductID)
}
