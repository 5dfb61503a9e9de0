package store

import (
	"context"

	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/ariefcatur/go-realtime-shop/internal/redisx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisBackend keeps the document under one key with no TTL.
type RedisBackend struct {
	Client *redis.Client
	Key    string // default redisx.KeyShopDocument
	Log    logrus.FieldLogger
}

func (r *RedisBackend) key() string {
	if r.Key == "" {
		return redisx.KeyShopDocument
	}
	return r.Key
}

func (r *RedisBackend) Load(ctx context.Context) (*orders.Document, error) {
	raw, err := r.Client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.NewDocument(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", r.key())
	}
	return decode(raw, r.Log, "redis:"+r.key()), nil
}

func (r *RedisBackend) Save(ctx context.Context, doc *orders.Document) error {
	b, err := encode(doc)
	if err != nil {
		return errors.Wrap(err, "encode store document")
	}
	if err := r.Client.Set(ctx, r.key(), b, 0).Err(); err != nil {
		return errors.Wrapf(err, "set %s", r.key())
	}
	return nil
}
