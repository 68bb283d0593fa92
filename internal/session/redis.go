package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	rdb        *redis.Client
	prefix     string
	sessionTTL time.Duration
}

// NewRedisStore shares sessions across replicas. Pending handshakes expire on their own TTL;
// the connected shop lives for sessionTTL.
func NewRedisStore(rdb *redis.Client, sessionTTL time.Duration) Store {
	return &redisStore{rdb: rdb, prefix: "aervo:sess:", sessionTTL: sessionTTL}
}

func (s *redisStore) pendingKey(id string) string { return s.prefix + id + ":pending" }
func (s *redisStore) shopKey(id string) string { return s.prefix + id + ":shop" }

func (s *redisStore) Get(ctx context.Context, id string) (Session, error) {
	out := Session{ID: id}
	pipe := s.rdb.Pipeline()
	pending := pipe.Get(ctx, s.pendingKey(id))
	shop := pipe.Get(ctx, s.shopKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return out, storageErr("get", err)
	}
	if raw, err := pending.Bytes(); err == nil {
		var p Pending
		if err := json.Unmarshal(raw, &p); err != nil {
			return out, storageErr("decode", err)
		}
		out.Pending = &p
	}
	out.ConnectedShop = shop.Val()
	return out, nil
}

func (s *redisStore) SetPending(ctx context.Context, id string, p Pending, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return storageErr("encode", err)
	}
	if err := s.rdb.Set(ctx, s.pendingKey(id), raw, ttl).Err(); err != nil {
		return storageErr("set pending", err)
	}
	return nil
}

// ConsumePending uses GETDEL so two concurrent callbacks cannot both read the same token.
func (s *redisStore) ConsumePending(ctx context.Context, id string) (Pending, bool, error) {
	raw, err := s.rdb.GetDel(ctx, s.pendingKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Pending{}, false, nil
	}
	if err != nil {
		return Pending{}, false, storageErr("consume pending", err)
	}
	var p Pending
	if err := json.Unmarshal(raw, &p); err != nil {
		return Pending{}, false, storageErr("decode", err)
	}
	return p, true, nil
}

func (s *redisStore) SetConnected(ctx context.Context, id, shop string) error {
	if err := s.rdb.Set(ctx, s.shopKey(id), shop, s.sessionTTL).Err(); err != nil {
		return storageErr("set connected", err)
	}
	return nil
}
