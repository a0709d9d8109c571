package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
)

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

// RedisCache stores JSON copies of T under "<TypeName>:<id>" and lists under
// "<TypeName>List:<key>". A nil cache or nil client turns every call into a
// miss/no-op so the service keeps working while redis is not configured.
type RedisCache[T any] struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache[T any](client *redis.Client, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{client: client, ttl: ttl}
}

func (c *RedisCache[T]) itemKey(id int) string {
	return GetTypeName[T]() + ":" + fmt.Sprint(id)
}

func (c *RedisCache[T]) listKey(key string) string {
	if key == "" {
		return GetTypeName[T]() + "List"
	}
	return GetTypeName[T]() + "List:" + key
}

// Enabled reports whether calls reach redis.
func (c *RedisCache[T]) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns nil when the entry does not exist.
func (c *RedisCache[T]) Get(ctx context.Context, id int) (*T, error) {
	var result *T
	exists, err := c.getObject(ctx, c.itemKey(id), &result)
	if err != nil || !exists {
		return nil, err
	}
	return result, nil
}

func (c *RedisCache[T]) Set(ctx context.Context, id int, obj *T) error {
	return c.setObject(ctx, c.itemKey(id), obj)
}

func (c *RedisCache[T]) GetList(ctx context.Context, key string) ([]*T, error) {
	var result []*T
	exists, err := c.getObject(ctx, c.listKey(key), &result)
	if err != nil || !exists {
		return nil, err
	}
	return result, nil
}

func (c *RedisCache[T]) SetList(ctx context.Context, key string, objs []*T) error {
	return c.setObject(ctx, c.listKey(key), objs)
}

// Delete removes the item entries and every cached list of T.
func (c *RedisCache[T]) Delete(ctx context.Context, ids ...int) error {
	if !c.Enabled() {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.itemKey(id))
	}
	iter := c.client.Scan(ctx, 0, GetTypeName[T]()+"List*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache[T]) getObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache[T]) setObject(ctx context.Context, key string, obj interface{}) error {
	if !c.Enabled() {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, objInByte, c.ttl).Err()
}
