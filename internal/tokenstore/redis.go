package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces token hashes in redis.
const RedisKeyPrefix = "flyerless:token:"

// RedisStore keeps one hash per API key.
type RedisStore struct {
	client redis.UniversalClient
	opts   options
}

func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: newOptions(opts)}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(client, opts...), nil
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Find(ctx context.Context, apiKey string) (*Record, error) {
	fields, err := r.client.HGetAll(ctx, RedisKeyPrefix+apiKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get token record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return recordFromHash(apiKey, fields)
}

// recordFromHash decodes a token hash. Missing timestamps stay zero, so a hash
// caught between Create's two writes reads as an expired record without a
// token and the next resolution refreshes it.
func recordFromHash(apiKey string, fields map[string]string) (*Record, error) {
	rec := &Record{APIKey: apiKey, AccessToken: fields["access_token"]}
	for name, dst := range map[string]*time.Time{
		"expires_at": &rec.ExpiresAt,
		"created_at": &rec.CreatedAt,
		"updated_at": &rec.UpdatedAt,
	} {
		v := fields[name]
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		*dst = t
	}
	return rec, nil
}

func (r *RedisStore) Create(ctx context.Context, apiKey string) (*Record, error) {
	key := RedisKeyPrefix + apiKey
	rec := NewRecord(apiKey, r.opts.now(), r.opts.bootstrapTTL)

	created, err := r.client.HSetNX(ctx, key, "created_at", rec.CreatedAt.Format(time.RFC3339Nano)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create token record: %w", err)
	}
	if !created {
		return nil, ErrAlreadyExists
	}
	if err := r.write(ctx, rec); err != nil {
		// Drop the created_at marker so a later Create can bootstrap the key.
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return nil, fmt.Errorf("failed to create token record: %w", err)
	}
	return rec, nil
}

func (r *RedisStore) Save(ctx context.Context, rec *Record) error {
	now := r.opts.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if err := r.write(ctx, rec); err != nil {
		return fmt.Errorf("failed to save token record: %w", err)
	}
	return nil
}

func (r *RedisStore) write(ctx context.Context, rec *Record) error {
	key := RedisKeyPrefix + rec.APIKey
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "created_at", rec.CreatedAt.Format(time.RFC3339Nano))
		pipe.HSet(ctx, key,
			"access_token", rec.AccessToken,
			"expires_at", rec.ExpiresAt.Format(time.RFC3339Nano),
			"updated_at", rec.UpdatedAt.Format(time.RFC3339Nano),
		)
		return nil
	})
	return err
}
