//go:build js && wasm

package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/syumai/workers/cloudflare/kv"
)

// KVNamespaceBinding is the KV binding name configured in wrangler.toml.
const KVNamespaceBinding = "flyerless_proxy_kv"

type kvRecord struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// KVStore keeps records in Cloudflare KV, one JSON value per API key.
type KVStore struct {
	kvStore *kv.Namespace
	opts    options
}

// NewKVStore binds to the Cloudflare KV namespace.
func NewKVStore(opts ...Option) (*KVStore, error) {
	kvStore, err := kv.NewNamespace(KVNamespaceBinding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &KVStore{kvStore: kvStore, opts: newOptions(opts)}, nil
}

func (k *KVStore) Find(ctx context.Context, apiKey string) (*Record, error) {
	raw, err := k.kvStore.GetString(RedisKeyPrefix+apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get token record from KV: %w", err)
	}
	if raw == "" {
		return nil, ErrNotFound
	}

	var kr kvRecord
	if err := json.Unmarshal([]byte(raw), &kr); err != nil {
		return nil, fmt.Errorf("failed to parse token record: %w", err)
	}
	return &Record{
		APIKey:      apiKey,
		AccessToken: kr.AccessToken,
		ExpiresAt:   kr.ExpiresAt,
		CreatedAt:   kr.CreatedAt,
		UpdatedAt:   kr.UpdatedAt,
	}, nil
}

func (k *KVStore) Create(ctx context.Context, apiKey string) (*Record, error) {
	if _, err := k.Find(ctx, apiKey); err == nil {
		return nil, ErrAlreadyExists
	}
	rec := NewRecord(apiKey, k.opts.now(), k.opts.bootstrapTTL)
	if err := k.put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (k *KVStore) Save(ctx context.Context, rec *Record) error {
	now := k.opts.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return k.put(rec)
}

func (k *KVStore) put(rec *Record) error {
	data, err := json.Marshal(kvRecord{
		AccessToken: rec.AccessToken,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}
	if err := k.kvStore.PutString(RedisKeyPrefix+rec.APIKey, string(data), nil); err != nil {
		return fmt.Errorf("failed to store token record in KV: %w", err)
	}
	return nil
}
