package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("key not found")
	ErrCorrupted = errors.New("stored value is corrupted")
)

// Entry is one key written by Put. A zero TTL keeps the key until deleted.
type Entry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// KV is the key-value persistence contract used by the cart repository.
// Put must write all entries or none of them.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, entries ...Entry) error
	Delete(ctx context.Context, keys ...string) error
}

func JSONEntry(key string, v interface{}, ttl time.Duration) (Entry, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s failed: %w", key, err)
	}
	return Entry{Key: key, Value: data, TTL: ttl}, nil
}

// GetJSON loads key into dest. Undecodable values are reported as ErrCorrupted.
func GetJSON(ctx context.Context, kv KV, key string, dest interface{}) error {
	data, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w: %v", key, ErrCorrupted, err)
	}
	return nil
}
