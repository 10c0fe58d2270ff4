package natsclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrKVKeyNotFound is returned when a key does not exist.
var ErrKVKeyNotFound = stderrors.New("kv: key not found")

// KVStore wraps a bucket with per-call timeouts and JSON helpers.
type KVStore struct {
	bucket  jetstream.KeyValue
	timeout time.Duration
}

// NewKVStore wraps bucket.
func (c *Client) NewKVStore(bucket jetstream.KeyValue) *KVStore {
	return &KVStore{bucket: bucket, timeout: c.timeout}
}

// Bucket returns the bucket name.
func (kv *KVStore) Bucket() string { return kv.bucket.Bucket() }

func (kv *KVStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.timeout > 0 {
		return context.WithTimeout(ctx, kv.timeout)
	}
	return ctx, func() {}
}

// Get returns the value of key.
func (kv *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := kv.withTimeout(ctx)
	defer cancel()

	entry, err := kv.bucket.Get(ctx, key)
	if err != nil {
		if IsKVNotFoundError(err) {
			return nil, ErrKVKeyNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Put writes key, last writer wins.
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	ctx, cancel := kv.withTimeout(ctx)
	defer cancel()

	rev, err := kv.bucket.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("kv put %s: %w", key, err)
	}
	return rev, nil
}

// PutJSON marshals v and writes it under key.
func (kv *KVStore) PutJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv marshal %s: %w", key, err)
	}
	_, err = kv.Put(ctx, key, data)
	return err
}

// Delete removes key.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := kv.withTimeout(ctx)
	defer cancel()

	if err := kv.bucket.Delete(ctx, key); err != nil {
		if IsKVNotFoundError(err) {
			return ErrKVKeyNotFound
		}
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// AwaitJSON blocks until key holds a value, decodes it into v and returns.
// A value already present is returned immediately.
func (kv *KVStore) AwaitJSON(ctx context.Context, key string, v any) error {
	watcher, err := kv.bucket.Watch(ctx, key)
	if err != nil {
		return fmt.Errorf("kv watch %s: %w", key, err)
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-watcher.Updates():
			if !ok {
				return fmt.Errorf("kv watch %s: watcher closed", key)
			}
			// nil marks the end of the initial values
			if entry == nil || entry.Operation() != jetstream.KeyValuePut {
				continue
			}
			if err := DecodeJSON(entry.Value(), v); err != nil {
				return fmt.Errorf("kv decode %s: %w", key, err)
			}
			return nil
		}
	}
}

// IsKVNotFoundError checks if err indicates a missing key.
func IsKVNotFoundError(err error) bool {
	return stderrors.Is(err, ErrKVKeyNotFound) ||
		stderrors.Is(err, jetstream.ErrKeyNotFound) ||
		stderrors.Is(err, jetstream.ErrKeyDeleted)
}

// Keys lists the keys in the bucket. An empty bucket yields no keys.
func (kv *KVStore) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := kv.withTimeout(ctx)
	defer cancel()

	keys, err := kv.bucket.Keys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv keys %s: %w", kv.bucket.Bucket(), err)
	}
	return keys, nil
}

// DecodeJSON decodes data into v, keeping numbers in untyped values as
// json.Number so large integers are not rounded through float64.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
