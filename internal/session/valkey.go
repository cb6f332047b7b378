package session

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// ValkeyKV stores session pairs in Valkey under a key prefix.
type ValkeyKV struct {
	client valkey.Client
	prefix string
}

// ValkeyOptions configures NewValkeyKV.
type ValkeyOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewValkeyKV connects to a Valkey server.
func NewValkeyKV(opts ValkeyOptions) (*ValkeyKV, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", opts.Addr, err)
	}
	return NewValkeyKVWithClient(client, opts.KeyPrefix), nil
}

// NewValkeyKVWithClient wraps an existing client.
func NewValkeyKVWithClient(client valkey.Client, prefix string) *ValkeyKV {
	return &ValkeyKV{client: client, prefix: prefix}
}

func (v *ValkeyKV) key(k string) string {
	return v.prefix + k
}

func (v *ValkeyKV) Get(ctx context.Context, key string) (string, error) {
	val, err := v.client.Do(ctx, v.client.B().Get().Key(v.key(key)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, nil
}

func (v *ValkeyKV) Set(ctx context.Context, key, value string) error {
	if err := v.client.Do(ctx, v.client.B().Set().Key(v.key(key)).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (v *ValkeyKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = v.key(k)
	}
	if err := v.client.Do(ctx, v.client.B().Del().Key(prefixed...).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Close releases the underlying connections.
func (v *ValkeyKV) Close() {
	v.client.Close()
}
