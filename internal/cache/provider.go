package cache

import (
	"context"
	"errors"
	"time"
)

// Provider is the byte-oriented cache used for advisory responses.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// NoopProvider never stores anything.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Ping(context.Context) error { return nil }

func (NoopProvider) Close() error { return nil }
