package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyConfig holds connection parameters for a Valkey/Redis-compatible server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// ValkeyProvider stores advisory responses in a single Valkey node.
type ValkeyProvider struct {
	client  valkey.Client
	prefix  string
	timeout time.Duration
}

// NewValkeyProvider connects and pings the server so bad credentials fail at startup.
func NewValkeyProvider(ctx context.Context, cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	applyValkeyDefaults(&cfg)

	opt := valkey.ClientOption{
		InitAddress:       []string{cfg.Addr},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		Dialer:            net.Dialer{Timeout: cfg.DialTimeout},
		ConnWriteTimeout:  cfg.WriteTimeout,
		DisableCache:      true,
		DisableRetry:      cfg.MaxRetries <= 1,
		ForceSingleClient: true,
	}
	if cfg.TLS {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	p := &ValkeyProvider{client: client, prefix: cfg.KeyPrefix, timeout: cfg.ReadTimeout}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	return p, nil
}

func applyValkeyDefaults(cfg *ValkeyConfig) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	b, err := p.client.Do(ctx, p.client.B().Get().Key(p.key(key)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Set stores bytes with the provided TTL. A non-positive TTL stores without expiry.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	set := p.client.B().Set().Key(p.key(key)).Value(valkey.BinaryString(value))
	if ttl > 0 {
		return p.client.Do(ctx, set.PxMilliseconds(ttl.Milliseconds()).Build()).Error()
	}
	return p.client.Do(ctx, set.Build()).Error()
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Do(ctx, p.client.B().Del().Key(p.key(key)).Build()).Error()
}

// Ping checks connectivity and credentials.
func (p *ValkeyProvider) Ping(ctx context.Context) error {
	return p.client.Do(ctx, p.client.B().Ping().Build()).Error()
}

// Close releases the connection.
func (p *ValkeyProvider) Close() error {
	p.client.Close()
	return nil
}

func (p *ValkeyProvider) key(k string) string {
	return p.prefix + k
}
