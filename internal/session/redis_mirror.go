package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMirrorClosed is returned when operating on a closed mirror.
var ErrMirrorClosed = errors.New("session mirror is closed")

// RedisMirror writes session snapshots to Redis so operators can inspect
// live conversations from outside the process. It is write-only
// convenience: the in-memory Store stays authoritative and never reads
// back from Redis.
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration for the mirror.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all snapshot keys (default: "decoyd:session:").
	Prefix string
	// SnapshotTTL is the snapshot expiry duration (0 = never expire).
	SnapshotTTL time.Duration
}

// NewRedisMirror creates a Redis-backed snapshot mirror and verifies the
// connection.
func NewRedisMirror(cfg RedisConfig) (*RedisMirror, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisMirrorFromClient(client, cfg.Prefix, cfg.SnapshotTTL), nil
}

// NewRedisMirrorFromClient wraps an existing client. Used by tests.
func NewRedisMirrorFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisMirror {
	if prefix == "" {
		prefix = "decoyd:session:"
	}
	return &RedisMirror{client: client, prefix: prefix, ttl: ttl}
}

// Save stores the snapshot as JSON under the session's key.
func (m *RedisMirror) Save(ctx context.Context, snapshot Session) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrMirrorClosed
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := m.client.Set(ctx, m.prefix+snapshot.ID, data, m.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Remove deletes the snapshot for sessionID. Removing an unknown id is
// not an error.
func (m *RedisMirror) Remove(ctx context.Context, sessionID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrMirrorClosed
	}

	if err := m.client.Del(ctx, m.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot back, for diagnostics and tests.
func (m *RedisMirror) Load(ctx context.Context, sessionID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Session{}, ErrMirrorClosed
	}

	data, err := m.client.Get(ctx, m.prefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load snapshot: %w", err)
	}

	var snap Session
	if err := json.Unmarshal(data, &snap); err != nil {
		return Session{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Ping verifies the mirror connection, for health checks.
func (m *RedisMirror) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrMirrorClosed
	}
	return m.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (m *RedisMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.client.Close()
}
