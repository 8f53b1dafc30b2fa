package database

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session id is unknown or expired
var ErrSessionNotFound = errors.New("session not found")

// RedisClient wraps the redis client
type RedisClient struct {
	*redis.Client
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// NewRedisClient creates a new Redis client
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*RedisClient, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping Redis: %w", err)
	}

	log.Printf("Connected to Redis at %s", cfg.Addr)

	return &RedisClient{Client: client}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Health checks the Redis connection health
func (r *RedisClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.Ping(ctx).Err()
}

// SessionStore maps session ids to diary user ids
type SessionStore struct {
	client *RedisClient
	ttl    time.Duration
}

// NewSessionStore creates a new session store
func NewSessionStore(client *RedisClient, ttl time.Duration) *SessionStore {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

// GenerateSessionID generates a cryptographically secure session ID
func (s *SessionStore) GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Set binds a session to a user id
func (s *SessionStore) Set(ctx context.Context, sessionID, userID string) error {
	return s.client.Set(ctx, sessionKey(sessionID), userID, s.ttl).Err()
}

// Get resolves a session to its user id and refreshes the session TTL
func (s *SessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	key := sessionKey(sessionID)

	userID, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}

	s.client.Expire(ctx, key, s.ttl)

	return userID, nil
}

// Delete removes a session
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

// TTL returns the session lifetime
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// ColorCache remembers the dominant color computed for a poster URL
type ColorCache struct {
	client *RedisClient
	ttl    time.Duration
}

// NewColorCache creates a poster color cache
func NewColorCache(client *RedisClient, ttl time.Duration) *ColorCache {
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &ColorCache{client: client, ttl: ttl}
}

// Get returns the cached value for a poster URL
func (c *ColorCache) Get(ctx context.Context, posterURL string) (string, bool, error) {
	val, err := c.client.Get(ctx, colorKey(posterURL)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read poster color: %w", err)
	}
	return val, true, nil
}

// Set caches the value for a poster URL
func (c *ColorCache) Set(ctx context.Context, posterURL, value string) error {
	if err := c.client.Set(ctx, colorKey(posterURL), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache poster color: %w", err)
	}
	return nil
}

func colorKey(posterURL string) string {
	return fmt.Sprintf("poster-color:%s", posterURL)
}
