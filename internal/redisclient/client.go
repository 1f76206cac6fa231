package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scooter-shop/internal/auth"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Sessions returns an auth.SessionStore keeping sessions under prefix
func (c *Client) Sessions(prefix string) *SessionStore {
	return &SessionStore{rdb: c.rdb, prefix: prefix}
}

// SessionStore keeps sessions as JSON values whose key TTL matches the
// session expiry, so Redis drops them on its own.
type SessionStore struct {
	rdb    *redis.Client
	prefix string
}

var _ auth.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) key(token string) string {
	return s.prefix + token
}

// Save stores the session until it expires
func (s *SessionStore) Save(ctx context.Context, session *auth.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, session.Token)
	}

	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.rdb.Set(ctx, s.key(session.Token), value, ttl).Err()
}

// Get loads a session; missing keys yield nil, nil
func (s *SessionStore) Get(ctx context.Context, token string) (*auth.Session, error) {
	value, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session auth.Session
	if err := json.Unmarshal(value, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes a session
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, s.key(token)).Err()
}
