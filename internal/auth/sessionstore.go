package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"habitsync/internal/remote"
	"github.com/redis/go-redis/v9"
)

// SessionData holds the data stored for each session secret
type SessionData struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisSessionStore keeps session secrets (hashed) in Redis with a TTL, so
// expiry needs no sweeper.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore creates a new Redis-backed session store
func NewRedisSessionStore(redisURL string) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisSessionStore{client: client, prefix: "session:"}, nil
}

// NewRedisSessionStoreWithClient creates a store from an existing Redis client
func NewRedisSessionStoreWithClient(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "session:"}
}

func (s *RedisSessionStore) key(secretHash string) string {
	return s.prefix + secretHash
}

// Save stores a session with expiration
func (s *RedisSessionStore) Save(ctx context.Context, secretHash, userID string, expiresAt time.Time) error {
	data := SessionData{
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	if err := s.client.Set(ctx, s.key(secretHash), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Lookup resolves a secret hash to its user id, or
// remote.ErrSessionNotFound for unknown and expired sessions.
func (s *RedisSessionStore) Lookup(ctx context.Context, secretHash string) (string, error) {
	jsonData, err := s.client.Get(ctx, s.key(secretHash)).Result()
	if err == redis.Nil {
		return "", remote.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}

	var data SessionData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return "", fmt.Errorf("unmarshal session data: %w", err)
	}
	return data.UserID, nil
}

// Revoke deletes a session
func (s *RedisSessionStore) Revoke(ctx context.Context, secretHash string) error {
	if err := s.client.Del(ctx, s.key(secretHash)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
