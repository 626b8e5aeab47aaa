package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/tutor-admin/internal/models"
)

// MemoryTokenRepository keeps refresh tokens in process memory.
type MemoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

// NewMemoryTokenRepository constructs an empty token repository.
func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{tokens: make(map[string]models.RefreshToken)}
}

// Create stores a refresh token.
func (r *MemoryTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.Token] = *token
	return nil
}

// Find returns the token with the given value.
func (r *MemoryTokenRepository) Find(ctx context.Context, value string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[value]
	if !ok {
		return nil, ErrNotFound
	}
	return &token, nil
}

// Revoke marks the token unusable.
func (r *MemoryTokenRepository) Revoke(ctx context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[value]
	if !ok {
		return ErrNotFound
	}
	token.Revoked = true
	r.tokens[value] = token
	return nil
}

// RedisTokenRepository stores refresh tokens as JSON values that expire with the token.
type RedisTokenRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenRepository constructs a Redis-backed token repository.
func NewRedisTokenRepository(client *redis.Client, prefix string) *RedisTokenRepository {
	if prefix == "" {
		prefix = "mock:refresh:"
	}
	return &RedisTokenRepository{client: client, prefix: prefix}
}

// Create stores token until its expiry.
func (r *RedisTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+token.Token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set refresh token: %w", err)
	}
	return nil
}

// Find loads a token by value.
func (r *RedisTokenRepository) Find(ctx context.Context, value string) (*models.RefreshToken, error) {
	raw, err := r.client.Get(ctx, r.prefix+value).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get refresh token: %w", err)
	}
	var token models.RefreshToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token: %w", err)
	}
	return &token, nil
}

// Revoke deletes the token so it can no longer be found.
func (r *RedisTokenRepository) Revoke(ctx context.Context, value string) error {
	deleted, err := r.client.Del(ctx, r.prefix+value).Result()
	if err != nil {
		return fmt.Errorf("redis delete refresh token: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}
