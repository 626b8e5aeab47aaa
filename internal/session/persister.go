package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/tutor-admin/internal/models"
)

// ErrNotPersisted is returned by persisters holding no session.
var ErrNotPersisted = errors.New("no persisted session")

// Persister stores the token pair under a single named key.
type Persister interface {
	Load(ctx context.Context) (models.TokenPair, error)
	Save(ctx context.Context, pair models.TokenPair) error
	Remove(ctx context.Context) error
}

// FilePersister keeps the pair in a JSON document keyed by name. Other keys
// in the same document are preserved.
type FilePersister struct {
	path string
	key  string
	mu   sync.Mutex
}

// NewFilePersister builds a file backed persister.
func NewFilePersister(path, key string) *FilePersister {
	return &FilePersister{path: path, key: key}
}

// Load implements Persister.
func (p *FilePersister) Load(ctx context.Context) (models.TokenPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.read()
	if err != nil {
		return models.TokenPair{}, err
	}
	raw, ok := doc[p.key]
	if !ok {
		return models.TokenPair{}, ErrNotPersisted
	}
	var pair models.TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return models.TokenPair{}, fmt.Errorf("unmarshal persisted session: %w", err)
	}
	return pair, nil
}

// Save implements Persister.
func (p *FilePersister) Save(ctx context.Context, pair models.TokenPair) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.read()
	if err != nil {
		// missing or unreadable documents are rewritten from scratch
		doc = make(map[string]json.RawMessage)
	}
	payload, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	doc[p.key] = payload
	return p.write(doc)
}

// Remove implements Persister.
func (p *FilePersister) Remove(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.read()
	if err != nil {
		if errors.Is(err, ErrNotPersisted) {
			return nil
		}
		return os.Remove(p.path)
	}
	delete(doc, p.key)
	return p.write(doc)
}

func (p *FilePersister) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotPersisted
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return doc, nil
}

func (p *FilePersister) write(doc map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("prepare session directory: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal session file: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// RedisPersister keeps the pair in a Redis string key.
type RedisPersister struct {
	client *redis.Client
	key    string
}

// NewRedisPersister wraps an existing Redis client.
func NewRedisPersister(client *redis.Client, key string) *RedisPersister {
	return &RedisPersister{client: client, key: key}
}

// Load implements Persister.
func (p *RedisPersister) Load(ctx context.Context) (models.TokenPair, error) {
	raw, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return models.TokenPair{}, ErrNotPersisted
		}
		return models.TokenPair{}, fmt.Errorf("redis get %s: %w", p.key, err)
	}
	var pair models.TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return models.TokenPair{}, fmt.Errorf("unmarshal persisted session: %w", err)
	}
	return pair, nil
}

// Save implements Persister.
func (p *RedisPersister) Save(ctx context.Context, pair models.TokenPair) error {
	payload, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := p.client.Set(ctx, p.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", p.key, err)
	}
	return nil
}

// Remove implements Persister.
func (p *RedisPersister) Remove(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", p.key, err)
	}
	return nil
}

// MemoryPersister keeps the pair in process memory only.
type MemoryPersister struct {
	mu   sync.Mutex
	pair *models.TokenPair
}

// NewMemoryPersister builds an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Load implements Persister.
func (p *MemoryPersister) Load(ctx context.Context) (models.TokenPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pair == nil {
		return models.TokenPair{}, ErrNotPersisted
	}
	return *p.pair, nil
}

// Save implements Persister.
func (p *MemoryPersister) Save(ctx context.Context, pair models.TokenPair) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pair = &pair
	return nil
}

// Remove implements Persister.
func (p *MemoryPersister) Remove(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pair = nil
	return nil
}
