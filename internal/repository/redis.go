package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

const (
	userKeyPrefix = "user:"
	roleKeyPrefix = "users_by_role:"
	defaultTTL    = time.Hour
)

// UserKey is the cache key of a single directory entry.
func UserKey(id string) string { return userKeyPrefix + id }

// RoleKey is the cache key of the role index.
func RoleKey(role models.Role) string { return roleKeyPrefix + string(role) }

// RedisDirectoryStore keeps directory entries in Redis with a fixed TTL.
// Per-id entries and the role index expire independently.
type RedisDirectoryStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDirectoryStore(client *redis.Client, ttl time.Duration) *RedisDirectoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisDirectoryStore{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisDirectoryStore) Close() error {
	return r.client.Close()
}

// TTL returns the expiry applied to every key.
func (r *RedisDirectoryStore) TTL() time.Duration {
	return r.ttl
}

// GetUser returns ErrCacheMiss when the entry is absent or expired.
func (r *RedisDirectoryStore) GetUser(ctx context.Context, id string) (*models.DirectoryEntry, error) {
	var entry models.DirectoryEntry
	if err := r.getJSON(ctx, UserKey(id), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *RedisDirectoryStore) SetUser(ctx context.Context, entry models.DirectoryEntry) error {
	if entry.ID == "" {
		return errors.New("directory entry without id")
	}
	return r.setJSON(ctx, UserKey(entry.ID), entry)
}

func (r *RedisDirectoryStore) DeleteUser(ctx context.Context, id string) error {
	return r.client.Del(ctx, UserKey(id)).Err()
}

// GetRole returns ErrCacheMiss when the role index is absent or expired.
func (r *RedisDirectoryStore) GetRole(ctx context.Context, role models.Role) ([]models.DirectoryEntry, error) {
	var entries []models.DirectoryEntry
	if err := r.getJSON(ctx, RoleKey(role), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *RedisDirectoryStore) SetRole(ctx context.Context, role models.Role, entries []models.DirectoryEntry) error {
	return r.setJSON(ctx, RoleKey(role), entries)
}

func (r *RedisDirectoryStore) DeleteRole(ctx context.Context, role models.Role) error {
	return r.client.Del(ctx, RoleKey(role)).Err()
}

func (r *RedisDirectoryStore) getJSON(ctx context.Context, key string, dst any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A corrupt value is treated like an absent one so it gets refreshed.
		return ErrCacheMiss
	}
	return nil
}

func (r *RedisDirectoryStore) setJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
