package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/metrics"
)

// DirectoryCache is the key-value side of the user directory.
type DirectoryCache interface {
	GetUser(ctx context.Context, id string) (*models.DirectoryEntry, error)
	SetUser(ctx context.Context, entry models.DirectoryEntry) error
	DeleteUser(ctx context.Context, id string) error
	GetRole(ctx context.Context, role models.Role) ([]models.DirectoryEntry, error)
	SetRole(ctx context.Context, role models.Role, entries []models.DirectoryEntry) error
	DeleteRole(ctx context.Context, role models.Role) error
}

// DirectorySource is the authoritative identity service.
type DirectorySource interface {
	FetchUser(ctx context.Context, id string) (*models.DirectoryEntry, error)
	FetchUsersByRole(ctx context.Context, role models.Role) ([]models.DirectoryEntry, error)
	FetchAllUsers(ctx context.Context) ([]models.DirectoryEntry, error)
}

// UserDirectory resolves recipients cache-aside: the cache is consulted
// first and filled from the remote directory on a miss. Remote failures
// degrade to not-found instead of failing the caller.
type UserDirectory struct {
	cache   DirectoryCache
	remote  DirectorySource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewUserDirectory(cache DirectoryCache, remote DirectorySource, m *metrics.Metrics, logger *slog.Logger) *UserDirectory {
	return &UserDirectory{
		cache:   cache,
		remote:  remote,
		metrics: m,
		logger:  logger,
	}
}

// GetByID returns ErrUserNotFound when the user cannot be resolved.
func (d *UserDirectory) GetByID(ctx context.Context, id string) (*models.DirectoryEntry, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}

	entry, err := d.cache.GetUser(ctx, id)
	if err == nil {
		d.metrics.IncDirectoryHit()
		return entry, nil
	}
	d.metrics.IncDirectoryMiss()
	if !errors.Is(err, repository.ErrCacheMiss) {
		d.logger.Warn("directory cache read failed", slog.String("user_id", id), slog.Any("error", err))
	}

	entry, err = d.remote.FetchUser(ctx, id)
	if err != nil {
		d.logger.Warn("directory lookup failed", slog.String("user_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if entry.ID == "" {
		entry.ID = id
	}
	if err := d.cache.SetUser(ctx, *entry); err != nil {
		d.logger.Warn("directory cache write failed", slog.String("user_id", id), slog.Any("error", err))
	}
	return entry, nil
}

// GetByRole never fails: a remote failure or an empty answer yields an empty
// slice, and empty answers are not cached.
func (d *UserDirectory) GetByRole(ctx context.Context, role models.Role) []models.DirectoryEntry {
	entries, err := d.cache.GetRole(ctx, role)
	if err == nil {
		d.metrics.IncDirectoryHit()
		return entries
	}
	d.metrics.IncDirectoryMiss()
	if !errors.Is(err, repository.ErrCacheMiss) {
		d.logger.Warn("directory role cache read failed", slog.String("role", string(role)), slog.Any("error", err))
	}

	entries, err = d.remote.FetchUsersByRole(ctx, role)
	if err != nil {
		d.logger.Warn("directory role lookup failed", slog.String("role", string(role)), slog.Any("error", err))
		return nil
	}
	if len(entries) == 0 {
		d.logger.Warn("no users found for role", slog.String("role", string(role)))
		return nil
	}
	if err := d.cache.SetRole(ctx, role, entries); err != nil {
		d.logger.Warn("directory role cache write failed", slog.String("role", string(role)), slog.Any("error", err))
	}
	return entries
}

// Put writes an entry through to the cache.
func (d *UserDirectory) Put(ctx context.Context, id string, entry models.DirectoryEntry) error {
	entry.ID = id
	return d.cache.SetUser(ctx, entry)
}

// Invalidate removes the per-id entry. The role index is left alone.
func (d *UserDirectory) Invalidate(ctx context.Context, id string) error {
	return d.cache.DeleteUser(ctx, id)
}

// InvalidateRole removes the role index entry.
func (d *UserDirectory) InvalidateRole(ctx context.Context, role models.Role) error {
	return d.cache.DeleteRole(ctx, role)
}

// Warm primes per-id entries for every user the directory knows about.
func (d *UserDirectory) Warm(ctx context.Context) (int, error) {
	users, err := d.remote.FetchAllUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch all users: %w", err)
	}
	warmed := 0
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if err := d.cache.SetUser(ctx, u); err != nil {
			return warmed, fmt.Errorf("cache user %s: %w", u.ID, err)
		}
		warmed++
	}
	d.logger.Info("directory cache warmed", slog.Int("users", warmed))
	return warmed, nil
}
