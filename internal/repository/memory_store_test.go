package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

func TestMemoryStoreListNewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store := NewMemoryStore().WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	ctx := context.Background()

	first, err := store.Create(ctx, models.NewNotification{UserID: "u1", Title: "first", Type: models.TypePush})
	require.NoError(t, err)
	second, err := store.Create(ctx, models.NewNotification{UserID: "u1", Title: "second", Type: models.TypePush})
	require.NoError(t, err)
	_, err = store.Create(ctx, models.NewNotification{UserID: "u2", Title: "other", Type: models.TypePush})
	require.NoError(t, err)

	list, err := store.ListByUser(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestMemoryStoreMarkReadKeepsFirstTimestamp(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	n, err := store.Create(ctx, models.NewNotification{UserID: "u1", Title: "t", Type: models.TypePush})
	require.NoError(t, err)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := store.MarkRead(ctx, n.ID, t1)
	require.NoError(t, err)
	assert.True(t, got.Read)
	require.NotNil(t, got.ReadAt)
	assert.Equal(t, t1, *got.ReadAt)

	got, err = store.MarkRead(ctx, n.ID, t1.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t1, *got.ReadAt)

	_, err = store.MarkRead(ctx, "missing", t1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreMarkAllRead(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, models.NewNotification{UserID: "u1", Title: "t", Type: models.TypePush})
		require.NoError(t, err)
	}

	changed, err := store.MarkAllRead(ctx, "u1", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, changed)

	changed, err = store.MarkAllRead(ctx, "u1", time.Now())
	require.NoError(t, err)
	assert.Zero(t, changed)

	unread, err := store.ListByUser(ctx, "u1", true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestMemoryStorePreferences(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetPreference(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	p := models.DefaultPreference("u1")
	p.EmailEnabled = false
	saved, err := store.UpsertPreference(ctx, p)
	require.NoError(t, err)
	assert.False(t, saved.EmailEnabled)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := store.GetPreference(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, saved.CreatedAt, got.CreatedAt)
}
