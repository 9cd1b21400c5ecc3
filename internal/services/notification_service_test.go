package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/logger"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/metrics"
)

type fakeDirectory struct {
	byID   map[string]models.DirectoryEntry
	byRole map[models.Role][]models.DirectoryEntry
}

func (d *fakeDirectory) GetByID(_ context.Context, id string) (*models.DirectoryEntry, error) {
	u, ok := d.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (d *fakeDirectory) GetByRole(_ context.Context, role models.Role) []models.DirectoryEntry {
	return d.byRole[role]
}

type sentEmail struct {
	To, Title, Message string
	Payload            map[string]any
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeEmail) SendNotification(_ context.Context, to, title, message string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{To: to, Title: title, Message: message, Payload: payload})
	return nil
}

type fakeRealtime struct {
	mu        sync.Mutex
	delivered []models.Notification
	err       error
}

func (f *fakeRealtime) Deliver(_ context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, n)
	return f.err
}

// failingStore fails Create after a number of successful calls.
type failingStore struct {
	*repository.MemoryStore
	allow int
}

func (s *failingStore) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	if s.allow == 0 {
		return nil, errors.New("database unavailable")
	}
	s.allow--
	return s.MemoryStore.Create(ctx, in)
}

type fixture struct {
	svc       *NotificationService
	store     *repository.MemoryStore
	directory *fakeDirectory
	email     *fakeEmail
	realtime  *fakeRealtime
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     repository.NewMemoryStore(),
		directory: &fakeDirectory{byID: map[string]models.DirectoryEntry{}, byRole: map[models.Role][]models.DirectoryEntry{}},
		email:     &fakeEmail{},
		realtime:  &fakeRealtime{},
		metrics:   metrics.New(),
	}
	f.svc = NewNotificationService(f.store, f.directory, f.email, f.realtime, f.metrics, logger.Discard())
	return f
}

func envelope(t *testing.T, eventType models.EventType, payload string) *models.Envelope {
	t.Helper()
	env, err := models.ParseEnvelope([]byte(`{"eventId":"e1","eventType":"` + string(eventType) + `","timestamp":"2024-03-01T10:00:00Z","payload":` + payload + `}`))
	require.NoError(t, err)
	return env
}

func TestCreateThenGetUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, models.NewNotification{UserID: "u1", Title: "Hello", Message: "World", Type: models.TypePush})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())

	unread, err := f.svc.GetUnread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, n.ID, unread[0].ID)
	assert.False(t, unread[0].Read)

	require.Len(t, f.realtime.delivered, 1)
	assert.Equal(t, "u1", f.realtime.delivered[0].UserID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, models.NewNotification{Title: "x"})
	assert.Error(t, err)
	_, err = f.svc.Create(ctx, models.NewNotification{UserID: "u1"})
	assert.Error(t, err)
	_, err = f.svc.Create(ctx, models.NewNotification{UserID: "u1", Title: "x", Type: "sms"})
	assert.Error(t, err)
	assert.Empty(t, f.realtime.delivered)
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.realtime.err = errors.New("redis down")

	n, err := f.svc.Create(context.Background(), models.NewNotification{UserID: "u1", Title: "t", Message: "m", Type: models.TypePush})
	require.NoError(t, err)

	stored, err := f.store.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", stored.Title)
	assert.Equal(t, int64(1), f.metrics.Snapshot().PublishFailed)
}

func TestFindAllForUserNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := f.svc.Create(ctx, models.NewNotification{UserID: "u1", Title: title, Type: models.TypePush})
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, models.NewNotification{UserID: "u2", Title: "other", Type: models.TypePush})
	require.NoError(t, err)

	all, err := f.svc.FindAllForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Title)
	assert.Equal(t, "first", all[2].Title)
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return first }

	n, err := f.svc.Create(ctx, models.NewNotification{UserID: "u1", Title: "t", Type: models.TypePush})
	require.NoError(t, err)

	read, err := f.svc.MarkAsRead(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)
	require.NotNil(t, read.ReadAt)
	assert.True(t, read.ReadAt.Equal(first))

	f.svc.now = func() time.Time { return first.Add(time.Hour) }
	again, err := f.svc.MarkAsRead(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, again.Read)
	assert.True(t, again.ReadAt.Equal(first), "second call keeps the original readAt")

	_, err = f.svc.MarkAsRead(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestMarkAsReadForUserChecksOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, models.NewNotification{UserID: "u1", Title: "t", Type: models.TypePush})
	require.NoError(t, err)

	_, err = f.svc.MarkAsReadForUser(ctx, "u2", n.ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	stored, err := f.store.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, stored.Read, "another user cannot mark it read")

	read, err := f.svc.MarkAsReadForUser(ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	_, err = f.svc.MarkAsReadForUser(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestMarkAllAsRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Create(ctx, models.NewNotification{UserID: "u1", Title: "t", Type: models.TypePush})
		require.NoError(t, err)
	}

	changed, err := f.svc.MarkAllAsRead(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.svc.MarkAllAsRead(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, changed)

	unread, err := f.svc.GetUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.GetPreference(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreference("u1"), p)
	_, err = f.store.GetPreference(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound, "reading defaults must not create a record")

	off := false
	updated, err := f.svc.UpdatePreference(ctx, "u1", models.PreferencePatch{Push: &off, Promotions: &off})
	require.NoError(t, err)
	assert.False(t, updated.PushEnabled)
	assert.True(t, updated.EmailEnabled)
	assert.False(t, updated.Preferences.Promotions)

	p, err = f.svc.GetPreference(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, p.PushEnabled)
}
