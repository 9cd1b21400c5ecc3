package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/metrics"
)

// NotificationStore persists notifications and preferences.
type NotificationStore interface {
	Create(ctx context.Context, in models.NewNotification) (*models.Notification, error)
	Get(ctx context.Context, id string) (*models.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	MarkEmailSent(ctx context.Context, id string, at time.Time) error
	GetPreference(ctx context.Context, userID string) (*models.Preference, error)
	UpsertPreference(ctx context.Context, p models.Preference) (*models.Preference, error)
}

// Directory resolves recipients.
type Directory interface {
	GetByID(ctx context.Context, id string) (*models.DirectoryEntry, error)
	GetByRole(ctx context.Context, role models.Role) []models.DirectoryEntry
}

// EmailSender delivers the email side of a notification.
type EmailSender interface {
	SendNotification(ctx context.Context, to, title, message string, payload map[string]any) error
}

// RealtimeDeliverer delivers the realtime side of a notification.
type RealtimeDeliverer interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// NotificationService owns notification records and turns broker events
// into delivered notifications.
type NotificationService struct {
	store     NotificationStore
	directory Directory
	email     EmailSender
	realtime  RealtimeDeliverer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewNotificationService(
	store NotificationStore,
	directory Directory,
	email EmailSender,
	realtime RealtimeDeliverer,
	metrics *metrics.Metrics,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		store:     store,
		directory: directory,
		email:     email,
		realtime:  realtime,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Create stores the notification, then publishes it. A publish failure does
// not fail the call.
func (s *NotificationService) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, errors.New("notification user id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.New("notification title is required")
	}
	if in.Type == "" {
		in.Type = models.TypePush
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("invalid notification type %q", in.Type)
	}

	n, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	s.metrics.IncCreated()

	if err := s.realtime.Deliver(ctx, *n); err != nil {
		s.metrics.IncPublishFailed()
		s.logger.Error("failed to publish notification",
			slog.String("notification_id", n.ID),
			slog.String("user_id", n.UserID),
			slog.Any("error", err),
		)
	}
	return n, nil
}

// FindAllForUser returns the user's notifications, newest first.
func (s *NotificationService) FindAllForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.store.ListByUser(ctx, userID, false)
}

// GetUnread returns the user's unread notifications, newest first.
func (s *NotificationService) GetUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.store.ListByUser(ctx, userID, true)
}

// MarkAsRead is idempotent; a second call keeps the first readAt.
func (s *NotificationService) MarkAsRead(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.store.MarkRead(ctx, id, s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// MarkAsReadForUser marks the notification read only when it belongs to
// userID. Someone else's notification is reported as not found.
func (s *NotificationService) MarkAsReadForUser(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	return s.MarkAsRead(ctx, id)
}

// MarkAllAsRead reports whether at least one notification changed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (bool, error) {
	changed, err := s.store.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return false, err
	}
	return changed > 0, nil
}

// GetPreference returns the stored preference or the defaults. Defaults are
// not written back.
func (s *NotificationService) GetPreference(ctx context.Context, userID string) (models.Preference, error) {
	p, err := s.store.GetPreference(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.DefaultPreference(userID), nil
	}
	if err != nil {
		return models.Preference{}, err
	}
	return *p, nil
}

// UpdatePreference applies patch on top of the current preference and upserts it.
func (s *NotificationService) UpdatePreference(ctx context.Context, userID string, patch models.PreferencePatch) (*models.Preference, error) {
	current, err := s.GetPreference(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(current)
	updated.UserID = userID
	return s.store.UpsertPreference(ctx, updated)
}

// delivery describes one notification to hand to a recipient.
type delivery struct {
	Title    string
	Message  string
	Type     models.NotificationType
	Category models.Category
	Payload  map[string]any
	Metadata map[string]any
}

// createAndDeliver applies the recipient's preferences, stores the
// notification and sends the email when the effective type asks for one.
// Email failures are logged and never undo the stored record.
func (s *NotificationService) createAndDeliver(ctx context.Context, to models.DirectoryEntry, d delivery) error {
	pref := s.preferenceFor(ctx, to.ID)
	if !pref.Allows(d.Category) {
		s.logger.Debug("recipient opted out of category", slog.String("user_id", to.ID), slog.String("category", string(d.Category)))
		return nil
	}
	typ, ok := pref.Effective(d.Type)
	if !ok {
		s.logger.Debug("recipient disabled every channel", slog.String("user_id", to.ID))
		return nil
	}

	n, err := s.Create(ctx, models.NewNotification{
		UserID:   to.ID,
		Title:    d.Title,
		Message:  d.Message,
		Type:     typ,
		Payload:  d.Payload,
		Metadata: d.Metadata,
	})
	if err != nil {
		return err
	}

	if typ.IncludesEmail() {
		s.sendEmail(ctx, n, to)
	}
	return nil
}

func (s *NotificationService) preferenceFor(ctx context.Context, userID string) models.Preference {
	p, err := s.GetPreference(ctx, userID)
	if err != nil {
		s.logger.Warn("preference lookup failed, using defaults", slog.String("user_id", userID), slog.Any("error", err))
		return models.DefaultPreference(userID)
	}
	return p
}

func (s *NotificationService) sendEmail(ctx context.Context, n *models.Notification, to models.DirectoryEntry) {
	address := to.Email
	if address == "" {
		entry, err := s.directory.GetByID(ctx, to.ID)
		if err != nil {
			s.logger.Warn("no email address for recipient", slog.String("user_id", to.ID), slog.Any("error", err))
			return
		}
		address = entry.Email
	}
	if address == "" {
		s.logger.Warn("recipient has no email address", slog.String("user_id", to.ID))
		return
	}

	if err := s.email.SendNotification(ctx, address, n.Title, n.Message, n.Payload); err != nil {
		s.metrics.IncEmailFailed()
		s.logger.Error("failed to send notification email",
			slog.String("notification_id", n.ID),
			slog.String("user_id", to.ID),
			slog.Any("error", err),
		)
		return
	}
	s.metrics.IncEmailSent()

	if err := s.store.MarkEmailSent(ctx, n.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record email delivery", slog.String("notification_id", n.ID), slog.Any("error", err))
	}
}
