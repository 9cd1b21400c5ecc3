package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

// NotificationRecord is the relational row of a notification.
type NotificationRecord struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	UserID      string `gorm:"type:varchar(64);not null;index:idx_notifications_user_created,priority:1"`
	Title       string `gorm:"type:varchar(255);not null"`
	Message     string `gorm:"type:text;not null"`
	IsRead      bool   `gorm:"not null;default:false;index"`
	ReadAt      *time.Time
	Type        string `gorm:"type:varchar(16);not null;default:'push'"`
	EmailSent   bool   `gorm:"not null;default:false"`
	EmailSentAt *time.Time
	Payload     datatypes.JSONMap `gorm:"type:jsonb"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"index:idx_notifications_user_created,priority:2,sort:desc"`
	UpdatedAt   time.Time
}

func (NotificationRecord) TableName() string { return "notifications" }

func newNotificationRecord(in models.NewNotification, now time.Time) NotificationRecord {
	return NotificationRecord{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Title:     in.Title,
		Message:   in.Message,
		Type:      string(in.Type),
		Payload:   datatypes.JSONMap(in.Payload),
		Metadata:  datatypes.JSONMap(in.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r NotificationRecord) toModel() models.Notification {
	return models.Notification{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Message:     r.Message,
		Read:        r.IsRead,
		ReadAt:      r.ReadAt,
		Type:        models.NotificationType(r.Type),
		EmailSent:   r.EmailSent,
		EmailSentAt: r.EmailSentAt,
		Payload:     map[string]any(r.Payload),
		Metadata:    map[string]any(r.Metadata),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// PreferenceRecord is the relational row of a notification preference.
type PreferenceRecord struct {
	UserID         string `gorm:"type:varchar(64);primaryKey"`
	EmailEnabled   bool   `gorm:"not null"`
	PushEnabled    bool   `gorm:"not null"`
	OrderUpdates   bool   `gorm:"not null"`
	Promotions     bool   `gorm:"not null"`
	AccountChanges bool   `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (PreferenceRecord) TableName() string { return "notification_preferences" }

func (r PreferenceRecord) toModel() models.Preference {
	return models.Preference{
		UserID:       r.UserID,
		EmailEnabled: r.EmailEnabled,
		PushEnabled:  r.PushEnabled,
		Preferences: models.PreferenceDetails{
			OrderUpdates:   r.OrderUpdates,
			Promotions:     r.Promotions,
			AccountChanges: r.AccountChanges,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// GormStore persists notifications and preferences in Postgres.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore migrates the schema and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&NotificationRecord{}, &PreferenceRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func (s *GormStore) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	rec := newNotificationRecord(in, s.now().UTC())
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	n := rec.toModel()
	return &n, nil
}

// validRecordID reports whether id can match the uuid primary key. Postgres
// rejects a malformed uuid literal instead of finding no row.
func validRecordID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Notification, error) {
	if !validRecordID(id) {
		return nil, ErrNotFound
	}
	var rec NotificationRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n := rec.toModel()
	return &n, nil
}

func (s *GormStore) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var recs []NotificationRecord
	if err := q.Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toModel())
	}
	return out, nil
}

// MarkRead flips an unread record. An already read record keeps its ReadAt.
func (s *GormStore) MarkRead(ctx context.Context, id string, at time.Time) (*models.Notification, error) {
	if !validRecordID(id) {
		return nil, ErrNotFound
	}
	err := s.db.WithContext(ctx).Model(&NotificationRecord{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{"is_read": true, "read_at": at, "updated_at": at}).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *GormStore) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&NotificationRecord{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (s *GormStore) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	if !validRecordID(id) {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).Model(&NotificationRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"email_sent": true, "email_sent_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetPreference(ctx context.Context, userID string) (*models.Preference, error) {
	var rec PreferenceRecord
	err := s.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := rec.toModel()
	return &p, nil
}

func (s *GormStore) UpsertPreference(ctx context.Context, p models.Preference) (*models.Preference, error) {
	now := s.now().UTC()
	rec := PreferenceRecord{
		UserID:         p.UserID,
		EmailEnabled:   p.EmailEnabled,
		PushEnabled:    p.PushEnabled,
		OrderUpdates:   p.Preferences.OrderUpdates,
		Promotions:     p.Preferences.Promotions,
		AccountChanges: p.Preferences.AccountChanges,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email_enabled", "push_enabled", "order_updates", "promotions", "account_changes", "updated_at",
			}),
		}).Create(&rec).Error
	if err != nil {
		return nil, err
	}
	return s.GetPreference(ctx, p.UserID)
}
