package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

const (
	notificationsCollection = "notifications"
	preferencesCollection   = "notificationpreferences"
)

type notificationDocument struct {
	ID          string         `bson:"_id"`
	UserID      string         `bson:"userId"`
	Title       string         `bson:"title"`
	Message     string         `bson:"message"`
	Read        bool           `bson:"read"`
	ReadAt      *time.Time     `bson:"readAt,omitempty"`
	Type        string         `bson:"type"`
	EmailSent   bool           `bson:"emailSent"`
	EmailSentAt *time.Time     `bson:"emailSentAt,omitempty"`
	Payload     map[string]any `bson:"payload,omitempty"`
	Metadata    map[string]any `bson:"metadata,omitempty"`
	CreatedAt   time.Time      `bson:"createdAt"`
	UpdatedAt   time.Time      `bson:"updatedAt"`
}

func (d notificationDocument) toModel() models.Notification {
	return models.Notification{
		ID:          d.ID,
		UserID:      d.UserID,
		Title:       d.Title,
		Message:     d.Message,
		Read:        d.Read,
		ReadAt:      d.ReadAt,
		Type:        models.NotificationType(d.Type),
		EmailSent:   d.EmailSent,
		EmailSentAt: d.EmailSentAt,
		Payload:     d.Payload,
		Metadata:    d.Metadata,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type preferenceDocument struct {
	UserID       string                   `bson:"userId"`
	EmailEnabled bool                     `bson:"emailEnabled"`
	PushEnabled  bool                     `bson:"pushEnabled"`
	Preferences  models.PreferenceDetails `bson:"preferences"`
	CreatedAt    time.Time                `bson:"createdAt"`
	UpdatedAt    time.Time                `bson:"updatedAt"`
}

// MongoStore persists notifications and preferences in MongoDB.
type MongoStore struct {
	notifications *mongo.Collection
	preferences   *mongo.Collection
	now           func() time.Time
}

// NewMongoStore ensures the indexes used by the queries and returns the store.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{
		notifications: db.Collection(notificationsCollection),
		preferences:   db.Collection(preferencesCollection),
		now:           time.Now,
	}
	_, err := s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create notifications index: %w", err)
	}
	_, err = s.preferences.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create preferences index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	doc := notificationDocument{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Title:     in.Title,
		Message:   in.Message,
		Type:      string(in.Type),
		Payload:   in.Payload,
		Metadata:  in.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.notifications.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	n := doc.toModel()
	return &n, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Notification, error) {
	var doc notificationDocument
	err := s.notifications.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n := doc.toModel()
	return &n, nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	filter := bson.M{"userId": userID}
	if unreadOnly {
		filter["read"] = false
	}
	cur, err := s.notifications.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []notificationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// MarkRead flips an unread document. An already read document keeps its readAt.
func (s *MongoStore) MarkRead(ctx context.Context, id string, at time.Time) (*models.Notification, error) {
	_, err := s.notifications.UpdateOne(ctx,
		bson.M{"_id": id, "read": false},
		bson.M{"$set": bson.M{"read": true, "readAt": at, "updatedAt": at}},
	)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *MongoStore) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := s.notifications.UpdateMany(ctx,
		bson.M{"userId": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "readAt": at, "updatedAt": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	res, err := s.notifications.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"emailSent": true, "emailSentAt": at, "updatedAt": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) GetPreference(ctx context.Context, userID string) (*models.Preference, error) {
	var doc preferenceDocument
	err := s.preferences.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.Preference{
		UserID:       doc.UserID,
		EmailEnabled: doc.EmailEnabled,
		PushEnabled:  doc.PushEnabled,
		Preferences:  doc.Preferences,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) UpsertPreference(ctx context.Context, p models.Preference) (*models.Preference, error) {
	now := s.now().UTC()
	_, err := s.preferences.UpdateOne(ctx,
		bson.M{"userId": p.UserID},
		bson.M{
			"$set": bson.M{
				"emailEnabled": p.EmailEnabled,
				"pushEnabled":  p.PushEnabled,
				"preferences":  p.Preferences,
				"updatedAt":    now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return nil, err
	}
	return s.GetPreference(ctx, p.UserID)
}
