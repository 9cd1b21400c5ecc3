package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

// MemoryStore keeps notifications and preferences in process memory.
// Used for local development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	notifications map[string]*memoryEntry
	preferences   map[string]models.Preference
	seq           uint64
	now           func() time.Time
}

type memoryEntry struct {
	n   models.Notification
	seq uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notifications: make(map[string]*memoryEntry),
		preferences:   make(map[string]models.Preference),
		now:           time.Now,
	}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Create(_ context.Context, in models.NewNotification) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.seq++
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Title:     in.Title,
		Message:   in.Message,
		Type:      in.Type,
		Payload:   cloneMap(in.Payload),
		Metadata:  cloneMap(in.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.notifications[n.ID] = &memoryEntry{n: n, seq: s.seq}
	out := n
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := e.n
	return &out, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0)
	for _, e := range s.notifications {
		if e.n.UserID != userID {
			continue
		}
		if unreadOnly && e.n.Read {
			continue
		}
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].n.CreatedAt.Equal(entries[j].n.CreatedAt) {
			return entries[i].n.CreatedAt.After(entries[j].n.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})
	out := make([]models.Notification, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.n)
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, id string, at time.Time) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.n.Read {
		readAt := at
		e.n.Read = true
		e.n.ReadAt = &readAt
		e.n.UpdatedAt = at
	}
	out := e.n
	return &out, nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, e := range s.notifications {
		if e.n.UserID != userID || e.n.Read {
			continue
		}
		readAt := at
		e.n.Read = true
		e.n.ReadAt = &readAt
		e.n.UpdatedAt = at
		changed++
	}
	return changed, nil
}

func (s *MemoryStore) MarkEmailSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.notifications[id]
	if !ok {
		return ErrNotFound
	}
	sentAt := at
	e.n.EmailSent = true
	e.n.EmailSentAt = &sentAt
	e.n.UpdatedAt = at
	return nil
}

func (s *MemoryStore) GetPreference(_ context.Context, userID string) (*models.Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preferences[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) UpsertPreference(_ context.Context, p models.Preference) (*models.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if existing, ok := s.preferences[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.preferences[p.UserID] = p
	out := p
	return &out, nil
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
