package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

const (
	payloadPartnerCreated          = "PARTNER_CREATED"
	payloadPartnerValidated        = "PARTNER_VALIDATED"
	payloadPartnerValidatedByOther = "PARTNER_VALIDATED_BY_OTHER"
	payloadOrderUpdate             = "ORDER_UPDATE"
	payloadUserCreated             = "USER_CREATED"
)

// Dispatch routes an event to its handler. Unknown event types return
// models.ErrUnknownEventType; any other error means the event could not be
// fully handled. Recipients notified before a failure keep their notification.
func (s *NotificationService) Dispatch(ctx context.Context, env *models.Envelope) error {
	log := s.logger.With(slog.String("event_id", env.EventID), slog.String("event_type", string(env.EventType)))
	meta := map[string]any{"eventId": env.EventID, "sourceEvent": string(env.EventType)}

	switch env.EventType {
	case models.EventPartnerCreated:
		var p models.UserCreatedPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		return s.handlePartnerCreated(ctx, log, p, meta)

	case models.EventCreatedAdmin, models.EventCreatedUser, models.EventCreatedPartner,
		models.EventDriverCreated, models.EventAdminAssistantCreated:
		var p models.UserCreatedPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		role := models.ParseRole(string(p.Role))
		if role == "" {
			role, _ = env.EventType.ImpliedRole()
		}
		return s.handleUserCreated(ctx, log, role, p, meta)

	case models.EventUserLoggedIn:
		var p models.UserLoggedInPayload
		if err := env.DecodePayload(&p); err != nil {
			log.Warn("login event without payload", slog.Any("error", err))
			return nil
		}
		log.Info("user logged in",
			slog.String("user_id", p.UserID),
			slog.String("ip_address", p.IPAddress),
			slog.String("device", p.DeviceInfo),
		)
		return nil

	case models.EventPartnerValidated:
		var p models.PartnerValidatedPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		return s.handlePartnerValidated(ctx, log, p, meta)

	case models.EventOrderCreated, models.EventParcelStatusUpdated:
		var p models.OrderPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		return s.handleOrderUpdate(ctx, p, meta)

	default:
		return fmt.Errorf("%w: %s", models.ErrUnknownEventType, env.EventType)
	}
}

func (s *NotificationService) handleUserCreated(ctx context.Context, log *slog.Logger, role models.Role, p models.UserCreatedPayload, meta map[string]any) error {
	switch role {
	case models.RolePartner:
		return s.handlePartnerCreated(ctx, log, p, meta)
	case models.RoleAdmin, models.RoleAdminAssistant:
		return s.handleAdminCreated(ctx, log, role, p, meta)
	case models.RoleSuperAdmin:
		log.Info("super admin created", slog.String("user_id", p.UserID), slog.String("email", p.Email))
		return nil
	case models.RoleUser, models.RoleDriver:
		if p.UserID == "" {
			return errors.New("user created event without userId")
		}
		return s.createAndDeliver(ctx, models.DirectoryEntry{ID: p.UserID, Email: p.Email, Name: p.Name, Role: role}, delivery{
			Title:    "Welcome!",
			Message:  "Your account has been successfully created",
			Type:     models.TypePush,
			Category: models.CategoryAccountChanges,
			Payload:  map[string]any{"eventType": payloadUserCreated},
			Metadata: meta,
		})
	default:
		log.Info("no handler for created role", slog.String("role", string(role)))
		return nil
	}
}

// handlePartnerCreated notifies every admin and admin assistant that a
// partner awaits validation.
func (s *NotificationService) handlePartnerCreated(ctx context.Context, log *slog.Logger, p models.UserCreatedPayload, meta map[string]any) error {
	if p.UserID == "" {
		return errors.New("partner created event without userId")
	}

	recipients := s.recipients(ctx, models.RoleAdmin, models.RoleAdminAssistant)
	if len(recipients) == 0 {
		log.Warn("no admins to notify about new partner", slog.String("partner_id", p.UserID))
		return nil
	}

	for _, r := range recipients {
		err := s.createAndDeliver(ctx, r, delivery{
			Title:    "New Partner Awaiting Approval",
			Message:  fmt.Sprintf("Partner %s (%s) is awaiting your validation", p.Name, p.Email),
			Type:     models.TypeBoth,
			Category: models.CategoryAccountChanges,
			Payload:  map[string]any{"partnerId": p.UserID, "eventType": payloadPartnerCreated},
			Metadata: meta,
		})
		if err != nil {
			return fmt.Errorf("notify admin %s: %w", r.ID, err)
		}
	}
	return nil
}

// handleAdminCreated emails every super admin.
func (s *NotificationService) handleAdminCreated(ctx context.Context, log *slog.Logger, role models.Role, p models.UserCreatedPayload, meta map[string]any) error {
	recipients := s.recipients(ctx, models.RoleSuperAdmin)
	if len(recipients) == 0 {
		log.Warn("no super admins to notify", slog.String("user_id", p.UserID))
		return nil
	}

	for _, r := range recipients {
		err := s.createAndDeliver(ctx, r, delivery{
			Title:    fmt.Sprintf("New %s Created", role),
			Message:  fmt.Sprintf("A new %s (%s, %s) has been created", role, p.Name, p.Email),
			Type:     models.TypeEmail,
			Category: models.CategoryAccountChanges,
			Payload:  map[string]any{"userId": p.UserID, "eventType": string(role) + "_CREATED"},
			Metadata: meta,
		})
		if err != nil {
			return fmt.Errorf("notify super admin %s: %w", r.ID, err)
		}
	}
	return nil
}

// handlePartnerValidated tells the partner, then every other admin.
func (s *NotificationService) handlePartnerValidated(ctx context.Context, log *slog.Logger, p models.PartnerValidatedPayload, meta map[string]any) error {
	if p.PartnerID == "" || p.ValidatedBy == "" {
		return errors.New("partner validated event without partnerId or validatedBy")
	}

	partner, err := s.directory.GetByID(ctx, p.PartnerID)
	if err != nil {
		log.Warn("partner not found for validation event", slog.String("partner_id", p.PartnerID))
		return nil
	}
	admin, err := s.directory.GetByID(ctx, p.ValidatedBy)
	if err != nil {
		log.Warn("validating admin not found", slog.String("admin_id", p.ValidatedBy))
		return nil
	}

	err = s.createAndDeliver(ctx, *partner, delivery{
		Title:    "Account Validated",
		Message:  fmt.Sprintf("Your partner account has been validated by %s", admin.Name),
		Type:     models.TypeBoth,
		Category: models.CategoryAccountChanges,
		Payload:  map[string]any{"eventType": payloadPartnerValidated, "validatedBy": admin.Name},
		Metadata: meta,
	})
	if err != nil {
		return fmt.Errorf("notify partner %s: %w", partner.ID, err)
	}

	for _, other := range s.recipients(ctx, models.RoleAdmin) {
		if other.ID == p.ValidatedBy {
			continue
		}
		err := s.createAndDeliver(ctx, other, delivery{
			Title:    "Partner Validated",
			Message:  fmt.Sprintf("Partner %s has been validated by %s", partner.Name, admin.Name),
			Type:     models.TypePush,
			Category: models.CategoryAccountChanges,
			Payload:  map[string]any{"partnerId": p.PartnerID, "eventType": payloadPartnerValidatedByOther},
			Metadata: meta,
		})
		if err != nil {
			return fmt.Errorf("notify admin %s: %w", other.ID, err)
		}
	}
	return nil
}

func (s *NotificationService) handleOrderUpdate(ctx context.Context, p models.OrderPayload, meta map[string]any) error {
	if p.UserID == "" || p.OrderID == "" {
		return errors.New("order event without userId or orderId")
	}
	return s.createAndDeliver(ctx, models.DirectoryEntry{ID: p.UserID}, delivery{
		Title:    "Order Status Update",
		Message:  fmt.Sprintf("Your order #%s status is now %s", p.OrderID, p.Status),
		Type:     models.TypePush,
		Category: models.CategoryOrderUpdates,
		Payload:  map[string]any{"orderId": p.OrderID, "status": p.Status, "eventType": payloadOrderUpdate},
		Metadata: meta,
	})
}

// recipients concatenates the role lookups in order, skipping duplicate ids.
func (s *NotificationService) recipients(ctx context.Context, roles ...models.Role) []models.DirectoryEntry {
	seen := make(map[string]struct{})
	var out []models.DirectoryEntry
	for _, role := range roles {
		for _, entry := range s.directory.GetByRole(ctx, role) {
			if entry.ID == "" {
				continue
			}
			if _, dup := seen[entry.ID]; dup {
				continue
			}
			seen[entry.ID] = struct{}{}
			out = append(out, entry)
		}
	}
	return out
}
