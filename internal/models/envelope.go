package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEventType is returned when an envelope carries a tag no handler is registered for.
var ErrUnknownEventType = errors.New("unknown event type")

// EventType is the tag that determines the shape of an envelope payload.
type EventType string

const (
	EventCreatedAdmin          EventType = "CREATED_ADMIN"
	EventCreatedUser           EventType = "CREATED_USER"
	EventCreatedPartner        EventType = "CREATED_PARTNER"
	EventPartnerCreated        EventType = "PARTNER_CREATED"
	EventDriverCreated         EventType = "DRIVER_CREATED"
	EventAdminAssistantCreated EventType = "ADMIN_ASSISTANT_CREATED"
	EventUserLoggedIn          EventType = "USER_LOGGED_IN"
	EventPartnerValidated      EventType = "PARTNER_VALIDATED"
	EventOrderCreated          EventType = "ORDER_CREATED"
	EventParcelStatusUpdated   EventType = "PARCEL_STATUS_UPDATED"
)

// Known reports whether a handler exists for the tag.
func (t EventType) Known() bool {
	switch t {
	case EventCreatedAdmin, EventCreatedUser, EventCreatedPartner, EventPartnerCreated,
		EventDriverCreated, EventAdminAssistantCreated, EventUserLoggedIn,
		EventPartnerValidated, EventOrderCreated, EventParcelStatusUpdated:
		return true
	default:
		return false
	}
}

// ImpliedRole is the role of the created account for the user-creation tags.
func (t EventType) ImpliedRole() (Role, bool) {
	switch t {
	case EventCreatedAdmin:
		return RoleAdmin, true
	case EventCreatedUser:
		return RoleUser, true
	case EventCreatedPartner, EventPartnerCreated:
		return RolePartner, true
	case EventDriverCreated:
		return RoleDriver, true
	case EventAdminAssistantCreated:
		return RoleAdminAssistant, true
	default:
		return "", false
	}
}

// Envelope is the message published by upstream services onto the events exchange.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	Timestamp EventTime       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// EventTime is the producer's timestamp. It is informational, so a value in
// an unexpected format decodes to the zero time instead of failing the envelope.
type EventTime struct {
	time.Time
	Raw string
}

var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	*t = EventTime{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var millis int64
		if json.Unmarshal(data, &millis) == nil && millis > 0 {
			t.Time = time.UnixMilli(millis).UTC()
		}
		t.Raw = string(data)
		return nil
	}
	t.Raw = s
	for _, layout := range eventTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

func (t EventTime) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return json.Marshal(t.Raw)
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// ParseEnvelope decodes a broker message body. A body without an event type is rejected.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType == "" {
		return nil, errors.New("decode envelope: missing eventType")
	}
	return &env, nil
}

// DecodePayload unmarshals the envelope payload into dst.
func (e *Envelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return fmt.Errorf("%s: empty payload", e.EventType)
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("%s: decode payload: %w", e.EventType, err)
	}
	return nil
}

// UserCreatedPayload is carried by every account-creation tag.
type UserCreatedPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role,omitempty"`
}

// PartnerValidatedPayload names the partner and the admin that validated it.
type PartnerValidatedPayload struct {
	PartnerID   string `json:"partnerId"`
	ValidatedBy string `json:"validatedBy"`
}

// OrderPayload is carried by ORDER_CREATED and PARCEL_STATUS_UPDATED.
type OrderPayload struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	UserID  string `json:"userId"`
}

// UserLoggedInPayload is informational only.
type UserLoggedInPayload struct {
	UserID     string `json:"userId"`
	IPAddress  string `json:"ipAddress,omitempty"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
}
