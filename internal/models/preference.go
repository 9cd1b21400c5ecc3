package models

import "time"

// Category groups notifications for opt-out purposes.
type Category string

const (
	CategoryOrderUpdates   Category = "orderUpdates"
	CategoryPromotions     Category = "promotions"
	CategoryAccountChanges Category = "accountChanges"
)

// PreferenceDetails holds the per-category switches.
type PreferenceDetails struct {
	OrderUpdates   bool `json:"orderUpdates" bson:"orderUpdates"`
	Promotions     bool `json:"promotions" bson:"promotions"`
	AccountChanges bool `json:"accountChanges" bson:"accountChanges"`
}

// Preference is the per-user notification preference record.
type Preference struct {
	UserID       string            `json:"userId"`
	EmailEnabled bool              `json:"emailEnabled"`
	PushEnabled  bool              `json:"pushEnabled"`
	Preferences  PreferenceDetails `json:"preferences"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// DefaultPreference is what a user without a stored record gets.
func DefaultPreference(userID string) Preference {
	return Preference{
		UserID:       userID,
		EmailEnabled: true,
		PushEnabled:  true,
		Preferences: PreferenceDetails{
			OrderUpdates:   true,
			Promotions:     true,
			AccountChanges: true,
		},
	}
}

// Allows reports whether the category is enabled.
func (p Preference) Allows(c Category) bool {
	switch c {
	case CategoryOrderUpdates:
		return p.Preferences.OrderUpdates
	case CategoryPromotions:
		return p.Preferences.Promotions
	case CategoryAccountChanges:
		return p.Preferences.AccountChanges
	default:
		return true
	}
}

// Effective narrows the requested type to the channels the user accepts.
// ok is false when nothing is left to deliver.
func (p Preference) Effective(t NotificationType) (NotificationType, bool) {
	email := t.IncludesEmail() && p.EmailEnabled
	push := t.IncludesPush() && p.PushEnabled
	switch {
	case email && push:
		return TypeBoth, true
	case email:
		return TypeEmail, true
	case push:
		return TypePush, true
	default:
		return "", false
	}
}

// PreferencePatch is a partial update. Nil fields are left untouched.
// Email and Push are the flat aliases accepted from older clients.
type PreferencePatch struct {
	EmailEnabled   *bool `json:"emailEnabled,omitempty"`
	PushEnabled    *bool `json:"pushEnabled,omitempty"`
	Email          *bool `json:"email,omitempty"`
	Push           *bool `json:"push,omitempty"`
	OrderUpdates   *bool `json:"orderUpdates,omitempty"`
	Promotions     *bool `json:"promotions,omitempty"`
	AccountChanges *bool `json:"accountChanges,omitempty"`
}

// Apply returns p with the patch applied. The nested flags win over the flat aliases.
func (patch PreferencePatch) Apply(p Preference) Preference {
	if patch.Email != nil {
		p.EmailEnabled = *patch.Email
	}
	if patch.Push != nil {
		p.PushEnabled = *patch.Push
	}
	if patch.EmailEnabled != nil {
		p.EmailEnabled = *patch.EmailEnabled
	}
	if patch.PushEnabled != nil {
		p.PushEnabled = *patch.PushEnabled
	}
	if patch.OrderUpdates != nil {
		p.Preferences.OrderUpdates = *patch.OrderUpdates
	}
	if patch.Promotions != nil {
		p.Preferences.Promotions = *patch.Promotions
	}
	if patch.AccountChanges != nil {
		p.Preferences.AccountChanges = *patch.AccountChanges
	}
	return p
}
