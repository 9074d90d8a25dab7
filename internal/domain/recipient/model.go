package recipient

import (
	"errors"
	"time"

	"github.com/ehr/alerting/internal/platform/gateway"
	"github.com/ehr/alerting/internal/platform/validate"
)

var (
	ErrNotFound   = errors.New("notification preferences not found")
	ErrValidation = errors.New("validation failed")
)

// Preferences is a user's contact data and per-channel opt-in.
type Preferences struct {
	UserID          string    `json:"userId"`
	DisplayName     string    `json:"displayName"`
	Phone           string    `json:"phone,omitempty"`
	WhatsAppEnabled bool      `json:"whatsappEnabled"`
	SMSEnabled      bool      `json:"smsEnabled"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Enabled reports whether the user opted in to ch.
func (p *Preferences) Enabled(ch gateway.Channel) bool {
	switch ch {
	case gateway.ChannelWhatsApp:
		return p.WhatsAppEnabled
	case gateway.ChannelSMS:
		return p.SMSEnabled
	default:
		return false
	}
}

// Destination returns where to deliver on ch. ok is false when the user has
// not opted in or has no usable phone number.
func (p *Preferences) Destination(ch gateway.Channel) (string, bool) {
	if p == nil || !p.Enabled(ch) || !validate.IsPhone(p.Phone) {
		return "", false
	}
	return p.Phone, true
}

// Name is how messages address the user.
func (p *Preferences) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "usuario"
}

// UpdateRequest replaces the user's preferences.
type UpdateRequest struct {
	DisplayName     string `json:"displayName" validate:"max=255"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	WhatsAppEnabled bool   `json:"whatsappEnabled"`
	SMSEnabled      bool   `json:"smsEnabled"`
}
