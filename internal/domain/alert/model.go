package alert

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Source is the backing table an alert lives in. It decides which
// mutations are legal.
type Source string

const (
	SourceReminder    Source = "reminder"
	SourceCustomAlert Source = "customAlert"
)

func (s Source) Valid() bool {
	return s == SourceReminder || s == SourceCustomAlert
}

type Type string

const (
	TypeDocumentReminder Type = "documentReminder"
	TypeMedication       Type = "medication"
	TypeVaccine          Type = "vaccine"
	TypeAppointment      Type = "appointment"
	TypeInsurance        Type = "insurance"
	TypeFamilyActivity   Type = "familyActivity"
	TypeSecurityAlert    Type = "securityAlert"
	TypeCustom           Type = "custom"
)

var validTypes = map[Type]bool{
	TypeDocumentReminder: true, TypeMedication: true, TypeVaccine: true, TypeAppointment: true,
	TypeInsurance: true, TypeFamilyActivity: true, TypeSecurityAlert: true, TypeCustom: true,
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusInfo      Status = "info"
	StatusCompleted Status = "completed"
	StatusSnoozed   Status = "snoozed"
	StatusCancelled Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusInfo: true, StatusCompleted: true, StatusSnoozed: true, StatusCancelled: true,
}

// openStatuses are the non-terminal statuses covered by the semantic-key
// unique index.
var openStatuses = []Status{StatusPending, StatusSnoozed, StatusInfo}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// priorityOrder is the presentation order of priority buckets.
var priorityOrder = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	for _, o := range priorityOrder {
		if p == o {
			return true
		}
	}
	return false
}

var (
	ErrNotFound          = errors.New("alert not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
	ErrUnsupportedSource = errors.New("operation not supported for alert source")
)

// Alert is the unified alert record. Reminder and custom-alert rows share
// this shape; IsRead is only meaningful for custom alerts.
type Alert struct {
	ID          uuid.UUID  `json:"id"`
	Source      Source     `json:"sourceTable"`
	OwnerUserID string     `json:"ownerUserId"`
	Type        Type       `json:"type"`
	Message     string     `json:"message"`
	Status      Status     `json:"status"`
	Priority    *Priority  `json:"priority,omitempty"`
	IsRead      bool       `json:"isRead"`
	TriggerDate *time.Time `json:"triggerDate,omitempty"`
	Link        *string    `json:"link,omitempty"`
	SemanticKey *string    `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Ref identifies one alert across sources.
type Ref struct {
	ID     uuid.UUID `json:"id" validate:"required"`
	Source Source    `json:"source" validate:"required,oneof=reminder customAlert"`
}

// Selection is a client-side selected row as used by bulk mark-read.
type Selection struct {
	ID     uuid.UUID `json:"id" validate:"required"`
	Source Source    `json:"source" validate:"required,oneof=reminder customAlert"`
	IsRead bool      `json:"isRead"`
}

func priorityPtr(p Priority) *Priority { return &p }

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
