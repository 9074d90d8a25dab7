package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/alerting/internal/platform/clock"
	"github.com/ehr/alerting/internal/platform/validate"
)

type EventType string

const (
	EventDocumentExpiring    EventType = "documentExpiring"
	EventMedicationReminder  EventType = "medicationReminder"
	EventVaccineDue          EventType = "vaccineDue"
	EventInsuranceRenewal    EventType = "insuranceRenewal"
	EventAppointmentReminder EventType = "appointmentReminder"
	EventFamilyMemberShared  EventType = "familyMemberShared"
	EventSecurityAlert       EventType = "securityAlert"
)

// Windows in calendar days; an event is eligible when 0 < days <= window.
const (
	DocumentWindowDays    = 30
	VaccineWindowDays     = 30
	InsuranceWindowDays   = 60
	AppointmentWindowDays = 7
)

// MedicationLeadTime is how long before a dose its reminder becomes due.
const MedicationLeadTime = 60 * time.Minute

// Event is a typed domain event the generator turns into at most one open
// alert per semantic key.
type Event struct {
	Type         EventType  `json:"type" validate:"required,oneof=documentExpiring medicationReminder vaccineDue insuranceRenewal appointmentReminder familyMemberShared securityAlert"`
	OwnerUserID  string     `json:"ownerUserId" validate:"required,max=128"`
	SubjectID    string     `json:"subjectId" validate:"required,max=128"`
	OccurrenceID string     `json:"occurrenceId,omitempty" validate:"max=128"`
	Label        string     `json:"label" validate:"required,max=255"`
	DueAt        *time.Time `json:"dueAt,omitempty"`
	Detail       string     `json:"detail,omitempty" validate:"max=500"`
	Link         string     `json:"link,omitempty" validate:"omitempty,max=2048"`
}

type Outcome string

const (
	OutcomeCreated            Outcome = "created"
	OutcomeSkippedDuplicate   Outcome = "skippedDuplicate"
	OutcomeSkippedOutOfWindow Outcome = "skippedOutOfWindow"
)

// Result reports what Generate did. Alert is set only when created.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	DaysUntil *int    `json:"daysUntil,omitempty"`
	Alert     *Alert  `json:"alert,omitempty"`
}

// Generator converts domain events into deduplicated alerts.
type Generator struct {
	repo  Repository
	clock clock.Clock
	loc   *time.Location
}

func NewGenerator(repo Repository, clk clock.Clock, loc *time.Location) *Generator {
	return &Generator{repo: repo, clock: clk, loc: loc}
}

// Generate applies the event's eligibility window and then performs a single
// conditional insert. A key that already has an open alert is skipped.
func (g *Generator) Generate(ctx context.Context, ev Event) (Result, error) {
	if err := validate.Struct(ev); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	now := g.clock.Now()

	a, days, eligible, err := g.build(ev, now)
	if err != nil {
		return Result{}, err
	}
	if !eligible {
		return Result{Outcome: OutcomeSkippedOutOfWindow, DaysUntil: days}, nil
	}

	inserted, err := g.repo.Insert(ctx, a)
	if err != nil {
		return Result{}, fmt.Errorf("insert %s alert: %w", a.Type, err)
	}
	if !inserted {
		return Result{Outcome: OutcomeSkippedDuplicate, DaysUntil: days}, nil
	}
	return Result{Outcome: OutcomeCreated, DaysUntil: days, Alert: a}, nil
}

func (g *Generator) build(ev Event, now time.Time) (*Alert, *int, bool, error) {
	a := &Alert{
		ID:          uuid.New(),
		OwnerUserID: ev.OwnerUserID,
		Status:      StatusPending,
		Link:        stringPtr(ev.Link),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var days *int
	if ev.DueAt != nil {
		d := clock.CalendarDays(now, *ev.DueAt, g.loc)
		days = &d
	}
	requireDue := func() error {
		if ev.DueAt == nil {
			return fmt.Errorf("%w: dueAt is required for %s", ErrValidation, ev.Type)
		}
		return nil
	}
	inWindow := func(window int) bool { return *days > 0 && *days <= window }

	switch ev.Type {
	case EventDocumentExpiring:
		if err := requireDue(); err != nil {
			return nil, nil, false, err
		}
		a.Type = TypeDocumentReminder
		a.Priority = priorityPtr(ExpiryPriority(*days))
		a.Message = fmt.Sprintf("Tu documento \"%s\" vence %s", ev.Label, inDays(*days))
		if !inWindow(DocumentWindowDays) {
			return nil, days, false, nil
		}

	case EventInsuranceRenewal:
		if err := requireDue(); err != nil {
			return nil, nil, false, err
		}
		a.Type = TypeInsurance
		a.Priority = priorityPtr(ExpiryPriority(*days))
		a.Message = fmt.Sprintf("Tu póliza \"%s\" vence %s", ev.Label, inDays(*days))
		if !inWindow(InsuranceWindowDays) {
			return nil, days, false, nil
		}

	case EventVaccineDue:
		if err := requireDue(); err != nil {
			return nil, nil, false, err
		}
		a.Type = TypeVaccine
		a.Priority = priorityPtr(VaccinePriority(*days))
		a.Message = fmt.Sprintf("Tu próxima dosis de %s es %s", ev.Label, inDays(*days))
		if !inWindow(VaccineWindowDays) {
			return nil, days, false, nil
		}

	case EventAppointmentReminder:
		if err := requireDue(); err != nil {
			return nil, nil, false, err
		}
		a.Type = TypeAppointment
		a.Priority = priorityPtr(AppointmentPriority(*days))
		a.Message = fmt.Sprintf("Tienes una cita: %s el %s", ev.Label, ev.DueAt.In(g.loc).Format("02/01/2006 15:04"))
		if !ev.DueAt.After(now) || *days > AppointmentWindowDays {
			return nil, days, false, nil
		}

	case EventMedicationReminder:
		if err := requireDue(); err != nil {
			return nil, nil, false, err
		}
		a.Type = TypeMedication
		a.Priority = priorityPtr(PriorityHigh)
		trigger := ev.DueAt.Add(-MedicationLeadTime)
		a.TriggerDate = &trigger
		a.Message = fmt.Sprintf("Toma %s a las %s", ev.Label, ev.DueAt.In(g.loc).Format("15:04"))
		if ev.Detail != "" {
			a.Message += " (" + ev.Detail + ")"
		}
		if !ev.DueAt.After(now) {
			return nil, days, false, nil
		}

	case EventFamilyMemberShared:
		a.Type = TypeFamilyActivity
		a.Status = StatusInfo
		a.Message = fmt.Sprintf("%s compartió información contigo", ev.Label)
		if ev.Detail != "" {
			a.Message = fmt.Sprintf("%s compartió %s contigo", ev.Label, ev.Detail)
		}

	case EventSecurityAlert:
		a.Type = TypeSecurityAlert
		a.Status = StatusInfo
		a.Priority = priorityPtr(PriorityHigh)
		a.Message = "Alerta de seguridad: " + ev.Label
		if ev.Detail != "" {
			a.Message += ". " + ev.Detail
		}

	default:
		return nil, nil, false, fmt.Errorf("%w: unknown event type %q", ErrValidation, ev.Type)
	}

	a.Source = SourceFor(a.Type)
	key := SemanticKey(a.Type, ev.SubjectID, ev.OccurrenceID)
	a.SemanticKey = &key
	return a, days, true, nil
}

// SourceFor routes an alert type to its backing table.
func SourceFor(t Type) Source {
	switch t {
	case TypeFamilyActivity, TypeSecurityAlert, TypeCustom:
		return SourceCustomAlert
	default:
		return SourceReminder
	}
}

func inDays(days int) string {
	switch days {
	case 0:
		return "hoy"
	case 1:
		return "mañana"
	default:
		return fmt.Sprintf("en %d días", days)
	}
}
