package dose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/alerting/internal/domain/alert"
	"github.com/ehr/alerting/internal/platform/clock"
	"github.com/ehr/alerting/internal/platform/validate"
)

// ReminderGenerator is the part of the alert engine doses feed.
type ReminderGenerator interface {
	Generate(ctx context.Context, ev alert.Event) (alert.Result, error)
}

type Service struct {
	repo   Repository
	alerts ReminderGenerator
	clock  clock.Clock
	log    zerolog.Logger
}

func NewService(repo Repository, alerts ReminderGenerator, clk clock.Clock, log zerolog.Logger) *Service {
	return &Service{repo: repo, alerts: alerts, clock: clk, log: log}
}

// ReminderEvent is the medicationReminder event for one dose. The dose id is
// the occurrence so every administration gets its own alert.
func ReminderEvent(d *Dose) alert.Event {
	due := d.ScheduledAt
	return alert.Event{
		Type:         alert.EventMedicationReminder,
		OwnerUserID:  d.UserID,
		SubjectID:    d.PrescriptionID.String(),
		OccurrenceID: d.ID.String(),
		Label:        d.Medicine.Name,
		Detail:       d.Medicine.Dosage,
		DueAt:        &due,
		Link:         "/medications/doses/" + d.ID.String(),
	}
}

type RegisterResult struct {
	Prescription *Prescription `json:"prescription"`
	Doses        []*Dose       `json:"doses"`
	Reminder     *alert.Result `json:"reminder,omitempty"`
}

// RegisterPrescription writes the prescription with its full dose schedule
// and generates the reminder for the first dose. Later doses are picked up
// by the dose poll.
func (s *Service) RegisterPrescription(ctx context.Context, userID string, req CreatePrescriptionRequest) (*RegisterResult, error) {
	req.MedicineName = strings.TrimSpace(req.MedicineName)
	req.Dosage = strings.TrimSpace(req.Dosage)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.clock.Now()
	p := &Prescription{
		ID:     uuid.New(),
		UserID: userID,
		Medicine: MedicineRef{
			Name:           req.MedicineName,
			Dosage:         req.Dosage,
			FrequencyHours: req.FrequencyHours,
		},
		StartsAt:   req.StartsAt,
		TotalDoses: req.TotalDoses,
		CreatedAt:  now,
	}
	if instr := strings.TrimSpace(req.Instructions); instr != "" {
		p.Medicine.Instructions = &instr
	}
	doses := req.Schedule(p)

	if err := s.repo.CreatePrescription(ctx, p, doses); err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}

	out := &RegisterResult{Prescription: p, Doses: doses}
	res, err := s.alerts.Generate(ctx, ReminderEvent(doses[0]))
	if err != nil {
		s.log.Warn().Err(err).Str("prescription_id", p.ID.String()).Msg("first dose reminder not generated")
		return out, nil
	}
	out.Reminder = &res
	return out, nil
}

// ListDoses returns the user's doses in [from, to] decorated for display.
func (s *Service) ListDoses(ctx context.Context, userID string, from, to time.Time) ([]View, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: window end before start", ErrValidation)
	}
	doses, err := s.repo.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list doses: %w", err)
	}
	now := s.clock.Now()
	views := make([]View, 0, len(doses))
	for _, d := range doses {
		views = append(views, NewView(d, now))
	}
	return views, nil
}

// MarkTaken records that the user took the dose now.
func (s *Service) MarkTaken(ctx context.Context, userID string, id uuid.UUID) (*View, error) {
	d, err := s.repo.GetDose(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusTaken {
		return nil, ErrAlreadyTaken
	}

	now := s.clock.Now()
	ok, err := s.repo.MarkTaken(ctx, userID, id, now, DelayMinutes(d.ScheduledAt, now))
	if err != nil {
		return nil, fmt.Errorf("mark dose taken: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyTaken
	}

	d, err = s.repo.GetDose(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	v := NewView(d, now)
	return &v, nil
}
