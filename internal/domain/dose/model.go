package dose

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusTaken     Status = "taken"
	StatusMissed    Status = "missed"
	StatusPending   Status = "pending"
)

var (
	ErrNotFound     = errors.New("dose not found")
	ErrAlreadyTaken = errors.New("dose already taken")
	ErrValidation   = errors.New("validation failed")
)

// MedicineRef is the medicine snapshot copied onto every dose.
type MedicineRef struct {
	Name           string  `json:"name" db:"medicine_name"`
	Dosage         string  `json:"dosage" db:"dosage"`
	Instructions   *string `json:"instructions,omitempty" db:"instructions"`
	FrequencyHours int     `json:"frequencyHours" db:"frequency_hours"`
}

type Prescription struct {
	ID         uuid.UUID   `json:"id"`
	UserID     string      `json:"userId"`
	Medicine   MedicineRef `json:"medicine"`
	StartsAt   time.Time   `json:"startsAt"`
	TotalDoses int         `json:"totalDoses"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Dose is one planned administration. Doses are never deleted; they form the
// adherence history.
type Dose struct {
	ID             uuid.UUID   `json:"id"`
	PrescriptionID uuid.UUID   `json:"prescriptionId"`
	UserID         string      `json:"userId"`
	Medicine       MedicineRef `json:"medicine"`
	ScheduledAt    time.Time   `json:"scheduledAt"`
	Status         Status      `json:"status"`
	TakenAt        *time.Time  `json:"takenAt,omitempty"`
	DelayMinutes   *int        `json:"delayMinutes,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// View decorates a dose for display at a given instant.
type View struct {
	*Dose
	Urgency     Urgency  `json:"urgency"`
	Progress    Progress `json:"progress"`
	Punctuality string   `json:"punctuality,omitempty"`
}

func NewView(d *Dose, now time.Time) View {
	v := View{Dose: d, Urgency: Classify(d.ScheduledAt, now), Progress: TimeProgress(d.ScheduledAt, now)}
	if d.TakenAt != nil {
		v.Punctuality = FormatDelay(d.DelayMinutes)
	}
	return v
}

// CreatePrescriptionRequest registers a medicine course.
type CreatePrescriptionRequest struct {
	MedicineName   string    `json:"medicineName" validate:"required,max=255"`
	Dosage         string    `json:"dosage" validate:"required,max=128"`
	Instructions   string    `json:"instructions,omitempty" validate:"max=1000"`
	FrequencyHours int       `json:"frequencyHours" validate:"required,min=1,max=168"`
	StartsAt       time.Time `json:"startsAt" validate:"required"`
	TotalDoses     int       `json:"totalDoses" validate:"required,min=1,max=500"`
}

// Schedule expands the request into one dose per planned administration.
func (r CreatePrescriptionRequest) Schedule(p *Prescription) []*Dose {
	step := time.Duration(r.FrequencyHours) * time.Hour
	doses := make([]*Dose, 0, r.TotalDoses)
	for i := 0; i < r.TotalDoses; i++ {
		doses = append(doses, &Dose{
			ID:             uuid.New(),
			PrescriptionID: p.ID,
			UserID:         p.UserID,
			Medicine:       p.Medicine,
			ScheduledAt:    p.StartsAt.Add(time.Duration(i) * step),
			Status:         StatusScheduled,
			CreatedAt:      p.CreatedAt,
		})
	}
	return doses
}
