package dose

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// CreatePrescription stores the prescription and all of its doses
	// atomically.
	CreatePrescription(ctx context.Context, p *Prescription, doses []*Dose) error
	GetDose(ctx context.Context, userID string, id uuid.UUID) (*Dose, error)
	// ListByUser returns a user's doses scheduled in [from, to], oldest first.
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*Dose, error)
	// ListScheduledBetween returns doses of every user still scheduled in
	// [from, to].
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]*Dose, error)
	// MarkTaken records the intake if the dose is not taken yet.
	MarkTaken(ctx context.Context, userID string, id uuid.UUID, takenAt time.Time, delayMinutes int) (bool, error)
}
