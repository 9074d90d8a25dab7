// Package subject reads the documents, insurance policies and vaccines whose
// dates drive expiry reminders. The engine never writes these tables.
package subject

import (
	"fmt"
	"time"

	"github.com/ehr/alerting/internal/domain/alert"
)

type Kind string

const (
	KindDocument  Kind = "document"
	KindInsurance Kind = "insurance"
	KindVaccine   Kind = "vaccine"
)

// Kinds lists every expiring-subject kind in poll order.
var Kinds = []Kind{KindDocument, KindInsurance, KindVaccine}

// ExpiringSubject is a record with an expiry or next-due date.
type ExpiringSubject struct {
	ID          string    `json:"id" db:"id"`
	Kind        Kind      `json:"kind" db:"-"`
	OwnerUserID string    `json:"ownerUserId" db:"owner_user_id"`
	Label       string    `json:"label" db:"label"`
	DueAt       time.Time `json:"dueAt" db:"due_at"`
}

type kindInfo struct {
	table      string
	dateColumn string
	event      alert.EventType
	windowDays int
	link       string
}

var kinds = map[Kind]kindInfo{
	KindDocument:  {"documents", "expires_at", alert.EventDocumentExpiring, alert.DocumentWindowDays, "/documents/"},
	KindInsurance: {"insurance_policies", "expires_at", alert.EventInsuranceRenewal, alert.InsuranceWindowDays, "/insurance/"},
	KindVaccine:   {"vaccines", "next_dose_at", alert.EventVaccineDue, alert.VaccineWindowDays, "/vaccines/"},
}

func info(k Kind) (kindInfo, error) {
	ki, ok := kinds[k]
	if !ok {
		return kindInfo{}, fmt.Errorf("unknown subject kind %q", k)
	}
	return ki, nil
}

// WindowDays is how far ahead the poll looks for this kind.
func WindowDays(k Kind) int {
	return kinds[k].windowDays
}

// Event converts the subject into the generator event for its kind. loc
// decides the calendar day used as a vaccine's occurrence id.
func (s ExpiringSubject) Event(loc *time.Location) alert.Event {
	ki := kinds[s.Kind]
	due := s.DueAt
	ev := alert.Event{
		Type:        ki.event,
		OwnerUserID: s.OwnerUserID,
		SubjectID:   s.ID,
		Label:       s.Label,
		DueAt:       &due,
		Link:        ki.link + s.ID,
	}
	if s.Kind == KindVaccine {
		// A vaccine's next dose is a new occurrence each time it moves.
		ev.OccurrenceID = due.In(loc).Format("20060102")
	}
	return ev
}
