package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/alerting/internal/domain/alert"
	"github.com/ehr/alerting/internal/domain/notify"
	"github.com/ehr/alerting/internal/platform/gateway"
)

// notifySubject is the ledger subject for an event. It matches the alert's
// semantic key so one alert maps to one set of send records.
func notifySubject(ev alert.Event) string {
	parts := []string{string(ev.Type), ev.SubjectID}
	if ev.OccurrenceID != "" {
		parts = append(parts, ev.OccurrenceID)
	}
	return strings.Join(parts, ":")
}

func inDays(days int) string {
	if days == 1 {
		return "mañana"
	}
	return fmt.Sprintf("en %d días", days)
}

// plan builds the notification for an event that produced an eligible
// alert. Informational events stay in-app only.
func plan(ev alert.Event, res alert.Result, loc *time.Location) (notify.Request, bool) {
	if ev.DueAt == nil {
		return notify.Request{}, false
	}
	req := notify.Request{
		RecipientID: ev.OwnerUserID,
		SubjectID:   notifySubject(ev),
		Template:    gateway.TemplateGenericAlert,
	}
	expiry := func(thresholds []int, format string) {
		days := 0
		if res.DaysUntil != nil {
			days = *res.DaysUntil
		}
		req.Guard = notify.ExpiryGuard{DueAt: *ev.DueAt, Thresholds: thresholds, Loc: loc}
		req.Vars = map[string]string{"message": fmt.Sprintf(format, ev.Label, inDays(days))}
	}

	switch ev.Type {
	case alert.EventDocumentExpiring:
		expiry(notify.DocumentThresholds, "tu documento \"%s\" vence %s.")
	case alert.EventInsuranceRenewal:
		expiry(notify.InsuranceThresholds, "tu póliza \"%s\" debe renovarse %s.")
	case alert.EventVaccineDue:
		expiry(notify.VaccineThresholds, "te toca la vacuna \"%s\" %s.")
	case alert.EventAppointmentReminder:
		expiry(notify.AppointmentThresholds, "tienes cita de %s %s.")
	case alert.EventMedicationReminder:
		dosage := ev.Detail
		if dosage == "" {
			dosage = "según indicación"
		}
		req.Template = gateway.TemplateDoseReminder
		req.Guard = notify.DoseGuard{ScheduledAt: *ev.DueAt}
		req.Vars = map[string]string{
			"medicine": ev.Label,
			"dosage":   dosage,
			"time":     ev.DueAt.In(loc).Format("15:04"),
		}
	default:
		return notify.Request{}, false
	}
	return req, true
}
