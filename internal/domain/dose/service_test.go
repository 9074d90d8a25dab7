package dose

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/alerting/internal/domain/alert"
	"github.com/ehr/alerting/internal/platform/clock"
	"github.com/ehr/alerting/internal/platform/db/dbtest"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	repo   Repository
	alerts alert.Repository
	clock  *clock.Manual
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	clk := clock.NewManual(testNow)
	alerts := alert.NewRepoSQLite(conn)
	gen := alert.NewGenerator(alerts, clk, time.UTC)
	repo := NewRepoSQLite(conn)
	return fixture{
		svc:    NewService(repo, gen, clk, zerolog.Nop()),
		repo:   repo,
		alerts: alerts,
		clock:  clk,
	}
}

func ibuprofen(startsAt time.Time, total int) CreatePrescriptionRequest {
	return CreatePrescriptionRequest{
		MedicineName:   "Ibuprofeno",
		Dosage:         "400mg",
		Instructions:   "Con alimentos",
		FrequencyHours: 8,
		StartsAt:       startsAt,
		TotalDoses:     total,
	}
}

func TestRegisterPrescription_SchedulesDoses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := testNow.Add(2 * time.Hour)

	res, err := f.svc.RegisterPrescription(ctx, "u1", ibuprofen(start, 3))
	require.NoError(t, err)
	require.Len(t, res.Doses, 3)
	for i, d := range res.Doses {
		assert.True(t, d.ScheduledAt.Equal(start.Add(time.Duration(i)*8*time.Hour)), "dose %d at %s", i, d.ScheduledAt)
		assert.Equal(t, StatusScheduled, d.Status)
		assert.Equal(t, res.Prescription.ID, d.PrescriptionID)
	}

	views, err := f.svc.ListDoses(ctx, "u1", testNow, testNow.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Con alimentos", *views[0].Medicine.Instructions)
	assert.Equal(t, UrgencySoon, views[0].Urgency)
	assert.Equal(t, UrgencyUpcoming, views[1].Urgency)
}

func TestRegisterPrescription_RemindsOnlyFirstDose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RegisterPrescription(ctx, "u1", ibuprofen(testNow.Add(2*time.Hour), 4))
	require.NoError(t, err)
	require.NotNil(t, res.Reminder)
	assert.Equal(t, alert.OutcomeCreated, res.Reminder.Outcome)

	reminders, err := f.alerts.ListByOwner(ctx, alert.SourceReminder, "u1")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, alert.TypeMedication, reminders[0].Type)
	assert.Equal(t, alert.SemanticKey(alert.TypeMedication, res.Prescription.ID.String(), res.Doses[0].ID.String()),
		*reminders[0].SemanticKey)
}

func TestRegisterPrescription_PastStartSkipsReminder(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.RegisterPrescription(context.Background(), "u1", ibuprofen(testNow.Add(-time.Hour), 2))
	require.NoError(t, err)
	require.NotNil(t, res.Reminder)
	assert.Equal(t, alert.OutcomeSkippedOutOfWindow, res.Reminder.Outcome)
}

func TestRegisterPrescription_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]func(r *CreatePrescriptionRequest){
		"missing medicine": func(r *CreatePrescriptionRequest) { r.MedicineName = "  " },
		"missing dosage":   func(r *CreatePrescriptionRequest) { r.Dosage = "" },
		"zero frequency":   func(r *CreatePrescriptionRequest) { r.FrequencyHours = 0 },
		"zero doses":       func(r *CreatePrescriptionRequest) { r.TotalDoses = 0 },
		"no start":         func(r *CreatePrescriptionRequest) { r.StartsAt = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := ibuprofen(testNow, 2)
			mutate(&req)
			_, err := f.svc.RegisterPrescription(ctx, "u1", req)
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		})
	}

	views, err := f.svc.ListDoses(ctx, "u1", testNow.Add(-time.Hour), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, views, "rejected prescriptions write nothing")
}

func TestMarkTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RegisterPrescription(ctx, "u1", ibuprofen(testNow, 2))
	require.NoError(t, err)
	first := res.Doses[0]

	f.clock.Advance(95 * time.Minute)
	v, err := f.svc.MarkTaken(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusTaken, v.Status)
	require.NotNil(t, v.DelayMinutes)
	assert.Equal(t, 95, *v.DelayMinutes)
	assert.Equal(t, "1h 35min late", v.Punctuality)
	require.NotNil(t, v.TakenAt)
	assert.True(t, v.TakenAt.Equal(testNow.Add(95*time.Minute)))

	_, err = f.svc.MarkTaken(ctx, "u1", first.ID)
	assert.True(t, errors.Is(err, ErrAlreadyTaken))

	_, err = f.svc.MarkTaken(ctx, "u2", res.Doses[1].ID)
	assert.True(t, errors.Is(err, ErrNotFound), "doses are scoped to their user")

	_, err = f.svc.MarkTaken(ctx, "u1", uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMarkTaken_Early(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RegisterPrescription(ctx, "u1", ibuprofen(testNow.Add(30*time.Minute), 1))
	require.NoError(t, err)
	v, err := f.svc.MarkTaken(ctx, "u1", res.Doses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "30min early", v.Punctuality)
}

func TestListScheduledBetween(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.RegisterPrescription(ctx, "u1", ibuprofen(testNow.Add(10*time.Minute), 3))
	require.NoError(t, err)
	_, err = f.svc.RegisterPrescription(ctx, "u2", ibuprofen(testNow.Add(50*time.Minute), 1))
	require.NoError(t, err)

	_, err = f.svc.MarkTaken(ctx, "u1", a.Doses[0].ID)
	require.NoError(t, err)

	due, err := f.repo.ListScheduledBetween(ctx, testNow, testNow.Add(75*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1, "taken doses and doses outside the window are excluded")
	assert.Equal(t, "u2", due[0].UserID)
}

func TestListDoses_InvalidWindow(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListDoses(context.Background(), "u1", testNow, testNow.Add(-time.Hour))
	assert.True(t, errors.Is(err, ErrValidation))
}
