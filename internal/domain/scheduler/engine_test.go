package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/alerting/internal/domain/alert"
	"github.com/ehr/alerting/internal/domain/dose"
	"github.com/ehr/alerting/internal/domain/notify"
	"github.com/ehr/alerting/internal/domain/recipient"
	"github.com/ehr/alerting/internal/domain/subject"
	"github.com/ehr/alerting/internal/platform/clock"
	"github.com/ehr/alerting/internal/platform/db/dbtest"
	"github.com/ehr/alerting/internal/platform/gateway"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	engine   *Engine
	conn     *sqlx.DB
	alerts   alert.Repository
	subjects subject.Repository
	doses    dose.Repository
	ledger   *notify.MemoryLedger
	sender   *gateway.MockSender
	clock    *clock.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	f := &fixture{
		conn:     conn,
		alerts:   alert.NewRepoSQLite(conn),
		subjects: subject.NewRepoSQLite(conn),
		doses:    dose.NewRepoSQLite(conn),
		ledger:   notify.NewMemoryLedger(),
		sender:   &gateway.MockSender{},
		clock:    clock.NewManual(testNow),
	}
	prefs := recipient.NewService(recipient.NewRepoSQLite(conn), f.clock, zerolog.Nop())
	_, err := prefs.Update(context.Background(), "u1", recipient.UpdateRequest{
		DisplayName: "Ana", Phone: "+5215512345678", WhatsAppEnabled: true,
	})
	require.NoError(t, err)

	router := gateway.NewRouter(gateway.NewCatalog()).Register(gateway.ChannelWhatsApp, f.sender)
	dispatcher := notify.NewDispatcher(prefs, f.ledger, router, notify.WithClock(f.clock))
	gen := alert.NewGenerator(f.alerts, f.clock, time.UTC)
	f.engine = f.newEngine(gen, dispatcher, f.subjects)
	return f
}

func (f *fixture) newEngine(gen Generator, n Notifier, subjects subject.Repository) *Engine {
	return NewEngine(gen, n, subjects, f.doses, f.clock, Config{Concurrency: 4, Timeout: time.Minute}, zerolog.Nop())
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	f.conn.MustExec(`INSERT INTO documents (id, owner_user_id, label, expires_at) VALUES
		('doc-7', 'u1', 'Pasaporte', ?),
		('doc-10', 'u1', 'INE', ?),
		('doc-45', 'u1', 'Licencia', ?)`,
		testNow.AddDate(0, 0, 7), testNow.AddDate(0, 0, 10), testNow.AddDate(0, 0, 45))
	f.conn.MustExec(`INSERT INTO insurance_policies (id, owner_user_id, label, expires_at) VALUES ('pol-30', 'u1', 'GNP', ?)`,
		testNow.AddDate(0, 0, 30))
	f.conn.MustExec(`INSERT INTO vaccines (id, owner_user_id, label, next_dose_at) VALUES ('vac-3', 'u2', 'Tétanos', ?)`,
		testNow.AddDate(0, 0, 3))

	f.prescribe(t, testNow.Add(time.Hour))
	f.prescribe(t, testNow.Add(30*time.Minute))
}

func (f *fixture) prescribe(t *testing.T, start time.Time) {
	t.Helper()
	req := dose.CreatePrescriptionRequest{
		MedicineName: "Ibuprofeno", Dosage: "400mg", FrequencyHours: 8, StartsAt: start, TotalDoses: 2,
	}
	p := &dose.Prescription{
		ID:     uuid.New(),
		UserID: "u1",
		Medicine: dose.MedicineRef{
			Name: req.MedicineName, Dosage: req.Dosage, FrequencyHours: req.FrequencyHours,
		},
		StartsAt:   start,
		TotalDoses: req.TotalDoses,
		CreatedAt:  testNow,
	}
	require.NoError(t, f.doses.CreatePrescription(context.Background(), p, req.Schedule(p)))
}

func TestRunScheduledChecks(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	sum, err := f.engine.RunScheduledChecks(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 5, sum.Items, "doc-7, doc-10, pol-30, vac-3 and the dose in the advance window")
	assert.Equal(t, 5, sum.Alerts[alert.OutcomeCreated])
	assert.Equal(t, 3, sum.Notifications[notify.OutcomeSent])
	assert.Equal(t, 1, sum.Notifications[notify.OutcomeSkippedAntiSpam])
	assert.Equal(t, 1, sum.Notifications[notify.OutcomeSkippedOptedOut])
	assert.Zero(t, sum.Errors)

	calls := f.sender.Calls()
	require.Len(t, calls, 3)
	var doseCalls int
	for _, c := range calls {
		assert.Equal(t, "+5215512345678", c.To)
		if c.Template == gateway.TemplateDoseReminder {
			doseCalls++
			assert.Equal(t, []string{"Ana", "Ibuprofeno", "400mg", "16:00"}, c.Params)
		}
	}
	assert.Equal(t, 1, doseCalls)

	reminders, err := f.alerts.ListByOwner(ctx, alert.SourceReminder, "u1")
	require.NoError(t, err)
	assert.Len(t, reminders, 4)
}

func TestRunScheduledChecks_RepeatedRunsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.engine.RunScheduledChecks(ctx)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	sum, err := f.engine.RunScheduledChecks(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Alerts[alert.OutcomeSkippedDuplicate])
	assert.Zero(t, sum.Alerts[alert.OutcomeCreated])
	assert.Zero(t, sum.Notifications[notify.OutcomeSent])
	assert.Len(t, f.sender.Calls(), 3)
}

func TestRunScheduledChecks_ConcurrentRunsSendOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := f.engine.RunScheduledChecks(ctx)
			done <- err
		}()
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, <-done)
	}
	assert.Len(t, f.sender.Calls(), 3)
}

func TestRunScheduledChecks_DailyPollsSendOnThresholdDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Due later in the day than the polls run.
	due := testNow.AddDate(0, 0, 31).Add(5 * time.Hour)
	f.conn.MustExec(`INSERT INTO documents (id, owner_user_id, label, expires_at) VALUES ('doc-late', 'u1', 'Pasaporte', ?)`, due)

	var sentOn []int
	for day := 31; day >= 0; day-- {
		f.clock.Set(testNow.AddDate(0, 0, 31-day))
		for run := 0; run < 2; run++ {
			before := len(f.sender.Calls())
			_, err := f.engine.RunScheduledChecks(ctx)
			require.NoError(t, err)
			if len(f.sender.Calls()) > before {
				sentOn = append(sentOn, day)
			}
			f.clock.Advance(10 * time.Minute)
		}
	}
	assert.Equal(t, []int{30, 15, 7, 3}, sentOn)

	reminders, err := f.alerts.ListByOwner(ctx, alert.SourceReminder, "u1")
	require.NoError(t, err)
	assert.Len(t, reminders, 1)
}

// flakySubjects fails listing for one kind.
type flakySubjects struct {
	subject.Repository
	failKind subject.Kind
}

var errListing = errors.New("insurance store offline")

func (r flakySubjects) ListDueBetween(ctx context.Context, kind subject.Kind, from, to time.Time) ([]subject.ExpiringSubject, error) {
	if kind == r.failKind {
		return nil, errListing
	}
	return r.Repository.ListDueBetween(ctx, kind, from, to)
}

// flakyGenerator fails generation for one subject.
type flakyGenerator struct {
	Generator
	failSubject string
}

var errInsert = errors.New("insert failed")

func (g flakyGenerator) Generate(ctx context.Context, ev alert.Event) (alert.Result, error) {
	if ev.SubjectID == g.failSubject {
		return alert.Result{}, errInsert
	}
	return g.Generator.Generate(ctx, ev)
}

func TestRunScheduledChecks_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	gen := flakyGenerator{Generator: alert.NewGenerator(f.alerts, f.clock, time.UTC), failSubject: "doc-7"}
	notifier := notify.NewDispatcher(
		recipient.NewService(recipient.NewRepoSQLite(f.conn), f.clock, zerolog.Nop()),
		f.ledger, gateway.NewRouter(gateway.NewCatalog()).Register(gateway.ChannelWhatsApp, f.sender),
		notify.WithClock(f.clock))
	engine := f.newEngine(gen, notifier, flakySubjects{Repository: f.subjects, failKind: subject.KindInsurance})

	sum, err := engine.RunScheduledChecks(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errListing))
	assert.True(t, errors.Is(err, errInsert))
	assert.Equal(t, 4, sum.Items, "pol-30 was never listed")
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 3, sum.Alerts[alert.OutcomeCreated])
	assert.NotEmpty(t, sum.Error)
}

func TestEngine_GenerateDispatches(t *testing.T) {
	f := newFixture(t)
	due := testNow.AddDate(0, 0, 15)

	res, err := f.engine.Generate(context.Background(), alert.Event{
		Type: alert.EventDocumentExpiring, OwnerUserID: "u1", SubjectID: "doc-x", Label: "Cartilla", DueAt: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, alert.OutcomeCreated, res.Outcome)

	calls := f.sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, gateway.TemplateGenericAlert, calls[0].Template)
	assert.Contains(t, calls[0].Body, "Cartilla")

	_, err = f.engine.Generate(context.Background(), alert.Event{Type: "nope"})
	assert.True(t, errors.Is(err, alert.ErrValidation))
}

func TestEngine_InfoEventsStayInApp(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Generate(context.Background(), alert.Event{
		Type: alert.EventSecurityAlert, OwnerUserID: "u1", SubjectID: "login-1", Label: "Nuevo acceso",
	})
	require.NoError(t, err)
	assert.Equal(t, alert.OutcomeCreated, res.Outcome)
	assert.Empty(t, f.sender.Calls())
	assert.Empty(t, f.ledger.Records())
}
