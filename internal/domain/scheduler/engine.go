// Package scheduler runs the expiring-subject and upcoming-dose polls and
// feeds their events through alert generation and notification dispatch.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/alerting/internal/domain/alert"
	"github.com/ehr/alerting/internal/domain/dose"
	"github.com/ehr/alerting/internal/domain/notify"
	"github.com/ehr/alerting/internal/domain/subject"
	"github.com/ehr/alerting/internal/platform/clock"
)

// Generator creates deduplicated alerts.
type Generator interface {
	Generate(ctx context.Context, ev alert.Event) (alert.Result, error)
}

// Notifier sends a request on every configured channel.
type Notifier interface {
	DispatchAll(ctx context.Context, req notify.Request) ([]notify.Result, error)
}

// DoseSource lists doses still scheduled in a window.
type DoseSource interface {
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]*dose.Dose, error)
}

type Config struct {
	Concurrency int
	Timeout     time.Duration
	Location    *time.Location
}

// Engine wires generation to dispatch for both polled and ingested events.
type Engine struct {
	alerts   Generator
	notifier Notifier
	subjects subject.Repository
	doses    DoseSource
	clock    clock.Clock
	cfg      Config
	log      zerolog.Logger
}

func NewEngine(alerts Generator, notifier Notifier, subjects subject.Repository, doses DoseSource, clk clock.Clock, cfg Config, log zerolog.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		alerts:   alerts,
		notifier: notifier,
		subjects: subjects,
		doses:    doses,
		clock:    clk,
		cfg:      cfg,
		log:      log,
	}
}

// Generate creates the alert for ev and dispatches its notification. It
// satisfies alert.EventProcessor for the internal event endpoint. Dispatch
// failures are logged; only generation errors are returned.
func (e *Engine) Generate(ctx context.Context, ev alert.Event) (alert.Result, error) {
	res, _, err := e.process(ctx, ev)
	if err != nil && res.Outcome == "" {
		return res, err
	}
	if err != nil {
		e.log.Error().Err(err).Str("subject_id", ev.SubjectID).Msg("notification dispatch failed")
	}
	return res, nil
}

// process generates then dispatches. Notifications are attempted for created
// and duplicate alerts alike; the send ledger decides whether anything goes
// out.
func (e *Engine) process(ctx context.Context, ev alert.Event) (alert.Result, []notify.Result, error) {
	res, err := e.alerts.Generate(ctx, ev)
	if err != nil {
		return alert.Result{}, nil, err
	}
	if res.Outcome == alert.OutcomeSkippedOutOfWindow {
		return res, nil, nil
	}
	req, ok := plan(ev, res, e.cfg.Location)
	if !ok {
		return res, nil, nil
	}
	sent, err := e.notifier.DispatchAll(ctx, req)
	return res, sent, err
}

// Summary aggregates one RunScheduledChecks invocation.
type Summary struct {
	RunID         string                 `json:"runId"`
	StartedAt     time.Time              `json:"startedAt"`
	Duration      string                 `json:"duration"`
	Items         int                    `json:"items"`
	Alerts        map[alert.Outcome]int  `json:"alerts"`
	Notifications map[notify.Outcome]int `json:"notifications"`
	Errors        int                    `json:"errors"`
	Error         string                 `json:"error,omitempty"`

	mu sync.Mutex
}

func (s *Summary) record(res alert.Result, sent []notify.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items++
	if res.Outcome != "" {
		s.Alerts[res.Outcome]++
	}
	for _, r := range sent {
		if r.Outcome != "" {
			s.Notifications[r.Outcome]++
		}
	}
	if err != nil {
		s.Errors++
	}
}

// RunScheduledChecks polls expiring subjects and upcoming doses once. Items
// are processed in parallel with bounded concurrency; one failing item never
// stops the others. The returned error combines every failure of the run.
func (e *Engine) RunScheduledChecks(ctx context.Context) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	now := e.clock.Now()
	sum := &Summary{
		RunID:         ulid.Make().String(),
		StartedAt:     now,
		Alerts:        make(map[alert.Outcome]int),
		Notifications: make(map[notify.Outcome]int),
	}
	log := e.log.With().Str("run_id", sum.RunID).Logger()

	events, err := e.collect(ctx, now)

	var (
		mu   sync.Mutex
		errs = err
		g    errgroup.Group
	)
	g.SetLimit(e.cfg.Concurrency)
	for _, ev := range events {
		ev := ev
		g.Go(func() error {
			res, sent, err := e.process(ctx, ev)
			sum.record(res, sent, err)
			if err != nil {
				log.Error().Err(err).
					Str("event", string(ev.Type)).
					Str("subject_id", ev.SubjectID).
					Msg("scheduled check item failed")
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.Duration = e.clock.Now().Sub(now).String()
	if errs != nil {
		sum.Error = errs.Error()
	}
	e.logSummary(log, sum, errs)
	return sum, errs
}

// collect lists every poll item. A failing source is reported but does not
// prevent the others from being processed.
func (e *Engine) collect(ctx context.Context, now time.Time) ([]alert.Event, error) {
	var (
		events []alert.Event
		errs   error
	)
	// Windows are whole calendar days: tomorrow through the last window day.
	today := clock.StartOfDay(now, e.cfg.Location)
	for _, kind := range subject.Kinds {
		from := today.AddDate(0, 0, 1)
		to := today.AddDate(0, 0, subject.WindowDays(kind)+1)
		subjects, err := e.subjects.ListDueBetween(ctx, kind, from, to)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, s := range subjects {
			events = append(events, s.Event(e.cfg.Location))
		}
	}

	doses, err := e.doses.ListScheduledBetween(ctx, now, now.Add(notify.AdvanceWindowEnd))
	if err != nil {
		return events, multierr.Append(errs, err)
	}
	for _, d := range doses {
		// Doses between the two windows wait for a later run.
		if _, ok := (notify.DoseGuard{ScheduledAt: d.ScheduledAt}).Check(now); !ok {
			continue
		}
		events = append(events, dose.ReminderEvent(d))
	}
	return events, errs
}

func (e *Engine) logSummary(log zerolog.Logger, sum *Summary, err error) {
	alerts := zerolog.Dict()
	for k, v := range sum.Alerts {
		alerts.Int(string(k), v)
	}
	sent := zerolog.Dict()
	for k, v := range sum.Notifications {
		sent.Int(string(k), v)
	}
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Int("items", sum.Items).
		Int("errors", sum.Errors).
		Dict("alerts", alerts).
		Dict("notifications", sent).
		Str("duration", sum.Duration).
		Msg("scheduled checks finished")
}

// Start runs RunScheduledChecks every interval until ctx is cancelled.
func (e *Engine) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are already in the run summary log.
			_, _ = e.RunScheduledChecks(ctx)
		}
	}
}
