package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/alerting/internal/platform/clock"
	"github.com/ehr/alerting/internal/platform/validate"
)

// Service implements the interactive alert operations on top of the
// generator and the repository.
type Service struct {
	repo  Repository
	gen   *Generator
	clock clock.Clock
}

func NewService(repo Repository, gen *Generator, clk clock.Clock) *Service {
	return &Service{repo: repo, gen: gen, clock: clk}
}

func (s *Service) Generate(ctx context.Context, ev Event) (Result, error) {
	return s.gen.Generate(ctx, ev)
}

// CreateCustomRequest is a user-authored alert.
type CreateCustomRequest struct {
	Message     string     `json:"message" validate:"required,max=500"`
	Priority    Priority   `json:"priority" validate:"omitempty,oneof=critical high medium low"`
	TriggerDate *time.Time `json:"triggerDate,omitempty"`
	Link        string     `json:"link,omitempty" validate:"omitempty,max=2048"`
}

func (s *Service) CreateCustom(ctx context.Context, ownerUserID string, req CreateCustomRequest) (*Alert, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	now := s.clock.Now()
	a := &Alert{
		ID:          uuid.New(),
		Source:      SourceCustomAlert,
		OwnerUserID: ownerUserID,
		Type:        TypeCustom,
		Message:     req.Message,
		Status:      StatusPending,
		TriggerDate: req.TriggerDate,
		Link:        stringPtr(req.Link),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Priority != "" {
		a.Priority = priorityPtr(req.Priority)
	}
	if _, err := s.repo.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("insert custom alert: %w", err)
	}
	return a, nil
}

// List returns the unified view for one owner.
func (s *Service) List(ctx context.Context, ownerUserID string, f Filter) ([]Item, error) {
	if f.Source != "" && !f.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", ErrValidation, f.Source)
	}
	var sources [][]*Alert
	for _, src := range []Source{SourceReminder, SourceCustomAlert} {
		if f.Source != "" && f.Source != src {
			continue
		}
		rows, err := s.repo.ListByOwner(ctx, src, ownerUserID)
		if err != nil {
			return nil, fmt.Errorf("list %s alerts: %w", src, err)
		}
		sources = append(sources, rows)
	}
	return BuildView(s.clock.Now(), f, sources...), nil
}

func (s *Service) Grouped(ctx context.Context, ownerUserID string, f Filter) ([]Group, error) {
	items, err := s.List(ctx, ownerUserID, f)
	if err != nil {
		return nil, err
	}
	return GroupByPriority(items), nil
}

// UpdateStatus acknowledges (completed) or cancels an alert. Snoozing goes
// through Snooze because it needs a duration.
func (s *Service) UpdateStatus(ctx context.Context, ownerUserID string, ref Ref, to Status) (*Alert, error) {
	if to == StatusSnoozed {
		return nil, fmt.Errorf("%w: use snooze with a duration", ErrValidation)
	}
	if !validStatuses[to] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	return s.transition(ctx, ownerUserID, ref, to, nil)
}

// Snooze hides an alert until now + option.
func (s *Service) Snooze(ctx context.Context, ownerUserID string, ref Ref, option string) (*Alert, error) {
	d, err := ParseSnooze(option)
	if err != nil {
		return nil, err
	}
	until := s.clock.Now().Add(d)
	return s.transition(ctx, ownerUserID, ref, StatusSnoozed, &until)
}

func (s *Service) transition(ctx context.Context, ownerUserID string, ref Ref, to Status, trigger *time.Time) (*Alert, error) {
	if !ref.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", ErrValidation, ref.Source)
	}
	from, err := allowedFrom(ref.Source, to)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.Transition(ctx, ref.Source, ownerUserID, ref.ID, to, from, trigger, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("update alert status: %w", err)
	}

	a, err := s.repo.Get(ctx, ref.Source, ownerUserID, ref.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	return a, nil
}

// Delete hard-deletes the referenced alerts, issuing one call per source.
func (s *Service) Delete(ctx context.Context, ownerUserID string, refs []Ref) (int64, error) {
	bySource := make(map[Source][]uuid.UUID)
	for _, ref := range refs {
		if !ref.Source.Valid() {
			return 0, fmt.Errorf("%w: unknown source %q", ErrValidation, ref.Source)
		}
		bySource[ref.Source] = append(bySource[ref.Source], ref.ID)
	}

	var total int64
	var errs []error
	for _, src := range []Source{SourceReminder, SourceCustomAlert} {
		ids := bySource[src]
		if len(ids) == 0 {
			continue
		}
		n, err := s.repo.Delete(ctx, src, ownerUserID, ids)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %s alerts: %w", src, err))
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// MarkRead marks the unread custom alerts among the selection as read. A
// selection with no such rows does not touch storage.
func (s *Service) MarkRead(ctx context.Context, ownerUserID string, selection []Selection) (int64, error) {
	var ids []uuid.UUID
	for _, sel := range selection {
		if sel.Source == SourceCustomAlert && !sel.IsRead {
			ids = append(ids, sel.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.repo.MarkRead(ctx, ownerUserID, ids, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("mark alerts read: %w", err)
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, ownerUserID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, ownerUserID, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	return n, nil
}
