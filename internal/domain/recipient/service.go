package recipient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/alerting/internal/platform/clock"
	"github.com/ehr/alerting/internal/platform/validate"
)

// Welcomer sends the welcome/verification message when a user turns on
// WhatsApp. It returns the dispatch outcome.
type Welcomer interface {
	Welcome(ctx context.Context, p *Preferences) (string, error)
}

type Service struct {
	repo     Repository
	welcomer Welcomer
	clock    clock.Clock
	log      zerolog.Logger
}

func NewService(repo Repository, clk clock.Clock, log zerolog.Logger) *Service {
	return &Service{repo: repo, clock: clk, log: log}
}

// SetWelcomer wires the welcome sender. The dispatcher depends on this
// service's repository, so it is attached after construction.
func (s *Service) SetWelcomer(w Welcomer) {
	s.welcomer = w
}

// Get returns the user's preferences; users who never saved any get the
// opted-out defaults.
func (s *Service) Get(ctx context.Context, userID string) (*Preferences, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &Preferences{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification preferences: %w", err)
	}
	return p, nil
}

type UpdateResult struct {
	*Preferences
	Welcome string `json:"welcome,omitempty"`
}

func (s *Service) Update(ctx context.Context, userID string, req UpdateRequest) (*UpdateResult, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if (req.WhatsAppEnabled || req.SMSEnabled) && req.Phone == "" {
		return nil, fmt.Errorf("%w: phone is required to enable a channel", ErrValidation)
	}

	now := s.clock.Now()
	prev, err := s.repo.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get notification preferences: %w", err)
	}
	p := &Preferences{
		UserID:          userID,
		DisplayName:     req.DisplayName,
		Phone:           req.Phone,
		WhatsAppEnabled: req.WhatsAppEnabled,
		SMSEnabled:      req.SMSEnabled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if prev != nil {
		p.CreatedAt = prev.CreatedAt
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("save notification preferences: %w", err)
	}

	out := &UpdateResult{Preferences: p}
	newlyEnabled := p.WhatsAppEnabled && (prev == nil || !prev.WhatsAppEnabled)
	if newlyEnabled && s.welcomer != nil {
		outcome, err := s.welcomer.Welcome(ctx, p)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("welcome message not sent")
		}
		out.Welcome = outcome
	}
	return out, nil
}
