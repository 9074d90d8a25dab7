package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/alerting/internal/domain/recipient"
	"github.com/ehr/alerting/internal/platform/clock"
	"github.com/ehr/alerting/internal/platform/gateway"
)

// Outcome is the result of one dispatch attempt.
type Outcome string

const (
	OutcomeSent            Outcome = "sent"
	OutcomeSkippedOptedOut Outcome = "skippedOptedOut"
	OutcomeSkippedAntiSpam Outcome = "skippedAntiSpam"
	OutcomeFailed          Outcome = "failed"
)

type Result struct {
	Outcome   Outcome         `json:"outcome"`
	Channel   gateway.Channel `json:"channel"`
	Reason    string          `json:"reason,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	RecordKey string          `json:"recordKey,omitempty"`
}

// PreferenceSource resolves a user's contact data and opt-in flags.
type PreferenceSource interface {
	Get(ctx context.Context, userID string) (*recipient.Preferences, error)
}

// Request is one notification for one recipient. Recipient may be supplied
// when the caller already holds the preferences; otherwise RecipientID is
// looked up. The "name" variable defaults to the recipient's display name.
type Request struct {
	Channel     gateway.Channel
	RecipientID string
	Recipient   *recipient.Preferences
	SubjectID   string
	Template    gateway.TemplateKind
	Vars        map[string]string
	Guard       Guard
}

type Dispatcher struct {
	prefs    PreferenceSource
	ledger   Ledger
	gw       gateway.Gateway
	clock    clock.Clock
	loc      *time.Location
	timeout  time.Duration
	channels []gateway.Channel
	log      zerolog.Logger
}

type Option func(*Dispatcher)

func WithClock(c clock.Clock) Option { return func(d *Dispatcher) { d.clock = c } }

// WithLocation sets the zone that defines a calendar day in send keys.
func WithLocation(loc *time.Location) Option { return func(d *Dispatcher) { d.loc = loc } }

// WithTimeout bounds each gateway call.
func WithTimeout(t time.Duration) Option { return func(d *Dispatcher) { d.timeout = t } }

func WithLogger(l zerolog.Logger) Option { return func(d *Dispatcher) { d.log = l } }

// WithChannels sets the channels DispatchAll fans out to.
func WithChannels(chs ...gateway.Channel) Option {
	return func(d *Dispatcher) { d.channels = chs }
}

func NewDispatcher(prefs PreferenceSource, ledger Ledger, gw gateway.Gateway, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		prefs:    prefs,
		ledger:   ledger,
		gw:       gw,
		clock:    clock.Real{},
		loc:      time.UTC,
		timeout:  10 * time.Second,
		channels: []gateway.Channel{gateway.ChannelWhatsApp},
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Channels returns the channels DispatchAll uses.
func (d *Dispatcher) Channels() []gateway.Channel {
	return d.channels
}

// Dispatch runs opt-in, guard and ledger checks, then sends. Gateway errors
// become a failed result; only storage errors are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	res := Result{Channel: req.Channel}
	log := d.log.With().
		Str("subject_id", req.SubjectID).
		Str("channel", string(req.Channel)).
		Str("template", string(req.Template)).
		Logger()

	p := req.Recipient
	if p == nil {
		var err error
		p, err = d.prefs.Get(ctx, req.RecipientID)
		if err != nil {
			return res, fmt.Errorf("load recipient %s: %w", req.RecipientID, err)
		}
	}
	to, ok := p.Destination(req.Channel)
	if !ok {
		res.Outcome = OutcomeSkippedOptedOut
		log.Info().Str("user_id", p.UserID).Msg("notification skipped: not opted in")
		return res, nil
	}

	now := d.clock.Now()
	guardKey, ok := req.Guard.Check(now)
	if !ok {
		res.Outcome = OutcomeSkippedAntiSpam
		res.Reason = "outside send window"
		return res, nil
	}

	day := clock.Day(now, d.loc)
	if pinned, ok := req.Guard.(DayPinned); ok {
		day = pinned.SendDay(d.loc)
	}
	key := SendKey{
		SubjectID: req.SubjectID,
		GuardKey:  guardKey,
		Channel:   req.Channel,
		Day:       day,
	}
	res.RecordKey = key.String()
	claimed, err := d.ledger.Claim(ctx, key, now)
	if err != nil {
		return res, fmt.Errorf("claim send record %s: %w", key, err)
	}
	if !claimed {
		res.Outcome = OutcomeSkippedAntiSpam
		res.Reason = "already sent"
		log.Info().Str("record_key", key.String()).Msg("notification skipped: already sent")
		return res, nil
	}

	vars := make(map[string]string, len(req.Vars)+1)
	vars["name"] = p.Name()
	for k, v := range req.Vars {
		vars[k] = v
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	msgID, sendErr := d.gw.Send(sendCtx, gateway.Message{
		Channel:  req.Channel,
		To:       to,
		Template: req.Template,
		Vars:     vars,
	})
	cancel()

	// Ledger writes outlive the caller's deadline; a claim must not stay stuck.
	markCtx := context.WithoutCancel(ctx)
	if sendErr != nil {
		res.Outcome = OutcomeFailed
		res.Reason = sendErr.Error()
		log.Warn().Err(sendErr).Str("record_key", key.String()).Msg("notification failed")
		if err := d.ledger.MarkFailed(markCtx, key, res.Reason); err != nil {
			return res, fmt.Errorf("mark send record failed %s: %w", key, err)
		}
		return res, nil
	}

	if err := d.ledger.MarkSent(markCtx, key, msgID, d.clock.Now()); err != nil {
		return res, fmt.Errorf("mark send record sent %s: %w", key, err)
	}
	res.Outcome = OutcomeSent
	res.MessageID = msgID
	log.Info().Str("record_key", key.String()).Str("message_id", msgID).Msg("notification sent")
	return res, nil
}

// DispatchAll sends req on every configured channel. The recipient is
// loaded once. Results are returned for every channel attempted; the first
// storage error stops the loop.
func (d *Dispatcher) DispatchAll(ctx context.Context, req Request) ([]Result, error) {
	if req.Recipient == nil {
		p, err := d.prefs.Get(ctx, req.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("load recipient %s: %w", req.RecipientID, err)
		}
		req.Recipient = p
	}
	out := make([]Result, 0, len(d.channels))
	for _, ch := range d.channels {
		req.Channel = ch
		res, err := d.Dispatch(ctx, req)
		out = append(out, res)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

const welcomeGuard = OncePerDay("welcome")

// Welcome sends the welcome template over WhatsApp, at most once per user
// per day. It implements recipient.Welcomer.
func (d *Dispatcher) Welcome(ctx context.Context, p *recipient.Preferences) (string, error) {
	res, err := d.Dispatch(ctx, Request{
		Channel:   gateway.ChannelWhatsApp,
		Recipient: p,
		SubjectID: "welcome:" + p.UserID,
		Template:  gateway.TemplateWelcome,
		Guard:     welcomeGuard,
	})
	return string(res.Outcome), err
}
