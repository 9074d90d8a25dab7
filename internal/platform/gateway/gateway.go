// Package gateway delivers templated messages to users through external
// messaging providers (WhatsApp Cloud API, SMS over AWS SNS).
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Channel identifies an outbound messaging channel.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// Message is one templated send request. Vars are keyed by the template's
// parameter names; the catalog turns them into the provider's ordered list.
type Message struct {
	Channel  Channel
	To       string
	Template TemplateKind
	Vars     map[string]string
}

// Rendered is a message after template resolution.
type Rendered struct {
	Template *Template
	Params   []string
	Body     string
}

// Sender delivers a rendered message to one destination and returns the
// provider's message id.
type Sender interface {
	Send(ctx context.Context, to string, r Rendered) (string, error)
}

// Gateway is what the dispatcher depends on.
type Gateway interface {
	Send(ctx context.Context, msg Message) (string, error)
}

var ErrChannelUnavailable = errors.New("channel not configured")

// Router renders messages with the catalog and hands them to the sender
// registered for the message's channel.
type Router struct {
	catalog *Catalog
	senders map[Channel]Sender
}

func NewRouter(catalog *Catalog) *Router {
	return &Router{catalog: catalog, senders: make(map[Channel]Sender)}
}

// Register attaches a sender to a channel, replacing any previous one.
func (r *Router) Register(ch Channel, s Sender) *Router {
	r.senders[ch] = s
	return r
}

// Channels lists the channels that have a sender.
func (r *Router) Channels() []Channel {
	out := make([]Channel, 0, len(r.senders))
	for _, ch := range []Channel{ChannelWhatsApp, ChannelSMS} {
		if _, ok := r.senders[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func (r *Router) Send(ctx context.Context, msg Message) (string, error) {
	s, ok := r.senders[msg.Channel]
	if !ok {
		return "", fmt.Errorf("%s: %w", msg.Channel, ErrChannelUnavailable)
	}
	rendered, err := r.catalog.Render(msg.Template, msg.Vars)
	if err != nil {
		return "", err
	}
	return s.Send(ctx, msg.To, rendered)
}
