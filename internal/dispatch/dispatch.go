// Package dispatch renders onboarding prompts into chat messages.
package dispatch

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/nutricoach/internal/onboarding"
)

type Dispatcher interface {
	Send(ctx context.Context, chatID string, p onboarding.Prompt) error
	// Acknowledge answers a button press. text may be empty.
	Acknowledge(ctx context.Context, callbackID, text string) error
}

// Text returns the message body for p, warning first.
func Text(p onboarding.Prompt) string {
	if p.Warning == "" {
		return p.Text
	}
	return "⚠️ " + p.Warning + "\n\n" + p.Text
}

// ButtonLabel marks selected multi-select options.
func ButtonLabel(c onboarding.Choice) string {
	if c.Selected {
		return "✅ " + c.Label
	}
	return c.Label
}

// Mux sends chats with a known id prefix to a dedicated dispatcher and
// everything else to Default.
type Mux struct {
	Default  Dispatcher
	prefixes []string
	routes   map[string]Dispatcher
}

func NewMux(def Dispatcher) *Mux {
	return &Mux{Default: def, routes: map[string]Dispatcher{}}
}

func (m *Mux) Handle(prefix string, d Dispatcher) *Mux {
	if _, ok := m.routes[prefix]; !ok {
		m.prefixes = append(m.prefixes, prefix)
	}
	m.routes[prefix] = d
	return m
}

func (m *Mux) route(id string) Dispatcher {
	for _, p := range m.prefixes {
		if strings.HasPrefix(id, p) {
			return m.routes[p]
		}
	}
	return m.Default
}

func (m *Mux) Send(ctx context.Context, chatID string, p onboarding.Prompt) error {
	return m.route(chatID).Send(ctx, chatID, p)
}

func (m *Mux) Acknowledge(ctx context.Context, callbackID, text string) error {
	return m.route(callbackID).Acknowledge(ctx, callbackID, text)
}

// LogDispatcher writes prompts to the log. It stands in for Telegram when no
// bot token is configured.
type LogDispatcher struct {
	Logger *logrus.Logger
}

func (d LogDispatcher) Send(_ context.Context, chatID string, p onboarding.Prompt) error {
	d.Logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"field":   p.Field.String(),
		"choices": len(p.Choices),
	}).Info(Text(p))
	return nil
}

func (d LogDispatcher) Acknowledge(_ context.Context, callbackID, text string) error {
	d.Logger.WithField("callback_id", callbackID).Debug("callback acknowledged: " + text)
	return nil
}
