package dispatch

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/yoockh/nutricoach/internal/onboarding"
	"github.com/yoockh/nutricoach/internal/utils"
)

// WebPrefix marks chat ids that belong to the browser channel.
const WebPrefix = "web:"

func OutChannel(chatID string) string { return "chat:" + chatID + ":out" }

// Outbound is what web clients receive.
type Outbound struct {
	Type   string             `json:"type"` // prompt|ack
	Prompt *onboarding.Prompt `json:"prompt,omitempty"`
	Text   string             `json:"text,omitempty"`
}

// PubSub publishes prompts on a per-chat redis channel. The websocket
// handler subscribed to that channel forwards them to the browser.
type PubSub struct {
	rdb *redis.Client
}

func NewPubSub(rdb *redis.Client) *PubSub {
	return &PubSub{rdb: rdb}
}

func (d *PubSub) publish(ctx context.Context, chatID string, out Outbound) error {
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := d.rdb.Publish(ctx, OutChannel(chatID), b).Err(); err != nil {
		return utils.E(utils.CodeUnavailable, "PubSub.Send", "publish failed", err)
	}
	return nil
}

func (d *PubSub) Send(ctx context.Context, chatID string, p onboarding.Prompt) error {
	return d.publish(ctx, chatID, Outbound{Type: "prompt", Prompt: &p})
}

// Acknowledge uses the chat id as callback id; web buttons have no
// separate callback handle.
func (d *PubSub) Acknowledge(ctx context.Context, callbackID, text string) error {
	if text == "" {
		return nil
	}
	return d.publish(ctx, callbackID, Outbound{Type: "ack", Text: text})
}
