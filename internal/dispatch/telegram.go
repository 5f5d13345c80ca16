package dispatch

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yoockh/nutricoach/internal/onboarding"
	"github.com/yoockh/nutricoach/internal/utils"
)

const buttonsPerRow = 2

// Telegram delivers prompts through the Bot API.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

func NewTelegram(bot *tgbotapi.BotAPI) *Telegram {
	return &Telegram{bot: bot}
}

// Keyboard lays choices out two per row. Multi-select confirmation buttons
// always get a row of their own.
func Keyboard(choices []onboarding.Choice) *tgbotapi.InlineKeyboardMarkup {
	if len(choices) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, c := range choices {
		last := i == len(choices)-1
		btn := tgbotapi.NewInlineKeyboardButtonData(ButtonLabel(c), c.Value)
		if last && len(row) > 0 && isDone(c.Value) {
			rows = append(rows, row)
			row = nil
		}
		row = append(row, btn)
		if len(row) == buttonsPerRow || last {
			rows = append(rows, row)
			row = nil
		}
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func isDone(value string) bool {
	n := len(onboarding.DoneTag)
	return len(value) > n && value[len(value)-n-1:] == "_"+onboarding.DoneTag
}

func (t *Telegram) Send(_ context.Context, chatID string, p onboarding.Prompt) error {
	const op = "Telegram.Send"

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("chat id %q is not numeric", chatID), err)
	}

	msg := tgbotapi.NewMessage(id, Text(p))
	if kb := Keyboard(p.Choices); kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := t.bot.Send(msg); err != nil {
		return utils.E(utils.CodeUnavailable, op, "sendMessage failed", err)
	}
	return nil
}

func (t *Telegram) Acknowledge(_ context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	if _, err := t.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return utils.E(utils.CodeUnavailable, "Telegram.Acknowledge", "answerCallbackQuery failed", err)
	}
	return nil
}

// FileURL resolves a file id (voice notes) to a download URL.
func (t *Telegram) FileURL(fileID string) (string, error) {
	return t.bot.GetFileDirectURL(fileID)
}

// SetWebhook registers url with an optional secret token.
func SetWebhook(bot *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	params["allowed_updates"] = `["message","callback_query"]`
	_, err := bot.MakeRequest("setWebhook", params)
	return err
}

func DeleteWebhook(bot *tgbotapi.BotAPI, dropPending bool) error {
	_, err := bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending})
	return err
}
