package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nutricoach/internal/onboarding"
	"github.com/yoockh/nutricoach/internal/services"
)

// WebhookHandler receives Telegram updates. It always answers 200 so
// Telegram does not redeliver an update the bot already handled or
// cannot handle.
type WebhookHandler struct {
	bot services.BotService
	log *logrus.Logger
}

func NewWebhookHandler(bot services.BotService, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{bot: bot, log: log}
}

func (h *WebhookHandler) Telegram(c *gin.Context) {
	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.log.WithError(err).Warn("undecodable telegram update")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	in, ok := InboundFromUpdate(upd)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.bot.Handle(c.Request.Context(), in); err != nil {
		h.log.WithFields(logrus.Fields{
			"update_id": upd.UpdateID,
			"chat_id":   in.ChatID,
		}).WithError(err).Error("update handling failed")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// InboundFromUpdate maps the update kinds the bot understands. Anything
// else (edits, stickers, group joins) is ignored.
func InboundFromUpdate(upd tgbotapi.Update) (services.Inbound, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil {
			return services.Inbound{}, false
		}
		return services.Inbound{
			ChatID:     strconv.FormatInt(cq.Message.Chat.ID, 10),
			Kind:       onboarding.EventButton,
			Payload:    cq.Data,
			CallbackID: cq.ID,
		}, true
	}

	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return services.Inbound{}, false
	}
	in := services.Inbound{
		ChatID: strconv.FormatInt(msg.Chat.ID, 10),
		Kind:   onboarding.EventText,
	}
	switch {
	case msg.Voice != nil:
		in.VoiceFileID = msg.Voice.FileID
	case msg.Text != "":
		in.Payload = msg.Text
	default:
		return services.Inbound{}, false
	}
	return in, true
}
