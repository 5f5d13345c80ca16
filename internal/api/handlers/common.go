package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/nutricoach/internal/dispatch"
	"github.com/yoockh/nutricoach/internal/utils"
)

// APIError is the body of every non-2xx admin or web-chat response.
type APIError struct {
	Code      utils.Code `json:"code"`
	Message   string     `json:"message"`
	RequestID string     `json:"request_id,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	body := APIError{
		Code:      utils.CodeOf(err),
		Message:   http.StatusText(status),
		RequestID: c.GetString("request_id"),
	}
	var ae *utils.AppError
	if errors.As(err, &ae) {
		body.Code, body.Message = ae.Code, ae.Message
	}
	c.JSON(status, body)
}

// chatIDParam reads :chat_id. Accepted forms are a Telegram chat id (a
// signed integer, negative for groups) or a web-chat id "web:<subject>".
func chatIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("chat_id"))
	if sub, ok := strings.CutPrefix(id, dispatch.WebPrefix); ok && sub != "" {
		return id, true
	}
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return id, true
	}
	writeError(c, utils.E(utils.CodeInvalidArgument, "Admin.chatID", "chat_id must be a Telegram chat id or web:<user>", nil))
	return "", false
}

// webChatID maps the authenticated web user onto its chat id.
func webChatID(c *gin.Context) (string, bool) {
	if sub := c.GetString("user_id"); sub != "" {
		return dispatch.WebPrefix + sub, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "WebChat.auth", "unauthorized", nil))
	return "", false
}
